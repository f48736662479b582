package storage

import (
	"github.com/pkg/errors"

	"sproutDB/util"
)

type Key interface {
	MVCCEncode() []byte
}

type Version uint64

const (
	MVCCKeyPrefix           byte = 0x03
	NextVersionPrefix       byte = 0x02
	TxnActivePrefix         byte = 0x03
	TxnActiveSnapshotPrefix byte = 0x04
	TxnWritePrefix          byte = 0x05
	VersionedPrefix         byte = 0x06
)

var errBadKey = errors.New("mvcc: malformed key")

type NextVersion struct{}

func (n *NextVersion) MVCCEncode() []byte {
	return []byte{MVCCKeyPrefix, NextVersionPrefix}
}

type TxnActive struct {
	Version Version
}

func (t *TxnActive) MVCCEncode() []byte {
	return append([]byte{MVCCKeyPrefix, TxnActivePrefix}, util.BinaryToByte(uint64(t.Version))...)
}

// active set as seen by the transaction at Version, kept for as-of reads
type TxnActiveSnapshot struct {
	Version Version
}

func (t *TxnActiveSnapshot) MVCCEncode() []byte {
	return append([]byte{MVCCKeyPrefix, TxnActiveSnapshotPrefix}, util.BinaryToByte(uint64(t.Version))...)
}

// marks Key as written by the transaction at Version, used for rollback
type TxnWrite struct {
	Version Version
	Key     []byte
}

func (t *TxnWrite) MVCCEncode() []byte {
	return util.BufferAppend([]byte{MVCCKeyPrefix, TxnWritePrefix}, util.BinaryToByte(uint64(t.Version)), t.Key)
}

// Versioned keys escape the user key so that all versions of one key sort
// together and before any longer key sharing the same prefix.
type Versioned struct {
	Key     []byte
	Version Version
}

func (v *Versioned) MVCCEncode() []byte {
	return util.BufferAppend([]byte{MVCCKeyPrefix, VersionedPrefix}, encodeBytes(v.Key), util.BinaryToByte(uint64(v.Version)))
}

// versionedPrefix is the encoded form shared by every versioned key starting with prefix.
func versionedPrefix(prefix []byte) []byte {
	enc := encodeBytes(prefix)
	// drop the terminator so longer keys still match
	return append([]byte{MVCCKeyPrefix, VersionedPrefix}, enc[:len(enc)-2]...)
}

// versionsEnd is the exclusive upper bound of all versions of key.
func versionsEnd(key []byte) []byte {
	return util.PrefixEnd(util.BufferAppend([]byte{MVCCKeyPrefix, VersionedPrefix}, encodeBytes(key)))
}

func DecodeKey(key []byte) (Key, error) {
	if len(key) < 2 || key[0] != MVCCKeyPrefix {
		return nil, errBadKey
	}

	switch key[1] {
	case NextVersionPrefix:
		return &NextVersion{}, nil
	case TxnActivePrefix:
		var versionNum uint64
		if err := util.ByteToInt(key[2:], &versionNum); err != nil {
			return nil, errBadKey
		}
		return &TxnActive{Version: Version(versionNum)}, nil
	case TxnActiveSnapshotPrefix:
		var versionNum uint64
		if err := util.ByteToInt(key[2:], &versionNum); err != nil {
			return nil, errBadKey
		}
		return &TxnActiveSnapshot{Version: Version(versionNum)}, nil
	case TxnWritePrefix:
		if len(key) < 10 {
			return nil, errBadKey
		}
		var versionNum uint64
		if err := util.ByteToInt(key[2:10], &versionNum); err != nil {
			return nil, errBadKey
		}
		return &TxnWrite{Version: Version(versionNum), Key: key[10:]}, nil
	case VersionedPrefix:
		userKey, rest, err := decodeBytes(key[2:])
		if err != nil || len(rest) != 8 {
			return nil, errBadKey
		}
		var versionNum uint64
		if err := util.ByteToInt(rest, &versionNum); err != nil {
			return nil, errBadKey
		}
		return &Versioned{Key: userKey, Version: Version(versionNum)}, nil
	}

	return nil, errBadKey
}

// encodeBytes escapes 0x00 as 0x00 0xff and terminates with 0x00 0x00.
func encodeBytes(b []byte) []byte {
	out := make([]byte, 0, len(b)+2)
	for _, c := range b {
		if c == 0x00 {
			out = append(out, 0x00, 0xff)
		} else {
			out = append(out, c)
		}
	}
	return append(out, 0x00, 0x00)
}

func decodeBytes(b []byte) ([]byte, []byte, error) {
	out := []byte{}
	for i := 0; i < len(b); i++ {
		if b[i] != 0x00 {
			out = append(out, b[i])
			continue
		}
		if i+1 >= len(b) {
			return nil, nil, errBadKey
		}
		switch b[i+1] {
		case 0x00:
			return out, b[i+2:], nil
		case 0xff:
			out = append(out, 0x00)
			i++
		default:
			return nil, nil, errBadKey
		}
	}
	return nil, nil, errBadKey
}
