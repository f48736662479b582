package util

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"

	"github.com/pkg/errors"
)

func BinaryToByte[T ~uint32 | ~int32 | ~uint64 | ~uint8 | ~int64](value T) []byte {
	var buffer bytes.Buffer
	// writes to a bytes.Buffer never fail for fixed size values
	_ = binary.Write(&buffer, binary.BigEndian, value)
	return buffer.Bytes()
}

func ByteToInt[T ~uint32 | ~int32 | ~uint64 | ~uint8 | ~int64](buf []byte, value *T) error {
	return binary.Read(bytes.NewReader(buf), binary.BigEndian, value)
}

func BufferAppend(args ...[]byte) []byte {
	var buffer bytes.Buffer
	for _, v := range args {
		buffer.Write(v)
	}
	return buffer.Bytes()
}

func BoolToByte(b bool) byte {
	if b {
		return 0x01
	}
	return 0x00
}

// GobEncode serialises v; values must be registered in gobReg when sent behind interfaces.
func GobEncode[T any](v *T) ([]byte, error) {
	var buffer bytes.Buffer
	if err := gob.NewEncoder(&buffer).Encode(v); err != nil {
		return nil, errors.Wrapf(err, "gob encode %T", v)
	}
	return buffer.Bytes(), nil
}

func GobDecode[T any](value []byte, to *T) error {
	if len(value) == 0 {
		return errors.New("gob decode: empty payload")
	}
	if err := gob.NewDecoder(bytes.NewBuffer(value)).Decode(to); err != nil {
		return errors.Wrapf(err, "gob decode %T", to)
	}
	return nil
}

// PrefixEnd returns the smallest key greater than every key starting with prefix,
// or nil when no such key exists.
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] != 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
