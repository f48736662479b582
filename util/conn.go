package util

import (
	"io"

	"github.com/pkg/errors"
)

// frames larger than this are treated as protocol corruption
const MaxMsgLen = 64 << 20

func SendPrefixMsg(w io.Writer, prefix [2]byte, req []byte) error {
	reqByte := BufferAppend(prefix[:], BinaryToByte(uint64(len(req))), req)
	_, err := w.Write(reqByte)
	return err
}

func ReceivePrefix(r io.Reader) ([2]byte, error) {
	var prefix [2]byte
	_, err := io.ReadFull(r, prefix[:])
	return prefix, err
}

func ReceiveMsg(r io.Reader) ([]byte, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return nil, err
	}
	var msgLen uint64
	if err := ByteToInt(tmp[:], &msgLen); err != nil {
		return nil, err
	}
	if msgLen > MaxMsgLen {
		return nil, errors.Errorf("message length %d exceeds limit", msgLen)
	}

	msgByte := make([]byte, int(msgLen))
	if _, err := io.ReadFull(r, msgByte); err != nil {
		return nil, err
	}
	return msgByte, nil
}
