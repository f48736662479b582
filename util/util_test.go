package util

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryToByteOrdering(t *testing.T) {
	// big endian keeps numeric order under bytes.Compare, which versioned keys rely on
	assert.Equal(t, -1, bytes.Compare(BinaryToByte(uint64(255)), BinaryToByte(uint64(256))))

	var out uint64
	require.NoError(t, ByteToInt(BinaryToByte(uint64(42)), &out))
	assert.EqualValues(t, 42, out)
}

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte{0x01, 0x03}, PrefixEnd([]byte{0x01, 0x02}))
	assert.Equal(t, []byte{0x02}, PrefixEnd([]byte{0x01, 0xff}))
	assert.Nil(t, PrefixEnd([]byte{0xff, 0xff}))
}

func TestPrefixMsg(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SendPrefixMsg(&buf, [2]byte{0x08, 0x02}, []byte("payload")))

	prefix, err := ReceivePrefix(&buf)
	require.NoError(t, err)
	assert.Equal(t, [2]byte{0x08, 0x02}, prefix)

	msg, err := ReceiveMsg(&buf)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(msg))
}

func TestGobDecodeEmpty(t *testing.T) {
	var s string
	assert.Error(t, GobDecode(nil, &s))
}
