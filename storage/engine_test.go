package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEngine(t *testing.T) {
	m := NewMemory()

	require.NoError(t, m.Set([]byte("b"), []byte("2")))
	require.NoError(t, m.Set([]byte("a"), []byte("1")))
	require.NoError(t, m.Set([]byte("c"), nil))

	v, err := m.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	v, err = m.Get([]byte("c"))
	require.NoError(t, err)
	assert.NotNil(t, v, "empty values must stay distinguishable from missing keys")

	v, err = m.Get([]byte("zz"))
	require.NoError(t, err)
	assert.Nil(t, v)

	items, err := m.Scan([]byte("a"), []byte("c"))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", string(items[0].Key))
	assert.Equal(t, "b", string(items[1].Key))

	require.NoError(t, m.Delete([]byte("a")))
	items, err = m.Scan([]byte{}, nil)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	status, err := m.Status()
	require.NoError(t, err)
	assert.EqualValues(t, 2, status.Keys)

	require.NoError(t, m.Close())
	_, err = m.Get([]byte("b"))
	assert.ErrorIs(t, err, ErrClosed)
}
