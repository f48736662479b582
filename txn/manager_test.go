package txn

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sproutDB/storage"
)

func newTestManager() *Manager {
	return NewManager(storage.NewMemory())
}

func TestResultSlotOverwrite(t *testing.T) {
	m := newTestManager()
	tx, err := m.Begin()
	require.NoError(t, err)

	assert.Equal(t, ResultInvalid, tx.GetResult())
	tx.SetResult(ResultFailure)
	tx.SetResult(ResultSuccess)
	assert.Equal(t, ResultSuccess, tx.GetResult())
	assert.Equal(t, "SUCCESS", tx.GetResult().String())
}

func TestCommitRunsHooksAndPersists(t *testing.T) {
	m := newTestManager()
	tx, err := m.Begin()
	require.NoError(t, err)

	var order []string
	tx.OnCommit(func(t *Transaction) error {
		order = append(order, "first")
		return t.Set([]byte("k"), []byte("v"))
	})
	tx.OnCommit(func(*Transaction) error {
		order = append(order, "second")
		return nil
	})
	tx.OnAbort(func() { order = append(order, "undo") })

	require.NoError(t, m.Commit(tx))
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, StateCommitted, tx.State())
	assert.Equal(t, 0, m.ActiveCount())

	ro, err := m.BeginReadOnly()
	require.NoError(t, err)
	v, err := ro.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	assert.ErrorIs(t, m.Commit(tx), ErrNotActive)
}

func TestAbortRunsUndoInReverse(t *testing.T) {
	m := newTestManager()
	tx, err := m.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Set([]byte("k"), []byte("v")))

	var order []int
	tx.OnAbort(func() { order = append(order, 1) })
	tx.OnAbort(func() { order = append(order, 2) })

	require.NoError(t, m.Abort(tx))
	assert.Equal(t, []int{2, 1}, order)
	assert.Equal(t, ResultAborted, tx.GetResult())
	assert.ErrorIs(t, tx.Set([]byte("k"), []byte("v")), ErrNotActive)

	ro, err := m.BeginReadOnly()
	require.NoError(t, err)
	v, err := ro.Get([]byte("k"))
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestFailingCommitHookAborts(t *testing.T) {
	m := newTestManager()
	tx, err := m.Begin()
	require.NoError(t, err)

	undone := false
	tx.OnAbort(func() { undone = true })
	boom := errors.New("boom")
	tx.OnCommit(func(*Transaction) error { return boom })

	err = m.Commit(tx)
	assert.ErrorIs(t, err, boom)
	assert.True(t, undone)
	assert.Equal(t, StateAborted, tx.State())
}

func TestTransactionIDsAreUnique(t *testing.T) {
	m := newTestManager()
	a, err := m.Begin()
	require.NoError(t, err)
	b, err := m.Begin()
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Less(t, a.Version(), b.Version())
	assert.Equal(t, 2, m.ActiveCount())

	status, err := m.Status()
	require.NoError(t, err)
	assert.EqualValues(t, 2, status.ActiveTxns)
}

func TestRecoverRollsBackUnfinished(t *testing.T) {
	engine := storage.NewMemory()
	crashed := NewManager(engine)
	tx, err := crashed.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Set([]byte("k"), []byte("lost")))

	// a new process over the same store
	m := NewManager(engine)
	require.NoError(t, m.Recover())
	status, err := m.Status()
	require.NoError(t, err)
	assert.EqualValues(t, 0, status.ActiveTxns)

	next, err := m.Begin()
	require.NoError(t, err)
	value, err := next.Get([]byte("k"))
	require.NoError(t, err)
	assert.Nil(t, value)
	require.NoError(t, next.Set([]byte("k"), []byte("kept")))
	require.NoError(t, m.Commit(next))
}
