package txn

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"sproutDB/logger"
	"sproutDB/storage"
)

// Manager begins and finishes transactions over one MVCC store.
type Manager struct {
	mu     sync.Mutex
	mvcc   *storage.MVCC
	active map[uuid.UUID]*Transaction
}

func NewManager(engine storage.Engine) *Manager {
	return &Manager{
		mvcc:   storage.NewMVCC(engine),
		active: make(map[uuid.UUID]*Transaction),
	}
}

// Recover rolls back transactions that were still running when the store
// was last closed.
func (m *Manager) Recover() error {
	n, err := m.mvcc.RollbackStale()
	if err != nil {
		return errors.Wrap(err, "recover transactions")
	}
	if n > 0 {
		logger.Warnf("rolled back %d unfinished transactions", n)
	}
	return nil
}

func (m *Manager) Begin() (*Transaction, error) {
	mvccTxn, err := m.mvcc.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "begin transaction")
	}
	t := newTransaction(mvccTxn)
	m.mu.Lock()
	m.active[t.id] = t
	m.mu.Unlock()
	logger.Debugf("txn %s: begin at version %d", t.id, t.Version())
	return t, nil
}

func (m *Manager) BeginReadOnly() (*Transaction, error) {
	mvccTxn, err := m.mvcc.BeginReadOnly()
	if err != nil {
		return nil, errors.Wrap(err, "begin read-only transaction")
	}
	return newTransaction(mvccTxn), nil
}

// Commit runs the commit hooks in registration order and makes the writes durable.
// A failing hook aborts the transaction and its error is returned.
func (m *Manager) Commit(t *Transaction) error {
	if !t.IsActive() {
		return ErrNotActive
	}

	t.mu.Lock()
	hooks := t.commitHooks
	t.mu.Unlock()
	for _, hook := range hooks {
		if err := hook(t); err != nil {
			if abortErr := m.Abort(t); abortErr != nil {
				logger.Errorf("txn %s: abort after failed commit hook: %v", t.id, abortErr)
			}
			return errors.Wrap(err, "commit hook")
		}
	}

	if err := t.mvcc.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}

	t.mu.Lock()
	t.state = StateCommitted
	t.undo = nil
	t.commitHooks = nil
	t.mu.Unlock()
	m.forget(t)
	logger.Debugf("txn %s: committed version %d", t.id, t.Version())
	return nil
}

// Abort discards the MVCC writes, runs the undo actions newest first and
// records ABORTED as the transaction result.
func (m *Manager) Abort(t *Transaction) error {
	if !t.IsActive() {
		return ErrNotActive
	}

	err := t.mvcc.Rollback()

	t.mu.Lock()
	undo := t.undo
	t.undo = nil
	t.commitHooks = nil
	t.state = StateAborted
	t.result = ResultAborted
	t.mu.Unlock()

	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
	m.forget(t)
	logger.Debugf("txn %s: aborted version %d", t.id, t.Version())
	if err != nil {
		return errors.Wrap(err, "rollback")
	}
	return nil
}

func (m *Manager) forget(t *Transaction) {
	m.mu.Lock()
	delete(m.active, t.id)
	m.mu.Unlock()
}

func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *Manager) Status() (*storage.MVCCStatus, error) {
	return m.mvcc.Status()
}
