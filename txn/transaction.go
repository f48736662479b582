package txn

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"sproutDB/storage"
)

var ErrNotActive = errors.New("transaction is not active")

// ResultType is the terminal outcome recorded for the statement running in a transaction.
type ResultType uint8

const (
	ResultInvalid ResultType = iota
	ResultSuccess
	ResultFailure
	ResultAborted
	ResultNoop
	ResultUnknown
)

func (r ResultType) String() string {
	switch r {
	case ResultInvalid:
		return "INVALID"
	case ResultSuccess:
		return "SUCCESS"
	case ResultFailure:
		return "FAILURE"
	case ResultAborted:
		return "ABORTED"
	case ResultNoop:
		return "NOOP"
	case ResultUnknown:
		return "UNKNOWN"
	default:
		return "INVALID"
	}
}

type State uint8

const (
	StateActive State = iota
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateCommitted:
		return "COMMITTED"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Transaction is the handle statements run under. It carries the MVCC
// snapshot, the result slot and the hooks run on commit and abort.
type Transaction struct {
	mu          sync.Mutex
	id          uuid.UUID
	mvcc        *storage.MVCCTransaction
	state       State
	result      ResultType
	cause       error
	undo        []func()
	commitHooks []func(*Transaction) error
}

func newTransaction(mvcc *storage.MVCCTransaction) *Transaction {
	return &Transaction{
		id:     uuid.New(),
		mvcc:   mvcc,
		state:  StateActive,
		result: ResultInvalid,
	}
}

func (t *Transaction) ID() uuid.UUID {
	return t.id
}

func (t *Transaction) Version() storage.Version {
	return t.mvcc.Version()
}

func (t *Transaction) ReadOnly() bool {
	return t.mvcc.ReadOnly()
}

func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transaction) IsActive() bool {
	return t.State() == StateActive
}

func (t *Transaction) GetResult() ResultType {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// SetResult overwrites the result slot; the previous value is never consulted.
func (t *Transaction) SetResult(result ResultType) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.result = result
}

// Cause explains a non-success result, nil otherwise.
func (t *Transaction) Cause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cause
}

func (t *Transaction) SetCause(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cause = err
}

// OnAbort registers an undo action. Undo actions run in reverse registration order.
func (t *Transaction) OnAbort(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.undo = append(t.undo, fn)
}

// OnCommit registers a hook run before the MVCC commit; an error aborts the transaction.
func (t *Transaction) OnCommit(fn func(*Transaction) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commitHooks = append(t.commitHooks, fn)
}

func (t *Transaction) Set(key, value []byte) error {
	if !t.IsActive() {
		return ErrNotActive
	}
	return t.mvcc.Set(key, value)
}

func (t *Transaction) Delete(key []byte) error {
	if !t.IsActive() {
		return ErrNotActive
	}
	return t.mvcc.Delete(key)
}

func (t *Transaction) Get(key []byte) ([]byte, error) {
	return t.mvcc.Get(key)
}

func (t *Transaction) ScanPrefix(prefix []byte) ([]*storage.ByteMap, error) {
	return t.mvcc.ScanPrefix(prefix)
}
