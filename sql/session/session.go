package session

import (
	"github.com/pkg/errors"

	"sproutDB/logger"
	"sproutDB/sql/catalog"
	"sproutDB/sql/executor"
	"sproutDB/sql/plan"
	"sproutDB/txn"
)

var (
	ErrInTransaction = errors.New("already in a transaction")
	ErrNoTransaction = errors.New("not in a transaction")
)

// Result describes the outcome of one session request.
type Result struct {
	Statement string
	Status    txn.ResultType
	// cause of a non-success Status
	Error    string
	TxnID    string
	Version  uint64
	ReadOnly bool
}

// TableInfo is a detached copy of a table's catalog entry.
type TableInfo struct {
	Database          string
	Name              string
	Columns           []*catalog.Column
	Indexes           []*catalog.Index
	ForeignKeys       []*catalog.ForeignKey
	ForeignKeySources []string
}

// Session runs statements for one client. Without an explicit transaction
// every statement runs in its own, committed on success and aborted otherwise.
type Session struct {
	Manager         *txn.Manager
	Catalog         *catalog.Catalog
	DefaultDatabase string
	Txn             *txn.Transaction
}

func NewSession(manager *txn.Manager, c *catalog.Catalog) *Session {
	return &Session{
		Manager:         manager,
		Catalog:         c,
		DefaultDatabase: c.DefaultDatabase(),
	}
}

func (s *Session) Begin(readOnly bool) (*Result, error) {
	if s.Txn != nil {
		return nil, ErrInTransaction
	}
	var (
		t   *txn.Transaction
		err error
	)
	if readOnly {
		t, err = s.Manager.BeginReadOnly()
	} else {
		t, err = s.Manager.Begin()
	}
	if err != nil {
		return nil, err
	}
	s.Txn = t
	return &Result{
		Statement: "BEGIN",
		Status:    txn.ResultSuccess,
		TxnID:     t.ID().String(),
		Version:   uint64(t.Version()),
		ReadOnly:  readOnly,
	}, nil
}

func (s *Session) Commit() (*Result, error) {
	if s.Txn == nil {
		return nil, ErrNoTransaction
	}
	t := s.Txn
	s.Txn = nil
	if err := s.Manager.Commit(t); err != nil {
		if t.IsActive() {
			s.abort(t)
		}
		return nil, err
	}
	return &Result{
		Statement: "COMMIT",
		Status:    txn.ResultSuccess,
		TxnID:     t.ID().String(),
		Version:   uint64(t.Version()),
		ReadOnly:  t.ReadOnly(),
	}, nil
}

func (s *Session) Rollback() (*Result, error) {
	if s.Txn == nil {
		return nil, ErrNoTransaction
	}
	t := s.Txn
	s.Txn = nil
	if err := s.Manager.Abort(t); err != nil {
		return nil, err
	}
	return &Result{
		Statement: "ROLLBACK",
		Status:    txn.ResultAborted,
		TxnID:     t.ID().String(),
		Version:   uint64(t.Version()),
		ReadOnly:  t.ReadOnly(),
	}, nil
}

// Execute runs a CREATE plan. An error means the statement left no trace:
// a transaction it ran in has been aborted, unless the plan was rejected
// before touching the catalog.
func (s *Session) Execute(p *plan.CreatePlan) (*Result, error) {
	if p == nil {
		return nil, errors.Wrap(catalog.ErrInvalidRequest, "no plan")
	}
	statement := p.String()

	t := s.Txn
	implicit := t == nil
	if implicit {
		var err error
		if t, err = s.Manager.Begin(); err != nil {
			return nil, err
		}
	}

	e := executor.NewCreateExecutor(p, executor.NewExecutorContext(t, s.DefaultDatabase), s.Catalog)
	if err := e.Init(); err != nil {
		if implicit {
			s.abort(t)
		}
		return nil, err
	}
	_, err := e.Execute()
	status := t.GetResult()
	cause := t.Cause()

	if err != nil {
		// the table may be half registered, only an abort restores the catalog
		logger.Warnf("aborting txn %s after %s: %v", t.ID(), statement, err)
		s.abort(t)
		if !implicit {
			s.Txn = nil
		}
		return nil, err
	}

	result := &Result{
		Statement: statement,
		Status:    status,
		TxnID:     t.ID().String(),
		Version:   uint64(t.Version()),
		ReadOnly:  t.ReadOnly(),
	}
	if cause != nil {
		result.Error = cause.Error()
	}

	switch {
	case implicit && status == txn.ResultSuccess:
		if err := s.Manager.Commit(t); err != nil {
			if t.IsActive() {
				s.abort(t)
			}
			return nil, err
		}
	case implicit:
		s.abort(t)
	case status == txn.ResultAborted:
		s.abort(t)
		s.Txn = nil
	}
	return result, nil
}

func (s *Session) abort(t *txn.Transaction) {
	if err := s.Manager.Abort(t); err != nil {
		logger.Errorf("abort txn %s: %v", t.ID(), err)
	}
}

// ReadTable describes a table as currently registered in the catalog.
func (s *Session) ReadTable(database, table string) (*TableInfo, error) {
	if database == "" {
		database = s.DefaultDatabase
	}
	t, err := s.Catalog.GetTableWithName(database, table)
	if err != nil {
		return nil, err
	}
	return &TableInfo{
		Database:          t.GetDatabaseName(),
		Name:              t.GetName(),
		Columns:           t.GetSchema().Copy().Columns,
		Indexes:           t.GetIndexes(),
		ForeignKeys:       t.GetForeignKeys(),
		ForeignKeySources: t.GetForeignKeySources(),
	}, nil
}

func (s *Session) ListTables(database string) ([]string, error) {
	if database == "" {
		database = s.DefaultDatabase
	}
	db, err := s.Catalog.GetDatabaseWithName(database)
	if err != nil {
		return nil, err
	}
	tables := db.GetTables()
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.GetName())
	}
	return names, nil
}

// Close aborts a transaction left open by the client.
func (s *Session) Close() {
	if s.Txn != nil {
		s.abort(s.Txn)
		s.Txn = nil
	}
}
