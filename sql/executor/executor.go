package executor

import (
	"github.com/pkg/errors"

	"sproutDB/sql/catalog"
	"sproutDB/txn"
)

var ErrNotInitialized = errors.New("executor used before Init")

// AbstractExecutor is one node of an executor tree. Execute reports whether
// a row was produced.
type AbstractExecutor interface {
	Init() error
	Execute() (bool, error)
}

// ExecutorContext is the per statement state shared by executors.
type ExecutorContext struct {
	Txn *txn.Transaction
	// used when a plan names no database
	DefaultDatabase string
}

func NewExecutorContext(t *txn.Transaction, defaultDatabase string) *ExecutorContext {
	return &ExecutorContext{
		Txn:             t,
		DefaultDatabase: defaultDatabase,
	}
}

func (c *ExecutorContext) GetTransaction() *txn.Transaction {
	return c.Txn
}

// Catalog is the part of the catalog DDL executors mutate.
type Catalog interface {
	CreateDatabase(name string, t *txn.Transaction) (txn.ResultType, error)
	CreateTable(database, table string, schema *catalog.Schema, t *txn.Transaction) (txn.ResultType, error)
	CreateIndex(database, table string, attrs []string, index string, unique bool, kind catalog.IndexType, t *txn.Transaction) (txn.ResultType, error)
	GetDatabaseWithName(name string) (*catalog.Database, error)
}
