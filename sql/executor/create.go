package executor

import (
	"fmt"

	"github.com/pkg/errors"

	"sproutDB/logger"
	"sproutDB/sql/catalog"
	"sproutDB/sql/plan"
	"sproutDB/txn"
)

// CreateExecutor runs one CREATE plan. The catalog outcome of the primary
// create call is recorded on the transaction as is. Errors from the foreign
// key phase that follows a successful CREATE TABLE are returned from Execute
// and leave the recorded SUCCESS in place; nothing already created is undone
// here, the caller is expected to abort the transaction.
type CreateExecutor struct {
	plan    *plan.CreatePlan
	context *ExecutorContext
	catalog Catalog

	initialized bool
	done        bool
}

func NewCreateExecutor(p *plan.CreatePlan, context *ExecutorContext, c Catalog) *CreateExecutor {
	return &CreateExecutor{
		plan:    p,
		context: context,
		catalog: c,
	}
}

func (e *CreateExecutor) Init() error {
	if e.plan == nil {
		return errors.Wrap(catalog.ErrInvalidRequest, "create executor without a plan")
	}
	if e.context == nil || e.context.Txn == nil {
		return errors.Wrap(catalog.ErrInvalidRequest, "create executor without a transaction")
	}
	if e.catalog == nil {
		return errors.Wrap(catalog.ErrInvalidRequest, "create executor without a catalog")
	}
	if err := e.plan.Validate(); err != nil {
		return err
	}
	e.initialized = true
	logger.Debugf("create executor initialized for %s", e.plan)
	return nil
}

// Execute never produces a row, so the returned bool is always false.
func (e *CreateExecutor) Execute() (bool, error) {
	if !e.initialized {
		return false, ErrNotInitialized
	}
	if e.done {
		return false, nil
	}
	e.done = true

	switch e.plan.GetCreateType() {
	case plan.CreateTypeTable:
		return false, e.ExecuteCreateTable()
	case plan.CreateTypeIndex:
		return false, e.ExecuteCreateIndex()
	case plan.CreateTypeDatabase:
		return false, e.executeCreateDatabase()
	}
	return false, errors.Wrapf(catalog.ErrInvalidRequest, "unsupported create type %s", e.plan.GetCreateType())
}

func (e *CreateExecutor) ExecuteCreateTable() error {
	t := e.context.Txn
	database := e.databaseName()
	table := e.plan.GetTableName()

	result, err := e.catalog.CreateTable(database, table, e.plan.TakeSchema(), t)
	record(t, result, err)

	switch result {
	case txn.ResultSuccess:
		logger.Debugf("created table %s.%s", database, table)
	case txn.ResultFailure:
		logger.Debugf("create table %s.%s failed: %v", database, table, err)
		return nil
	default:
		logger.Debugf("create table %s.%s result %s: %v", database, table, result, err)
		return nil
	}

	return e.registerForeignKeys(database, table)
}

// registerForeignKeys attaches every declared key to the new table in
// declaration order, records the table on each sink and indexes the source
// columns of keys with a referential action. Auto indexes are numbered
// among themselves starting at 1.
func (e *CreateExecutor) registerForeignKeys(database, table string) error {
	foreignKeys := e.plan.GetForeignKeys()
	if len(foreignKeys) == 0 {
		return nil
	}

	db, err := e.catalog.GetDatabaseWithName(database)
	if err != nil {
		return errors.Wrapf(err, "register foreign keys of %s", table)
	}
	source, err := db.GetTableWithName(table)
	if err != nil {
		return errors.Wrapf(err, "register foreign keys of %s", table)
	}

	count := 1
	for _, fk := range foreignKeys {
		source.AddForeignKey(fk)

		sink, err := db.ResolveTable(fk.GetSinkTableName(), e.context.Txn)
		if err != nil {
			return errors.Wrapf(err, "foreign key %s of %s", fk.GetName(), source.GetName())
		}
		sink.RegisterForeignKeySource(source.GetName())

		if !fk.NeedsIndex() {
			continue
		}
		columns := fk.GetFKColumnNames()
		indexName := fmt.Sprintf("%s_FK_%d", source.GetName(), count)
		result, err := e.catalog.CreateIndex(database, source.GetName(), columns, indexName, false, catalog.IndexBWTree, e.context.Txn)
		if result != txn.ResultSuccess {
			if err == nil {
				err = errors.Errorf("result %s", result)
			}
			return errors.Wrapf(catalog.ErrCatalogMutation, "foreign key index %s: %v", indexName, err)
		}
		logger.Debugf("added foreign key index %s on %s", indexName, source.GetName())
		for _, column := range columns {
			logger.Debugf("foreign key column: %s", column)
		}
		count++
	}
	return nil
}

func (e *CreateExecutor) ExecuteCreateIndex() error {
	t := e.context.Txn
	database := e.databaseName()

	result, err := e.catalog.CreateIndex(
		database,
		e.plan.GetTableName(),
		e.plan.GetIndexAttributes(),
		e.plan.GetIndexName(),
		e.plan.IsUniqueIndex(),
		e.plan.GetIndexType(),
		t,
	)
	record(t, result, err)
	logger.Debugf("create index %s on %s.%s result %s", e.plan.GetIndexName(), database, e.plan.GetTableName(), result)
	return nil
}

func (e *CreateExecutor) executeCreateDatabase() error {
	t := e.context.Txn
	result, err := e.catalog.CreateDatabase(e.plan.GetDatabaseName(), t)
	record(t, result, err)
	logger.Debugf("create database %s result %s", e.plan.GetDatabaseName(), result)
	return nil
}

func (e *CreateExecutor) databaseName() string {
	if database := e.plan.GetDatabaseName(); database != "" {
		return database
	}
	return e.context.DefaultDatabase
}

func record(t *txn.Transaction, result txn.ResultType, cause error) {
	t.SetResult(result)
	if result == txn.ResultSuccess {
		cause = nil
	}
	t.SetCause(cause)
}
