package catalog

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"sproutDB/logger"
	"sproutDB/storage"
	"sproutDB/txn"
)

// Catalog is the registry of databases, tables and indexes. Every mutation
// runs under a caller supplied transaction: it is written to the store
// right away, undone in memory if the transaction aborts and published
// once it commits.
type Catalog struct {
	mu              sync.RWMutex
	manager         *txn.Manager
	defaultDatabase string
	databases       map[string]*Database
}

// NewCatalog recovers the committed catalog from the store behind manager
// and creates defaultDatabase if it does not exist yet.
func NewCatalog(manager *txn.Manager, defaultDatabase string) (*Catalog, error) {
	if defaultDatabase == "" {
		return nil, errors.Wrap(ErrInvalidRequest, "default database name is empty")
	}
	c := &Catalog{
		manager:         manager,
		defaultDatabase: defaultDatabase,
		databases:       make(map[string]*Database),
	}

	snapshot, err := manager.BeginReadOnly()
	if err != nil {
		return nil, err
	}
	err = c.load(snapshot)
	if commitErr := manager.Commit(snapshot); err == nil {
		err = commitErr
	}
	if err != nil {
		return nil, errors.Wrap(err, "recover catalog")
	}

	if _, err := c.GetDatabaseWithName(defaultDatabase); err == nil {
		logger.Infof("catalog recovered %d databases", len(c.databases))
		return c, nil
	}

	bootstrap, err := manager.Begin()
	if err != nil {
		return nil, err
	}
	if _, err := c.CreateDatabase(defaultDatabase, bootstrap); err != nil {
		_ = manager.Abort(bootstrap)
		return nil, errors.Wrap(err, "create default database")
	}
	if err := manager.Commit(bootstrap); err != nil {
		return nil, errors.Wrap(err, "create default database")
	}
	return c, nil
}

func (c *Catalog) DefaultDatabase() string {
	return c.defaultDatabase
}

func (c *Catalog) GetDatabaseWithName(name string) (*Database, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	db, ok := c.databases[strings.ToLower(name)]
	if !ok {
		return nil, errors.Wrapf(ErrCatalogLookup, "database %s", name)
	}
	return db, nil
}

func (c *Catalog) GetTableWithName(database, table string) (*Table, error) {
	db, err := c.GetDatabaseWithName(database)
	if err != nil {
		return nil, err
	}
	return db.GetTableWithName(table)
}

// ListDatabases returns the databases sorted by name.
func (c *Catalog) ListDatabases() []*Database {
	c.mu.RLock()
	defer c.mu.RUnlock()
	dbs := make([]*Database, 0, len(c.databases))
	for _, db := range c.databases {
		dbs = append(dbs, db)
	}
	sort.Slice(dbs, func(i, j int) bool {
		return strings.ToLower(dbs[i].name) < strings.ToLower(dbs[j].name)
	})
	return dbs
}

func (c *Catalog) CreateDatabase(name string, t *txn.Transaction) (txn.ResultType, error) {
	if result, err := checkWritable(t); err != nil {
		return result, err
	}
	if name == "" {
		return txn.ResultFailure, errors.Wrap(ErrInvalidRequest, "database name is empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.databases[strings.ToLower(name)]; ok {
		if existing.pendingFor(t) {
			return txn.ResultAborted, errors.Wrapf(ErrSerialization, "database %s is being created", name)
		}
		return txn.ResultFailure, errors.Wrapf(ErrCatalogConflict, "database %s", name)
	}

	db := newDatabase(name, t)
	if err := writeDatabase(t, db); err != nil {
		return classifyWriteError(err, "database "+name)
	}
	c.databases[strings.ToLower(name)] = db

	t.OnAbort(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.databases[strings.ToLower(name)] == db {
			delete(c.databases, strings.ToLower(name))
		}
	})
	t.OnCommit(func(*txn.Transaction) error {
		db.published()
		logger.Infof("catalog: created database %s", name)
		return nil
	})
	return txn.ResultSuccess, nil
}

// CreateTable registers a new table built from schema, which the table takes
// ownership of on success. Foreign keys attached to the table later in the
// same transaction are persisted when it commits.
func (c *Catalog) CreateTable(database, table string, schema *Schema, t *txn.Transaction) (txn.ResultType, error) {
	if result, err := checkWritable(t); err != nil {
		return result, err
	}
	if table == "" {
		return txn.ResultFailure, errors.Wrap(ErrInvalidRequest, "table name is empty")
	}
	if schema == nil {
		return txn.ResultFailure, errors.Wrapf(ErrInvalidRequest, "table %s has no schema", table)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	db, ok := c.databases[strings.ToLower(database)]
	if !ok {
		return txn.ResultFailure, errors.Wrapf(ErrCatalogLookup, "database %s", database)
	}
	if db.pendingFor(t) {
		return txn.ResultAborted, errors.Wrapf(ErrSerialization, "database %s is being created", database)
	}
	if existing := db.lookup(table); existing != nil {
		if existing.pendingFor(t) {
			return txn.ResultAborted, errors.Wrapf(ErrSerialization, "table %s is being created", table)
		}
		return txn.ResultFailure, errors.Wrapf(ErrCatalogConflict, "table %s in database %s", table, db.name)
	}
	if err := schema.Validate(); err != nil {
		return txn.ResultFailure, errors.Wrapf(ErrCatalogMutation, "table %s: %v", table, err)
	}

	created := newTable(db.name, table, schema, t)
	if err := writeTable(t, descriptorFor(created, t)); err != nil {
		return classifyWriteError(err, "table "+table)
	}
	db.addTable(created)

	t.OnAbort(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		db.removeTable(created)
		for _, fk := range created.GetForeignKeys() {
			if sink := db.lookup(fk.GetSinkTableName()); sink != nil {
				sink.removeForeignKeySource(created.name)
			}
		}
	})
	t.OnCommit(func(t *txn.Transaction) error {
		// a sink dropped by an abort after it was resolved
		for _, fk := range created.GetForeignKeys() {
			if sink := db.lookup(fk.GetSinkTableName()); sink == nil || sink.pendingFor(t) {
				return errors.Wrapf(ErrCatalogLookup, "foreign key %s of %s references %s", fk.GetName(), created.name, fk.GetSinkTableName())
			}
		}
		if err := writeTable(t, descriptorFor(created, t)); err != nil {
			return errors.Wrapf(err, "persist table %s", created.name)
		}
		created.published()
		logger.Infof("catalog: created table %s.%s with %d foreign keys", db.name, created.name, len(created.GetForeignKeys()))
		return nil
	})
	logger.Debugf("catalog: txn %s created table %s.%s", t.ID(), db.name, table)
	return txn.ResultSuccess, nil
}

// CreateIndex registers index metadata on an existing table. attrs are
// resolved case-insensitively against the table schema.
func (c *Catalog) CreateIndex(database, table string, attrs []string, index string, unique bool, kind IndexType, t *txn.Transaction) (txn.ResultType, error) {
	if result, err := checkWritable(t); err != nil {
		return result, err
	}
	if index == "" || table == "" {
		return txn.ResultFailure, errors.Wrap(ErrInvalidRequest, "index and table names must not be empty")
	}
	if len(attrs) == 0 {
		return txn.ResultFailure, errors.Wrapf(ErrInvalidRequest, "index %s has no columns", index)
	}
	if !kind.Valid() {
		return txn.ResultFailure, errors.Wrapf(ErrInvalidRequest, "index %s has unknown type %d", index, kind)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	db, ok := c.databases[strings.ToLower(database)]
	if !ok {
		return txn.ResultFailure, errors.Wrapf(ErrCatalogLookup, "database %s", database)
	}
	target := db.lookup(table)
	if target == nil {
		return txn.ResultFailure, errors.Wrapf(ErrCatalogLookup, "table %s in database %s", table, db.name)
	}
	if target.pendingFor(t) {
		return txn.ResultAborted, errors.Wrapf(ErrSerialization, "table %s is being created", table)
	}
	if target.indexPendingFor(index, t) {
		return txn.ResultAborted, errors.Wrapf(ErrSerialization, "index %s on table %s is being created", index, target.name)
	}
	if target.HasIndex(index) {
		return txn.ResultFailure, errors.Wrapf(ErrCatalogConflict, "index %s on table %s", index, target.name)
	}

	schema := target.GetSchema()
	columns := make([]string, 0, len(attrs))
	seen := make(map[string]struct{}, len(attrs))
	for _, attr := range attrs {
		column, err := schema.GetColumn(attr)
		if err != nil {
			return txn.ResultFailure, errors.Wrapf(err, "index %s on table %s", index, target.name)
		}
		lower := strings.ToLower(column.Name)
		if _, dup := seen[lower]; dup {
			return txn.ResultFailure, errors.Wrapf(ErrInvalidRequest, "index %s repeats column %s", index, column.Name)
		}
		seen[lower] = struct{}{}
		columns = append(columns, column.Name)
	}

	created := &Index{
		Name:      index,
		TableName: target.name,
		Columns:   columns,
		Unique:    unique,
		Type:      kind,
	}
	target.addIndex(created, t)
	if err := writeTable(t, descriptorFor(target, t)); err != nil {
		target.removeIndex(index)
		return classifyWriteError(err, "index "+index)
	}

	t.OnAbort(func() {
		target.removeIndex(created.Name)
	})
	t.OnCommit(func(*txn.Transaction) error {
		target.publishIndex(created.Name)
		logger.Infof("catalog: created %s index %s on %s.%s(%s)", created.Type, created.Name, db.name, target.name, strings.Join(created.Columns, ", "))
		return nil
	})
	logger.Debugf("catalog: txn %s created index %s on %s.%s", t.ID(), index, db.name, target.name)
	return txn.ResultSuccess, nil
}

func checkWritable(t *txn.Transaction) (txn.ResultType, error) {
	if t == nil {
		return txn.ResultFailure, errors.Wrap(ErrInvalidRequest, "no transaction")
	}
	if !t.IsActive() {
		return txn.ResultAborted, errors.Wrapf(txn.ErrNotActive, "txn %s", t.ID())
	}
	if t.ReadOnly() {
		return txn.ResultFailure, errors.Wrap(ErrCatalogMutation, "read-only transaction")
	}
	return txn.ResultSuccess, nil
}

func classifyWriteError(err error, object string) (txn.ResultType, error) {
	if errors.Is(err, storage.ErrSerialization) || errors.Is(err, txn.ErrNotActive) {
		return txn.ResultAborted, errors.Wrapf(err, "write %s", object)
	}
	return txn.ResultFailure, errors.Wrapf(ErrCatalogMutation, "write %s: %v", object, err)
}
