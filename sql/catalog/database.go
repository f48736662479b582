package catalog

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"sproutDB/txn"
)

type Database struct {
	mu     sync.RWMutex
	name   string
	tables map[string]*Table

	creator *txn.Transaction
}

func newDatabase(name string, creator *txn.Transaction) *Database {
	return &Database{
		name:    name,
		tables:  make(map[string]*Table),
		creator: creator,
	}
}

func (d *Database) GetName() string {
	return d.name
}

// GetTableWithName resolves a table case-insensitively.
func (d *Database) GetTableWithName(name string) (*Table, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	table, ok := d.tables[strings.ToLower(name)]
	if !ok {
		return nil, errors.Wrapf(ErrCatalogLookup, "table %s in database %s", name, d.name)
	}
	return table, nil
}

// ResolveTable is GetTableWithName for use inside transaction t: a table
// another running transaction is still creating fails with ErrSerialization.
func (d *Database) ResolveTable(name string, t *txn.Transaction) (*Table, error) {
	table, err := d.GetTableWithName(name)
	if err != nil {
		return nil, err
	}
	if table.pendingFor(t) {
		return nil, errors.Wrapf(ErrSerialization, "table %s is being created", table.name)
	}
	return table, nil
}

// GetTables returns the tables sorted by name.
func (d *Database) GetTables() []*Table {
	d.mu.RLock()
	defer d.mu.RUnlock()
	tables := make([]*Table, 0, len(d.tables))
	for _, table := range d.tables {
		tables = append(tables, table)
	}
	sort.Slice(tables, func(i, j int) bool {
		return strings.ToLower(tables[i].name) < strings.ToLower(tables[j].name)
	})
	return tables
}

func (d *Database) GetTableCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.tables)
}

func (d *Database) lookup(name string) *Table {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tables[strings.ToLower(name)]
}

func (d *Database) addTable(table *Table) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables[strings.ToLower(table.name)] = table
}

func (d *Database) removeTable(table *Table) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := strings.ToLower(table.name)
	if d.tables[key] == table {
		delete(d.tables, key)
	}
}

func (d *Database) pendingFor(other *txn.Transaction) bool {
	d.mu.RLock()
	creator := d.creator
	d.mu.RUnlock()
	return creator != nil && creator != other && creator.IsActive()
}

func (d *Database) published() {
	d.mu.Lock()
	d.creator = nil
	d.mu.Unlock()
}
