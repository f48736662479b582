package catalog

import (
	"strings"
	"sync"

	"sproutDB/txn"
)

// Table holds the catalog metadata of one table. Its methods are safe for
// concurrent use; values handed out are copies unless noted.
type Table struct {
	mu           sync.RWMutex
	name         string
	databaseName string
	schema       *Schema
	indexes      []*Index
	foreignKeys  []*ForeignKey
	fkSources    []string

	// set while the creating transaction is still running
	creator *txn.Transaction
	// indexes whose creating transaction is still running, by lower-case name
	pendingIndexes map[string]*txn.Transaction
}

func newTable(databaseName, name string, schema *Schema, creator *txn.Transaction) *Table {
	return &Table{
		name:           name,
		databaseName:   databaseName,
		schema:         schema,
		creator:        creator,
		pendingIndexes: make(map[string]*txn.Transaction),
	}
}

func (t *Table) GetName() string {
	return t.name
}

func (t *Table) GetDatabaseName() string {
	return t.databaseName
}

// GetSchema returns the schema owned by the table. Callers must not modify it.
func (t *Table) GetSchema() *Schema {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.schema
}

// AddForeignKey appends an outgoing foreign key; declaration order is kept.
func (t *Table) AddForeignKey(fk *ForeignKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.foreignKeys = append(t.foreignKeys, fk)
}

func (t *Table) GetForeignKeys() []*ForeignKey {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*ForeignKey(nil), t.foreignKeys...)
}

// RegisterForeignKeySource records that the named table references this one.
// A name is recorded once however many keys point here.
func (t *Table) RegisterForeignKeySource(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, source := range t.fkSources {
		if strings.EqualFold(source, name) {
			return
		}
	}
	t.fkSources = append(t.fkSources, name)
}

func (t *Table) GetForeignKeySources() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.fkSources...)
}

func (t *Table) HasForeignKeySource(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, source := range t.fkSources {
		if strings.EqualFold(source, name) {
			return true
		}
	}
	return false
}

func (t *Table) removeForeignKeySource(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, source := range t.fkSources {
		if strings.EqualFold(source, name) {
			t.fkSources = append(t.fkSources[:i], t.fkSources[i+1:]...)
			return
		}
	}
}

func (t *Table) GetIndex(name string) (*Index, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, index := range t.indexes {
		if strings.EqualFold(index.Name, name) {
			return index.Copy(), true
		}
	}
	return nil, false
}

func (t *Table) HasIndex(name string) bool {
	_, ok := t.GetIndex(name)
	return ok
}

// GetIndexes returns the indexes in creation order.
func (t *Table) GetIndexes() []*Index {
	t.mu.RLock()
	defer t.mu.RUnlock()
	indexes := make([]*Index, 0, len(t.indexes))
	for _, index := range t.indexes {
		indexes = append(indexes, index.Copy())
	}
	return indexes
}

func (t *Table) addIndex(index *Index, creator *txn.Transaction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.indexes = append(t.indexes, index)
	if creator != nil {
		t.pendingIndexes[strings.ToLower(index.Name)] = creator
	}
}

// indexPendingFor reports whether the named index is still being created by
// a transaction other than other.
func (t *Table) indexPendingFor(name string, other *txn.Transaction) bool {
	t.mu.RLock()
	creator := t.pendingIndexes[strings.ToLower(name)]
	t.mu.RUnlock()
	return creator != nil && creator != other && creator.IsActive()
}

func (t *Table) publishIndex(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pendingIndexes, strings.ToLower(name))
}

func (t *Table) removeIndex(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pendingIndexes, strings.ToLower(name))
	for i, index := range t.indexes {
		if strings.EqualFold(index.Name, name) {
			t.indexes = append(t.indexes[:i], t.indexes[i+1:]...)
			return
		}
	}
}

// pendingFor reports whether the table is still being created by a
// transaction other than t.
func (t *Table) pendingFor(other *txn.Transaction) bool {
	t.mu.RLock()
	creator := t.creator
	t.mu.RUnlock()
	return creator != nil && creator != other && creator.IsActive()
}

func (t *Table) published() {
	t.mu.Lock()
	t.creator = nil
	t.mu.Unlock()
}
