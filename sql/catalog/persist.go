package catalog

import (
	"strings"

	"github.com/pkg/errors"

	"sproutDB/txn"
	"sproutDB/util"
)

const (
	KeyPrefix         byte = 0x05
	DatabaseKeyPrefix byte = 0x01
	TableKeyPrefix    byte = 0x02
)

type databaseDescriptor struct {
	Name string
}

type tableDescriptor struct {
	Name        string
	Database    string
	Columns     []*Column
	Indexes     []*Index
	ForeignKeys []*ForeignKey
}

func databaseKey(name string) []byte {
	return append([]byte{KeyPrefix, DatabaseKeyPrefix}, strings.ToLower(name)...)
}

func tableKey(database, table string) []byte {
	return util.BufferAppend(
		[]byte{KeyPrefix, TableKeyPrefix},
		[]byte(strings.ToLower(database)),
		[]byte{0x00},
		[]byte(strings.ToLower(table)),
	)
}

// descriptorFor snapshots what t may persist of table: indexes created by
// transactions still running elsewhere are left out.
func descriptorFor(table *Table, t *txn.Transaction) *tableDescriptor {
	table.mu.RLock()
	defer table.mu.RUnlock()

	desc := &tableDescriptor{
		Name:        table.name,
		Database:    table.databaseName,
		Columns:     table.schema.Columns,
		ForeignKeys: append([]*ForeignKey(nil), table.foreignKeys...),
	}
	for _, index := range table.indexes {
		creator, pending := table.pendingIndexes[strings.ToLower(index.Name)]
		if pending && creator != t && creator.State() != txn.StateCommitted {
			continue
		}
		desc.Indexes = append(desc.Indexes, index)
	}
	return desc
}

func writeDatabase(t *txn.Transaction, db *Database) error {
	value, err := util.GobEncode(&databaseDescriptor{Name: db.name})
	if err != nil {
		return errors.Wrap(err, "encode database descriptor")
	}
	return t.Set(databaseKey(db.name), value)
}

func writeTable(t *txn.Transaction, desc *tableDescriptor) error {
	value, err := util.GobEncode(desc)
	if err != nil {
		return errors.Wrap(err, "encode table descriptor")
	}
	return t.Set(tableKey(desc.Database, desc.Name), value)
}

// load rebuilds the registry from the committed descriptors visible to t.
// Foreign key sources are derived from the outgoing keys of every table.
func (c *Catalog) load(t *txn.Transaction) error {
	items, err := t.ScanPrefix([]byte{KeyPrefix, DatabaseKeyPrefix})
	if err != nil {
		return errors.Wrap(err, "scan databases")
	}
	for _, item := range items {
		desc := databaseDescriptor{}
		if err := util.GobDecode(item.Value, &desc); err != nil {
			return errors.Wrap(err, "decode database descriptor")
		}
		c.databases[strings.ToLower(desc.Name)] = newDatabase(desc.Name, nil)
	}

	items, err = t.ScanPrefix([]byte{KeyPrefix, TableKeyPrefix})
	if err != nil {
		return errors.Wrap(err, "scan tables")
	}
	var tables []*Table
	for _, item := range items {
		desc := tableDescriptor{}
		if err := util.GobDecode(item.Value, &desc); err != nil {
			return errors.Wrap(err, "decode table descriptor")
		}
		db, ok := c.databases[strings.ToLower(desc.Database)]
		if !ok {
			return errors.Errorf("table %s belongs to unknown database %s", desc.Name, desc.Database)
		}
		table := newTable(db.name, desc.Name, &Schema{Columns: desc.Columns}, nil)
		table.indexes = desc.Indexes
		table.foreignKeys = desc.ForeignKeys
		db.addTable(table)
		tables = append(tables, table)
	}

	for _, table := range tables {
		db := c.databases[strings.ToLower(table.databaseName)]
		for _, fk := range table.foreignKeys {
			if sink := db.lookup(fk.GetSinkTableName()); sink != nil {
				sink.RegisterForeignKeySource(table.name)
			}
		}
	}
	return nil
}
