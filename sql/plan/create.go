package plan

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"sproutDB/sql/catalog"
)

type CreateType uint8

const (
	CreateTypeInvalid CreateType = iota
	CreateTypeTable
	CreateTypeIndex
	CreateTypeDatabase
)

func (t CreateType) String() string {
	switch t {
	case CreateTypeTable:
		return "TABLE"
	case CreateTypeIndex:
		return "INDEX"
	case CreateTypeDatabase:
		return "DATABASE"
	default:
		return "INVALID"
	}
}

// CreatePlan is a parsed CREATE statement. Which fields are meaningful depends
// on Type; build plans with the New*Plan constructors. Fields are exported
// for gob only.
type CreatePlan struct {
	Type         CreateType
	DatabaseName string
	TableName    string

	Schema      *catalog.Schema
	ForeignKeys []*catalog.ForeignKey

	IndexName  string
	IndexType  catalog.IndexType
	Unique     bool
	IndexAttrs []string
}

func NewCreateTablePlan(database, table string, schema *catalog.Schema, foreignKeys []*catalog.ForeignKey) *CreatePlan {
	return &CreatePlan{
		Type:         CreateTypeTable,
		DatabaseName: database,
		TableName:    table,
		Schema:       schema,
		ForeignKeys:  append([]*catalog.ForeignKey(nil), foreignKeys...),
	}
}

func NewCreateIndexPlan(database, table, index string, kind catalog.IndexType, unique bool, attrs []string) *CreatePlan {
	return &CreatePlan{
		Type:         CreateTypeIndex,
		DatabaseName: database,
		TableName:    table,
		IndexName:    index,
		IndexType:    kind,
		Unique:       unique,
		IndexAttrs:   append([]string(nil), attrs...),
	}
}

func NewCreateDatabasePlan(name string) *CreatePlan {
	return &CreatePlan{
		Type:         CreateTypeDatabase,
		DatabaseName: name,
	}
}

func (p *CreatePlan) GetCreateType() CreateType {
	return p.Type
}

func (p *CreatePlan) GetDatabaseName() string {
	return p.DatabaseName
}

func (p *CreatePlan) GetTableName() string {
	return p.TableName
}

func (p *CreatePlan) GetIndexName() string {
	return p.IndexName
}

func (p *CreatePlan) GetIndexType() catalog.IndexType {
	return p.IndexType
}

func (p *CreatePlan) IsUniqueIndex() bool {
	return p.Unique
}

func (p *CreatePlan) GetIndexAttributes() []string {
	return append([]string(nil), p.IndexAttrs...)
}

// GetForeignKeys returns the declared keys in declaration order.
func (p *CreatePlan) GetForeignKeys() []*catalog.ForeignKey {
	return append([]*catalog.ForeignKey(nil), p.ForeignKeys...)
}

// TakeSchema hands the schema to the caller; the plan no longer holds it.
func (p *CreatePlan) TakeSchema() *catalog.Schema {
	schema := p.Schema
	p.Schema = nil
	return schema
}

func (p *CreatePlan) Validate() error {
	switch p.Type {
	case CreateTypeTable:
		if p.TableName == "" {
			return errors.Wrap(catalog.ErrInvalidRequest, "create table without a table name")
		}
		if p.Schema == nil || len(p.Schema.Columns) == 0 {
			return errors.Wrapf(catalog.ErrInvalidRequest, "create table %s without columns", p.TableName)
		}
		for _, fk := range p.ForeignKeys {
			if fk == nil {
				return errors.Wrapf(catalog.ErrInvalidRequest, "create table %s with a nil foreign key", p.TableName)
			}
			if err := fk.Validate(); err != nil {
				return errors.Wrapf(err, "create table %s", p.TableName)
			}
		}
	case CreateTypeIndex:
		if p.IndexName == "" || p.TableName == "" {
			return errors.Wrap(catalog.ErrInvalidRequest, "create index needs an index and a table name")
		}
		if len(p.IndexAttrs) == 0 {
			return errors.Wrapf(catalog.ErrInvalidRequest, "create index %s without columns", p.IndexName)
		}
		if !p.IndexType.Valid() {
			return errors.Wrapf(catalog.ErrInvalidRequest, "create index %s with unknown type", p.IndexName)
		}
	case CreateTypeDatabase:
		if p.DatabaseName == "" {
			return errors.Wrap(catalog.ErrInvalidRequest, "create database without a name")
		}
	default:
		return errors.Wrapf(catalog.ErrInvalidRequest, "unsupported create type %d", p.Type)
	}
	return nil
}

func (p *CreatePlan) String() string {
	switch p.Type {
	case CreateTypeTable:
		var columns []string
		if p.Schema != nil {
			for _, column := range p.Schema.Columns {
				columns = append(columns, column.String())
			}
		}
		for _, fk := range p.ForeignKeys {
			columns = append(columns, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s) ON UPDATE %s ON DELETE %s",
				strings.Join(fk.GetFKColumnNames(), ", "), fk.GetSinkTableName(),
				strings.Join(fk.GetPKColumnNames(), ", "), fk.GetUpdateAction(), fk.GetDeleteAction()))
		}
		return fmt.Sprintf("CREATE TABLE %s (%s)", qualified(p.DatabaseName, p.TableName), strings.Join(columns, ", "))
	case CreateTypeIndex:
		unique := ""
		if p.Unique {
			unique = "UNIQUE "
		}
		return fmt.Sprintf("CREATE %sINDEX %s ON %s USING %s (%s)", unique, p.IndexName,
			qualified(p.DatabaseName, p.TableName), p.IndexType, strings.Join(p.IndexAttrs, ", "))
	case CreateTypeDatabase:
		return "CREATE DATABASE " + p.DatabaseName
	}
	return "CREATE INVALID"
}

func qualified(database, table string) string {
	if database == "" {
		return table
	}
	return database + "." + table
}
