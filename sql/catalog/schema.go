package catalog

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"sproutDB/sql"
)

type Column struct {
	Name       string
	DataType   sql.DataType
	Length     int
	NullAble   bool
	PrimaryKey bool
	Unique     bool
}

func (c *Column) String() string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("%s %s", c.Name, c.DataType.String()))
	if c.DataType == sql.StringType && c.Length > 0 {
		builder.WriteString(fmt.Sprintf("(%d)", c.Length))
	}
	if c.PrimaryKey {
		builder.WriteString(" PRIMARY KEY")
	}
	if !c.NullAble && !c.PrimaryKey {
		builder.WriteString(" NOT NULL")
	}
	if c.Unique && !c.PrimaryKey {
		builder.WriteString(" UNIQUE")
	}
	return builder.String()
}

// Schema is the ordered column list of a table.
type Schema struct {
	Columns []*Column
}

func NewSchema(columns ...*Column) *Schema {
	return &Schema{Columns: columns}
}

func (s *Schema) Validate() error {
	if s == nil || len(s.Columns) == 0 {
		return errors.New("table columns is empty")
	}

	seen := make(map[string]struct{}, len(s.Columns))
	primaryKeys := 0
	for _, column := range s.Columns {
		if column == nil || column.Name == "" {
			return errors.New("column name must not be empty")
		}
		lower := strings.ToLower(column.Name)
		if _, ok := seen[lower]; ok {
			return errors.Errorf("duplicate column %s", column.Name)
		}
		seen[lower] = struct{}{}

		if !column.DataType.Valid() {
			return errors.Errorf("column %s has invalid type %s", column.Name, column.DataType)
		}
		if column.Length < 0 {
			return errors.Errorf("column %s has negative length", column.Name)
		}
		if column.PrimaryKey {
			primaryKeys++
			if column.NullAble {
				return errors.Errorf("primary key %s cannot be nullable", column.Name)
			}
		}
	}
	if primaryKeys > 1 {
		return errors.New("multiple primary keys in table")
	}
	return nil
}

func (s *Schema) GetColumn(name string) (*Column, error) {
	index, err := s.GetColumnIndex(name)
	if err != nil {
		return nil, err
	}
	return s.Columns[index], nil
}

// GetColumnIndex resolves a column name case-insensitively.
func (s *Schema) GetColumnIndex(name string) (int, error) {
	for i, column := range s.Columns {
		if strings.EqualFold(column.Name, name) {
			return i, nil
		}
	}
	return -1, errors.Wrapf(ErrCatalogLookup, "column %s", name)
}

func (s *Schema) ColumnNames() []string {
	names := make([]string, 0, len(s.Columns))
	for _, column := range s.Columns {
		names = append(names, column.Name)
	}
	return names
}

func (s *Schema) Copy() *Schema {
	columns := make([]*Column, len(s.Columns))
	for i, column := range s.Columns {
		c := *column
		columns[i] = &c
	}
	return &Schema{Columns: columns}
}

// Equal compares column definitions in order.
func (s *Schema) Equal(other *Schema) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.Columns) != len(other.Columns) {
		return false
	}
	for i := range s.Columns {
		if *s.Columns[i] != *other.Columns[i] {
			return false
		}
	}
	return true
}
