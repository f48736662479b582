package sql

import (
	"strings"

	"github.com/pkg/errors"
)

type DataType byte

const (
	NullType DataType = iota
	BoolType
	IntType
	FloatType
	StringType
)

func (d DataType) String() string {
	switch d {
	case NullType:
		return "NULL"
	case BoolType:
		return "BOOL"
	case IntType:
		return "INT"
	case FloatType:
		return "FLOAT"
	case StringType:
		return "VARCHAR"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether a column may be declared with this type.
func (d DataType) Valid() bool {
	return d >= BoolType && d <= StringType
}

func ParseDataType(name string) (DataType, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "BOOL", "BOOLEAN":
		return BoolType, nil
	case "INT", "INTEGER", "BIGINT":
		return IntType, nil
	case "FLOAT", "DOUBLE", "DECIMAL":
		return FloatType, nil
	case "VARCHAR", "STRING", "TEXT", "CHAR":
		return StringType, nil
	}
	return NullType, errors.Errorf("unknown data type %s", name)
}
