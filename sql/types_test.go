package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDataType(t *testing.T) {
	cases := map[string]DataType{
		"int":     IntType,
		"Integer": IntType,
		"varchar": StringType,
		"TEXT":    StringType,
		"bool":    BoolType,
		"double":  FloatType,
	}
	for in, want := range cases {
		got, err := ParseDataType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDataType("blob")
	assert.Error(t, err)
}

func TestDataTypeValid(t *testing.T) {
	assert.False(t, NullType.Valid())
	assert.True(t, IntType.Valid())
	assert.False(t, DataType(42).Valid())
	assert.Equal(t, "UNKNOWN", DataType(42).String())
}
