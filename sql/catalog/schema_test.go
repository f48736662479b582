package catalog

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sproutDB/sql"
)

func TestSchemaValidate(t *testing.T) {
	require.NoError(t, usersSchema().Validate())

	tests := []struct {
		name   string
		schema *Schema
	}{
		{"nil", nil},
		{"empty", NewSchema()},
		{"unnamed column", NewSchema(&Column{DataType: sql.IntType})},
		{"duplicate column", NewSchema(
			&Column{Name: "id", DataType: sql.IntType},
			&Column{Name: "ID", DataType: sql.IntType},
		)},
		{"invalid type", NewSchema(&Column{Name: "id", DataType: sql.DataType(42)})},
		{"two primary keys", NewSchema(
			&Column{Name: "a", DataType: sql.IntType, PrimaryKey: true},
			&Column{Name: "b", DataType: sql.IntType, PrimaryKey: true},
		)},
		{"nullable primary key", NewSchema(&Column{Name: "a", DataType: sql.IntType, PrimaryKey: true, NullAble: true})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.schema.Validate())
		})
	}
}

func TestSchemaLookup(t *testing.T) {
	schema := ordersSchema()
	index, err := schema.GetColumnIndex("USER_ID")
	require.NoError(t, err)
	assert.Equal(t, 1, index)

	_, err = schema.GetColumn("nope")
	assert.ErrorIs(t, err, ErrCatalogLookup)
	assert.Equal(t, []string{"id", "user_id", "total"}, schema.ColumnNames())

	copied := schema.Copy()
	copied.Columns[0].Name = "other"
	assert.Equal(t, "id", schema.Columns[0].Name)
	assert.False(t, schema.Equal(copied))
	assert.True(t, schema.Equal(ordersSchema()))

	assert.Equal(t, "id INT PRIMARY KEY", schema.Columns[0].String())
	assert.Equal(t, "email VARCHAR(64) NOT NULL UNIQUE", usersSchema().Columns[1].String())
}

func TestParseFKAction(t *testing.T) {
	for input, want := range map[string]FKActionType{
		"":            FKNoAction,
		"no   action": FKNoAction,
		"cascade":     FKCascade,
		"RESTRICT":    FKRestrict,
		"set null":    FKSetNull,
		"Set Default": FKSetDefault,
	} {
		got, err := ParseFKAction(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
	_, err := ParseFKAction("explode")
	assert.Error(t, err)
	assert.Equal(t, "SET NULL", FKSetNull.String())
}

func TestForeignKey(t *testing.T) {
	source := []string{"user_id"}
	fk := NewForeignKey("fk_user", source, "users", []string{"id"}, FKNoAction, FKNoAction)
	source[0] = "mutated"
	assert.Equal(t, []string{"user_id"}, fk.GetFKColumnNames())
	assert.False(t, fk.NeedsIndex())
	require.NoError(t, fk.Validate())

	assert.True(t, NewForeignKey("", source, "users", nil, FKCascade, FKNoAction).NeedsIndex())
	assert.True(t, NewForeignKey("", source, "users", nil, FKNoAction, FKSetNull).NeedsIndex())

	assert.ErrorIs(t, NewForeignKey("", nil, "users", nil, FKNoAction, FKNoAction).Validate(), ErrInvalidRequest)
	assert.ErrorIs(t, NewForeignKey("", source, "", nil, FKNoAction, FKNoAction).Validate(), ErrInvalidRequest)
	assert.ErrorIs(t, NewForeignKey("", source, "users", []string{"a", "b"}, FKNoAction, FKNoAction).Validate(), ErrInvalidRequest)
}

func TestForeignKeyGob(t *testing.T) {
	fk := NewForeignKey("fk_user", []string{"user_id"}, "users", []string{"id"}, FKSetDefault, FKRestrict)

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(fk))
	decoded := &ForeignKey{}
	require.NoError(t, gob.NewDecoder(&buf).Decode(decoded))
	assert.Equal(t, fk, decoded)
}

func TestIndexTypeParse(t *testing.T) {
	kind, err := ParseIndexType("skiplist")
	require.NoError(t, err)
	assert.Equal(t, IndexSkipList, kind)
	kind, err = ParseIndexType("")
	require.NoError(t, err)
	assert.Equal(t, IndexBWTree, kind)
	_, err = ParseIndexType("rtree")
	assert.Error(t, err)
}
