package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sproutDB/sql"
	"sproutDB/sql/catalog"
	"sproutDB/util"
)

func ordersSchema() *catalog.Schema {
	return catalog.NewSchema(
		&catalog.Column{Name: "id", DataType: sql.IntType, PrimaryKey: true},
		&catalog.Column{Name: "user_id", DataType: sql.IntType, NullAble: true},
	)
}

func userFK() *catalog.ForeignKey {
	return catalog.NewForeignKey("fk_user", []string{"user_id"}, "users", []string{"id"}, catalog.FKCascade, catalog.FKNoAction)
}

func TestCreateTablePlan(t *testing.T) {
	schema := ordersSchema()
	p := NewCreateTablePlan("shop", "orders", schema, []*catalog.ForeignKey{userFK()})
	require.NoError(t, p.Validate())
	assert.Equal(t, CreateTypeTable, p.GetCreateType())
	assert.Equal(t, "shop", p.GetDatabaseName())
	assert.Equal(t, "orders", p.GetTableName())
	assert.Len(t, p.GetForeignKeys(), 1)
	assert.Equal(t,
		"CREATE TABLE shop.orders (id INT PRIMARY KEY, user_id INT, FOREIGN KEY (user_id) REFERENCES users(id) ON UPDATE CASCADE ON DELETE NO ACTION)",
		p.String())

	assert.Same(t, schema, p.TakeSchema())
	assert.Nil(t, p.TakeSchema())
	assert.ErrorIs(t, p.Validate(), catalog.ErrInvalidRequest)
}

func TestCreateIndexPlan(t *testing.T) {
	attrs := []string{"user_id"}
	p := NewCreateIndexPlan("", "orders", "idx_user", catalog.IndexHash, true, attrs)
	attrs[0] = "mutated"
	require.NoError(t, p.Validate())
	assert.Equal(t, CreateTypeIndex, p.GetCreateType())
	assert.Equal(t, []string{"user_id"}, p.GetIndexAttributes())
	assert.True(t, p.IsUniqueIndex())
	assert.Equal(t, catalog.IndexHash, p.GetIndexType())
	assert.Equal(t, "CREATE UNIQUE INDEX idx_user ON orders USING HASH (user_id)", p.String())
}

func TestValidateRejectsMalformedPlans(t *testing.T) {
	tests := []struct {
		name string
		plan *CreatePlan
	}{
		{"table without name", NewCreateTablePlan("db", "", ordersSchema(), nil)},
		{"table without schema", NewCreateTablePlan("db", "orders", nil, nil)},
		{"table with empty schema", NewCreateTablePlan("db", "orders", catalog.NewSchema(), nil)},
		{"fk without source columns", NewCreateTablePlan("db", "orders", ordersSchema(),
			[]*catalog.ForeignKey{catalog.NewForeignKey("", nil, "users", nil, catalog.FKNoAction, catalog.FKNoAction)})},
		{"fk without sink", NewCreateTablePlan("db", "orders", ordersSchema(),
			[]*catalog.ForeignKey{catalog.NewForeignKey("", []string{"user_id"}, "", nil, catalog.FKNoAction, catalog.FKNoAction)})},
		{"nil fk", NewCreateTablePlan("db", "orders", ordersSchema(), []*catalog.ForeignKey{nil})},
		{"index without name", NewCreateIndexPlan("db", "orders", "", catalog.IndexBTree, false, []string{"id"})},
		{"index without table", NewCreateIndexPlan("db", "", "idx", catalog.IndexBTree, false, []string{"id"})},
		{"index without columns", NewCreateIndexPlan("db", "orders", "idx", catalog.IndexBTree, false, nil)},
		{"index with bad type", NewCreateIndexPlan("db", "orders", "idx", catalog.IndexType(9), false, []string{"id"})},
		{"database without name", NewCreateDatabasePlan("")},
		{"zero plan", &CreatePlan{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.plan.Validate(), catalog.ErrInvalidRequest)
		})
	}
}

func TestCreatePlanGob(t *testing.T) {
	p := NewCreateTablePlan("shop", "orders", ordersSchema(), []*catalog.ForeignKey{userFK()})
	data, err := util.GobEncode(p)
	require.NoError(t, err)

	decoded := &CreatePlan{}
	require.NoError(t, util.GobDecode(data, decoded))
	assert.Equal(t, p.String(), decoded.String())
	require.Len(t, decoded.GetForeignKeys(), 1)
	assert.True(t, decoded.GetForeignKeys()[0].NeedsIndex())
}
