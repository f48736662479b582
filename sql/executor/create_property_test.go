package executor

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"sproutDB/sql"
	"sproutDB/sql/catalog"
	"sproutDB/sql/plan"
	"sproutDB/txn"
)

// actions decodes an update/delete action pair from one generated int in [0, 25).
func actions(code int) (catalog.FKActionType, catalog.FKActionType) {
	return catalog.FKActionType(code / 5), catalog.FKActionType(code % 5)
}

func TestProperty_AutoIndexNumbering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.MaxSize = 8
	properties := gopter.NewProperties(parameters)

	properties.Property("auto indexes are numbered among indexing keys only", prop.ForAll(
		func(codes []int) bool {
			f := newFixture(t)
			f.commit(t, usersPlan())

			columns := []*catalog.Column{{Name: "id", DataType: sql.IntType, PrimaryKey: true}}
			var fks []*catalog.ForeignKey
			var want []string
			for i, code := range codes {
				column := fmt.Sprintf("ref_%d", i)
				columns = append(columns, &catalog.Column{Name: column, DataType: sql.IntType, NullAble: true})
				update, del := actions(code)
				fks = append(fks, userFK(column, update, del))
				if update != catalog.FKNoAction || del != catalog.FKNoAction {
					want = append(want, column)
				}
			}

			tx, err := f.execute(t, plan.NewCreateTablePlan(testDB, "orders", catalog.NewSchema(columns...), fks))
			if err != nil || tx.GetResult() != txn.ResultSuccess {
				return false
			}

			orders := f.table(t, "orders")
			indexes := orders.GetIndexes()
			if len(indexes) != len(want) || len(orders.GetForeignKeys()) != len(codes) {
				return false
			}
			for i, index := range indexes {
				if index.Name != fmt.Sprintf("orders_FK_%d", i+1) || index.Unique || index.Type != catalog.IndexBWTree {
					return false
				}
				if len(index.Columns) != 1 || index.Columns[0] != want[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 24)),
	))

	properties.Property("sink lists the source once", prop.ForAll(
		func(codes []int) bool {
			f := newFixture(t)
			f.commit(t, usersPlan())

			fks := make([]*catalog.ForeignKey, 0, len(codes))
			for _, code := range codes {
				update, del := actions(code)
				fks = append(fks, userFK("user_id", update, del))
			}
			tx, err := f.execute(t, plan.NewCreateTablePlan(testDB, "orders", ordersSchema(), fks))
			if err != nil || tx.GetResult() != txn.ResultSuccess {
				return false
			}

			sources := f.table(t, "users").GetForeignKeySources()
			if len(codes) == 0 {
				return len(sources) == 0
			}
			return len(sources) == 1 && sources[0] == "orders"
		},
		gen.SliceOf(gen.IntRange(0, 24)),
	))

	properties.TestingRun(t)
}

func TestProperty_CreateTableAllOrNothing(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("a table exists with its exact schema iff creation succeeded", prop.ForAll(
		func(count int, duplicate, twoPrimaryKeys bool) bool {
			f := newFixture(t)

			columns := make([]*catalog.Column, 0, count+1)
			for i := 0; i < count; i++ {
				columns = append(columns, &catalog.Column{Name: fmt.Sprintf("c%d", i), DataType: sql.IntType, NullAble: true})
			}
			if duplicate && count > 0 {
				columns = append(columns, &catalog.Column{Name: "C0", DataType: sql.StringType})
			}
			if twoPrimaryKeys && count > 1 {
				columns[0].PrimaryKey, columns[0].NullAble = true, false
				columns[1].PrimaryKey, columns[1].NullAble = true, false
			}
			schema := catalog.NewSchema(columns...)
			expected := schema.Copy()

			p := plan.NewCreateTablePlan(testDB, "generated", schema, nil)
			if count == 0 {
				// rejected before reaching the catalog
				return p.Validate() != nil
			}

			tx, err := f.execute(t, p)
			if err != nil {
				return false
			}
			table, lookupErr := f.catalog.GetTableWithName(testDB, "generated")
			switch tx.GetResult() {
			case txn.ResultSuccess:
				return lookupErr == nil && table.GetSchema().Equal(expected)
			case txn.ResultFailure:
				return lookupErr != nil
			}
			return false
		},
		gen.IntRange(0, 5),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestActionsCoverEveryPair(t *testing.T) {
	seen := map[[2]catalog.FKActionType]bool{}
	for code := 0; code < 25; code++ {
		update, del := actions(code)
		require.True(t, update.Valid())
		require.True(t, del.Valid())
		seen[[2]catalog.FKActionType{update, del}] = true
	}
	require.Len(t, seen, 25)
}
