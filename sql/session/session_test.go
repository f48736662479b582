package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sproutDB/sql"
	"sproutDB/sql/catalog"
	"sproutDB/sql/plan"
	"sproutDB/storage"
	"sproutDB/txn"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	m := txn.NewManager(storage.NewMemory())
	c, err := catalog.NewCatalog(m, "default_db")
	require.NoError(t, err)
	return NewSession(m, c)
}

func usersPlan() *plan.CreatePlan {
	return plan.NewCreateTablePlan("", "users", catalog.NewSchema(
		&catalog.Column{Name: "id", DataType: sql.IntType, PrimaryKey: true},
	), nil)
}

func ordersPlan(sink string) *plan.CreatePlan {
	return plan.NewCreateTablePlan("", "orders", catalog.NewSchema(
		&catalog.Column{Name: "id", DataType: sql.IntType, PrimaryKey: true},
		&catalog.Column{Name: "user_id", DataType: sql.IntType, NullAble: true},
	), []*catalog.ForeignKey{
		catalog.NewForeignKey("fk_user", []string{"user_id"}, sink, []string{"id"}, catalog.FKNoAction, catalog.FKCascade),
	})
}

func TestImplicitTransactionCommits(t *testing.T) {
	s := newTestSession(t)

	result, err := s.Execute(usersPlan())
	require.NoError(t, err)
	assert.Equal(t, txn.ResultSuccess, result.Status)
	assert.Empty(t, result.Error)

	result, err = s.Execute(ordersPlan("users"))
	require.NoError(t, err)
	assert.Equal(t, txn.ResultSuccess, result.Status)
	assert.Equal(t, 0, s.Manager.ActiveCount())

	info, err := s.ReadTable("", "orders")
	require.NoError(t, err)
	assert.Equal(t, "default_db", info.Database)
	require.Len(t, info.Indexes, 1)
	assert.Equal(t, "orders_FK_1", info.Indexes[0].Name)
	require.Len(t, info.ForeignKeys, 1)

	users, err := s.ReadTable("default_db", "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, users.ForeignKeySources)

	names, err := s.ListTables("")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users"}, names)
}

func TestImplicitFailureReportsCause(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Execute(usersPlan())
	require.NoError(t, err)

	result, err := s.Execute(usersPlan())
	require.NoError(t, err)
	assert.Equal(t, txn.ResultFailure, result.Status)
	assert.Contains(t, result.Error, "already exists")
	assert.Equal(t, 0, s.Manager.ActiveCount())

	_, err = s.Execute(plan.NewCreateIndexPlan("", "ghosts", "idx", catalog.IndexBTree, false, []string{"id"}))
	require.NoError(t, err)
}

func TestForeignKeyErrorAbortsStatement(t *testing.T) {
	s := newTestSession(t)

	_, err := s.Execute(ordersPlan("missing"))
	assert.ErrorIs(t, err, catalog.ErrCatalogLookup)
	assert.Equal(t, 0, s.Manager.ActiveCount())

	_, err = s.ReadTable("", "orders")
	assert.ErrorIs(t, err, catalog.ErrCatalogLookup)
}

func TestForeignKeyErrorAbortsExplicitTransaction(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Begin(false)
	require.NoError(t, err)

	_, err = s.Execute(usersPlan())
	require.NoError(t, err)
	_, err = s.Execute(ordersPlan("missing"))
	assert.ErrorIs(t, err, catalog.ErrCatalogLookup)
	assert.Nil(t, s.Txn)

	// users went down with the transaction
	_, err = s.ReadTable("", "users")
	assert.ErrorIs(t, err, catalog.ErrCatalogLookup)
}

func TestExplicitTransaction(t *testing.T) {
	s := newTestSession(t)

	begin, err := s.Begin(false)
	require.NoError(t, err)
	assert.False(t, begin.ReadOnly)
	_, err = s.Begin(false)
	assert.ErrorIs(t, err, ErrInTransaction)

	_, err = s.Execute(usersPlan())
	require.NoError(t, err)
	result, err := s.Execute(ordersPlan("users"))
	require.NoError(t, err)
	assert.Equal(t, begin.TxnID, result.TxnID)

	commit, err := s.Commit()
	require.NoError(t, err)
	assert.Equal(t, begin.Version, commit.Version)
	_, err = s.Commit()
	assert.ErrorIs(t, err, ErrNoTransaction)

	_, err = s.ReadTable("", "orders")
	require.NoError(t, err)
}

func TestRollbackDiscardsTables(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Begin(false)
	require.NoError(t, err)
	_, err = s.Execute(usersPlan())
	require.NoError(t, err)

	result, err := s.Rollback()
	require.NoError(t, err)
	assert.Equal(t, txn.ResultAborted, result.Status)
	_, err = s.Rollback()
	assert.ErrorIs(t, err, ErrNoTransaction)

	names, err := s.ListTables("")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestReadOnlyTransactionRejectsDDL(t *testing.T) {
	s := newTestSession(t)
	begin, err := s.Begin(true)
	require.NoError(t, err)
	assert.True(t, begin.ReadOnly)

	result, err := s.Execute(usersPlan())
	require.NoError(t, err)
	assert.Equal(t, txn.ResultFailure, result.Status)
	require.NotNil(t, s.Txn)

	s.Close()
	assert.Nil(t, s.Txn)
}

func TestInvalidPlanIsRejected(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Execute(plan.NewCreateTablePlan("", "", nil, nil))
	assert.ErrorIs(t, err, catalog.ErrInvalidRequest)
	_, err = s.Execute(nil)
	assert.ErrorIs(t, err, catalog.ErrInvalidRequest)
	assert.Equal(t, 0, s.Manager.ActiveCount())

	_, err = s.ListTables("nowhere")
	assert.ErrorIs(t, err, catalog.ErrCatalogLookup)
}
