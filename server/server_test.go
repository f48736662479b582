package server_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sproutDB/client"
	"sproutDB/server"
	"sproutDB/sql"
	"sproutDB/sql/catalog"
	"sproutDB/sql/plan"
	"sproutDB/storage"
	"sproutDB/txn"
)

func startServer(t *testing.T) *server.Server {
	t.Helper()
	m := txn.NewManager(storage.NewMemory())
	c, err := catalog.NewCatalog(m, "default_db")
	require.NoError(t, err)

	s := server.NewServer(m, c)
	require.NoError(t, s.Listen("127.0.0.1:0"))
	go func() {
		_ = s.Serve()
	}()
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func dial(t *testing.T, s *server.Server) *client.Client {
	t.Helper()
	c, err := client.Dial(s.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Close()
	})
	return c
}

func usersPlan() *plan.CreatePlan {
	return plan.NewCreateTablePlan("", "users", catalog.NewSchema(
		&catalog.Column{Name: "id", DataType: sql.IntType, PrimaryKey: true},
	), nil)
}

func ordersPlan() *plan.CreatePlan {
	return plan.NewCreateTablePlan("", "orders", catalog.NewSchema(
		&catalog.Column{Name: "id", DataType: sql.IntType, PrimaryKey: true},
		&catalog.Column{Name: "user_id", DataType: sql.IntType, NullAble: true},
	), []*catalog.ForeignKey{
		catalog.NewForeignKey("fk_user", []string{"user_id"}, "users", []string{"id"}, catalog.FKNoAction, catalog.FKCascade),
	})
}

func TestExecuteOverTheWire(t *testing.T) {
	s := startServer(t)
	c := dial(t, s)

	result, err := c.Execute(usersPlan())
	require.NoError(t, err)
	assert.Equal(t, txn.ResultSuccess, result.Status)

	result, err = c.Execute(ordersPlan())
	require.NoError(t, err)
	assert.Equal(t, txn.ResultSuccess, result.Status)
	assert.Contains(t, result.Statement, "CREATE TABLE orders")

	table, err := c.GetTable("", "orders")
	require.NoError(t, err)
	assert.Equal(t, "orders", table.Name)
	require.Len(t, table.Indexes, 1)
	assert.Equal(t, "orders_FK_1", table.Indexes[0].Name)
	require.Len(t, table.ForeignKeys, 1)
	assert.Equal(t, catalog.FKCascade, table.ForeignKeys[0].GetDeleteAction())

	users, err := c.GetTable("default_db", "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, users.ForeignKeySources)

	tables, err := c.ListTables("")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users"}, tables)

	result, err = c.Execute(usersPlan())
	require.NoError(t, err)
	assert.Equal(t, txn.ResultFailure, result.Status)
	assert.NotEmpty(t, result.Error)
}

func TestErrorsComeBackAsRespError(t *testing.T) {
	s := startServer(t)
	c := dial(t, s)

	_, err := c.GetTable("", "ghosts")
	var respErr *server.RespError
	require.ErrorAs(t, err, &respErr)
	assert.Contains(t, respErr.Errmsg, "ghosts")

	_, err = c.Commit()
	require.ErrorAs(t, err, &respErr)

	// the connection is still usable
	_, err = c.ListTables("")
	require.NoError(t, err)
}

func TestTransactionsOverTheWire(t *testing.T) {
	s := startServer(t)
	c := dial(t, s)
	other := dial(t, s)

	begin, err := c.Begin(false)
	require.NoError(t, err)
	assert.Equal(t, begin.TxnID, c.TxnID)

	_, err = c.Execute(usersPlan())
	require.NoError(t, err)

	// another session creating the same table collides with the open transaction
	result, err := other.Execute(usersPlan())
	require.NoError(t, err)
	assert.Equal(t, txn.ResultAborted, result.Status)

	_, err = c.Rollback()
	require.NoError(t, err)
	assert.Empty(t, c.TxnID)

	tables, err := c.ListTables("")
	require.NoError(t, err)
	assert.Empty(t, tables)

	result, err = other.Execute(usersPlan())
	require.NoError(t, err)
	assert.Equal(t, txn.ResultSuccess, result.Status)
}

func TestStatus(t *testing.T) {
	s := startServer(t)
	c := dial(t, s)

	_, err := c.Execute(plan.NewCreateDatabasePlan("shop"))
	require.NoError(t, err)

	status, err := c.Status()
	require.NoError(t, err)
	assert.Equal(t, []string{"default_db", "shop"}, status.Databases)
	assert.Equal(t, 1, status.Sessions)
	require.NotNil(t, status.MVCC)
	assert.Equal(t, uint64(0), status.MVCC.ActiveTxns)
	assert.Equal(t, "memory", status.MVCC.Storage.Name)
}
