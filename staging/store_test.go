package staging

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nao1215/fileschema/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemoryStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), Config{Location: MemoryLocation})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestDialect_Quote(t *testing.T) {
	t.Parallel()

	sqlite := NewDialect(DriverSQLite)
	assert.Equal(t, "[name]", sqlite.Quote("name"))
	assert.Equal(t, `"we]ird"`, sqlite.Quote("we]ird"))
	assert.Equal(t, `"a[0]"`, sqlite.Quote("a[0]"))
	assert.Equal(t, "[s].[t]", sqlite.Qualify("s", "t"))
	assert.Equal(t, "[t]", sqlite.Qualify("", "t"))

	duck := NewDialect(DriverDuckDB)
	assert.Equal(t, `"name"`, duck.Quote("name"))
	assert.Equal(t, `"a""b"`, duck.Quote(`a"b`))

	assert.Equal(t, DriverSQLite, NewDialect("unknown").Driver())
}

func TestDialect_Types(t *testing.T) {
	t.Parallel()

	d := NewDialect(DriverSQLite)
	assert.Equal(t, "VARCHAR", d.TextType(0))
	assert.Equal(t, "VARCHAR(2000)", d.TextType(2000))
	assert.True(t, d.BlobType("BLOB"))
	assert.True(t, d.BlobType("varbinary"))
	assert.False(t, d.BlobType("VARCHAR"))
}

func TestOpen_InvalidLocation(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{Location: "ftp://nowhere"})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestStore_ExecQueryRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openMemoryStore(t)

	require.NoError(t, store.Exec(ctx, `CREATE TABLE [people] ([name] VARCHAR(2000), [age] VARCHAR)`))
	require.NoError(t, store.Exec(ctx, `INSERT INTO [people] ([name], [age]) VALUES (?, ?)`, "Alice", "30"))

	rows, err := store.Query(ctx, `SELECT * FROM [people]`)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	columns := rows.Columns()
	require.Len(t, columns, 2)
	assert.Equal(t, "name", columns[0].Name)
	assert.Equal(t, "age", columns[1].Name)

	require.True(t, rows.Next())
	values, err := rows.Values()
	require.NoError(t, err)
	assert.Equal(t, "Alice", values[0])
	assert.Equal(t, "30", values[1])
	assert.False(t, rows.Next())
	assert.NoError(t, rows.Err())
}

func TestStore_QueryInvalidSQL(t *testing.T) {
	t.Parallel()

	store := openMemoryStore(t)
	_, err := store.Query(context.Background(), `SELECT * FROM [missing]`)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrStore)
}

func TestStore_EnsureSchemaAndDescribe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openMemoryStore(t)

	require.NoError(t, store.EnsureSchema(ctx, "landing"))
	// second call is a no-op
	require.NoError(t, store.EnsureSchema(ctx, "landing"))
	require.NoError(t, store.EnsureSchema(ctx, "main"))

	exists, err := store.TableExists(ctx, "landing", "orders")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS [landing].[orders] ([id] VARCHAR, [note] VARCHAR(4000), PRIMARY KEY ([id]))`))

	exists, err = store.TableExists(ctx, "landing", "orders")
	require.NoError(t, err)
	assert.True(t, exists)

	columns, err := store.DescribeTable(ctx, "landing", "orders")
	require.NoError(t, err)
	require.Len(t, columns, 2)

	assert.Equal(t, "id", columns[0].Name)
	assert.True(t, columns[0].IsKey)
	assert.False(t, columns[0].Nullable)

	assert.Equal(t, "note", columns[1].Name)
	assert.Equal(t, "VARCHAR(4000)", columns[1].DatabaseType)
	assert.Equal(t, int64(4000), columns[1].Length)
	assert.False(t, columns[1].IsKey)
	assert.True(t, columns[1].Nullable)
}

func TestStore_QueryTableKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openMemoryStore(t)
	require.NoError(t, store.Exec(ctx,
		`CREATE TABLE [main].[fw] ([a] VARCHAR, [b] VARCHAR, [c] VARCHAR, PRIMARY KEY ([a], [c]))`))

	rows, err := store.Query(ctx, "SELECT * FROM [main].[fw]")
	require.NoError(t, err)
	for _, col := range rows.Columns() {
		assert.False(t, col.IsKey, col.Name)
	}
	require.NoError(t, rows.Close())

	rows, err = store.QueryTable(ctx, "main", "fw", "SELECT * FROM [main].[fw]")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	columns := rows.Columns()
	require.Len(t, columns, 3)
	assert.True(t, columns[0].IsKey)
	assert.False(t, columns[0].Nullable)
	assert.False(t, columns[1].IsKey)
	assert.True(t, columns[2].IsKey)

	t.Run("custom query keeps keys by name", func(t *testing.T) {
		rows, err := store.QueryTable(ctx, "main", "fw", "SELECT [b], [a] AS [A] FROM [main].[fw]")
		require.NoError(t, err)
		defer func() { _ = rows.Close() }()

		columns := rows.Columns()
		require.Len(t, columns, 2)
		assert.False(t, columns[0].IsKey)
		assert.True(t, columns[1].IsKey)
	})
}

func TestStore_DuckDB(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := Open(ctx, Config{Driver: DriverDuckDB, Location: MemoryLocation})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	assert.Equal(t, `"main"."orders"`, store.Qualify("main", "orders"))
	require.NoError(t, store.EnsureSchema(ctx, "landing"))
	require.NoError(t, store.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS "landing"."orders" ("id" VARCHAR, "note" VARCHAR(4000), PRIMARY KEY ("id"))`))
	require.NoError(t, store.Exec(ctx, `INSERT INTO "landing"."orders" VALUES (?, ?)`, "1", "first"))

	exists, err := store.TableExists(ctx, "landing", "orders")
	require.NoError(t, err)
	assert.True(t, exists)

	columns, err := store.DescribeTable(ctx, "landing", "orders")
	require.NoError(t, err)
	require.Len(t, columns, 2)
	assert.Equal(t, "id", columns[0].Name)
	assert.True(t, columns[0].IsKey)
	assert.False(t, columns[0].Nullable)
	assert.False(t, columns[1].IsKey)
	assert.True(t, columns[1].Nullable)

	rows, err := store.QueryTable(ctx, "landing", "orders", `SELECT * FROM "landing"."orders"`)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	require.Len(t, rows.Columns(), 2)
	assert.True(t, rows.Columns()[0].IsKey)
	assert.Equal(t, "VARCHAR", rows.Columns()[1].DatabaseType)

	require.True(t, rows.Next())
	values, err := rows.Values()
	require.NoError(t, err)
	assert.Equal(t, []any{"1", "first"}, values)
}

func TestStore_FileBacked(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "stage.db")

	store, err := Open(ctx, Config{Location: "file:" + path})
	require.NoError(t, err)
	require.NoError(t, store.Exec(ctx, `CREATE TABLE [t] ([a] VARCHAR)`))
	require.NoError(t, store.Exec(ctx, `INSERT INTO [t] VALUES ('x')`))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, Config{Location: "file:" + path})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	exists, err := reopened.TableExists(ctx, "", "t")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_TransactionRollback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openMemoryStore(t)
	require.NoError(t, store.Exec(ctx, `CREATE TABLE [t] ([a] VARCHAR)`))

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Exec(ctx, `INSERT INTO [t] VALUES ('committed')`))
	require.NoError(t, tx.Commit())

	tx, err = store.Begin(ctx)
	require.NoError(t, err)
	stmt, err := tx.Prepare(ctx, `INSERT INTO [t] VALUES (?)`)
	require.NoError(t, err)
	_, err = stmt.ExecContext(ctx, "discarded")
	require.NoError(t, err)
	require.NoError(t, stmt.Close())
	require.NoError(t, tx.Rollback())
	// rolling back twice is harmless
	require.NoError(t, tx.Rollback())

	rows, err := store.Query(ctx, `SELECT COUNT(*) FROM [t]`)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	require.True(t, rows.Next())
	values, err := rows.Values()
	require.NoError(t, err)
	assert.EqualValues(t, 1, values[0])
}

func TestStore_ExecErrorWrapsStoreError(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("DELETE FROM [main].[t]").WillReturnError(assert.AnError)

	store, err := New(context.Background(), db, DriverSQLite, nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	err = store.Exec(context.Background(), "DELETE FROM [main].[t]")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrStore)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_BeginErrorWrapsStoreError(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin().WillReturnError(assert.AnError)

	store, err := New(context.Background(), db, DriverSQLite, nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, err = store.Begin(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrStore)
	assert.NoError(t, mock.ExpectationsWereMet())
}
