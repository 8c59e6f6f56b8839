package fileschema

import (
	"testing"

	"github.com/nao1215/fileschema/staging"
	"github.com/stretchr/testify/assert"
)

func TestTableStatement(t *testing.T) {
	t.Parallel()

	columns := []stagedColumn{
		{name: "id", isKey: true},
		{name: "region", isKey: true},
		{name: "note", maxLength: 2000},
	}

	t.Run("sqlite", func(t *testing.T) {
		t.Parallel()

		stmt := newTableStatement(staging.NewDialect(staging.DriverSQLite), "main", "orders", columns)

		assert.Equal(t, "[main].[orders]", stmt.target())
		assert.Equal(t, 3, stmt.width())
		assert.Equal(t,
			"CREATE TABLE IF NOT EXISTS [main].[orders] ([id] VARCHAR, [region] VARCHAR, [note] VARCHAR(2000), PRIMARY KEY ([id], [region]))",
			stmt.createTable())
		assert.Equal(t,
			"INSERT INTO [main].[orders] ([id], [region], [note]) VALUES (?, ?, ?)",
			stmt.insert())
		assert.Equal(t, "DELETE FROM [main].[orders]", stmt.deleteAll())
		assert.Equal(t, "SELECT * FROM [main].[orders]", stmt.selectAll())
	})

	t.Run("duckdb", func(t *testing.T) {
		t.Parallel()

		stmt := newTableStatement(staging.NewDialect(staging.DriverDuckDB), "raw", "orders", textColumns([]string{"a"}))

		assert.Equal(t, `CREATE TABLE IF NOT EXISTS "raw"."orders" ("a" VARCHAR)`, stmt.createTable())
		assert.Equal(t, `INSERT INTO "raw"."orders" ("a") VALUES (?)`, stmt.insert())
	})

	t.Run("flattened names with brackets", func(t *testing.T) {
		t.Parallel()

		stmt := newTableStatement(staging.NewDialect(staging.DriverSQLite), "main", "doc", textColumns([]string{"Order[0].Id"}))
		assert.Equal(t, `INSERT INTO [main].[doc] ("Order[0].Id") VALUES (?)`, stmt.insert())
	})
}

func TestDefaultQuery(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "SELECT * FROM [main].[t]", defaultQuery("", "[main].[t]"))
	assert.Equal(t, "SELECT * FROM [main].[t]", defaultQuery("  \n", "[main].[t]"))
	assert.Equal(t, "SELECT a FROM t", defaultQuery("SELECT a FROM t", "[main].[t]"))
}

func TestCountQuery(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "SELECT COUNT(*) FROM (SELECT * FROM t) AS Q", countQuery("SELECT * FROM t"))
	assert.Equal(t, "SELECT COUNT(*) FROM (SELECT * FROM t) AS Q", countQuery(" SELECT * FROM t; "))
}
