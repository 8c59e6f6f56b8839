package staging

import (
	"strconv"
	"strings"
)

// Driver names a supported staging engine
type Driver string

const (
	// DriverSQLite is the default engine (modernc.org/sqlite)
	DriverSQLite Driver = "sqlite"
	// DriverDuckDB uses github.com/marcboeker/go-duckdb
	DriverDuckDB Driver = "duckdb"
)

// Dialect holds the engine specific SQL conventions.
type Dialect struct {
	driver Driver
}

// NewDialect returns the dialect of a driver. Unknown drivers use SQLite rules.
func NewDialect(driver Driver) Dialect {
	if driver != DriverDuckDB {
		driver = DriverSQLite
	}
	return Dialect{driver: driver}
}

// Driver returns the engine the dialect belongs to
func (d Dialect) Driver() Driver {
	return d.driver
}

// Quote quotes an identifier. SQLite uses brackets, DuckDB double quotes.
// Brackets cannot be escaped, so SQLite identifiers holding "]" are double quoted.
func (d Dialect) Quote(ident string) string {
	if d.driver == DriverDuckDB || strings.Contains(ident, "]") {
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	}
	return "[" + ident + "]"
}

// Qualify returns the quoted schema.table pair. An empty schema yields the table alone.
func (d Dialect) Qualify(schema, table string) string {
	if schema == "" {
		return d.Quote(table)
	}
	return d.Quote(schema) + "." + d.Quote(table)
}

// DefaultSchema is the schema that always exists in the engine
func (d Dialect) DefaultSchema() string {
	return "main"
}

// TextType returns the staged text column type; a positive maxLength is declared.
func (d Dialect) TextType(maxLength int) string {
	if maxLength > 0 {
		return "VARCHAR(" + strconv.Itoa(maxLength) + ")"
	}
	return "VARCHAR"
}

// BlobType reports whether a declared type holds binary data
func (d Dialect) BlobType(declared string) bool {
	upper := strings.ToUpper(declared)
	return strings.Contains(upper, "BLOB") || strings.Contains(upper, "BINARY") || upper == "BYTEA"
}
