package fileschema

import (
	"fmt"
	"strings"

	"github.com/nao1215/fileschema/staging"
)

// stagedColumn is one column of a staged table
type stagedColumn struct {
	name      string
	maxLength int
	isKey     bool
}

// tableStatement builds the DDL and DML issued for one staged table.
// The column list is fixed for the life of a load call.
type tableStatement struct {
	dialect staging.Dialect
	schema  string
	table   string
	columns []stagedColumn
}

// newTableStatement creates a statement builder for schema.table
func newTableStatement(dialect staging.Dialect, schema, table string, columns []stagedColumn) tableStatement {
	return tableStatement{
		dialect: dialect,
		schema:  schema,
		table:   table,
		columns: columns,
	}
}

// textColumns stages every name as an unbounded text column
func textColumns(names []string) []stagedColumn {
	columns := make([]stagedColumn, len(names))
	for i, name := range names {
		columns[i] = stagedColumn{name: name}
	}
	return columns
}

// target returns the quoted schema.table pair
func (s tableStatement) target() string {
	return s.dialect.Qualify(s.schema, s.table)
}

// width returns the number of columns
func (s tableStatement) width() int {
	return len(s.columns)
}

// quotedColumns returns the quoted column list
func (s tableStatement) quotedColumns() []string {
	quoted := make([]string, len(s.columns))
	for i, col := range s.columns {
		quoted[i] = s.dialect.Quote(col.name)
	}
	return quoted
}

// createTable returns CREATE TABLE IF NOT EXISTS with one text column per field
// and a composite primary key over the key columns, if any.
func (s tableStatement) createTable() string {
	definitions := make([]string, 0, len(s.columns)+1)
	var keys []string
	for _, col := range s.columns {
		quoted := s.dialect.Quote(col.name)
		definitions = append(definitions, quoted+" "+s.dialect.TextType(col.maxLength))
		if col.isKey {
			keys = append(keys, quoted)
		}
	}
	if len(keys) > 0 {
		definitions = append(definitions, "PRIMARY KEY ("+strings.Join(keys, ", ")+")")
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", s.target(), strings.Join(definitions, ", "))
}

// insert returns the parameterized INSERT statement
func (s tableStatement) insert() string {
	placeholders := make([]string, len(s.columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		s.target(),
		strings.Join(s.quotedColumns(), ", "),
		strings.Join(placeholders, ", "),
	)
}

// deleteAll returns the statement purging every staged row
func (s tableStatement) deleteAll() string {
	return "DELETE FROM " + s.target()
}

// selectAll returns the default full-table query
func (s tableStatement) selectAll() string {
	return "SELECT * FROM " + s.target()
}

// defaultQuery returns the query of a schema, synthesizing SELECT * FROM id when blank
func defaultQuery(query, id string) string {
	if strings.TrimSpace(query) != "" {
		return query
	}
	return "SELECT * FROM " + id
}

// countQuery wraps a query for exact-count semantics
func countQuery(query string) string {
	return "SELECT COUNT(*) FROM (" + strings.TrimRight(strings.TrimSpace(query), ";") + ") AS Q"
}
