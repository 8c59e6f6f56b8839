package staging

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nao1215/fileschema/domain/model"

	_ "github.com/marcboeker/go-duckdb" // registers the "duckdb" database/sql driver
	_ "modernc.org/sqlite"              // registers the "sqlite" database/sql driver
)

const (
	// MemoryLocation selects an in-memory store
	MemoryLocation = "@memory"
	// filePrefix marks a file-backed store location
	filePrefix = "file:"
)

// Config holds the parameters needed to open a staging store.
type Config struct {
	// Driver selects the engine; empty means SQLite
	Driver Driver `koanf:"driver"`
	// Location is MemoryLocation or a "file:" URI
	Location string `koanf:"location"`
	// Logger receives statement diagnostics; nil discards them
	Logger *slog.Logger `koanf:"-"`
}

// Store is a staging store session bound to one long-lived connection.
type Store struct {
	db       *sql.DB
	conn     *sql.Conn
	dialect  Dialect
	location string
	logger   *slog.Logger
	ownsDB   bool

	mu       sync.Mutex
	attached map[string]bool
}

// Open opens a new staging store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dialect := NewDialect(cfg.Driver)
	location := cfg.Location
	if location == "" {
		location = MemoryLocation
	}

	dsn, err := dataSourceName(dialect.Driver(), location)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(string(dialect.Driver()), dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s store: %w", model.ErrStore, dialect.Driver(), err)
	}

	store, err := newStore(ctx, db, dialect, location, cfg.Logger)
	if err != nil {
		_ = db.Close() // Ignore close error since we're already returning an error
		return nil, err
	}
	store.ownsDB = true
	return store, nil
}

// New wraps an already opened database. The store takes one connection from db
// and keeps it until Close; db itself is not closed by the store.
func New(ctx context.Context, db *sql.DB, driver Driver, logger *slog.Logger) (*Store, error) {
	return newStore(ctx, db, NewDialect(driver), MemoryLocation, logger)
}

func newStore(ctx context.Context, db *sql.DB, dialect Dialect, location string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to acquire connection: %w", model.ErrStore, err)
	}

	return &Store{
		db:       db,
		conn:     conn,
		dialect:  dialect,
		location: location,
		logger:   logger,
		attached: make(map[string]bool),
	}, nil
}

// dataSourceName converts a store location into a driver DSN
func dataSourceName(driver Driver, location string) (string, error) {
	switch {
	case location == MemoryLocation:
		if driver == DriverDuckDB {
			return "", nil
		}
		return ":memory:", nil
	case strings.HasPrefix(location, filePrefix):
		if driver == DriverDuckDB {
			return strings.TrimPrefix(location, filePrefix), nil
		}
		return location, nil
	default:
		return "", model.Configurationf("unsupported staging location %q, want %q or a file: URI", location, MemoryLocation)
	}
}

// Close releases the connection. In-memory data is lost afterwards.
func (s *Store) Close() error {
	var errs []error
	if s.conn != nil {
		errs = append(errs, s.conn.Close())
	}
	if s.ownsDB && s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

// Dialect returns the SQL conventions of the engine
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Quote quotes an identifier
func (s *Store) Quote(ident string) string {
	return s.dialect.Quote(ident)
}

// Qualify returns the quoted schema.table pair
func (s *Store) Qualify(schema, table string) string {
	return s.dialect.Qualify(schema, table)
}

// Logger returns the store logger
func (s *Store) Logger() *slog.Logger {
	return s.logger
}

// Exec runs a statement that returns no rows.
func (s *Store) Exec(ctx context.Context, query string, args ...any) error {
	s.logger.Debug("exec", "sql", query)
	if _, err := s.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: %w", model.ErrStore, err)
	}
	return nil
}

// Query runs a query and exposes its rows together with column metadata.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	s.logger.Debug("query", "sql", query)
	//nolint:rowserrcheck // rows.Err() is checked by Rows.Err after iteration completes
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrStore, err)
	}

	columns, err := columnMetadata(rows)
	if err != nil {
		_ = rows.Close()
		return nil, err
	}

	return &Rows{rows: rows, columns: columns}, nil
}

// QueryTable runs query and marks the result columns that belong to the primary
// key of the staged table schema.table. Column names are matched case-insensitively.
// When the table cannot be described the columns are returned without keys.
func (s *Store) QueryTable(ctx context.Context, schema, table, query string, args ...any) (*Rows, error) {
	keys := make(map[string]struct{})
	described, err := s.DescribeTable(ctx, schema, table)
	if err != nil {
		s.logger.Debug("key metadata unavailable", "table", s.Qualify(schema, table), "error", err)
	}
	for _, col := range described {
		if col.IsKey {
			keys[strings.ToLower(col.Name)] = struct{}{}
		}
	}

	rows, err := s.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	for i := range rows.columns {
		if _, ok := keys[strings.ToLower(rows.columns[i].Name)]; ok {
			rows.columns[i].IsKey = true
			rows.columns[i].Nullable = false
		}
	}
	return rows, nil
}

// Begin starts a transaction on the store connection.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %w", model.ErrStore, err)
	}
	return &Tx{tx: tx, logger: s.logger}, nil
}

// EnsureSchema makes schema addressable. SQLite attaches a database named after
// the schema, DuckDB creates it.
func (s *Store) EnsureSchema(ctx context.Context, schema string) error {
	if schema == "" || schema == s.dialect.DefaultSchema() || schema == "temp" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached[schema] {
		return nil
	}

	if s.dialect.Driver() == DriverDuckDB {
		if err := s.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+s.Quote(schema)); err != nil {
			return err
		}
		s.attached[schema] = true
		return nil
	}

	attached, err := s.sqliteAttached(ctx, schema)
	if err != nil {
		return err
	}
	if !attached {
		if err := s.Exec(ctx, "ATTACH DATABASE ? AS "+s.Quote(schema), s.attachTarget(schema)); err != nil {
			return err
		}
	}
	s.attached[schema] = true
	return nil
}

// attachTarget returns the database file backing an attached schema
func (s *Store) attachTarget(schema string) string {
	if !strings.HasPrefix(s.location, filePrefix) {
		return ":memory:"
	}
	path := strings.TrimPrefix(s.location, filePrefix)
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "." + schema + ext
}

// sqliteAttached checks PRAGMA database_list for schema
func (s *Store) sqliteAttached(ctx context.Context, schema string) (bool, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT name FROM pragma_database_list")
	if err != nil {
		return false, fmt.Errorf("%w: failed to list databases: %w", model.ErrStore, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, fmt.Errorf("%w: %w", model.ErrStore, err)
		}
		if strings.EqualFold(name, schema) {
			return true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("%w: %w", model.ErrStore, err)
	}
	return false, nil
}

// TableExists reports whether schema.table has been created.
func (s *Store) TableExists(ctx context.Context, schema, table string) (bool, error) {
	if schema == "" {
		schema = s.dialect.DefaultSchema()
	}

	var (
		query string
		args  []any
	)
	if s.dialect.Driver() == DriverDuckDB {
		query = `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?`
		args = []any{schema, table}
	} else {
		query = fmt.Sprintf(`SELECT COUNT(*) FROM %s.sqlite_master WHERE type='table' AND name=?`, s.Quote(schema))
		args = []any{table}
	}

	var count int
	if err := s.conn.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("%w: failed to check table existence: %w", model.ErrStore, err)
	}
	return count > 0, nil
}

// DescribeTable returns the declared columns of a staged table in ordinal order.
func (s *Store) DescribeTable(ctx context.Context, schema, table string) ([]model.ColumnMetadata, error) {
	if schema == "" {
		schema = s.dialect.DefaultSchema()
	}

	if s.dialect.Driver() == DriverDuckDB {
		return s.describeDuckDB(ctx, schema, table)
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT name, type, "notnull", pk FROM pragma_table_info(?, ?) ORDER BY cid`,
		table, schema,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to describe %s: %w", model.ErrStore, table, err)
	}
	defer func() { _ = rows.Close() }()

	var columns []model.ColumnMetadata
	for rows.Next() {
		var (
			col     model.ColumnMetadata
			notNull int
			pk      int
		)
		if err := rows.Scan(&col.Name, &col.DatabaseType, &notNull, &pk); err != nil {
			return nil, fmt.Errorf("%w: failed to scan column metadata: %w", model.ErrStore, err)
		}
		col.Length = model.DeclaredLength(col.DatabaseType)
		col.Nullable = notNull == 0 && pk == 0
		col.IsKey = pk > 0
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating column metadata: %w", model.ErrStore, err)
	}
	return columns, nil
}

func (s *Store) describeDuckDB(ctx context.Context, schema, table string) ([]model.ColumnMetadata, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable, COALESCE(character_maximum_length, 0)
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to describe %s: %w", model.ErrStore, table, err)
	}
	defer func() { _ = rows.Close() }()

	var columns []model.ColumnMetadata
	for rows.Next() {
		var (
			col      model.ColumnMetadata
			nullable string
		)
		if err := rows.Scan(&col.Name, &col.DatabaseType, &nullable, &col.Length); err != nil {
			return nil, fmt.Errorf("%w: failed to scan column metadata: %w", model.ErrStore, err)
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating column metadata: %w", model.ErrStore, err)
	}

	keys, err := s.duckDBPrimaryKey(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	for i := range columns {
		if _, ok := keys[columns[i].Name]; ok {
			columns[i].IsKey = true
			columns[i].Nullable = false
		}
	}
	return columns, nil
}

// duckDBPrimaryKey returns the primary key columns of a DuckDB table
func (s *Store) duckDBPrimaryKey(ctx context.Context, schema, table string) (map[string]struct{}, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT UNNEST(constraint_column_names)
		FROM duckdb_constraints()
		WHERE schema_name = ? AND table_name = ? AND constraint_type = 'PRIMARY KEY'`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read constraints of %s: %w", model.ErrStore, table, err)
	}
	defer func() { _ = rows.Close() }()

	keys := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: failed to scan constraint column: %w", model.ErrStore, err)
		}
		keys[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating constraints: %w", model.ErrStore, err)
	}
	return keys, nil
}

// columnMetadata reads name, type, length and nullability of a result set
func columnMetadata(rows *sql.Rows) ([]model.ColumnMetadata, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read column types: %w", model.ErrStore, err)
	}

	columns := make([]model.ColumnMetadata, len(types))
	for i, ct := range types {
		col := model.ColumnMetadata{
			Name:         ct.Name(),
			DatabaseType: ct.DatabaseTypeName(),
			Nullable:     true,
		}
		if length, ok := ct.Length(); ok && length > 0 && length < 1<<31 {
			col.Length = length
		} else {
			col.Length = model.DeclaredLength(col.DatabaseType)
		}
		if nullable, ok := ct.Nullable(); ok {
			col.Nullable = nullable
		}
		columns[i] = col
	}
	return columns, nil
}

// Rows is a forward-only result set with column metadata.
type Rows struct {
	rows    *sql.Rows
	columns []model.ColumnMetadata
}

// Columns returns the column metadata of the result set
func (r *Rows) Columns() []model.ColumnMetadata {
	return r.columns
}

// Next advances to the next row
func (r *Rows) Next() bool {
	return r.rows.Next()
}

// Values scans the current row. Byte slices are returned as copies.
func (r *Rows) Values() ([]any, error) {
	values := make([]any, len(r.columns))
	pointers := make([]any, len(r.columns))
	for i := range values {
		pointers[i] = &values[i]
	}
	if err := r.rows.Scan(pointers...); err != nil {
		return nil, fmt.Errorf("%w: failed to scan row: %w", model.ErrStore, err)
	}
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			values[i] = append([]byte(nil), b...)
		}
	}
	return values, nil
}

// Err returns the error met during iteration, if any
func (r *Rows) Err() error {
	if err := r.rows.Err(); err != nil {
		return fmt.Errorf("%w: %w", model.ErrStore, err)
	}
	return nil
}

// Close releases the result set
func (r *Rows) Close() error {
	return r.rows.Close()
}

// Tx is a transaction scoped to one adapter load call.
type Tx struct {
	tx     *sql.Tx
	logger *slog.Logger
}

// Prepare prepares a statement bound to the transaction
func (t *Tx) Prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	t.logger.Debug("prepare", "sql", query)
	stmt, err := t.tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to prepare statement: %w", model.ErrStore, err)
	}
	return stmt, nil
}

// Exec runs a statement inside the transaction
func (t *Tx) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: %w", model.ErrStore, err)
	}
	return nil
}

// Commit commits the transaction
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit: %w", model.ErrStore, err)
	}
	return nil
}

// Rollback aborts the transaction
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%w: failed to roll back: %w", model.ErrStore, err)
	}
	return nil
}
