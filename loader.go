package fileschema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/nao1215/fileschema/domain/model"
	"github.com/nao1215/fileschema/staging"
)

// DefaultBatchSize is the number of rows committed per load transaction
const DefaultBatchSize = 1000

// rowSource yields parsed rows; io.EOF ends the stream
type rowSource interface {
	Next() (model.Row, error)
}

// sliceSource serves rows that are already in memory
type sliceSource struct {
	rows []model.Row
	pos  int
}

func newSliceSource(rows ...model.Row) *sliceSource {
	return &sliceSource{rows: rows}
}

// Next returns the next row or io.EOF
func (s *sliceSource) Next() (model.Row, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

// sourceFunc adapts a function to rowSource
type sourceFunc func() (model.Row, error)

// Next calls f
func (f sourceFunc) Next() (model.Row, error) {
	return f()
}

// batchLoader stages rows with the shared batch-commit protocol.
type batchLoader struct {
	store     *staging.Store
	logger    *slog.Logger
	batchSize int
}

func newBatchLoader(store *staging.Store, logger *slog.Logger) batchLoader {
	return batchLoader{store: store, logger: logger, batchSize: DefaultBatchSize}
}

// prepareTable creates the staged table and checks its column count against the layout
func (l batchLoader) prepareTable(ctx context.Context, stmt tableStatement) error {
	if stmt.width() == 0 {
		return model.Configurationf("no columns detected for table %s", stmt.table)
	}
	if err := l.store.EnsureSchema(ctx, stmt.schema); err != nil {
		return err
	}
	if err := l.store.Exec(ctx, stmt.createTable()); err != nil {
		return model.NewErrorContext("create table", "").WithTable(stmt.table).Error(err)
	}

	staged, err := l.store.DescribeTable(ctx, stmt.schema, stmt.table)
	if err != nil {
		return err
	}
	if len(staged) != stmt.width() {
		return model.Configurationf("staged table %s has %d columns but the layout declares %d",
			stmt.target(), len(staged), stmt.width())
	}
	return nil
}

// load creates the table if needed and inserts every row of source.
// A transaction is committed every batchSize rows and once more at the end. On error
// only the open batch is rolled back; rows of committed batches stay staged and the
// committed count is returned along with the error. A positive rowLimit stops the
// load after that many rows.
func (l batchLoader) load(ctx context.Context, stmt tableStatement, source rowSource, rowLimit int) (int64, error) {
	if err := l.prepareTable(ctx, stmt); err != nil {
		return 0, err
	}

	query := stmt.insert()
	tx, insert, err := l.begin(ctx, query)
	if err != nil {
		return 0, err
	}

	var (
		committed int64
		pending   int64
		width     = stmt.width()
	)
	for rowLimit <= 0 || committed+pending < int64(rowLimit) {
		row, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return committed, l.abort(tx, insert, stmt, err)
		}

		if _, err := insert.ExecContext(ctx, rowArgs(row.Fit(width))...); err != nil {
			return committed, l.abort(tx, insert, stmt, fmt.Errorf("%w: failed to insert row: %w", model.ErrStore, err))
		}
		pending++

		if pending == int64(l.batchSize) {
			if err := l.commit(tx, insert); err != nil {
				return committed, l.abort(tx, nil, stmt, err)
			}
			committed += pending
			pending = 0
			l.logger.Debug("batch committed", "table", stmt.target(), "rows", committed)

			if tx, insert, err = l.begin(ctx, query); err != nil {
				return committed, err
			}
		}
	}

	if err := l.commit(tx, insert); err != nil {
		return committed, l.abort(tx, nil, stmt, err)
	}
	committed += pending
	l.logger.Debug("load finished", "table", stmt.target(), "rows", committed)
	return committed, nil
}

// begin opens a batch transaction with the insert statement prepared on it
func (l batchLoader) begin(ctx context.Context, query string) (*staging.Tx, *sql.Stmt, error) {
	tx, err := l.store.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	insert, err := tx.Prepare(ctx, query)
	if err != nil {
		_ = tx.Rollback() // Ignore rollback error since we're already returning an error
		return nil, nil, err
	}
	return tx, insert, nil
}

func (l batchLoader) commit(tx *staging.Tx, insert *sql.Stmt) error {
	if err := insert.Close(); err != nil {
		return fmt.Errorf("%w: failed to close insert statement: %w", model.ErrStore, err)
	}
	return tx.Commit()
}

// abort rolls back the open batch and returns cause
func (l batchLoader) abort(tx *staging.Tx, insert *sql.Stmt, stmt tableStatement, cause error) error {
	if insert != nil {
		_ = insert.Close() // Ignore close error, the transaction is rolled back below
	}
	if err := tx.Rollback(); err != nil {
		l.logger.Warn("rollback failed", "table", stmt.target(), "error", err)
	}
	l.logger.Warn("load aborted, open batch rolled back", "table", stmt.target(), "error", cause)
	return cause
}

// rowArgs converts a row into statement arguments
func rowArgs(row model.Row) []any {
	args := make([]any, len(row))
	for i, value := range row {
		args[i] = value
	}
	return args
}
