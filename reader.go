package fileschema

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nao1215/fileschema/domain/model"
	"github.com/nao1215/fileschema/staging"
)

// RecordIterator is a single pass, forward-only cursor over the records of a schema.
// It is not safe for concurrent use.
type RecordIterator struct {
	rows    *staging.Rows
	schema  model.Schema
	logger  *slog.Logger
	index   map[string]int
	current model.Record
	err     error
	missing map[string]bool
	done    bool
}

// ReadRecords runs the schema query, or SELECT * FROM the schema id when the query
// is blank, and returns an iterator over its rows. A query that cannot be opened
// is logged and yields an iterator without records.
func ReadRecords(ctx context.Context, store *staging.Store, schema model.Schema, logger *slog.Logger) *RecordIterator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	it := &RecordIterator{
		schema:  schema,
		logger:  logger,
		missing: make(map[string]bool),
	}

	query := defaultQuery(schema.Query, schema.ID)
	rows, err := store.Query(ctx, query)
	if err != nil {
		logger.Warn("failed to open records", "schema", schema.ID, "error", err)
		it.done = true
		return it
	}

	it.rows = rows
	columns := rows.Columns()
	it.index = make(map[string]int, len(columns))
	for i, col := range columns {
		if _, ok := it.index[col.Name]; !ok {
			it.index[col.Name] = i
		}
	}
	return it
}

// Next advances to the next record. It returns false at the end of the rows or
// after an error; the iterator is closed at that point.
func (it *RecordIterator) Next() bool {
	if it.done {
		return false
	}
	if !it.rows.Next() {
		it.err = it.rows.Err()
		_ = it.Close()
		return false
	}

	values, err := it.rows.Values()
	if err != nil {
		it.err = err
		_ = it.Close()
		return false
	}

	record := model.NewRecord()
	for _, prop := range it.schema.Properties {
		i, ok := it.index[prop.ID]
		if !ok {
			if !it.missing[prop.ID] {
				it.missing[prop.ID] = true
				it.logger.Warn("property missing from row", "schema", it.schema.ID, "property", prop.ID,
					"error", model.ErrPropertyResolution)
			}
			record.Data.Set(prop.ID, "")
			continue
		}
		record.Data.Set(prop.ID, coerceValue(prop.Type, values[i]))
	}
	it.current = record
	return true
}

// Record returns the record read by the last call to Next
func (it *RecordIterator) Record() model.Record {
	return it.current
}

// Err returns the error that ended the iteration, if any
func (it *RecordIterator) Err() error {
	return it.err
}

// Close releases the underlying rows. It is safe to call more than once.
func (it *RecordIterator) Close() error {
	it.done = true
	if it.rows == nil {
		return nil
	}
	rows := it.rows
	it.rows = nil
	return rows.Close()
}

// Collect reads up to limit records and closes the iterator. A limit of zero or
// less reads every record.
func (it *RecordIterator) Collect(limit int) ([]model.Record, error) {
	defer func() { _ = it.Close() }()

	var records []model.Record
	for (limit <= 0 || len(records) < limit) && it.Next() {
		records = append(records, it.Record())
	}
	return records, it.Err()
}

// coerceValue converts String and Text values to their string form, nil becoming
// the empty string. Other types are passed through.
func coerceValue(t model.PropertyType, value any) any {
	if t != model.PropertyTypeString && t != model.PropertyTypeText {
		return value
	}
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}
