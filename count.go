package fileschema

import (
	"context"
	"fmt"

	"github.com/nao1215/fileschema/domain/model"
	"github.com/nao1215/fileschema/staging"
)

// CountRecords returns the exact number of rows of the schema query. Any failure,
// including a query without rows, yields an unavailable count.
func CountRecords(ctx context.Context, store *staging.Store, schema model.Schema) model.Count {
	rows, err := store.Query(ctx, countQuery(defaultQuery(schema.Query, schema.ID)))
	if err != nil {
		store.Logger().Debug("count unavailable", "schema", schema.ID, "error", err)
		return model.UnavailableCount()
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return model.UnavailableCount()
	}
	values, err := rows.Values()
	if err != nil || len(values) == 0 {
		return model.UnavailableCount()
	}

	n, ok := toInt64(values[0])
	if !ok {
		return model.UnavailableCount()
	}
	return model.ExactCount(n)
}

// toInt64 converts the scalar returned by COUNT(*)
func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	case uint64:
		return int64(v), true //nolint:gosec // row counts fit in int64
	case float64:
		return int64(v), true
	case []byte:
		var n int64
		_, err := fmt.Sscan(string(v), &n)
		return n, err == nil
	case string:
		var n int64
		_, err := fmt.Sscan(v, &n)
		return n, err == nil
	default:
		return 0, false
	}
}
