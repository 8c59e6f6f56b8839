package fileschema

import (
	"context"
	"errors"
	"io"
	"strconv"
	"testing"

	"github.com/nao1215/fileschema/domain/model"
	"github.com/nao1215/fileschema/staging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore opens an in-memory SQLite staging store closed at the end of the test
func newTestStore(t *testing.T) *staging.Store {
	t.Helper()

	store, err := staging.Open(context.Background(), staging.Config{Location: staging.MemoryLocation})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// countRows returns the number of rows of a staged table
func countRows(t *testing.T, store *staging.Store, schema, table string) int64 {
	t.Helper()

	count := CountRecords(context.Background(), store, model.Schema{ID: store.Qualify(schema, table)})
	require.True(t, count.IsExact(), "count of %s.%s unavailable", schema, table)
	return count.Value
}

func numberedRows(n int) []model.Row {
	rows := make([]model.Row, n)
	for i := range rows {
		rows[i] = model.Row{strconv.Itoa(i), "name" + strconv.Itoa(i)}
	}
	return rows
}

func TestBatchLoader_Load(t *testing.T) {
	t.Parallel()

	t.Run("failure after row 2100 keeps two committed batches", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		stmt := newTableStatement(store.Dialect(), "main", "batch", textColumns([]string{"id", "name"}))

		rows := numberedRows(2500)
		produced := 0
		injected := errors.New("injected failure")
		source := sourceFunc(func() (model.Row, error) {
			if produced == 2100 {
				return nil, injected
			}
			if produced >= len(rows) {
				return nil, io.EOF
			}
			row := rows[produced]
			produced++
			return row, nil
		})

		loaded, err := newBatchLoader(store, store.Logger()).load(context.Background(), stmt, source, 0)
		require.ErrorIs(t, err, injected)
		assert.Equal(t, int64(2000), loaded)
		assert.Equal(t, int64(2000), countRows(t, store, "main", "batch"))
	})

	t.Run("all rows are committed at end of input", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		stmt := newTableStatement(store.Dialect(), "main", "full", textColumns([]string{"id", "name"}))

		loaded, err := newBatchLoader(store, store.Logger()).load(context.Background(), stmt, newSliceSource(numberedRows(2500)...), 0)
		require.NoError(t, err)
		assert.Equal(t, int64(2500), loaded)
		assert.Equal(t, int64(2500), countRows(t, store, "main", "full"))
	})

	t.Run("row limit stops the load", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		stmt := newTableStatement(store.Dialect(), "main", "limited", textColumns([]string{"id", "name"}))

		loaded, err := newBatchLoader(store, store.Logger()).load(context.Background(), stmt, newSliceSource(numberedRows(50)...), 7)
		require.NoError(t, err)
		assert.Equal(t, int64(7), loaded)
		assert.Equal(t, int64(7), countRows(t, store, "main", "limited"))
	})

	t.Run("zero columns is a configuration error", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		stmt := newTableStatement(store.Dialect(), "main", "empty", nil)

		_, err := newBatchLoader(store, store.Logger()).load(context.Background(), stmt, newSliceSource(), 0)
		require.ErrorIs(t, err, model.ErrConfiguration)
	})

	t.Run("staged column count mismatch is a configuration error", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		require.NoError(t, store.Exec(context.Background(), "CREATE TABLE [mismatch] ([a] VARCHAR, [b] VARCHAR)"))
		stmt := newTableStatement(store.Dialect(), "main", "mismatch", textColumns([]string{"a", "b", "c"}))

		_, err := newBatchLoader(store, store.Logger()).load(context.Background(), stmt, newSliceSource(model.Row{"1", "2", "3"}), 0)
		require.ErrorIs(t, err, model.ErrConfiguration)
	})

	t.Run("short and long rows are fitted to the header", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		stmt := newTableStatement(store.Dialect(), "main", "fitted", textColumns([]string{"a", "b"}))

		loaded, err := newBatchLoader(store, store.Logger()).load(context.Background(), stmt,
			newSliceSource(model.Row{"1"}, model.Row{"1", "2", "3"}), 0)
		require.NoError(t, err)
		assert.Equal(t, int64(2), loaded)
	})

	t.Run("small batch size commits per batch", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		stmt := newTableStatement(store.Dialect(), "main", "small", textColumns([]string{"id", "name"}))
		loader := newBatchLoader(store, store.Logger())
		loader.batchSize = 3

		rows := numberedRows(8)
		produced := 0
		source := sourceFunc(func() (model.Row, error) {
			if produced == 7 {
				return nil, errors.New("broken row")
			}
			row := rows[produced]
			produced++
			return row, nil
		})

		loaded, err := loader.load(context.Background(), stmt, source, 0)
		require.Error(t, err)
		assert.Equal(t, int64(6), loaded)
		assert.Equal(t, int64(6), countRows(t, store, "main", "small"))
	})
}
