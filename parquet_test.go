package fileschema

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/nao1215/fileschema/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeParquet writes a file with an int64 "id" column and a nullable string "name" column
func writeParquet(t *testing.T, path string, ids []int64, names []*string) {
	t.Helper()

	pool := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)

	idBuilder := array.NewInt64Builder(pool)
	defer idBuilder.Release()
	idBuilder.AppendValues(ids, nil)

	nameBuilder := array.NewStringBuilder(pool)
	defer nameBuilder.Release()
	for _, name := range names {
		if name == nil {
			nameBuilder.AppendNull()
			continue
		}
		nameBuilder.Append(*name)
	}

	idArray := idBuilder.NewArray()
	defer idArray.Release()
	nameArray := nameBuilder.NewArray()
	defer nameArray.Release()

	record := array.NewRecord(schema, []arrow.Array{idArray, nameArray}, int64(len(ids)))
	defer record.Release()

	file, err := os.Create(path) //nolint:gosec // test file
	require.NoError(t, err)

	writer, err := pqarrow.NewFileWriter(schema, file, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
	require.NoError(t, err)
	require.NoError(t, writer.Write(record))
	require.NoError(t, writer.Close())
}

func TestParquetAdapter_ImportTable(t *testing.T) {
	t.Parallel()

	alice, bob := "alice", "bob"

	t.Run("values are staged as text", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := filepath.Join(dir, "people.parquet")
		writeParquet(t, path, []int64{1, 2, 3}, []*string{&alice, nil, &bob})
		store := newTestStore(t)
		layout := model.RootPath{RootPath: dir}

		loaded, err := makeAdapter(t, store, layout, "people").ImportTable(context.Background(), path, layout, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(3), loaded)

		header, data := readTable(t, store, "main", "people")
		assert.Equal(t, []string{"id", "name"}, header)
		assert.Equal(t, [][]string{{"1", "alice"}, {"2", ""}, {"3", "bob"}}, data)
	})

	t.Run("row limit", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := filepath.Join(dir, "people.parquet")
		writeParquet(t, path, []int64{1, 2}, []*string{&alice, &bob})
		store := newTestStore(t)
		layout := model.RootPath{RootPath: dir, FileType: model.FileTypeParquet}

		loaded, err := makeAdapter(t, store, layout, "people").ImportTable(context.Background(), path, layout, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), loaded)
	})

	t.Run("not a parquet file", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := writeFile(t, dir, "broken.parquet", []byte("definitely not parquet"))
		store := newTestStore(t)
		layout := model.RootPath{RootPath: dir}

		_, err := makeAdapter(t, store, layout, "broken").ImportTable(context.Background(), path, layout, 0)
		require.ErrorIs(t, err, model.ErrSourceRead)
	})
}
