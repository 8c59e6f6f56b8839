package fileschema

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nao1215/fileschema/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "b.csv", []byte("a\n"))
	writeFile(t, dir, "a.csv", []byte("a\n"))
	writeFile(t, dir, "a.csv.gz", []byte("not read"))
	writeFile(t, dir, "notes.md", []byte("# notes"))
	writeFile(t, dir, filepath.Join("2024", "c.csv"), []byte("a\n"))
	writeFile(t, dir, filepath.Join("2024", "d.tsv"), []byte("a\n"))

	t.Run("top level only", func(t *testing.T) {
		t.Parallel()

		groups, err := CollectPaths(model.RootPath{RootPath: dir})
		require.NoError(t, err)
		assert.Equal(t, []PathGroup{
			{Dir: dir, Paths: []string{filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv")}},
		}, groups)
	})

	t.Run("recursive with filters", func(t *testing.T) {
		t.Parallel()

		groups, err := CollectPaths(model.RootPath{RootPath: dir, Recursive: true, Filters: []string{"*.csv"}})
		require.NoError(t, err)
		assert.Equal(t, []PathGroup{
			{Dir: dir, Paths: []string{filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv")}},
			{Dir: filepath.Join(dir, "2024"), Paths: []string{filepath.Join(dir, "2024", "c.csv")}},
		}, groups)
	})

	t.Run("root naming a file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(dir, "b.csv")
		groups, err := CollectPaths(model.RootPath{RootPath: path})
		require.NoError(t, err)
		assert.Equal(t, []PathGroup{{Dir: dir, Paths: []string{path}}}, groups)
	})

	t.Run("invalid filter", func(t *testing.T) {
		t.Parallel()

		_, err := CollectPaths(model.RootPath{RootPath: dir, Filters: []string{"[bad"}})
		require.Error(t, err)
	})

	t.Run("missing root", func(t *testing.T) {
		t.Parallel()

		_, err := CollectPaths(model.RootPath{RootPath: filepath.Join(dir, "missing")})
		require.ErrorIs(t, err, model.ErrSourceRead)

		_, err = CollectPaths(model.RootPath{})
		require.ErrorIs(t, err, model.ErrConfiguration)
	})
}

func TestImportPaths(t *testing.T) {
	t.Parallel()

	t.Run("reloading purges previous rows", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		paths := []string{
			writeFile(t, dir, "jan.csv", []byte("id,amount\n1,10\n2,20\n")),
			writeFile(t, dir, "feb.csv", []byte("id,amount\n3,30\n")),
		}
		store := newTestStore(t)
		layout := model.RootPath{RootPath: dir, HasHeader: true}

		for range 2 {
			loaded, err := ImportPaths(context.Background(), NewFactory(), store, layout, "sales", "", paths, 0)
			require.NoError(t, err)
			assert.Equal(t, int64(3), loaded)
			assert.Equal(t, int64(3), countRows(t, store, "main", "sales"))
		}
	})

	t.Run("sample limit bounds each file", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		paths := []string{
			writeFile(t, dir, "a.csv", []byte("id\n1\n2\n3\n")),
			writeFile(t, dir, "b.csv", []byte("id\n4\n5\n6\n")),
		}
		store := newTestStore(t)
		layout := model.RootPath{RootPath: dir, HasHeader: true}

		loaded, err := ImportPaths(context.Background(), nil, store, layout, "ids", "", paths, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(4), loaded)
	})

	t.Run("attached schema", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		paths := []string{writeFile(t, dir, "a.csv", []byte("id\n1\n"))}
		store := newTestStore(t)
		layout := model.RootPath{RootPath: dir, HasHeader: true}

		for range 2 {
			_, err := ImportPaths(context.Background(), nil, store, layout, "ids", "raw", paths, 0)
			require.NoError(t, err)
		}
		assert.Equal(t, int64(1), countRows(t, store, "raw", "ids"))
	})

	t.Run("invalid table name", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		_, err := ImportPaths(context.Background(), nil, store, model.RootPath{}, " ", "", nil, 0)
		require.ErrorIs(t, err, model.ErrConfiguration)
	})

	t.Run("xml dataset tables are purged", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeFile(t, dir, "orders.xsd", []byte(ordersXSD))
		paths := []string{writeFile(t, dir, "orders.xml", []byte(ordersXML))}
		store := newTestStore(t)
		layout := model.RootPath{
			RootPath: dir,
			XML:      model.XMLSettings{Strategy: model.XMLStrategySchema, SchemaPath: "orders.xsd"},
		}

		for range 2 {
			_, err := ImportPaths(context.Background(), nil, store, layout, "doc", "", paths, 0)
			require.NoError(t, err)
		}
		assert.Equal(t, int64(3), countRows(t, store, "main", "doc_Line"))
	})
}
