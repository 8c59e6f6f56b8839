package fileschema

import (
	"context"

	"github.com/nao1215/fileschema/domain/model"
	"github.com/nao1215/fileschema/staging"
)

// ImportPaths stages paths into schemaName.tableName. Rows staged by an earlier
// import of the same table are purged first, so loading the same files twice
// leaves one copy of their rows. A positive sampleLimit bounds the rows loaded per
// file. The number of rows staged is returned.
func ImportPaths(ctx context.Context, factory *Factory, store *staging.Store, layout model.RootPath, tableName, schemaName string, paths []string, sampleLimit int) (int64, error) {
	if factory == nil {
		factory = NewFactory()
	}
	adapter, err := factory.MakeImportExportFile(store, layout, tableName, schemaName)
	if err != nil {
		return 0, err
	}

	if err := purgeTables(ctx, store, adapter, layout); err != nil {
		return 0, err
	}

	var total int64
	for _, path := range paths {
		loaded, err := adapter.ImportTable(ctx, path, layout, sampleLimit)
		total += loaded
		if err != nil {
			return total, err
		}
		factory.logger.Info("file staged", "path", path, "table", tableName, "rows", loaded)
	}
	return total, nil
}

// stagedTables returns every table the adapter writes to
func stagedTables(ctx context.Context, adapter Adapter, layout model.RootPath) ([]model.TableRef, error) {
	if lister, ok := adapter.(TableLister); ok {
		return lister.GetAllTableNames(ctx, layout)
	}
	if target, ok := adapter.(interface{ Target() model.TableRef }); ok {
		return []model.TableRef{target.Target()}, nil
	}
	return nil, nil
}

// purgeTables deletes the staged rows of every existing target table
func purgeTables(ctx context.Context, store *staging.Store, adapter Adapter, layout model.RootPath) error {
	tables, err := stagedTables(ctx, adapter, layout)
	if err != nil {
		return err
	}

	for _, ref := range tables {
		if err := store.EnsureSchema(ctx, ref.Schema); err != nil {
			return err
		}
		exists, err := store.TableExists(ctx, ref.Schema, ref.Table)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		stmt := newTableStatement(store.Dialect(), ref.Schema, ref.Table, nil)
		if err := store.Exec(ctx, stmt.deleteAll()); err != nil {
			return model.NewErrorContext("purge", "").WithTable(ref.Table).Error(err)
		}
	}
	return nil
}
