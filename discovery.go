package fileschema

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/fileschema/domain/model"
	"github.com/nao1215/fileschema/staging"
)

// publisherMeta is the payload stored in Schema.PublisherMetaJSON. It carries what
// is needed to stage the source again on a later call.
type publisherMeta struct {
	Path     string          `json:"path,omitempty"`
	RootPath *model.RootPath `json:"rootPath,omitempty"`
	Table    string          `json:"table"`
	Schema   string          `json:"schema"`
}

// Discoverer derives schemas from staged sample data.
type Discoverer struct {
	store   *staging.Store
	factory *Factory
	logger  *slog.Logger
}

// NewDiscoverer creates a discoverer staging into store. A nil factory uses the defaults.
func NewDiscoverer(store *staging.Store, factory *Factory) *Discoverer {
	if factory == nil {
		factory = NewFactory()
	}
	return &Discoverer{
		store:   store,
		factory: factory,
		logger:  factory.Logger(),
	}
}

// DiscoverSchemas discovers one schema per directory of paths, or one per dataset
// table for XML schema layouts. Only the first file of each directory is staged,
// bounded to sampleSize rows, so the reported count is that of the sampled file.
// When paths is empty the files are collected from layout.RootPath.
func (d *Discoverer) DiscoverSchemas(ctx context.Context, layout model.RootPath, paths []string, sampleSize int) ([]model.Schema, error) {
	var groups []PathGroup
	if len(paths) == 0 {
		collected, err := CollectPaths(layout)
		if err != nil {
			return nil, err
		}
		groups = collected
	} else {
		groups = groupPaths(paths)
	}

	var schemas []model.Schema
	for _, group := range groups {
		if len(group.Paths) == 0 {
			continue
		}
		discovered, err := d.discoverGroup(ctx, layout, group, TableName(layout, group, len(groups)), sampleSize)
		if err != nil {
			return schemas, err
		}
		schemas = append(schemas, discovered...)
	}
	return schemas, nil
}

// TableName picks the staged table of a path group: the explicit table name, the
// file name when the root is a file, or the directory name. An explicit name shared
// by several directories is suffixed with the directory name to keep the tables apart.
func TableName(layout model.RootPath, group PathGroup, groupCount int) string {
	dirTable := model.TableFromDirectory(group.Dir)
	if info, err := os.Stat(layout.RootPath); err == nil && !info.IsDir() {
		dirTable = model.TableFromFilePath(layout.RootPath)
	}

	name := strings.TrimSpace(layout.TableName)
	switch {
	case name == "":
		return dirTable
	case groupCount > 1:
		return name + "_" + dirTable
	default:
		return name
	}
}

// discoverGroup purges the target tables, stages the first file of the group and
// describes every table it produced
func (d *Discoverer) discoverGroup(ctx context.Context, layout model.RootPath, group PathGroup, tableName string, sampleSize int) ([]model.Schema, error) {
	adapter, err := d.factory.MakeImportExportFile(d.store, layout, tableName, layout.SchemaName)
	if err != nil {
		return nil, err
	}
	if err := purgeTables(ctx, d.store, adapter, layout); err != nil {
		return nil, err
	}

	first := group.Paths[0]
	loaded, err := adapter.ImportTable(ctx, first, layout, sampleSize)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("sample staged", "path", first, "table", tableName, "rows", loaded)

	tables, err := stagedTables(ctx, adapter, layout)
	if err != nil {
		return nil, err
	}

	root := layout
	meta := publisherMeta{RootPath: &root, Table: tableName, Schema: layout.SchemaName}
	if len(group.Paths) == 1 {
		meta.Path = first
	} else {
		root.RootPath = group.Dir
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode publisher metadata: %w", err)
	}

	schemas := make([]model.Schema, 0, len(tables))
	for _, ref := range tables {
		schema, err := d.describe(ctx, ref, layout, "", sampleSize)
		if err != nil {
			return schemas, err
		}
		schema.PublisherMetaJSON = string(encoded)
		schemas = append(schemas, schema)
	}
	return schemas, nil
}

// describe builds the schema of a staged table from the metadata of its query
func (d *Discoverer) describe(ctx context.Context, ref model.TableRef, layout model.RootPath, query string, sampleSize int) (model.Schema, error) {
	schema := model.Schema{
		ID:                d.store.Qualify(ref.Schema, ref.Table),
		Name:              ref.Table,
		Query:             query,
		DataFlowDirection: model.DataFlowReadOnly,
	}

	rows, err := d.store.QueryTable(ctx, ref.Schema, ref.Table, defaultQuery(query, schema.ID))
	if err != nil {
		return schema, err
	}
	columns := rows.Columns()
	_ = rows.Close()

	schema.Properties = make([]model.Property, len(columns))
	for i, col := range columns {
		// engines such as DuckDB do not keep the declared VARCHAR length
		if declared, ok := layout.Column(col.Name); ok && col.Length == 0 && declared.MaxLength > 0 {
			col.Length = int64(declared.MaxLength)
		}
		prop := model.Property{
			ID:           col.Name,
			Name:         col.Name,
			Type:         model.GetPropertyType(col),
			TypeAtSource: col.DatabaseType,
			IsKey:        col.IsKey,
			IsNullable:   col.Nullable,
		}
		if declared, ok := layout.Column(col.Name); ok {
			prop.IsKey = declared.IsKey
			prop.IsNullable = !declared.IsKey
		}
		schema.Properties[i] = prop
	}

	sample, err := ReadRecords(ctx, d.store, schema, d.logger).Collect(sampleSize)
	if err != nil {
		d.logger.Warn("sample read incomplete", "schema", schema.ID, "error", err)
	}
	if layout.InferTypes {
		narrowTypes(schema.Properties, sample)
	}
	schema.Sample = sample
	schema.Count = CountRecords(ctx, d.store, schema)
	return schema, nil
}

// narrowTypes replaces String properties by the type inferred from sampled values
func narrowTypes(props []model.Property, sample []model.Record) {
	if len(sample) == 0 {
		return
	}
	for i, prop := range props {
		if prop.Type != model.PropertyTypeString {
			continue
		}
		values := make([]string, 0, len(sample))
		for _, record := range sample {
			if v, ok := record.Value(prop.ID); ok {
				if s, ok := v.(string); ok {
					values = append(values, s)
				}
			}
		}
		props[i].Type = model.InferPropertyType(values)
	}
}

// RefreshSchema stages the source of a previously discovered schema again and
// describes it. When that fails and previous has properties, previous is returned
// unchanged and the failure is logged.
func (d *Discoverer) RefreshSchema(ctx context.Context, previous model.Schema, sampleSize int) (model.Schema, error) {
	schema, err := d.refresh(ctx, previous, sampleSize)
	if err == nil {
		return schema, nil
	}
	if len(previous.Properties) > 0 {
		d.logger.Warn("discovery failed, keeping previous schema",
			"schema", previous.ID, "error", fmt.Errorf("%w: %w", model.ErrDiscoveryDegraded, err))
		return previous, nil
	}
	return model.Schema{}, err
}

func (d *Discoverer) refresh(ctx context.Context, previous model.Schema, sampleSize int) (model.Schema, error) {
	var meta publisherMeta
	if err := json.Unmarshal([]byte(previous.PublisherMetaJSON), &meta); err != nil {
		return model.Schema{}, model.Configurationf("invalid publisher metadata of %s: %v", previous.ID, err)
	}
	if meta.RootPath == nil {
		return model.Schema{}, model.Configurationf("publisher metadata of %s has no layout", previous.ID)
	}

	layout := *meta.RootPath
	var group PathGroup
	if meta.Path != "" {
		group = PathGroup{Dir: filepath.Dir(meta.Path), Paths: []string{meta.Path}}
	} else {
		groups, err := CollectPaths(layout)
		if err != nil {
			return model.Schema{}, err
		}
		if len(groups) == 0 {
			return model.Schema{}, fmt.Errorf("%w: no files found below %s", model.ErrSourceRead, layout.RootPath)
		}
		group = groups[0]
	}
	if err := validatePath(group.Paths[0]); err != nil {
		return model.Schema{}, err
	}

	schemas, err := d.discoverGroup(ctx, layout, group, meta.Table, sampleSize)
	if err != nil {
		return model.Schema{}, err
	}
	for _, schema := range schemas {
		if schema.ID != previous.ID {
			continue
		}
		if strings.TrimSpace(previous.Query) != "" {
			described, err := d.describe(ctx, model.TableRef{Schema: d.schemaOf(meta), Table: schema.Name}, layout, previous.Query, sampleSize)
			if err != nil {
				return model.Schema{}, err
			}
			described.ID = schema.ID
			described.PublisherMetaJSON = schema.PublisherMetaJSON
			return described, nil
		}
		return schema, nil
	}
	return model.Schema{}, fmt.Errorf("%w: source no longer stages table %s", model.ErrSourceRead, previous.ID)
}

// schemaOf returns the staging schema recorded in meta, or the store default
func (d *Discoverer) schemaOf(meta publisherMeta) string {
	if meta.Schema != "" {
		return meta.Schema
	}
	return d.store.Dialect().DefaultSchema()
}
