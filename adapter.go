package fileschema

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/fileschema/domain/model"
	"github.com/nao1215/fileschema/staging"
	"github.com/nao1215/fileschema/transfer"
)

// Adapter loads one source file into a staged table.
type Adapter interface {
	// ImportTable loads path into the staged table and returns the number of rows
	// committed. A positive rowLimit stops the load after that many rows.
	ImportTable(ctx context.Context, path string, layout model.RootPath, rowLimit int) (int64, error)
}

// Exporter is implemented by adapters that can write a staged table back to a file.
type Exporter interface {
	// ExportTable writes the staged table to path and returns the number of rows written.
	// With appendMode the rows are appended and the header is written only to a new file.
	ExportTable(ctx context.Context, path string, appendMode bool) (int64, error)
}

// TableLister is implemented by adapters that stage more than one table per source.
type TableLister interface {
	// GetAllTableNames returns every staged table the layout produces
	GetAllTableNames(ctx context.Context, layout model.RootPath) ([]model.TableRef, error)
}

// Factory creates format adapters bound to a staging store.
type Factory struct {
	logger     *slog.Logger
	throttle   *transfer.Throttle
	transferer transfer.Transferer
	now        func() time.Time
}

// Option configures a Factory
type Option func(*Factory)

// WithLogger sets the logger handed to every adapter
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithThrottle sets the throttle shared by File-Copy adapters
func WithThrottle(throttle *transfer.Throttle) Option {
	return func(f *Factory) {
		if throttle != nil {
			f.throttle = throttle
		}
	}
}

// WithTransferer replaces the transport used by File-Copy adapters
func WithTransferer(transferer transfer.Transferer) Option {
	return func(f *Factory) {
		f.transferer = transferer
	}
}

// WithClock replaces the clock used for audit timestamps
func WithClock(now func() time.Time) Option {
	return func(f *Factory) {
		if now != nil {
			f.now = now
		}
	}
}

// NewFactory creates an adapter factory.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		logger:   slog.New(slog.DiscardHandler),
		throttle: transfer.NewThrottle(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.transferer == nil {
		f.transferer = transfer.NewClient(f.logger)
	}
	return f
}

// Logger returns the factory logger
func (f *Factory) Logger() *slog.Logger {
	return f.logger
}

// MakeImportExportFile returns the adapter for layout.FileType that stages into
// schemaName.tableName. An empty schemaName selects the store default schema; an
// automatic file type picks the adapter per path at import time.
func (f *Factory) MakeImportExportFile(store *staging.Store, layout model.RootPath, tableName, schemaName string) (Adapter, error) {
	if store == nil {
		return nil, model.Configurationf("staging store is required")
	}

	tableName = strings.TrimSpace(tableName)
	if tableName == "" {
		return nil, model.Configurationf("table name is required")
	}
	schemaName = strings.TrimSpace(schemaName)
	if schemaName == "" {
		schemaName = store.Dialect().DefaultSchema()
	}
	if strings.ContainsRune(tableName, 0) || strings.ContainsRune(schemaName, 0) {
		return nil, model.Configurationf("invalid table name %q or schema name %q", tableName, schemaName)
	}
	if err := validateLayout(layout); err != nil {
		return nil, err
	}

	base := adapterBase{
		store:  store,
		table:  tableName,
		schema: schemaName,
		layout: layout,
		logger: f.logger.With("schema", schemaName, "table", tableName),
	}

	if layout.FileType == model.FileTypeAuto {
		return &autoAdapter{factory: f, base: base}, nil
	}
	return f.newAdapter(base, layout.FileType)
}

func (f *Factory) newAdapter(base adapterBase, fileType model.FileType) (Adapter, error) {
	switch fileType {
	case model.FileTypeDelimited:
		return &DelimitedAdapter{adapterBase: base}, nil
	case model.FileTypeFixedWidth:
		return &FixedWidthAdapter{adapterBase: base}, nil
	case model.FileTypeSpreadsheet:
		return &SpreadsheetAdapter{adapterBase: base}, nil
	case model.FileTypeXML:
		return &XMLAdapter{adapterBase: base}, nil
	case model.FileTypeParquet:
		return &ParquetAdapter{adapterBase: base}, nil
	case model.FileTypeFileInfo:
		return &FileInfoAdapter{auditAdapter: newAuditAdapter(base, f.now)}, nil
	case model.FileTypeFileCopy:
		return &FileCopyAdapter{
			auditAdapter: newAuditAdapter(base, f.now),
			throttle:     f.throttle,
			transferer:   f.transferer,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnsupportedFormat, fileType)
	}
}

// adapterBase holds what every adapter needs to stage one table
type adapterBase struct {
	store  *staging.Store
	table  string
	schema string
	// layout is the root path the adapter was made for
	layout model.RootPath
	logger *slog.Logger
}

// Target returns the staged table the adapter loads into
func (b adapterBase) Target() model.TableRef {
	return model.TableRef{Schema: b.schema, Table: b.table}
}

func (b adapterBase) statement(columns []stagedColumn) tableStatement {
	return newTableStatement(b.store.Dialect(), b.schema, b.table, columns)
}

func (b adapterBase) loader() batchLoader {
	return newBatchLoader(b.store, b.logger)
}

// layoutColumns stages the declared layout columns; keys become the primary key when withKeys is set
func layoutColumns(columns []model.Column, withKeys bool) []stagedColumn {
	staged := make([]stagedColumn, len(columns))
	for i, col := range columns {
		staged[i] = stagedColumn{
			name:      col.ColumnName,
			maxLength: col.MaxLength,
			isKey:     withKeys && col.IsKey,
		}
	}
	return staged
}

// autoAdapter picks the adapter from the file extension of each imported path
type autoAdapter struct {
	factory *Factory
	base    adapterBase
}

// ImportTable detects the format of path and delegates to the matching adapter
func (a *autoAdapter) ImportTable(ctx context.Context, path string, layout model.RootPath, rowLimit int) (int64, error) {
	adapter, err := a.factory.newAdapter(a.base, model.DetectFileType(path))
	if err != nil {
		return 0, model.NewErrorContext("import", path).WithTable(a.base.table).Error(err)
	}
	return adapter.ImportTable(ctx, path, layout, rowLimit)
}

// ExportTable writes delimited files; other formats are not implemented
func (a *autoAdapter) ExportTable(ctx context.Context, path string, appendMode bool) (int64, error) {
	if model.DetectFileType(path) != model.FileTypeDelimited {
		return 0, fmt.Errorf("%w: export to %s", model.ErrNotImplemented, path)
	}
	return (&DelimitedAdapter{adapterBase: a.base}).ExportTable(ctx, path, appendMode)
}

// GetAllTableNames returns the XML dataset tables in schema mode, else the adapter table
func (a *autoAdapter) GetAllTableNames(ctx context.Context, layout model.RootPath) ([]model.TableRef, error) {
	if layout.XML.Strategy == model.XMLStrategySchema {
		return (&XMLAdapter{adapterBase: a.base}).GetAllTableNames(ctx, layout)
	}
	return []model.TableRef{a.base.Target()}, nil
}
