package fileschema

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/nao1215/fileschema/domain/model"
	"github.com/nao1215/fileschema/staging"
)

// Builder configures root paths and the staging store, then opens a Session.
//
// Basic usage:
//
//	session, err := fileschema.NewBuilder().
//		AddPath("testdata/sales", true).
//		WithSampleSize(50).
//		Build(ctx)
//	if err != nil {
//		return err
//	}
//	defer session.Close()
//
//	schemas, err := session.Discover(ctx)
//
// Files embedded with go:embed are added with AddFS; they are copied to a
// temporary directory that Session.Close removes.
type Builder struct {
	roots      []model.RootPath
	fsInputs   []fsInput
	staging    staging.Config
	options    []Option
	logger     *slog.Logger
	sampleSize int
}

// fsInput is a root path whose files live in an fs.FS
type fsInput struct {
	fsys   fs.FS
	layout model.RootPath
}

// NewBuilder creates a builder staging into an in-memory SQLite store.
func NewBuilder() *Builder {
	return &Builder{
		staging: staging.Config{
			Driver:   staging.DriverSQLite,
			Location: staging.MemoryLocation,
		},
		sampleSize: DefaultSampleSize,
	}
}

// DefaultSampleSize is the number of rows staged per file during discovery
const DefaultSampleSize = 100

// AddPath adds a file or directory of delimited, fixed-width, spreadsheet, XML
// or Parquet files whose type is detected from each file extension.
func (b *Builder) AddPath(rootPath string, hasHeader bool) *Builder {
	return b.AddRootPath(model.RootPath{RootPath: rootPath, HasHeader: hasHeader})
}

// AddRootPath adds a fully described root path.
func (b *Builder) AddRootPath(root model.RootPath) *Builder {
	b.roots = append(b.roots, root)
	return b
}

// AddRootPaths adds several root paths.
func (b *Builder) AddRootPaths(roots ...model.RootPath) *Builder {
	b.roots = append(b.roots, roots...)
	return b
}

// AddFS adds a root path read from fsys. layout.RootPath names a file or directory
// inside fsys, "" or "." meaning its root. The directory keeps its base name, or
// layout.Name for the root of fsys, so table names match the on-disk layout.
func (b *Builder) AddFS(fsys fs.FS, layout model.RootPath) *Builder {
	b.fsInputs = append(b.fsInputs, fsInput{fsys: fsys, layout: layout})
	return b
}

// WithStaging sets the staging store driver and location.
func (b *Builder) WithStaging(cfg staging.Config) *Builder {
	b.staging = cfg
	return b
}

// WithLogger sets the logger shared by the store and the adapters.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithOptions adds adapter factory options such as WithThrottle.
func (b *Builder) WithOptions(opts ...Option) *Builder {
	b.options = append(b.options, opts...)
	return b
}

// WithSampleSize sets the rows staged per file during discovery. Zero stages every row.
func (b *Builder) WithSampleSize(n int) *Builder {
	b.sampleSize = n
	return b
}

// Build validates the root paths and opens the staging store.
// Every validation failure is reported, joined together.
func (b *Builder) Build(ctx context.Context) (*Session, error) {
	if len(b.roots) == 0 && len(b.fsInputs) == 0 {
		return nil, model.Configurationf("at least one root path must be provided")
	}
	if b.sampleSize < 0 {
		return nil, model.Configurationf("sample size cannot be negative: %d", b.sampleSize)
	}

	s := &Session{sampleSize: b.sampleSize}
	roots := append([]model.RootPath(nil), b.roots...)
	for _, input := range b.fsInputs {
		root, err := s.materialize(input)
		if err != nil {
			return nil, errors.Join(err, s.cleanup())
		}
		roots = append(roots, root)
	}

	var errs []error
	names := make(map[string]struct{}, len(roots))
	for _, root := range roots {
		if err := validateLayout(root); err != nil {
			errs = append(errs, err)
		}
		if err := validatePath(root.RootPath); err != nil {
			errs = append(errs, err)
		}
		if root.Name == "" {
			continue
		}
		if _, dup := names[root.Name]; dup {
			errs = append(errs, model.Configurationf("duplicate root path name %q", root.Name))
		}
		names[root.Name] = struct{}{}
	}
	if len(errs) > 0 {
		return nil, errors.Join(append(errs, s.cleanup())...)
	}

	cfg := b.staging
	if b.logger != nil {
		cfg.Logger = b.logger
	}
	store, err := staging.Open(ctx, cfg)
	if err != nil {
		return nil, errors.Join(err, s.cleanup())
	}

	opts := make([]Option, 0, len(b.options)+1)
	if b.logger != nil {
		opts = append(opts, WithLogger(b.logger))
	}
	s.store = store
	s.factory = NewFactory(append(opts, b.options...)...)
	s.discoverer = NewDiscoverer(store, s.factory)
	s.roots = roots
	return s, nil
}

// Session is an open staging store together with the root paths staged into it.
// A Session is not safe for concurrent use.
type Session struct {
	store      *staging.Store
	factory    *Factory
	discoverer *Discoverer
	roots      []model.RootPath
	sampleSize int
	tempDirs   []string
}

// ImportResult reports one table staged by Session.Import
type ImportResult struct {
	Table string
	Files int
	Rows  int64
}

// Store returns the staging store.
func (s *Session) Store() *staging.Store {
	return s.store
}

// RootPaths returns the root paths of the session.
func (s *Session) RootPaths() []model.RootPath {
	return append([]model.RootPath(nil), s.roots...)
}

// RootPath returns the root path with the given name.
func (s *Session) RootPath(name string) (model.RootPath, bool) {
	for _, r := range s.roots {
		if r.Name == name {
			return r, true
		}
	}
	return model.RootPath{}, false
}

// Discover stages a sample of each root path and returns the discovered schemas.
// With no roots given every root path of the session is discovered.
func (s *Session) Discover(ctx context.Context, roots ...model.RootPath) ([]model.Schema, error) {
	if len(roots) == 0 {
		roots = s.roots
	}
	var schemas []model.Schema
	for _, root := range roots {
		discovered, err := s.discoverer.DiscoverSchemas(ctx, root, nil, s.sampleSize)
		if err != nil {
			return schemas, fmt.Errorf("discover %s: %w", root.RootPath, err)
		}
		schemas = append(schemas, discovered...)
	}
	return schemas, nil
}

// Refresh restages the source of a previously discovered schema.
func (s *Session) Refresh(ctx context.Context, previous model.Schema) (model.Schema, error) {
	return s.discoverer.RefreshSchema(ctx, previous, s.sampleSize)
}

// Records iterates the staged rows of schema.
func (s *Session) Records(ctx context.Context, schema model.Schema) *RecordIterator {
	return ReadRecords(ctx, s.store, schema, s.factory.Logger())
}

// Count counts the staged rows of schema.
func (s *Session) Count(ctx context.Context, schema model.Schema) model.Count {
	return CountRecords(ctx, s.store, schema)
}

// Import stages every file of root, one table per directory.
func (s *Session) Import(ctx context.Context, root model.RootPath) ([]ImportResult, error) {
	groups, err := CollectPaths(root)
	if err != nil {
		return nil, err
	}

	results := make([]ImportResult, 0, len(groups))
	for _, group := range groups {
		name := TableName(root, group, len(groups))
		rows, err := ImportPaths(ctx, s.factory, s.store, root, name, root.SchemaName, group.Paths, 0)
		if err != nil {
			return results, err
		}
		results = append(results, ImportResult{Table: name, Files: len(group.Paths), Rows: rows})
	}
	return results, nil
}

// Export writes the staged table of root to dir and returns the written path and row count.
// XML datasets stage several tables and cannot be exported as one file.
func (s *Session) Export(ctx context.Context, root model.RootPath, table, dir string, opts ExportOptions) (string, int64, error) {
	if root.XML.Strategy == model.XMLStrategySchema {
		return "", 0, fmt.Errorf("%w: export of XML dataset %s", model.ErrNotImplemented, table)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", 0, fmt.Errorf("failed to create export directory: %w", err)
	}

	layout := root
	layout.FileType = model.FileTypeDelimited
	layout.Delimiter = opts.Format.delimiter()
	adapter, err := s.factory.MakeImportExportFile(s.store, layout, table, root.SchemaName)
	if err != nil {
		return "", 0, err
	}
	exporter, ok := adapter.(Exporter)
	if !ok {
		return "", 0, fmt.Errorf("%w: export of %s", model.ErrNotImplemented, table)
	}

	target := filepath.Join(dir, opts.FileName(table))
	rows, err := exporter.ExportTable(ctx, target, opts.Append)
	if err != nil {
		return "", rows, err
	}
	return target, rows, nil
}

// Close closes the staging store and removes files copied from an fs.FS.
// It is safe to call Close more than once.
func (s *Session) Close() error {
	var err error
	if s.store != nil {
		err = s.store.Close()
		s.store = nil
	}
	return errors.Join(err, s.cleanup())
}

func (s *Session) cleanup() error {
	var errs []error
	for _, dir := range s.tempDirs {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", dir, err))
		}
	}
	s.tempDirs = nil
	return errors.Join(errs...)
}

// materialize copies the files of an fs.FS root into a temporary directory and
// returns the layout pointing at the copy.
func (s *Session) materialize(input fsInput) (model.RootPath, error) {
	src := path.Clean(filepath.ToSlash(input.layout.RootPath))
	if !fs.ValidPath(src) {
		return model.RootPath{}, model.Configurationf("invalid fs path %q", input.layout.RootPath)
	}
	info, err := fs.Stat(input.fsys, src)
	if err != nil {
		return model.RootPath{}, model.WrapSourceRead(err, "failed to stat fs path %s", src)
	}

	tempDir, err := os.MkdirTemp("", "fileschema-*")
	if err != nil {
		return model.RootPath{}, fmt.Errorf("failed to create temp directory: %w", err)
	}
	s.tempDirs = append(s.tempDirs, tempDir)

	base := path.Base(src)
	if src == "." {
		base = input.layout.Name
		if base == "" {
			base = "fs"
		}
	}
	target := filepath.Join(tempDir, base)

	if !info.IsDir() {
		err = copyFSFile(input.fsys, src, target)
	} else {
		err = fs.WalkDir(input.fsys, src, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(filepath.FromSlash(src), filepath.FromSlash(p))
			if err != nil {
				return err
			}
			dst := filepath.Join(target, rel)
			if d.IsDir() {
				return os.MkdirAll(dst, 0o750)
			}
			return copyFSFile(input.fsys, p, dst)
		})
	}
	if err != nil {
		return model.RootPath{}, model.WrapSourceRead(err, "failed to copy fs path %s", src)
	}

	layout := input.layout
	layout.RootPath = target
	return layout, nil
}

// copyFSFile copies one file from fsys to dst
func copyFSFile(fsys fs.FS, name, dst string) error {
	src, err := fsys.Open(name)
	if err != nil {
		return fmt.Errorf("failed to open FS file: %w", err)
	}
	defer func() { _ = src.Close() }()

	out, err := os.Create(dst) //nolint:gosec // dst is inside a directory created by MkdirTemp
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy content: %w", err)
	}
	return out.Close()
}
