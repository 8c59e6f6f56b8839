package fileschema

import (
	"context"
	"errors"
	"io"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/memory"
	pqfile "github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/nao1215/fileschema/domain/model"
)

// ParquetAdapter stages Apache Parquet files. Every value is staged as text.
type ParquetAdapter struct {
	adapterBase
}

// recordRows yields the rows of arrow record batches as strings
type recordRows struct {
	reader pqarrow.RecordReader
	record arrow.Record
	row    int64
	path   string
}

// Next returns the next row, advancing to the next batch when needed
func (r *recordRows) Next() (model.Row, error) {
	for r.record == nil || r.row >= r.record.NumRows() {
		if !r.reader.Next() {
			if err := r.reader.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, model.WrapSourceRead(err, "failed to read record batch of %s", r.path)
			}
			return nil, io.EOF
		}
		r.record = r.reader.Record()
		r.row = 0
	}

	row := make(model.Row, r.record.NumCols())
	for j, col := range r.record.Columns() {
		if col.IsNull(int(r.row)) {
			continue
		}
		row[j] = col.ValueStr(int(r.row))
	}
	r.row++
	return row, nil
}

// ImportTable stages a Parquet file. Parquet needs random access, so the whole
// decompressed file is held in memory while batches are streamed into the store.
func (a *ParquetAdapter) ImportTable(ctx context.Context, path string, _ model.RootPath, rowLimit int) (int64, error) {
	errCtx := model.NewErrorContext("import parquet", path).WithTable(a.table)

	data, err := readSource(path)
	if err != nil {
		return 0, errCtx.Error(err)
	}

	pqReader, err := pqfile.NewParquetReader(data)
	if err != nil {
		return 0, errCtx.Error(model.WrapSourceRead(err, "failed to create parquet reader"))
	}
	defer func() { _ = pqReader.Close() }()

	fileReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{BatchSize: DefaultBatchSize}, memory.DefaultAllocator)
	if err != nil {
		return 0, errCtx.Error(model.WrapSourceRead(err, "failed to create arrow reader"))
	}

	schema, err := fileReader.Schema()
	if err != nil {
		return 0, errCtx.Error(model.WrapSourceRead(err, "failed to read parquet schema"))
	}
	header := make([]string, schema.NumFields())
	for i, field := range schema.Fields() {
		header[i] = field.Name
	}

	recordReader, err := fileReader.GetRecordReader(ctx, nil, nil)
	if err != nil {
		return 0, errCtx.Error(model.WrapSourceRead(err, "failed to create record reader"))
	}
	defer recordReader.Release()

	source := &recordRows{reader: recordReader, path: path}
	loaded, err := a.loader().load(ctx, a.statement(textColumns(header)), source, rowLimit)
	if err != nil {
		return loaded, errCtx.Error(err)
	}
	return loaded, nil
}
