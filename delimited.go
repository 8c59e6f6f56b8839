package fileschema

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nao1215/fileschema/domain/model"
)

const (
	// noHeaderColumnPrefix names the columns of a headerless delimited file
	noHeaderColumnPrefix = "NO_HEADER_COLUMN_"
	defaultDelimiter     = ","
	tsvDelimiter         = "\t"
	utf8BOM              = "\ufeff"
	maxLineSize          = 16 * 1024 * 1024
)

// DelimitedAdapter stages delimited text (CSV, TSV or any delimiter string).
type DelimitedAdapter struct {
	adapterBase
}

// delimiterFor returns the configured delimiter, defaulting by file extension
func delimiterFor(layout model.RootPath, path string) string {
	if layout.Delimiter != "" {
		return layout.Delimiter
	}
	if strings.EqualFold(filepath.Ext(model.StripCompressionExt(path)), ".tsv") {
		return tsvDelimiter
	}
	return defaultDelimiter
}

// fieldReader returns the fields of the next non-blank line or io.EOF
type fieldReader func() ([]string, error)

// newFieldReader splits lines of reader by delimiter. A single-rune delimiter uses
// CSV quoting rules; longer delimiters split the raw line.
func newFieldReader(reader io.Reader, delimiter string) fieldReader {
	if r, size := utf8.DecodeRuneInString(delimiter); size == len(delimiter) && r != '"' && r != '\r' && r != '\n' {
		csvReader := csv.NewReader(reader)
		csvReader.Comma = r
		csvReader.FieldsPerRecord = -1
		csvReader.LazyQuotes = true

		return func() ([]string, error) {
			for {
				record, err := csvReader.Read()
				if err != nil {
					return nil, err
				}
				if isBlankRecord(record) {
					continue
				}
				return record, nil
			}
		}
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return func() ([]string, error) {
		for scanner.Scan() {
			line := strings.TrimSuffix(scanner.Text(), "\r")
			if strings.TrimSpace(line) == "" {
				continue
			}
			return strings.Split(line, delimiter), nil
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
}

func isBlankRecord(record []string) bool {
	return len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "")
}

// noHeaderColumns synthesizes NO_HEADER_COLUMN_<i> names
func noHeaderColumns(width int) model.Header {
	header := make(model.Header, width)
	for i := range header {
		header[i] = noHeaderColumnPrefix + strconv.Itoa(i)
	}
	return header
}

// delimitedRows replays a row read while detecting the header, then reads the rest
type delimitedRows struct {
	next    fieldReader
	pending model.Row
	path    string
}

// Next returns the next data row
func (d *delimitedRows) Next() (model.Row, error) {
	if d.pending != nil {
		row := d.pending
		d.pending = nil
		return row, nil
	}

	record, err := d.next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, model.WrapSourceRead(err, "malformed line in %s", d.path)
	}
	return model.Row(record), nil
}

// readHeader determines the column set. Declared columns win; otherwise the first
// row is the header or, without one, the width of the first row names the columns.
func readHeader(next fieldReader, layout model.RootPath, path string) ([]stagedColumn, model.Row, error) {
	first, err := next()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, model.WrapSourceRead(err, "failed to read header of %s", path)
	}
	if len(first) > 0 {
		first[0] = strings.TrimPrefix(first[0], utf8BOM)
	}

	switch {
	case len(layout.Columns) > 0:
		if layout.HasHeader {
			return layoutColumns(layout.Columns, false), nil, nil
		}
		return layoutColumns(layout.Columns, false), first, nil
	case layout.HasHeader:
		return textColumns(first), nil, nil
	default:
		return textColumns(noHeaderColumns(len(first))), first, nil
	}
}

// ImportTable stages a delimited file
func (a *DelimitedAdapter) ImportTable(ctx context.Context, path string, layout model.RootPath, rowLimit int) (int64, error) {
	errCtx := model.NewErrorContext("import delimited", path).WithTable(a.table)

	reader, closer, err := openSource(path, layout.Encoding)
	if err != nil {
		return 0, errCtx.Error(err)
	}
	defer func() { _ = closer() }()

	buffered := bufio.NewReader(reader)
	if err := skipLines(buffered, layout.SkipLines); err != nil {
		return 0, errCtx.Error(model.WrapSourceRead(err, "failed to skip lines"))
	}

	next := newFieldReader(buffered, delimiterFor(layout, path))
	columns, pending, err := readHeader(next, layout, path)
	if err != nil {
		return 0, errCtx.Error(err)
	}

	source := &delimitedRows{next: next, pending: pending, path: path}
	loaded, err := a.loader().load(ctx, a.statement(columns), source, rowLimit)
	if err != nil {
		return loaded, errCtx.Error(err)
	}
	return loaded, nil
}

// recordWriter writes one delimited record per call
type recordWriter interface {
	Write(record []string) error
	Flush()
	Error() error
}

// joinWriter writes records joined by a multi-character delimiter
type joinWriter struct {
	w         *bufio.Writer
	delimiter string
	err       error
}

func (j *joinWriter) Write(record []string) error {
	if j.err != nil {
		return j.err
	}
	_, j.err = j.w.WriteString(strings.Join(record, j.delimiter) + "\n")
	return j.err
}

func (j *joinWriter) Flush() {
	if j.err == nil {
		j.err = j.w.Flush()
	}
}

func (j *joinWriter) Error() error {
	return j.err
}

func newRecordWriter(w io.Writer, delimiter string) recordWriter {
	if r, size := utf8.DecodeRuneInString(delimiter); size == len(delimiter) && r != '"' && r != '\r' && r != '\n' {
		csvWriter := csv.NewWriter(w)
		csvWriter.Comma = r
		return csvWriter
	}
	return &joinWriter{w: bufio.NewWriter(w), delimiter: delimiter}
}

// ExportTable re-queries the staged table and writes it as delimited text.
// Binary columns are skipped. The header line is written first unless rows are
// appended to a file that already has content.
func (a *DelimitedAdapter) ExportTable(ctx context.Context, path string, appendMode bool) (int64, error) {
	errCtx := model.NewErrorContext("export delimited", path).WithTable(a.table)

	rows, err := a.store.Query(ctx, a.statement(nil).selectAll())
	if err != nil {
		return 0, errCtx.Error(err)
	}
	defer func() { _ = rows.Close() }()

	var (
		keep   []int
		header []string
	)
	for i, col := range rows.Columns() {
		if a.store.Dialect().BlobType(col.DatabaseType) {
			continue
		}
		keep = append(keep, i)
		header = append(header, col.Name)
	}

	writeHeader := !appendMode || !hasContent(path)
	sink, closer, err := createSink(path, appendMode)
	if err != nil {
		return 0, errCtx.Error(err)
	}

	writer := newRecordWriter(sink, delimiterFor(a.layout, path))
	written, err := writeRecords(rows, writer, keep, header, writeHeader)
	if closeErr := closer(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return written, errCtx.Error(err)
	}
	return written, nil
}

func writeRecords(rows rowScanner, writer recordWriter, keep []int, header []string, writeHeader bool) (int64, error) {
	if writeHeader {
		if err := writer.Write(header); err != nil {
			return 0, fmt.Errorf("failed to write header: %w", err)
		}
	}

	var written int64
	record := make([]string, len(keep))
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return written, err
		}
		for i, idx := range keep {
			record[i] = formatValue(values[idx])
		}
		if err := writer.Write(record); err != nil {
			return written, fmt.Errorf("failed to write record: %w", err)
		}
		written++
	}
	if err := rows.Err(); err != nil {
		return written, err
	}

	writer.Flush()
	return written, writer.Error()
}

// rowScanner is the part of staging.Rows the exporter reads
type rowScanner interface {
	Next() bool
	Values() ([]any, error)
	Err() error
}

// formatValue renders a staged value as text
func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

func hasContent(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}
