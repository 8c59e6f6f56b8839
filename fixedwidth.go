package fileschema

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/nao1215/fileschema/domain/model"
)

// FixedWidthAdapter stages positional text. Every declared Column is sliced from
// the line by its inclusive [ColumnStart, ColumnEnd] character range.
type FixedWidthAdapter struct {
	adapterBase
}

// validateRanges rejects ranges that can never be sliced
func validateRanges(columns []model.Column) error {
	for _, col := range columns {
		if col.ColumnStart < 0 || col.ColumnEnd < col.ColumnStart {
			return model.Configurationf("column %s has invalid range [%d,%d]", col.ColumnName, col.ColumnStart, col.ColumnEnd)
		}
	}
	return nil
}

// sliceLine cuts line into one value per column. Ranges are clamped to the line;
// a range starting beyond the end of the line yields an empty value.
func sliceLine(line string, columns []model.Column) model.Row {
	runes := []rune(line)
	row := make(model.Row, len(columns))
	for i, col := range columns {
		start := min(col.ColumnStart, len(runes))
		end := min(col.ColumnEnd+1, len(runes))
		value := string(runes[start:end])
		if col.TrimWhitespace {
			value = strings.TrimSpace(value)
		}
		row[i] = value
	}
	return row
}

// lineSource yields non-blank lines sliced into rows
type lineSource struct {
	scanner *bufio.Scanner
	columns []model.Column
	path    string
}

// Next returns the next sliced line
func (l *lineSource) Next() (model.Row, error) {
	for l.scanner.Scan() {
		line := strings.TrimSuffix(l.scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		return sliceLine(line, l.columns), nil
	}
	if err := l.scanner.Err(); err != nil {
		return nil, model.WrapSourceRead(err, "failed to read %s", l.path)
	}
	return nil, io.EOF
}

// ImportTable stages a fixed-width file. Key columns form a composite primary key.
func (a *FixedWidthAdapter) ImportTable(ctx context.Context, path string, layout model.RootPath, rowLimit int) (int64, error) {
	errCtx := model.NewErrorContext("import fixed-width", path).WithTable(a.table)

	if err := validateRanges(layout.Columns); err != nil {
		return 0, errCtx.Error(err)
	}

	reader, closer, err := openSource(path, layout.Encoding)
	if err != nil {
		return 0, errCtx.Error(err)
	}
	defer func() { _ = closer() }()

	skip := layout.SkipLines
	if layout.HasHeader {
		skip++
	}
	buffered := bufio.NewReader(reader)
	if err := skipLines(buffered, skip); err != nil {
		return 0, errCtx.Error(model.WrapSourceRead(err, "failed to skip lines"))
	}

	scanner := bufio.NewScanner(buffered)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	source := &lineSource{scanner: scanner, columns: layout.Columns, path: path}

	loaded, err := a.loader().load(ctx, a.statement(layoutColumns(layout.Columns, true)), source, rowLimit)
	if err != nil {
		return loaded, errCtx.Error(err)
	}
	return loaded, nil
}
