package fileschema

import (
	"context"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/nao1215/fileschema/domain/model"
	"github.com/xuri/excelize/v2"
)

const (
	// spreadsheetColumnPrefix names spreadsheet columns without a header
	spreadsheetColumnPrefix = "Column_"
	duplicateSuffix         = "_DUPLICATE_"
	cellSuffix              = "_CELL_"
)

// SpreadsheetAdapter stages one sheet of an XLSX workbook.
type SpreadsheetAdapter struct {
	adapterBase
}

// openWorkbook opens an XLSX file; compressed workbooks are read into memory first
func openWorkbook(path string) (*excelize.File, error) {
	if detectCompression(path) == CompressionNone {
		workbook, err := excelize.OpenFile(path)
		if err != nil {
			return nil, model.WrapSourceRead(err, "failed to open workbook %s", path)
		}
		return workbook, nil
	}

	data, err := readSource(path)
	if err != nil {
		return nil, err
	}
	workbook, err := excelize.OpenReader(data)
	if err != nil {
		return nil, model.WrapSourceRead(err, "failed to open workbook %s", path)
	}
	return workbook, nil
}

// resolveSheet returns the configured sheet or the first sheet of the workbook
func resolveSheet(workbook *excelize.File, name string) (string, error) {
	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return "", model.SourceReadf("workbook has no sheets")
	}
	if name == "" {
		return sheets[0], nil
	}
	if !slices.Contains(sheets, name) {
		return "", model.SourceReadf("sheet %q not found", name)
	}
	return name, nil
}

// columnIndexes returns the selected column indexes, or every index up to width
func columnIndexes(selected []int, width int) []int {
	if len(selected) > 0 {
		return selected
	}
	indexes := make([]int, width)
	for i := range indexes {
		indexes[i] = i
	}
	return indexes
}

// spreadsheetHeader names the selected columns. Header cells that repeat an earlier
// name get a _DUPLICATE_<index> suffix; empty or missing names become Column_<index>.
func spreadsheetHeader(first []string, indexes []int, hasHeader bool) []string {
	header := make([]string, len(indexes))
	seen := make(map[string]bool, len(indexes))
	for i, idx := range indexes {
		name := ""
		if hasHeader && idx < len(first) {
			name = strings.TrimSpace(first[idx])
		}
		if name == "" {
			name = spreadsheetColumnPrefix + strconv.Itoa(idx)
		}
		if seen[strings.ToLower(name)] {
			name = name + duplicateSuffix + strconv.Itoa(idx)
		}
		seen[strings.ToLower(name)] = true
		header[i] = name
	}
	return header
}

// fixedCell is a cell reference resolved to its column name and value
type fixedCell struct {
	name  string
	value string
}

// readFixedCells reads the referenced cells. A cell whose name collides with a data
// column is renamed <name>_CELL_<coordinate>.
func readFixedCells(workbook *excelize.File, sheet string, refs []model.CellReference, header []string) ([]fixedCell, error) {
	seen := make(map[string]bool, len(header)+len(refs))
	for _, name := range header {
		seen[strings.ToLower(name)] = true
	}

	cells := make([]fixedCell, 0, len(refs))
	for _, ref := range refs {
		coord, err := excelize.CoordinatesToCellName(ref.Column, ref.Row)
		if err != nil {
			return nil, model.Configurationf("invalid cell reference row %d column %d", ref.Row, ref.Column)
		}
		value, err := workbook.GetCellValue(sheet, coord)
		if err != nil {
			return nil, model.WrapSourceRead(err, "failed to read cell %s", coord)
		}

		name := ref.Name
		if name == "" {
			name = coord
		}
		if seen[strings.ToLower(name)] {
			name = name + cellSuffix + coord
		}
		seen[strings.ToLower(name)] = true
		cells = append(cells, fixedCell{name: name, value: value})
	}
	return cells, nil
}

// sheetRows yields the selected cells of every non-empty row plus the fixed cells
type sheetRows struct {
	rows    *excelize.Rows
	indexes []int
	cells   []fixedCell
	pending []string
	path    string
}

func (s *sheetRows) read() ([]string, error) {
	if s.pending != nil {
		row := s.pending
		s.pending = nil
		return row, nil
	}
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, model.WrapSourceRead(err, "failed to read %s", s.path)
		}
		return nil, io.EOF
	}
	row, err := s.rows.Columns()
	if err != nil {
		return nil, model.WrapSourceRead(err, "failed to read row of %s", s.path)
	}
	return row, nil
}

// Next returns the next non-empty row
func (s *sheetRows) Next() (model.Row, error) {
	for {
		raw, err := s.read()
		if err != nil {
			return nil, err
		}

		row := make(model.Row, 0, len(s.indexes)+len(s.cells))
		empty := true
		for _, idx := range s.indexes {
			value := ""
			if idx < len(raw) {
				value = raw[idx]
			}
			if strings.TrimSpace(value) != "" {
				empty = false
			}
			row = append(row, value)
		}
		if empty {
			continue
		}
		for _, cell := range s.cells {
			row = append(row, cell.value)
		}
		return row, nil
	}
}

// ImportTable stages the configured sheet of a workbook
func (a *SpreadsheetAdapter) ImportTable(ctx context.Context, path string, layout model.RootPath, rowLimit int) (int64, error) {
	errCtx := model.NewErrorContext("import spreadsheet", path).WithTable(a.table)

	workbook, err := openWorkbook(path)
	if err != nil {
		return 0, errCtx.Error(err)
	}
	defer func() {
		_ = workbook.Close() // Ignore close error
	}()

	sheet, err := resolveSheet(workbook, layout.Spreadsheet.SheetName)
	if err != nil {
		return 0, errCtx.Error(err)
	}

	rows, err := workbook.Rows(sheet)
	if err != nil {
		return 0, errCtx.Error(model.WrapSourceRead(err, "failed to open rows of sheet %s", sheet))
	}
	defer func() { _ = rows.Close() }()

	source := &sheetRows{rows: rows, path: path}
	for i := 0; i < layout.SkipLines; i++ {
		if _, err := source.read(); err != nil {
			break
		}
	}

	// Skip leading empty rows
	var first []string
	for {
		row, err := source.read()
		if err != nil {
			break
		}
		if len(row) > 0 {
			first = row
			break
		}
	}

	var header []string
	switch {
	case len(layout.Columns) > 0:
		if n := len(layout.Spreadsheet.Columns); n > 0 && n != len(layout.Columns) {
			return 0, errCtx.Error(model.Configurationf("%d column indexes selected but %d columns declared", n, len(layout.Columns)))
		}
		source.indexes = columnIndexes(layout.Spreadsheet.Columns, len(layout.Columns))
		header = layout.ColumnNames()
	default:
		source.indexes = columnIndexes(layout.Spreadsheet.Columns, len(first))
		header = spreadsheetHeader(first, source.indexes, layout.HasHeader)
	}
	if !layout.HasHeader {
		source.pending = first
	}

	if len(header) > 0 {
		if source.cells, err = readFixedCells(workbook, sheet, layout.Spreadsheet.Cells, header); err != nil {
			return 0, errCtx.Error(err)
		}
	}

	columns := textColumns(header)
	if len(layout.Columns) > 0 {
		columns = layoutColumns(layout.Columns, false)
	}
	for _, cell := range source.cells {
		columns = append(columns, stagedColumn{name: cell.name})
	}

	loaded, err := a.loader().load(ctx, a.statement(columns), source, rowLimit)
	if err != nil {
		return loaded, errCtx.Error(err)
	}
	return loaded, nil
}
