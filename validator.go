package fileschema

import (
	"fmt"
	"strings"

	"github.com/nao1215/fileschema/domain/model"
)

// validateLayout checks the parts of a root path an adapter cannot work without.
// Errors are configuration errors and are raised before any file is read.
func validateLayout(layout model.RootPath) error {
	switch layout.FileType {
	case model.FileTypeAuto, model.FileTypeDelimited, model.FileTypeSpreadsheet,
		model.FileTypeXML, model.FileTypeParquet, model.FileTypeFileInfo:
	case model.FileTypeFixedWidth:
		if len(layout.Columns) == 0 {
			return model.Configurationf("fixed-width layout declares no columns")
		}
		if err := validateRanges(layout.Columns); err != nil {
			return err
		}
	case model.FileTypeFileCopy:
		if err := validateCopy(layout.Copy); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q", model.ErrUnsupportedFormat, layout.FileType)
	}

	if layout.SkipLines < 0 {
		return model.Configurationf("skip lines must not be negative, got %d", layout.SkipLines)
	}
	if err := validateColumnNames(layout.Columns); err != nil {
		return err
	}

	switch layout.XML.Strategy {
	case "", model.XMLStrategyFlatten:
	case model.XMLStrategySchema:
		if strings.TrimSpace(layout.XML.SchemaPath) == "" {
			return model.Configurationf("xml schema strategy requires a schema path")
		}
	default:
		return model.Configurationf("unknown xml strategy %q", layout.XML.Strategy)
	}

	for _, idx := range layout.Spreadsheet.Columns {
		if idx < 0 {
			return model.Configurationf("spreadsheet column index must not be negative, got %d", idx)
		}
	}
	return nil
}

// validateColumnNames rejects empty declared names
func validateColumnNames(columns []model.Column) error {
	for i, col := range columns {
		if strings.TrimSpace(col.ColumnName) == "" {
			return model.Configurationf("column %d has no name", i)
		}
	}
	return nil
}

// validateCopy checks the transport settings of the File-Copy adapter
func validateCopy(settings model.CopySettings) error {
	switch settings.Mode {
	case model.TransferNone:
		return nil
	case model.TransferLocal:
		if settings.Target == "" {
			return model.Configurationf("local copy requires a target directory")
		}
	case model.TransferFTP, model.TransferSFTP:
		if settings.Host == "" {
			return model.Configurationf("%s copy requires a host", settings.Mode)
		}
	default:
		// Unknown modes are recorded in the audit row when the copy runs
		return nil
	}
	if settings.MinInterval < 0 {
		return model.Configurationf("minimum transfer interval must not be negative")
	}
	return nil
}
