// Package model provides domain model for fileschema
package model

import (
	"path/filepath"
	"strings"
	"time"
)

// FileType selects the format adapter used for a root path
type FileType string

const (
	// FileTypeAuto detects the format from the file extension
	FileTypeAuto FileType = ""
	// FileTypeDelimited represents delimited text (CSV, TSV, ...)
	FileTypeDelimited FileType = "delimited"
	// FileTypeFixedWidth represents positional text
	FileTypeFixedWidth FileType = "fixedwidth"
	// FileTypeSpreadsheet represents Excel XLSX workbooks
	FileTypeSpreadsheet FileType = "spreadsheet"
	// FileTypeXML represents XML documents
	FileTypeXML FileType = "xml"
	// FileTypeParquet represents Apache Parquet files
	FileTypeParquet FileType = "parquet"
	// FileTypeFileInfo stages one audit row per file without reading content
	FileTypeFileInfo FileType = "fileinfo"
	// FileTypeFileCopy copies the file and stages one audit row
	FileTypeFileCopy FileType = "filecopy"
	// FileTypeUnsupported is returned when detection fails
	FileTypeUnsupported FileType = "unsupported"
)

// File extensions
const (
	extCSV     = ".csv"
	extTSV     = ".tsv"
	extTXT     = ".txt"
	extDAT     = ".dat"
	extFWF     = ".fwf"
	extFixed   = ".fixed"
	extXLSX    = ".xlsx"
	extXML     = ".xml"
	extParquet = ".parquet"
	extGZ      = ".gz"
	extBZ2     = ".bz2"
	extXZ      = ".xz"
	extZSTD    = ".zst"
)

// CompressionExtensions lists the compression suffixes stripped before format detection
var CompressionExtensions = []string{extGZ, extBZ2, extXZ, extZSTD}

// StripCompressionExt removes a trailing compression extension from path.
func StripCompressionExt(path string) string {
	lower := strings.ToLower(path)
	for _, ext := range CompressionExtensions {
		if strings.HasSuffix(lower, ext) {
			return path[:len(path)-len(ext)]
		}
	}
	return path
}

// DetectFileType detects file type from extension, considering compressed files
func DetectFileType(path string) FileType {
	switch strings.ToLower(filepath.Ext(StripCompressionExt(path))) {
	case extCSV, extTSV, extTXT, extDAT:
		return FileTypeDelimited
	case extFWF, extFixed:
		return FileTypeFixedWidth
	case extXLSX:
		return FileTypeSpreadsheet
	case extXML:
		return FileTypeXML
	case extParquet:
		return FileTypeParquet
	default:
		return FileTypeUnsupported
	}
}

// Column is an author-declared column of a positional or delimited layout.
type Column struct {
	ColumnName string `koanf:"name" json:"columnName"`
	// ColumnStart and ColumnEnd are inclusive character offsets, fixed-width only
	ColumnStart    int  `koanf:"start" json:"columnStart"`
	ColumnEnd      int  `koanf:"end" json:"columnEnd"`
	IsKey          bool `koanf:"key" json:"isKey"`
	TrimWhitespace bool `koanf:"trim" json:"trimWhitespace"`
	// MaxLength, when positive, is staged as VARCHAR(MaxLength)
	MaxLength int `koanf:"max_length" json:"maxLength,omitempty"`
}

// CellReference addresses one spreadsheet cell unioned into every row.
type CellReference struct {
	// Name is the column name; empty means the cell coordinate (e.g. "B2")
	Name string `koanf:"name" json:"name"`
	// Row and Column are 1-based cell coordinates
	Row    int `koanf:"row" json:"row"`
	Column int `koanf:"column" json:"column"`
}

// SpreadsheetSettings configures the spreadsheet adapter.
type SpreadsheetSettings struct {
	// SheetName selects the sheet; empty means the first sheet
	SheetName string `koanf:"sheet" json:"sheetName,omitempty"`
	// Columns selects 0-based column indexes; empty means all columns
	Columns []int `koanf:"columns" json:"columns,omitempty"`
	// Cells are fixed cells added to every row as extra columns
	Cells []CellReference `koanf:"cells" json:"cells,omitempty"`
}

// XMLStrategy selects how XML documents are turned into rows
type XMLStrategy string

const (
	// XMLStrategyFlatten collapses the document and uses its first array as rows
	XMLStrategyFlatten XMLStrategy = "flatten"
	// XMLStrategySchema loads an XSD-described multi-table dataset
	XMLStrategySchema XMLStrategy = "schema"
)

// XMLKey declares one element or attribute contributing to the global key.
type XMLKey struct {
	// Element is a slash separated path below the document root ("Header/Id")
	Element string `koanf:"element" json:"element"`
	// Attribute, when set, reads an attribute of Element instead of its text
	Attribute string `koanf:"attribute" json:"attribute,omitempty"`
}

// XMLSettings configures the XML adapter.
type XMLSettings struct {
	Strategy   XMLStrategy `koanf:"strategy" json:"strategy,omitempty"`
	SchemaPath string      `koanf:"schema" json:"schemaPath,omitempty"`
	Keys       []XMLKey    `koanf:"keys" json:"keys,omitempty"`
}

// TransferMode selects the File-Copy transport
type TransferMode string

const (
	// TransferNone only records the audit row
	TransferNone TransferMode = ""
	// TransferLocal copies on the local filesystem
	TransferLocal TransferMode = "local"
	// TransferFTP uploads over FTP
	TransferFTP TransferMode = "ftp"
	// TransferSFTP uploads over SFTP
	TransferSFTP TransferMode = "sftp"
)

// CopySettings configures the File-Copy adapter.
type CopySettings struct {
	Mode     TransferMode `koanf:"mode" json:"mode,omitempty"`
	Target   string       `koanf:"target" json:"target,omitempty"`
	Host     string       `koanf:"host" json:"host,omitempty"`
	Port     int          `koanf:"port" json:"port,omitempty"`
	User     string       `koanf:"user" json:"user,omitempty"`
	Password string       `koanf:"password" json:"-"`
	KeyFile  string       `koanf:"key_file" json:"keyFile,omitempty"`
	// KnownHosts is an OpenSSH known_hosts file used to verify SFTP hosts
	KnownHosts string `koanf:"known_hosts" json:"knownHosts,omitempty"`
	// MinInterval is the minimum delay between two transfers
	MinInterval time.Duration `koanf:"min_interval" json:"minInterval,omitempty"`
}

// RootPath describes one source location to ingest.
// It is an immutable configuration value and is never mutated by the engine.
type RootPath struct {
	Name      string   `koanf:"name" json:"name,omitempty"`
	RootPath  string   `koanf:"path" json:"rootPath"`
	Filters   []string `koanf:"filters" json:"filters,omitempty"`
	Recursive bool     `koanf:"recursive" json:"recursive,omitempty"`
	FileType  FileType `koanf:"type" json:"fileType,omitempty"`
	Columns   []Column `koanf:"columns" json:"columns,omitempty"`
	// Delimiter defaults to "," for delimited files
	Delimiter string `koanf:"delimiter" json:"delimiter,omitempty"`
	HasHeader bool   `koanf:"has_header" json:"hasHeader"`
	SkipLines int    `koanf:"skip_lines" json:"skipLines,omitempty"`
	// Encoding names the source text encoding (e.g. "windows-1252"); empty means UTF-8
	Encoding   string `koanf:"encoding" json:"encoding,omitempty"`
	TableName  string `koanf:"table" json:"tableName,omitempty"`
	SchemaName string `koanf:"schema" json:"schemaName,omitempty"`
	// InferTypes narrows String properties from sampled values
	InferTypes  bool                `koanf:"infer_types" json:"inferTypes,omitempty"`
	Spreadsheet SpreadsheetSettings `koanf:"spreadsheet" json:"spreadsheet,omitempty"`
	XML         XMLSettings         `koanf:"xml" json:"xml,omitempty"`
	Copy        CopySettings        `koanf:"copy" json:"copy,omitempty"`
}

// ResolveFileType returns the declared file type or detects it from path.
func (r RootPath) ResolveFileType(path string) FileType {
	if r.FileType != FileTypeAuto {
		return r.FileType
	}
	return DetectFileType(path)
}

// Column returns the declared column with the given name.
func (r RootPath) Column(name string) (Column, bool) {
	for _, c := range r.Columns {
		if c.ColumnName == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the declared column names in order.
func (r RootPath) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.ColumnName
	}
	return names
}
