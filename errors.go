package fileschema

import (
	"errors"

	"github.com/nao1215/fileschema/domain/model"
)

// Error taxonomy shared by adapters, discovery and the record reader.
// The values alias the domain sentinels so callers can match either with errors.Is.
var (
	// ErrConfiguration indicates a missing or invalid table/schema name, zero detected
	// columns, or a column count mismatch between layout and staged table
	ErrConfiguration = model.ErrConfiguration

	// ErrSourceRead indicates a missing file, malformed content or unsupported transfer mode
	ErrSourceRead = model.ErrSourceRead

	// ErrStore indicates the staging engine rejected a statement
	ErrStore = model.ErrStore

	// ErrPropertyResolution indicates a declared property is missing from a staged row
	ErrPropertyResolution = model.ErrPropertyResolution

	// ErrDiscoveryDegraded indicates discovery failed and a previous schema was returned
	ErrDiscoveryDegraded = model.ErrDiscoveryDegraded

	// ErrUnsupportedFormat indicates no adapter handles the file type
	ErrUnsupportedFormat = model.ErrUnsupportedFormat

	// ErrNotImplemented indicates an optional adapter operation is unavailable
	ErrNotImplemented = model.ErrNotImplemented

	// errEmptySource is returned when a source holds no header row
	errEmptySource = errors.New("empty data source")
)
