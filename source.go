package fileschema

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/nao1215/fileschema/domain/model"
	"github.com/ulikunitz/xz"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// CompressionType represents the compression applied to a source or exported file
type CompressionType int

const (
	// CompressionNone represents no compression
	CompressionNone CompressionType = iota
	// CompressionGZ represents gzip compression
	CompressionGZ
	// CompressionBZ2 represents bzip2 compression. It can be read but not written.
	CompressionBZ2
	// CompressionXZ represents xz compression
	CompressionXZ
	// CompressionZSTD represents zstd compression
	CompressionZSTD
)

// detectCompression detects the compression type from a file path
func detectCompression(path string) CompressionType {
	path = strings.ToLower(path)

	switch {
	case strings.HasSuffix(path, ".gz"):
		return CompressionGZ
	case strings.HasSuffix(path, ".bz2"):
		return CompressionBZ2
	case strings.HasSuffix(path, ".xz"):
		return CompressionXZ
	case strings.HasSuffix(path, ".zst"):
		return CompressionZSTD
	default:
		return CompressionNone
	}
}

// newDecompressor wraps reader with a decompression reader if needed
func newDecompressor(ct CompressionType, reader io.Reader) (io.Reader, func() error, error) {
	switch ct {
	case CompressionNone:
		return reader, func() error { return nil }, nil

	case CompressionGZ:
		gzReader, err := gzip.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gzReader, gzReader.Close, nil

	case CompressionBZ2:
		// bzip2.NewReader doesn't need closing
		return bzip2.NewReader(reader), func() error { return nil }, nil

	case CompressionXZ:
		xzReader, err := xz.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz reader: %w", err)
		}
		// xz.Reader doesn't have a Close method
		return xzReader, func() error { return nil }, nil

	case CompressionZSTD:
		decoder, err := zstd.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return decoder, func() error {
			decoder.Close()
			return nil
		}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported compression type for reading: %v", ct)
	}
}

// newCompressor wraps writer with a compression writer if needed
func newCompressor(ct CompressionType, writer io.Writer) (io.Writer, func() error, error) {
	switch ct {
	case CompressionNone:
		return writer, func() error { return nil }, nil

	case CompressionGZ:
		gzWriter := gzip.NewWriter(writer)
		return gzWriter, gzWriter.Close, nil

	case CompressionBZ2:
		// bzip2 doesn't have a writer in the standard library
		return nil, nil, errors.New("bzip2 compression is not supported for writing")

	case CompressionXZ:
		xzWriter, err := xz.NewWriter(writer)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz writer: %w", err)
		}
		return xzWriter, xzWriter.Close, nil

	case CompressionZSTD:
		zstdWriter, err := zstd.NewWriter(writer)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return zstdWriter, zstdWriter.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported compression type for writing: %v", ct)
	}
}

// decodeText converts reader from the named encoding to UTF-8.
// Empty and UTF-8 names return reader unchanged.
func decodeText(reader io.Reader, name string) (io.Reader, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return reader, nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, model.Configurationf("unknown source encoding %q", name)
	}
	return transform.NewReader(reader, enc.NewDecoder()), nil
}

// openSource opens path, decompresses it by extension and decodes it to UTF-8.
// The returned closer releases every layer.
func openSource(path, encoding string) (io.Reader, func() error, error) {
	file, err := os.Open(path) //nolint:gosec // User-provided path is necessary for file operations
	if err != nil {
		return nil, nil, model.WrapSourceRead(err, "failed to open %s", path)
	}

	reader, cleanup, err := newDecompressor(detectCompression(path), file)
	if err != nil {
		_ = file.Close() // Ignore close error during error handling
		return nil, nil, model.WrapSourceRead(err, "failed to decompress %s", path)
	}

	decoded, err := decodeText(reader, encoding)
	if err != nil {
		_ = cleanup()
		_ = file.Close()
		return nil, nil, err
	}

	closer := func() error {
		cleanupErr := cleanup()
		if closeErr := file.Close(); closeErr != nil && cleanupErr == nil {
			cleanupErr = closeErr
		}
		return cleanupErr
	}
	return decoded, closer, nil
}

// readSource reads a whole decompressed source into memory.
// Random access formats (XLSX, Parquet) need this when they are compressed.
func readSource(path string) (*bytes.Reader, error) {
	reader, closer, err := openSource(path, "")
	if err != nil {
		return nil, err
	}
	defer func() { _ = closer() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, model.WrapSourceRead(err, "failed to read %s", path)
	}
	if len(data) == 0 {
		return nil, model.WrapSourceRead(errEmptySource, "%s", path)
	}
	return bytes.NewReader(data), nil
}

// skipLines discards the first n lines of reader
func skipLines(reader *bufio.Reader, n int) error {
	for i := 0; i < n; i++ {
		if _, err := reader.ReadString('\n'); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
	return nil
}

// createSink creates or appends to path and returns a writer that compresses by extension
func createSink(path string, appendMode bool) (io.Writer, func() error, error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}

	file, err := os.OpenFile(path, flags, 0o600) //nolint:gosec // User-provided path is necessary for file operations
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create file: %w", err)
	}

	writer, cleanup, err := newCompressor(detectCompression(path), file)
	if err != nil {
		_ = file.Close()
		return nil, nil, err
	}

	closer := func() error {
		var cleanupErr error
		if cleanup != nil {
			cleanupErr = cleanup()
		}
		if syncErr := file.Sync(); syncErr != nil && cleanupErr == nil {
			cleanupErr = syncErr
		}
		if closeErr := file.Close(); closeErr != nil && cleanupErr == nil {
			cleanupErr = closeErr
		}
		return cleanupErr
	}
	return writer, closer, nil
}
