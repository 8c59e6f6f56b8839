// Package model provides domain model for fileschema
package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration indicates a missing or invalid table/schema name, zero detected
	// columns, or a column count mismatch between layout and staged table
	ErrConfiguration = errors.New("fileschema: configuration error")

	// ErrSourceRead indicates a missing file, malformed content or unsupported transfer mode
	ErrSourceRead = errors.New("fileschema: source read error")

	// ErrStore indicates the staging engine rejected a statement
	ErrStore = errors.New("fileschema: staging store error")

	// ErrPropertyResolution indicates a declared property is missing from a staged row
	ErrPropertyResolution = errors.New("fileschema: property not found in row")

	// ErrDiscoveryDegraded indicates discovery failed and a previous schema was returned
	ErrDiscoveryDegraded = errors.New("fileschema: discovery degraded to previous schema")

	// ErrUnsupportedFormat indicates no adapter handles the file type
	ErrUnsupportedFormat = errors.New("fileschema: unsupported file format")

	// ErrNotImplemented indicates an optional adapter operation is unavailable
	ErrNotImplemented = errors.New("fileschema: not implemented")
)

// ErrorContext provides context for where an error occurred
type ErrorContext struct {
	Operation string
	FilePath  string
	TableName string
	Details   string
}

// NewErrorContext creates a new error context
func NewErrorContext(operation, filePath string) *ErrorContext {
	return &ErrorContext{
		Operation: operation,
		FilePath:  filePath,
	}
}

// WithTable adds table context to the error
func (ec *ErrorContext) WithTable(tableName string) *ErrorContext {
	ec.TableName = tableName
	return ec
}

// WithDetails adds details to the error context
func (ec *ErrorContext) WithDetails(details string) *ErrorContext {
	ec.Details = details
	return ec
}

// Error creates a formatted error with context
func (ec *ErrorContext) Error(baseErr error) error {
	var parts []string
	parts = append(parts, ec.Operation+" failed")

	if ec.FilePath != "" {
		parts = append(parts, "file: "+ec.FilePath)
	}

	if ec.TableName != "" {
		parts = append(parts, "table: "+ec.TableName)
	}

	if ec.Details != "" {
		parts = append(parts, "details: "+ec.Details)
	}

	context := strings.Join(parts, ", ")
	if baseErr != nil {
		return fmt.Errorf("%s: %w", context, baseErr)
	}
	return fmt.Errorf("%s", context)
}

// Configurationf returns an ErrConfiguration with a formatted message.
func Configurationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// SourceReadf returns an ErrSourceRead with a formatted message.
func SourceReadf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSourceRead, fmt.Sprintf(format, args...))
}

// WrapSourceRead marks err as a source read failure unless it already is one.
func WrapSourceRead(err error, format string, args ...any) error {
	if err == nil || errors.Is(err, ErrSourceRead) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrSourceRead, fmt.Sprintf(format, args...), err)
}
