// Package model provides domain model for fileschema
package model

import (
	"path/filepath"
	"strings"
)

// Character validation constants
const (
	firstDigitChar = '0'
	lastDigitChar  = '9'
	firstLowerChar = 'a'
	lastLowerChar  = 'z'
	firstUpperChar = 'A'
	lastUpperChar  = 'Z'
	underscoreChar = '_'
)

// SanitizeTableName replaces characters that are not letters, digits or underscores
// and guarantees a non-empty name that does not start with a digit.
func SanitizeTableName(name string) string {
	result := strings.TrimSpace(name)
	result = strings.ReplaceAll(result, " ", "_")
	result = strings.ReplaceAll(result, "-", "_")
	result = strings.ReplaceAll(result, ".", "_")

	var sanitized strings.Builder
	for _, r := range result {
		if (r >= firstLowerChar && r <= lastLowerChar) ||
			(r >= firstUpperChar && r <= lastUpperChar) ||
			(r >= firstDigitChar && r <= lastDigitChar) ||
			r == underscoreChar {
			sanitized.WriteRune(r)
		}
	}

	finalResult := sanitized.String()

	// Ensure it doesn't start with a number
	if len(finalResult) > 0 && finalResult[0] >= firstDigitChar && finalResult[0] <= lastDigitChar {
		finalResult = "table_" + finalResult
	}

	if finalResult == "" {
		finalResult = "table"
	}

	return finalResult
}

// TableFromFilePath creates table name from file path
func TableFromFilePath(filePath string) string {
	fileName := StripCompressionExt(filepath.Base(filePath))
	return SanitizeTableName(strings.TrimSuffix(fileName, filepath.Ext(fileName)))
}

// TableFromDirectory creates table name from the directory holding a set of files
func TableFromDirectory(dir string) string {
	return SanitizeTableName(filepath.Base(filepath.Clean(dir)))
}
