// Package model provides domain model for fileschema
package model

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ColumnMetadata is the per-column metadata reported by the staging store.
type ColumnMetadata struct {
	Name string
	// DatabaseType is the declared or engine type name (e.g. "VARCHAR(2000)", "BIGINT")
	DatabaseType string
	// Length is the declared maximum length; zero means unbounded or unknown
	Length   int64
	Nullable bool
	IsKey    bool
}

var (
	boolTypes     = []string{"BOOL", "BOOLEAN", "BIT"}
	integerTypes  = []string{"INT", "INTEGER", "INT4", "INT8", "INT32", "INT64", "BIGINT", "SMALLINT", "TINYINT", "HUGEINT", "UBIGINT", "UINTEGER"}
	floatTypes    = []string{"REAL", "FLOAT", "FLOAT4", "FLOAT8", "DOUBLE", "DOUBLE PRECISION", "DECIMAL", "NUMERIC"}
	datetimeTypes = []string{"TIMESTAMP", "DATETIME", "DATE", "TIMESTAMP WITH TIME ZONE", "TIMESTAMPTZ"}
	// characterTypes are the only types whose length can make a column Text
	characterTypes = []string{"VARCHAR", "CHAR", "CHARACTER", "CHARACTER VARYING", "NVARCHAR", "NCHAR", "TEXT", "STRING", "CLOB"}
)

// baseTypeName strips length/precision arguments from a declared type
func baseTypeName(declared string) string {
	name := strings.ToUpper(strings.TrimSpace(declared))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	return name
}

// DeclaredLength parses the length argument of a declared type such as VARCHAR(2000).
func DeclaredLength(declared string) int64 {
	open := strings.IndexByte(declared, '(')
	closing := strings.IndexByte(declared, ')')
	if open < 0 || closing <= open {
		return 0
	}
	arg := declared[open+1 : closing]
	if comma := strings.IndexByte(arg, ','); comma >= 0 {
		arg = arg[:comma]
	}
	n, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func containsType(types []string, name string) bool {
	for _, t := range types {
		if t == name {
			return true
		}
	}
	return false
}

// GetPropertyType maps column metadata to a PropertyType.
// boolean -> Bool, integer -> Integer, float -> Float, timestamp -> Datetime,
// character type longer than TextThreshold -> Text, anything else -> String.
func GetPropertyType(column ColumnMetadata) PropertyType {
	name := baseTypeName(column.DatabaseType)
	switch {
	case containsType(boolTypes, name):
		return PropertyTypeBool
	case containsType(integerTypes, name):
		return PropertyTypeInteger
	case containsType(floatTypes, name):
		return PropertyTypeFloat
	case containsType(datetimeTypes, name):
		return PropertyTypeDatetime
	case !containsType(characterTypes, name):
		return PropertyTypeString
	}

	length := column.Length
	if length == 0 {
		length = DeclaredLength(column.DatabaseType)
	}
	if length > TextThreshold {
		return PropertyTypeText
	}
	return PropertyTypeString
}

// Common datetime patterns to detect
var datetimePatterns = []struct {
	pattern *regexp.Regexp
	formats []string // Multiple formats for the same pattern
}{
	// ISO8601 formats with timezone
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`),
		[]string{time.RFC3339, time.RFC3339Nano},
	},
	// ISO8601 formats without timezone
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?$`),
		[]string{"2006-01-02T15:04:05", "2006-01-02T15:04:05.000"},
	},
	// ISO8601 date and time with space
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(\.\d+)?$`),
		[]string{"2006-01-02 15:04:05", "2006-01-02 15:04:05.000"},
	},
	// ISO8601 date only
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
		[]string{"2006-01-02"},
	},
	// US formats
	{
		regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4} \d{1,2}:\d{2}:\d{2}( (AM|PM))?$`),
		[]string{"1/2/2006 15:04:05", "1/2/2006 3:04:05 PM", "01/02/2006 15:04:05"},
	},
	{
		regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`),
		[]string{"1/2/2006", "01/02/2006"},
	},
	// European formats
	{
		regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4} \d{1,2}:\d{2}:\d{2}$`),
		[]string{"2.1.2006 15:04:05", "02.01.2006 15:04:05"},
	},
	{
		regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}$`),
		[]string{"2.1.2006", "02.01.2006"},
	},
}

// isDatetime checks if a string value represents a datetime
func isDatetime(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}

	for _, dp := range datetimePatterns {
		if dp.pattern.MatchString(value) {
			for _, format := range dp.formats {
				if _, err := time.Parse(format, value); err == nil {
					return true
				}
			}
		}
	}

	return false
}

// isBool checks for the literal spellings accepted as booleans
func isBool(value string) bool {
	switch strings.ToLower(value) {
	case "true", "false":
		return true
	default:
		return false
	}
}

// InferPropertyType infers a PropertyType from sampled string values.
// Empty values are ignored; a column without values stays String.
func InferPropertyType(values []string) PropertyType {
	hasBool := false
	hasDatetime := false
	hasFloat := false
	hasInteger := false
	seen := false

	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		seen = true

		if isBool(value) {
			hasBool = true
			continue
		}

		// Check if it's a datetime first (before checking numbers)
		if isDatetime(value) {
			hasDatetime = true
			continue
		}

		if _, err := strconv.ParseInt(value, 10, 64); err == nil {
			hasInteger = true
			continue
		}

		if _, err := strconv.ParseFloat(value, 64); err == nil {
			hasFloat = true
			continue
		}

		// If any value is text, the whole column is text
		return PropertyTypeString
	}

	if !seen {
		return PropertyTypeString
	}

	kinds := 0
	for _, has := range []bool{hasBool, hasDatetime, hasFloat || hasInteger} {
		if has {
			kinds++
		}
	}
	if kinds > 1 {
		return PropertyTypeString
	}

	switch {
	case hasBool:
		return PropertyTypeBool
	case hasDatetime:
		return PropertyTypeDatetime
	case hasFloat:
		return PropertyTypeFloat
	default:
		return PropertyTypeInteger
	}
}
