package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeTableName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "orders", want: "orders"},
		{name: "spaces and dashes", input: "daily sales-2024", want: "daily_sales_2024"},
		{name: "leading digit", input: "2024data", want: "table_2024data"},
		{name: "only symbols", input: "@@@", want: "table"},
		{name: "empty", input: "", want: "table"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, SanitizeTableName(tt.input))
		})
	}
}

func TestTableFromFilePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filePath string
		want     string
	}{
		{name: "simple", filePath: "data.csv", want: "data"},
		{name: "nested", filePath: "/home/user/in/orders.tsv", want: "orders"},
		{name: "compressed", filePath: "logs.csv.gz", want: "logs"},
		{name: "zstd", filePath: "logs.xlsx.zst", want: "logs"},
		{name: "dotted name", filePath: "sales.2024.csv", want: "sales_2024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, TableFromFilePath(tt.filePath))
		})
	}
}

func TestTableFromDirectory(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "customers", TableFromDirectory("/data/customers/"))
	assert.Equal(t, "in_bound", TableFromDirectory("/data/in-bound"))
}
