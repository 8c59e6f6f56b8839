package fileschema

import (
	"testing"

	"github.com/nao1215/fileschema/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportOptions_FileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts ExportOptions
		want string
	}{
		{name: "default", opts: NewExportOptions(), want: "sales.csv"},
		{name: "tsv", opts: NewExportOptions().WithFormat(OutputFormatTSV), want: "sales.tsv"},
		{name: "csv gzip", opts: NewExportOptions().WithCompression(CompressionGZ), want: "sales.csv.gz"},
		{
			name: "tsv zstd",
			opts: NewExportOptions().WithFormat(OutputFormatTSV).WithCompression(CompressionZSTD),
			want: "sales.tsv.zst",
		},
		{name: "xz", opts: NewExportOptions().WithCompression(CompressionXZ), want: "sales.csv.xz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.opts.FileName("sales"))
		})
	}
}

func TestExportOptions_WithAppend(t *testing.T) {
	t.Parallel()

	base := NewExportOptions()
	appended := base.WithAppend(true)
	assert.False(t, base.Append)
	assert.True(t, appended.Append)
}

func TestParseCompression(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]CompressionType{
		"":     CompressionNone,
		"none": CompressionNone,
		"GZ":   CompressionGZ,
		"gzip": CompressionGZ,
		"xz":   CompressionXZ,
		"zstd": CompressionZSTD,
		"zst":  CompressionZSTD,
	} {
		got, err := ParseCompression(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseCompression("bz2")
	require.ErrorIs(t, err, model.ErrConfiguration)
}

func TestCompressionType_Extension(t *testing.T) {
	t.Parallel()

	// every written extension must be detected again when the file is read back
	for _, ct := range []CompressionType{CompressionNone, CompressionGZ, CompressionBZ2, CompressionXZ, CompressionZSTD} {
		assert.Equal(t, ct, detectCompression("t.csv"+ct.Extension()), ct.String())
	}
}
