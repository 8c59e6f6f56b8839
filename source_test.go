package fileschema

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/fileschema/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestDetectCompression(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want CompressionType
	}{
		{path: "data.csv", want: CompressionNone},
		{path: "data.csv.gz", want: CompressionGZ},
		{path: "DATA.CSV.GZ", want: CompressionGZ},
		{path: "data.tsv.bz2", want: CompressionBZ2},
		{path: "data.xml.xz", want: CompressionXZ},
		{path: "data.parquet.zst", want: CompressionZSTD},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, detectCompression(tt.path))
		})
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	t.Parallel()

	payload := []byte(strings.Repeat("id,name\n1,Alice\n", 64))

	for _, ct := range []CompressionType{CompressionNone, CompressionGZ, CompressionXZ, CompressionZSTD} {
		t.Run(ct.String(), func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			writer, closeWriter, err := newCompressor(ct, &buf)
			require.NoError(t, err)
			_, err = writer.Write(payload)
			require.NoError(t, err)
			require.NoError(t, closeWriter())

			reader, closeReader, err := newDecompressor(ct, &buf)
			require.NoError(t, err)
			got, err := io.ReadAll(reader)
			require.NoError(t, err)
			require.NoError(t, closeReader())
			assert.Equal(t, payload, got)
		})
	}

	t.Run("bzip2 cannot be written", func(t *testing.T) {
		t.Parallel()

		_, _, err := newCompressor(CompressionBZ2, io.Discard)
		require.Error(t, err)
	})

	t.Run("corrupt gzip", func(t *testing.T) {
		t.Parallel()

		_, _, err := newDecompressor(CompressionGZ, strings.NewReader("not gzip"))
		require.Error(t, err)
	})
}

func TestDecodeText(t *testing.T) {
	t.Parallel()

	encoded, err := charmap.Windows1252.NewEncoder().String("Café")
	require.NoError(t, err)

	for _, name := range []string{"", "utf-8", "UTF8"} {
		reader, err := decodeText(strings.NewReader("plain"), name)
		require.NoError(t, err)
		got, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "plain", string(got))
	}

	reader, err := decodeText(strings.NewReader(encoded), "windows-1252")
	require.NoError(t, err)
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "Café", string(got))

	_, err = decodeText(strings.NewReader(encoded), "no-such-charset")
	require.ErrorIs(t, err, model.ErrConfiguration)
}

func TestOpenSource(t *testing.T) {
	t.Parallel()

	t.Run("compressed sink is readable back", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "out.csv.zst")
		writer, closer, err := createSink(path, false)
		require.NoError(t, err)
		_, err = io.WriteString(writer, "a,b\n1,2\n")
		require.NoError(t, err)
		require.NoError(t, closer())

		reader, closeReader, err := openSource(path, "")
		require.NoError(t, err)
		defer func() { _ = closeReader() }()
		got, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "a,b\n1,2\n", string(got))
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, _, err := openSource(filepath.Join(t.TempDir(), "gone.csv"), "")
		require.ErrorIs(t, err, model.ErrSourceRead)
	})

	t.Run("empty file cannot be read whole", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "empty.parquet")
		require.NoError(t, os.WriteFile(path, nil, 0o600))

		_, err := readSource(path)
		require.ErrorIs(t, err, model.ErrSourceRead)
	})
}

func TestSkipLines(t *testing.T) {
	t.Parallel()

	reader := bufio.NewReader(strings.NewReader("one\ntwo\nthree\n"))
	require.NoError(t, skipLines(reader, 2))
	rest, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "three\n", string(rest))

	require.NoError(t, skipLines(bufio.NewReader(strings.NewReader("short")), 5))
}
