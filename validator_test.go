package fileschema

import (
	"testing"
	"time"

	"github.com/nao1215/fileschema/domain/model"
	"github.com/stretchr/testify/require"
)

func TestValidateLayout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		layout  model.RootPath
		wantErr error
	}{
		{
			name:   "auto detection",
			layout: model.RootPath{RootPath: "/data"},
		},
		{
			name: "fixed width with ranges",
			layout: model.RootPath{
				FileType: model.FileTypeFixedWidth,
				Columns:  []model.Column{{ColumnName: "a", ColumnStart: 0, ColumnEnd: 3}},
			},
		},
		{
			name:    "fixed width without columns",
			layout:  model.RootPath{FileType: model.FileTypeFixedWidth},
			wantErr: model.ErrConfiguration,
		},
		{
			name:    "unknown file type",
			layout:  model.RootPath{FileType: "jsonl"},
			wantErr: model.ErrUnsupportedFormat,
		},
		{
			name:    "negative skip lines",
			layout:  model.RootPath{SkipLines: -1},
			wantErr: model.ErrConfiguration,
		},
		{
			name:    "unnamed column",
			layout:  model.RootPath{Columns: []model.Column{{ColumnName: " "}}},
			wantErr: model.ErrConfiguration,
		},
		{
			name:    "unknown xml strategy",
			layout:  model.RootPath{XML: model.XMLSettings{Strategy: "tree"}},
			wantErr: model.ErrConfiguration,
		},
		{
			name:    "negative spreadsheet column",
			layout:  model.RootPath{Spreadsheet: model.SpreadsheetSettings{Columns: []int{1, -2}}},
			wantErr: model.ErrConfiguration,
		},
		{
			name:   "audit only copy",
			layout: model.RootPath{FileType: model.FileTypeFileCopy},
		},
		{
			name: "local copy without target",
			layout: model.RootPath{
				FileType: model.FileTypeFileCopy,
				Copy:     model.CopySettings{Mode: model.TransferLocal},
			},
			wantErr: model.ErrConfiguration,
		},
		{
			name: "ftp copy without host",
			layout: model.RootPath{
				FileType: model.FileTypeFileCopy,
				Copy:     model.CopySettings{Mode: model.TransferFTP, Target: "/in"},
			},
			wantErr: model.ErrConfiguration,
		},
		{
			name: "negative interval",
			layout: model.RootPath{
				FileType: model.FileTypeFileCopy,
				Copy:     model.CopySettings{Mode: model.TransferSFTP, Host: "h", MinInterval: -time.Second},
			},
			wantErr: model.ErrConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := validateLayout(tt.layout)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
