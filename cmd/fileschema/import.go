package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/nao1215/fileschema"
	"github.com/nao1215/fileschema/domain/model"
	"github.com/spf13/cobra"
)

// importResult is one staged table reported by the import command
type importResult struct {
	fileschema.ImportResult
	exported string
}

func newImportCmd(a *app) *cobra.Command {
	var (
		exportDir string
		compress  string
		tsv       bool
	)

	cmd := &cobra.Command{
		Use:   "import [root-path-name...]",
		Short: "Stage every file of each root path",
		Long: `Stage every file of each root path into the staging store. Rows staged by an
earlier import of the same table are replaced. Use a file: staging location in the
config to keep the staged tables after the command ends.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := fileschema.NewExportOptions()
			compression, err := fileschema.ParseCompression(compress)
			if err != nil {
				return err
			}
			opts = opts.WithCompression(compression)
			if tsv {
				opts = opts.WithFormat(fileschema.OutputFormatTSV)
			}

			session, err := a.open(cmd.Context(), args)
			if err != nil {
				return err
			}

			var results []importResult
			for _, root := range session.RootPaths() {
				imported, err := importRoot(cmd.Context(), session, root, exportDir, opts)
				results = append(results, imported...)
				if err != nil {
					renderImports(cmd, results)
					return fmt.Errorf("import %s: %w", root.RootPath, err)
				}
			}
			renderImports(cmd, results)
			return nil
		},
	}
	cmd.Flags().StringVar(&exportDir, "export", "", "directory receiving a copy of every staged table")
	cmd.Flags().StringVar(&compress, "compress", "", "compression of exported files (gz|xz|zstd)")
	cmd.Flags().BoolVar(&tsv, "tsv", false, "export tab separated files instead of CSV")
	return cmd
}

// importRoot stages root and exports each staged table when exportDir is set
func importRoot(ctx context.Context, session *fileschema.Session, root model.RootPath, exportDir string, opts fileschema.ExportOptions) ([]importResult, error) {
	imported, err := session.Import(ctx, root)
	results := make([]importResult, 0, len(imported))
	for _, r := range imported {
		results = append(results, importResult{ImportResult: r})
	}
	if err != nil || exportDir == "" {
		return results, err
	}

	for i := range results {
		path, _, err := session.Export(ctx, root, results[i].Table, exportDir, opts)
		if errors.Is(err, model.ErrNotImplemented) {
			continue
		}
		if err != nil {
			return results, err
		}
		results[i].exported = path
	}
	return results, nil
}

func renderImports(cmd *cobra.Command, results []importResult) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Table", "Files", "Rows", "Exported"})
	for _, r := range results {
		t.AppendRow(table.Row{r.Table, r.Files, r.Rows, r.exported})
	}
	t.Render()
}
