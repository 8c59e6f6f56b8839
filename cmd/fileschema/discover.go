package main

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/nao1215/fileschema/domain/model"
	"github.com/spf13/cobra"
)

func newDiscoverCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "discover [root-path-name...]",
		Short: "Stage a sample of each root path and print the discovered schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			schemas, err := a.discover(cmd.Context(), args)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(schemas)
			}
			renderSchemas(cmd.OutOrStdout(), schemas)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the schemas as JSON")
	return cmd
}

// renderSchemas prints one row per property of every schema
func renderSchemas(w io.Writer, schemas []model.Schema) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Schema", "Property", "Type", "Source Type", "Key", "Nullable", "Rows"})

	for _, schema := range schemas {
		for _, prop := range schema.Properties {
			t.AppendRow(table.Row{
				schema.ID, prop.ID, prop.Type.String(), prop.TypeAtSource,
				prop.IsKey, prop.IsNullable, formatCount(schema.Count),
			})
		}
		t.AppendSeparator()
	}
	t.Render()
}

func formatCount(c model.Count) string {
	if !c.IsExact() {
		return "n/a"
	}
	return strconv.FormatInt(c.Value, 10)
}
