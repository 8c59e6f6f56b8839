package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/nao1215/fileschema/domain/model"
	"github.com/spf13/cobra"
)

func newReadCmd(a *app) *cobra.Command {
	var (
		limit int
		query string
	)

	cmd := &cobra.Command{
		Use:   "read [root-path-name...]",
		Short: "Print the sampled records of each discovered schema",
		Long: `Print the records staged while discovering each schema. Discovery stages at most
sample_size rows per file, so the records shown are that sample. Use import with a
file: staging location to stage every row.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			schemas, err := a.discover(cmd.Context(), args)
			if err != nil {
				return err
			}
			for _, schema := range schemas {
				if query != "" {
					schema.Query = query
				}
				records, err := a.session.Records(cmd.Context(), schema).Collect(limit)
				if err != nil {
					return fmt.Errorf("read %s: %w", schema.ID, err)
				}
				renderRecords(cmd.OutOrStdout(), schema, records)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum records printed per schema, 0 for the whole sample")
	cmd.Flags().StringVar(&query, "query", "", "SQL query run instead of the full staged table")
	return cmd
}

// renderRecords prints the records of one schema in property order
func renderRecords(w io.Writer, schema model.Schema, records []model.Record) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(schema.ID)

	header := make(table.Row, len(schema.Properties))
	for i, prop := range schema.Properties {
		header[i] = prop.ID
	}
	t.AppendHeader(header)

	for _, record := range records {
		row := make(table.Row, len(schema.Properties))
		for i, prop := range schema.Properties {
			row[i], _ = record.Value(prop.ID)
		}
		t.AppendRow(row)
	}
	t.Render()
}
