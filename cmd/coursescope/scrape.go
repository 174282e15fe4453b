package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/coursescope/internal/app"
	"github.com/hyperifyio/coursescope/internal/extract"
)

func newScrapeCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "scrape <course-url>",
		Short: "Extract one course page and print the record.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			rec, err := scrape(cmd.Context(), cfg, args[0])
			if err != nil {
				return err
			}
			return writeRecord(cmd.OutOrStdout(), rec, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", "table", "Output format: table, json or yaml")
	addSiteFlags(cmd.Flags())
	return cmd
}

func scrape(ctx context.Context, cfg app.Config, rawURL string) (extract.CourseRecord, error) {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return extract.CourseRecord{}, fmt.Errorf("init app: %w", err)
	}
	defer a.Close(context.WithoutCancel(ctx))

	return a.Gateway().Scrape(ctx, rawURL)
}

func writeRecord(w io.Writer, rec extract.CourseRecord, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rec); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleRounded)
		t.SetColumnConfigs([]table.ColumnConfig{
			{Number: 1, Align: text.AlignRight},
			{Number: 2, WidthMax: 80},
		})
		t.AppendHeader(table.Row{"Field", "Value"})
		t.AppendRow(table.Row{"Title", rec.Title})
		t.AppendRow(table.Row{"Description", rec.Description})
		t.AppendSeparator()
		for i, item := range rec.Syllabus {
			label := ""
			if i == 0 {
				label = "Syllabus"
			}
			t.AppendRow(table.Row{label, fmt.Sprintf("%d. %s", i+1, item)})
		}
		t.AppendSeparator()
		t.AppendRow(table.Row{"Source", rec.SourceURL})
		t.Render()
		return nil
	}
	return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
}
