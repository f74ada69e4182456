package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yourusername/race-time-predictor/internal/logger"
)

var checkDataCmd = &cobra.Command{
	Use:   "check-data",
	Short: "Validate reference data and model feature schemas",
	Long: `Loads the reference tables and every configured model, then checks that
each model's feature schema can be assembled from the loaded tables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		audit := logger.NewAuditLogger(appLog)

		p, err := buildPipeline(ctx, cfg, appLog)
		if err != nil {
			audit.LogReferenceDataChecked(cfg.ReferenceData.Source, nil, err)
			return err
		}
		defer p.Close()

		counts := p.tables.RowCounts()
		audit.LogReferenceDataChecked(cfg.ReferenceData.Source, counts, nil)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TABLE\tROWS")
		tables := make([]string, 0, len(counts))
		for table := range counts {
			tables = append(tables, table)
		}
		sort.Strings(tables)
		for _, table := range tables {
			fmt.Fprintf(w, "%s\t%d\n", table, counts[table])
		}
		fmt.Fprintln(w)

		var problems []error
		fmt.Fprintln(w, "SEGMENT\tBACKEND\tFEATURES\tSTATUS")
		for _, entry := range p.registry.Entries() {
			status := "ok"
			features := 0
			switch {
			case entry.Err != nil:
				status = entry.Err.Error()
				problems = append(problems, fmt.Errorf("%s: %w", entry.Segment, entry.Err))
			default:
				features = len(entry.Model.FeatureNames())
				if err := p.assembler.CheckSchema(entry.Model); err != nil {
					status = err.Error()
					problems = append(problems, fmt.Errorf("%s: %w", entry.Segment, err))
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", entry.Segment, entry.Backend, features, status)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if len(problems) > 0 {
			return fmt.Errorf("%d segment models failed validation: %w", len(problems), errors.Join(problems...))
		}
		return nil
	},
}
