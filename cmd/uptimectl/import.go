package main

import (
	"github.com/spf13/cobra"

	"uptime-report-backend/internal/ingest"
	"uptime-report-backend/internal/store"
)

func newImportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Replace the stored dataset with the CSV files.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, gormDB, err := opts.open()
			if err != nil {
				return err
			}
			defer closeDB(gormDB)

			svc := ingest.NewService(&cfg.Ingest, store.NewGormStore(gormDB))
			stats, err := svc.ImportOnce(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("Imported %d sites, %d samples, %d business hours (skipped %d samples, %d business hours)\n",
				stats.Sites, stats.Samples, stats.Hours, stats.SkippedSamples, stats.SkippedHours)
			return nil
		},
	}
}
