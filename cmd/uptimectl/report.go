package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"uptime-report-backend/internal/report"
	"uptime-report-backend/internal/store"
)

func newReportCmd(opts *options) *cobra.Command {
	var format, out string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compute the uptime report from the stored dataset.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch format {
			case "csv", "table", "parquet":
			default:
				return fmt.Errorf("unknown format %q (want csv, table or parquet)", format)
			}

			cfg, gormDB, err := opts.open()
			if err != nil {
				return err
			}
			defer closeDB(gormDB)

			gen := &report.Generator{Store: store.NewGormStore(gormDB), Workers: cfg.Report.SiteWorkers}
			res, err := gen.Compute(cmd.Context())
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}

			switch format {
			case "table":
				return report.WriteTable(w, res)
			case "parquet":
				return report.WriteParquet(w, res)
			default:
				data, err := report.Assemble(res)
				if err != nil {
					return err
				}
				_, err = w.Write(data)
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format: csv, table or parquet")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to this file instead of stdout")
	return cmd
}
