// Package report renders aggregator results as the downloadable CSV and the
// CLI's table and Parquet exports.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/parquet-go/parquet-go"

	"uptime-report-backend/internal/uptime"
)

// Header is the column order of every rendering.
var Header = []string{
	"site_id",
	"uptime_last_hour",
	"uptime_last_day",
	"uptime_last_week",
	"downtime_last_hour",
	"downtime_last_day",
	"downtime_last_week",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func record(m uptime.Metrics) []string {
	return []string{
		m.SiteID,
		formatFloat(m.UptimeLastHour),
		formatFloat(m.UptimeLastDay),
		formatFloat(m.UptimeLastWeek),
		formatFloat(m.DowntimeLastHour),
		formatFloat(m.DowntimeLastDay),
		formatFloat(m.DowntimeLastWeek),
	}
}

// Assemble serializes res as CSV, one row per site in result order.
func Assemble(res *uptime.Result) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range res.Rows {
		if err := w.Write(record(row)); err != nil {
			return nil, fmt.Errorf("failed to write csv row for site %s: %w", row.SiteID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteTable prints res as an aligned terminal table.
func WriteTable(out io.Writer, res *uptime.Result) error {
	table := tablewriter.NewWriter(out)
	table.Header(Header)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		data = append(data, record(row))
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// ParquetRow is the Parquet schema of one report row.
type ParquetRow struct {
	SiteID           string  `parquet:"site_id,snappy"`
	UptimeLastHour   float64 `parquet:"uptime_last_hour,snappy"`
	UptimeLastDay    float64 `parquet:"uptime_last_day,snappy"`
	UptimeLastWeek   float64 `parquet:"uptime_last_week,snappy"`
	DowntimeLastHour float64 `parquet:"downtime_last_hour,snappy"`
	DowntimeLastDay  float64 `parquet:"downtime_last_day,snappy"`
	DowntimeLastWeek float64 `parquet:"downtime_last_week,snappy"`
}

// WriteParquet writes res to out as a single Parquet file.
func WriteParquet(out io.Writer, res *uptime.Result) error {
	rows := make([]ParquetRow, 0, len(res.Rows))
	for _, m := range res.Rows {
		rows = append(rows, ParquetRow(m))
	}

	writer := parquet.NewGenericWriter[ParquetRow](out)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// SnapshotLoader supplies the dataset a report is computed from.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context) (*uptime.Snapshot, error)
}

// Generator produces report results from the current dataset.
type Generator struct {
	Store   SnapshotLoader
	Workers int
}

// Compute loads the snapshot and runs the aggregator over it.
func (g *Generator) Compute(ctx context.Context) (*uptime.Result, error) {
	snap, err := g.Store.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return uptime.Run(ctx, snap, uptime.Options{Workers: g.Workers})
}

// Generate computes the report and returns its CSV bytes.
func (g *Generator) Generate(ctx context.Context) ([]byte, error) {
	res, err := g.Compute(ctx)
	if err != nil {
		return nil, err
	}
	return Assemble(res)
}
