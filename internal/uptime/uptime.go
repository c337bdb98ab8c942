// Package uptime estimates per-site uptime and downtime inside business hours
// over trailing windows ending at the freshest observation of the dataset.
package uptime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"uptime-report-backend/internal/schedule"
	"uptime-report-backend/internal/timeline"
	"uptime-report-backend/internal/tz"
)

// Trailing window lengths.
const (
	LastHour = time.Hour
	LastDay  = 24 * time.Hour
	LastWeek = 7 * 24 * time.Hour
)

// NoDataError is returned when the dataset holds no samples at all, leaving
// the reference instant undefined.
type NoDataError struct{}

func (NoDataError) Error() string {
	return "no status samples in dataset"
}

// IsNoData reports whether err is a NoDataError.
func IsNoData(err error) bool {
	var nd *NoDataError
	return errors.As(err, &nd)
}

// Site is a monitored site. Timezone is an IANA zone name.
type Site struct {
	ID       string
	Timezone string
}

// Snapshot is the immutable input of one report run. Samples are keyed by
// site id and kept in ingestion order; they may reference unknown sites.
type Snapshot struct {
	Sites   []Site
	Samples map[string][]timeline.Sample
	Rules   map[string][]schedule.Rule
}

// Reference returns the latest sample instant across every site.
func (s *Snapshot) Reference() (time.Time, bool) {
	var ref time.Time
	found := false
	for _, samples := range s.Samples {
		for _, sample := range samples {
			if !found || sample.Instant.After(ref) {
				ref = sample.Instant
				found = true
			}
		}
	}
	return ref, found
}

// Metrics is one report row. Hour values are minutes, day and week values
// are hours.
type Metrics struct {
	SiteID           string
	UptimeLastHour   float64
	UptimeLastDay    float64
	UptimeLastWeek   float64
	DowntimeLastHour float64
	DowntimeLastDay  float64
	DowntimeLastWeek float64
}

// Result holds one row per known site, ordered by site id.
type Result struct {
	Reference time.Time
	Rows      []Metrics
}

// Map returns the rows keyed by site id.
func (r *Result) Map() map[string]Metrics {
	m := make(map[string]Metrics, len(r.Rows))
	for _, row := range r.Rows {
		m[row.SiteID] = row
	}
	return m
}

// Options tunes a run.
type Options struct {
	// Workers bounds the number of sites computed concurrently. Zero means
	// GOMAXPROCS.
	Workers int
}

// Run computes the report rows for every site in snap.
func Run(ctx context.Context, snap *Snapshot, opts Options) (*Result, error) {
	ref, ok := snap.Reference()
	if !ok {
		return nil, &NoDataError{}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	rows := make([]Metrics, len(snap.Sites))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, site := range snap.Sites {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[i] = computeSite(site, snap.Samples[site.ID], snap.Rules[site.ID], ref)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("uptime run aborted: %w", err)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].SiteID < rows[j].SiteID })
	return &Result{Reference: ref, Rows: rows}, nil
}

// computeSite never fails: a bad zone falls back to the default, and a panic
// leaves the site with an all-zero row.
func computeSite(site Site, samples []timeline.Sample, rules []schedule.Rule, ref time.Time) (m Metrics) {
	m.SiteID = site.ID
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Error computing uptime for site %s: %v", site.ID, r)
			m = Metrics{SiteID: site.ID}
		}
	}()

	loc, err := tz.Load(site.Timezone)
	if err != nil {
		log.Printf("Warning: site %s: %v", site.ID, err)
	}

	tl := timeline.New(samples)
	// The week span covers the hour and day spans as well.
	windows := schedule.Resolve(rules, loc, ref.Add(-LastWeek), ref)

	upHour, downHour := Estimate(tl, windows, ref.Add(-LastHour), ref)
	upDay, downDay := Estimate(tl, windows, ref.Add(-LastDay), ref)
	upWeek, downWeek := Estimate(tl, windows, ref.Add(-LastWeek), ref)

	m.UptimeLastHour = upHour.Minutes()
	m.UptimeLastDay = upDay.Hours()
	m.UptimeLastWeek = upWeek.Hours()
	m.DowntimeLastHour = downHour.Minutes()
	m.DowntimeLastDay = downDay.Hours()
	m.DowntimeLastWeek = downWeek.Hours()
	return m
}
