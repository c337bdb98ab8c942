// Package ingest loads the site, status and business-hours CSV files into the
// store, once on demand or periodically.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"uptime-report-backend/config"
	"uptime-report-backend/internal/model"
	"uptime-report-backend/internal/parse"
	"uptime-report-backend/internal/schedule"
	"uptime-report-backend/internal/store"
	"uptime-report-backend/internal/timeline"
	"uptime-report-backend/internal/tz"
)

// Stats counts what one import accepted and skipped.
type Stats struct {
	Sites          int
	Samples        int
	Hours          int
	SkippedSamples int
	SkippedHours   int
}

// Service imports the CSV dataset into a Store.
type Service struct {
	cfg   *config.IngestConfig
	store store.Store
	// Serializes imports started by the loop and by API calls.
	mu sync.Mutex
}

// NewService creates a new ingest service.
func NewService(cfg *config.IngestConfig, st store.Store) *Service {
	return &Service{cfg: cfg, store: st}
}

// Run imports the dataset immediately and then on every interval until ctx is
// cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Println("Periodic import is disabled. Not starting.")
		return
	}
	log.Println("Starting ingest service...")

	if _, err := s.ImportOnce(ctx); err != nil {
		log.Printf("Error importing dataset: %v", err)
	}

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Ingest service shutting down.")
			return
		case <-timer.C:
			if _, err := s.ImportOnce(ctx); err != nil {
				log.Printf("Error importing dataset: %v", err)
			}
			timer.Reset(s.cfg.Interval)
		}
	}
}

// ImportOnce reads the three CSV files and replaces the stored dataset. A
// missing file or column fails the import and leaves the store untouched.
func (s *Service) ImportOnce(ctx context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Printf("Executing import from %s...", s.cfg.Dir)
	ds, stats, err := ReadDataset(s.cfg)
	if err != nil {
		return nil, err
	}
	if err := s.store.ReplaceDataset(ctx, ds); err != nil {
		return nil, fmt.Errorf("failed to store dataset: %w", err)
	}
	log.Printf("Import finished: %d sites, %d samples (%d skipped), %d business hours (%d skipped).",
		stats.Sites, stats.Samples, stats.SkippedSamples, stats.Hours, stats.SkippedHours)
	return stats, nil
}

// ReadDataset parses the configured CSV files.
func ReadDataset(cfg *config.IngestConfig) (*store.Dataset, *Stats, error) {
	ds := &store.Dataset{}
	stats := &Stats{}

	sites, err := readSites(filepath.Join(cfg.Dir, cfg.SitesFile))
	if err != nil {
		return nil, nil, err
	}
	ds.Sites = sites
	stats.Sites = len(sites)

	ds.Samples, stats.SkippedSamples, err = readSamples(filepath.Join(cfg.Dir, cfg.StatusFile))
	if err != nil {
		return nil, nil, err
	}
	stats.Samples = len(ds.Samples)

	ds.Hours, stats.SkippedHours, err = readHours(filepath.Join(cfg.Dir, cfg.HoursFile))
	if err != nil {
		return nil, nil, err
	}
	stats.Hours = len(ds.Hours)

	return ds, stats, nil
}

// readSites keeps the first position of each site id and its last timezone.
// A blank timezone becomes the default zone.
func readSites(path string) ([]model.Site, error) {
	t, err := openTable(path, "store_id")
	if err != nil {
		return nil, err
	}
	defer t.Close()

	idCol, tzCol := t.column("store_id"), t.column("timezone_str", "timezone")
	index := make(map[string]int)
	var sites []model.Site
	for {
		record, err := t.next()
		if err == io.EOF {
			break
		}
		if isRowError(err) {
			log.Printf("Warning: %s line %d: %v", path, t.line, err)
			continue
		}
		if err != nil {
			return nil, err
		}

		id := field(record, idCol)
		if id == "" {
			log.Printf("Warning: %s line %d: empty store_id", path, t.line)
			continue
		}
		zone := field(record, tzCol)
		if zone == "" {
			zone = tz.DefaultZone
		}
		if i, ok := index[id]; ok {
			sites[i].Timezone = zone
			continue
		}
		index[id] = len(sites)
		sites = append(sites, model.Site{ID: id, Timezone: zone})
	}
	return sites, nil
}

func readSamples(path string) ([]model.StatusSample, int, error) {
	t, err := openTable(path, "store_id", "status", "timestamp_utc")
	if err != nil {
		return nil, 0, err
	}
	defer t.Close()

	idCol, statusCol, tsCol := t.column("store_id"), t.column("status"), t.column("timestamp_utc")
	var samples []model.StatusSample
	skipped := 0
	for {
		record, err := t.next()
		if err == io.EOF {
			break
		}
		if isRowError(err) {
			log.Printf("Warning: %s line %d: %v", path, t.line, err)
			skipped++
			continue
		}
		if err != nil {
			return nil, 0, err
		}

		id := field(record, idCol)
		status, statusErr := timeline.ParseStatus(field(record, statusCol))
		instant, tsErr := parse.Instant(field(record, tsCol))
		switch {
		case id == "":
			log.Printf("Warning: %s line %d: empty store_id", path, t.line)
		case statusErr != nil:
			log.Printf("Warning: %s line %d: %v", path, t.line, statusErr)
		case tsErr != nil:
			log.Printf("Warning: %s line %d: %v", path, t.line, tsErr)
		default:
			samples = append(samples, model.StatusSample{SiteID: id, ObservedAt: instant, Status: string(status)})
			continue
		}
		skipped++
	}
	return samples, skipped, nil
}

// readHours accepts the day column as "day" or "dayOfWeek". Blank or
// unreadable times are stored as the day bound they default to.
func readHours(path string) ([]model.BusinessHours, int, error) {
	t, err := openTable(path, "store_id")
	if err != nil {
		return nil, 0, err
	}
	defer t.Close()

	dayCol := t.column("day", "dayOfWeek", "day_of_week")
	if dayCol < 0 {
		return nil, 0, fmt.Errorf("%s: missing column %q", path, "day")
	}
	idCol := t.column("store_id")
	startCol, endCol := t.column("start_time_local"), t.column("end_time_local")

	var hours []model.BusinessHours
	skipped := 0
	for {
		record, err := t.next()
		if err == io.EOF {
			break
		}
		if isRowError(err) {
			log.Printf("Warning: %s line %d: %v", path, t.line, err)
			skipped++
			continue
		}
		if err != nil {
			return nil, 0, err
		}

		id := field(record, idCol)
		day, dayErr := strconv.Atoi(field(record, dayCol))
		if id == "" || dayErr != nil || day < schedule.Monday || day > schedule.Sunday {
			log.Printf("Warning: %s line %d: invalid store_id or day %q", path, t.line, field(record, dayCol))
			skipped++
			continue
		}

		rule, err := schedule.RuleFromStrings(id, day, field(record, startCol), field(record, endCol))
		if err != nil {
			log.Printf("Warning: %s line %d: %v", path, t.line, err)
		}
		hours = append(hours, model.BusinessHours{
			SiteID:         id,
			DayOfWeek:      day,
			StartTimeLocal: rule.Start.String(),
			EndTimeLocal:   rule.End.String(),
		})
	}
	return hours, skipped, nil
}
