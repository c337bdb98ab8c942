package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"uptime-report-backend/internal/model"
	"uptime-report-backend/internal/schedule"
	"uptime-report-backend/internal/timeline"
	"uptime-report-backend/internal/uptime"
)

const batchSize = 500

// Store defines the interface for all database operations.
type Store interface {
	ReplaceDataset(ctx context.Context, ds *Dataset) error
	LoadSnapshot(ctx context.Context) (*uptime.Snapshot, error)

	CreateReport(ctx context.Context, id string) error
	MarkReportRunning(ctx context.Context, id string) error
	CompleteReport(ctx context.Context, id string, payload []byte) error
	FailReport(ctx context.Context, id string, reason string) error
	FailStaleReports(ctx context.Context, reason string) (int64, error)
	NextPendingReport(ctx context.Context) (string, error)
	GetReport(ctx context.Context, id string) (*model.Report, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// ReplaceDataset swaps the stored dataset for ds in a single transaction.
// Readers never observe a partially imported dataset.
func (s *gormStore) ReplaceDataset(ctx context.Context, ds *Dataset) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{&model.StatusSample{}, &model.BusinessHours{}, &model.Site{}} {
			if err := tx.Where("1 = 1").Delete(m).Error; err != nil {
				return fmt.Errorf("failed to clear %T: %w", m, err)
			}
		}

		if len(ds.Sites) > 0 {
			log.Printf("Batch upserting %d sites...", len(ds.Sites))
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"timezone"}),
			}).CreateInBatches(ds.Sites, batchSize).Error; err != nil {
				return fmt.Errorf("batch upsert sites failed: %w", err)
			}
		}
		if len(ds.Samples) > 0 {
			log.Printf("Batch inserting %d status samples...", len(ds.Samples))
			if err := tx.CreateInBatches(ds.Samples, batchSize).Error; err != nil {
				return fmt.Errorf("batch insert status samples failed: %w", err)
			}
		}
		if len(ds.Hours) > 0 {
			log.Printf("Batch inserting %d business hours...", len(ds.Hours))
			if err := tx.CreateInBatches(ds.Hours, batchSize).Error; err != nil {
				return fmt.Errorf("batch insert business hours failed: %w", err)
			}
		}
		return nil
	})
}

// LoadSnapshot reads the whole dataset into the engine's input form. Rules
// with unreadable times fall back to the day bound and are logged.
func (s *gormStore) LoadSnapshot(ctx context.Context) (*uptime.Snapshot, error) {
	db := s.db.WithContext(ctx)

	var sites []model.Site
	if err := db.Order("id").Find(&sites).Error; err != nil {
		return nil, fmt.Errorf("failed to load sites: %w", err)
	}
	var samples []model.StatusSample
	if err := db.Order("id").Find(&samples).Error; err != nil {
		return nil, fmt.Errorf("failed to load status samples: %w", err)
	}
	var hours []model.BusinessHours
	if err := db.Order("id").Find(&hours).Error; err != nil {
		return nil, fmt.Errorf("failed to load business hours: %w", err)
	}

	snap := &uptime.Snapshot{
		Sites:   make([]uptime.Site, 0, len(sites)),
		Samples: make(map[string][]timeline.Sample),
		Rules:   make(map[string][]schedule.Rule),
	}
	for _, site := range sites {
		snap.Sites = append(snap.Sites, uptime.Site{ID: site.ID, Timezone: site.Timezone})
	}
	for _, row := range samples {
		status, err := timeline.ParseStatus(row.Status)
		if err != nil {
			log.Printf("Warning: skipping sample %d for site %s: %v", row.ID, row.SiteID, err)
			continue
		}
		snap.Samples[row.SiteID] = append(snap.Samples[row.SiteID], timeline.Sample{
			Instant: row.ObservedAt.UTC(),
			Status:  status,
		})
	}
	for _, row := range hours {
		rule, err := schedule.RuleFromStrings(row.SiteID, row.DayOfWeek, row.StartTimeLocal, row.EndTimeLocal)
		if err != nil {
			log.Printf("Warning: %v", err)
		}
		snap.Rules[row.SiteID] = append(snap.Rules[row.SiteID], rule)
	}
	return snap, nil
}

// CreateReport stores a new pending report.
func (s *gormStore) CreateReport(ctx context.Context, id string) error {
	r := model.Report{ID: id, Status: model.ReportPending}
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		return fmt.Errorf("failed to create report %s: %w", id, err)
	}
	return nil
}

// MarkReportRunning moves a pending report to running.
func (s *gormStore) MarkReportRunning(ctx context.Context, id string) error {
	return s.transition(ctx, id, []string{model.ReportPending}, map[string]any{
		"status": model.ReportRunning,
	})
}

// CompleteReport stores the payload and the ready status in one update.
func (s *gormStore) CompleteReport(ctx context.Context, id string, payload []byte) error {
	return s.transition(ctx, id, []string{model.ReportPending, model.ReportRunning}, map[string]any{
		"status":  model.ReportReady,
		"payload": payload,
	})
}

// FailReport marks an unfinished report as failed with a diagnostic.
func (s *gormStore) FailReport(ctx context.Context, id string, reason string) error {
	return s.transition(ctx, id, []string{model.ReportPending, model.ReportRunning}, map[string]any{
		"status": model.ReportFailed,
		"error":  reason,
	})
}

// FailStaleReports fails every running report. It runs at startup, when no
// worker can still own them. Pending reports are left for the workers.
func (s *gormStore) FailStaleReports(ctx context.Context, reason string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.Report{}).
		Where("status = ?", model.ReportRunning).
		Updates(map[string]any{"status": model.ReportFailed, "error": reason})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to fail stale reports: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// NextPendingReport returns the id of the oldest pending report, or "" when
// nothing is waiting.
func (s *gormStore) NextPendingReport(ctx context.Context) (string, error) {
	var r model.Report
	err := s.db.WithContext(ctx).Select("id").
		Where("status = ?", model.ReportPending).
		Order("created_at").Order("id").
		Take(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find pending report: %w", err)
	}
	return r.ID, nil
}

// GetReport returns the report with the given id.
func (s *gormStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	var r model.Report
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report %s: %w", id, err)
	}
	return &r, nil
}

// transition applies values only while the report is in one of from.
func (s *gormStore) transition(ctx context.Context, id string, from []string, values map[string]any) error {
	res := s.db.WithContext(ctx).Model(&model.Report{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	if res.Error != nil {
		return fmt.Errorf("failed to update report %s: %w", id, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	r, err := s.GetReport(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("report %s is %s: %w", id, r.Status, ErrInvalidTransition)
}
