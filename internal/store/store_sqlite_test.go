package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"uptime-report-backend/internal/model"
	"uptime-report-backend/internal/parse"
	"uptime-report-backend/internal/timeline"
)

func newSQLiteStore(t *testing.T) (Store, *gorm.DB) {
	t.Helper()
	testDB, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "store.db")), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, testDB.AutoMigrate(&model.Site{}, &model.StatusSample{}, &model.BusinessHours{}, &model.Report{}))
	return NewGormStore(testDB), testDB
}

func ts(hour, minute int) time.Time {
	return time.Date(2023, 1, 23, hour, minute, 0, 0, time.UTC)
}

func TestReplaceAndLoadSnapshot(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceDataset(ctx, &Dataset{
		Sites: []model.Site{{ID: "old", Timezone: "UTC"}},
		Samples: []model.StatusSample{
			{SiteID: "old", ObservedAt: ts(1, 0), Status: "active"},
		},
	}))

	require.NoError(t, s.ReplaceDataset(ctx, &Dataset{
		Sites: []model.Site{
			{ID: "b", Timezone: "America/New_York"},
			{ID: "a", Timezone: ""},
		},
		Samples: []model.StatusSample{
			{SiteID: "a", ObservedAt: ts(10, 0), Status: "active"},
			{SiteID: "a", ObservedAt: ts(9, 0), Status: "inactive"},
			{SiteID: "a", ObservedAt: ts(9, 0), Status: "active"},
			{SiteID: "a", ObservedAt: ts(11, 0), Status: "bogus"},
			{SiteID: "ghost", ObservedAt: ts(12, 0), Status: "inactive"},
		},
		Hours: []model.BusinessHours{
			{SiteID: "b", DayOfWeek: 0, StartTimeLocal: "09:00:00", EndTimeLocal: "17:00:00"},
			{SiteID: "b", DayOfWeek: 1, StartTimeLocal: "25:00:00", EndTimeLocal: "17:00:00"},
		},
	}))

	snap, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)

	require.Len(t, snap.Sites, 2)
	assert.Equal(t, "a", snap.Sites[0].ID)
	assert.Equal(t, "", snap.Sites[0].Timezone)
	assert.Equal(t, "America/New_York", snap.Sites[1].Timezone)

	// Ingestion order is kept and the unreadable status is dropped.
	samples := snap.Samples["a"]
	require.Len(t, samples, 3)
	assert.True(t, samples[0].Instant.Equal(ts(10, 0)))
	assert.Equal(t, timeline.StatusInactive, samples[1].Status)
	assert.Equal(t, timeline.StatusActive, samples[2].Status)
	assert.Equal(t, time.UTC, samples[0].Instant.Location())

	// Samples for unknown sites still count toward the reference instant.
	ref, ok := snap.Reference()
	require.True(t, ok)
	assert.True(t, ref.Equal(ts(12, 0)))
	assert.NotContains(t, snap.Samples, "old")

	rules := snap.Rules["b"]
	require.Len(t, rules, 2)
	assert.Equal(t, parse.Clock{Hour: 9}, rules[0].Start)
	assert.Equal(t, parse.StartOfDay, rules[1].Start, "unreadable start falls back to midnight")
	assert.Equal(t, parse.Clock{Hour: 17}, rules[1].End)
}

func TestReportLifecycle(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()

	_, err := s.GetReport(ctx, "missing")
	assert.ErrorIs(t, err, ErrReportNotFound)

	require.NoError(t, s.CreateReport(ctx, "r1"))
	r, err := s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.ReportPending, r.Status)
	assert.Empty(t, r.Payload)

	require.NoError(t, s.MarkReportRunning(ctx, "r1"))
	assert.ErrorIs(t, s.MarkReportRunning(ctx, "r1"), ErrInvalidTransition)

	require.NoError(t, s.CompleteReport(ctx, "r1", []byte("site_id\n")))
	r, err = s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.ReportReady, r.Status)
	assert.Equal(t, []byte("site_id\n"), r.Payload)

	// A ready payload is final.
	assert.ErrorIs(t, s.CompleteReport(ctx, "r1", []byte("other")), ErrInvalidTransition)
	assert.ErrorIs(t, s.FailReport(ctx, "r1", "late"), ErrInvalidTransition)
	r, err = s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []byte("site_id\n"), r.Payload)

	assert.ErrorIs(t, s.MarkReportRunning(ctx, "missing"), ErrReportNotFound)
}

func TestFailStaleReports(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateReport(ctx, "pending"))
	require.NoError(t, s.CreateReport(ctx, "running"))
	require.NoError(t, s.MarkReportRunning(ctx, "running"))
	require.NoError(t, s.CreateReport(ctx, "done"))
	require.NoError(t, s.CompleteReport(ctx, "done", []byte("x")))

	n, err := s.FailStaleReports(ctx, "interrupted")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	r, err := s.GetReport(ctx, "running")
	require.NoError(t, err)
	assert.Equal(t, model.ReportFailed, r.Status)
	assert.Equal(t, "interrupted", r.Error)

	// Pending reports were never started and stay claimable.
	r, err = s.GetReport(ctx, "pending")
	require.NoError(t, err)
	assert.Equal(t, model.ReportPending, r.Status)

	r, err = s.GetReport(ctx, "done")
	require.NoError(t, err)
	assert.Equal(t, model.ReportReady, r.Status)
}

func TestNextPendingReport(t *testing.T) {
	s, db := newSQLiteStore(t)
	ctx := context.Background()

	id, err := s.NextPendingReport(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)

	created := map[string]time.Time{
		"second": ts(12, 1),
		"first":  ts(12, 0),
		"third":  ts(12, 2),
	}
	for _, rid := range []string{"second", "first", "third"} {
		require.NoError(t, s.CreateReport(ctx, rid))
		require.NoError(t, db.Model(&model.Report{}).Where("id = ?", rid).
			Update("created_at", created[rid]).Error)
	}

	id, err = s.NextPendingReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", id)

	require.NoError(t, s.MarkReportRunning(ctx, "first"))
	id, err = s.NextPendingReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", id)
}
