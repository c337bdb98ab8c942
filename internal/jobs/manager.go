// Package jobs runs report generation in the background and tracks each
// report through pending, running, ready and failed.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"uptime-report-backend/internal/model"
	"uptime-report-backend/internal/store"
)

// ErrNotFound is returned by Poll for an unknown report id.
var ErrNotFound = errors.New("report not found")

// InterruptedReason is recorded on reports a previous process left running.
const InterruptedReason = "interrupted"

// claimRetryDelay is how long a worker waits after the store failed to hand
// out a pending report.
var claimRetryDelay = time.Second

// ReportStore is the persistence the manager needs. The pending rows are the
// queue: workers claim the oldest one with MarkReportRunning.
type ReportStore interface {
	CreateReport(ctx context.Context, id string) error
	MarkReportRunning(ctx context.Context, id string) error
	CompleteReport(ctx context.Context, id string, payload []byte) error
	FailReport(ctx context.Context, id string, reason string) error
	FailStaleReports(ctx context.Context, reason string) (int64, error)
	NextPendingReport(ctx context.Context) (string, error)
	GetReport(ctx context.Context, id string) (*model.Report, error)
}

// Generator produces the report payload.
type Generator interface {
	Generate(ctx context.Context) ([]byte, error)
}

// Status is a snapshot of one report. Payload is set only when ready and
// Error only when failed.
type Status struct {
	ID      string
	State   string
	Payload []byte
	Error   string
}

// Manager manages a pool of workers for generating reports.
type Manager struct {
	size  int
	wake  chan struct{}
	store ReportStore
	gen   Generator
}

// NewManager creates a new manager with the given number of workers.
func NewManager(workers int, st ReportStore, gen Generator) *Manager {
	if workers <= 0 {
		workers = 1
	}
	return &Manager{
		size:  workers,
		wake:  make(chan struct{}, 1),
		store: st,
		gen:   gen,
	}
}

// Start fails reports a previous process left running and launches the
// worker goroutines. Pending reports, including ones submitted before Start,
// are picked up by the workers. Workers stop when ctx is cancelled.
func (m *Manager) Start(ctx context.Context) error {
	n, err := m.store.FailStaleReports(ctx, InterruptedReason)
	if err != nil {
		return fmt.Errorf("failed to recover stale reports: %w", err)
	}
	if n > 0 {
		log.Printf("Marked %d interrupted reports as failed", n)
	}

	for i := 0; i < m.size; i++ {
		go m.worker(ctx, i)
	}
	return nil
}

// Submit creates a pending report and wakes a worker. It never waits for a
// worker to become free.
func (m *Manager) Submit(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := m.store.CreateReport(ctx, id); err != nil {
		return "", err
	}
	m.notify()
	return id, nil
}

// notify leaves at most one wake-up token. A worker drains every pending
// report before waiting again, so one token is enough.
func (m *Manager) notify() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Poll returns the current state of a report.
func (m *Manager) Poll(ctx context.Context, id string) (*Status, error) {
	r, err := m.store.GetReport(ctx, id)
	if errors.Is(err, store.ErrReportNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	st := &Status{ID: r.ID, State: r.Status}
	switch r.Status {
	case model.ReportReady:
		st.Payload = r.Payload
	case model.ReportFailed:
		st.Error = r.Error
	}
	return st, nil
}

func (m *Manager) worker(ctx context.Context, id int) {
	log.Printf("Report worker %d started", id)
	for {
		// A nil channel never fires, so only a failed drain retries on its own.
		var retry <-chan time.Time
		if err := m.drain(ctx, id); err != nil {
			log.Printf("Report worker %d: %v", id, err)
			retry = time.After(claimRetryDelay)
		}
		select {
		case <-m.wake:
		case <-retry:
		case <-ctx.Done():
			log.Printf("Report worker %d shutting down", id)
			return
		}
	}
}

// drain processes pending reports until none is left or a claim fails.
func (m *Manager) drain(ctx context.Context, worker int) error {
	for ctx.Err() == nil {
		reportID, err := m.claim(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if reportID == "" {
			return nil
		}
		// Another report may be waiting behind this one.
		m.notify()
		log.Printf("Report worker %d processing report %s", worker, reportID)
		m.process(ctx, reportID)
	}
	return nil
}

// claim moves the oldest pending report to running and returns its id, or
// "" when nothing is pending.
func (m *Manager) claim(ctx context.Context) (string, error) {
	for {
		reportID, err := m.store.NextPendingReport(ctx)
		if err != nil || reportID == "" {
			return "", err
		}
		err = m.store.MarkReportRunning(ctx, reportID)
		if err == nil {
			return reportID, nil
		}
		// Lost the race to another worker.
		if !errors.Is(err, store.ErrInvalidTransition) {
			return "", fmt.Errorf("failed to claim report %s: %w", reportID, err)
		}
	}
}

func (m *Manager) process(ctx context.Context, reportID string) {
	payload, genErr := m.gen.Generate(ctx)

	// The outcome is recorded even when shutdown interrupted generation.
	final := context.WithoutCancel(ctx)
	if genErr != nil {
		log.Printf("Report %s failed: %v", reportID, genErr)
		if err := m.store.FailReport(final, reportID, genErr.Error()); err != nil {
			log.Printf("Error failing report %s: %v", reportID, err)
		}
		return
	}
	if err := m.store.CompleteReport(final, reportID, payload); err != nil {
		log.Printf("Error completing report %s: %v", reportID, err)
		return
	}
	log.Printf("Report %s ready (%d bytes)", reportID, len(payload))
}
