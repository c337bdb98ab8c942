package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uptime-report-backend/internal/model"
	"uptime-report-backend/internal/store"
)

// memStore is an in-memory ReportStore with the same transition rules as the
// database store.
type memStore struct {
	mu      sync.Mutex
	reports map[string]*model.Report
	order   []string
	// nextErrs makes that many NextPendingReport calls fail.
	nextErrs int
}

func newMemStore() *memStore {
	return &memStore{reports: make(map[string]*model.Report)}
}

func (s *memStore) CreateReport(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[id] = &model.Report{ID: id, Status: model.ReportPending}
	s.order = append(s.order, id)
	return nil
}

func (s *memStore) move(id string, from []string, apply func(r *model.Report)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return store.ErrReportNotFound
	}
	for _, f := range from {
		if r.Status == f {
			apply(r)
			return nil
		}
	}
	return fmt.Errorf("report %s is %s: %w", id, r.Status, store.ErrInvalidTransition)
}

func (s *memStore) MarkReportRunning(_ context.Context, id string) error {
	return s.move(id, []string{model.ReportPending}, func(r *model.Report) { r.Status = model.ReportRunning })
}

func (s *memStore) CompleteReport(_ context.Context, id string, payload []byte) error {
	return s.move(id, []string{model.ReportPending, model.ReportRunning}, func(r *model.Report) {
		r.Status = model.ReportReady
		r.Payload = payload
	})
}

func (s *memStore) FailReport(_ context.Context, id string, reason string) error {
	return s.move(id, []string{model.ReportPending, model.ReportRunning}, func(r *model.Report) {
		r.Status = model.ReportFailed
		r.Error = reason
	})
}

func (s *memStore) FailStaleReports(_ context.Context, reason string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.reports {
		if r.Status == model.ReportRunning {
			r.Status = model.ReportFailed
			r.Error = reason
			n++
		}
	}
	return n, nil
}

func (s *memStore) NextPendingReport(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nextErrs > 0 {
		s.nextErrs--
		return "", errors.New("database is locked")
	}
	for _, id := range s.order {
		if s.reports[id].Status == model.ReportPending {
			return id, nil
		}
	}
	return "", nil
}

func (s *memStore) count(state string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.reports {
		if r.Status == state {
			n++
		}
	}
	return n
}

// running returns the running report ids in creation order.
func (s *memStore) running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, id := range s.order {
		if s.reports[id].Status == model.ReportRunning {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *memStore) GetReport(_ context.Context, id string) (*model.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, store.ErrReportNotFound
	}
	cp := *r
	return &cp, nil
}

type genFunc func(ctx context.Context) ([]byte, error)

func (f genFunc) Generate(ctx context.Context) ([]byte, error) { return f(ctx) }

func waitForState(t *testing.T, m *Manager, id, state string) *Status {
	t.Helper()
	var st *Status
	require.Eventually(t, func() bool {
		var err error
		st, err = m.Poll(context.Background(), id)
		return err == nil && st.State == state
	}, 2*time.Second, 5*time.Millisecond)
	return st
}

func TestManager_ReportBecomesReady(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gen := genFunc(func(context.Context) ([]byte, error) { return []byte("site_id\n"), nil })
	m := NewManager(2, newMemStore(), gen)
	require.NoError(t, m.Start(ctx))

	id, err := m.Submit(ctx)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)

	st := waitForState(t, m, id, model.ReportReady)
	assert.Equal(t, []byte("site_id\n"), st.Payload)
	assert.Empty(t, st.Error)
}

func TestManager_ReportFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gen := genFunc(func(context.Context) ([]byte, error) { return nil, errors.New("no status samples in dataset") })
	m := NewManager(1, newMemStore(), gen)
	require.NoError(t, m.Start(ctx))

	id, err := m.Submit(ctx)
	require.NoError(t, err)

	st := waitForState(t, m, id, model.ReportFailed)
	assert.Equal(t, "no status samples in dataset", st.Error)
	assert.Nil(t, st.Payload)
}

func TestManager_PendingUntilPicked(t *testing.T) {
	release := make(chan struct{})
	gen := genFunc(func(context.Context) ([]byte, error) {
		<-release
		return []byte("done"), nil
	})
	m := NewManager(1, newMemStore(), gen)

	id, err := m.Submit(context.Background())
	require.NoError(t, err)

	st, err := m.Poll(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.ReportPending, st.State)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))

	waitForState(t, m, id, model.ReportRunning)
	close(release)
	st = waitForState(t, m, id, model.ReportReady)
	assert.Equal(t, []byte("done"), st.Payload)
}

func TestManager_PollUnknown(t *testing.T) {
	m := NewManager(1, newMemStore(), nil)
	_, err := m.Poll(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_StartRecoversPreviousRun(t *testing.T) {
	st := newMemStore()
	ctx := context.Background()
	require.NoError(t, st.CreateReport(ctx, "left-running"))
	require.NoError(t, st.MarkReportRunning(ctx, "left-running"))
	require.NoError(t, st.CreateReport(ctx, "left-pending"))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	m := NewManager(1, st, genFunc(func(context.Context) ([]byte, error) { return []byte("ok"), nil }))
	require.NoError(t, m.Start(runCtx))

	status, err := m.Poll(ctx, "left-running")
	require.NoError(t, err)
	assert.Equal(t, model.ReportFailed, status.State)
	assert.Equal(t, InterruptedReason, status.Error)

	// A report that never started is still generated.
	status = waitForState(t, m, "left-pending", model.ReportReady)
	assert.Equal(t, []byte("ok"), status.Payload)
}

func TestManager_SubmitNeverBlocks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	release := make(chan struct{})
	gen := genFunc(func(context.Context) ([]byte, error) {
		<-release
		return []byte("ok"), nil
	})
	st := newMemStore()
	m := NewManager(1, st, gen)
	require.NoError(t, m.Start(ctx))

	const total = 40
	ids := make(chan string, total)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < total; i++ {
			id, err := m.Submit(ctx)
			if !assert.NoError(t, err) {
				return
			}
			ids <- id
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked while the only worker was busy")
	}
	close(ids)

	require.Eventually(t, func() bool { return st.count(model.ReportRunning) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, total-1, st.count(model.ReportPending))

	close(release)
	for id := range ids {
		waitForState(t, m, id, model.ReportReady)
	}
}

func TestManager_ReportsRunInSubmissionOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var ran []string
	st := newMemStore()
	gen := genFunc(func(context.Context) ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()
		ran = append(ran, st.running()...)
		return nil, nil
	})
	m := NewManager(1, st, gen)

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := m.Submit(ctx)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, m.Start(ctx))

	for _, id := range ids {
		waitForState(t, m, id, model.ReportReady)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, ids, ran)
}

func TestManager_RetriesAfterClaimError(t *testing.T) {
	claimRetryDelay = 10 * time.Millisecond
	t.Cleanup(func() { claimRetryDelay = time.Second })

	st := newMemStore()
	m := NewManager(1, st, genFunc(func(context.Context) ([]byte, error) { return []byte("ok"), nil }))
	id, err := m.Submit(context.Background())
	require.NoError(t, err)
	st.nextErrs = 1

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))

	waitForState(t, m, id, model.ReportReady)
}

func TestManager_ConcurrentSubmits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gen := genFunc(func(context.Context) ([]byte, error) { return []byte("ok"), nil })
	m := NewManager(4, newMemStore(), gen)
	require.NoError(t, m.Start(ctx))

	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := m.Submit(ctx)
			assert.NoError(t, err)
			ids[i] = id
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "ids are unique")
		seen[id] = true
		waitForState(t, m, id, model.ReportReady)
	}
}
