package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"routeplan/internal/model"
	"routeplan/internal/store"
)

type fakeRunner struct {
	block  chan struct{}
	result *model.OptimizationResult
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, job model.Job, cfg model.Configuration, req model.SubmitRequest, sink *Sink) (*model.OptimizationResult, error) {
	sink.Progress(50, "halfway")
	sink.Snapshot(&model.OptimizationResult{Routes: []model.Route{{VehicleID: "partial"}}})
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.result, f.err
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingNotifier) Notify(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingNotifier) byType(t string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func seed(t *testing.T) (store.Store, model.Configuration) {
	t.Helper()
	st := store.NewMemory()
	cfg, err := st.CreateConfiguration(context.Background(), model.Configuration{
		TenantID: "t1",
		Depot:    model.GeoPoint{Lat: 40.4168, Lng: -3.7038},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.CreateOrder(context.Background(), model.Order{TenantID: "t1", TrackingID: "T1", Location: cfg.Depot}); err != nil {
		t.Fatal(err)
	}
	return st, cfg
}

func waitForStatus(t *testing.T, st store.Store, tenant, id, want string) model.Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := st.GetJob(context.Background(), tenant, id)
		if err != nil {
			t.Fatal(err)
		}
		if job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := st.GetJob(context.Background(), tenant, id)
	t.Fatalf("job never reached %s, stuck at %s", want, job.Status)
	return model.Job{}
}

func TestSubmitRunsToCompletion(t *testing.T) {
	st, cfg := seed(t)
	notes := &recordingNotifier{}
	runner := &fakeRunner{result: &model.OptimizationResult{Routes: []model.Route{{VehicleID: "v"}}}}
	m := NewManager(st, runner, 2, notes)

	job, cached, err := m.Submit(context.Background(), model.SubmitRequest{TenantID: "t1", ConfigurationID: cfg.ID})
	if err != nil {
		t.Fatal(err)
	}
	if cached {
		t.Fatal("first submission should not be cached")
	}
	done := waitForStatus(t, st, "t1", job.ID, model.JobCompleted)
	if done.Progress != 100 {
		t.Fatalf("progress = %d", done.Progress)
	}
	if done.Result == nil || len(done.Result.Routes) != 1 {
		t.Fatalf("result = %+v", done.Result)
	}
	if done.Result.Partial {
		t.Fatal("completed result should not be partial")
	}
	if len(notes.byType(EventCompleted)) != 1 {
		t.Fatal("missing completed event")
	}
}

func TestSubmitReusesFingerprint(t *testing.T) {
	st, cfg := seed(t)
	m := NewManager(st, &fakeRunner{result: &model.OptimizationResult{}}, 2)

	first, _, err := m.Submit(context.Background(), model.SubmitRequest{TenantID: "t1", ConfigurationID: cfg.ID})
	if err != nil {
		t.Fatal(err)
	}
	waitForStatus(t, st, "t1", first.ID, model.JobCompleted)

	second, cached, err := m.Submit(context.Background(), model.SubmitRequest{TenantID: "t1", ConfigurationID: cfg.ID})
	if err != nil {
		t.Fatal(err)
	}
	if !cached || second.ID != first.ID {
		t.Fatalf("expected cache hit on %s, got %s cached=%v", first.ID, second.ID, cached)
	}
}

func TestSubmitUnknownConfiguration(t *testing.T) {
	st, _ := seed(t)
	m := NewManager(st, &fakeRunner{}, 2)
	_, _, err := m.Submit(context.Background(), model.SubmitRequest{TenantID: "t1", ConfigurationID: "nope"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestConcurrencyCeilingFailsFast(t *testing.T) {
	st, cfg := seed(t)
	cfg2, err := st.CreateConfiguration(context.Background(), model.Configuration{TenantID: "t1", Depot: cfg.Depot})
	if err != nil {
		t.Fatal(err)
	}
	block := make(chan struct{})
	defer close(block)
	m := NewManager(st, &fakeRunner{block: block}, 1)

	if _, _, err := m.Submit(context.Background(), model.SubmitRequest{TenantID: "t1", ConfigurationID: cfg.ID}); err != nil {
		t.Fatal(err)
	}
	_, _, err = m.Submit(context.Background(), model.SubmitRequest{TenantID: "t1", ConfigurationID: cfg2.ID})
	if !errors.Is(err, ErrTooManyJobs) {
		t.Fatalf("expected ErrTooManyJobs, got %v", err)
	}
}

func TestRacingIdenticalSubmissionsHonorCeiling(t *testing.T) {
	st, cfg := seed(t)
	block := make(chan struct{})
	defer close(block)
	m := NewManager(st, &fakeRunner{block: block}, 1)

	// identical requests fingerprint the same; each still needs its own
	// ceiling reservation
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, cached, err := m.Submit(context.Background(), model.SubmitRequest{TenantID: "t1", ConfigurationID: cfg.ID})
			if err == nil && !cached {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if accepted > 1 {
		t.Fatalf("%d jobs started past a ceiling of 1", accepted)
	}
	if got := m.Running(); got > 1 {
		t.Fatalf("running = %d", got)
	}
}

func TestCancelKeepsPartialResult(t *testing.T) {
	st, cfg := seed(t)
	notes := &recordingNotifier{}
	block := make(chan struct{}) // never closed: job runs until cancelled
	m := NewManager(st, &fakeRunner{block: block}, 2, notes)

	job, _, err := m.Submit(context.Background(), model.SubmitRequest{TenantID: "t1", ConfigurationID: cfg.ID})
	if err != nil {
		t.Fatal(err)
	}
	waitForStatus(t, st, "t1", job.ID, model.JobRunning)

	if _, err := m.Cancel(context.Background(), "t1", job.ID); err != nil {
		t.Fatal(err)
	}
	done := waitForStatus(t, st, "t1", job.ID, model.JobCancelled)
	if done.Result == nil || !done.Result.Partial {
		t.Fatalf("expected partial result, got %+v", done.Result)
	}
	if len(done.Result.Routes) != 1 || done.Result.Routes[0].VehicleID != "partial" {
		t.Fatalf("partial routes = %+v", done.Result.Routes)
	}
	if done.CancelledAt == nil {
		t.Fatal("cancelledAt not set")
	}
	if len(notes.byType(EventCancelled)) != 1 {
		t.Fatal("missing cancelled event")
	}
}

func TestCancelTerminalJobIsNoop(t *testing.T) {
	st, cfg := seed(t)
	m := NewManager(st, &fakeRunner{result: &model.OptimizationResult{}}, 2)
	job, _, err := m.Submit(context.Background(), model.SubmitRequest{TenantID: "t1", ConfigurationID: cfg.ID})
	if err != nil {
		t.Fatal(err)
	}
	waitForStatus(t, st, "t1", job.ID, model.JobCompleted)

	got, err := m.Cancel(context.Background(), "t1", job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.JobCompleted {
		t.Fatalf("terminal job mutated to %s", got.Status)
	}
}

func TestTimeoutFailsJob(t *testing.T) {
	st, cfg := seed(t)
	block := make(chan struct{})
	defer close(block)
	m := NewManager(st, &fakeRunner{block: block}, 2)

	job, _, err := m.Submit(context.Background(), model.SubmitRequest{TenantID: "t1", ConfigurationID: cfg.ID, TimeoutSec: 1})
	if err != nil {
		t.Fatal(err)
	}
	done := waitForStatus(t, st, "t1", job.ID, model.JobFailed)
	if !strings.Contains(done.Error, "timed out after 1s") {
		t.Fatalf("error = %q", done.Error)
	}
	// timeout is FAILED, never CANCELLED
	if done.CancelledAt != nil {
		t.Fatal("timeout should not set cancelledAt")
	}
	if done.Result == nil || !done.Result.Partial {
		t.Fatalf("timeout should keep partial result, got %+v", done.Result)
	}
}

func TestProgressNeverRegresses(t *testing.T) {
	s := NewSink(nil)
	s.Progress(40, "")
	s.Progress(20, "")
	if got := s.Current(); got != 40 {
		t.Fatalf("progress regressed to %d", got)
	}
}
