package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"routeplan/internal/metrics"
	"routeplan/internal/model"
	"routeplan/internal/store"
)

// ErrTooManyJobs rejects submissions over the concurrency ceiling. Callers
// map it to 429; nothing is queued.
var ErrTooManyJobs = errors.New("too many concurrent optimization jobs")

const defaultMaxConcurrent = 4

// Runner executes one optimization job. It must honor ctx cancellation at
// its checkpoints and keep the sink's snapshot current.
type Runner interface {
	Run(ctx context.Context, job model.Job, cfg model.Configuration, req model.SubmitRequest, sink *Sink) (*model.OptimizationResult, error)
}

type track struct {
	cancel context.CancelFunc
	sink   *Sink

	mu     sync.Mutex
	reason string // "" while running, then "cancel" or "timeout"
}

func (t *track) stop(reason string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reason != "" {
		return false
	}
	t.reason = reason
	t.cancel()
	return true
}

func (t *track) stopReason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// Manager owns the job lifecycle: submission with fingerprint reuse, the
// concurrency ceiling, cancellation and timeouts. Exactly one terminal
// transition happens per job.
type Manager struct {
	Store         store.Store
	Runner        Runner
	MaxConcurrent int
	Notifiers     []Notifier

	mu      sync.Mutex
	running map[string]*track
}

func NewManager(st store.Store, runner Runner, maxConcurrent int, notifiers ...Notifier) *Manager {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &Manager{
		Store:         st,
		Runner:        runner,
		MaxConcurrent: maxConcurrent,
		Notifiers:     notifiers,
		running:       map[string]*track{},
	}
}

// Submit validates the request, reuses a matching previous job when the
// inputs fingerprint to the same value, and otherwise starts a new run.
// The bool result reports reuse.
func (m *Manager) Submit(ctx context.Context, req model.SubmitRequest) (model.Job, bool, error) {
	cfg, err := m.Store.GetConfiguration(ctx, req.TenantID, req.ConfigurationID)
	if err != nil {
		metrics.JobsSubmitted.WithLabelValues("rejected").Inc()
		return model.Job{}, false, fmt.Errorf("configuration %s: %w", req.ConfigurationID, err)
	}

	orders, err := m.Store.ListPendingOrders(ctx, req.TenantID)
	if err != nil {
		return model.Job{}, false, err
	}
	vehicles, err := m.Store.ListVehicles(ctx, req.TenantID, req.VehicleIDs)
	if err != nil {
		return model.Job{}, false, err
	}
	drivers, err := m.Store.ListDrivers(ctx, req.TenantID, req.DriverIDs)
	if err != nil {
		return model.Job{}, false, err
	}

	fp := Fingerprint(cfg.ID, vehicles, drivers, orders)
	if prev, ok, err := m.Store.FindJobByFingerprint(ctx, req.TenantID, fp); err == nil && ok {
		metrics.JobsSubmitted.WithLabelValues("cached").Inc()
		return prev, true, nil
	}

	m.mu.Lock()
	if len(m.running) >= m.MaxConcurrent {
		m.mu.Unlock()
		metrics.JobsSubmitted.WithLabelValues("rejected").Inc()
		return model.Job{}, false, ErrTooManyJobs
	}
	// reserve the slot before the store round-trip so a burst cannot
	// overshoot the ceiling; the key must be unique per submission or two
	// racing identical requests would share one reservation
	reserve := "pending-" + uuid.NewString()
	m.running[reserve] = nil
	m.mu.Unlock()

	job := model.Job{
		TenantID:        req.TenantID,
		ConfigurationID: cfg.ID,
		Status:          model.JobPending,
		Fingerprint:     fp,
		TimeoutSec:      req.TimeoutSec,
		CreatedAt:       time.Now().UTC(),
	}
	job, err = m.Store.CreateJob(ctx, job)
	if err != nil {
		m.release(reserve)
		return model.Job{}, false, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	t := &track{cancel: cancel}
	t.sink = NewSink(func(pct int, note string) { m.onProgress(job, pct, note) })

	m.mu.Lock()
	delete(m.running, reserve)
	m.running[job.ID] = t
	m.mu.Unlock()

	metrics.JobsSubmitted.WithLabelValues("new").Inc()
	go m.run(runCtx, job, cfg, req, t)
	return job, false, nil
}

// Cancel requests cooperative cancellation. Terminal jobs are returned
// unchanged; the running job transitions to CANCELLED once its goroutine
// reaches the next checkpoint.
func (m *Manager) Cancel(ctx context.Context, tenantID, jobID string) (model.Job, error) {
	job, err := m.Store.GetJob(ctx, tenantID, jobID)
	if err != nil {
		return model.Job{}, err
	}
	if job.Terminal() {
		return job, nil
	}
	m.mu.Lock()
	t := m.running[jobID]
	m.mu.Unlock()
	if t != nil {
		t.stop("cancel")
	}
	return job, nil
}

// Running reports the number of jobs currently executing.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running)
}

func (m *Manager) run(ctx context.Context, job model.Job, cfg model.Configuration, req model.SubmitRequest, t *track) {
	defer m.release(job.ID)

	var timer *time.Timer
	if job.TimeoutSec > 0 {
		timer = time.AfterFunc(time.Duration(job.TimeoutSec)*time.Second, func() { t.stop("timeout") })
		defer timer.Stop()
	}

	now := time.Now().UTC()
	job.Status = model.JobRunning
	job.StartedAt = &now
	if err := m.Store.UpdateJob(ctx, job); err != nil {
		log.Printf("job %s: mark running: %v", job.ID, err)
	}
	metrics.JobsRunning.Inc()
	defer metrics.JobsRunning.Dec()
	start := time.Now()

	result, err := m.Runner.Run(ctx, job, cfg, req, t.sink)
	metrics.JobDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		m.finish(job, t, model.JobCompleted, result, "")
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		if t.stopReason() == "timeout" {
			msg := fmt.Sprintf("timed out after %ds", job.TimeoutSec)
			m.finish(job, t, model.JobFailed, t.sink.Partial(), msg)
		} else {
			m.finish(job, t, model.JobCancelled, t.sink.Partial(), "")
		}
	default:
		m.finish(job, t, model.JobFailed, nil, err.Error())
	}
}

// finish performs the single terminal transition.
func (m *Manager) finish(job model.Job, t *track, status string, result *model.OptimizationResult, errMsg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cur, err := m.Store.GetJob(ctx, job.TenantID, job.ID)
	if err == nil && cur.Terminal() {
		return
	}

	now := time.Now().UTC()
	job.Status = status
	job.Result = result
	job.Error = errMsg
	job.CompletedAt = &now
	if status == model.JobCancelled {
		job.CancelledAt = &now
	}
	job.Progress = t.sink.Current()
	if status == model.JobCompleted {
		job.Progress = 100
	}
	if err := m.Store.UpdateJob(ctx, job); err != nil {
		log.Printf("job %s: finalize %s: %v", job.ID, status, err)
	}
	metrics.JobsFinished.WithLabelValues(strings.ToLower(status)).Inc()
	m.notify(Event{
		Type:     eventFor(status),
		JobID:    job.ID,
		TenantID: job.TenantID,
		Status:   status,
		Progress: job.Progress,
		Note:     errMsg,
		At:       now,
	})
}

func eventFor(status string) string {
	switch status {
	case model.JobCompleted:
		return EventCompleted
	case model.JobCancelled:
		return EventCancelled
	default:
		return EventFailed
	}
}

func (m *Manager) onProgress(job model.Job, pct int, note string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cur, err := m.Store.GetJob(ctx, job.TenantID, job.ID)
	if err != nil || cur.Terminal() {
		return
	}
	cur.Progress = pct
	if err := m.Store.UpdateJob(ctx, cur); err != nil {
		log.Printf("job %s: progress %d: %v", job.ID, pct, err)
	}
	m.notify(Event{
		Type:     EventProgress,
		JobID:    job.ID,
		TenantID: job.TenantID,
		Status:   model.JobRunning,
		Progress: pct,
		Note:     note,
		At:       time.Now().UTC(),
	})
}

func (m *Manager) notify(ev Event) {
	for _, n := range m.Notifiers {
		n.Notify(ev)
	}
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	delete(m.running, id)
	m.mu.Unlock()
}
