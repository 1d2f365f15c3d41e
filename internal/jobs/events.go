package jobs

import "time"

// Event types emitted over the lifetime of a job.
const (
	EventProgress  = "job.progress"
	EventCompleted = "job.completed"
	EventFailed    = "job.failed"
	EventCancelled = "job.cancelled"
)

// Event is one job lifecycle notification, fanned out to SSE/WS streams and
// webhook subscribers.
type Event struct {
	Type     string    `json:"type"`
	JobID    string    `json:"jobId"`
	TenantID string    `json:"tenantId"`
	Status   string    `json:"status"`
	Progress int       `json:"progress"`
	Note     string    `json:"note,omitempty"`
	At       time.Time `json:"at"`
}

// Notifier receives job events. Implementations must not block; slow
// consumers drop or buffer on their side.
type Notifier interface {
	Notify(ev Event)
}
