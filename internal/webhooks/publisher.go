package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"routeplan/internal/jobs"
	"routeplan/internal/store"
)

// Publisher turns terminal job events into queued webhook deliveries, one per
// matching subscription. Progress events are not fanned out; subscribers poll
// or stream those.
type Publisher struct {
	Store  store.Store
	Worker *Worker
}

func NewPublisher(s store.Store, w *Worker) *Publisher {
	return &Publisher{Store: s, Worker: w}
}

// Notify implements jobs.Notifier.
func (p *Publisher) Notify(ev jobs.Event) {
	if ev.Type == jobs.EventProgress {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	subs, err := p.Store.ListSubscriptions(ctx, ev.TenantID, ev.Type)
	if err != nil || len(subs) == 0 {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"id":       fmt.Sprintf("evt_%d", time.Now().UnixNano()),
		"type":     ev.Type,
		"tenantId": ev.TenantID,
		"ts":       ev.At.Format(time.RFC3339),
		"data": map[string]any{
			"jobId":    ev.JobID,
			"status":   ev.Status,
			"progress": ev.Progress,
			"note":     ev.Note,
		},
	})
	for _, s := range subs {
		p.Worker.Enqueue(Delivery{
			ID:        fmt.Sprintf("dlv_%s_%d", s.ID, time.Now().UnixNano()),
			URL:       s.URL,
			Secret:    s.Secret,
			EventType: ev.Type,
			Payload:   payload,
		})
	}
}
