package api

import (
	"sync"

	"routeplan/internal/jobs"
)

// EventBroker fans job events out to live subscribers (SSE and WebSocket
// streams), keyed by job id.
type EventBroker interface {
	Subscribe(jobID string) chan jobs.Event
	Unsubscribe(jobID string, ch chan jobs.Event)
	Publish(jobID string, ev jobs.Event)
}

// Broker is the in-memory EventBroker for single-node runs.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan jobs.Event]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan jobs.Event]struct{}{}}
}

func (b *Broker) Subscribe(jobID string) chan jobs.Event {
	ch := make(chan jobs.Event, 8)
	b.mu.Lock()
	if b.subs[jobID] == nil {
		b.subs[jobID] = map[chan jobs.Event]struct{}{}
	}
	b.subs[jobID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(jobID string, ch chan jobs.Event) {
	b.mu.Lock()
	if m := b.subs[jobID]; m != nil {
		delete(m, ch)
		if len(m) == 0 {
			delete(b.subs, jobID)
		}
	}
	b.mu.Unlock()
	close(ch)
}

// Publish drops events for slow subscribers rather than blocking the job.
func (b *Broker) Publish(jobID string, ev jobs.Event) {
	b.mu.Lock()
	for ch := range b.subs[jobID] {
		select {
		case ch <- ev:
		default:
		}
	}
	b.mu.Unlock()
}

// brokerNotifier adapts an EventBroker to jobs.Notifier.
type brokerNotifier struct{ b EventBroker }

func (n brokerNotifier) Notify(ev jobs.Event) { n.b.Publish(ev.JobID, ev) }
