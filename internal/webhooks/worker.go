// Package webhooks fans job terminal events out to subscriber endpoints with
// HMAC-signed payloads and exponential backoff on failure.
package webhooks

import (
	"bytes"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"routeplan/internal/metrics"
)

// Delivery is one pending webhook POST.
type Delivery struct {
	ID        string
	URL       string
	Secret    string
	EventType string
	Payload   []byte
	Attempts  int
	NextTry   time.Time
}

// Worker drains the delivery queue. Failed deliveries are retried with
// exponential backoff up to MaxAttempts, then dropped.
type Worker struct {
	HTTP        *http.Client
	MaxAttempts int
	Stop        chan struct{}

	mu    sync.Mutex
	queue []Delivery
}

func NewWorker() *Worker {
	max := 10
	if v := os.Getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			max = n
		}
	}
	return &Worker{
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		MaxAttempts: max,
		Stop:        make(chan struct{}),
	}
}

// Enqueue schedules a delivery for the next tick.
func (w *Worker) Enqueue(d Delivery) {
	w.mu.Lock()
	w.queue = append(w.queue, d)
	w.mu.Unlock()
}

// Pending reports queued deliveries, for readiness and tests.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

func (w *Worker) Start() {
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-w.Stop:
				return
			case <-ticker.C:
				w.ProcessOnce()
			}
		}
	}()
}

// ProcessOnce attempts every due delivery once.
func (w *Worker) ProcessOnce() {
	now := time.Now()
	w.mu.Lock()
	due := make([]Delivery, 0, len(w.queue))
	rest := w.queue[:0]
	for _, d := range w.queue {
		if d.NextTry.After(now) {
			rest = append(rest, d)
		} else {
			due = append(due, d)
		}
	}
	w.queue = rest
	w.mu.Unlock()

	for _, d := range due {
		if w.attempt(d) {
			metrics.WebhookDeliveries.WithLabelValues("ok").Inc()
			continue
		}
		d.Attempts++
		if d.Attempts >= w.MaxAttempts {
			metrics.WebhookDeliveries.WithLabelValues("dropped").Inc()
			continue
		}
		metrics.WebhookDeliveries.WithLabelValues("retry").Inc()
		d.NextTry = now.Add(nextBackoff(d.Attempts))
		w.Enqueue(d)
	}
}

func (w *Worker) attempt(d Delivery) bool {
	req, err := http.NewRequest(http.MethodPost, d.URL, bytes.NewReader(d.Payload))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", d.EventType)
	if d.Secret != "" {
		req.Header.Set("X-Signature", SignHMAC(d.Secret, d.Payload))
	}
	resp, err := w.HTTP.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	d := time.Second * time.Duration(1<<attempts)
	if d > time.Hour {
		d = time.Hour
	}
	return d
}
