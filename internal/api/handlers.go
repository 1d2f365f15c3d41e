package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"routeplan/internal/jobs"
	"routeplan/internal/model"
	"routeplan/internal/store"
)

// JobsHandler accepts optimization job submissions.
// POST /v1/optimize-jobs
func (s *Server) JobsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	ctx, tenant := s.withTenant(r)
	req.TenantID = tenant
	if req.ConfigurationID == "" {
		writeProblem(w, http.StatusBadRequest, "Validation failed", "configurationId is required", r.URL.Path)
		return
	}

	job, cached, err := s.Manager.Submit(ctx, req)
	switch {
	case errors.Is(err, jobs.ErrTooManyJobs):
		writeProblem(w, http.StatusTooManyRequests, "Too many jobs", err.Error(), r.URL.Path)
		return
	case errors.Is(err, store.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Configuration not found", err.Error(), r.URL.Path)
		return
	case err != nil:
		writeProblem(w, http.StatusInternalServerError, "Submit failed", err.Error(), r.URL.Path)
		return
	}
	status := http.StatusAccepted
	if cached {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{
		"jobId":  job.ID,
		"status": job.Status,
		"cached": cached,
	})
}

// JobByIDHandler serves job status, results, cancellation and the SSE event
// stream.
// GET  /v1/optimize-jobs/{id}
// GET  /v1/optimize-jobs/{id}/result
// POST /v1/optimize-jobs/{id}/cancel
// GET  /v1/optimize-jobs/{id}/events/stream
func (s *Server) JobByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/optimize-jobs/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing job id", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	ctx, tenant := s.withTenant(r)

	if len(parts) > 2 && parts[1] == "events" && parts[2] == "stream" {
		s.streamJobEvents(w, r, id)
		return
	}
	if len(parts) > 1 && parts[1] == "cancel" {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		job, err := s.Manager.Cancel(ctx, tenant, id)
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Job not found", "", r.URL.Path)
			return
		}
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Cancel failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusAccepted, job)
		return
	}

	job, err := s.Store.GetJob(ctx, tenant, id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Job not found", "", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Load job failed", err.Error(), r.URL.Path)
		return
	}

	if len(parts) > 1 && parts[1] == "result" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if job.Result == nil {
			if job.Terminal() {
				writeProblem(w, http.StatusNotFound, "No result", fmt.Sprintf("job is %s without a result", job.Status), r.URL.Path)
			} else {
				writeProblem(w, http.StatusConflict, "Job not finished", fmt.Sprintf("job is %s at %d%%", job.Status, job.Progress), r.URL.Path)
			}
			return
		}
		writeJSON(w, http.StatusOK, job.Result)
		return
	}

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	// status view omits the result payload
	job.Result = nil
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) streamJobEvents(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.Broker.Subscribe(jobID)
	defer s.Broker.Unsubscribe(jobID, ch)

	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"jobId\":\"%s\",\"ts\":\"%s\"}\n\n", jobID, time.Now().UTC().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()
	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			b, _ := json.Marshal(ev)
			fmt.Fprintf(w, "event: %s\n", ev.Type)
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		case <-time.After(15 * time.Second):
			heartbeat()
		}
	}
}

// OrdersHandler seeds and lists pending orders.
// POST /v1/orders (single object or array), GET /v1/orders
func (s *Server) OrdersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, tenant := s.withTenant(r)
	switch r.Method {
	case http.MethodPost:
		raw, err := decodeOneOrMany[model.Order](r)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		out := make([]model.Order, 0, len(raw))
		for _, o := range raw {
			o.TenantID = tenant
			created, err := s.Store.CreateOrder(ctx, o)
			if err != nil {
				writeProblem(w, http.StatusInternalServerError, "Create order failed", err.Error(), r.URL.Path)
				return
			}
			out = append(out, created)
		}
		writeJSON(w, http.StatusCreated, map[string]any{"created": len(out), "orders": out})
	case http.MethodGet:
		orders, err := s.Store.ListPendingOrders(ctx, tenant)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List orders failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// VehiclesHandler seeds and lists vehicles.
func (s *Server) VehiclesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, tenant := s.withTenant(r)
	switch r.Method {
	case http.MethodPost:
		raw, err := decodeOneOrMany[model.Vehicle](r)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		out := make([]model.Vehicle, 0, len(raw))
		for _, v := range raw {
			v.TenantID = tenant
			created, err := s.Store.CreateVehicle(ctx, v)
			if err != nil {
				writeProblem(w, http.StatusInternalServerError, "Create vehicle failed", err.Error(), r.URL.Path)
				return
			}
			out = append(out, created)
		}
		writeJSON(w, http.StatusCreated, map[string]any{"created": len(out), "vehicles": out})
	case http.MethodGet:
		vehicles, err := s.Store.ListVehicles(ctx, tenant, nil)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List vehicles failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"vehicles": vehicles})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// DriversHandler seeds and lists drivers.
func (s *Server) DriversHandler(w http.ResponseWriter, r *http.Request) {
	ctx, tenant := s.withTenant(r)
	switch r.Method {
	case http.MethodPost:
		raw, err := decodeOneOrMany[model.Driver](r)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		out := make([]model.Driver, 0, len(raw))
		for _, d := range raw {
			d.TenantID = tenant
			created, err := s.Store.CreateDriver(ctx, d)
			if err != nil {
				writeProblem(w, http.StatusInternalServerError, "Create driver failed", err.Error(), r.URL.Path)
				return
			}
			out = append(out, created)
		}
		writeJSON(w, http.StatusCreated, map[string]any{"created": len(out), "drivers": out})
	case http.MethodGet:
		drivers, err := s.Store.ListDrivers(ctx, tenant, nil)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List drivers failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"drivers": drivers})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ZonesHandler seeds and lists zones.
func (s *Server) ZonesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, tenant := s.withTenant(r)
	switch r.Method {
	case http.MethodPost:
		var z model.Zone
		if err := json.NewDecoder(r.Body).Decode(&z); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if len(z.Polygon) < 3 {
			writeProblem(w, http.StatusBadRequest, "Validation failed", "polygon needs at least 3 points", r.URL.Path)
			return
		}
		z.TenantID = tenant
		created, err := s.Store.CreateZone(ctx, z)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create zone failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	case http.MethodGet:
		zones, err := s.Store.ListZones(ctx, tenant)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List zones failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"zones": zones})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ConfigurationsHandler creates configurations, resolving presets at write
// time so jobs always run against concrete values.
func (s *Server) ConfigurationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx, tenant := s.withTenant(r)
	var cfg model.Configuration
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := s.Presets.Apply(&cfg); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid preset", err.Error(), r.URL.Path)
		return
	}
	cfg.TenantID = tenant
	created, err := s.Store.CreateConfiguration(ctx, cfg)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create configuration failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ConfigurationByIDHandler returns one configuration.
func (s *Server) ConfigurationByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/configurations/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing configuration id", r.URL.Path)
		return
	}
	ctx, tenant := s.withTenant(r)
	cfg, err := s.Store.GetConfiguration(ctx, tenant, id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Configuration not found", "", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Load configuration failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// SubscriptionsHandler registers webhook subscriptions for job events.
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, tenant := s.withTenant(r)
	switch r.Method {
	case http.MethodPost:
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.URL == "" || len(req.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Validation failed", "url and events are required", r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(ctx, model.Subscription{
			TenantID: tenant,
			URL:      req.URL,
			Events:   req.Events,
			Secret:   req.Secret,
		})
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		sub.Secret = ""
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		subs, err := s.Store.ListSubscriptions(ctx, tenant, "")
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		for i := range subs {
			subs[i].Secret = ""
		}
		writeJSON(w, http.StatusOK, map[string]any{"subscriptions": subs})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler removes a webhook subscription.
// DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing subscription id", r.URL.Path)
		return
	}
	ctx, tenant := s.withTenant(r)
	err := s.Store.DeleteSubscription(ctx, tenant, id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Subscription not found", "", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Delete subscription failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(r.Context()); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"runningJobs": s.Manager.Running(),
	})
}

// decodeOneOrMany accepts either a single JSON object or an array of them.
func decodeOneOrMany[T any](r *http.Request) ([]T, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var many []T
		err := json.Unmarshal(raw, &many)
		return many, err
	}
	var one T
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, err
	}
	return []T{one}, nil
}
