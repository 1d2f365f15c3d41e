package api

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"

	"routeplan/internal/config"
	"routeplan/internal/jobs"
	"routeplan/internal/solver"
	"routeplan/internal/store"
	"routeplan/internal/webhooks"
)

// Server wires the store, job manager, event broker and webhook pipeline
// behind the HTTP handlers.
type Server struct {
	Store   store.Store
	Manager *jobs.Manager
	Broker  EventBroker
	Worker  *webhooks.Worker
	Presets config.Presets
}

// NewServer builds the full dependency graph from the environment:
// DATABASE_URL selects Postgres over memory, REDIS_URL selects the Redis
// broker, SOLVER_URL enables the external solver.
func NewServer() (*Server, error) {
	var st store.Store
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		ps, err := store.NewPostgres(dsn)
		if err != nil {
			return nil, err
		}
		if os.Getenv("DB_MIGRATE") != "false" {
			if err := ps.MigrateDir("db/migrations"); err != nil {
				return nil, err
			}
		}
		st = ps
	} else {
		st = store.NewMemory()
	}

	var broker EventBroker
	if os.Getenv("REDIS_URL") != "" {
		if rb, err := NewRedisBroker(); err == nil {
			broker = rb
		} else {
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}

	presets, err := config.Load(os.Getenv("PRESETS_FILE"))
	if err != nil {
		return nil, err
	}

	worker := webhooks.NewWorker()
	adapter := &solver.Adapter{Service: solverService()}
	orch := &jobs.Orchestrator{
		Store:    st,
		Adapter:  adapter,
		Strategy: os.Getenv("ASSIGN_STRATEGY"),
	}

	maxJobs := 0
	if v := os.Getenv("MAX_CONCURRENT_JOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			maxJobs = n
		}
	}
	mgr := jobs.NewManager(st, orch, maxJobs,
		brokerNotifier{broker},
		webhooks.NewPublisher(st, worker),
	)

	return &Server{Store: st, Manager: mgr, Broker: broker, Worker: worker, Presets: presets}, nil
}

// solverService avoids a typed-nil interface when SOLVER_URL is unset.
func solverService() solver.Service {
	if c := solver.NewClientFromEnv(); c != nil {
		return c
	}
	return nil
}

func (s *Server) withTenant(r *http.Request) (context.Context, string) {
	// tenant comes from a header; production deployments put a JWT-decoding
	// proxy in front
	tenant := r.Header.Get("X-Tenant-Id")
	if tenant == "" {
		tenant = "t_demo"
	}
	return r.Context(), tenant
}
