package api

import (
	"net/http"
	"os"
	"time"

	"routeplan/internal/buildinfo"
)

// DebugJSON exposes build and config surface for operators. No secrets, only
// presence flags.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"PORT":                 os.Getenv("PORT"),
			"ASSIGN_STRATEGY":      os.Getenv("ASSIGN_STRATEGY"),
			"MAX_CONCURRENT_JOBS":  os.Getenv("MAX_CONCURRENT_JOBS"),
			"WEBHOOK_MAX_ATTEMPTS": os.Getenv("WEBHOOK_MAX_ATTEMPTS"),
			"PRESETS_FILE":         os.Getenv("PRESETS_FILE"),
			"HAS_DATABASE_URL":     os.Getenv("DATABASE_URL") != "",
			"HAS_REDIS_URL":        os.Getenv("REDIS_URL") != "",
			"HAS_SOLVER_URL":       os.Getenv("SOLVER_URL") != "",
		},
	})
}
