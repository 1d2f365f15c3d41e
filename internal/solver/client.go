package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Service is the external solve surface the adapter depends on. The HTTP
// client implements it; tests substitute fakes.
type Service interface {
	Available(ctx context.Context) bool
	Solve(ctx context.Context, req *SolveRequest) (*SolveResponse, error)
}

// Client calls the external VRP service over HTTP. Calls are rate limited so
// a burst of concurrent jobs cannot flood the solver.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Probe   *http.Client
	lim     *rate.Limiter
}

// NewClientFromEnv builds a client from SOLVER_URL, SOLVER_TIMEOUT_SEC and
// SOLVER_RATE_RPS. Returns nil when SOLVER_URL is unset, which forces the
// fallback heuristic everywhere.
func NewClientFromEnv() *Client {
	url := os.Getenv("SOLVER_URL")
	if url == "" {
		return nil
	}
	timeout := 60 * time.Second
	if v := os.Getenv("SOLVER_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			timeout = time.Duration(n) * time.Second
		}
	}
	rps := 5.0
	if v := os.Getenv("SOLVER_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			rps = f
		}
	}
	return NewClient(url, timeout, rps)
}

func NewClient(baseURL string, timeout time.Duration, rps float64) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
		Probe:   &http.Client{Timeout: 2 * time.Second},
		lim:     rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Available probes GET /health with a short timeout. Any failure means the
// caller should take the fallback path, not error out.
func (c *Client) Available(ctx context.Context) bool {
	if c == nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.Probe.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Solve posts the request and decodes the response.
func (c *Client) Solve(ctx context.Context, sreq *SolveRequest) (*SolveResponse, error) {
	if err := c.lim.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := json.Marshal(sreq)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/solve", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("solver returned %d", resp.StatusCode)
	}
	var out SolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode solver response: %w", err)
	}
	return &out, nil
}
