// Package health serves liveness, readiness and status probes for the pool
// server. Readiness runs every registered dependency check concurrently.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"mutualpool/pkg/platform/httputil"
)

// Version is set at build time via ldflags.
var Version = "dev"

// CheckFunc reports nil when the dependency is reachable.
type CheckFunc func(ctx context.Context) error

const (
	statusUp   = "up"
	statusDown = "down"

	defaultCheckTimeout = 2 * time.Second
)

type check struct {
	fn       CheckFunc
	critical bool
}

// Handler serves the probe endpoints.
type Handler struct {
	started     time.Time
	environment string
	timeout     time.Duration
	now         func() time.Time

	mu     sync.RWMutex
	checks map[string]check
}

func New(environment string) *Handler {
	return &Handler{
		started:     time.Now(),
		environment: environment,
		timeout:     defaultCheckTimeout,
		now:         time.Now,
		checks:      make(map[string]check),
	}
}

// RegisterCheck adds a dependency whose failure makes the server not ready.
func (h *Handler) RegisterCheck(name string, fn CheckFunc) {
	h.register(name, check{fn: fn, critical: true})
}

// RegisterOptionalCheck adds a dependency whose failure only degrades the
// server. The outbox keeps ledger events while the broker is away, so
// the broker is registered this way.
func (h *Handler) RegisterOptionalCheck(name string, fn CheckFunc) {
	h.register(name, check{fn: fn})
}

func (h *Handler) register(name string, c check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = c
}

// Register mounts the probe routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleStatus)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}

type LivenessResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, LivenessResponse{Status: "alive"})
}

// CheckResult is one dependency's outcome.
type CheckResult struct {
	Status     string `json:"status"`
	Critical   bool   `json:"critical"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type ReadinessResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// HandleReadiness answers 200 "ready", 200 "degraded" when only optional
// checks fail, or 503 "not_ready" when a critical check fails.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	results := h.run(r.Context())

	resp := ReadinessResponse{Status: "ready", Checks: results}
	code := http.StatusOK
	for _, res := range results {
		if res.Status == statusUp {
			continue
		}
		if res.Critical {
			resp.Status = "not_ready"
			code = http.StatusServiceUnavailable
			break
		}
		resp.Status = "degraded"
	}
	httputil.WriteJSON(w, code, resp)
}

func (h *Handler) run(ctx context.Context) map[string]CheckResult {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make([]check, len(names))
	for i, name := range names {
		checks[i] = h.checks[name]
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	out := make([]CheckResult, len(names))
	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			start := time.Now()
			err := c.fn(ctx)
			res := CheckResult{Status: statusUp, Critical: c.critical, DurationMS: time.Since(start).Milliseconds()}
			if err != nil {
				res.Status = statusDown
				res.Error = err.Error()
			}
			out[i] = res
			return nil
		})
	}
	_ = g.Wait()

	results := make(map[string]CheckResult, len(names))
	for i, name := range names {
		results[name] = out[i]
	}
	return results
}

type StatusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     string `json:"timestamp"`
}

func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	now := h.now()
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		Status:        "healthy",
		Version:       Version,
		Environment:   h.environment,
		UptimeSeconds: int64(now.Sub(h.started).Seconds()),
		Timestamp:     now.UTC().Format(time.RFC3339),
	})
}
