package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/segyhp/loan-importer/pkg/response"
)

// Pinger is anything whose connectivity can be checked.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a plain ping function, such as a Redis client's, to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error {
	return f(ctx)
}

type HealthHandler struct {
	db      Pinger
	redis   Pinger
	timeout time.Duration
}

func NewHealthHandler(db Pinger, redis Pinger, timeout time.Duration) *HealthHandler {
	return &HealthHandler{
		db:      db,
		redis:   redis,
		timeout: timeout,
	}
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// Health performs a basic health check
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	response.Success(w, status)
}

// Ready checks database and redis connectivity
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	h.check(r.Context(), &status, "database", h.db)
	h.check(r.Context(), &status, "redis", h.redis)

	if status.Status == "error" {
		response.JSON(w, http.StatusServiceUnavailable, status)
		return
	}

	response.Success(w, status)
}

func (h *HealthHandler) check(ctx context.Context, status *HealthStatus, name string, p Pinger) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := p.PingContext(ctx); err != nil {
		status.Status = "error"
		status.Checks[name] = "failed: " + err.Error()
		return
	}
	status.Checks[name] = "ok"
}
