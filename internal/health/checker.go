// Package health exposes liveness and readiness checks over HTTP for the
// adapter's broker and upstream connections.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Checker is a component that can be health checked.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckStatus is the outcome of one component check.
type CheckStatus struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"` // "healthy" or "unhealthy"
	Error     string    `json:"error,omitempty"`
	LastCheck time.Time `json:"last_check"`
}

// Response is the aggregated health response.
type Response struct {
	Status    string                  `json:"status"`
	Service   string                  `json:"service"`
	Version   string                  `json:"version"`
	Timestamp time.Time               `json:"timestamp"`
	Checks    map[string]*CheckStatus `json:"checks,omitempty"`
}

// HealthChecker runs registered component checks on demand.
type HealthChecker struct {
	serviceName    string
	serviceVersion string
	checkTimeout   time.Duration

	mu     sync.RWMutex
	checks map[string]Checker
}

// NewChecker creates a health checker.
func NewChecker(serviceName, serviceVersion string) *HealthChecker {
	return &HealthChecker{
		serviceName:    serviceName,
		serviceVersion: serviceVersion,
		checkTimeout:   5 * time.Second,
		checks:         make(map[string]Checker),
	}
}

// AddCheck registers a component check under a name.
func (h *HealthChecker) AddCheck(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = checker
}

// Check runs all registered checks concurrently and aggregates the result.
func (h *HealthChecker) Check(ctx context.Context) *Response {
	h.mu.RLock()
	checks := make(map[string]Checker, len(h.checks))
	for name, checker := range h.checks {
		checks[name] = checker
	}
	h.mu.RUnlock()

	response := &Response{
		Status:    "healthy",
		Service:   h.serviceName,
		Version:   h.serviceVersion,
		Timestamp: time.Now(),
		Checks:    make(map[string]*CheckStatus),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, checker := range checks {
		wg.Add(1)
		go func(name string, checker Checker) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, h.checkTimeout)
			defer cancel()

			status := &CheckStatus{Name: name, Status: "healthy", LastCheck: time.Now()}
			if err := checker.HealthCheck(checkCtx); err != nil {
				status.Status = "unhealthy"
				status.Error = err.Error()
			}

			mu.Lock()
			response.Checks[name] = status
			if status.Status != "healthy" {
				response.Status = "unhealthy"
			}
			mu.Unlock()
		}(name, checker)
	}
	wg.Wait()

	return response
}

// HealthHandler serves the aggregated health response.
func (h *HealthChecker) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.writeResponse(w, h.Check(r.Context()))
}

// LivenessHandler answers the liveness probe: 200 while the process runs.
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	response := &Response{
		Status:    "healthy",
		Service:   h.serviceName,
		Version:   h.serviceVersion,
		Timestamp: time.Now(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// ReadinessHandler answers the readiness probe: 200 only when the broker and
// upstream connections are healthy.
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	h.writeResponse(w, h.Check(r.Context()))
}

func (h *HealthChecker) writeResponse(w http.ResponseWriter, response *Response) {
	w.Header().Set("Content-Type", "application/json")
	statusCode := http.StatusOK
	if response.Status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}
