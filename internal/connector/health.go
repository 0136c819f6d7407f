package connector

import (
	"sync"
	"time"
)

// Health statuses. Healthy flips to degraded on the first consecutive
// failure and to failing at failingThreshold; one success resets.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
	StatusFailing  HealthStatus = "failing"
)

const failingThreshold = 3

// Health is one connector's fetch health snapshot.
type Health struct {
	ConnectorID         string       `json:"connector_id"`
	Status              HealthStatus `json:"status"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	LastError           string       `json:"last_error,omitempty"`
	LastSuccess         time.Time    `json:"last_success,omitzero"`
	LastFailure         time.Time    `json:"last_failure,omitzero"`
}

// HealthTracker records per-connector fetch outcomes. Safe for concurrent
// use; adapters for different sources run in parallel.
type HealthTracker struct {
	mu   sync.Mutex
	byID map[string]*Health
}

// NewHealthTracker creates an empty tracker.
func NewHealthTracker() *HealthTracker {
	return &HealthTracker{byID: make(map[string]*Health)}
}

func (t *HealthTracker) get(id string) *Health {
	h, ok := t.byID[id]
	if !ok {
		h = &Health{ConnectorID: id, Status: StatusHealthy}
		t.byID[id] = h
	}
	return h
}

// RecordSuccess marks a successful fetch pass and resets the failure run.
func (t *HealthTracker) RecordSuccess(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.get(id)
	h.ConsecutiveFailures = 0
	h.LastError = ""
	h.Status = StatusHealthy
	h.LastSuccess = time.Now()
}

// RecordFailure marks a failed fetch pass (retries already exhausted).
func (t *HealthTracker) RecordFailure(id string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.get(id)
	h.ConsecutiveFailures++
	h.LastError = err.Error()
	h.LastFailure = time.Now()
	if h.ConsecutiveFailures >= failingThreshold {
		h.Status = StatusFailing
	} else {
		h.Status = StatusDegraded
	}
}

// Get returns the health snapshot for a connector.
func (t *HealthTracker) Get(id string) Health {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.get(id)
}
