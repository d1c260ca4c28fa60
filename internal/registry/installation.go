package registry

import (
	"time"
)

// HealthStatus classifies an installation's operational state.
type HealthStatus string

// Health states.
const (
	HealthUnknown HealthStatus = "unknown"
	HealthHealthy HealthStatus = "healthy"
	HealthWarning HealthStatus = "warning"
	HealthError   HealthStatus = "error"
)

// Health is an installation's last evaluated health.
type Health struct {
	Status      HealthStatus `json:"status"`
	LastChecked time.Time    `json:"lastChecked"`
	Issues      []string     `json:"issues,omitempty"`
}

// Usage accumulates execution telemetry for one installation.
type Usage struct {
	ExecutionCount  int64     `json:"executionCount"`
	ErrorCount      int64     `json:"errorCount"`
	TotalDurationMS int64     `json:"totalDurationMs"`
	TotalCostCents  int64     `json:"totalCostCents"`
	LastUsed        time.Time `json:"lastUsed"`
}

// AverageLatencyMS returns the mean execution duration.
func (u Usage) AverageLatencyMS() int64 {
	if u.ExecutionCount == 0 {
		return 0
	}
	return u.TotalDurationMS / u.ExecutionCount
}

// ErrorRate returns the failed fraction of executions.
func (u Usage) ErrorRate() float64 {
	if u.ExecutionCount == 0 {
		return 0
	}
	return float64(u.ErrorCount) / float64(u.ExecutionCount)
}

// Installation binds a manifest version to an owner. Created on
// install, mutated on enable/disable and metrics updates, removed on
// uninstall.
type Installation struct {
	ID      string `json:"id"`
	ItemID  string `json:"itemId"`
	Version string `json:"version"`

	OwnerID   string `json:"ownerId"`
	ProjectID string `json:"projectId,omitempty"`

	Enabled bool                   `json:"enabled"`
	Config  map[string]interface{} `json:"config,omitempty"`

	// Source records install provenance ("marketplace", "local", ...).
	Source string `json:"source,omitempty"`

	InstalledAt time.Time `json:"installedAt"`

	Usage  Usage  `json:"usage"`
	Health Health `json:"health"`
}

// Clone returns a deep copy so store internals never alias caller
// state.
func (i *Installation) Clone() *Installation {
	clone := *i
	if i.Config != nil {
		clone.Config = make(map[string]interface{}, len(i.Config))
		for k, v := range i.Config {
			clone.Config[k] = v
		}
	}
	clone.Health.Issues = append([]string(nil), i.Health.Issues...)
	return &clone
}
