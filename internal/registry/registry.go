package registry

import (
	"errors"
	"time"

	"github.com/forgehold/crucible/internal/manifest"
)

// Errors shared by all stores.
var (
	ErrNotFound     = errors.New("registry: not found")
	ErrAccessDenied = errors.New("registry: access denied")
	ErrExists       = errors.New("registry: already exists")
)

// Registry is the manager surface the sandbox consumes. Reads scope by
// caller: an installation is visible to its owner and, when
// project-scoped, to callers in the same project.
type Registry interface {
	// GetManifest returns the validated manifest for a marketplace
	// item.
	GetManifest(itemID string) (*manifest.Manifest, error)

	// GetInstallation resolves an installation the caller may use.
	GetInstallation(installationID, callerID, projectID string) (*Installation, error)

	// ListInstallations returns the caller's installations in
	// installation order (stable, oldest first).
	ListInstallations(callerID, projectID string) ([]*Installation, error)

	// Install registers a manifest and an installation of it.
	Install(inst *Installation, m *manifest.Manifest) error

	// SetEnabled flips the enabled flag. Disabling never removes.
	SetEnabled(installationID string, enabled bool) error

	// Remove deletes an installation.
	Remove(installationID string) error

	// RecordExecution folds one execution into the installation's
	// usage counters. Failed executions count too.
	RecordExecution(installationID string, duration time.Duration, success bool, costCents int64) error

	// UpdateHealth stores a health evaluation.
	UpdateHealth(installationID string, status HealthStatus, issues []string) error
}

// visibleTo reports whether a caller may use an installation.
func visibleTo(inst *Installation, callerID, projectID string) bool {
	if inst.OwnerID == callerID {
		return true
	}
	return inst.ProjectID != "" && inst.ProjectID == projectID
}
