package registry

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/forgehold/crucible/internal/manifest"
)

// Health thresholds.
const (
	// errorRateThreshold marks an installation unhealthy once this
	// fraction of executions fail.
	errorRateThreshold = 0.5

	// minExecutionsForRate is how many executions must exist before
	// the error rate means anything.
	minExecutionsForRate = 10
)

// Checker evaluates installation health from usage counters and the
// manifest's grant. Findings flag, they never block: a warned
// installation stays invokable.
type Checker struct {
	registry Registry
	logger   *logrus.Logger
}

// NewChecker creates a health checker over a registry.
func NewChecker(reg Registry, logger *logrus.Logger) *Checker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Checker{registry: reg, logger: logger}
}

// Evaluate computes the health of one installation.
func (c *Checker) Evaluate(inst *Installation, m *manifest.Manifest) (HealthStatus, []string) {
	var issues []string
	status := HealthHealthy

	// A disabled plugin that still holds a write or delete grant is a
	// standing risk worth surfacing, though never a block.
	if !inst.Enabled && m.Permissions.AllowsFilesystemWrite() {
		issues = append(issues, "disabled installation retains a filesystem write grant")
		status = HealthWarning
	}

	if inst.Usage.ExecutionCount >= minExecutionsForRate {
		if rate := inst.Usage.ErrorRate(); rate > errorRateThreshold {
			issues = append(issues, fmt.Sprintf("error rate %.0f%% over %d executions",
				rate*100, inst.Usage.ExecutionCount))
			status = HealthError
		}
	}

	return status, issues
}

// CheckAll evaluates and persists health for every installation visible
// to the caller. Per-installation failures are logged and skipped so
// one broken record never aborts the sweep.
func (c *Checker) CheckAll(callerID, projectID string) error {
	insts, err := c.registry.ListInstallations(callerID, projectID)
	if err != nil {
		return err
	}
	for _, inst := range insts {
		m, err := c.registry.GetManifest(inst.ItemID)
		if err != nil {
			c.logger.WithFields(logrus.Fields{
				"installationId": inst.ID,
				"itemId":         inst.ItemID,
			}).WithError(err).Warn("health check: manifest unavailable")
			continue
		}
		status, issues := c.Evaluate(inst, m)
		if err := c.registry.UpdateHealth(inst.ID, status, issues); err != nil {
			c.logger.WithField("installationId", inst.ID).
				WithError(err).Warn("health check: update failed")
		}
	}
	return nil
}
