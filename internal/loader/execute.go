package loader

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/forgehold/crucible/internal/execution"
	"github.com/forgehold/crucible/internal/registry"
)

// Scope carries caller identity into one execution.
type Scope struct {
	CallerID  string
	ProjectID string
	SessionID string
}

// Execute runs one plugin invocation end to end and always returns a
// structured result - callers never see a raw error. Duration is
// measured on every path, and the outcome is folded into the
// installation's usage counters before returning.
func (ld *Loader) Execute(ctx context.Context, inst *registry.Installation, inputs map[string]interface{}, scope Scope) *execution.Result {
	executionID := uuid.NewString()
	ld.transition(executionID, StatePending)

	result := ld.execute(ctx, executionID, inst, inputs, scope)

	if err := ld.registry.RecordExecution(inst.ID, result.Metrics.Duration, result.Success, result.Metrics.CostCents); err != nil {
		ld.logger.WithField("installationId", inst.ID).
			WithError(err).Warn("recording execution metrics failed")
	}
	return result
}

func (ld *Loader) execute(ctx context.Context, executionID string, inst *registry.Installation, inputs map[string]interface{}, scope Scope) *execution.Result {
	// Validating: manifest and inputs. A failure here never starts a
	// runtime and is reported as a validation error.
	ld.transition(executionID, StateValidating)

	m, err := ld.registry.GetManifest(inst.ItemID)
	if err != nil {
		ld.transition(executionID, StateFailed)
		return execution.Fail(execution.WrapError(execution.CodeLoad, err), execution.Metrics{})
	}
	if err := m.Validate(); err != nil {
		ld.transition(executionID, StateFailed)
		return execution.Fail(execution.WrapError(execution.CodeManifestValidation, err), execution.Metrics{})
	}

	inputs = m.ApplyDefaults(inputs)
	if err := m.ValidateInputs(inputs); err != nil {
		ld.transition(executionID, StateFailed)
		return execution.Fail(execution.WrapError(execution.CodeInputValidation, err), execution.Metrics{})
	}

	// ContextBuilt: the grant comes from the manifest, never from the
	// caller.
	ec := execution.Context{
		ExecutionID:    executionID,
		PluginID:       inst.ItemID,
		InstallationID: inst.ID,
		CallerID:       scope.CallerID,
		ProjectID:      scope.ProjectID,
		SessionID:      scope.SessionID,
		Inputs:         inputs,
		Grant:          m.Permissions.Clone(),
	}
	caps := ld.caps.Build(ec, ld.projectRoot(scope.ProjectID))
	ld.transition(executionID, StateContextBuilt)

	loaded, err := ld.Load(inst)
	if err != nil {
		ld.transition(executionID, StateFailed)
		return execution.Fail(execution.WrapError(execution.CodeLoad, err), execution.Metrics{})
	}

	// Running: wall-clock start recorded before backend invocation;
	// the manifest timeout is the only cancellation mechanism.
	ld.transition(executionID, StateRunning)
	runCtx, cancel := context.WithTimeout(ctx, loaded.Manifest.Timeout())
	defer cancel()

	start := time.Now()
	output, runErr := loaded.Handle.Run(runCtx, caps, ec)
	metrics := execution.Metrics{Duration: time.Since(start)}

	usage := caps.Usage()
	metrics.TokensUsed = usage.Total()
	metrics.CostCents = usage.CostCents

	if runErr != nil {
		execErr := classify(runCtx, runErr)
		if execErr.Code == execution.CodeTimeout {
			ld.transition(executionID, StateTimedOut)
		} else {
			ld.transition(executionID, StateFailed)
		}
		ld.logger.WithFields(logrus.Fields{
			"executionId": executionID,
			"pluginId":    inst.ItemID,
			"code":        execErr.Code,
			"durationMs":  metrics.Duration.Milliseconds(),
		}).Warn("execution failed")
		return execution.Fail(execErr, metrics)
	}

	ld.transition(executionID, StateCompleted)
	ld.logger.WithFields(logrus.Fields{
		"executionId": executionID,
		"pluginId":    inst.ItemID,
		"durationMs":  metrics.Duration.Milliseconds(),
	}).Info("execution completed")
	return execution.Succeed(output, metrics)
}

// classify maps a backend failure onto the taxonomy, preferring codes
// the backend already attached.
func classify(runCtx context.Context, err error) *execution.Error {
	var ee *execution.Error
	if errors.As(err, &ee) {
		return ee
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return execution.NewError(execution.CodeTimeout, "execution deadline exceeded")
	}
	return execution.WrapError(execution.CodeBackend, err)
}
