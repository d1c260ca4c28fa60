// Package router selects plugins for tasks by deterministic scoring
// and delegates execution to the loader. Matching is read-only;
// routing executes the winner.
package router

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/forgehold/crucible/internal/execution"
	"github.com/forgehold/crucible/internal/loader"
	"github.com/forgehold/crucible/internal/manifest"
	"github.com/forgehold/crucible/internal/registry"
)

// TaskRequirements describes what a task needs from a plugin.
type TaskRequirements struct {
	// Category is matched exactly against the manifest category.
	Category string

	// Tags add score for each tag the manifest shares.
	Tags []string

	// Inputs are the values the caller can supply, keyed by name.
	// Score favors plugins whose declared inputs are covered.
	Inputs map[string]interface{}

	// ExpectedOutputs are output names the caller wants back.
	ExpectedOutputs []string
}

// PluginMatch is one ranked candidate.
type PluginMatch struct {
	Installation *registry.Installation
	Manifest     *manifest.Manifest
	Score        float64
}

// Router ranks installed plugins against task requirements.
type Router struct {
	registry registry.Registry
	loader   *loader.Loader
	logger   *logrus.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router's logger.
func WithLogger(l *logrus.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New creates a Router over a registry and a loader.
func New(reg registry.Registry, ld *loader.Loader, opts ...Option) *Router {
	r := &Router{
		registry: reg,
		loader:   ld,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MatchTask ranks enabled installations visible to the caller against
// the requirements. Candidates with no positive score are dropped.
// Ordering is deterministic: score, then usage count, then last-used,
// then installation order.
func (r *Router) MatchTask(req TaskRequirements, scope loader.Scope) ([]PluginMatch, error) {
	installations, err := r.registry.ListInstallations(scope.CallerID, scope.ProjectID)
	if err != nil {
		return nil, execution.WrapError(execution.CodeRouting, err)
	}

	var matches []PluginMatch
	for _, inst := range installations {
		if !inst.Enabled {
			continue
		}
		m, err := r.registry.GetManifest(inst.ItemID)
		if err != nil {
			r.logger.WithField("itemId", inst.ItemID).
				WithError(err).Warn("skipping installation with unresolvable manifest")
			continue
		}
		s := score(req, m)
		if s <= 0 {
			continue
		}
		matches = append(matches, PluginMatch{Installation: inst, Manifest: m, Score: s})
	}

	// Stable sort keeps installation order as the final tie-break.
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Installation.Usage.ExecutionCount != b.Installation.Usage.ExecutionCount {
			return a.Installation.Usage.ExecutionCount > b.Installation.Usage.ExecutionCount
		}
		if !a.Installation.Usage.LastUsed.Equal(b.Installation.Usage.LastUsed) {
			return a.Installation.Usage.LastUsed.After(b.Installation.Usage.LastUsed)
		}
		return false
	})
	return matches, nil
}

// RouteTask executes the best-matching plugin for a task type. Zero
// matches is a routing error, not a silent no-op.
func (r *Router) RouteTask(ctx context.Context, taskType string, inputs map[string]interface{}, scope loader.Scope) *execution.Result {
	req := TaskRequirements{Category: taskType, Inputs: inputs}
	matches, err := r.MatchTask(req, scope)
	if err != nil {
		return execution.Fail(execution.WrapError(execution.CodeRouting, err), execution.Metrics{})
	}
	if len(matches) == 0 {
		return execution.Fail(
			execution.NewError(execution.CodeRouting, "no plugin found for task type %s", taskType),
			execution.Metrics{})
	}

	winner := matches[0]
	r.logger.WithFields(logrus.Fields{
		"taskType":       taskType,
		"installationId": winner.Installation.ID,
		"score":          winner.Score,
	}).Debug("task routed")
	return r.loader.Execute(ctx, winner.Installation, inputs, scope)
}

// ExecutePlugin runs an explicitly chosen installation, resolving it
// through the registry's access scoping first. The enabled flag only
// gates matching and event dispatch; a disabled installation remains
// directly invokable (disabling is not removal), and its lingering
// grants surface through the health checker instead.
func (r *Router) ExecutePlugin(ctx context.Context, installationID string, inputs map[string]interface{}, scope loader.Scope) *execution.Result {
	inst, err := r.registry.GetInstallation(installationID, scope.CallerID, scope.ProjectID)
	if err != nil {
		return execution.Fail(execution.WrapError(execution.CodeRouting, err), execution.Metrics{})
	}
	return r.loader.Execute(ctx, inst, inputs, scope)
}
