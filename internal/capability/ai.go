package capability

import (
	"context"

	"github.com/forgehold/crucible/internal/aiservice"
	"github.com/forgehold/crucible/internal/execution"
	"github.com/forgehold/crucible/internal/manifest"
)

// AI exposes the AI collaborator to plugin code. Token usage from every
// call accumulates into the execution's metrics.
type AI struct {
	ctx     *Context
	service aiservice.Service
}

// Generate produces text from a prompt. Requires the "generate" AI
// grant.
func (a *AI) Generate(ctx context.Context, prompt string, opts aiservice.GenerateOptions) (string, error) {
	op := manifest.Operation{Type: manifest.OpAI, Action: manifest.ActionAccess, Resource: "generate"}
	if err := a.ctx.check(op); err != nil {
		return "", err
	}
	a.ctx.recordEgress(op)

	text, usage, err := a.service.Generate(ctx, prompt, opts)
	a.ctx.addUsage(usage)
	if err != nil {
		return "", execution.WrapError(execution.CodeBackend, err)
	}
	return text, nil
}

// Analyze inspects content and returns a structured result. Requires
// the "analyze" AI grant.
func (a *AI) Analyze(ctx context.Context, content string, opts aiservice.AnalyzeOptions) (aiservice.Analysis, error) {
	op := manifest.Operation{Type: manifest.OpAI, Action: manifest.ActionAccess, Resource: "analyze"}
	if err := a.ctx.check(op); err != nil {
		return aiservice.Analysis{}, err
	}
	a.ctx.recordEgress(op)

	result, usage, err := a.service.Analyze(ctx, content, opts)
	a.ctx.addUsage(usage)
	if err != nil {
		return aiservice.Analysis{}, execution.WrapError(execution.CodeBackend, err)
	}
	return result, nil
}
