// Package aiservice provides the AI collaborator consumed by the
// capability context. Plugin code never reaches a provider directly;
// every call passes through the context's permission check first and
// reports token usage back into execution metrics.
package aiservice

import (
	"context"
	"errors"
	"fmt"
)

// Service is the narrow AI surface exposed to the sandbox.
type Service interface {
	// Generate produces text from a prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, Usage, error)

	// Analyze inspects content and returns a structured result.
	Analyze(ctx context.Context, content string, opts AnalyzeOptions) (Analysis, Usage, error)
}

// GenerateOptions tune a generation call. Zero values mean provider
// defaults.
type GenerateOptions struct {
	Model       string
	System      string
	MaxTokens   int64
	Temperature float64
}

// AnalyzeOptions tune an analysis call.
type AnalyzeOptions struct {
	Model string

	// Task names the kind of analysis, e.g. "code-review", "summary".
	Task string
}

// Analysis is the structured result of an Analyze call.
type Analysis struct {
	Summary  string    `json:"summary"`
	Findings []Finding `json:"findings,omitempty"`
}

// Finding is one issue raised by an analysis.
type Finding struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Location string `json:"location,omitempty"`
}

// Usage reports token consumption for one call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64

	// CostCents is the estimated cost in hundredths of a cent.
	CostCents int64
}

// Total returns the combined token count.
func (u Usage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}

// Add accumulates another usage record.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CostCents += other.CostCents
}

// Provider names accepted by New.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// Config selects and configures a provider.
type Config struct {
	Provider string
	APIKey   string

	// Model is the default model; per-call options may override it.
	Model string
}

// Errors.
var (
	ErrNotConfigured   = errors.New("aiservice: no provider configured")
	ErrUnknownProvider = errors.New("aiservice: unknown provider")
	ErrMissingAPIKey   = errors.New("aiservice: api key is required")
	ErrEmptyResponse   = errors.New("aiservice: provider returned no content")
)

// New builds a Service for the configured provider.
func New(ctx context.Context, cfg Config) (Service, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	switch cfg.Provider {
	case ProviderAnthropic:
		return newAnthropic(cfg), nil
	case ProviderOpenAI:
		return newOpenAI(cfg), nil
	case ProviderGemini:
		return newGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// Disabled is a Service that rejects every call. Used when no AI
// provider is configured so the capability context can still be built;
// plugins without an AI grant never notice.
type Disabled struct{}

// Generate always fails with ErrNotConfigured.
func (Disabled) Generate(context.Context, string, GenerateOptions) (string, Usage, error) {
	return "", Usage{}, ErrNotConfigured
}

// Analyze always fails with ErrNotConfigured.
func (Disabled) Analyze(context.Context, string, AnalyzeOptions) (Analysis, Usage, error) {
	return Analysis{}, Usage{}, ErrNotConfigured
}

// analysisSystemPrompt instructs a chat model to emit the Analysis JSON
// shape. Shared by providers that implement Analyze over their
// generation endpoint.
const analysisSystemPrompt = `You are a code and content analyzer. ` +
	`Respond with a single JSON object of the form ` +
	`{"summary": string, "findings": [{"severity": "info"|"warning"|"error", ` +
	`"message": string, "location": string}]}. No prose outside the JSON.`
