package execution

import "time"

// Metrics captures measurable facts about one invocation. Duration is
// always populated, even on failure, so failed executions still feed
// latency and error-rate signals.
type Metrics struct {
	// Duration is wall-clock execution time measured from just before
	// backend invocation to completion, failure, or timeout.
	Duration time.Duration `json:"durationMs"`

	// MemoryBytes is peak memory used, if the backend can measure it.
	// Zero means "not measurable", not "zero bytes".
	MemoryBytes int64 `json:"memoryBytes,omitempty"`

	// TokensUsed counts AI tokens consumed through the capability
	// context during this execution.
	TokensUsed int64 `json:"tokensUsed,omitempty"`

	// CostCents is the accumulated AI cost in hundredths of a cent.
	CostCents int64 `json:"costCents,omitempty"`
}

// Result is the only artifact returned to callers. Internal sandbox
// state is never exposed through it.
type Result struct {
	Success bool `json:"success"`

	// Output is present only on success.
	Output map[string]interface{} `json:"output,omitempty"`

	// Error is present only on failure.
	Error *Error `json:"error,omitempty"`

	Metrics Metrics `json:"metrics"`
}

// Succeed builds a successful result.
func Succeed(output map[string]interface{}, m Metrics) *Result {
	return &Result{Success: true, Output: output, Metrics: m}
}

// Fail builds a failed result from an execution error.
func Fail(err *Error, m Metrics) *Result {
	return &Result{Success: false, Error: err, Metrics: m}
}
