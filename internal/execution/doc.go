// Package execution defines the shared types that cross component
// boundaries in the sandbox: the per-invocation execution context, the
// structured result returned to callers, and the error taxonomy that
// distinguishes validation-time failures from runtime failures.
//
// Callers of the sandbox never see raw Go errors. Every invocation
// produces an ExecutionResult; on failure, Result.Error carries a stable
// code that UI and API layers can use to render "bad input" differently
// from "plugin crashed".
package execution
