package execution

import (
	"github.com/forgehold/crucible/internal/manifest"
)

// Context is the ephemeral per-invocation execution context. It is
// created for one call and never persisted beyond the execution log
// entry.
type Context struct {
	// ExecutionID uniquely identifies this invocation.
	ExecutionID string `json:"executionId"`

	// PluginID is the marketplace item being executed.
	PluginID string `json:"pluginId"`

	// InstallationID binds the invocation to a specific installation.
	InstallationID string `json:"installationId"`

	// CallerID identifies who triggered the execution.
	CallerID string `json:"callerId"`

	// ProjectID scopes filesystem access, when set.
	ProjectID string `json:"projectId,omitempty"`

	// SessionID groups related invocations, when set.
	SessionID string `json:"sessionId,omitempty"`

	// Inputs is the raw input map as supplied by the caller, after
	// defaults have been applied.
	Inputs map[string]interface{} `json:"inputs"`

	// Grant is a copy of the manifest's permission grant. It is taken
	// from the manifest, never from the caller.
	Grant manifest.PermissionSet `json:"permissions"`
}
