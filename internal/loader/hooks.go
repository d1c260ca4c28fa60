package loader

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/forgehold/crucible/internal/execution"
	"github.com/forgehold/crucible/internal/registry"
)

// HookEvent names a lifecycle transition with an optional plugin hook.
type HookEvent string

// Lifecycle hook events.
const (
	HookInstall   HookEvent = "install"
	HookUninstall HookEvent = "uninstall"
	HookEnable    HookEvent = "enable"
	HookDisable   HookEvent = "disable"
	HookUpdate    HookEvent = "update"
)

// InvokeHook runs the plugin's hook for a lifecycle event, if the
// manifest declares one. The hook executes under the same sandbox and
// grant as a normal run. The returned error is informational: lifecycle
// operations log hook failures but proceed regardless.
func (ld *Loader) InvokeHook(ctx context.Context, inst *registry.Installation, event HookEvent) error {
	m, err := ld.registry.GetManifest(inst.ItemID)
	if err != nil {
		return execution.WrapError(execution.CodeLoad, err)
	}

	var entry string
	switch event {
	case HookInstall:
		entry = m.Hooks.Install
	case HookUninstall:
		entry = m.Hooks.Uninstall
	case HookEnable:
		entry = m.Hooks.Enable
	case HookDisable:
		entry = m.Hooks.Disable
	case HookUpdate:
		entry = m.Hooks.Update
	}
	if entry == "" {
		return nil
	}

	backend, err := ld.backends.Select(m)
	if err != nil {
		return err
	}

	hookManifest := m.Clone()
	hookManifest.EntryPoint = entry
	source, err := ld.artifacts.LoadEntryPointCode(inst, hookManifest)
	if err != nil {
		return execution.WrapError(execution.CodeLoad, err)
	}

	handle, err := backend.Prepare(hookManifest, source)
	if err != nil {
		return execution.WrapError(execution.CodeLoad, err)
	}
	defer handle.Close()

	ec := execution.Context{
		ExecutionID:    uuid.NewString(),
		PluginID:       inst.ItemID,
		InstallationID: inst.ID,
		Inputs: map[string]interface{}{
			"event":  string(event),
			"config": inst.Config,
		},
		Grant: m.Permissions.Clone(),
	}
	caps := ld.caps.Build(ec, ld.projectRoot(inst.ProjectID))

	runCtx, cancel := context.WithTimeout(ctx, m.Timeout())
	defer cancel()

	if _, err := handle.Run(runCtx, caps, ec); err != nil {
		ld.logger.WithFields(logrus.Fields{
			"installationId": inst.ID,
			"event":          event,
		}).WithError(err).Warn("lifecycle hook failed")
		return err
	}
	return nil
}
