package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/forgehold/crucible/internal/loader"
	"github.com/forgehold/crucible/internal/registry"
)

// newEnableCmd builds either the enable or the disable command; the
// two differ only in the flag value and the lifecycle hook fired.
func newEnableCmd(v *viper.Viper, enable bool) *cobra.Command {
	use, short, hook := "enable", "Enable an installed plugin", loader.HookEnable
	if !enable {
		use, short, hook = "disable", "Disable an installed plugin", loader.HookDisable
	}

	var (
		caller  string
		project string
	)

	cmd := &cobra.Command{
		Use:   use + " <installation-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp(cmd, v)
			if err != nil {
				return err
			}
			defer application.Shutdown()

			inst, err := application.Registry.GetInstallation(args[0], caller, project)
			if err != nil {
				return err
			}
			if err := application.Registry.SetEnabled(inst.ID, enable); err != nil {
				return err
			}

			// Disabling also drops cached runtime state; stale handles
			// must not outlive the flag.
			if !enable {
				if err := application.Loader.Unload(inst); err != nil {
					application.Logger.WithError(err).Warn("unload failed")
				}
			}

			if err := application.Loader.InvokeHook(cmd.Context(), inst, hook); err != nil {
				application.Logger.WithError(err).Warn("lifecycle hook failed")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %sd\n", inst.ID, use)
			return nil
		},
	}

	cmd.Flags().StringVar(&caller, "caller", "", "caller identity")
	cmd.Flags().StringVar(&project, "project", "", "project scope")
	return cmd
}

// newUninstallCmd removes an installation. Cached runtime state is
// released first so no handle outlives its installation record.
func newUninstallCmd(v *viper.Viper) *cobra.Command {
	var (
		caller  string
		project string
	)

	cmd := &cobra.Command{
		Use:   "uninstall <installation-id>",
		Short: "Uninstall a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp(cmd, v)
			if err != nil {
				return err
			}
			defer application.Shutdown()

			inst, err := application.Registry.GetInstallation(args[0], caller, project)
			if err != nil {
				return err
			}

			if err := application.Loader.InvokeHook(cmd.Context(), inst, loader.HookUninstall); err != nil {
				application.Logger.WithError(err).Warn("uninstall hook failed")
			}
			if err := application.Loader.Unload(inst); err != nil {
				return err
			}
			if err := application.Registry.Remove(inst.ID); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s uninstalled\n", inst.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&caller, "caller", "", "caller identity")
	cmd.Flags().StringVar(&project, "project", "", "project scope")
	return cmd
}

// newHealthCmd evaluates and persists health for every visible
// installation, then prints the results.
func newHealthCmd(v *viper.Viper) *cobra.Command {
	var (
		caller  string
		project string
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check health of installed plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp(cmd, v)
			if err != nil {
				return err
			}
			defer application.Shutdown()

			if err := application.Health.CheckAll(caller, project); err != nil {
				return err
			}

			installations, err := application.Registry.ListInstallations(caller, project)
			if err != nil {
				return err
			}
			type row struct {
				InstallationID string          `json:"installationId"`
				Plugin         string          `json:"plugin"`
				Health         registry.Health `json:"health"`
				ErrorRate      float64         `json:"errorRate"`
				AverageLatency int64           `json:"averageLatencyMs"`
			}
			rows := make([]row, 0, len(installations))
			for _, inst := range installations {
				rows = append(rows, row{
					InstallationID: inst.ID,
					Plugin:         inst.ItemID,
					Health:         inst.Health,
					ErrorRate:      inst.Usage.ErrorRate(),
					AverageLatency: inst.Usage.AverageLatencyMS(),
				})
			}
			return printJSON(cmd.OutOrStdout(), rows)
		},
	}

	cmd.Flags().StringVar(&caller, "caller", "", "caller identity")
	cmd.Flags().StringVar(&project, "project", "", "project scope")
	return cmd
}
