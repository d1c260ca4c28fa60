package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/forgehold/crucible/internal/loader"
	"github.com/forgehold/crucible/internal/manifest"
	"github.com/forgehold/crucible/internal/registry"
)

// newInstallCmd registers a manifest and creates an installation for
// the caller. Plugin code must already be present in the artifact
// store under <item-id>/<version>/.
func newInstallCmd(v *viper.Viper) *cobra.Command {
	var (
		itemID  string
		owner   string
		project string
		source  string
		enabled bool
	)

	cmd := &cobra.Command{
		Use:   "install <manifest.json>",
		Short: "Install a plugin from a manifest file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			m, err := manifest.Parse(raw)
			if err != nil {
				return fmt.Errorf("invalid manifest: %w", err)
			}
			if itemID == "" {
				itemID = m.Name
			}

			application, err := buildApp(cmd, v)
			if err != nil {
				return err
			}
			defer application.Shutdown()

			inst := &registry.Installation{
				ID:        uuid.NewString(),
				ItemID:    itemID,
				Version:   m.Version,
				OwnerID:   owner,
				ProjectID: project,
				Enabled:   enabled,
				Source:    source,
			}
			if err := application.Registry.Install(inst, m); err != nil {
				return err
			}

			// Hook failures are informational; the install stands.
			if err := application.Loader.InvokeHook(cmd.Context(), inst, loader.HookInstall); err != nil {
				application.Logger.WithError(err).Warn("install hook failed")
			}

			return printJSON(cmd.OutOrStdout(), inst)
		},
	}

	cmd.Flags().StringVar(&itemID, "item-id", "", "marketplace item ID (defaults to manifest name)")
	cmd.Flags().StringVar(&owner, "owner", "", "owner identity")
	cmd.Flags().StringVar(&project, "project", "", "project scope")
	cmd.Flags().StringVar(&source, "source", "local", "install provenance")
	cmd.Flags().BoolVar(&enabled, "enable", true, "enable the installation immediately")
	return cmd
}

// newListCmd prints the caller's installations.
func newListCmd(v *viper.Viper) *cobra.Command {
	var (
		caller  string
		project string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp(cmd, v)
			if err != nil {
				return err
			}
			defer application.Shutdown()

			installations, err := application.Registry.ListInstallations(caller, project)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), installations)
		},
	}

	cmd.Flags().StringVar(&caller, "caller", "", "caller identity")
	cmd.Flags().StringVar(&project, "project", "", "project scope")
	return cmd
}
