package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/forgehold/crucible/internal/app"
)

// newRootCmd builds the `crucible` command tree. Flags bind to viper
// so every option is also settable via CRUCIBLE_* environment
// variables or a config file.
func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "crucible",
		Short: "crucible runs sandboxed plugins",
		Long: `crucible manages and executes sandboxed plugins.

Plugins declare their runtime, interface, and permissions in a
manifest; crucible validates the manifest, builds a capability
context from the declared grant, and runs the plugin in an isolated
Lua or JavaScript VM or a container.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			return loadConfig(v)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "path to config file")
	flags.String("data-dir", defaultDataDir(), "registry database directory")
	flags.String("artifacts-dir", defaultArtifactsDir(), "plugin artifact directory")
	flags.String("workspaces-dir", "", "base directory for project workspaces")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "emit logs as JSON")
	flags.String("ai-provider", "", "AI provider (anthropic, openai, gemini)")
	flags.String("ai-api-key", "", "AI provider API key")
	flags.String("ai-model", "", "AI model override")
	flags.String("container-binary", "", "container CLI binary (default docker)")
	flags.Int64("max-containers", 0, "max concurrent container executions")

	root.AddCommand(
		newExecCmd(v),
		newRouteCmd(v),
		newMatchCmd(v),
		newInstallCmd(v),
		newListCmd(v),
		newEnableCmd(v, true),
		newEnableCmd(v, false),
		newUninstallCmd(v),
		newHealthCmd(v),
	)
	return root
}

// loadConfig layers an optional config file under environment
// variables and flags. Missing files are only an error when named
// explicitly.
func loadConfig(v *viper.Viper) error {
	v.SetEnvPrefix("CRUCIBLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		return v.ReadInConfig()
	}

	v.SetConfigName("crucible")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/crucible")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// buildApp assembles the sandbox from the resolved configuration.
func buildApp(cmd *cobra.Command, v *viper.Viper) (*app.Application, error) {
	return app.New(cmd.Context(), app.Options{
		DataDir:         v.GetString("data-dir"),
		ArtifactsDir:    v.GetString("artifacts-dir"),
		WorkspacesDir:   v.GetString("workspaces-dir"),
		LogLevel:        v.GetString("log-level"),
		LogJSON:         v.GetBool("log-json"),
		AIProvider:      v.GetString("ai-provider"),
		AIAPIKey:        v.GetString("ai-api-key"),
		AIModel:         v.GetString("ai-model"),
		ContainerBinary: v.GetString("container-binary"),
		MaxContainers:   v.GetInt64("max-containers"),
	})
}
