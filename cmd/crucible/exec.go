package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/forgehold/crucible/internal/loader"
)

// newExecCmd runs one explicitly chosen installation.
func newExecCmd(v *viper.Viper) *cobra.Command {
	var (
		inputPairs []string
		inputsJSON string
		caller     string
		project    string
	)

	cmd := &cobra.Command{
		Use:   "exec <installation-id>",
		Short: "Execute an installed plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp(cmd, v)
			if err != nil {
				return err
			}
			defer application.Shutdown()

			inputs, err := parseInputs(inputPairs, inputsJSON)
			if err != nil {
				return err
			}

			res := application.Router.ExecutePlugin(cmd.Context(), args[0], inputs, loader.Scope{
				CallerID:  caller,
				ProjectID: project,
			})
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("execution failed: %s", res.Error.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&inputPairs, "input", "i", nil, "plugin input as key=value (repeatable)")
	cmd.Flags().StringVar(&inputsJSON, "inputs-json", "", "plugin inputs as a JSON object")
	cmd.Flags().StringVar(&caller, "caller", "", "caller identity")
	cmd.Flags().StringVar(&project, "project", "", "project scope")
	return cmd
}

// newRouteCmd picks and runs the best plugin for a task type.
func newRouteCmd(v *viper.Viper) *cobra.Command {
	var (
		inputPairs []string
		inputsJSON string
		caller     string
		project    string
	)

	cmd := &cobra.Command{
		Use:   "route <task-type>",
		Short: "Route a task to the best-matching plugin and execute it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp(cmd, v)
			if err != nil {
				return err
			}
			defer application.Shutdown()

			inputs, err := parseInputs(inputPairs, inputsJSON)
			if err != nil {
				return err
			}

			res := application.Router.RouteTask(cmd.Context(), args[0], inputs, loader.Scope{
				CallerID:  caller,
				ProjectID: project,
			})
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("routing failed: %s", res.Error.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&inputPairs, "input", "i", nil, "task input as key=value (repeatable)")
	cmd.Flags().StringVar(&inputsJSON, "inputs-json", "", "task inputs as a JSON object")
	cmd.Flags().StringVar(&caller, "caller", "", "caller identity")
	cmd.Flags().StringVar(&project, "project", "", "project scope")
	return cmd
}
