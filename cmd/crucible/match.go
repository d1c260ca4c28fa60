package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/forgehold/crucible/internal/loader"
	"github.com/forgehold/crucible/internal/router"
)

// newMatchCmd ranks installed plugins against task requirements
// without executing anything.
func newMatchCmd(v *viper.Viper) *cobra.Command {
	var (
		tags       []string
		inputPairs []string
		outputs    []string
		caller     string
		project    string
	)

	cmd := &cobra.Command{
		Use:   "match <category>",
		Short: "Rank installed plugins for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp(cmd, v)
			if err != nil {
				return err
			}
			defer application.Shutdown()

			inputs, err := parseInputs(inputPairs, "")
			if err != nil {
				return err
			}

			matches, err := application.Router.MatchTask(router.TaskRequirements{
				Category:        args[0],
				Tags:            tags,
				Inputs:          inputs,
				ExpectedOutputs: outputs,
			}, loader.Scope{CallerID: caller, ProjectID: project})
			if err != nil {
				return err
			}

			type row struct {
				InstallationID string  `json:"installationId"`
				Plugin         string  `json:"plugin"`
				Version        string  `json:"version"`
				Score          float64 `json:"score"`
			}
			rows := make([]row, 0, len(matches))
			for _, m := range matches {
				rows = append(rows, row{
					InstallationID: m.Installation.ID,
					Plugin:         m.Manifest.Name,
					Version:        m.Manifest.Version,
					Score:          m.Score,
				})
			}
			return printJSON(cmd.OutOrStdout(), rows)
		},
	}

	cmd.Flags().StringArrayVar(&tags, "tag", nil, "required tag (repeatable)")
	cmd.Flags().StringArrayVarP(&inputPairs, "input", "i", nil, "available input as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&outputs, "output", nil, "expected output name (repeatable)")
	cmd.Flags().StringVar(&caller, "caller", "", "caller identity")
	cmd.Flags().StringVar(&project, "project", "", "project scope")
	return cmd
}
