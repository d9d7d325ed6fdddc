package cmd

import (
	"github.com/obra/boxkit/pkg/runner"
	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects started with boxkit",
	Long:  `Display every project directory boxkit has started, marking ones that are gone or have lost their manifest.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd, runner.OpProjects, runner.Invocation{})
	},
}

func init() {
	rootCmd.AddCommand(projectsCmd)
}
