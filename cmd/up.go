package cmd

import (
	"github.com/obra/boxkit/pkg/runner"
	"github.com/spf13/cobra"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the project's services",
	Long: `Refresh images and the boxkit install if they are due, report template
drift, then start the project's services in the background. Successfully
started projects are remembered for 'boxkit down'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd, runner.OpUp, runner.Invocation{})
	},
}

func init() {
	rootCmd.AddCommand(upCmd)
}
