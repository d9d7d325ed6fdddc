package cmd

import (
	"github.com/obra/boxkit/pkg/runner"
	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh images and the boxkit install now",
	Long:  `Pull the project's images and update the boxkit install regardless of when they were last refreshed.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd, runner.OpRefresh, runner.Invocation{})
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
