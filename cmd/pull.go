package cmd

import (
	"github.com/obra/boxkit/pkg/runner"
	"github.com/spf13/cobra"
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull the project's images now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd, runner.OpPull, runner.Invocation{})
	},
}

func init() {
	rootCmd.AddCommand(pullCmd)
}
