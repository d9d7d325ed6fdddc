package cmd

import (
	"github.com/obra/boxkit/pkg/runner"
	"github.com/spf13/cobra"
)

var logsFollow bool

var logsCmd = &cobra.Command{
	Use:   "logs [flags] [service]",
	Short: "Show service logs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inv := runner.Invocation{Follow: logsFollow}
		if len(args) == 1 {
			inv.Service = args[0]
		}
		return execute(cmd, runner.OpLogs, inv)
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
}
