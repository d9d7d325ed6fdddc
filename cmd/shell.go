package cmd

import (
	"github.com/obra/boxkit/pkg/runner"
	"github.com/spf13/cobra"
)

const defaultShell = "sh"

var shellService string

var shellCmd = &cobra.Command{
	Use:   "shell [flags] [shell]",
	Short: "Open an interactive shell in a project service",
	Long:  `Attach to the project's service with an interactive shell (sh unless another is given).`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		shell := defaultShell
		if len(args) == 1 {
			shell = args[0]
		}
		return execute(cmd, runner.OpRun, runner.Invocation{
			Args:    []string{shell},
			Service: shellService,
		})
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)

	shellCmd.Flags().StringVar(&shellService, "service", "", "Service to attach to")
}
