package cmd

import (
	"github.com/obra/boxkit/pkg/runner"
	"github.com/spf13/cobra"
)

var (
	runService string
	runNoTTY   bool
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- command [args...]",
	Short: "Run a command in a project service",
	Long: `Refresh images and the boxkit install if they are due, then execute the
command inside the project's service. The command's exit status becomes
boxkit's exit status.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd, runner.OpRun, runner.Invocation{
			Args:    args,
			Service: runService,
			NoTTY:   runNoTTY,
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Disable flag parsing after first positional arg (the command to run)
	runCmd.Flags().SetInterspersed(false)

	runCmd.Flags().StringVar(&runService, "service", "", "Service to run in (default: x-boxkit.service or app)")
	runCmd.Flags().BoolVarP(&runNoTTY, "no-tty", "T", false, "Do not allocate a TTY")
}
