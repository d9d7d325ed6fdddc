package cmd

import (
	"github.com/obra/boxkit/pkg/runner"
	"github.com/spf13/cobra"
)

var downAll bool

var downCmd = &cobra.Command{
	Use:   "down [flags]",
	Short: "Stop services",
	Long: `Stop the project in the current directory. Outside a project, or with
--all, stop every project boxkit has started. Projects that no longer exist
are skipped; a failure in one project does not stop the others.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd, runner.OpDown, runner.Invocation{All: downAll})
	},
}

func init() {
	rootCmd.AddCommand(downCmd)

	downCmd.Flags().BoolVar(&downAll, "all", false, "Stop every known project")
}
