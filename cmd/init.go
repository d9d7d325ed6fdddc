package cmd

import (
	"github.com/obra/boxkit/pkg/runner"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init <type> [flags]",
	Short: "Create a project from a template",
	Long: `Copy the named template into the project directory. An existing
manifest is only overwritten with --force, which is also how an outdated
project is brought up to the current template version.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd, runner.OpInit, runner.Invocation{Args: args, Force: initForce})
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing project manifest")
}
