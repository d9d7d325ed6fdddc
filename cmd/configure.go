package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/obra/boxkit/pkg/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errNotTerminal = errors.New("configure needs an interactive terminal; edit the config file instead")

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Edit boxkit configuration",
	Long: `Interactive configuration editor for boxkit settings.

Edits the refresh interval, cache retention, compose command and automatic
refresh toggles. Settings not shown in the form are preserved.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("%w (%s)", errNotTerminal, config.GetConfigPath())
		}
		return runInteractiveConfigure(cmd)
	},
}

func runInteractiveConfigure(cmd *cobra.Command) error {
	configPath := config.GetConfigPath()

	if rootVerbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "Editing config: %s\n", configPath)
	}

	// Only the file's own settings; env overrides and derived paths stay out
	cfg, err := config.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load existing config: %w", err)
	}

	save, err := config.EditInteractive(cfg)
	if err != nil {
		return err
	}
	if !save {
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration not saved")
		return nil
	}

	if err := config.SaveFile(cfg, configPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration saved to %s\n", configPath)
	return nil
}

func init() {
	rootCmd.AddCommand(configureCmd)
}
