package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/obra/boxkit/pkg/config"
	"github.com/obra/boxkit/pkg/drift"
	"github.com/obra/boxkit/pkg/runner"
	"github.com/spf13/cobra"
)

var statusWatch bool

var (
	upToDateStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	outdatedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	unknownStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

var statusCmd = &cobra.Command{
	Use:   "status [flags]",
	Short: "Show whether the project's template is current",
	Long: `Compare the template version recorded in the project's manifest with the
template shipped in the boxkit install. With --watch, keep reporting as
either manifest changes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !statusWatch {
			return execute(cmd, runner.OpStatus, runner.Invocation{})
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		dir := rootPath
		if dir == "" {
			dir = "."
		}
		out := cmd.OutOrStdout()
		return drift.New(cfg.InstallRoot).Watch(cmd.Context(), dir, func(v drift.Verdict) {
			fmt.Fprintln(out, renderVerdict(v))
		})
	},
}

// renderVerdict colours a verdict by state
func renderVerdict(v drift.Verdict) string {
	switch v.State {
	case drift.UpToDate:
		return upToDateStyle.Render("✓ " + v.String())
	case drift.Outdated:
		return outdatedStyle.Render("⚠ " + v.String())
	default:
		return unknownStyle.Render("? " + v.String())
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Keep watching for manifest changes")
}
