package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/obra/boxkit/pkg/compose"
	"github.com/obra/boxkit/pkg/config"
	"github.com/obra/boxkit/pkg/drift"
	"github.com/obra/boxkit/pkg/registry"
	"github.com/obra/boxkit/pkg/runner"
	"github.com/obra/boxkit/pkg/scheduler"
	"github.com/obra/boxkit/pkg/selfupdate"
	"github.com/obra/boxkit/pkg/staleness"
	"github.com/spf13/cobra"
)

// registryFile is the project registry's name inside the cache root
const registryFile = "projects"

var (
	rootPath    string
	rootVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "boxkit",
	Short: "Manage compose-based development environments",
	Long: `Boxkit scaffolds projects from shipped compose templates and drives
their containers. Before starting a project it refreshes images and its own
install when they are older than the configured interval, and warns when the
project's template has moved on.`,
}

// ExitError carries a backend exit status that should become the process
// exit code without an extra message.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Execute runs the command tree
func Execute(ctx context.Context) error {
	// Silence usage and errors; main decides how to report them
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	return rootCmd.ExecuteContext(ctx)
}

// ExitCode maps an Execute error to a process exit code. Backend statuses
// outside the portable range collapse to 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 && exitErr.Code < 256 {
		return exitErr.Code
	}
	return 1
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if rootVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// needsBackend lists operations that talk to the compose CLI
func needsBackend(op runner.Operation) bool {
	switch op {
	case runner.OpUp, runner.OpDown, runner.OpRun, runner.OpLogs, runner.OpPull, runner.OpRefresh:
		return true
	}
	return false
}

// newRunner wires every component from the loaded configuration
func newRunner(cmd *cobra.Command, op runner.Operation) (*runner.Runner, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger()

	var backend runner.Backend
	var images scheduler.ImageRefresher
	if needsBackend(op) {
		client, err := compose.NewClient(cfg.ComposeCommand, rootVerbose, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize compose: %w", err)
		}
		backend = client
		images = runner.ImageRefresher(cfg, client)
	}

	detector := drift.New(cfg.InstallRoot)
	sched := scheduler.New(
		staleness.New(cfg.CacheRoot),
		images,
		selfupdate.New(cfg.InstallRoot, cfg.UpdateRemote),
		detector,
		scheduler.Options{
			Interval:            cfg.Interval(),
			Retention:           cfg.Retention(),
			DisableImageRefresh: !cfg.AutoRefreshImages,
			DisableSelfUpdate:   !cfg.SelfUpdate,
		},
		logger,
	)

	return runner.New(runner.Deps{
		Config:        cfg,
		Backend:       backend,
		Scheduler:     sched,
		Registry:      registry.New(filepath.Join(cfg.CacheRoot, registryFile)),
		Detector:      detector,
		Logger:        logger,
		Out:           cmd.OutOrStdout(),
		FormatVerdict: renderVerdict,
	}), nil
}

// execute runs op through a freshly wired runner and turns a non-zero
// status into an ExitError
func execute(cmd *cobra.Command, op runner.Operation, inv runner.Invocation) error {
	if inv.Dir == "" {
		inv.Dir = rootPath
	}
	r, err := newRunner(cmd, op)
	if err != nil {
		return err
	}
	status, err := r.Execute(cmd.Context(), op, inv)
	if err != nil {
		return err
	}
	if status != 0 {
		return &ExitError{Code: status}
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootPath, "path", "", "Project path (default: pwd)")
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Show backend commands and debug logs")
}
