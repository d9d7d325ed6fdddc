package compose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"
	"time"
)

// interruptGrace is how long the backend gets to stop after an interrupt
// before it is killed
const interruptGrace = 10 * time.Second

// ErrNoBackend is returned when no compose-capable CLI can be found
var ErrNoBackend = errors.New("no compose-compatible CLI found (tried: docker compose, podman compose)")

// Target identifies one project for the backend
type Target struct {
	Name     string            // compose project name (-p)
	Dir      string            // project directory (--project-directory)
	Manifest string            // manifest path (-f)
	Env      map[string]string // extra environment for the backend process
}

// Client handles compose CLI interactions
type Client struct {
	cmd     []string
	verbose bool
	logger  *slog.Logger

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	lookPath func(string) (string, error)
}

// NewClient creates a client for the given compose command ("docker compose",
// "podman-compose", ...). An empty command is auto-detected.
func NewClient(command string, verbose bool, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	client := &Client{
		verbose:  verbose,
		logger:   logger,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		lookPath: exec.LookPath,
	}
	cmd, err := client.DetectCLI(command)
	if err != nil {
		return nil, err
	}
	client.cmd = cmd
	return client, nil
}

// DetectCLI finds the compose command to use
func (c *Client) DetectCLI(command string) ([]string, error) {
	if fields := strings.Fields(command); len(fields) > 0 {
		if _, err := c.lookPath(fields[0]); err != nil {
			return nil, fmt.Errorf("compose command %q not found in PATH", fields[0])
		}
		return fields, nil
	}

	// Try docker first
	if _, err := c.lookPath("docker"); err == nil {
		return []string{"docker", "compose"}, nil
	}

	// Try podman as fallback
	if _, err := c.lookPath("podman"); err == nil {
		return []string{"podman", "compose"}, nil
	}

	return nil, ErrNoBackend
}

// Command returns the compose command being used
func (c *Client) Command() string {
	return strings.Join(c.cmd, " ")
}

// Pull fetches newer images for every service of the target.
func (c *Client) Pull(ctx context.Context, t Target) error {
	status, err := c.run(ctx, t, false, pullArgs()...)
	if err != nil {
		return err
	}
	if status != 0 {
		return fmt.Errorf("%s pull exited with status %d", c.Command(), status)
	}
	return nil
}

// Up starts the target's services in the background and returns the
// backend's exit status.
func (c *Client) Up(ctx context.Context, t Target) (int, error) {
	return c.run(ctx, t, false, upArgs()...)
}

// Down stops and removes the target's services.
func (c *Client) Down(ctx context.Context, t Target) (int, error) {
	return c.run(ctx, t, false, downArgs()...)
}

// Exec runs command inside service with the terminal attached.
func (c *Client) Exec(ctx context.Context, t Target, service string, command []string, tty bool) (int, error) {
	return c.run(ctx, t, true, execArgs(service, command, tty)...)
}

// Logs streams service logs.
func (c *Client) Logs(ctx context.Context, t Target, follow bool, services ...string) (int, error) {
	return c.run(ctx, t, false, logsArgs(follow, services)...)
}

// Args returns the full argument list for a backend invocation on t.
func (c *Client) Args(t Target, args ...string) []string {
	full := append([]string{}, c.cmd[1:]...)
	full = append(full, targetArgs(t)...)
	return append(full, args...)
}

func (c *Client) run(ctx context.Context, t Target, interactive bool, args ...string) (int, error) {
	full := c.Args(t, args...)
	cmd := exec.CommandContext(ctx, c.cmd[0], full...)
	// Let compose stop its containers cleanly on Ctrl-C instead of SIGKILL
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = interruptGrace
	cmd.Dir = t.Dir
	cmd.Env = mergeEnv(os.Environ(), t.Env)
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	if interactive {
		cmd.Stdin = c.Stdin
	}

	if c.verbose {
		fmt.Fprintf(c.Stderr, "+ %s %s\n", c.cmd[0], strings.Join(full, " "))
	}
	c.logger.Debug("invoking backend", "command", c.cmd[0], "args", full, "dir", t.Dir)

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitStatus(exitErr.ProcessState), nil
	}
	return -1, fmt.Errorf("failed to run %s: %w", c.Command(), err)
}

// exitStatus follows the shell convention of 128+signal for a backend
// killed by a signal
func exitStatus(state *os.ProcessState) int {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}

func targetArgs(t Target) []string {
	var args []string
	if t.Name != "" {
		args = append(args, "-p", t.Name)
	}
	if t.Manifest != "" {
		args = append(args, "-f", t.Manifest)
	}
	if t.Dir != "" {
		args = append(args, "--project-directory", t.Dir)
	}
	return args
}

func pullArgs() []string {
	return []string{"pull", "--ignore-pull-failures"}
}

func upArgs() []string {
	return []string{"up", "--detach", "--remove-orphans"}
}

func downArgs() []string {
	return []string{"down", "--remove-orphans"}
}

func execArgs(service string, command []string, tty bool) []string {
	args := []string{"exec"}
	if !tty {
		args = append(args, "-T")
	}
	args = append(args, service)
	return append(args, command...)
}

func logsArgs(follow bool, services []string) []string {
	args := []string{"logs"}
	if follow {
		args = append(args, "--follow")
	}
	return append(args, services...)
}

// mergeEnv overlays extra onto base, keeping base order and appending new
// keys sorted so invocations are reproducible.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]bool, len(extra))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if v, ok := extra[key]; ok {
			out = append(out, key+"="+v)
			seen[key] = true
			continue
		}
		out = append(out, kv)
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}
	return out
}
