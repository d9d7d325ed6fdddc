// Package runner executes boxkit operations against a project. Every
// collaborator arrives through Deps so commands and tests wire the same code.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/obra/boxkit/pkg/compose"
	"github.com/obra/boxkit/pkg/config"
	"github.com/obra/boxkit/pkg/drift"
	"github.com/obra/boxkit/pkg/manifest"
	"github.com/obra/boxkit/pkg/project"
	"github.com/obra/boxkit/pkg/registry"
	"github.com/obra/boxkit/pkg/scaffold"
	"github.com/obra/boxkit/pkg/scheduler"
)

// ToolKey is the staleness key for the self-update action
const ToolKey = "self-update"

// DefaultService is used by run when neither the invocation nor the
// manifest names a service
const DefaultService = "app"

// serviceKey lets a manifest pick the service run and shell attach to
const serviceKey = "x-boxkit.service"

// Backend is the container tooling boxkit drives
type Backend interface {
	Pull(ctx context.Context, t compose.Target) error
	Up(ctx context.Context, t compose.Target) (int, error)
	Down(ctx context.Context, t compose.Target) (int, error)
	Exec(ctx context.Context, t compose.Target, service string, command []string, tty bool) (int, error)
	Logs(ctx context.Context, t compose.Target, follow bool, services ...string) (int, error)
}

var _ Backend = (*compose.Client)(nil)

// Maintainer runs the periodic refresh before up and run
type Maintainer interface {
	MaybeRefresh(ctx context.Context, req scheduler.Request) scheduler.Report
	Force(ctx context.Context, req scheduler.Request) scheduler.Report
}

var _ Maintainer = (*scheduler.Scheduler)(nil)

// Deps are the collaborators a Runner works with
type Deps struct {
	Config    *config.Config
	Backend   Backend
	Scheduler Maintainer
	Registry  *registry.Registry
	Detector  scheduler.DriftChecker
	Logger    *slog.Logger
	Out       io.Writer

	// FormatVerdict renders status output; nil prints Verdict.String()
	FormatVerdict func(drift.Verdict) string
}

// Invocation carries the per-call arguments of an operation
type Invocation struct {
	Dir     string
	Args    []string
	Force   bool
	Follow  bool
	Service string
	All     bool
	NoTTY   bool
}

// Result is the outcome of tearing down one registered project
type Result struct {
	Path    string
	Status  int
	Err     error
	Skipped bool
	Reason  string
}

// TeardownReport lists what teardown-all did for each known project
type TeardownReport struct {
	Results []Result
	Status  int
}

// Runner executes operations
type Runner struct {
	deps Deps
}

// New creates a runner. A nil logger discards, a nil writer prints to stdout.
func New(deps Deps) *Runner {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.Config == nil {
		deps.Config = config.Default()
	}
	return &Runner{deps: deps}
}

// Execute runs op and returns the exit status to report. Backend statuses
// pass through unchanged; user errors map to 1.
func (r *Runner) Execute(ctx context.Context, op Operation, inv Invocation) (int, error) {
	r.deps.Logger.Debug("executing operation", "op", op.String(), "dir", inv.Dir)

	switch op {
	case OpInit:
		return r.init(inv)
	case OpUp:
		return r.up(ctx, inv)
	case OpDown:
		return r.down(ctx, inv)
	case OpRun:
		return r.run(ctx, inv)
	case OpLogs:
		return r.logs(ctx, inv)
	case OpPull:
		return r.pull(ctx, inv)
	case OpStatus:
		return r.status(inv)
	case OpRefresh:
		return r.refresh(ctx, inv)
	case OpProjects:
		return r.projects()
	default:
		return 1, userError(fmt.Errorf("%w %s", ErrUnknownOperation, op), "")
	}
}

func (r *Runner) init(inv Invocation) (int, error) {
	var templateType string
	if len(inv.Args) > 0 {
		templateType = inv.Args[0]
	}

	dir := inv.Dir
	if dir == "" {
		dir = "."
	}
	err := scaffold.Init(r.deps.Config.InstallRoot, templateType, dir, inv.Force)
	switch {
	case errors.Is(err, scaffold.ErrMissingType), errors.Is(err, scaffold.ErrUnknownTemplate):
		return 1, userError(err, "usage: boxkit init <type> [--force]")
	case errors.Is(err, scaffold.ErrAlreadyInitialized):
		return 1, userError(err, "")
	case err != nil:
		return 1, fmt.Errorf("failed to initialize project: %w", err)
	}

	fmt.Fprintf(r.deps.Out, "✓ Initialized %s template in %s\n", templateType, dir)
	return 0, nil
}

func (r *Runner) up(ctx context.Context, inv Invocation) (int, error) {
	pc, err := r.resolveWithManifest(inv.Dir)
	if err != nil {
		return 1, err
	}

	r.maintain(ctx, pc)

	status, err := r.deps.Backend.Up(ctx, target(pc))
	if err != nil {
		return status, err
	}
	if status == 0 && r.deps.Registry != nil {
		if err := r.deps.Registry.Remember(pc.Dir); err != nil {
			r.deps.Logger.Warn("failed to remember project", "dir", pc.Dir, "error", err)
		}
	}
	return status, nil
}

func (r *Runner) run(ctx context.Context, inv Invocation) (int, error) {
	if len(inv.Args) == 0 {
		return 1, userError(ErrNoCommand, "usage: boxkit run [--service name] -- command [args...]")
	}
	pc, err := r.resolveWithManifest(inv.Dir)
	if err != nil {
		return 1, err
	}

	r.maintain(ctx, pc)

	service := inv.Service
	if service == "" {
		service = defaultService(pc)
	}
	return r.deps.Backend.Exec(ctx, target(pc), service, inv.Args, !inv.NoTTY)
}

func (r *Runner) down(ctx context.Context, inv Invocation) (int, error) {
	pc, err := project.Resolve(dirOrCwd(inv.Dir), r.deps.Config)
	if err != nil {
		return 1, err
	}

	if pc.HasManifest() && !inv.All {
		return r.deps.Backend.Down(ctx, target(pc))
	}

	report := r.TeardownAll(ctx)
	if len(report.Results) == 0 {
		fmt.Fprintln(r.deps.Out, "No known projects to stop")
	}
	return report.Status, nil
}

// TeardownAll stops every project in the registry. Dangling paths and
// projects without a manifest are skipped; a failing project does not stop
// the others. The report's status is the last non-zero backend status.
func (r *Runner) TeardownAll(ctx context.Context) TeardownReport {
	var report TeardownReport
	if r.deps.Registry == nil {
		return report
	}

	for path := range r.deps.Registry.Known() {
		if ctx.Err() != nil {
			break
		}
		result := r.teardownOne(ctx, path)
		if result.Status != 0 {
			report.Status = result.Status
		}
		report.Results = append(report.Results, result)
	}
	return report
}

func (r *Runner) teardownOne(ctx context.Context, path string) Result {
	result := Result{Path: path}

	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		result.Skipped = true
		result.Reason = "directory no longer exists"
		fmt.Fprintf(r.deps.Out, "⚠ Skipping %s: %s\n", path, result.Reason)
		return result
	}

	pc, err := project.Resolve(path, r.deps.Config)
	if err != nil {
		result.Skipped = true
		result.Reason = err.Error()
		fmt.Fprintf(r.deps.Out, "⚠ Skipping %s: %v\n", path, err)
		return result
	}
	if !pc.HasManifest() {
		result.Skipped = true
		result.Reason = "no manifest"
		fmt.Fprintf(r.deps.Out, "⚠ Skipping %s: no compose manifest\n", path)
		return result
	}

	fmt.Fprintf(r.deps.Out, "Stopping %s\n", path)
	status, err := r.deps.Backend.Down(ctx, target(pc))
	switch {
	case err != nil:
		// Could not invoke the backend at all; count it as a plain failure.
		result.Err = err
		result.Status = 1
		fmt.Fprintf(r.deps.Out, "⚠ Failed to stop %s: %v\n", path, err)
	case status != 0:
		result.Status = status
		fmt.Fprintf(r.deps.Out, "⚠ Stopping %s exited with status %d\n", path, status)
	}
	return result
}

func (r *Runner) logs(ctx context.Context, inv Invocation) (int, error) {
	pc, err := r.resolveWithManifest(inv.Dir)
	if err != nil {
		return 1, err
	}
	var services []string
	if inv.Service != "" {
		services = append(services, inv.Service)
	}
	return r.deps.Backend.Logs(ctx, target(pc), inv.Follow, services...)
}

func (r *Runner) pull(ctx context.Context, inv Invocation) (int, error) {
	pc, err := r.resolveWithManifest(inv.Dir)
	if err != nil {
		return 1, err
	}
	if err := r.deps.Backend.Pull(ctx, target(pc)); err != nil {
		return 1, fmt.Errorf("failed to pull images: %w", err)
	}
	fmt.Fprintf(r.deps.Out, "✓ Pulled images for %s\n", pc.Name)
	return 0, nil
}

func (r *Runner) status(inv Invocation) (int, error) {
	v := r.check(dirOrCwd(inv.Dir))
	if r.deps.FormatVerdict != nil {
		fmt.Fprintln(r.deps.Out, r.deps.FormatVerdict(v))
	} else {
		fmt.Fprintln(r.deps.Out, v.String())
	}
	return 0, nil
}

func (r *Runner) refresh(ctx context.Context, inv Invocation) (int, error) {
	pc, err := project.Resolve(dirOrCwd(inv.Dir), r.deps.Config)
	if err != nil {
		return 1, err
	}
	if r.deps.Scheduler == nil {
		return 0, nil
	}
	report := r.deps.Scheduler.Force(ctx, request(pc))
	r.printReport(report, true)
	return 0, nil
}

func (r *Runner) projects() (int, error) {
	if r.deps.Registry == nil {
		return 0, nil
	}
	paths, err := r.deps.Registry.List()
	if err != nil {
		return 1, fmt.Errorf("failed to read project registry: %w", err)
	}
	if len(paths) == 0 {
		fmt.Fprintln(r.deps.Out, "No known projects")
		return 0, nil
	}
	for _, path := range paths {
		fmt.Fprintf(r.deps.Out, "%s%s\n", path, projectMarker(path))
	}
	return 0, nil
}

func projectMarker(path string) string {
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		return " (missing)"
	}
	if _, ok := manifest.Find(path); !ok {
		return " (no manifest)"
	}
	return ""
}

// maintain runs the scheduled refresh and prints what it found
func (r *Runner) maintain(ctx context.Context, pc *project.Context) {
	if r.deps.Scheduler == nil {
		return
	}
	report := r.deps.Scheduler.MaybeRefresh(ctx, request(pc))
	r.printReport(report, false)
}

func (r *Runner) printReport(report scheduler.Report, verbose bool) {
	printOutcome := func(name string, o scheduler.Outcome) {
		switch o.Status {
		case scheduler.Refreshed:
			fmt.Fprintf(r.deps.Out, "✓ %s done\n", name)
		case scheduler.Failed:
			fmt.Fprintf(r.deps.Out, "⚠ %s failed: %v\n", name, o.Err)
		default:
			if verbose {
				fmt.Fprintf(r.deps.Out, "- %s skipped (%s)\n", name, o.Reason)
			}
		}
	}
	printOutcome("Image refresh", report.Images)
	printOutcome("Self-update", report.SelfUpdate)

	switch report.Drift.State {
	case drift.Outdated:
		fmt.Fprintf(r.deps.Out, "⚠ %s\n", report.Drift)
	case drift.Unknown:
		fmt.Fprintf(r.deps.Out, "ℹ %s\n", report.Drift)
	default:
		fmt.Fprintf(r.deps.Out, "✓ %s\n", report.Drift)
	}
}

func (r *Runner) check(dir string) drift.Verdict {
	if r.deps.Detector == nil {
		return drift.New(r.deps.Config.InstallRoot).Check(dir)
	}
	return r.deps.Detector.Check(dir)
}

func (r *Runner) resolveWithManifest(dir string) (*project.Context, error) {
	pc, err := project.Resolve(dirOrCwd(dir), r.deps.Config)
	if err != nil {
		return nil, err
	}
	if !pc.HasManifest() {
		return nil, userError(
			fmt.Errorf("%w in %s", ErrNoManifest, pc.Dir),
			"run 'boxkit init <type>' to create one",
		)
	}
	return pc, nil
}

// ImageRefresher returns the scheduler action that pulls a project's images
// through backend. Directories without a manifest have nothing to pull.
func ImageRefresher(cfg *config.Config, backend Backend) scheduler.ImageRefresher {
	return scheduler.ImageRefresherFunc(func(ctx context.Context, dir string) error {
		pc, err := project.Resolve(dir, cfg)
		if err != nil {
			return err
		}
		if !pc.HasManifest() {
			return nil
		}
		return backend.Pull(ctx, target(pc))
	})
}

func defaultService(pc *project.Context) string {
	m, err := manifest.LoadFile(pc.ManifestPath)
	if err == nil {
		if s, ok := m.Get(serviceKey); ok && s != "" {
			return s
		}
	}
	return DefaultService
}

func request(pc *project.Context) scheduler.Request {
	req := scheduler.Request{ToolKey: ToolKey, ProjectDir: pc.Dir}
	if pc.HasManifest() {
		req.ProjectKey = pc.StalenessKey
	}
	return req
}

func target(pc *project.Context) compose.Target {
	return compose.Target{
		Name:     pc.Name,
		Dir:      pc.Dir,
		Manifest: pc.ManifestPath,
		Env:      pc.Env,
	}
}

func dirOrCwd(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}
