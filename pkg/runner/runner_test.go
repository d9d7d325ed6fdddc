package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/obra/boxkit/pkg/compose"
	"github.com/obra/boxkit/pkg/config"
	"github.com/obra/boxkit/pkg/drift"
	"github.com/obra/boxkit/pkg/registry"
	"github.com/obra/boxkit/pkg/scaffold"
	"github.com/obra/boxkit/pkg/scheduler"
)

type mockBackend struct {
	pullFn func(compose.Target) error
	upFn   func(compose.Target) (int, error)
	downFn func(compose.Target) (int, error)
	execFn func(compose.Target, string, []string, bool) (int, error)
	logsFn func(compose.Target, bool, []string) (int, error)

	downs []string
}

func (m *mockBackend) Pull(ctx context.Context, t compose.Target) error {
	if m.pullFn != nil {
		return m.pullFn(t)
	}
	return nil
}

func (m *mockBackend) Up(ctx context.Context, t compose.Target) (int, error) {
	if m.upFn != nil {
		return m.upFn(t)
	}
	return 0, nil
}

func (m *mockBackend) Down(ctx context.Context, t compose.Target) (int, error) {
	m.downs = append(m.downs, t.Dir)
	if m.downFn != nil {
		return m.downFn(t)
	}
	return 0, nil
}

func (m *mockBackend) Exec(ctx context.Context, t compose.Target, service string, command []string, tty bool) (int, error) {
	if m.execFn != nil {
		return m.execFn(t, service, command, tty)
	}
	return 0, nil
}

func (m *mockBackend) Logs(ctx context.Context, t compose.Target, follow bool, services ...string) (int, error) {
	if m.logsFn != nil {
		return m.logsFn(t, follow, services)
	}
	return 0, nil
}

type mockMaintainer struct {
	maybeCalls []scheduler.Request
	forceCalls []scheduler.Request
	report     scheduler.Report
}

func (m *mockMaintainer) MaybeRefresh(ctx context.Context, req scheduler.Request) scheduler.Report {
	m.maybeCalls = append(m.maybeCalls, req)
	return m.report
}

func (m *mockMaintainer) Force(ctx context.Context, req scheduler.Request) scheduler.Report {
	m.forceCalls = append(m.forceCalls, req)
	return m.report
}

var (
	_ Backend    = (*mockBackend)(nil)
	_ Maintainer = (*mockMaintainer)(nil)
)

type fixture struct {
	runner    *Runner
	backend   *mockBackend
	scheduler *mockMaintainer
	registry  *registry.Registry
	out       *bytes.Buffer
	install   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	install := t.TempDir()
	writeFile(t, filepath.Join(install, "templates", "web", "compose.yml"), "x-template: web\nx-template-version: 2\n")

	f := &fixture{
		backend:   &mockBackend{},
		scheduler: &mockMaintainer{},
		registry:  registry.New(filepath.Join(t.TempDir(), "projects")),
		out:       &bytes.Buffer{},
		install:   install,
	}
	f.runner = New(Deps{
		Config:    &config.Config{InstallRoot: install, ConfigDir: t.TempDir()},
		Backend:   f.backend,
		Scheduler: f.scheduler,
		Registry:  f.registry,
		Detector:  drift.New(install),
		Out:       f.out,
	})
	return f
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func newProject(t *testing.T, manifest string) string {
	t.Helper()
	dir := t.TempDir()
	if manifest != "" {
		writeFile(t, filepath.Join(dir, "compose.yml"), manifest)
	}
	return dir
}

func TestParseOperation(t *testing.T) {
	for _, op := range Operations() {
		got, err := ParseOperation(op.String())
		if err != nil || got != op {
			t.Errorf("ParseOperation(%q) = %v, %v; want %v", op.String(), got, err, op)
		}
	}

	_, err := ParseOperation("explode")
	if !IsUserError(err) {
		t.Errorf("ParseOperation(unknown) error = %v, want UserError", err)
	}
	if !errors.Is(err, ErrUnknownOperation) {
		t.Errorf("ParseOperation(unknown) error = %v, want ErrUnknownOperation", err)
	}
	if !strings.Contains(err.Error(), "valid operations: init, up") {
		t.Errorf("error = %q, want list of operations", err)
	}
}

func TestOperationString(t *testing.T) {
	if OpProjects.String() != "projects" {
		t.Errorf("OpProjects.String() = %q", OpProjects.String())
	}
	if s := Operation(99).String(); s != "Operation(99)" {
		t.Errorf("Operation(99).String() = %q", s)
	}
}

func TestUp_RemembersOnSuccess(t *testing.T) {
	f := newFixture(t)
	dir := newProject(t, "x-template: web\nx-template-version: 2\n")

	status, err := f.runner.Execute(context.Background(), OpUp, Invocation{Dir: dir})
	if err != nil || status != 0 {
		t.Fatalf("Execute(up) = %d, %v; want 0, nil", status, err)
	}

	known, _ := f.registry.List()
	if len(known) != 1 || known[0] != dir {
		t.Errorf("registry = %v, want [%s]", known, dir)
	}
	if len(f.scheduler.maybeCalls) != 1 {
		t.Fatalf("MaybeRefresh called %d times, want 1", len(f.scheduler.maybeCalls))
	}
	req := f.scheduler.maybeCalls[0]
	if req.ToolKey != ToolKey || req.ProjectDir != dir || !strings.HasPrefix(req.ProjectKey, "project-") {
		t.Errorf("MaybeRefresh request = %+v", req)
	}
}

func TestUp_PrintsVerdictForEveryState(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		want     string
	}{
		{"up to date", "x-template: web\nx-template-version: 2\n", "✓ template web is up to date (version 2)"},
		{"outdated", "x-template: web\nx-template-version: 1\n", "⚠ template web is outdated"},
		{"untagged", "services: {}\n", "ℹ template status unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			dir := newProject(t, tt.manifest)
			f.scheduler.report = scheduler.Report{Drift: drift.New(f.install).Check(dir)}

			if _, err := f.runner.Execute(context.Background(), OpUp, Invocation{Dir: dir}); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(f.out.String(), tt.want) {
				t.Errorf("output = %q, want it to contain %q", f.out.String(), tt.want)
			}
		})
	}
}

func TestUp_FailureNotRemembered(t *testing.T) {
	f := newFixture(t)
	f.backend.upFn = func(compose.Target) (int, error) { return 17, nil }
	dir := newProject(t, "services: {}\n")

	status, err := f.runner.Execute(context.Background(), OpUp, Invocation{Dir: dir})
	if err != nil {
		t.Fatalf("Execute(up) error = %v", err)
	}
	if status != 17 {
		t.Errorf("status = %d, want backend status 17", status)
	}
	if known, _ := f.registry.List(); len(known) != 0 {
		t.Errorf("registry = %v, want empty after failed up", known)
	}
}

func TestUp_NoManifestIsUserError(t *testing.T) {
	f := newFixture(t)

	status, err := f.runner.Execute(context.Background(), OpUp, Invocation{Dir: newProject(t, "")})
	if status != 1 || !IsUserError(err) || !errors.Is(err, ErrNoManifest) {
		t.Errorf("Execute(up) = %d, %v; want 1 and a UserError", status, err)
	}
	if len(f.scheduler.maybeCalls) != 0 {
		t.Error("maintenance ran before a user error")
	}
}

func TestUp_PrintsOutdatedVerdict(t *testing.T) {
	f := newFixture(t)
	dir := newProject(t, "x-template: web\nx-template-version: 1\n")
	f.scheduler.report = scheduler.Report{Drift: drift.New(f.install).Check(dir)}

	if _, err := f.runner.Execute(context.Background(), OpUp, Invocation{Dir: dir}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(f.out.String(), "boxkit init web --force") {
		t.Errorf("output = %q, want re-init suggestion", f.out.String())
	}
}

func TestRun(t *testing.T) {
	tests := []struct {
		name        string
		manifest    string
		service     string
		wantService string
	}{
		{"default service", "services: {}\n", "", DefaultService},
		{"manifest service", "x-boxkit:\n  service: web\n", "", "web"},
		{"explicit service", "x-boxkit:\n  service: web\n", "db", "db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			var gotService string
			var gotCommand []string
			f.backend.execFn = func(_ compose.Target, service string, command []string, tty bool) (int, error) {
				gotService, gotCommand = service, command
				return 3, nil
			}

			dir := newProject(t, tt.manifest)
			status, err := f.runner.Execute(context.Background(), OpRun, Invocation{
				Dir: dir, Args: []string{"rake", "test"}, Service: tt.service,
			})
			if err != nil {
				t.Fatal(err)
			}
			if status != 3 {
				t.Errorf("status = %d, want 3", status)
			}
			if gotService != tt.wantService {
				t.Errorf("service = %q, want %q", gotService, tt.wantService)
			}
			if strings.Join(gotCommand, " ") != "rake test" {
				t.Errorf("command = %v", gotCommand)
			}
		})
	}
}

func TestRun_NoCommand(t *testing.T) {
	f := newFixture(t)
	_, err := f.runner.Execute(context.Background(), OpRun, Invocation{Dir: newProject(t, "services: {}\n")})
	if !errors.Is(err, ErrNoCommand) {
		t.Errorf("Execute(run) error = %v, want ErrNoCommand", err)
	}
}

func TestDown_LocalManifest(t *testing.T) {
	f := newFixture(t)
	dir := newProject(t, "services: {}\n")
	other := newProject(t, "services: {}\n")
	if err := f.registry.Remember(other); err != nil {
		t.Fatal(err)
	}

	if _, err := f.runner.Execute(context.Background(), OpDown, Invocation{Dir: dir}); err != nil {
		t.Fatal(err)
	}
	if len(f.backend.downs) != 1 || f.backend.downs[0] != dir {
		t.Errorf("Down called for %v, want only %s", f.backend.downs, dir)
	}
}

func TestDown_TeardownAll(t *testing.T) {
	f := newFixture(t)
	good := newProject(t, "services: {}\n")
	bare := newProject(t, "")
	failing := newProject(t, "services: {}\n")
	gone := filepath.Join(t.TempDir(), "deleted")

	for _, p := range []string{good, bare, gone, failing} {
		if err := f.registry.Remember(p); err != nil {
			t.Fatal(err)
		}
	}
	f.backend.downFn = func(tgt compose.Target) (int, error) {
		if tgt.Dir == failing {
			return 2, nil
		}
		return 0, nil
	}

	status, err := f.runner.Execute(context.Background(), OpDown, Invocation{Dir: newProject(t, "")})
	if err != nil {
		t.Fatalf("Execute(down) error = %v", err)
	}
	if status != 2 {
		t.Errorf("status = %d, want 2 from the failing project", status)
	}
	if len(f.backend.downs) != 2 {
		t.Errorf("Down called for %v, want good and failing", f.backend.downs)
	}

	out := f.out.String()
	for _, want := range []string{bare + ": no compose manifest", gone + ": directory no longer exists", "exited with status 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTeardownAll_Report(t *testing.T) {
	f := newFixture(t)
	a := newProject(t, "services: {}\n")
	b := newProject(t, "")
	c := newProject(t, "services: {}\n")
	for _, p := range []string{a, b, c} {
		if err := f.registry.Remember(p); err != nil {
			t.Fatal(err)
		}
	}
	f.backend.downFn = func(tgt compose.Target) (int, error) {
		if tgt.Dir == a {
			return 0, errors.New("exec: docker: not found")
		}
		return 0, nil
	}

	report := f.runner.TeardownAll(context.Background())
	if len(report.Results) != 3 {
		t.Fatalf("Results = %+v, want 3 entries", report.Results)
	}
	if report.Results[0].Err == nil || report.Results[0].Status != 1 {
		t.Errorf("Results[0] = %+v, want invocation failure", report.Results[0])
	}
	if !report.Results[1].Skipped {
		t.Errorf("Results[1] = %+v, want skipped", report.Results[1])
	}
	if report.Results[2].Status != 0 || report.Results[2].Skipped {
		t.Errorf("Results[2] = %+v, want success", report.Results[2])
	}
	if report.Status != 1 {
		t.Errorf("Status = %d, want 1", report.Status)
	}
}

func TestDown_AllIgnoresLocalManifest(t *testing.T) {
	f := newFixture(t)
	dir := newProject(t, "services: {}\n")

	status, err := f.runner.Execute(context.Background(), OpDown, Invocation{Dir: dir, All: true})
	if err != nil || status != 0 {
		t.Fatalf("Execute(down --all) = %d, %v", status, err)
	}
	if len(f.backend.downs) != 0 {
		t.Errorf("Down called for %v with an empty registry", f.backend.downs)
	}
	if !strings.Contains(f.out.String(), "No known projects") {
		t.Errorf("output = %q", f.out.String())
	}
}

func TestInit(t *testing.T) {
	f := newFixture(t)
	dir := newProject(t, "")

	if _, err := f.runner.Execute(context.Background(), OpInit, Invocation{Dir: dir, Args: []string{"web"}}); err != nil {
		t.Fatalf("Execute(init) error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "compose.yml")); err != nil {
		t.Errorf("template not copied: %v", err)
	}

	status, err := f.runner.Execute(context.Background(), OpInit, Invocation{Dir: dir, Args: []string{"web"}})
	if status != 1 || !IsUserError(err) || !errors.Is(err, scaffold.ErrAlreadyInitialized) {
		t.Errorf("second init = %d, %v; want UserError wrapping ErrAlreadyInitialized", status, err)
	}

	_, err = f.runner.Execute(context.Background(), OpInit, Invocation{Dir: dir, Args: []string{"nope"}, Force: true})
	if !IsUserError(err) || !errors.Is(err, scaffold.ErrUnknownTemplate) {
		t.Errorf("unknown template error = %v", err)
	}
}

func TestPull(t *testing.T) {
	f := newFixture(t)
	f.backend.pullFn = func(compose.Target) error { return errors.New("manifest unknown") }

	status, err := f.runner.Execute(context.Background(), OpPull, Invocation{Dir: newProject(t, "services: {}\n")})
	if status != 1 || err == nil {
		t.Errorf("Execute(pull) = %d, %v; want 1 and error", status, err)
	}
}

func TestLogs(t *testing.T) {
	f := newFixture(t)
	var gotFollow bool
	var gotServices []string
	f.backend.logsFn = func(_ compose.Target, follow bool, services []string) (int, error) {
		gotFollow, gotServices = follow, services
		return 0, nil
	}

	_, err := f.runner.Execute(context.Background(), OpLogs, Invocation{Dir: newProject(t, "services: {}\n"), Follow: true, Service: "db"})
	if err != nil {
		t.Fatal(err)
	}
	if !gotFollow || len(gotServices) != 1 || gotServices[0] != "db" {
		t.Errorf("Logs(follow=%v, services=%v)", gotFollow, gotServices)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	dir := newProject(t, "x-template: web\nx-template-version: 2\n")

	if _, err := f.runner.Execute(context.Background(), OpStatus, Invocation{Dir: dir}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(f.out.String(), "up to date") {
		t.Errorf("output = %q", f.out.String())
	}
}

func TestRefresh_Forces(t *testing.T) {
	f := newFixture(t)
	dir := newProject(t, "services: {}\n")

	if _, err := f.runner.Execute(context.Background(), OpRefresh, Invocation{Dir: dir}); err != nil {
		t.Fatal(err)
	}
	if len(f.scheduler.forceCalls) != 1 || len(f.scheduler.maybeCalls) != 0 {
		t.Errorf("Force/MaybeRefresh calls = %d/%d, want 1/0", len(f.scheduler.forceCalls), len(f.scheduler.maybeCalls))
	}
}

func TestProjects(t *testing.T) {
	f := newFixture(t)
	live := newProject(t, "services: {}\n")
	bare := newProject(t, "")
	gone := filepath.Join(t.TempDir(), "gone")
	for _, p := range []string{live, bare, gone} {
		if err := f.registry.Remember(p); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := f.runner.Execute(context.Background(), OpProjects, Invocation{}); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(f.out.String()), "\n")
	want := []string{live, bare + " (no manifest)", gone + " (missing)"}
	if len(lines) != len(want) {
		t.Fatalf("output = %q, want %d lines", f.out.String(), len(want))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestImageRefresher(t *testing.T) {
	backend := &mockBackend{}
	var pulled []string
	backend.pullFn = func(tgt compose.Target) error {
		pulled = append(pulled, tgt.Dir)
		return nil
	}
	refresher := ImageRefresher(&config.Config{}, backend)

	withManifest := newProject(t, "services: {}\n")
	if err := refresher.RefreshImages(context.Background(), withManifest); err != nil {
		t.Fatal(err)
	}
	if err := refresher.RefreshImages(context.Background(), newProject(t, "")); err != nil {
		t.Fatal(err)
	}
	if len(pulled) != 1 || pulled[0] != withManifest {
		t.Errorf("pulled = %v, want only %s", pulled, withManifest)
	}
}
