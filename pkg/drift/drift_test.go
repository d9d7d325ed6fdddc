package drift

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// setup creates an install root with a "web" template and an empty project dir.
func setup(t *testing.T, canonical string) (*Detector, string) {
	t.Helper()
	root := t.TempDir()
	install := filepath.Join(root, "install")
	project := filepath.Join(root, "project")
	if err := os.MkdirAll(project, 0755); err != nil {
		t.Fatal(err)
	}
	if canonical != "" {
		writeFile(t, filepath.Join(install, "templates", "web", "compose.yml"), canonical)
	}
	return New(install), project
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name       string
		local      string // empty means no manifest
		canonical  string
		wantState  State
		wantType   string
		wantReason string
	}{
		{
			name:      "versions match",
			local:     "x-boxkit:\n  template: web\n  version: \"2\"\n",
			canonical: "x-boxkit:\n  template: web\n  version: \"2\"\n",
			wantState: UpToDate,
			wantType:  "web",
		},
		{
			name:       "versions differ",
			local:      "x-boxkit:\n  template: web\n  version: \"1\"\n",
			canonical:  "x-boxkit:\n  version: \"2\"\n",
			wantState:  Outdated,
			wantType:   "web",
			wantReason: "project has version 1, template has 2",
		},
		{
			name:       "no local manifest",
			canonical:  "x-boxkit:\n  version: \"2\"\n",
			wantState:  Unknown,
			wantReason: "no manifest",
		},
		{
			name:       "untagged project",
			local:      "services:\n  app:\n    image: alpine\n",
			canonical:  "x-boxkit:\n  version: \"2\"\n",
			wantState:  Unknown,
			wantReason: "predates template tagging",
		},
		{
			name:       "local version missing",
			local:      "x-template: web\n",
			canonical:  "x-template-version: 2\n",
			wantState:  Outdated,
			wantType:   "web",
			wantReason: "project has no template version",
		},
		{
			name:       "canonical version missing",
			local:      "x-template: web\nx-template-version: 2\n",
			canonical:  "name: web\n",
			wantState:  Outdated,
			wantType:   "web",
			wantReason: "template has no version",
		},
		{
			name:       "both versions missing",
			local:      "x-template: web\n",
			canonical:  "name: web\n",
			wantState:  Outdated,
			wantType:   "web",
			wantReason: "project has no template version",
		},
		{
			name:       "template no longer shipped",
			local:      "x-template: web\nx-template-version: 2\n",
			wantState:  Unknown,
			wantType:   "web",
			wantReason: "no longer shipped",
		},
		{
			name:       "template type escapes templates root",
			local:      "x-template: ..\nx-template-version: 2\n",
			canonical:  "x-template-version: 2\n",
			wantState:  Unknown,
			wantReason: "not a valid template name",
		},
		{
			name:       "template type with path separator",
			local:      "x-template: web/../../install\nx-template-version: 2\n",
			canonical:  "x-template-version: 2\n",
			wantState:  Unknown,
			wantReason: "not a valid template name",
		},
		{
			name:       "malformed local manifest",
			local:      "x-template: [web\n",
			canonical:  "x-template-version: 2\n",
			wantState:  Unknown,
			wantReason: "cannot read project manifest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, project := setup(t, tt.canonical)
			if tt.local != "" {
				writeFile(t, filepath.Join(project, "compose.yml"), tt.local)
			}

			v := d.Check(project)
			if v.State != tt.wantState {
				t.Errorf("Check() state = %v, want %v (reason %q)", v.State, tt.wantState, v.Reason)
			}
			if v.TemplateType != tt.wantType {
				t.Errorf("Check() type = %q, want %q", v.TemplateType, tt.wantType)
			}
			if !strings.Contains(v.Reason, tt.wantReason) {
				t.Errorf("Check() reason = %q, want it to contain %q", v.Reason, tt.wantReason)
			}
		})
	}
}

func TestCheck_ManifestNameVariants(t *testing.T) {
	d, project := setup(t, "")
	writeFile(t, filepath.Join(d.TemplateDir("api"), "docker-compose.yaml"), "x-template-version: 4\n")
	writeFile(t, filepath.Join(project, "compose.yaml"), "x-template: api\nx-template-version: 4\n")

	if v := d.Check(project); v.State != UpToDate {
		t.Errorf("Check() = %v, want up-to-date", v)
	}
}

func TestVerdictString(t *testing.T) {
	outdated := Verdict{State: Outdated, TemplateType: "web", Reason: "project has version 1, template has 2"}
	if s := outdated.String(); !strings.Contains(s, "boxkit init web --force") {
		t.Errorf("String() = %q, want re-init suggestion", s)
	}

	fresh := Verdict{State: UpToDate, TemplateType: "web", LocalVersion: "2"}
	if s := fresh.String(); !strings.Contains(s, "up to date") {
		t.Errorf("String() = %q", s)
	}

	unknown := Verdict{Reason: "no manifest in /x"}
	if s := unknown.String(); !strings.HasPrefix(s, "template status unknown") {
		t.Errorf("String() = %q", s)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Unknown, "unknown"},
		{UpToDate, "up-to-date"},
		{Outdated, "outdated"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestWatch_ReportsOnManifestChange(t *testing.T) {
	d, project := setup(t, "x-template-version: 2\n")
	writeFile(t, filepath.Join(project, "compose.yml"), "x-template: web\nx-template-version: 1\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	verdicts := make(chan Verdict, 16)
	done := make(chan error, 1)
	go func() {
		done <- d.Watch(ctx, project, func(v Verdict) { verdicts <- v })
	}()

	first := waitVerdict(t, verdicts)
	if first.State != Outdated {
		t.Fatalf("initial verdict = %v, want outdated", first)
	}

	writeFile(t, filepath.Join(project, "compose.yml"), "x-template: web\nx-template-version: 2\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case v := <-verdicts:
			if v.State == UpToDate {
				cancel()
				if err := <-done; err != nil {
					t.Errorf("Watch() error = %v", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("no up-to-date verdict after manifest change")
		}
	}
}

func waitVerdict(t *testing.T, ch <-chan Verdict) Verdict {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for verdict")
		return Verdict{}
	}
}
