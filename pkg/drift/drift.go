// Package drift compares a project's recorded template version with the
// version of the canonical template shipped in the install root.
package drift

import (
	"fmt"
	"path/filepath"

	"github.com/obra/boxkit/pkg/manifest"
)

// State is the outcome of a drift check.
type State int

const (
	// Unknown means there is nothing to compare against.
	Unknown State = iota
	// UpToDate means local and canonical versions match.
	UpToDate
	// Outdated means the versions differ or one of them is missing.
	Outdated
)

func (s State) String() string {
	switch s {
	case UpToDate:
		return "up-to-date"
	case Outdated:
		return "outdated"
	default:
		return "unknown"
	}
}

// Verdict describes a single drift check.
type Verdict struct {
	State            State
	TemplateType     string
	LocalVersion     string
	CanonicalVersion string
	Reason           string
}

// String renders the verdict as a single informational line.
func (v Verdict) String() string {
	switch v.State {
	case UpToDate:
		return fmt.Sprintf("template %s is up to date (version %s)", v.TemplateType, v.LocalVersion)
	case Outdated:
		return fmt.Sprintf("template %s is outdated (%s); run 'boxkit init %s --force' to refresh it",
			v.TemplateType, v.Reason, v.TemplateType)
	default:
		return "template status unknown: " + v.Reason
	}
}

// Detector checks projects against templates under InstallRoot.
type Detector struct {
	InstallRoot string
}

// New returns a detector for templates installed under installRoot.
func New(installRoot string) *Detector {
	return &Detector{InstallRoot: installRoot}
}

// TemplateDir returns where the canonical template of the given type lives
func (d *Detector) TemplateDir(templateType string) string {
	return filepath.Join(d.InstallRoot, "templates", templateType)
}

// Check compares the manifest in projectDir with its canonical template.
// It never fails; problems are reported as an Unknown verdict.
func (d *Detector) Check(projectDir string) Verdict {
	local, err := manifest.Load(projectDir)
	if err != nil {
		return Verdict{State: Unknown, Reason: fmt.Sprintf("cannot read project manifest: %v", err)}
	}
	if local == nil {
		return Verdict{State: Unknown, Reason: "no manifest in " + projectDir}
	}

	templateType, ok := local.TemplateType()
	if !ok {
		return Verdict{
			State:  Unknown,
			Reason: "manifest has no template tag; the project predates template tagging",
		}
	}

	if !manifest.ValidTemplateType(templateType) {
		return Verdict{
			State:  Unknown,
			Reason: fmt.Sprintf("template type %q is not a valid template name", templateType),
		}
	}

	v := Verdict{TemplateType: templateType}
	v.LocalVersion, _ = local.TemplateVersion()

	canonical, err := manifest.Load(d.TemplateDir(templateType))
	if err != nil {
		v.State = Unknown
		v.Reason = fmt.Sprintf("cannot read template %s: %v", templateType, err)
		return v
	}
	if canonical == nil {
		v.State = Unknown
		v.Reason = fmt.Sprintf("template %s is no longer shipped", templateType)
		return v
	}
	v.CanonicalVersion, _ = canonical.TemplateVersion()

	// A missing version on either side counts as a difference.
	switch {
	case v.LocalVersion == "":
		v.State = Outdated
		v.Reason = "project has no template version"
	case v.CanonicalVersion == "":
		v.State = Outdated
		v.Reason = "template has no version"
	case v.LocalVersion != v.CanonicalVersion:
		v.State = Outdated
		v.Reason = fmt.Sprintf("project has version %s, template has %s", v.LocalVersion, v.CanonicalVersion)
	default:
		v.State = UpToDate
	}
	return v
}
