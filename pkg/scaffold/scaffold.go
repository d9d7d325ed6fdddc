// Package scaffold copies a shipped template into a project directory.
package scaffold

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/obra/boxkit/pkg/manifest"
)

var (
	// ErrMissingType is returned when no template type was given
	ErrMissingType = errors.New("template type is required")
	// ErrUnknownTemplate is returned for a type the install does not ship
	ErrUnknownTemplate = errors.New("unknown template")
	// ErrAlreadyInitialized is returned when dest already has a manifest
	ErrAlreadyInitialized = errors.New("project already initialized")
)

// TemplatesDir returns where templates live in an install root
func TemplatesDir(installRoot string) string {
	return filepath.Join(installRoot, "templates")
}

// Available lists the template types shipped under installRoot, sorted.
func Available(installRoot string) []string {
	entries, err := os.ReadDir(TemplatesDir(installRoot))
	if err != nil {
		return nil
	}
	var types []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			types = append(types, entry.Name())
		}
	}
	sort.Strings(types)
	return types
}

// Init copies the template of the given type into dest. Existing files are
// only overwritten when force is set.
func Init(installRoot, templateType, dest string, force bool) error {
	templateType = strings.TrimSpace(templateType)
	if templateType == "" {
		return ErrMissingType
	}

	src := filepath.Join(TemplatesDir(installRoot), templateType)
	if !manifest.ValidTemplateType(templateType) || !isDir(src) {
		available := Available(installRoot)
		if len(available) == 0 {
			return fmt.Errorf("%w %q: no templates installed in %s", ErrUnknownTemplate, templateType, TemplatesDir(installRoot))
		}
		return fmt.Errorf("%w %q (available: %s)", ErrUnknownTemplate, templateType, strings.Join(available, ", "))
	}

	if path, ok := manifest.Find(dest); ok && !force {
		return fmt.Errorf("%w: %s exists (use --force to overwrite)", ErrAlreadyInitialized, path)
	}

	return copyTree(src, dest)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0755)
		case d.Type().IsRegular():
			return copyFile(path, target)
		default:
			// symlinks and devices are not part of templates
			return nil
		}
	})
}

func copyFile(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
