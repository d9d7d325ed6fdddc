// Package registry keeps the list of project directories boxkit has brought
// up, so bulk operations can reach them from anywhere.
//
// The store is a flat text file with one absolute path per line. Writes
// append; duplicates are rejected by scanning the whole file first. There is
// no locking: two processes appending at once may both write or one may be
// lost, and that is acceptable for this bookkeeping.
package registry

import (
	"bufio"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidPath indicates a path that cannot be stored
var ErrInvalidPath = errors.New("invalid path")

// Registry is the file-backed set of known project paths.
type Registry struct {
	filePath string
}

// New returns a registry backed by filePath. Nothing is read until used.
func New(filePath string) *Registry {
	return &Registry{filePath: filePath}
}

// Path returns the backing file
func (r *Registry) Path() string {
	return r.filePath
}

// Remember appends path unless it is already recorded.
func (r *Registry) Remember(path string) error {
	path = strings.TrimSpace(path)
	if path == "" || strings.ContainsAny(path, "\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: path=%s: %v", ErrInvalidPath, path, err)
	}

	for known := range r.Known() {
		if known == absPath {
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(r.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	f, err := os.OpenFile(r.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open registry: %w", err)
	}
	if _, err := f.WriteString(absPath + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write registry: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close registry: %w", err)
	}
	return nil
}

// Known yields every recorded path. The file is read afresh on each
// iteration; a missing or unreadable file yields nothing.
func (r *Registry) Known() iter.Seq[string] {
	return func(yield func(string) bool) {
		f, err := os.Open(r.filePath)
		if err != nil {
			return
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if !yield(line) {
				return
			}
		}
	}
}

// List returns the recorded paths in file order.
func (r *Registry) List() ([]string, error) {
	if _, err := os.Stat(r.filePath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	paths := []string{}
	for p := range r.Known() {
		paths = append(paths, p)
	}
	return paths, nil
}
