package project

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// ComposeName derives the compose project name from the project directory
func ComposeName(projectPath string) string {
	name := strings.ToLower(sanitizeName(filepath.Base(projectPath)))
	if name == "" {
		return "boxkit"
	}
	return name
}

// StalenessKey returns the cache key for a project. The basename keeps it
// readable, the path hash keeps same-named projects apart.
func StalenessKey(projectPath string) string {
	sum := sha256.Sum256([]byte(projectPath))
	return fmt.Sprintf("project-%s-%s", sanitizeName(filepath.Base(projectPath)), hex.EncodeToString(sum[:])[:12])
}

// sanitizeName converts a name to compose-compatible format
func sanitizeName(name string) string {
	// Compose project names: [a-z0-9][a-z0-9_-]*
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.TrimLeft(b.String(), "-_")
}
