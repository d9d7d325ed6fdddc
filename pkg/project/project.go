// Package project resolves a working directory into everything boxkit needs
// to drive it: the compose name, manifest, cache key and environment.
package project

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/obra/boxkit/pkg/config"
	"github.com/obra/boxkit/pkg/manifest"
)

const (
	// GlobalEnvFile lives in the config directory and applies to every project
	GlobalEnvFile = "boxkit.env"
	// LocalEnvFile lives in the project directory and overrides GlobalEnvFile
	LocalEnvFile = ".boxkit.env"
)

// Context describes one project directory
type Context struct {
	Dir          string
	Name         string
	ManifestPath string // empty when the directory has no manifest
	StalenessKey string
	Env          map[string]string
}

// HasManifest reports whether the project directory holds a manifest
func (c *Context) HasManifest() bool {
	return c.ManifestPath != ""
}

// Resolve builds the context for dir
func Resolve(dir string, cfg *config.Config) (*Context, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	var envFiles []string
	if cfg != nil && cfg.ConfigDir != "" {
		envFiles = append(envFiles, filepath.Join(cfg.ConfigDir, GlobalEnvFile))
	}
	envFiles = append(envFiles, filepath.Join(abs, LocalEnvFile))

	env, err := LoadEnv(envFiles...)
	if err != nil {
		return nil, err
	}

	ctx := &Context{
		Dir:          abs,
		Name:         ComposeName(abs),
		StalenessKey: StalenessKey(abs),
		Env:          env,
	}
	if path, ok := manifest.Find(abs); ok {
		ctx.ManifestPath = path
	}
	return ctx, nil
}

// LoadEnv merges dotenv files in order, later files winning. Missing files
// are skipped. Keys are returned upper-cased.
func LoadEnv(paths ...string) (map[string]string, error) {
	v := viper.New()
	v.SetConfigType("env")

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	env := make(map[string]string)
	for _, key := range v.AllKeys() {
		env[strings.ToUpper(key)] = v.GetString(key)
	}
	return env, nil
}
