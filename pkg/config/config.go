package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultRefreshIntervalHours is how long images and the install stay fresh
	DefaultRefreshIntervalHours = 16
	// DefaultCacheRetentionDays is how long unused cache entries survive
	DefaultCacheRetentionDays = 30
	// DefaultUpdateRemote is the git remote pulled by self-update
	DefaultUpdateRemote = "origin"

	envPrefix = "BOXKIT"
)

// Config represents boxkit's configuration
type Config struct {
	InstallRoot          string `mapstructure:"install_root" yaml:"install_root,omitempty"`
	CacheRoot            string `mapstructure:"cache_root" yaml:"cache_root,omitempty"`
	ComposeCommand       string `mapstructure:"compose_command" yaml:"compose_command,omitempty"` // "docker compose", "podman-compose", ...
	RefreshIntervalHours int    `mapstructure:"refresh_interval_hours" yaml:"refresh_interval_hours"`
	CacheRetentionDays   int    `mapstructure:"cache_retention_days" yaml:"cache_retention_days"`
	AutoRefreshImages    bool   `mapstructure:"auto_refresh_images" yaml:"auto_refresh_images"`
	SelfUpdate           bool   `mapstructure:"self_update" yaml:"self_update"`
	UpdateRemote         string `mapstructure:"update_remote" yaml:"update_remote,omitempty"`

	// ConfigDir is where the config was loaded from; global env files live here too.
	ConfigDir string `mapstructure:"-" yaml:"-"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		CacheRoot:            GetCachePath(),
		RefreshIntervalHours: DefaultRefreshIntervalHours,
		CacheRetentionDays:   DefaultCacheRetentionDays,
		AutoRefreshImages:    true,
		SelfUpdate:           true,
		UpdateRemote:         DefaultUpdateRemote,
		ConfigDir:            GetConfigDir(),
	}
}

// Interval returns the refresh interval, falling back to the default for
// non-positive values.
func (c *Config) Interval() time.Duration {
	if c.RefreshIntervalHours <= 0 {
		return DefaultRefreshIntervalHours * time.Hour
	}
	return time.Duration(c.RefreshIntervalHours) * time.Hour
}

// Retention returns how long cache entries are kept.
func (c *Config) Retention() time.Duration {
	days := c.CacheRetentionDays
	if days <= 0 {
		days = DefaultCacheRetentionDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// GetConfigDir returns the directory holding config.yaml and boxkit.env
func GetConfigDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "boxkit")
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// GetCachePath returns the default staleness cache root
func GetCachePath() string {
	cacheHome := os.Getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		home, _ := os.UserHomeDir()
		cacheHome = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheHome, "boxkit")
}

// GetInstallRoot returns the directory above the running executable, with
// symlinks resolved. BOXKIT_HOME takes precedence when loading config.
func GetInstallRoot() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(filepath.Dir(exe))
}

// Load layers defaults, the config file and BOXKIT_* environment variables
func Load() (*Config, error) {
	return LoadFile(GetConfigPath())
}

// LoadFile is Load with an explicit config file; a missing file is not an error.
func LoadFile(configPath string) (*Config, error) {
	defaults := Default()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetDefault("install_root", "")
	v.SetDefault("cache_root", defaults.CacheRoot)
	v.SetDefault("compose_command", "")
	v.SetDefault("refresh_interval_hours", defaults.RefreshIntervalHours)
	v.SetDefault("cache_retention_days", defaults.CacheRetentionDays)
	v.SetDefault("auto_refresh_images", defaults.AutoRefreshImages)
	v.SetDefault("self_update", defaults.SelfUpdate)
	v.SetDefault("update_remote", defaults.UpdateRemote)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Short aliases kept for shell convenience.
	if err := v.BindEnv("install_root", "BOXKIT_INSTALL_ROOT", "BOXKIT_HOME"); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}
	if err := v.BindEnv("compose_command", "BOXKIT_COMPOSE_COMMAND", "BOXKIT_COMPOSE"); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ConfigDir = filepath.Dir(configPath)
	if cfg.InstallRoot == "" {
		cfg.InstallRoot = GetInstallRoot()
	}
	return &cfg, nil
}

// ReadFile returns only what configPath itself holds, over the built-in
// defaults. Unlike LoadFile it ignores the environment and derives no
// paths, so a config read this way can be saved back without pinning them.
func ReadFile(configPath string) (*Config, error) {
	cfg := &Config{
		RefreshIntervalHours: DefaultRefreshIntervalHours,
		CacheRetentionDays:   DefaultCacheRetentionDays,
		AutoRefreshImages:    true,
		SelfUpdate:           true,
		UpdateRemote:         DefaultUpdateRemote,
	}

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.ConfigDir = filepath.Dir(configPath)
	return cfg, nil
}

// Save saves the config to disk
func Save(cfg *Config) error {
	return SaveFile(cfg, GetConfigPath())
}

// SaveFile writes cfg as YAML to configPath
func SaveFile(cfg *Config, configPath string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
