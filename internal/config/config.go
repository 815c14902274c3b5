// Package config loads the tool configuration from <base>/config.yaml,
// filling defaults for anything unset.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ToolsConfig names the external binaries the engine drives. Overridable
// for unusual installs and for tests.
type ToolsConfig struct {
	Systemctl string `yaml:"systemctl"`
	Sysctl    string `yaml:"sysctl"`
	AptGet    string `yaml:"apt_get"`
}

// RetentionConfig bounds how long run artifacts are kept.
type RetentionConfig struct {
	MaxAgeDays int `yaml:"max_age_days"`
	MaxRuns    int `yaml:"max_runs"`
}

// Config is the full tool configuration.
type Config struct {
	BaseDir       string          `yaml:"base_dir"`
	ActionTimeout int             `yaml:"action_timeout"` // seconds per external call
	Tools         ToolsConfig     `yaml:"tools"`
	Retention     RetentionConfig `yaml:"retention"`
}

// Default returns the built-in configuration. Root gets the system state
// directory; everyone else gets a dotdir.
func Default() *Config {
	base := "/var/lib/retune"
	if os.Geteuid() != 0 {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".retune")
	}
	return &Config{
		BaseDir:       base,
		ActionTimeout: 60,
		Tools: ToolsConfig{
			Systemctl: "systemctl",
			Sysctl:    "sysctl",
			AptGet:    "apt-get",
		},
		Retention: RetentionConfig{
			MaxAgeDays: 90,
			MaxRuns:    50,
		},
	}
}

// Load reads the config file at path, falling back to defaults when the
// file does not exist. Zero values in the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	// Ensure defaults for zero values
	d := Default()
	if cfg.BaseDir == "" {
		cfg.BaseDir = d.BaseDir
	}
	if cfg.ActionTimeout == 0 {
		cfg.ActionTimeout = d.ActionTimeout
	}
	if cfg.Tools.Systemctl == "" {
		cfg.Tools.Systemctl = d.Tools.Systemctl
	}
	if cfg.Tools.Sysctl == "" {
		cfg.Tools.Sysctl = d.Tools.Sysctl
	}
	if cfg.Tools.AptGet == "" {
		cfg.Tools.AptGet = d.Tools.AptGet
	}
	if cfg.Retention.MaxAgeDays == 0 {
		cfg.Retention.MaxAgeDays = d.Retention.MaxAgeDays
	}
	if cfg.Retention.MaxRuns == 0 {
		cfg.Retention.MaxRuns = d.Retention.MaxRuns
	}

	return cfg, nil
}

// RunsDir returns the runs root directory.
func (c *Config) RunsDir() string { return filepath.Join(c.BaseDir, "runs") }

// AuditDir returns the audit log directory.
func (c *Config) AuditDir() string { return filepath.Join(c.BaseDir, "audit") }

// DBPath returns the sqlite run index path.
func (c *Config) DBPath() string { return filepath.Join(c.BaseDir, "retune.db") }

// EnsureDirs creates the state directory tree, owner-only.
func (c *Config) EnsureDirs() error {
	for _, d := range []string{c.BaseDir, c.RunsDir(), c.AuditDir()} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return fmt.Errorf("config: mkdir %s: %w", d, err)
		}
	}
	return nil
}
