package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/snipcheck/internal/models"
	"github.com/harrison/snipcheck/internal/toolchain"
)

// HistoryConfig represents run history configuration
type HistoryConfig struct {
	// Enabled records every run in the history database
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the history database
	DBPath string `yaml:"db_path"`
}

// Config represents snipcheck configuration options
type Config struct {
	// Toolchains maps a language tag to a syntax-check command template
	Toolchains map[string]string `yaml:"toolchains"`

	// Workers is the maximum number of concurrent toolchain invocations
	Workers int `yaml:"workers"`

	// Timeout is the limit for the whole verification run (0 = none)
	Timeout time.Duration `yaml:"timeout"`

	// BlockTimeout is the limit for a single toolchain invocation (0 = none)
	BlockTimeout time.Duration `yaml:"block_timeout"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs are written (empty = no file log)
	LogDir string `yaml:"log_dir"`

	// Format selects the stdout report format (text, jsonl)
	Format string `yaml:"format"`

	// History contains run history configuration
	History HistoryConfig `yaml:"history"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Toolchains:   toolchain.DefaultCommands(),
		Workers:      1,
		Timeout:      0,
		BlockTimeout: 0,
		LogLevel:     "warn",
		LogDir:       "",
		Format:       "text",
		History: HistoryConfig{
			Enabled: false,
			DBPath:  filepath.Join(".snipcheck", "history.db"),
		},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations accept "30s" style strings or bare seconds, so decode them
	// as raw nodes first.
	type yamlConfig struct {
		Toolchains   map[string]string `yaml:"toolchains"`
		Workers      int               `yaml:"workers"`
		Timeout      yaml.Node         `yaml:"timeout"`
		BlockTimeout yaml.Node         `yaml:"block_timeout"`
		LogLevel     string            `yaml:"log_level"`
		LogDir       string            `yaml:"log_dir"`
		Format       string            `yaml:"format"`
		History      map[string]any    `yaml:"history"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Toolchains from the file extend the defaults; an empty command removes one.
	cfg.MergeToolchains(yamlCfg.Toolchains)
	if yamlCfg.Workers != 0 {
		cfg.Workers = yamlCfg.Workers
	}
	if yamlCfg.Timeout.Kind != 0 {
		d, err := parseDurationNode(&yamlCfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if yamlCfg.BlockTimeout.Kind != 0 {
		d, err := parseDurationNode(&yamlCfg.BlockTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid block_timeout: %w", err)
		}
		cfg.BlockTimeout = d
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}
	if yamlCfg.Format != "" {
		cfg.Format = yamlCfg.Format
	}

	// History fields are merged only when present
	if yamlCfg.History != nil {
		if v, exists := yamlCfg.History["enabled"]; exists {
			enabled, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("history.enabled must be a boolean, got %v", v)
			}
			cfg.History.Enabled = enabled
		}
		if v, exists := yamlCfg.History["db_path"]; exists {
			cfg.History.DBPath = fmt.Sprint(v)
		}
	}

	return cfg, nil
}

// parseDurationNode accepts a Go duration string ("90s", "2m") or a bare
// number of seconds.
func parseDurationNode(n *yaml.Node) (time.Duration, error) {
	value := strings.TrimSpace(n.Value)
	if value == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%q is neither a duration nor a number of seconds", value)
	}
	return d, nil
}

// ParseDuration is the flag-side twin of the config duration syntax.
func ParseDuration(s string) (time.Duration, error) {
	return parseDurationNode(&yaml.Node{Kind: yaml.ScalarNode, Value: s})
}

// LoadConfigFromDir loads configuration from .snipcheck/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ".snipcheck", "config.yaml")
	return LoadConfig(configPath)
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(workers *int, timeout, blockTimeout *time.Duration, logLevel, logDir, format *string, history *bool) {
	if workers != nil {
		c.Workers = *workers
	}
	if timeout != nil {
		c.Timeout = *timeout
	}
	if blockTimeout != nil {
		c.BlockTimeout = *blockTimeout
	}
	if logLevel != nil {
		c.LogLevel = *logLevel
	}
	if logDir != nil {
		c.LogDir = *logDir
	}
	if format != nil {
		c.Format = *format
	}
	if history != nil {
		c.History.Enabled = *history
	}
}

// MergeToolchains applies tag=command overrides.
// An empty command removes the tag.
func (c *Config) MergeToolchains(overrides map[string]string) {
	if c.Toolchains == nil {
		c.Toolchains = make(map[string]string)
	}
	for tag, cmd := range overrides {
		key := models.NormalizeTag(tag)
		if strings.TrimSpace(cmd) == "" {
			delete(c.Toolchains, key)
			continue
		}
		c.Toolchains[key] = cmd
	}
}

// Registry builds the toolchain registry described by the configuration.
func (c *Config) Registry() *toolchain.Registry {
	return toolchain.NewRegistry(c.Toolchains)
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %v", c.Timeout)
	}
	if c.BlockTimeout < 0 {
		return fmt.Errorf("block_timeout must be >= 0, got %v", c.BlockTimeout)
	}

	if c.Format != "text" && c.Format != "jsonl" {
		return fmt.Errorf("invalid format %q, must be one of: text, jsonl", c.Format)
	}

	if err := c.Registry().Validate(); err != nil {
		return err
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("history.db_path cannot be empty when history is enabled")
	}

	return nil
}
