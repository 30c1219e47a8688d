// Package config provides configuration management for changeops.
// Configuration is loaded from (highest to lowest priority):
// 1. Explicit path (--config flag)
// 2. Environment variable (CHANGEOPS_CONFIG)
// 3. Project config (changeops.yaml in the project root)
// 4. Defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ModelPrice holds per-million-token prices for one model.
type ModelPrice struct {
	// Input is the price in USD per million input tokens.
	Input float64 `yaml:"input" json:"input"`

	// Output is the price in USD per million output tokens.
	Output float64 `yaml:"output" json:"output"`
}

// Config holds all changeops configuration.
type Config struct {
	// RuntimeCommand is the agent CLI used to generate and review
	// artifacts. Default: "claude".
	RuntimeCommand string `yaml:"runtime_command" json:"runtime_command"`

	// SessionListArgs are the runtime subcommand arguments that print the
	// session listing consumed by the resolver.
	SessionListArgs []string `yaml:"session_list_args" json:"session_list_args"`

	// MaxIterations bounds critique/revision passes per cycle.
	MaxIterations int `yaml:"max_iterations" json:"max_iterations"`

	// Retries is the number of automatic retries per external call after
	// a failed attempt.
	Retries int `yaml:"retries" json:"retries"`

	// RetryDelay is the fixed delay between retry attempts.
	RetryDelay Duration `yaml:"retry_delay" json:"retry_delay"`

	// InvokeTimeout bounds a single external-agent call.
	InvokeTimeout Duration `yaml:"invoke_timeout" json:"invoke_timeout"`

	// Pricing maps model identifiers to per-Mtok prices. Models absent
	// from the table record zero cost, never omit the record.
	Pricing map[string]ModelPrice `yaml:"pricing" json:"pricing"`
}

// ConfigFileName is the project config file name.
const ConfigFileName = "changeops.yaml"

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		RuntimeCommand:  "claude",
		SessionListArgs: []string{"sessions", "list"},
		MaxIterations:   3,
		Retries:         2,
		RetryDelay:      Duration(5 * time.Second),
		InvokeTimeout:   Duration(15 * time.Minute),
		Pricing:         map[string]ModelPrice{},
	}
}

// Load loads configuration for a project root with proper precedence.
// explicitPath comes from the --config flag; empty means unset.
func Load(root, explicitPath string) (*Config, error) {
	cfg := Default()

	path := explicitPath
	if path == "" {
		path = os.Getenv("CHANGEOPS_CONFIG")
	}
	if path == "" {
		path = filepath.Join(root, ConfigFileName)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	merge(cfg, &file)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks bounds that would otherwise surface as confusing driver
// behavior much later.
func (c *Config) Validate() error {
	if c.RuntimeCommand == "" {
		return fmt.Errorf("runtime_command must not be empty")
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", c.MaxIterations)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative, got %d", c.Retries)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry_delay must not be negative")
	}
	if c.InvokeTimeout <= 0 {
		return fmt.Errorf("invoke_timeout must be positive")
	}
	for model, price := range c.Pricing {
		if price.Input < 0 || price.Output < 0 {
			return fmt.Errorf("pricing for %s must not be negative", model)
		}
	}
	return nil
}

// fileConfig mirrors Config with optional scalar fields so an explicit
// zero in the file (retries: 0, retry_delay: 0) is distinguishable from
// an absent key.
type fileConfig struct {
	RuntimeCommand  *string               `yaml:"runtime_command"`
	SessionListArgs []string              `yaml:"session_list_args"`
	MaxIterations   *int                  `yaml:"max_iterations"`
	Retries         *int                  `yaml:"retries"`
	RetryDelay      *Duration             `yaml:"retry_delay"`
	InvokeTimeout   *Duration             `yaml:"invoke_timeout"`
	Pricing         map[string]ModelPrice `yaml:"pricing"`
}

// merge overlays the fields present in the file onto dst.
func merge(dst *Config, src *fileConfig) {
	if src.RuntimeCommand != nil {
		dst.RuntimeCommand = *src.RuntimeCommand
	}
	if src.SessionListArgs != nil {
		dst.SessionListArgs = src.SessionListArgs
	}
	if src.MaxIterations != nil {
		dst.MaxIterations = *src.MaxIterations
	}
	if src.Retries != nil {
		dst.Retries = *src.Retries
	}
	if src.RetryDelay != nil {
		dst.RetryDelay = *src.RetryDelay
	}
	if src.InvokeTimeout != nil {
		dst.InvokeTimeout = *src.InvokeTimeout
	}
	for model, price := range src.Pricing {
		dst.Pricing[model] = price
	}
}
