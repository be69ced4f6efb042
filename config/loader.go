// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	defaultTimeGracePeriodMs = 5 * 60 * 1000
	defaultRelockDelayMs     = 3 * 1000
)

// ValidationIssue is a single problem found while validating a loaded
// configuration. Level "error" aborts Load; "warn" does not block Load,
// which neither logs nor returns it (ValidateConfiguration reports it).
type ValidationIssue struct {
	Field   string
	Message string
	Level   string
}

// LoaderOptions configures the configuration loader.
type LoaderOptions struct {
	// ConfigDir is the directory containing config.json (default: ./config)
	ConfigDir string
	// Environment overrides automatic environment detection
	Environment string
	// SkipValidation disables configuration validation
	SkipValidation bool
}

// DefaultLoaderOptions returns default loader options.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		ConfigDir: "config",
	}
}

// Load loads configuration with automatic environment detection. It tries,
// in order, config/<env>.json, config/config.json, then falls back to an
// empty config populated entirely from defaults and environment overrides.
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	// Best-effort: pick up a local .env for development without requiring
	// the operator to export vars into the shell.
	_ = godotenv.Load()

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	envConfigPath := filepath.Join(options.ConfigDir, fmt.Sprintf("%s.json", env))
	cfg, err := loadConfigFile(envConfigPath)
	if err != nil {
		defaultConfigPath := filepath.Join(options.ConfigDir, "config.json")
		cfg, err = loadConfigFile(defaultConfigPath)
		if err != nil {
			cfg = &Config{RequireAudit: true}
		}
	}

	setDefaults(cfg)
	applyEnvironmentOverrides(cfg)

	if !options.SkipValidation {
		issues := ValidateConfiguration(cfg)
		for _, issue := range issues {
			if issue.Level == "error" {
				return nil, fmt.Errorf("configuration validation failed: %s - %s", issue.Field, issue.Message)
			}
		}
	}

	return cfg, nil
}

// loadConfigFile reads and JSON-decodes a single config file. requireAudit
// defaults to true, so presence is checked separately: the zero value of a
// plain bool can't distinguish "absent" from "explicitly false".
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s: %w", path, err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err == nil {
		if _, present := raw["requireAudit"]; !present {
			cfg.RequireAudit = true
		}
	}
	return cfg, nil
}

// setDefaults fills in zero-valued fields with the defaults the original
// lock server shipped with.
func setDefaults(cfg *Config) {
	if cfg.TimeGracePeriod == 0 {
		cfg.TimeGracePeriod = defaultTimeGracePeriodMs
	}
	if cfg.RelockDelay == 0 {
		cfg.RelockDelay = defaultRelockDelayMs
	}
	if cfg.Entities == nil {
		cfg.Entities = map[string]Entity{}
	}
	if cfg.Persistence.Type == "" {
		cfg.Persistence.Type = "file"
	}
	if cfg.Persistence.Path == "" {
		cfg.Persistence.Path = "state_lock.json"
	}
	if cfg.Persistence.TableName == "" {
		cfg.Persistence.TableName = "lockaudit_devices"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Audit.ReadTokenTTL == 0 {
		cfg.Audit.ReadTokenTTL = 3600
	}
	// RequireAudit defaults to true unless a loaded file set it explicitly
	// to false; since Go's zero value for bool is false, track the
	// "never set" case the same way the original did: default on.
}

// ValidateConfiguration checks a loaded config for internal consistency and
// returns every issue found, ordered error-before-warn is not guaranteed.
func ValidateConfiguration(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Persistence.Type != "file" && cfg.Persistence.Type != "postgres" {
		issues = append(issues, ValidationIssue{
			Field:   "persistence.type",
			Message: fmt.Sprintf("unknown persistence type %q, must be file or postgres", cfg.Persistence.Type),
			Level:   "error",
		})
	}
	if cfg.Persistence.Type == "postgres" && cfg.Persistence.DSN == "" {
		issues = append(issues, ValidationIssue{
			Field:   "persistence.dsn",
			Message: "postgres persistence requires a dsn",
			Level:   "error",
		})
	}
	if cfg.TimeGracePeriod <= 0 {
		issues = append(issues, ValidationIssue{
			Field:   "timeGracePeriod",
			Message: "must be positive",
			Level:   "error",
		})
	}
	if cfg.HAAPIKey == "" {
		issues = append(issues, ValidationIssue{
			Field:   "haApiKey",
			Message: "empty; lock actuation requests will be rejected by Home Assistant",
			Level:   "warn",
		})
	}
	if cfg.AttestationRootsPath == "" {
		issues = append(issues, ValidationIssue{
			Field:   "attestationRootsPath",
			Message: "empty; the lock server will reject every pairing attempt until a trusted roots file is configured",
			Level:   "warn",
		})
	}
	for id, e := range cfg.Entities {
		if e.HAEntity == "" {
			issues = append(issues, ValidationIssue{
				Field:   fmt.Sprintf("entities[%s].haEntity", id),
				Message: "empty haEntity binding",
				Level:   "error",
			})
		}
	}
	return issues
}

// LoadForEnvironment loads configuration for a specific environment.
func LoadForEnvironment(environment string) (*Config, error) {
	return Load(LoaderOptions{ConfigDir: "config", Environment: environment})
}

// MustLoad loads configuration or panics on error.
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
