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
	"os"
	"strconv"
	"strings"
)

// GetEnvironment returns the current environment from LOCKAUDIT_ENV or
// defaults to development.
func GetEnvironment() string {
	env := os.Getenv("LOCKAUDIT_ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = "development"
	}
	return strings.ToLower(env)
}

// IsProduction returns true if running in production environment.
func IsProduction() bool {
	return GetEnvironment() == "production"
}

// IsDevelopment returns true if running in development or local environment.
func IsDevelopment() bool {
	env := GetEnvironment()
	return env == "development" || env == "local"
}

// applyEnvironmentOverrides layers environment variables on top of the
// values parsed from config.json, highest priority last.
func applyEnvironmentOverrides(cfg *Config) {
	if v := os.Getenv("LOCKAUDIT_HA_API_KEY"); v != "" {
		cfg.HAAPIKey = v
	}
	if v := os.Getenv("LOCKAUDIT_TIME_GRACE_PERIOD_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TimeGracePeriod = n
		}
	}
	if v := os.Getenv("LOCKAUDIT_RELOCK_DELAY_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.RelockDelay = n
		}
	}
	if v := os.Getenv("LOCKAUDIT_REQUIRE_AUDIT"); v != "" {
		cfg.RequireAudit = v == "true" || v == "1"
	}
	if v := os.Getenv("LOCKAUDIT_PERSISTENCE_DSN"); v != "" {
		cfg.Persistence.DSN = v
	}
	if v := os.Getenv("LOCKAUDIT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOCKAUDIT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("LOCKAUDIT_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("LOCKAUDIT_AUDIT_READ_TOKEN_SECRET"); v != "" {
		cfg.Audit.ReadTokenSecret = v
	}
}
