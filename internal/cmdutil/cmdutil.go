// Package cmdutil holds the handful of helpers shared by cmd/lockserver
// and cmd/auditserver's main.go that don't belong to any one domain
// package.
package cmdutil

import (
	"os"

	"github.com/sage-x-project/lockaudit/internal/logger"
)

// ParseLevel maps a config log level string onto logger.Level, returning
// -1 for unrecognized input so callers can fall back to the logger's
// built-in default instead of silently misconfiguring it.
func ParseLevel(s string) logger.Level {
	switch s {
	case "debug":
		return logger.DebugLevel
	case "info":
		return logger.InfoLevel
	case "warn":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return -1
	}
}

// EnvOr returns the named environment variable, or fallback if unset.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
