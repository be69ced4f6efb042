// Package config provides configuration management for lockaudit.
package config

// Config is the root configuration shared by the lock server and the audit
// server. Both binaries load the same file shape; the audit server simply
// ignores the fields it doesn't need (Entities, HAAPIKey, RelockDelay).
type Config struct {
	// HAAPIKey is the long-lived bearer token used to authenticate against
	// the Home Assistant REST API when actuating a lock entity.
	HAAPIKey string `json:"haApiKey"`

	// AttestationRootsPath points at a PEM file of trusted hardware
	// attestation root certificates the lock server checks device
	// attestation chains against. Lock-server-only.
	AttestationRootsPath string `json:"attestationRootsPath"`

	// Entities maps an entity ID to its Home Assistant binding. Unlocks
	// can only start for these keys; a paired device's AllowedEntities is
	// not checked against them.
	Entities map[string]Entity `json:"entities"`

	// TimeGracePeriod bounds how far a request timestamp may drift from
	// the server's clock before it is rejected as stale, in milliseconds.
	TimeGracePeriod int64 `json:"timeGracePeriod"`

	// RelockDelay is how long the lock server waits after actuating an
	// unlock before automatically re-locking the entity, in milliseconds.
	RelockDelay int64 `json:"relockDelay"`

	// RequireAudit is loaded and overridable from the environment, but the
	// lock server does not consult it: every unlock request must carry an
	// audit server co-signature whatever its value.
	RequireAudit bool `json:"requireAudit"`

	// Persistence selects the snapshot backend for the device registry.
	Persistence PersistenceConfig `json:"persistence"`

	// Logging controls the structured logger.
	Logging LoggingConfig `json:"logging"`

	// Metrics controls the Prometheus exposition endpoint.
	Metrics MetricsConfig `json:"metrics"`

	// Audit holds settings specific to the audit co-signer server.
	Audit AuditConfig `json:"audit"`
}

// Entity describes a single lockable thing exposed to pairing and unlock
// flows under a short, stable ID.
type Entity struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	HAEntity string `json:"haEntity"`
}

// PersistenceConfig selects and configures the device-store snapshot
// backend. Type is either "file" (default) or "postgres".
type PersistenceConfig struct {
	Type       string `json:"type"`
	Path       string `json:"path"`
	DSN        string `json:"dsn"`
	TableName  string `json:"tableName"`
}

// LoggingConfig mirrors the shape the logger package expects.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, stderr, file path
}

// MetricsConfig controls the /metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
	Path    string `json:"path"`
}

// AuditConfig holds audit-server-only settings.
type AuditConfig struct {
	// ReadTokenTTL is how long an issued audit-log read token remains
	// valid, in seconds.
	ReadTokenTTL int64 `json:"readTokenTTL"`
	// ReadTokenSecret signs the read-token JWT returned alongside a
	// successful POST /api/register. Generated ephemerally if empty.
	ReadTokenSecret string `json:"readTokenSecret"`
}
