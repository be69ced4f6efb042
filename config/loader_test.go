package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir string, body map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), data, 0644))
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, map[string]interface{}{
		"haApiKey": "secret",
		"entities": map[string]interface{}{
			"front-door": map[string]string{"id": "front-door", "name": "Front Door", "haEntity": "lock.front_door"},
		},
	})

	cfg, err := Load(LoaderOptions{ConfigDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.HAAPIKey)
	assert.EqualValues(t, defaultTimeGracePeriodMs, cfg.TimeGracePeriod)
	assert.EqualValues(t, defaultRelockDelayMs, cfg.RelockDelay)
	assert.True(t, cfg.RequireAudit)
	assert.Equal(t, "file", cfg.Persistence.Type)
}

func TestLoadRequireAuditExplicitFalse(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, map[string]interface{}{
		"requireAudit": false,
	})

	cfg, err := Load(LoaderOptions{ConfigDir: dir})
	require.NoError(t, err)
	assert.False(t, cfg.RequireAudit)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(LoaderOptions{ConfigDir: t.TempDir()})
	require.NoError(t, err)
	assert.True(t, cfg.RequireAudit)
	assert.NotNil(t, cfg.Entities)
}

func TestValidateConfigurationRejectsBadPersistence(t *testing.T) {
	cfg := &Config{TimeGracePeriod: 1000, Persistence: PersistenceConfig{Type: "redis"}}
	issues := ValidateConfiguration(cfg)
	var found bool
	for _, i := range issues {
		if i.Field == "persistence.type" && i.Level == "error" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("LOCKAUDIT_HA_API_KEY", "from-env")
	t.Setenv("LOCKAUDIT_REQUIRE_AUDIT", "false")

	cfg, err := Load(LoaderOptions{ConfigDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.HAAPIKey)
	assert.False(t, cfg.RequireAudit)
}
