package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "X-Webhook-Signature", cfg.Webhook.SignatureHeader)
	assert.Equal(t, "X-Webhook-Timestamp", cfg.Webhook.TimestampHeader)
	assert.Equal(t, 300, cfg.Webhook.ReplayWindowSecs)
	assert.Equal(t, 5*time.Minute, cfg.Webhook.ReplayWindow())
	assert.Equal(t, int64(1<<20), cfg.Webhook.MaxBodyBytes)
	assert.InDelta(t, 0.5, cfg.Reconcile.ConfidenceThreshold, 0.001)
	assert.Equal(t, "Brasil", cfg.Reconcile.DefaultCountry)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
  format: console
server:
  port: 9090
webhook:
  secret: topsecret
  replay_window_secs: 120
reconcile:
  confidence_threshold: 0.7
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "topsecret", cfg.Webhook.Secret)
	assert.Equal(t, 2*time.Minute, cfg.Webhook.ReplayWindow())
	assert.InDelta(t, 0.7, cfg.Reconcile.ConfidenceThreshold, 0.001)
	// Defaults still apply for unset values
	assert.Equal(t, "X-Webhook-Signature", cfg.Webhook.SignatureHeader)
	assert.Equal(t, "Brasil", cfg.Reconcile.DefaultCountry)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
webhook:
  secret: from-file
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CONVERSA_STORE_DRIVER", "postgres")
	t.Setenv("CONVERSA_WEBHOOK_SECRET", "from-env")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "from-env", cfg.Webhook.Secret)
}

func TestLoadRejectsNonPositiveReplayWindow(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
webhook:
  replay_window_secs: 0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replay window")
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "not-a-level", Format: "json"})
	require.Error(t, err)
}
