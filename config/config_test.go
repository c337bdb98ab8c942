package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  trusted_proxies: ["10.0.0.0/8", "127.0.0.1"]
  request_ip_header: X-Real-IP
database:
  driver: postgres
  dsn: host=localhost user=uptime
  enable_timescale: true
ingest:
  enabled: true
  interval_seconds: 120
  dir: /srv/data
report:
  workers: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.Server.TrustedProxies)
	assert.Equal(t, "X-Real-IP", cfg.Server.RequestIPHeader)
	assert.Equal(t, 10.0, cfg.Server.RateLimitPerSec)
	assert.Equal(t, 50.0, cfg.Server.PollRateLimitPerSec)
	assert.Equal(t, 100, cfg.Server.PollRateLimitBurst)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "host=localhost user=uptime", cfg.Database.DSN)
	assert.True(t, cfg.Database.EnableTimescale)
	assert.True(t, cfg.Ingest.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Ingest.Interval)
	assert.Equal(t, "/srv/data", cfg.Ingest.Dir)
	assert.Equal(t, "store_status.csv", cfg.Ingest.StatusFile)
	assert.Equal(t, 3, cfg.Report.Workers)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server: {}\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Empty(t, cfg.Server.TrustedProxies)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "uptime.db", cfg.Database.DSN)
	assert.Equal(t, time.Hour, cfg.Ingest.Interval)
	assert.Equal(t, "store.csv", cfg.Ingest.SitesFile)
	assert.Equal(t, "business_hours.csv", cfg.Ingest.HoursFile)
	assert.Equal(t, 1, cfg.Report.Workers)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvDatabaseDriver, "postgres")
	t.Setenv(EnvDatabaseDSN, "host=db")
	t.Setenv(EnvIngestDir, "/tmp/csv")

	cfg, err := Load(writeConfig(t, "database:\n  driver: sqlite\n  dsn: local.db\n"))
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "host=db", cfg.Database.DSN)
	assert.Equal(t, "/tmp/csv", cfg.Ingest.Dir)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
