package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.Detection.Interval())
	assert.Equal(t, 2*time.Minute, cfg.Scheduler.Remediation.Interval())
	assert.Equal(t, time.Minute, cfg.Scheduler.Health.Interval())
	assert.True(t, cfg.Scheduler.Detection.IsEnabled())
	assert.True(t, cfg.Scheduler.Remediation.IsEnabled())
	assert.True(t, cfg.Scheduler.AutoRemediateHigh())
	assert.Equal(t, "simulated", cfg.Remediation.Provider)
	assert.Equal(t, 500*time.Millisecond, cfg.Remediation.Delay())
}

func TestParse_ExplicitSchedulerValues(t *testing.T) {
	raw := `
scheduler:
  detection:
    enabled: false
    intervalMs: 1000
  remediation:
    enabled: true
    intervalMs: 2000
    autoRemediateHigh: false
`
	cfg, err := Parse([]byte(raw))
	require.NoError(t, err)

	assert.False(t, cfg.Scheduler.Detection.IsEnabled())
	assert.Equal(t, time.Second, cfg.Scheduler.Detection.Interval())
	assert.True(t, cfg.Scheduler.Remediation.IsEnabled())
	assert.Equal(t, 2*time.Second, cfg.Scheduler.Remediation.Interval())
	assert.False(t, cfg.Scheduler.AutoRemediateHigh())
}

func TestParse_ReportsEveryProblem(t *testing.T) {
	raw := `
database:
  driver: oracle
remediation:
  provider: gcp
ai:
  enabled: true
`
	_, err := Parse([]byte(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown database.driver")
	assert.Contains(t, err.Error(), "unknown remediation.provider")
	assert.Contains(t, err.Error(), "ai.apiKey is required")
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
database:
  driver: mysql
  host: db
  port: 3306
  user: sec
  password: pw
  name: cloudsec
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sec:pw@tcp(db:3306)/cloudsec?parseTime=true&charset=utf8mb4&loc=Local", cfg.MySQLDSN())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParse_RemediationDelay(t *testing.T) {
	cfg, err := Parse([]byte("remediation:\n  delayMs: 0\n"))
	require.NoError(t, err)
	assert.Zero(t, cfg.Remediation.Delay())

	cfg, err = Parse([]byte("remediation:\n  delayMs: 250\n"))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Remediation.Delay())

	_, err = Parse([]byte("remediation:\n  delayMs: -1\n"))
	assert.ErrorContains(t, err, "remediation.delayMs must not be negative")
}
