package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luki/meterwatch/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func parseConfig(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags(args))
	return loadConfig(cmd)
}

func TestLoadConfigPrecedence(t *testing.T) {
	unset := writeConfig(t, "interval: 5s\n")
	explicit := writeConfig(t, "interval: 5s\nstale_after: 40s\n")
	disabled := writeConfig(t, "interval: 5s\nstale_after: 0s\n")

	tests := []struct {
		name         string
		args         []string
		wantInterval time.Duration
		wantStale    time.Duration
	}{
		{"defaults", nil, config.DefaultInterval, 3 * config.DefaultInterval},
		{"interval flag without file", []string{"--interval", "10s"}, 10 * time.Second, 30 * time.Second},
		{"file only", []string{"-c", unset}, 5 * time.Second, 15 * time.Second},
		{"interval flag over file", []string{"-c", unset, "-i", "1m"}, time.Minute, 3 * time.Minute},
		{"explicit stale survives interval flag", []string{"-c", explicit, "-i", "1m"}, time.Minute, 40 * time.Second},
		{"zero in file disables", []string{"-c", disabled, "-i", "1m"}, time.Minute, 0},
		{"stale flag wins", []string{"-c", explicit, "--stale-after", "2m"}, 5 * time.Second, 2 * time.Minute},
		{"stale flag zero", []string{"-c", unset, "--stale-after", "0s"}, 5 * time.Second, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parseConfig(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantInterval, cfg.Interval)
			assert.Equal(t, tt.wantStale, cfg.Staleness())
		})
	}
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	path := writeConfig(t, "endpoint: http://meter.local/api/dashboard\ntimeout: 2s\n")

	cfg, err := parseConfig(t, "-c", path, "-e", "https://other/api/dashboard", "--timeout", "750ms", "--log-file", "/tmp/mw.log")
	require.NoError(t, err)
	assert.Equal(t, "https://other/api/dashboard", cfg.Endpoint)
	assert.Equal(t, 750*time.Millisecond, cfg.Timeout)
	assert.Equal(t, "/tmp/mw.log", cfg.Log.File)
}

func TestLoadConfigRejectsInvalidOverride(t *testing.T) {
	_, err := parseConfig(t, "--interval", "100ms")
	assert.Error(t, err)

	_, err = parseConfig(t, "--stale-after=-1s")
	assert.Error(t, err)

	_, err = parseConfig(t, "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
