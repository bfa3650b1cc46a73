package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "meterwatch.log")

	log, err := File(path, "warn", false)
	require.NoError(t, err)
	log.Info("dropped")
	log.Warn("fetch failed")
	require.NoError(t, log.Sync())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, `"msg":"fetch failed"`)
	assert.False(t, strings.Contains(out, "dropped"), "info should be below warn")
}

func TestVerboseOverridesLevel(t *testing.T) {
	lvl, err := parseLevel("error", true)
	require.NoError(t, err)
	assert.Equal(t, "debug", lvl.String())
}

func TestBadLevel(t *testing.T) {
	_, err := Console("loud", false)
	assert.Error(t, err)
}
