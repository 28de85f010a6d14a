package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LCA_STORE", "")
	t.Setenv("LCA_POLL_MAX_ATTEMPTS", "")
	t.Setenv("PORT", "")

	cfg := Load()

	assert.Equal(t, "8787", cfg.Port)
	assert.Equal(t, "badger", cfg.StoreType)
	assert.Equal(t, DefaultPollConfig(), cfg.Poll)
	assert.Equal(t, 30*time.Second, cfg.BackendTimeout)
}

func TestLoadPollOverrides(t *testing.T) {
	t.Setenv("LCA_POLL_BASE_INTERVAL", "500ms")
	t.Setenv("LCA_POLL_MULTIPLIER", "2")
	t.Setenv("LCA_POLL_MAX_EXPONENT", "3")
	t.Setenv("LCA_POLL_MAX_ATTEMPTS", "7")

	cfg := Load()

	assert.Equal(t, 500*time.Millisecond, cfg.Poll.BaseInterval)
	assert.Equal(t, 2.0, cfg.Poll.Multiplier)
	assert.Equal(t, 3, cfg.Poll.MaxExponent)
	assert.Equal(t, 7, cfg.Poll.MaxAttempts)
}

func TestLoadIgnoresInvalidPollValues(t *testing.T) {
	t.Setenv("LCA_POLL_BASE_INTERVAL", "soon")
	t.Setenv("LCA_POLL_MULTIPLIER", "0.5")
	t.Setenv("LCA_POLL_MAX_ATTEMPTS", "-3")

	cfg := Load()

	assert.Equal(t, DefaultPollConfig().BaseInterval, cfg.Poll.BaseInterval)
	assert.Equal(t, DefaultPollConfig().Multiplier, cfg.Poll.Multiplier)
	assert.Equal(t, DefaultPollConfig().MaxAttempts, cfg.Poll.MaxAttempts)
}

func TestNormalizeStoreType(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "memory", want: "memory"},
		{raw: " PG ", want: "postgres"},
		{raw: "postgres", want: "postgres"},
		{raw: "", want: "badger"},
		{raw: "whatever", want: "badger"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeStoreType(tt.raw))
		})
	}
}

func TestLoadEnvFilesDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("LCA_TEST_FROM_FILE=file\nLCA_TEST_PRESET=file\n"), 0o600))

	t.Setenv("LCA_TEST_PRESET", "env")
	t.Cleanup(func() { _ = os.Unsetenv("LCA_TEST_FROM_FILE") })

	loadEnvFiles(path, filepath.Join(dir, "missing.env"))

	assert.Equal(t, "file", os.Getenv("LCA_TEST_FROM_FILE"))
	assert.Equal(t, "env", os.Getenv("LCA_TEST_PRESET"))
}
