package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"CONFIG_FILE", "TELEGRAM_TOKEN", "DATABASE_URL", "FILES_DIR", "SORT_LOCALE"} {
		t.Setenv(key, "")
	}
	// DIGEST_TIME distinguishes unset from empty.
	t.Setenv("DIGEST_TIME", "")
	os.Unsetenv("DIGEST_TIME")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultDatabaseURL, cfg.DatabaseURL)
	assert.Equal(t, DefaultFilesDir, cfg.FilesDir)
	assert.Equal(t, DefaultDigestTime, cfg.DigestTime)
	assert.Equal(t, DefaultSortLocale, cfg.SortLocale)
	assert.EqualError(t, cfg.Validate(), "TELEGRAM_TOKEN is required")
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "planner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
telegram_token: from-file
database_url: data/tasks.db
digest_time: "07:15"
sort_locale: de
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("TELEGRAM_TOKEN", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.TelegramToken)
	assert.Equal(t, "data/tasks.db", cfg.DatabaseURL)
	assert.Equal(t, "07:15", cfg.DigestTime)
	assert.Equal(t, "de", cfg.SortLocale)
	assert.Equal(t, DefaultFilesDir, cfg.FilesDir)
	assert.NoError(t, cfg.Validate())
}

func TestLoadDigestDisabled(t *testing.T) {
	clearEnv(t)
	t.Setenv("DIGEST_TIME", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.DigestTime)

	t.Setenv("DIGEST_TIME", "off")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.DigestTime)
}

func TestLoadRejectsBadInput(t *testing.T) {
	clearEnv(t)
	t.Setenv("DIGEST_TIME", "25:99")
	_, err := Load()
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = Load()
	assert.Error(t, err)
}
