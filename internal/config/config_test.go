package config

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFallsBackToDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()

	cfg, err := Load(fs, "/etc/lview/config.toml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/home/u/.config/lview/config.toml"
	require.NoError(t, afero.WriteFile(fs, path, []byte(`
filters = ["filter-out DEBUG", "disable-filter DEBUG"]

[poll]
interval_ms = 1000

[messages]
continuation_prefixes = ["\t"]
detect_json = true
`), 0o600))

	cfg, err := Load(fs, path)
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Poll.IntervalMs)
	assert.Equal(t, []string{"\t"}, cfg.Messages.ContinuationPrefixes)
	assert.True(t, cfg.Messages.DetectJSON)
	assert.Equal(t, []string{"filter-out DEBUG", "disable-filter DEBUG"}, cfg.Filters)
	// untouched sections keep their defaults
	assert.Equal(t, DefaultConfig().LogLevels, cfg.LogLevels)
}

func TestLoadRejectsBadToml(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/c.toml", []byte("poll = ["), 0o600))

	_, err := Load(fs, "/c.toml")
	assert.Error(t, err)
}

func TestLoadNonPositivePollUsesDefault(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/c.toml", []byte("[poll]\ninterval_ms = 0\n"), 0o600))

	cfg, err := Load(fs, "/c.toml")
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.Poll.IntervalMs)
}

func TestSaveRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/x/lview/config.toml"

	cfg := DefaultConfig()
	cfg.Filters = []string{"filter-in ERROR"}
	require.NoError(t, Save(fs, path, cfg))

	loaded, err := Load(fs, path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestDefaultPathHonoursXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	assert.Equal(t, filepath.Join(dir, "lview", "config.toml"), DefaultPath())
}
