package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/folio/configs"
)

func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, k := range []string{"FOLIO_INDEX_PATH", "FOLIO_BATCH_SIZE", "FOLIO_WORKERS", "FOLIO_LEDGER_PATH", "FOLIO_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	return t.TempDir()
}

// TS01: Defaults apply when no file exists
func TestLoad_Defaults(t *testing.T) {
	// Given: an empty directory and no user config
	dir := isolate(t)

	// When: loading
	cfg, err := Load(dir)

	// Then: defaults are applied and relative paths resolved
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".folio", "index"), cfg.Index.Path)
	assert.Equal(t, 100, cfg.Index.BatchSize)
	assert.Equal(t, runtime.NumCPU(), cfg.Ingest.Workers)
	assert.Equal(t, -1, cfg.Ingest.GroupSegment)
	assert.Equal(t, []string{"chapter", "add_timestamp", "book", "source"}, cfg.Search.Columns)

	d, err := cfg.WatchDebounce()
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, d)
}

// TS02: Project file overrides user file, env overrides both
func TestLoad_Precedence(t *testing.T) {
	// Given: a user config, a project config and an env var
	dir := isolate(t)
	userDir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "folio")
	require.NoError(t, os.MkdirAll(userDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "config.yaml"),
		[]byte("index:\n  batch_size: 7\nsearch:\n  limit: 3\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectFile),
		[]byte("search:\n  limit: 5\ningest:\n  group_segment: 0\n"), 0o644))
	t.Setenv("FOLIO_WORKERS", "2")

	// When: loading
	cfg, err := Load(dir)

	// Then: each layer wins where it is set
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Index.BatchSize)
	assert.Equal(t, 5, cfg.Search.Limit)
	assert.Equal(t, 0, cfg.Ingest.GroupSegment)
	assert.Equal(t, 2, cfg.Ingest.Workers)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectFile), []byte("index: [oops"), 0o644))

	_, err := Load(dir)

	assert.Error(t, err)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch", func(c *Config) { c.Index.BatchSize = 0 }},
		{"zero workers", func(c *Config) { c.Ingest.Workers = 0 }},
		{"bad debounce", func(c *Config) { c.Watch.Debounce = "soon" }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"negative cache", func(c *Config) { c.Search.CacheSize = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestProjectTemplate_MatchesDefaults(t *testing.T) {
	// Given: the template config init writes
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectFile), []byte(configs.ProjectConfigTemplate), 0o644))

	// When: loading it
	loaded, err := Load(dir)
	require.NoError(t, err)

	// Then: it changes nothing
	defaults, err := Load(t.TempDir())
	require.NoError(t, err)
	loaded.Index.Path = filepath.Base(loaded.Index.Path)
	loaded.Ledger.Path = filepath.Base(loaded.Ledger.Path)
	defaults.Index.Path = filepath.Base(defaults.Index.Path)
	defaults.Ledger.Path = filepath.Base(defaults.Ledger.Path)
	assert.Equal(t, defaults, loaded)
}

func TestUserTemplate_Parses(t *testing.T) {
	isolate(t)
	path := GetUserConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(configs.UserConfigTemplate), 0o644))

	_, err := Load(t.TempDir())

	require.NoError(t, err)
}
