package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectFile is the per-directory configuration file name.
const ProjectFile = ".folio.yaml"

// Config represents the complete folio configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Ingest  IngestConfig  `yaml:"ingest" json:"ingest"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Ledger  LedgerConfig  `yaml:"ledger" json:"ledger"`
	Watch   WatchConfig   `yaml:"watch" json:"watch"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// IndexConfig locates the search index and tunes the writer.
type IndexConfig struct {
	// Path is the index directory. Relative paths resolve against the config dir.
	Path string `yaml:"path" json:"path"`

	// BatchSize is how many documents the writer buffers before flushing.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
}

// IngestConfig controls archive extraction and load parallelism.
type IngestConfig struct {
	// Workers is the number of concurrent transform+load workers.
	Workers int `yaml:"workers" json:"workers"`

	// GroupSegment picks the path segment that names a page's group.
	// Negative means the directory directly containing the page.
	GroupSegment int `yaml:"group_segment" json:"group_segment"`
}

// SearchConfig controls result assembly.
type SearchConfig struct {
	Limit int `yaml:"limit" json:"limit"`

	// Columns are the column-backed fields merged into every result row.
	Columns []string `yaml:"columns" json:"columns"`

	// CacheSize bounds the assembled-row cache. Zero disables it.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// LedgerConfig locates the SQLite ingestion ledger.
type LedgerConfig struct {
	Path string `yaml:"path" json:"path"`
}

// WatchConfig tunes `folio watch`.
type WatchConfig struct {
	Debounce string `yaml:"debounce" json:"debounce"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Index: IndexConfig{
			Path:      filepath.Join(".folio", "index"),
			BatchSize: 100,
		},
		Ingest: IngestConfig{
			Workers:      runtime.NumCPU(),
			GroupSegment: -1,
		},
		Search: SearchConfig{
			Limit:     10,
			Columns:   []string{"chapter", "add_timestamp", "book", "source"},
			CacheSize: 1000,
		},
		Ledger: LedgerConfig{
			Path: filepath.Join(".folio", "ledger.db"),
		},
		Watch: WatchConfig{
			Debounce: "750ms",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
// $XDG_CONFIG_HOME/folio/config.yaml or ~/.config/folio/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "folio", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "folio", "config.yaml")
	}
	return filepath.Join(home, ".config", "folio", "config.yaml")
}

// Load loads configuration for dir. Precedence, lowest first:
//  1. Hardcoded defaults
//  2. User config (~/.config/folio/config.yaml)
//  3. Project config (.folio.yaml in dir)
//  4. Environment variables (FOLIO_*)
//
// Relative index and ledger paths are resolved against dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if path := filepath.Join(dir, ProjectFile); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.Index.Path = resolve(dir, cfg.Index.Path)
	cfg.Ledger.Path = resolve(dir, cfg.Ledger.Path)
	return cfg, nil
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed, yamlSetsGroupSegment(data))
	return nil
}

// yamlSetsGroupSegment reports whether ingest.group_segment is present, since
// zero is a meaningful segment index and cannot signal "unset".
func yamlSetsGroupSegment(data []byte) bool {
	var peek struct {
		Ingest map[string]any `yaml:"ingest"`
	}
	if err := yaml.Unmarshal(data, &peek); err != nil {
		return false
	}
	_, ok := peek.Ingest["group_segment"]
	return ok
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config, groupSegmentSet bool) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Index.Path != "" {
		c.Index.Path = other.Index.Path
	}
	if other.Index.BatchSize != 0 {
		c.Index.BatchSize = other.Index.BatchSize
	}

	if other.Ingest.Workers != 0 {
		c.Ingest.Workers = other.Ingest.Workers
	}
	if groupSegmentSet {
		c.Ingest.GroupSegment = other.Ingest.GroupSegment
	}

	if other.Search.Limit != 0 {
		c.Search.Limit = other.Search.Limit
	}
	if len(other.Search.Columns) > 0 {
		c.Search.Columns = other.Search.Columns
	}
	if other.Search.CacheSize != 0 {
		c.Search.CacheSize = other.Search.CacheSize
	}

	if other.Ledger.Path != "" {
		c.Ledger.Path = other.Ledger.Path
	}
	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
}

// applyEnvOverrides applies FOLIO_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FOLIO_INDEX_PATH"); v != "" {
		c.Index.Path = v
	}
	if v := os.Getenv("FOLIO_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.BatchSize = n
		}
	}
	if v := os.Getenv("FOLIO_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Ingest.Workers = n
		}
	}
	if v := os.Getenv("FOLIO_LEDGER_PATH"); v != "" {
		c.Ledger.Path = v
	}
	if v := os.Getenv("FOLIO_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Index.Path == "" {
		return fmt.Errorf("index.path must not be empty")
	}
	if c.Index.BatchSize <= 0 {
		return fmt.Errorf("index.batch_size must be positive, got %d", c.Index.BatchSize)
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("ingest.workers must be positive, got %d", c.Ingest.Workers)
	}
	if c.Search.Limit <= 0 {
		return fmt.Errorf("search.limit must be positive, got %d", c.Search.Limit)
	}
	if c.Search.CacheSize < 0 {
		return fmt.Errorf("search.cache_size must be non-negative, got %d", c.Search.CacheSize)
	}
	if _, err := c.WatchDebounce(); err != nil {
		return err
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

// WatchDebounce parses watch.debounce.
func (c *Config) WatchDebounce() (time.Duration, error) {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 0, fmt.Errorf("watch.debounce: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("watch.debounce must be positive, got %s", c.Watch.Debounce)
	}
	return d, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
