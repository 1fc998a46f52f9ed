// Package config loads soudok configuration. Values are applied in order
// of increasing precedence: hardcoded defaults, the user config file,
// a project config file, then SOUDOK_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete soudok configuration.
type Config struct {
	Version int           `yaml:"version"`
	Paths   PathsConfig   `yaml:"paths"`
	Feed    FeedConfig    `yaml:"feed"`
	Scrape  ScrapeConfig  `yaml:"scrape"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Search  SearchConfig  `yaml:"search"`
	Logging LoggingConfig `yaml:"logging"`
}

// PathsConfig locates the data directory and its contents. Database,
// index and titles paths default to files under DataDir but may point
// anywhere.
type PathsConfig struct {
	DataDir  string `yaml:"data_dir"`
	Database string `yaml:"database"`
	Index    string `yaml:"index"`
	Titles   string `yaml:"titles"`
}

// FeedConfig configures the bulk metadata feed source.
type FeedConfig struct {
	// URL is the document archive to download. The acquire command's
	// positional argument overrides it.
	URL string `yaml:"url"`
}

// ScrapeConfig configures the web scrape source.
type ScrapeConfig struct {
	// URL is the index page listing report links.
	URL string `yaml:"url"`

	// URNHost filters index links to the persistent-identifier resolver.
	URNHost string `yaml:"urn_host"`

	// Concurrency bounds simultaneous page fetches.
	Concurrency int `yaml:"concurrency"`
}

// IngestConfig configures the bulk indexer.
type IngestConfig struct {
	// BatchSize bounds documents per bulk write.
	BatchSize int `yaml:"batch_size"`
}

// SearchConfig configures the query side.
type SearchConfig struct {
	// PageSize is the result window per page.
	PageSize int `yaml:"page_size"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir:  dataDir,
			Database: filepath.Join(dataDir, "soudok.db"),
			Index:    filepath.Join(dataDir, "index.bleve"),
			Titles:   filepath.Join(dataDir, "titles.json"),
		},
		Feed: FeedConfig{
			URL: "https://data.riksdagen.se/dataset/dokument/sou.json.zip",
		},
		Scrape: ScrapeConfig{
			URL:         "https://regina.kb.se/sou/",
			URNHost:     "urn.kb.se",
			Concurrency: 4,
		},
		Ingest: IngestConfig{
			BatchSize: 25,
		},
		Search: SearchConfig{
			PageSize: 12,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// defaultDataDir returns the default data directory.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "soudok")
	}
	return filepath.Join(home, ".soudok")
}

// UserConfigPath returns the path to the user configuration file,
// following the XDG base directory convention.
func UserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "soudok", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "soudok", "config.yaml")
	}
	return filepath.Join(home, ".config", "soudok", "config.yaml")
}

// Load builds the effective configuration for a project directory.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := UserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("load user config: %w", err)
		}
	}

	if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromDir merges soudok.yaml (or .yml) from dir if present. A
// missing file is fine; defaults apply.
func (c *Config) loadFromDir(dir string) error {
	for _, name := range []string{"soudok.yaml", "soudok.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML merges one YAML file into c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c. When other moves
// the data directory without pinning the derived paths, they follow it.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
		c.Paths.Database = filepath.Join(other.Paths.DataDir, "soudok.db")
		c.Paths.Index = filepath.Join(other.Paths.DataDir, "index.bleve")
		c.Paths.Titles = filepath.Join(other.Paths.DataDir, "titles.json")
	}
	if other.Paths.Database != "" {
		c.Paths.Database = other.Paths.Database
	}
	if other.Paths.Index != "" {
		c.Paths.Index = other.Paths.Index
	}
	if other.Paths.Titles != "" {
		c.Paths.Titles = other.Paths.Titles
	}

	if other.Feed.URL != "" {
		c.Feed.URL = other.Feed.URL
	}

	if other.Scrape.URL != "" {
		c.Scrape.URL = other.Scrape.URL
	}
	if other.Scrape.URNHost != "" {
		c.Scrape.URNHost = other.Scrape.URNHost
	}
	if other.Scrape.Concurrency != 0 {
		c.Scrape.Concurrency = other.Scrape.Concurrency
	}

	if other.Ingest.BatchSize != 0 {
		c.Ingest.BatchSize = other.Ingest.BatchSize
	}

	if other.Search.PageSize != 0 {
		c.Search.PageSize = other.Search.PageSize
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.Format != "" {
		c.Logging.Format = other.Logging.Format
	}
}

// applyEnvOverrides applies SOUDOK_* environment variables, which take
// precedence over config files.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SOUDOK_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
		c.Paths.Database = filepath.Join(v, "soudok.db")
		c.Paths.Index = filepath.Join(v, "index.bleve")
		c.Paths.Titles = filepath.Join(v, "titles.json")
	}
	if v := os.Getenv("SOUDOK_FEED_URL"); v != "" {
		c.Feed.URL = v
	}
	if v := os.Getenv("SOUDOK_SCRAPE_URL"); v != "" {
		c.Scrape.URL = v
	}
	if v := os.Getenv("SOUDOK_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Ingest.BatchSize = n
		}
	}
	if v := os.Getenv("SOUDOK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the final configuration.
func (c *Config) Validate() error {
	if c.Paths.DataDir == "" {
		return fmt.Errorf("paths.data_dir must not be empty")
	}
	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("ingest.batch_size must be positive, got %d", c.Ingest.BatchSize)
	}
	if c.Search.PageSize < 1 {
		return fmt.Errorf("search.page_size must be positive, got %d", c.Search.PageSize)
	}
	if c.Scrape.Concurrency < 1 {
		return fmt.Errorf("scrape.concurrency must be positive, got %d", c.Scrape.Concurrency)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("logging.format must be 'json' or 'text', got %s", c.Logging.Format)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// fileExists reports whether path is an existing regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
