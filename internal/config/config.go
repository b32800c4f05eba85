// Package config provides configuration loading and structs for the Tansa engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the engine and its HTTP host surface.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Scan    ScanConfig    `yaml:"scan"`
	Extract ExtractConfig `yaml:"extract"`
	Watch   WatchConfig   `yaml:"watch"`
	Search  SearchConfig  `yaml:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the inverted index and the document catalog.
type StorageConfig struct {
	IndexPath   string `yaml:"index_path"`
	CatalogPath string `yaml:"catalog_path"`
}

// ScanConfig holds traversal and commit policy settings.
type ScanConfig struct {
	// Roots are the whitelisted directories eligible for indexing. Start
	// requests for paths outside this set (once persisted roots are merged)
	// are rejected.
	Roots []string `yaml:"roots"`
	// Exclude holds glob patterns matched against absolute paths.
	Exclude []string `yaml:"exclude"`
	// Workers caps traversal/extraction parallelism. 0 derives from GOMAXPROCS.
	Workers int `yaml:"workers"`
	// QueueSize bounds the scanner-to-extractor queue for backpressure.
	QueueSize int `yaml:"queue_size"`
	// FlushDocs and FlushIntervalMS set the commit cadence during a full scan.
	FlushDocs       int `yaml:"flush_docs"`
	FlushIntervalMS int `yaml:"flush_interval_ms"`
	// Fingerprint selects the change-detection policy: mtime_size or content_hash.
	Fingerprint string `yaml:"fingerprint"`
}

// ExtractConfig holds content extraction limits.
type ExtractConfig struct {
	// MaxFileSize is the ceiling above which files are indexed metadata-only.
	MaxFileSize int64 `yaml:"max_file_size"`
	// MaxTextBytes truncates extracted text.
	MaxTextBytes int `yaml:"max_text_bytes"`
	// TimeoutSeconds bounds a single file's extraction.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the per-file extraction timeout as a duration.
func (e *ExtractConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// WatchConfig holds change-watcher settings.
type WatchConfig struct {
	Enabled    *bool `yaml:"enabled"`
	DebounceMS int   `yaml:"debounce_ms"`
}

// Debounce returns the coalescing window as a duration.
func (w *WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMS) * time.Millisecond
}

// EnabledOrDefault returns whether watching is on; defaults to true when unset.
func (w *WatchConfig) EnabledOrDefault() bool {
	if w.Enabled != nil {
		return *w.Enabled
	}
	return true
}

// FlushInterval returns the scan commit interval as a duration.
func (s *ScanConfig) FlushInterval() time.Duration {
	return time.Duration(s.FlushIntervalMS) * time.Millisecond
}

// SearchConfig holds query execution settings.
type SearchConfig struct {
	DefaultPerPage  int `yaml:"default_per_page"`
	MaxPerPage      int `yaml:"max_per_page"`
	SnippetsPerDoc  int `yaml:"snippets_per_doc"`
	SnippetMaxBytes int `yaml:"snippet_max_bytes"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	cfg.Storage.CatalogPath = expandPath(cfg.Storage.CatalogPath, configDir)
	for i := range cfg.Scan.Roots {
		cfg.Scan.Roots[i] = expandPath(cfg.Scan.Roots[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting root add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
