// Package config provides unified configuration for the friendly-data tool.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the tool-level configuration. Package-level settings (the
// conversion config, the package index) live next to the data packages
// themselves; this covers everything else.
type Config struct {
	// DataDir is the base directory for caches and downloads
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// CacheFile is the SQLite database caching HTTP responses
	CacheFile string `json:"cache_file" yaml:"cache_file"`

	// RegistryFile is an optional YAML file with registry additions
	RegistryFile string `json:"registry_file" yaml:"registry_file"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `json:"log_level" yaml:"log_level"`

	// Fetch configuration
	Fetch FetchConfig `json:"fetch" yaml:"fetch"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// FetchConfig holds remote package fetch configuration.
type FetchConfig struct {
	// Concurrency is the number of parallel resource downloads
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// DownloadDir is the directory fetched packages land in
	DownloadDir string `json:"download_dir" yaml:"download_dir"`
}

// StorageConfig holds remote storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing (required for MinIO)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DefaultConfig returns the default configuration for local use.
func DefaultConfig() *Config {
	return &Config{
		DataDir:  defaultDataDir(),
		LogLevel: "info",
		Fetch: FetchConfig{
			Concurrency: 4,
		},
		Storage: StorageConfig{
			Type: "local",
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "friendly-data")
	}
	return filepath.Join(os.TempDir(), "friendly-data")
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	if c.CacheFile == "" {
		c.CacheFile = filepath.Join(c.DataDir, "http-cache.db")
	}
	if c.Fetch.DownloadDir == "" {
		c.Fetch.DownloadDir = filepath.Join(c.DataDir, "downloads")
	}
	if c.Storage.Type == "local" && c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	if c.Fetch.Concurrency < 0 {
		return fmt.Errorf("fetch.concurrency must not be negative, got %d", c.Fetch.Concurrency)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the FRIENDLY_DATA_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("FRIENDLY_DATA_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("FRIENDLY_DATA_CACHE_FILE"); v != "" {
		cfg.CacheFile = v
	}
	if v := os.Getenv("FRIENDLY_DATA_REGISTRY_FILE"); v != "" {
		cfg.RegistryFile = v
	}
	if v := os.Getenv("FRIENDLY_DATA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FRIENDLY_DATA_FETCH_CONCURRENCY"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Fetch.Concurrency)
	}
	if v := os.Getenv("FRIENDLY_DATA_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("FRIENDLY_DATA_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("FRIENDLY_DATA_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("FRIENDLY_DATA_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("FRIENDLY_DATA_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.Fetch.DownloadDir,
		c.Storage.Path,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
