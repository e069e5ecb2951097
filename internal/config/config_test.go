package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 4, cfg.Fetch.Concurrency)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.NoError(t, cfg.Validate())
}

func TestResolve(t *testing.T) {
	cfg := &Config{DataDir: "/tmp/fd", Storage: StorageConfig{Type: "local"}}
	cfg.Resolve()
	assert.Equal(t, filepath.Join("/tmp/fd", "http-cache.db"), cfg.CacheFile)
	assert.Equal(t, filepath.Join("/tmp/fd", "downloads"), cfg.Fetch.DownloadDir)
	assert.Equal(t, filepath.Join("/tmp/fd", "storage"), cfg.Storage.Path)

	// explicit values win
	cfg = &Config{DataDir: "/tmp/fd", CacheFile: "/elsewhere/cache.db"}
	cfg.Resolve()
	assert.Equal(t, "/elsewhere/cache.db", cfg.CacheFile)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "verbose"
	assert.ErrorContains(t, cfg.Validate(), "invalid log_level")

	cfg = DefaultConfig()
	cfg.Storage.Type = "ftp"
	assert.ErrorContains(t, cfg.Validate(), "invalid storage type")

	cfg = DefaultConfig()
	cfg.Storage.Type = "s3"
	assert.ErrorContains(t, cfg.Validate(), "s3.bucket is required")
	cfg.Storage.S3.Bucket = "data"
	assert.NoError(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Fetch.Concurrency = -1
	assert.ErrorContains(t, cfg.Validate(), "concurrency")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
data_dir: /data/fd
log_level: debug
storage:
  type: s3
  s3:
    bucket: packages
    region: eu-central-1
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/fd", cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "packages", cfg.Storage.S3.Bucket)
	assert.Equal(t, 4, cfg.Fetch.Concurrency, "defaults kept for unset fields")
}

func TestLoadFromFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log_level": "warn"}`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0o644))
	_, err = LoadFromFile(path)
	assert.ErrorContains(t, err, "unsupported config file format")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FRIENDLY_DATA_DATA_DIR", "/env/fd")
	t.Setenv("FRIENDLY_DATA_LOG_LEVEL", "error")
	t.Setenv("FRIENDLY_DATA_FETCH_CONCURRENCY", "8")
	t.Setenv("FRIENDLY_DATA_S3_BUCKET", "env-bucket")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)
	assert.Equal(t, "/env/fd", cfg.DataDir)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, 8, cfg.Fetch.Concurrency)
	assert.Equal(t, "env-bucket", cfg.Storage.S3.Bucket)
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := &Config{DataDir: filepath.Join(base, "data")}
	cfg.Resolve()
	require.NoError(t, cfg.EnsureDirectories())

	for _, dir := range []string{cfg.DataDir, cfg.Fetch.DownloadDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
