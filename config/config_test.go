package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"file://./data"}, cfg.Storage.Providers)
	assert.Equal(t, 4, cfg.Processing.MaxConcurrent)
	assert.True(t, cfg.ParallelEnabled())
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.ListenAddr)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  providers:
    - s3://KEY:SECRET@bucket/media?region=eu-west-1
    - file:///var/fallback
  key_prefix: media
  max_file_size: 52428800
  compression: true
processing:
  max_concurrent: 8
  parallel: false
  timeout: 2m
server:
  listen_addr: 0.0.0.0:9000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Len(t, cfg.Storage.Providers, 2)
	assert.Equal(t, "media", cfg.Storage.KeyPrefix)
	assert.Equal(t, int64(52428800), cfg.Storage.MaxFileSize)
	assert.True(t, cfg.Storage.Compression)
	assert.Equal(t, 8, cfg.Processing.MaxConcurrent)
	assert.False(t, cfg.ParallelEnabled())
	assert.Equal(t, 2*time.Minute, cfg.Processing.Timeout)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.ListenAddr)

	// untouched sections keep their defaults
	assert.Equal(t, 3, cfg.Storage.RetryAttempts)
	assert.Equal(t, time.Second, cfg.Processing.RetryDelay)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvProviders, "memory://primary, ipfs://127.0.0.1:5001/media")
	t.Setenv(EnvEncryptionSecret, "0123456789abcdef0123456789abcdef")
	t.Setenv(EnvListenAddr, "127.0.0.1:7070")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, []string{"memory://primary", "ipfs://127.0.0.1:5001/media"}, cfg.Storage.Providers)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.Storage.EncryptionSecret)
	assert.Equal(t, "127.0.0.1:7070", cfg.Server.ListenAddr)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no providers", "storage:\n  providers: []\n"},
		{"zero max size", "storage:\n  max_file_size: 0\n"},
		{"short secret", "storage:\n  encryption_secret: tooshort\n"},
		{"bad concurrency", "processing:\n  max_concurrent: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
