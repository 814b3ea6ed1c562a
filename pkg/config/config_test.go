package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "audiobook.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	// File should now exist on disk
	_, err = os.Stat(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.TTS.Provider)
	assert.Equal(t, 4000, cfg.TTS.ChunkSize)
	assert.Equal(t, 3, cfg.Request.Retries)
	assert.Equal(t, time.Second, time.Duration(cfg.Request.Backoff.BaseDelay))
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audiobook.yaml")
	content := `
tts:
  provider: local
  chunk_size: 500
request:
  retries: 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.TTS.Provider)
	assert.Equal(t, 500, cfg.TTS.ChunkSize)
	assert.Equal(t, 1, cfg.Request.Retries)
	// Untouched values keep their defaults
	assert.Equal(t, "https://api.openai.com/v1", cfg.TTS.OpenAI.BaseURL)
	assert.Equal(t, "keep", cfg.TTS.Oversize)
}

func TestLoad_EnvFallbackForKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audiobook.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tts:\n  provider: openai\n"), 0o644))

	t.Setenv("OPENAI_API_KEY", "sk-test-env")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-env", cfg.TTS.OpenAI.Key)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative retries", func(c *Config) { c.Request.Retries = -1 }},
		{"zero base delay", func(c *Config) { c.Request.Backoff.BaseDelay = 0 }},
		{"zero chunk size", func(c *Config) { c.TTS.ChunkSize = 0 }},
		{"bad oversize policy", func(c *Config) { c.TTS.Oversize = "truncate" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
