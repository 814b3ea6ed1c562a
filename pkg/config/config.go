package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	DB      DBConfig      `yaml:"db"`
	Request RequestConfig `yaml:"request"`
	TTS     TTSConfig     `yaml:"tts"`
	Extract ExtractConfig `yaml:"extract"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server    LogSettings `yaml:"server"`
	Requests  LogSettings `yaml:"requests"`
	Synthesis LogSettings `yaml:"synthesis"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path     string   `yaml:"path"`
	CacheTTL Duration `yaml:"cache_ttl"`
}

// RequestConfig holds outbound HTTP request settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// TTSConfig holds text-to-speech settings.
type TTSConfig struct {
	Provider  string          `yaml:"provider"`
	ChunkSize int             `yaml:"chunk_size"`
	Oversize  string          `yaml:"oversize"` // "keep" or "reject"
	Timeout   Duration        `yaml:"timeout"`
	OpenAI    OpenAITTSConfig `yaml:"openai"`
	Local     LocalTTSConfig  `yaml:"local"`
	Gemini    GeminiTTSConfig `yaml:"gemini"`
}

// OpenAITTSConfig holds settings for the OpenAI speech API.
type OpenAITTSConfig struct {
	Key     string `yaml:"key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Voice   string `yaml:"voice"`
	Format  string `yaml:"format"`
}

// LocalTTSConfig holds settings for the local synthesis engine.
type LocalTTSConfig struct {
	Command    string   `yaml:"command"` // external synthesizer, stdin text -> stdout audio
	SampleRate int      `yaml:"sample_rate"`
	Latency    Duration `yaml:"latency"` // simulated latency for the built-in engine
}

// GeminiTTSConfig holds settings for Gemini speech generation.
type GeminiTTSConfig struct {
	Key   string `yaml:"key"`
	Model string `yaml:"model"`
	Voice string `yaml:"voice"`
}

// ExtractConfig holds content extraction settings.
type ExtractConfig struct {
	JinaKey      string `yaml:"jina_key"`
	BaseURL      string `yaml:"base_url"`
	HTMLFallback bool   `yaml:"html_fallback"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address: "localhost:8142",
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
			Synthesis: LogSettings{
				Path: "./logs/synthesis.log",
			},
		},
		DB: DBConfig{
			Path:     "./data/audiobook.db",
			CacheTTL: Duration(14 * Day),
		},
		Request: RequestConfig{
			Retries: 3,
			Timeout: Duration(30 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(1 * time.Second),
				MaxDelay:  Duration(60 * time.Second),
			},
		},
		TTS: TTSConfig{
			Provider:  "openai",
			ChunkSize: 4000,
			Oversize:  "keep",
			Timeout:   Duration(5 * time.Minute),
			OpenAI: OpenAITTSConfig{
				BaseURL: "https://api.openai.com/v1",
				Model:   "tts-1",
				Voice:   "nova",
				Format:  "mp3",
			},
			Local: LocalTTSConfig{
				SampleRate: 22050,
				Latency:    Duration(200 * time.Millisecond),
			},
			Gemini: GeminiTTSConfig{
				Model: "gemini-2.5-flash-preview-tts",
				Voice: "Kore",
			},
		},
		Extract: ExtractConfig{
			BaseURL:      "https://r.jina.ai",
			HTMLFallback: true,
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it is created with default values.
// Existing files are merged over the defaults but never written back,
// to preserve user formatting and comments.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		applyEnvFallbacks(cfg)

		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	applyEnvFallbacks(cfg)
	return cfg, nil
}

// applyEnvFallbacks fills empty secrets from the environment.
// Keys from the environment are never saved back to disk.
func applyEnvFallbacks(cfg *Config) {
	if cfg.TTS.OpenAI.Key == "" {
		cfg.TTS.OpenAI.Key = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.TTS.Gemini.Key == "" {
		cfg.TTS.Gemini.Key = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.Extract.JinaKey == "" {
		cfg.Extract.JinaKey = os.Getenv("JINA_API_KEY")
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures deep inside the pipeline.
func (c *Config) Validate() error {
	if c.Request.Retries < 0 {
		return fmt.Errorf("request.retries must be >= 0, got %d", c.Request.Retries)
	}
	if c.Request.Backoff.BaseDelay <= 0 {
		return fmt.Errorf("request.backoff.base_delay must be > 0")
	}
	if c.TTS.ChunkSize <= 0 {
		return fmt.Errorf("tts.chunk_size must be > 0, got %d", c.TTS.ChunkSize)
	}
	switch c.TTS.Provider {
	case "openai", "local", "gemini":
	default:
		return fmt.Errorf("tts.provider must be one of openai, local, gemini, got %q", c.TTS.Provider)
	}
	switch c.TTS.Oversize {
	case "keep", "reject":
	default:
		return fmt.Errorf("tts.oversize must be 'keep' or 'reject', got %q", c.TTS.Oversize)
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Audiobookgo Configuration
# -------------------------
# Duration units: ns, us, ms, s, m, h, d (day), w (week)
# API keys may also come from the environment:
#   OPENAI_API_KEY, GEMINI_API_KEY, JINA_API_KEY

`)
	data = append(header, data...)

	// Inject comments for enum fields
	reProvider := regexp.MustCompile(`(?m)^(\s+)provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: openai, local, gemini\n${1}provider:"))

	reOversize := regexp.MustCompile(`(?m)^(\s+)oversize:`)
	data = reOversize.ReplaceAll(data, []byte("${1}# Oversized unbreakable chunks: keep (forward verbatim) or reject\n${1}oversize:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return Save(path, DefaultConfig())
}
