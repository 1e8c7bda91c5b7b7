package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the voicediary binaries. One Load
// serves the API server and both workers; each binary uses the sections it
// needs.
type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	Database   DatabaseConfig
	Storage    StorageConfig
	RateLimit  RateLimitConfig
	Cache      CacheConfig
	Worker     WorkerConfig
	Transcribe TranscribeConfig
	LLM        LLMConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type RedisConfig struct {
	URL string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type StorageConfig struct {
	Root string
}

type RateLimitConfig struct {
	PerMinute int
	PerHour   int
}

type CacheConfig struct {
	TranscriptTTL time.Duration
}

type WorkerConfig struct {
	PollTimeout    time.Duration
	ReconnectDelay time.Duration
}

type TranscribeConfig struct {
	Endpoint      string
	DefaultModel  string
	Timeout       time.Duration
	MaxDownloadMB int
}

// LLMConfig describes the text-generation providers. A provider is
// configured iff its credentials (or endpoint, for local) are present;
// presence is decided here once, never probed at call time.
type LLMConfig struct {
	Timeout   time.Duration
	Retry     RetryConfig
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
	Local     LocalConfig
}

// RetryConfig drives exponential backoff on rate-limited provider calls.
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

type OpenAIConfig struct {
	APIKey        string
	BaseURL       string
	PrimaryModel  string
	FallbackModel string
	Temperature   float64
	MaxTokens     int
}

type AnthropicConfig struct {
	APIKey        string
	BaseURL       string
	PrimaryModel  string
	FallbackModel string
	Temperature   float64
	MaxTokens     int
}

type LocalConfig struct {
	Enabled bool
	Model   string
}

// Load reads configuration from environment variables and returns a
// validated Config. Sections only some binaries need (e.g. Database for the
// API server) are validated by the binary that uses them.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("VOICEDIARY_PORT", 8080),
			Env:  envString("VOICEDIARY_ENV", "development"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Storage: StorageConfig{
			Root: envString("STORAGE_ROOT", "/var/lib/voicediary"),
		},
		RateLimit: RateLimitConfig{
			PerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),
			PerHour:   envInt("RATE_LIMIT_PER_HOUR", 1000),
		},
		Cache: CacheConfig{
			TranscriptTTL: envDuration("TRANSCRIPT_CACHE_TTL", 30*24*time.Hour),
		},
		Worker: WorkerConfig{
			PollTimeout:    envDuration("WORKER_POLL_TIMEOUT", 30*time.Second),
			ReconnectDelay: envDuration("WORKER_RECONNECT_DELAY", 5*time.Second),
		},
		Transcribe: TranscribeConfig{
			Endpoint:      envString("WHISPER_ENDPOINT", "http://localhost:9000/inference"),
			DefaultModel:  envString("WHISPER_MODEL", "base"),
			Timeout:       envDuration("WHISPER_TIMEOUT", 10*time.Minute),
			MaxDownloadMB: envInt("MAX_DOWNLOAD_MB", 500),
		},
		LLM: LLMConfig{
			Timeout: envDuration("LLM_TIMEOUT", 60*time.Second),
			Retry: RetryConfig{
				MaxAttempts:     envInt("LLM_RETRY_MAX_ATTEMPTS", 3),
				InitialInterval: envDuration("LLM_RETRY_INITIAL_INTERVAL", 2*time.Second),
				MaxInterval:     envDuration("LLM_RETRY_MAX_INTERVAL", 10*time.Second),
				Multiplier:      envFloat("LLM_RETRY_MULTIPLIER", 2.0),
			},
			OpenAI: OpenAIConfig{
				APIKey:        os.Getenv("OPENAI_API_KEY"),
				BaseURL:       envString("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				PrimaryModel:  envString("OPENAI_MODEL", "gpt-4o"),
				FallbackModel: envString("OPENAI_FALLBACK_MODEL", "gpt-3.5-turbo"),
				Temperature:   envFloat("OPENAI_TEMPERATURE", 0.2),
				MaxTokens:     envInt("OPENAI_MAX_TOKENS", 1000),
			},
			Anthropic: AnthropicConfig{
				APIKey:        os.Getenv("ANTHROPIC_API_KEY"),
				BaseURL:       envString("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				PrimaryModel:  envString("ANTHROPIC_MODEL", "claude-3-opus-20240229"),
				FallbackModel: envString("ANTHROPIC_FALLBACK_MODEL", "claude-3-haiku-20240307"),
				Temperature:   envFloat("ANTHROPIC_TEMPERATURE", 0.2),
				MaxTokens:     envInt("ANTHROPIC_MAX_TOKENS", 1024),
			},
			Local: LocalConfig{
				Enabled: envBool("LOCAL_LLM_ENABLED", false),
				Model:   envString("LOCAL_LLM_MODEL", "template-v1"),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return fmt.Errorf("REDIS_URL must start with redis:// or rediss://, got %q", c.Redis.URL)
	}
	if c.RateLimit.PerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimit.PerMinute)
	}
	if c.RateLimit.PerHour <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_HOUR must be positive, got %d", c.RateLimit.PerHour)
	}
	if c.LLM.Retry.MaxAttempts < 1 {
		return fmt.Errorf("LLM_RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.LLM.Retry.MaxAttempts)
	}
	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
