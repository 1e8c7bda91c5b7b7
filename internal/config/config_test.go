package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicediary/internal/config"
)

// setEnv sets environment variables for a test and restores them after.
func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}
}

// validEnv returns the minimum set of valid environment variables.
func validEnv() map[string]string {
	return map[string]string{
		"REDIS_URL": "redis://localhost:6379",
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	setEnv(t, validEnv())

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, "redis://localhost:6379", cfg.Redis.URL)
}

func TestLoad_CustomPort(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("VOICEDIARY_PORT", "9090")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_MissingRedisURL(t *testing.T) {
	t.Setenv("REDIS_URL", "")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_URL")
}

func TestLoad_RedisURLMustBeRedisScheme(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("REDIS_URL", "http://localhost:6379")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_URL")
}

func TestLoad_RedisTLSScheme(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("REDIS_URL", "rediss://redis.example.com:6380")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "rediss://redis.example.com:6380", cfg.Redis.URL)
}

func TestLoad_DatabaseIsOptional(t *testing.T) {
	setEnv(t, validEnv())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.Database.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
}

func TestLoad_RateLimitDefaults(t *testing.T) {
	setEnv(t, validEnv())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.RateLimit.PerMinute)
	assert.Equal(t, 1000, cfg.RateLimit.PerHour)
}

func TestLoad_RateLimitMustBePositive(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_PER_MINUTE")
}

func TestLoad_CacheDefaults(t *testing.T) {
	setEnv(t, validEnv())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 30*24*time.Hour, cfg.Cache.TranscriptTTL)
}

func TestLoad_CustomCacheTTL(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("TRANSCRIPT_CACHE_TTL", "72h")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, cfg.Cache.TranscriptTTL)
}

func TestLoad_WorkerDefaults(t *testing.T) {
	setEnv(t, validEnv())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Worker.PollTimeout)
	assert.Equal(t, 5*time.Second, cfg.Worker.ReconnectDelay)
}

func TestLoad_TranscribeDefaults(t *testing.T) {
	setEnv(t, validEnv())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/inference", cfg.Transcribe.Endpoint)
	assert.Equal(t, "base", cfg.Transcribe.DefaultModel)
	assert.Equal(t, 10*time.Minute, cfg.Transcribe.Timeout)
	assert.Equal(t, 500, cfg.Transcribe.MaxDownloadMB)
}

func TestLoad_LLMDefaults(t *testing.T) {
	setEnv(t, validEnv())

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 3, cfg.LLM.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.LLM.Retry.InitialInterval)
	assert.Equal(t, 10*time.Second, cfg.LLM.Retry.MaxInterval)
	assert.InDelta(t, 2.0, cfg.LLM.Retry.Multiplier, 0.001)

	assert.Equal(t, "gpt-4o", cfg.LLM.OpenAI.PrimaryModel)
	assert.Equal(t, "gpt-3.5-turbo", cfg.LLM.OpenAI.FallbackModel)
	assert.Equal(t, "claude-3-opus-20240229", cfg.LLM.Anthropic.PrimaryModel)
	assert.Equal(t, "claude-3-haiku-20240307", cfg.LLM.Anthropic.FallbackModel)
	assert.False(t, cfg.LLM.Local.Enabled)
}

func TestLoad_ProvidersConfiguredByAPIKey(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("OPENAI_API_KEY", "sk-test-key")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test-key")
	t.Setenv("LOCAL_LLM_ENABLED", "true")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-test-key", cfg.LLM.OpenAI.APIKey)
	assert.Equal(t, "sk-ant-test-key", cfg.LLM.Anthropic.APIKey)
	assert.True(t, cfg.LLM.Local.Enabled)
}

func TestLoad_RetryMaxAttemptsMustBePositive(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("LLM_RETRY_MAX_ATTEMPTS", "0")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM_RETRY_MAX_ATTEMPTS")
}

func TestLoad_MalformedValuesFallBackToDefaults(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("VOICEDIARY_PORT", "not-a-number")
	t.Setenv("WORKER_POLL_TIMEOUT", "soon")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Worker.PollTimeout)
}
