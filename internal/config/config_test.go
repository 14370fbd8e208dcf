package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return NewFromViper(NewEmptyViper())
}

func TestDefaults(t *testing.T) {
	cfg := testConfig()

	assert.Equal(t, "openai", cfg.GetLLM().Provider)
	assert.Equal(t, "0.0.0.0:8080", cfg.GetServer().ListenAddress)
	assert.Empty(t, cfg.GetServer().InternalSecret)
	assert.Equal(t, "memory", cfg.GetStore().Type)
	assert.Equal(t, "gpt-4", cfg.GetOpenAI().ModelName)
	assert.Equal(t, 4096, cfg.GetOpenAI().MaxBodySize)
	assert.Equal(t, "us-east-1", cfg.GetBedrock().Region)
	assert.Equal(t, "gemini-pro", cfg.GetGemini().ModelName)
}

func TestTaskTimeoutDefault(t *testing.T) {
	cfg := testConfig()

	timeout, err := cfg.GetDuration("engine.task_timeout")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, timeout)
}

func TestOverrides(t *testing.T) {
	v := NewEmptyViper()
	v.Set("llm.provider", "gemini")
	v.Set("store.type", "sqlite")
	v.Set("store.sqlite_path", "/tmp/patterns.db")
	cfg := NewFromViper(v)

	assert.Equal(t, "gemini", cfg.GetLLM().Provider)
	assert.Equal(t, "sqlite", cfg.GetStore().Type)
	assert.Equal(t, "/tmp/patterns.db", cfg.GetStore().SQLitePath)
}
