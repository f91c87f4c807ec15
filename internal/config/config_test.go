package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8585", cfg.ListenAddr)
	assert.Equal(t, ProviderOllama, cfg.LLMProvider)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 6000, cfg.MaxTokensPerConv)
	assert.Equal(t, 500*time.Millisecond, cfg.SettleDelay)
	// summary model falls back to the main model
	assert.Equal(t, cfg.LLMModel, cfg.SummaryModel)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PROFILED_LLM_PROVIDER", "anthropic")
	t.Setenv("PROFILED_LLM_MODEL", "claude-sonnet-4-20250514")
	t.Setenv("PROFILED_BATCH_SIZE", "25")
	t.Setenv("PROFILED_SETTLE_DELAY_MS", "50")
	t.Setenv("PROFILED_LOG_LEVEL", "debug")

	cfg := Load()

	assert.Equal(t, ProviderAnthropic, cfg.LLMProvider)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.LLMModel)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, 50*time.Millisecond, cfg.SettleDelay)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiled.yaml")
	content := `
listen_addr: ":9090"
llm:
  provider: openai
  model: gpt-4o-mini
  summary_model: gpt-4o-mini
pipeline:
  batch_size: 5
  max_tokens_per_conversation: 4000
log_level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("PROFILED_CONFIG", path)

	cfg := Load()

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLMModel)
	assert.Equal(t, 5, cfg.BatchSize)
	assert.Equal(t, 4000, cfg.MaxTokensPerConv)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
}

func TestEnvBeatsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiled.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  batch_size: 5\n"), 0644))
	t.Setenv("PROFILED_CONFIG", path)
	t.Setenv("PROFILED_BATCH_SIZE", "7")

	cfg := Load()
	assert.Equal(t, 7, cfg.BatchSize)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel("WARNING"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("bogus"))
}
