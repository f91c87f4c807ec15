// Package config loads service configuration from an optional YAML file and
// environment variables, and sets up logging.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider identifies an LLM completion backend.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderBedrock   Provider = "bedrock"
)

// Config holds all configuration values.
type Config struct {
	// HTTP API
	ListenAddr string

	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// LLM completion
	LLMProvider     Provider
	LLMModel        string
	SummaryModel    string // defaults to LLMModel when empty
	OpenAIAPIKey    string
	AnthropicAPIKey string
	OllamaHost      string
	AWSRegion       string

	// Pipeline tuning
	BatchSize        int
	SettleDelay      time.Duration // wait before recomputing the unprocessed set
	ExtractionDelay  time.Duration // pause between per-conversation LLM calls
	MaxTokensPerConv int           // too_long ceiling (estimated tokens)

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig mirrors the YAML config file layout. Every field is optional;
// environment variables take precedence over the file.
type fileConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	SurrealDB struct {
		URL       string `yaml:"url"`
		Namespace string `yaml:"namespace"`
		Database  string `yaml:"database"`
		User      string `yaml:"user"`
		Pass      string `yaml:"pass"`
		AuthLevel string `yaml:"auth_level"`
	} `yaml:"surrealdb"`

	LLM struct {
		Provider     string `yaml:"provider"`
		Model        string `yaml:"model"`
		SummaryModel string `yaml:"summary_model"`
		OllamaHost   string `yaml:"ollama_host"`
		AWSRegion    string `yaml:"aws_region"`
	} `yaml:"llm"`

	Pipeline struct {
		BatchSize        int `yaml:"batch_size"`
		SettleDelayMs    int `yaml:"settle_delay_ms"`
		ExtractionGapMs  int `yaml:"extraction_gap_ms"`
		MaxTokensPerConv int `yaml:"max_tokens_per_conversation"`
	} `yaml:"pipeline"`

	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`
}

// Load reads configuration: built-in defaults, overlaid by the YAML file at
// PROFILED_CONFIG (if set and readable), overlaid by environment variables.
func Load() Config {
	cfg := Config{
		ListenAddr:         ":8585",
		SurrealDBURL:       "ws://localhost:8000/rpc",
		SurrealDBNamespace: "profiled",
		SurrealDBDatabase:  "memory",
		SurrealDBUser:      "root",
		SurrealDBPass:      "root",
		SurrealDBAuthLevel: "root",
		LLMProvider:        ProviderOllama,
		LLMModel:           "llama3.1",
		OllamaHost:         "http://localhost:11434",
		AWSRegion:          "us-east-1",
		BatchSize:          10,
		SettleDelay:        500 * time.Millisecond,
		ExtractionDelay:    300 * time.Millisecond,
		MaxTokensPerConv:   6000,
		LogFile:            "/tmp/profiled.log",
		LogLevel:           slog.LevelInfo,
	}

	if path := os.Getenv("PROFILED_CONFIG"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			// config file problems should be loud but not fatal at load time
			fmt.Fprintf(os.Stderr, "warning: config file %s: %v\n", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.SummaryModel == "" {
		cfg.SummaryModel = cfg.LLMModel
	}
	return cfg
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}

	setStr(&cfg.ListenAddr, fc.ListenAddr)
	setStr(&cfg.SurrealDBURL, fc.SurrealDB.URL)
	setStr(&cfg.SurrealDBNamespace, fc.SurrealDB.Namespace)
	setStr(&cfg.SurrealDBDatabase, fc.SurrealDB.Database)
	setStr(&cfg.SurrealDBUser, fc.SurrealDB.User)
	setStr(&cfg.SurrealDBPass, fc.SurrealDB.Pass)
	setStr(&cfg.SurrealDBAuthLevel, fc.SurrealDB.AuthLevel)
	if fc.LLM.Provider != "" {
		cfg.LLMProvider = Provider(fc.LLM.Provider)
	}
	setStr(&cfg.LLMModel, fc.LLM.Model)
	setStr(&cfg.SummaryModel, fc.LLM.SummaryModel)
	setStr(&cfg.OllamaHost, fc.LLM.OllamaHost)
	setStr(&cfg.AWSRegion, fc.LLM.AWSRegion)
	if fc.Pipeline.BatchSize > 0 {
		cfg.BatchSize = fc.Pipeline.BatchSize
	}
	if fc.Pipeline.SettleDelayMs > 0 {
		cfg.SettleDelay = time.Duration(fc.Pipeline.SettleDelayMs) * time.Millisecond
	}
	if fc.Pipeline.ExtractionGapMs > 0 {
		cfg.ExtractionDelay = time.Duration(fc.Pipeline.ExtractionGapMs) * time.Millisecond
	}
	if fc.Pipeline.MaxTokensPerConv > 0 {
		cfg.MaxTokensPerConv = fc.Pipeline.MaxTokensPerConv
	}
	setStr(&cfg.LogFile, fc.LogFile)
	if fc.LogLevel != "" {
		cfg.LogLevel = ParseLogLevel(fc.LogLevel)
	}

	return nil
}

func applyEnv(cfg *Config) {
	setEnvStr(&cfg.ListenAddr, "PROFILED_LISTEN_ADDR")
	setEnvStr(&cfg.SurrealDBURL, "SURREALDB_URL")
	setEnvStr(&cfg.SurrealDBNamespace, "SURREALDB_NAMESPACE")
	setEnvStr(&cfg.SurrealDBDatabase, "SURREALDB_DATABASE")
	setEnvStr(&cfg.SurrealDBUser, "SURREALDB_USER")
	setEnvStr(&cfg.SurrealDBPass, "SURREALDB_PASS")
	setEnvStr(&cfg.SurrealDBAuthLevel, "SURREALDB_AUTH_LEVEL")
	if v := os.Getenv("PROFILED_LLM_PROVIDER"); v != "" {
		cfg.LLMProvider = Provider(v)
	}
	setEnvStr(&cfg.LLMModel, "PROFILED_LLM_MODEL")
	setEnvStr(&cfg.SummaryModel, "PROFILED_SUMMARY_MODEL")
	setEnvStr(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	setEnvStr(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setEnvStr(&cfg.OllamaHost, "OLLAMA_HOST")
	setEnvStr(&cfg.AWSRegion, "AWS_REGION")
	setEnvInt(&cfg.BatchSize, "PROFILED_BATCH_SIZE")
	setEnvDurationMs(&cfg.SettleDelay, "PROFILED_SETTLE_DELAY_MS")
	setEnvDurationMs(&cfg.ExtractionDelay, "PROFILED_EXTRACTION_GAP_MS")
	setEnvInt(&cfg.MaxTokensPerConv, "PROFILED_MAX_TOKENS_PER_CONVERSATION")
	setEnvStr(&cfg.LogFile, "PROFILED_LOG_FILE")
	if v := os.Getenv("PROFILED_LOG_LEVEL"); v != "" {
		cfg.LogLevel = ParseLogLevel(v)
	}
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setEnvStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setEnvInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func setEnvDurationMs(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			*dst = time.Duration(n) * time.Millisecond
		}
	}
}

// ParseLogLevel converts a level name to a slog.Level, defaulting to INFO.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
