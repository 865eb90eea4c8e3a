package config

import (
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	BaseURL  string `yaml:"base_url"`
	LogLevel string `yaml:"log_level"`

	HTTPTimeoutSeconds int     `yaml:"http_timeout_seconds"`
	ClientRPS          float64 `yaml:"client_rps"`
	ClientBurst        int     `yaml:"client_burst"`

	DebounceMS     int    `yaml:"debounce_ms"`
	SearchPageSize int    `yaml:"search_page_size"`
	SearchMode     string `yaml:"search_mode"`

	PollIntervalMS  int `yaml:"poll_interval_ms"`
	PollMaxAttempts int `yaml:"poll_max_attempts"`

	ChatTopK        int    `yaml:"chat_top_k"`
	ChatPromptStyle string `yaml:"chat_prompt_style"`

	MetricsAddr string `yaml:"metrics_addr"`

	RetryMaxAttempts      int     `yaml:"retry_max_attempts"`
	RetryInitialBackoffMS int     `yaml:"retry_initial_backoff_ms"`
	RetryMaxBackoffMS     int     `yaml:"retry_max_backoff_ms"`
	RetryMultiplier       float64 `yaml:"retry_multiplier"`

	BreakerEnabled       bool    `yaml:"breaker_enabled"`
	BreakerMinRequests   int     `yaml:"breaker_min_requests"`
	BreakerFailureRatio  float64 `yaml:"breaker_failure_ratio"`
	BreakerOpenSeconds   int     `yaml:"breaker_open_seconds"`
	BreakerHalfOpenCalls int     `yaml:"breaker_half_open_calls"`
}

// Load resolves configuration in three layers: built-in defaults, an
// optional YAML file named by CODERAG_CONFIG, then environment variables.
func Load() Config {
	cfg := defaults()

	if path := os.Getenv("CODERAG_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			slog.Warn("config_file_ignored", "path", path, "error", err)
		}
	}

	cfg.applyEnv()
	return cfg
}

func defaults() Config {
	return Config{
		BaseURL:  "http://localhost:8000",
		LogLevel: "info",

		HTTPTimeoutSeconds: 30,
		ClientRPS:          8,
		ClientBurst:        16,

		DebounceMS:     300,
		SearchPageSize: 10,
		SearchMode:     "auto",

		PollIntervalMS:  3000,
		PollMaxAttempts: 100,

		ChatTopK:        5,
		ChatPromptStyle: "senior_dev",

		RetryMaxAttempts:      3,
		RetryInitialBackoffMS: 100,
		RetryMaxBackoffMS:     400,
		RetryMultiplier:       2.0,

		BreakerEnabled:       true,
		BreakerMinRequests:   10,
		BreakerFailureRatio:  0.5,
		BreakerOpenSeconds:   30,
		BreakerHalfOpenCalls: 2,
	}
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnv() {
	c.BaseURL = mustEnv("CODERAG_BASE_URL", c.BaseURL)
	c.LogLevel = mustEnv("CODERAG_LOG_LEVEL", c.LogLevel)

	c.HTTPTimeoutSeconds = mustEnvInt("CODERAG_HTTP_TIMEOUT_SECONDS", c.HTTPTimeoutSeconds)
	c.ClientRPS = mustEnvFloat("CODERAG_CLIENT_RPS", c.ClientRPS)
	c.ClientBurst = mustEnvInt("CODERAG_CLIENT_BURST", c.ClientBurst)

	c.DebounceMS = mustEnvInt("CODERAG_DEBOUNCE_MS", c.DebounceMS)
	c.SearchPageSize = mustEnvInt("CODERAG_SEARCH_PAGE_SIZE", c.SearchPageSize)
	c.SearchMode = mustEnv("CODERAG_SEARCH_MODE", c.SearchMode)

	c.PollIntervalMS = mustEnvInt("CODERAG_POLL_INTERVAL_MS", c.PollIntervalMS)
	c.PollMaxAttempts = mustEnvInt("CODERAG_POLL_MAX_ATTEMPTS", c.PollMaxAttempts)

	c.ChatTopK = mustEnvInt("CODERAG_CHAT_TOP_K", c.ChatTopK)
	c.ChatPromptStyle = mustEnv("CODERAG_CHAT_PROMPT_STYLE", c.ChatPromptStyle)

	c.MetricsAddr = mustEnv("CODERAG_METRICS_ADDR", c.MetricsAddr)

	c.RetryMaxAttempts = mustEnvInt("CODERAG_RETRY_MAX_ATTEMPTS", c.RetryMaxAttempts)
	c.RetryInitialBackoffMS = mustEnvInt("CODERAG_RETRY_INITIAL_BACKOFF_MS", c.RetryInitialBackoffMS)
	c.RetryMaxBackoffMS = mustEnvInt("CODERAG_RETRY_MAX_BACKOFF_MS", c.RetryMaxBackoffMS)
	c.RetryMultiplier = mustEnvFloat("CODERAG_RETRY_MULTIPLIER", c.RetryMultiplier)

	c.BreakerEnabled = mustEnvBool("CODERAG_BREAKER_ENABLED", c.BreakerEnabled)
	c.BreakerMinRequests = mustEnvInt("CODERAG_BREAKER_MIN_REQUESTS", c.BreakerMinRequests)
	c.BreakerFailureRatio = mustEnvFloat("CODERAG_BREAKER_FAILURE_RATIO", c.BreakerFailureRatio)
	c.BreakerOpenSeconds = mustEnvInt("CODERAG_BREAKER_OPEN_SECONDS", c.BreakerOpenSeconds)
	c.BreakerHalfOpenCalls = mustEnvInt("CODERAG_BREAKER_HALF_OPEN_CALLS", c.BreakerHalfOpenCalls)
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
