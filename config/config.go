// Package config loads aimux settings from an optional YAML file, an
// optional .env file and the process environment, in increasing order of
// precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/martinemde/aimux/logging"
	"github.com/martinemde/aimux/router"
)

// Config holds every setting of the aimux process.
type Config struct {
	Environment string `mapstructure:"app_env"`
	Port        int    `mapstructure:"port"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`

	OpenAIAPIKey     string `mapstructure:"openai_api_key"`
	OllamaBaseURL    string `mapstructure:"ollama_base_url"`
	DeepSeekAPIKey   string `mapstructure:"deepseek_api_key"`
	LMStudioBaseURL  string `mapstructure:"lmstudio_base_url"`
	PerplexityAPIKey string `mapstructure:"perplexity_api_key"`
	GrokAPIKey       string `mapstructure:"grok_api_key"`
	ClaudeAPIKey     string `mapstructure:"claude_api_key"`
	GeminiAPIKey     string `mapstructure:"gemini_api_key"`

	// SlowRequestThreshold is in milliseconds.
	SlowRequestThreshold int           `mapstructure:"slow_request_threshold"`
	MetricsLogInterval   time.Duration `mapstructure:"metrics_log_interval"`

	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	MaxRetries  int     `mapstructure:"max_retries"`

	OTLPEndpoint     string        `mapstructure:"otel_exporter_otlp_endpoint"`
	OTLPInsecure     bool          `mapstructure:"otel_exporter_otlp_insecure"`
	OTLPExportPeriod time.Duration `mapstructure:"otel_metric_export_interval"`
}

var defaults = map[string]interface{}{
	"app_env":                     "development",
	"port":                        3000,
	"log_level":                   "info",
	"log_format":                  logging.FormatJSON,
	"slow_request_threshold":      5000,
	"metrics_log_interval":        "5m",
	"max_tokens":                  4096,
	"temperature":                 0.7,
	"max_retries":                 2,
	"otel_exporter_otlp_insecure": true,
	"otel_metric_export_interval": "15s",
}

// keys lists every setting; each is bound to the upper-cased env variable.
var keys = []string{
	"app_env", "port", "log_level", "log_format",
	"openai_api_key", "ollama_base_url", "deepseek_api_key", "lmstudio_base_url",
	"perplexity_api_key", "grok_api_key", "claude_api_key", "gemini_api_key",
	"slow_request_threshold", "metrics_log_interval",
	"max_tokens", "temperature", "max_retries",
	"otel_exporter_otlp_endpoint", "otel_exporter_otlp_insecure", "otel_metric_export_interval",
}

type loaderConfig struct {
	configFile string
	envFile    string
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*loaderConfig)

// WithConfigFile sets an explicit YAML config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *loaderConfig) { lc.configFile = path }
}

// WithEnvFile sets an explicit .env file path. The default is ./.env when
// present.
func WithEnvFile(path string) LoaderOption {
	return func(lc *loaderConfig) { lc.envFile = path }
}

// Load reads the configuration. Variables already set in the environment
// win over the .env file, which wins over the YAML file.
func Load(opts ...LoaderOption) (*Config, error) {
	lc := loaderConfig{envFile: ".env"}
	for _, opt := range opts {
		opt(&lc)
	}

	if lc.envFile != "" && exists(lc.envFile) {
		if err := godotenv.Load(lc.envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", lc.envFile, err)
		}
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for _, k := range keys {
		if err := v.BindEnv(k, strings.ToUpper(k)); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", k, err)
		}
	}

	if lc.configFile != "" {
		v.SetConfigFile(lc.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", lc.configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []string

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}
	switch c.Environment {
	case "development", "production", "test":
	default:
		errs = append(errs, fmt.Sprintf("app_env must be one of [development production test] (got: %s)", c.Environment))
	}
	lc := c.Logging()
	if err := lc.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.SlowRequestThreshold < 0 {
		errs = append(errs, "slow request threshold must not be negative")
	}
	if c.MetricsLogInterval < 0 {
		errs = append(errs, "metrics log interval must not be negative")
	}
	if c.MaxTokens < 1 {
		errs = append(errs, "max tokens must be at least 1")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, "temperature must be between 0 and 2")
	}
	if c.MaxRetries < 0 {
		errs = append(errs, "max retries must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	lc := logging.Config{Level: strings.ToLower(c.LogLevel), Format: c.LogFormat}
	lc.ApplyDefaults()
	return lc
}

// RetryPolicy returns the backend retry policy.
func (c *Config) RetryPolicy() router.RetryPolicy {
	p := router.DefaultRetryPolicy()
	p.MaxRetries = c.MaxRetries
	return p
}

// SlowThreshold returns SlowRequestThreshold as a duration.
func (c *Config) SlowThreshold() time.Duration {
	return time.Duration(c.SlowRequestThreshold) * time.Millisecond
}

// Credentials returns the credential or base URL of every backend. Empty
// entries mean the backend is not configured.
func (c *Config) Credentials() router.Credentials {
	return router.Credentials{
		router.OpenAI:     c.OpenAIAPIKey,
		router.Ollama:     c.OllamaBaseURL,
		router.DeepSeek:   c.DeepSeekAPIKey,
		router.LMStudio:   c.LMStudioBaseURL,
		router.Perplexity: c.PerplexityAPIKey,
		router.Grok:       c.GrokAPIKey,
		router.Claude:     c.ClaudeAPIKey,
		router.Gemini:     c.GeminiAPIKey,
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
