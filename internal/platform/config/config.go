// Package config provides configuration loading and management using koanf.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default configuration values.
const (
	// DefaultServerPort is the default HTTP server port.
	DefaultServerPort = 8080

	// DefaultMaxRequestSize is the default maximum request body size (10MB).
	// Monthly summaries carry a whole month of diaries.
	DefaultMaxRequestSize = 10 << 20

	// DefaultClientRetryMaxAttempts is the default number of retry attempts.
	DefaultClientRetryMaxAttempts = 3

	// DefaultClientRetryMultiplier is the default exponential backoff multiplier.
	DefaultClientRetryMultiplier = 2.0

	// DefaultClientRetryJitterFactor is the default jitter percentage (±25%).
	DefaultClientRetryJitterFactor = 0.25

	// DefaultClientCircuitMaxFailures is the default failures before circuit opens.
	DefaultClientCircuitMaxFailures = 5

	// DefaultClientCircuitHalfOpenLimit is the default successes to close circuit.
	DefaultClientCircuitHalfOpenLimit = 3

	// DefaultTransportMaxIdleConns is the default max idle connections.
	DefaultTransportMaxIdleConns = 100

	// DefaultTransportMaxIdleConnsPerHost is the default max idle connections per host.
	DefaultTransportMaxIdleConnsPerHost = 10

	// DefaultTransportIdleConnTimeout is the default idle connection timeout.
	DefaultTransportIdleConnTimeout = 90 * time.Second

	// DefaultLogFileMaxSizeMB is the default max log file size in megabytes.
	DefaultLogFileMaxSizeMB = 100

	// DefaultLogFileMaxBackups is the default number of old log files to retain.
	DefaultLogFileMaxBackups = 3

	// DefaultLogFileMaxAgeDays is the default max days to retain old log files.
	DefaultLogFileMaxAgeDays = 28

	// DefaultOpenAIBaseURL is the public OpenAI API.
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	// DefaultOpenAIModel is the chat model used for every completion.
	DefaultOpenAIModel = "gpt-4o-mini"

	// DefaultMonthlyMaxInputRunes caps the joined diary text of one summary.
	DefaultMonthlyMaxInputRunes = 25000

	// DefaultMonthlyQuotesPerVirtue is how many quotes a summary keeps per virtue.
	DefaultMonthlyQuotesPerVirtue = 2

	// DefaultRateLimitBurst is the default token bucket size per client.
	DefaultRateLimitBurst = 20

	// OpenAIKeyEnv is read when openai.api_key is not configured.
	OpenAIKeyEnv = "OPENAI_API_KEY"
)

// Config is the root configuration structure.
type Config struct {
	App        AppConfig        `koanf:"app"         validate:"required"`
	Server     ServerConfig     `koanf:"server"      validate:"required"`
	Log        LogConfig        `koanf:"log"         validate:"required"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Client     ClientConfig     `koanf:"client"      validate:"required"`
	OpenAI     OpenAIConfig     `koanf:"openai"      validate:"required"`
	DailyQuote DailyQuoteConfig `koanf:"daily_quote" validate:"required"`
	Monthly    MonthlyConfig    `koanf:"monthly"     validate:"required"`
	CORS       CORSConfig       `koanf:"cors"`
	RateLimit  RateLimitConfig  `koanf:"rate_limit"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `koanf:"name"        validate:"required"`
	Version     string `koanf:"version"     validate:"required"`
	Environment string `koanf:"environment" validate:"required,oneof=local dev qa prod test"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"             validate:"required,min=1,max=65535"`
	Host            string        `koanf:"host"             validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"required,min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"required,min=1s"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"required,min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required,min=1s"`
	RequestTimeout  time.Duration `koanf:"request_timeout"  validate:"required,min=1s"`
	MaxRequestSize  int64         `koanf:"max_request_size" validate:"required,min=1"`
	TrustedProxies  []string      `koanf:"trusted_proxies"  validate:"dive,required,ip|cidr"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string        `koanf:"level"  validate:"required,oneof=trace debug info warn error"`
	Format string        `koanf:"format" validate:"required,oneof=json text pretty"`
	File   LogFileConfig `koanf:"file"`
}

// LogFileConfig contains rolling log file settings.
type LogFileConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"        validate:"required_if=Enabled true"`
	MaxSizeMB  int    `koanf:"max_size"    validate:"omitempty,min=1,max=1024"`
	MaxBackups int    `koanf:"max_backups" validate:"omitempty,min=0,max=100"`
	MaxAgeDays int    `koanf:"max_age"     validate:"omitempty,min=0,max=365"`
	Compress   bool   `koanf:"compress"`
}

// TelemetryConfig contains OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"      validate:"required_if=Enabled true,omitempty,url"`
	ServiceName  string  `koanf:"service_name"  validate:"required_if=Enabled true"`
	SamplingRate float64 `koanf:"sampling_rate" validate:"min=0,max=1"`
}

// OpenAIConfig configures the completion upstream.
type OpenAIConfig struct {
	APIKey              string  `koanf:"api_key"              validate:"required"`
	BaseURL             string  `koanf:"base_url"             validate:"required,url"`
	Model               string  `koanf:"model"                validate:"required"`
	AnalysisTemperature float32 `koanf:"analysis_temperature" validate:"min=0,max=2"`
	SummaryTemperature  float32 `koanf:"summary_temperature"  validate:"min=0,max=2"`
}

// DailyQuoteConfig configures the daily quote cache.
type DailyQuoteConfig struct {
	RefreshTimeout time.Duration `koanf:"refresh_timeout" validate:"required,min=1s"`
	Temperature    float32       `koanf:"temperature"     validate:"min=0,max=2"`
	FallbackText   string        `koanf:"fallback_text"   validate:"required"`
}

// MonthlyConfig configures monthly retrospectives.
type MonthlyConfig struct {
	MaxInputRunes   int `koanf:"max_input_runes"   validate:"required,min=1000"`
	QuotesPerVirtue int `koanf:"quotes_per_virtue" validate:"required,min=1,max=10"`
}

// CORSConfig lists the browser origins allowed to call the gateway.
// An empty list allows any origin.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins" validate:"dive,required,http_url"`
}

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	Enabled           bool          `koanf:"enabled"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"required_if=Enabled true,omitempty,gt=0"`
	Burst             int           `koanf:"burst"               validate:"required_if=Enabled true,omitempty,min=1"`
	IdleTTL           time.Duration `koanf:"idle_ttl"            validate:"required_if=Enabled true,omitempty,min=1s"`
}

// ClientConfig contains HTTP client settings for downstream services.
type ClientConfig struct {
	Timeout        time.Duration        `koanf:"timeout"         validate:"required,min=100ms"`
	Retry          RetryConfig          `koanf:"retry"           validate:"required"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker" validate:"required"`
	Transport      TransportConfig      `koanf:"transport"       validate:"required"`
}

// RetryConfig contains retry settings for HTTP clients.
type RetryConfig struct {
	MaxAttempts     int           `koanf:"max_attempts"     validate:"required,min=1,max=10"`
	InitialInterval time.Duration `koanf:"initial_interval" validate:"required,min=10ms"`
	MaxInterval     time.Duration `koanf:"max_interval"     validate:"required,min=100ms"`
	Multiplier      float64       `koanf:"multiplier"       validate:"required,min=1.1,max=10"`
	JitterFactor    float64       `koanf:"jitter_factor"    validate:"min=0,max=1"`
}

// CircuitBreakerConfig contains circuit breaker settings for HTTP clients.
type CircuitBreakerConfig struct {
	MaxFailures   int           `koanf:"max_failures"    validate:"required,min=1"`
	Timeout       time.Duration `koanf:"timeout"         validate:"required,min=1s"`
	HalfOpenLimit int           `koanf:"half_open_limit" validate:"required,min=1"`
}

// TransportConfig contains HTTP transport pool settings.
type TransportConfig struct {
	MaxIdleConns        int           `koanf:"max_idle_conns"         validate:"required,min=1"`
	MaxIdleConnsPerHost int           `koanf:"max_idle_conns_per_host" validate:"required,min=1"`
	IdleConnTimeout     time.Duration `koanf:"idle_conn_timeout"      validate:"required,min=1s"`
}

// defaults returns the default configuration values.
func defaults() map[string]any {
	return map[string]any{
		"app.name":        "garden-gateway",
		"app.version":     "dev",
		"app.environment": "local",

		"server.port":             DefaultServerPort,
		"server.host":             "0.0.0.0",
		"server.read_timeout":     "30s",
		"server.write_timeout":    "90s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "10s",
		"server.request_timeout":  "60s",
		"server.max_request_size": DefaultMaxRequestSize,
		"server.trusted_proxies":  []string{},

		"log.level":            "info",
		"log.format":           "json",
		"log.file.enabled":     false,
		"log.file.path":        "./logs/app.log",
		"log.file.max_size":    DefaultLogFileMaxSizeMB,
		"log.file.max_backups": DefaultLogFileMaxBackups,
		"log.file.max_age":     DefaultLogFileMaxAgeDays,
		"log.file.compress":    true,

		"telemetry.enabled":       false,
		"telemetry.endpoint":      "",
		"telemetry.service_name":  "garden-gateway",
		"telemetry.sampling_rate": 1.0,

		"client.timeout":                           "30s",
		"client.retry.max_attempts":                DefaultClientRetryMaxAttempts,
		"client.retry.initial_interval":            "100ms",
		"client.retry.max_interval":                "5s",
		"client.retry.multiplier":                  DefaultClientRetryMultiplier,
		"client.retry.jitter_factor":               DefaultClientRetryJitterFactor,
		"client.circuit_breaker.max_failures":      DefaultClientCircuitMaxFailures,
		"client.circuit_breaker.timeout":           "30s",
		"client.circuit_breaker.half_open_limit":   DefaultClientCircuitHalfOpenLimit,
		"client.transport.max_idle_conns":          DefaultTransportMaxIdleConns,
		"client.transport.max_idle_conns_per_host": DefaultTransportMaxIdleConnsPerHost,
		"client.transport.idle_conn_timeout":       "90s",


		"openai.api_key":              "",
		"openai.base_url":             DefaultOpenAIBaseURL,
		"openai.model":                DefaultOpenAIModel,
		"openai.analysis_temperature": 0.8,
		"openai.summary_temperature":  0.7,

		"daily_quote.refresh_timeout": "20s",
		"daily_quote.temperature":     0.9,
		"daily_quote.fallback_text":   "오늘도 당신의 정원에 평안이 깃들기를.",

		"monthly.max_input_runes":   DefaultMonthlyMaxInputRunes,
		"monthly.quotes_per_virtue": DefaultMonthlyQuotesPerVirtue,

		"cors.allowed_origins": []string{},

		"rate_limit.enabled":             true,
		"rate_limit.requests_per_second": 5.0,
		"rate_limit.burst":               DefaultRateLimitBurst,
		"rate_limit.idle_ttl":            "10m",
	}
}

// Load loads configuration with the following precedence (highest to lowest):
//  1. Environment variables (APP_ prefix, "__" separates levels)
//  2. Profile config file (configs/{profile}.yaml)
//  3. Base config file (configs/base.yaml)
//  4. Default values
//
// OPENAI_API_KEY fills openai.api_key when no layer sets it.
func Load(profile string) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	err := k.Load(confmap.Provider(defaults(), "."), nil)
	if err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if profile != "" {
		_ = k.Set("app.environment", profile)
	}

	// 2. Load base config file if it exists
	err = loadFileIfExists(k, "configs/base.yaml")
	if err != nil {
		return nil, fmt.Errorf("loading base config: %w", err)
	}

	// 3. Load profile config file if it exists
	if profile != "" {
		profilePath := fmt.Sprintf("configs/%s.yaml", profile)

		err := loadFileIfExists(k, profilePath)
		if err != nil {
			return nil, fmt.Errorf("loading profile config %q: %w", profile, err)
		}
	}

	// 4. Load environment variables with APP_ prefix
	err = k.Load(env.ProviderWithValue("APP_", ".", envValue), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	if k.String("openai.api_key") == "" {
		if key := os.Getenv(OpenAIKeyEnv); key != "" {
			_ = k.Set("openai.api_key", key)
		}
	}

	// Unmarshal into Config struct
	var cfg Config

	err = k.Unmarshal("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

// envValue maps APP_RATE_LIMIT__BURST to rate_limit.burst. List settings
// take comma-separated values.
func envValue(key, value string) (string, any) {
	key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, "APP_")), "__", ".")

	if _, ok := listKeys[key]; ok {
		var items []string

		for item := range strings.SplitSeq(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}

		return key, items
	}

	return key, value
}

var listKeys = map[string]struct{}{
	"server.trusted_proxies": {},
	"cors.allowed_origins":   {},
}

// loadFileIfExists loads a YAML config file if it exists.
// Returns nil if the file doesn't exist, error only for parse/read failures.
func loadFileIfExists(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil // File doesn't exist, that's fine
	}

	return k.Load(file.Provider(path), yaml.Parser())
}
