// Package config provides unified configuration for the chat relay.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (RELAYCHAT_ prefix, plus the
//     conventional OPENROUTER_API_KEY and PORT)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the chat relay.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Upstream      UpstreamConfig      `yaml:"upstream"`
	Web           WebConfig           `yaml:"web"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port              int             `yaml:"port"`                // default: 5500
	ReadHeaderTimeout time.Duration   `yaml:"read_header_timeout"` // default: 10s
	ShutdownTimeout   time.Duration   `yaml:"shutdown_timeout"`    // default: 30s
	MaxBodySize       int64           `yaml:"max_body_size"`       // default: 10 MiB
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig limits chat requests per client IP. Zero disables it.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"` // default: 5
}

// UpstreamConfig holds settings for the OpenAI-compatible backend.
type UpstreamConfig struct {
	BaseURL    string        `yaml:"base_url"`     // default: https://openrouter.ai/api/v1
	APIKey     string        `yaml:"api_key"`      // optional; missing key is a warning
	APIKeyFile string        `yaml:"api_key_file"` // _file variant for api_key
	Model      string        `yaml:"model"`        // default: deepseek/deepseek-r1-0528:free
	Timeout    time.Duration `yaml:"timeout"`      // default: 300s
	Referer    string        `yaml:"referer"`      // optional HTTP-Referer attribution
	Title      string        `yaml:"title"`        // optional X-Title attribution
}

// WebConfig holds settings for the browser client and cross-origin access.
type WebConfig struct {
	// StaticDir serves the SPA from disk instead of the embedded bundle.
	StaticDir   string   `yaml:"static_dir"`
	CORSOrigins []string `yaml:"cors_origins"` // default: ["*"]
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"

	// Addr serves metrics on a separate listener (e.g. ":9090") instead of
	// the main port.
	Addr string `yaml:"addr"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // TRACE, DEBUG, INFO, WARN, ERROR; default: INFO
	Debug string `yaml:"debug"` // comma-separated debug categories
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:              5500,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   30 * time.Second,
			MaxBodySize:       10 << 20,
			RateLimit:         RateLimitConfig{Burst: 5},
		},
		Upstream: UpstreamConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Model:   "deepseek/deepseek-r1-0528:free",
			Timeout: 300 * time.Second,
		},
		Web: WebConfig{
			CORSOrigins: []string{"*"},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// Warnings returns non-fatal configuration problems worth logging at
// startup. The server still runs; requests fail upstream instead.
func (c *Config) Warnings() []string {
	var warns []string
	if c.Upstream.APIKey == "" {
		warns = append(warns, "no upstream API key configured (set OPENROUTER_API_KEY or upstream.api_key); upstream calls will likely be rejected")
	}
	return warns
}
