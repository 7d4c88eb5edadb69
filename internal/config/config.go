// Package config loads application configuration with multi-source
// priority.
//
// Sources, highest to lowest:
//  1. Environment variables (runtime override)
//  2. Config file (./config.yaml or ~/.complidocs/config.yaml)
//  3. Defaults
//
// Categories: HTTP server, PostgreSQL storage (storage.go), embedding
// provider, ingestion tuning, observability. Validation lives in
// validation.go and uses sentinel errors checked with errors.Is.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// DefaultEmbedderModel is the Gemini embedding model the schema's
// 768-dimension vector columns are sized for.
const DefaultEmbedderModel = "text-embedding-004"

// Config stores application configuration. Sensitive fields are masked
// in MarshalJSON; when adding one, update that method.
type Config struct {
	// HTTP server
	ServerHost  string   `mapstructure:"server_host" json:"server_host"`
	ServerPort  int      `mapstructure:"server_port" json:"server_port"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	// TrustProxy enables X-Real-IP/X-Forwarded-For for rate limiting.
	// Set true only behind a reverse proxy.
	TrustProxy bool `mapstructure:"trust_proxy" json:"trust_proxy"`
	// RateLimitRPS is the sustained per-client request rate; RateLimitBurst
	// is the bucket size.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst" json:"rate_limit_burst"`

	// PostgreSQL storage (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Embedding provider
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Ingestion tuning
	ChunkSize         int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap      int `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	MaxParallelEmbeds int `mapstructure:"max_parallel_embeds" json:"max_parallel_embeds"`

	// Observability: OTLP trace export. Empty endpoint disables tracing.
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" json:"service_name"`
	Environment  string `mapstructure:"environment" json:"environment"`
}

// Load reads configuration from all sources and validates it.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".complidocs"))
	}

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("no config file found, using defaults and environment")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL beats individual postgres_* values.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("server_port", 8080)
	v.SetDefault("cors_origins", []string{"http://localhost:4200"})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_limit_rps", 10.0)
	v.SetDefault("rate_limit_burst", 20)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "complidocs")
	v.SetDefault("postgres_password", "complidocs_dev_password")
	v.SetDefault("postgres_db_name", "complidocs")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("embedder_model", DefaultEmbedderModel)

	v.SetDefault("chunk_size", 1000)
	v.SetDefault("chunk_overlap", 200)
	v.SetDefault("max_parallel_embeds", 4)

	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("service_name", "complidocs")
	v.SetDefault("environment", "dev")
}

// bindEnvVariables binds the environment overrides explicitly.
// GEMINI_API_KEY is read directly by the embedding provider, not via
// viper.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("server_host", "COMPLIDOCS_SERVER_HOST")
	mustBind("server_port", "COMPLIDOCS_SERVER_PORT")
	mustBind("cors_origins", "COMPLIDOCS_CORS_ORIGINS")
	mustBind("trust_proxy", "COMPLIDOCS_TRUST_PROXY")
	mustBind("embedder_model", "COMPLIDOCS_EMBEDDER_MODEL")
	mustBind("otlp_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	mustBind("environment", "COMPLIDOCS_ENVIRONMENT")
}

// maskedValue replaces secret content in serialized config. Full-width
// blocks avoid accidental substring matches against real secret values.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep the first and last two characters for debug
// utility. This guards against accidental logging, not log compromise.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON masks sensitive fields.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer so secrets never leak through %v.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// ServerAddr returns the host:port the HTTP server binds.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}
