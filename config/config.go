package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling.
type ServerConfig struct {
	HTTPPort        string `mapstructure:"HTTP_PORT"`
	MongoURI        string `mapstructure:"MONGO_URI"`
	MongoDBName     string `mapstructure:"MONGO_DB_NAME"`
	RedisAddr       string `mapstructure:"REDIS_ADDR"` // empty keeps auth attempts in memory
	RedisPassword   string `mapstructure:"REDIS_PASSWORD"`
	RedisDB         int    `mapstructure:"REDIS_DB"`
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	LogPretty       bool   `mapstructure:"LOG_PRETTY"`
	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`

	AirtableClientID     string        `mapstructure:"AIRTABLE_CLIENT_ID"`
	AirtableClientSecret string        `mapstructure:"AIRTABLE_CLIENT_SECRET"`
	AirtableRedirectURI  string        `mapstructure:"AIRTABLE_REDIRECT_URI"`
	AirtableAuthURL      string        `mapstructure:"AIRTABLE_AUTH_URL"`
	AirtableTokenURL     string        `mapstructure:"AIRTABLE_TOKEN_URL"`
	AirtableAPIURL       string        `mapstructure:"AIRTABLE_API_URL"`
	AirtableHTTPTimeout  time.Duration `mapstructure:"AIRTABLE_HTTP_TIMEOUT"`
	AirtableRateLimit    float64       `mapstructure:"AIRTABLE_RATE_LIMIT"` // requests per second

	JWTSecretKey       string        `mapstructure:"JWT_SECRET_KEY"`
	SessionTTL         time.Duration `mapstructure:"SESSION_TTL"`
	SessionIssuer      string        `mapstructure:"SESSION_ISSUER"`
	AuthAttemptTTL     time.Duration `mapstructure:"AUTH_ATTEMPT_TTL"`
	TokenExpirySkew    time.Duration `mapstructure:"TOKEN_EXPIRY_SKEW"`
	TokenEncryptionKey string        `mapstructure:"TOKEN_ENCRYPTION_KEY"`

	FrontendURL string `mapstructure:"FRONTEND_URL"`
}

var keys = []string{
	"HTTP_PORT", "MONGO_URI", "MONGO_DB_NAME", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"LOG_LEVEL", "LOG_PRETTY", "OTEL_SERVICE_NAME", "TRACING_ENABLED",
	"AIRTABLE_CLIENT_ID", "AIRTABLE_CLIENT_SECRET", "AIRTABLE_REDIRECT_URI",
	"AIRTABLE_AUTH_URL", "AIRTABLE_TOKEN_URL", "AIRTABLE_API_URL",
	"AIRTABLE_HTTP_TIMEOUT", "AIRTABLE_RATE_LIMIT",
	"JWT_SECRET_KEY", "SESSION_TTL", "SESSION_ISSUER", "AUTH_ATTEMPT_TTL",
	"TOKEN_EXPIRY_SKEW", "TOKEN_ENCRYPTION_KEY", "FRONTEND_URL",
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/airform/")
	v.AddConfigPath("$HOME/.airform")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// Unmarshal only sees env values for keys viper knows about.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB_NAME", "airform")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("OTEL_SERVICE_NAME", "airform")
	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("AIRTABLE_AUTH_URL", "https://airtable.com/oauth2/v1/authorize")
	v.SetDefault("AIRTABLE_TOKEN_URL", "https://airtable.com/oauth2/v1/token")
	v.SetDefault("AIRTABLE_API_URL", "https://api.airtable.com")
	v.SetDefault("AIRTABLE_HTTP_TIMEOUT", "15s")
	v.SetDefault("AIRTABLE_RATE_LIMIT", 5)
	v.SetDefault("SESSION_TTL", "720h")
	v.SetDefault("SESSION_ISSUER", "airform")
	v.SetDefault("AUTH_ATTEMPT_TTL", "10m")
	v.SetDefault("TOKEN_EXPIRY_SKEW", "60s")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *ServerConfig) Validate() error {
	var errs []error
	required := map[string]string{
		"AIRTABLE_CLIENT_ID":    c.AirtableClientID,
		"AIRTABLE_REDIRECT_URI": c.AirtableRedirectURI,
		"JWT_SECRET_KEY":        c.JWTSecretKey,
		"TOKEN_ENCRYPTION_KEY":  c.TokenEncryptionKey,
		"MONGO_URI":             c.MongoURI,
		"FRONTEND_URL":          c.FrontendURL,
	}
	for _, k := range keys {
		if val, ok := required[k]; ok && val == "" {
			errs = append(errs, fmt.Errorf("%s is required", k))
		}
	}
	if c.JWTSecretKey != "" && len(c.JWTSecretKey) < 32 {
		errs = append(errs, errors.New("JWT_SECRET_KEY must be at least 32 characters"))
	}
	if c.AirtableHTTPTimeout <= 0 {
		errs = append(errs, errors.New("AIRTABLE_HTTP_TIMEOUT must be positive"))
	}
	if c.TokenExpirySkew < 0 {
		errs = append(errs, errors.New("TOKEN_EXPIRY_SKEW must not be negative"))
	}
	return errors.Join(errs...)
}

// LogFields returns the settings that are safe to log. Secrets are reported
// only as set or unset.
func (c *ServerConfig) LogFields() map[string]any {
	return map[string]any{
		"http_port":             c.HTTPPort,
		"mongo_db_name":         c.MongoDBName,
		"redis_enabled":         c.RedisAddr != "",
		"log_level":             c.LogLevel,
		"otel_service_name":     c.OtelServiceName,
		"tracing_enabled":       c.TracingEnabled,
		"airtable_client_id":    c.AirtableClientID,
		"airtable_redirect_uri": c.AirtableRedirectURI,
		"airtable_api_url":      c.AirtableAPIURL,
		"airtable_http_timeout": c.AirtableHTTPTimeout.String(),
		"airtable_rate_limit":   c.AirtableRateLimit,
		"airtable_secret_set":   c.AirtableClientSecret != "",
		"session_ttl":           c.SessionTTL.String(),
		"auth_attempt_ttl":      c.AuthAttemptTTL.String(),
		"token_expiry_skew":     c.TokenExpirySkew.String(),
		"token_encryption_set":  c.TokenEncryptionKey != "",
		"frontend_url":          c.FrontendURL,
	}
}
