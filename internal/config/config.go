// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// MinProductionSecretLength is the shortest JWT secret accepted in production.
const MinProductionSecretLength = 32

// Config holds application configuration values loaded from file or environment variables.
// It is read once at startup and treated as immutable afterwards.
type Config struct {
	Port                string  `mapstructure:"PORT"`
	Env                 string  `mapstructure:"APP_ENV"`
	JWTSecret           string  `mapstructure:"JWT_SECRET"`
	APIToken            string  `mapstructure:"API_TOKEN"`
	AllowInsecureWrites bool    `mapstructure:"ALLOW_INSECURE_WRITES"`
	AuthRealm           string  `mapstructure:"AUTH_REALM"`
	PublicAPIBase       string  `mapstructure:"PUBLIC_API_BASE"`
	DataDir             string  `mapstructure:"DATA_DIR"`
	UploadsDir          string  `mapstructure:"UPLOADS_DIR"`
	StoreLenientReads   bool    `mapstructure:"STORE_LENIENT_READS"`
	RedisURL            string  `mapstructure:"REDIS_URL"`
	AllowedOrigins      string  `mapstructure:"ALLOWED_ORIGINS"`
	UploadRateLimit     int     `mapstructure:"UPLOAD_RATE_LIMIT"`
	UploadFailClosed    bool    `mapstructure:"UPLOAD_RATE_LIMIT_FAIL_CLOSED"`
	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint        string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSamplerRatio float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env != "" && env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read profile config 'config.%s.yml': %w", env, err)
			}
		} else {
			log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
		}
	}

	// Every key needs a default so that AutomaticEnv values reach Unmarshal.
	viper.SetDefault("PORT", "3388")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("API_TOKEN", "")
	viper.SetDefault("ALLOW_INSECURE_WRITES", false)
	viper.SetDefault("AUTH_REALM", "inkpost")
	viper.SetDefault("PUBLIC_API_BASE", "http://localhost:3388")
	viper.SetDefault("DATA_DIR", "./data")
	viper.SetDefault("UPLOADS_DIR", "./data/uploads")
	viper.SetDefault("STORE_LENIENT_READS", false)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("ALLOWED_ORIGINS", "*")
	viper.SetDefault("UPLOAD_RATE_LIMIT", 30)
	viper.SetDefault("UPLOAD_RATE_LIMIT_FAIL_CLOSED", false)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.PublicAPIBase = strings.TrimRight(strings.TrimSpace(c.PublicAPIBase), "/")
	if c.AuthRealm == "" {
		c.AuthRealm = "inkpost"
	}
}

// IsProduction reports whether strict production checks apply.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// WritesConfigured reports whether any credential can authorize a write.
func (c *Config) WritesConfigured() bool {
	return c.JWTSecret != "" || c.APIToken != ""
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.DataDir == "" {
		return errors.New("DATA_DIR is required")
	}
	if c.UploadsDir == "" {
		return errors.New("UPLOADS_DIR is required")
	}
	if c.UploadFailClosed && c.RedisURL == "" {
		return errors.New("UPLOAD_RATE_LIMIT_FAIL_CLOSED requires REDIS_URL")
	}
	if c.TracingSamplerRatio < 0 || c.TracingSamplerRatio > 1 {
		return errors.New("TRACING_SAMPLER_RATIO must be between 0 and 1")
	}

	if c.IsProduction() {
		if c.AllowInsecureWrites {
			return errors.New("ALLOW_INSECURE_WRITES must not be enabled in production")
		}
		if c.JWTSecret != "" && len(c.JWTSecret) < MinProductionSecretLength {
			return fmt.Errorf("JWT_SECRET must be at least %d characters in production", MinProductionSecretLength)
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else {
		if c.JWTSecret != "" && len(c.JWTSecret) < MinProductionSecretLength {
			log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
		}
		if c.AllowInsecureWrites {
			log.Println("WARNING: ALLOW_INSECURE_WRITES is enabled. Writes are open when no credentials are configured.")
		}
	}

	if !c.WritesConfigured() && !c.AllowInsecureWrites {
		log.Println("WARNING: neither JWT_SECRET nor API_TOKEN is set; all write requests will be rejected")
	}
	if c.JWTSecret != "" && c.APIToken != "" {
		log.Println("WARNING: API_TOKEN is accepted as a fallback for bearer tokens that fail JWT verification")
	}

	return nil
}
