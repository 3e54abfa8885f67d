package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Pricing     PricingConfig   `mapstructure:"pricing"`
	Admin       AdminConfig     `mapstructure:"admin"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PricingConfig carries the evaluation knobs that are not part of a
// pricing policy: the observation selection window and the estimate
// response cache TTL.
type PricingConfig struct {
	WindowDays       int    `mapstructure:"window_days"`
	EstimateCacheTTL string `mapstructure:"estimate_cache_ttl"`
}

type AdminConfig struct {
	APIKey string `mapstructure:"api_key" json:"-" yaml:"-"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Bind specific environment variables
	if err := viper.BindEnv("admin.api_key", "ADMIN_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind ADMIN_API_KEY environment variable: %w", err)
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	config.Environment = strings.ToLower(config.Environment)

	if config.Pricing.WindowDays < 1 {
		return nil, fmt.Errorf("pricing window must be at least 1 day, got %d", config.Pricing.WindowDays)
	}
	if config.Pricing.EstimateCacheTTL != "" {
		if _, err := time.ParseDuration(config.Pricing.EstimateCacheTTL); err != nil {
			return nil, fmt.Errorf("invalid estimate cache TTL: %w", err)
		}
	}
	if config.Telemetry.SampleRatio < 0 || config.Telemetry.SampleRatio > 1 {
		return nil, fmt.Errorf("telemetry sample ratio must be within [0,1], got %v", config.Telemetry.SampleRatio)
	}

	return &config, nil
}

// EstimateCacheTTL parses the configured cache TTL, falling back to three
// minutes when unset or unparseable.
func (c *Config) EstimateCacheTTL() time.Duration {
	if c.Pricing.EstimateCacheTTL == "" {
		return 3 * time.Minute
	}
	d, err := time.ParseDuration(c.Pricing.EstimateCacheTTL)
	if err != nil {
		return 3 * time.Minute
	}
	return d
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Set database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "gridquote")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.conn_max_lifetime", "300s")

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Pricing
	viper.SetDefault("pricing.window_days", 90)
	viper.SetDefault("pricing.estimate_cache_ttl", "3m")

	// Admin
	viper.SetDefault("admin.api_key", "")

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.otlp_endpoint", "")
	viper.SetDefault("telemetry.service_name", "gridquote-pricing")
	viper.SetDefault("telemetry.sample_ratio", 0.1)
}
