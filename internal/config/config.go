// Package config loads service configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nadmax/medrank/internal/analytics"
	"github.com/nadmax/medrank/internal/student"
	"github.com/spf13/viper"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	Storage   StorageConfig     `mapstructure:"storage"`
	Database  DatabaseConfig    `mapstructure:"database"`
	Redis     RedisConfig       `mapstructure:"redis"`
	RabbitMQ  RabbitMQConfig    `mapstructure:"rabbitmq"`
	SendGrid  SendGridConfig    `mapstructure:"sendgrid"`
	Auth      AuthConfig        `mapstructure:"auth"`
	Logging   LoggingConfig     `mapstructure:"logging"`
	CORS      CORSConfig        `mapstructure:"cors"`
	Analytics AnalyticsConfig   `mapstructure:"analytics"`
	Events    EventsConfig      `mapstructure:"events"`
	Students  []student.Student `mapstructure:"students"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig configures the rankings cache. An empty address disables it.
type RedisConfig struct {
	Addr string        `mapstructure:"addr"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// RabbitMQConfig configures event publishing. An empty URL disables it.
type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// SendGridConfig configures assignment emails. An empty API key disables them.
type SendGridConfig struct {
	APIKey      string `mapstructure:"api_key"`
	FromName    string `mapstructure:"from_name"`
	FromAddress string `mapstructure:"from_address"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Pretty  bool   `mapstructure:"pretty"`
	NoColor bool   `mapstructure:"no_color"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type AnalyticsConfig struct {
	HighAge        int           `mapstructure:"high_age"`
	MediumAge      int           `mapstructure:"medium_age"`
	HighKeywords   []string      `mapstructure:"high_keywords"`
	MediumKeywords []string      `mapstructure:"medium_keywords"`
	DueAfter       time.Duration `mapstructure:"due_after"`
	TopPerformers  int           `mapstructure:"top_performers"`
	TrendMonths    int           `mapstructure:"trend_months"`
}

// EventsConfig sizes the in-process dispatcher that runs event side effects.
type EventsConfig struct {
	Buffer int `mapstructure:"buffer"`
}

func (c AnalyticsConfig) Options() analytics.Options {
	rules := analytics.PriorityRules{
		HighAge:        c.HighAge,
		MediumAge:      c.MediumAge,
		HighKeywords:   c.HighKeywords,
		MediumKeywords: c.MediumKeywords,
	}

	return analytics.Options{
		Classify:      rules.Classifier(),
		DueAfter:      c.DueAfter,
		TopPerformers: c.TopPerformers,
		TrendMonths:   c.TrendMonths,
	}
}

// Load reads config.yaml from ./config or the working directory, if present,
// and overlays MEDRANK_* environment variables, e.g. MEDRANK_REDIS_ADDR.
func Load() (*Config, error) {
	return load(viper.New(), "./config", ".")
}

func load(v *viper.Viper, paths ...string) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("medrank")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres storage driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("storage.driver", StorageMemory)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.ttl", "5m")

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "medrank.events")

	v.SetDefault("sendgrid.api_key", "")
	v.SetDefault("sendgrid.from_name", "Med-Rank-Flow")
	v.SetDefault("sendgrid.from_address", "no-reply@medrank.local")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "24h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)
	v.SetDefault("logging.no_color", false)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Accept", "Authorization", "Content-Type"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 300)

	rules := analytics.DefaultPriorityRules()
	opts := analytics.DefaultOptions()
	v.SetDefault("analytics.high_age", rules.HighAge)
	v.SetDefault("analytics.medium_age", rules.MediumAge)
	v.SetDefault("analytics.high_keywords", rules.HighKeywords)
	v.SetDefault("analytics.medium_keywords", rules.MediumKeywords)
	v.SetDefault("analytics.due_after", opts.DueAfter.String())
	v.SetDefault("analytics.top_performers", opts.TopPerformers)
	v.SetDefault("analytics.trend_months", opts.TrendMonths)

	v.SetDefault("events.buffer", 256)
}
