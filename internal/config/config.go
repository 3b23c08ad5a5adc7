package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Listing   ListingConfig
	Currency  CurrencyConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type SessionConfig struct {
	Secret  string
	TTL     time.Duration
	MaxIdle time.Duration
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type ListingConfig struct {
	DefaultLimit       int
	InventoryRetries   uint64
	InventoryRetryBase time.Duration
}

type CurrencyConfig struct {
	Code   string
	Symbol string
}

func Load() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("SESSION_TTL_HOURS", 72)
	viper.SetDefault("SESSION_IDLE_MINUTES", 30)
	viper.SetDefault("RATE_LIMIT_REQUESTS", 120)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	viper.SetDefault("LISTING_DEFAULT_LIMIT", 0)
	viper.SetDefault("INVENTORY_RETRY_ATTEMPTS", 2)
	viper.SetDefault("INVENTORY_RETRY_BASE_MS", 100)
	viper.SetDefault("CURRENCY_CODE", "USD")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Env:            viper.GetString("SERVER_ENV"),
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Session: SessionConfig{
			Secret:  viper.GetString("SESSION_SECRET"),
			TTL:     time.Duration(viper.GetInt("SESSION_TTL_HOURS")) * time.Hour,
			MaxIdle: time.Duration(viper.GetInt("SESSION_IDLE_MINUTES")) * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   time.Duration(viper.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
		},
		Listing: ListingConfig{
			DefaultLimit:       viper.GetInt("LISTING_DEFAULT_LIMIT"),
			InventoryRetries:   uint64(viper.GetInt("INVENTORY_RETRY_ATTEMPTS")),
			InventoryRetryBase: time.Duration(viper.GetInt("INVENTORY_RETRY_BASE_MS")) * time.Millisecond,
		},
		Currency: CurrencyConfig{
			Code:   viper.GetString("CURRENCY_CODE"),
			Symbol: viper.GetString("CURRENCY_SYMBOL"),
		},
	}
}

// IsDevelopment reports whether the server runs outside production
func (c *Config) IsDevelopment() bool {
	return c.Server.Env != "production"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
