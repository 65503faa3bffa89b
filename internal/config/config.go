package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// maxTransfersPerBatch is the bank's hard limit per batch call.
const maxTransfersPerBatch = 320

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	App      AppConfig
	Gateway  GatewayConfig
	Redis    RedisConfig
	Dispatch DispatchConfig
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	Name        string
	SSLMode     string
	MaxConns    int32
	AutoMigrate bool
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration time.Duration
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int
	Env            string
	LogLevel       string
	Version        string
	AllowedOrigins []string
}

// GatewayConfig holds the bank batch API credentials
type GatewayConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Timeout      time.Duration
}

// RedisConfig is optional; an empty Addr keeps the cache in process.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type DispatchConfig struct {
	MaxTransfersPerBatch int
	LeaseTTL             time.Duration
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	dbMaxConns, err := strconv.Atoi(getEnv("DB_MAX_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	autoMigrate, err := strconv.ParseBool(getEnv("DB_AUTO_MIGRATE", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_AUTO_MIGRATE: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:        getEnv("DB_HOST", "localhost"),
		Port:        dbPort,
		User:        getEnv("DB_USER", "postgres"),
		Password:    getEnv("DB_PASSWORD", ""),
		Name:        getEnv("DB_NAME", "payroll-dispatch"),
		SSLMode:     getEnv("DB_SSL_MODE", "disable"),
		MaxConns:    int32(dbMaxConns),
		AutoMigrate: autoMigrate,
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Version:        getEnv("APP_VERSION", "v1.0.0"),
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
	}

	// JWT configuration
	accessExpiration, err := time.ParseDuration(getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCESS_EXPIRATION_TIME: %w", err)
	}

	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: accessExpiration,
	}

	// Bank gateway configuration
	gatewayTimeout, err := time.ParseDuration(getEnv("GATEWAY_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid GATEWAY_TIMEOUT: %w", err)
	}

	config.Gateway = GatewayConfig{
		BaseURL:      strings.TrimRight(getEnv("GATEWAY_BASE_URL", ""), "/"),
		TokenURL:     getEnv("GATEWAY_TOKEN_URL", ""),
		ClientID:     getEnv("GATEWAY_CLIENT_ID", ""),
		ClientSecret: getEnv("GATEWAY_CLIENT_SECRET", ""),
		Scopes:       getEnvSlice("GATEWAY_SCOPES", ""),
		Timeout:      gatewayTimeout,
	}

	// Redis configuration
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	config.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       redisDB,
		Prefix:   getEnv("REDIS_PREFIX", "payroll:"),
	}

	// Dispatch configuration
	maxTransfers, err := strconv.Atoi(getEnv("MAX_TRANSFERS_PER_BATCH", strconv.Itoa(maxTransfersPerBatch)))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_TRANSFERS_PER_BATCH: %w", err)
	}
	leaseTTL, err := time.ParseDuration(getEnv("DISPATCH_LEASE_TTL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid DISPATCH_LEASE_TTL: %w", err)
	}

	config.Dispatch = DispatchConfig{
		MaxTransfersPerBatch: maxTransfers,
		LeaseTTL:             leaseTTL,
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("GATEWAY_BASE_URL is required")
	}
	if c.Gateway.TokenURL == "" {
		return fmt.Errorf("GATEWAY_TOKEN_URL is required")
	}
	if c.Gateway.ClientID == "" || c.Gateway.ClientSecret == "" {
		return fmt.Errorf("GATEWAY_CLIENT_ID and GATEWAY_CLIENT_SECRET are required")
	}
	if c.Dispatch.MaxTransfersPerBatch < 1 || c.Dispatch.MaxTransfersPerBatch > maxTransfersPerBatch {
		return fmt.Errorf("MAX_TRANSFERS_PER_BATCH must be between 1 and %d", maxTransfersPerBatch)
	}
	// the lease must outlive a full dispatch attempt
	if c.Dispatch.LeaseTTL < c.Gateway.Timeout {
		return fmt.Errorf("DISPATCH_LEASE_TTL must not be shorter than GATEWAY_TIMEOUT")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.App.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env string, fallback string) []string {
	value := getEnv(env, fallback)
	if value == "" {
		return []string{}
	}
	var result []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}
	return result
}
