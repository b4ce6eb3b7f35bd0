// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Daily replay policies decide what a second finalize on the same UTC day does
const (
	ReplayPolicyCasual = "casual"
	ReplayPolicyReject = "reject"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Game       GameConfig       `json:"game"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	Host            string        `json:"host" env:"DB_HOST" envDefault:"localhost"`
	Port            int           `json:"port" env:"DB_PORT" envDefault:"5432"`
	Name            string        `json:"name" env:"DB_NAME" envDefault:"omikuji"`
	User            string        `json:"user" env:"DB_USER" envDefault:"postgres"`
	Password        string        `json:"password" env:"DB_PASSWORD"`
	SSLMode         string        `json:"ssl_mode" env:"DB_SSL_MODE" envDefault:"disable"`
	MaxOpenConns    int           `json:"max_open_conns" env:"DB_MAX_OPEN_CONNS" envDefault:"50"`
	MaxIdleConns    int           `json:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" env:"DB_CONN_MAX_IDLE_TIME" envDefault:"15m"`
	SlowQueryLog    bool          `json:"slow_query_log" env:"DB_SLOW_QUERY_LOG" envDefault:"true"`
	SlowQueryTime   time.Duration `json:"slow_query_time" env:"DB_SLOW_QUERY_TIME" envDefault:"1s"`
}

// DSN returns the postgres connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type ServerConfig struct {
	Host              string        `json:"host" env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port              int           `json:"port" env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout       time.Duration `json:"read_timeout" env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout      time.Duration `json:"write_timeout" env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout       time.Duration `json:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	BodyLimit         int           `json:"body_limit" env:"SERVER_BODY_LIMIT" envDefault:"1048576"` // 1MB
	EnableMetrics     bool          `json:"enable_metrics" env:"SERVER_ENABLE_METRICS" envDefault:"true"`
	TrustedProxies    []string      `json:"trusted_proxies" env:"SERVER_TRUSTED_PROXIES" envDefault:"127.0.0.1"`
	ProxyHeader       string        `json:"proxy_header" env:"SERVER_PROXY_HEADER" envDefault:"X-Real-IP"`
	EnableCompression bool          `json:"enable_compression" env:"SERVER_ENABLE_COMPRESSION" envDefault:"true"`
	CompressionLevel  int           `json:"compression_level" env:"SERVER_COMPRESSION_LEVEL" envDefault:"6"`
}

type SecurityConfig struct {
	// TLS/HTTPS
	TLSEnabled  bool   `json:"tls_enabled" env:"TLS_ENABLED" envDefault:"false"`
	TLSCertFile string `json:"tls_cert_file" env:"TLS_CERT_FILE"`
	TLSKeyFile  string `json:"tls_key_file" env:"TLS_KEY_FILE"`
	HSTSMaxAge  int    `json:"hsts_max_age" env:"HSTS_MAX_AGE" envDefault:"31536000"` // 1 year

	// CORS
	AllowedOrigins   []string `json:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`
	AllowedMethods   []string `json:"allowed_methods" env:"CORS_ALLOWED_METHODS" envDefault:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `json:"allowed_headers" env:"CORS_ALLOWED_HEADERS" envDefault:"Origin,Content-Type,Accept,X-Requested-With,X-Owner-Key,X-Request-ID"`
	AllowCredentials bool     `json:"allow_credentials" env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"`
	CORSMaxAge       int      `json:"cors_max_age" env:"CORS_MAX_AGE" envDefault:"86400"`

	// Rate Limiting
	GlobalRateLimit int           `json:"global_rate_limit" env:"GLOBAL_RATE_LIMIT" envDefault:"1000"` // requests per minute
	RateLimitWindow time.Duration `json:"rate_limit_window" env:"RATE_LIMIT_WINDOW" envDefault:"1m"`

	// Content Security
	CSPPolicy           string `json:"csp_policy" env:"CSP_POLICY" envDefault:"default-src 'self'"`
	XFrameOptions       string `json:"x_frame_options" env:"X_FRAME_OPTIONS" envDefault:"DENY"`
	XContentTypeOptions string `json:"x_content_type_options" env:"X_CONTENT_TYPE_OPTIONS" envDefault:"nosniff"`
	ReferrerPolicy      string `json:"referrer_policy" env:"REFERRER_POLICY" envDefault:"strict-origin-when-cross-origin"`
}

type LoggingConfig struct {
	Level      string `json:"level" env:"LOG_LEVEL" envDefault:"info"`     // debug, info, warn, error
	Format     string `json:"format" env:"LOG_FORMAT" envDefault:"json"`   // json, text
	Output     string `json:"output" env:"LOG_OUTPUT" envDefault:"stdout"` // stdout, file, both
	FilePath   string `json:"file_path" env:"LOG_FILE_PATH" envDefault:"/var/log/omikuji/app.log"`
	MaxSize    int    `json:"max_size" env:"LOG_MAX_SIZE" envDefault:"100"` // MB
	MaxBackups int    `json:"max_backups" env:"LOG_MAX_BACKUPS" envDefault:"10"`
	MaxAge     int    `json:"max_age" env:"LOG_MAX_AGE" envDefault:"30"` // days
	Compress   bool   `json:"compress" env:"LOG_COMPRESS" envDefault:"true"`
	AddSource  bool   `json:"add_source" env:"LOG_ADD_SOURCE" envDefault:"false"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" env:"METRICS_ENABLED" envDefault:"true"`
	Path    string `json:"path" env:"METRICS_PATH" envDefault:"/metrics"`
}

type CacheConfig struct {
	Enabled         bool          `json:"enabled" env:"CACHE_ENABLED" envDefault:"true"`
	Provider        string        `json:"provider" env:"CACHE_PROVIDER" envDefault:"memory"` // redis, memory
	RedisURL        string        `json:"redis_url" env:"CACHE_REDIS_URL" envDefault:"redis://localhost:6379"`
	RedisDB         int           `json:"redis_db" env:"CACHE_REDIS_DB" envDefault:"0"`
	RedisPrefix     string        `json:"redis_prefix" env:"CACHE_REDIS_PREFIX" envDefault:"omikuji:"`
	DefaultTTL      time.Duration `json:"default_ttl" env:"CACHE_DEFAULT_TTL" envDefault:"10m"`
	CleanupInterval time.Duration `json:"cleanup_interval" env:"CACHE_CLEANUP_INTERVAL" envDefault:"30s"`
}

// GameConfig holds the rules of the draw game
type GameConfig struct {
	MaxDraws           int    `json:"max_draws" env:"GAME_MAX_DRAWS" envDefault:"5"`
	DailyReplayPolicy  string `json:"daily_replay_policy" env:"GAME_DAILY_REPLAY_POLICY" envDefault:"casual"` // casual, reject
	StatsTimezone      string `json:"stats_timezone" env:"GAME_STATS_TIMEZONE" envDefault:"UTC"`
	ActionRateLimit    int    `json:"action_rate_limit" env:"GAME_ACTION_RATE_LIMIT" envDefault:"100"` // draws and finalizes per minute
	HistoryExportLimit int    `json:"history_export_limit" env:"GAME_HISTORY_EXPORT_LIMIT" envDefault:"1000"`
}

// StatsLocation resolves StatsTimezone, falling back to UTC
func (g GameConfig) StatsLocation() *time.Location {
	loc, err := time.LoadLocation(g.StatsTimezone)
	if err != nil || g.StatsTimezone == "" {
		return time.UTC
	}
	return loc
}

type DeploymentConfig struct {
	Domain      string `json:"domain" env:"DOMAIN" envDefault:"localhost"`
	Environment string `json:"environment" env:"APP_ENV" envDefault:"production"`
	Version     string `json:"version" env:"VERSION" envDefault:"1.0.0"`
	CommitHash  string `json:"commit_hash" env:"COMMIT_HASH" envDefault:"unknown"`
	BuildTime   string `json:"build_time" env:"BUILD_TIME" envDefault:"unknown"`
}

// LoadProductionConfig loads configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile merges KEY=VALUE lines into the environment without overriding variables already set
func loadEnvFile(envFile string) error {
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return nil
	}

	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		// Remove quotes if present
		if len(value) >= 2 && ((value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'')) {
			value = value[1 : len(value)-1]
		}

		if _, set := os.LookupEnv(key); !set {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}
	if cfg.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.IdleTimeout <= 0 {
		errors = append(errors, "SERVER_IDLE_TIMEOUT must be positive")
	}

	// Validate TLS configuration if enabled
	if cfg.Security.TLSEnabled {
		if cfg.Security.TLSCertFile == "" {
			errors = append(errors, "TLS_CERT_FILE is required when TLS is enabled")
		}
		if cfg.Security.TLSKeyFile == "" {
			errors = append(errors, "TLS_KEY_FILE is required when TLS is enabled")
		}
	}
	if cfg.Security.GlobalRateLimit <= 0 {
		errors = append(errors, "GLOBAL_RATE_LIMIT must be positive")
	}

	// Validate logging configuration
	validLevels := []string{"debug", "info", "warn", "error"}
	if cfg.Logging.Level != "" && !slices.Contains(validLevels, cfg.Logging.Level) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
	}
	validOutputs := []string{"stdout", "file", "both"}
	if !slices.Contains(validOutputs, cfg.Logging.Output) {
		errors = append(errors, fmt.Sprintf("LOG_OUTPUT must be one of: %v", validOutputs))
	}
	if cfg.Logging.Output != "stdout" && cfg.Logging.FilePath == "" {
		errors = append(errors, "LOG_FILE_PATH is required when logging to a file")
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled {
		if cfg.Cache.Provider == "redis" && cfg.Cache.RedisURL == "" {
			errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled with redis provider")
		}
		if cfg.Cache.Provider != "redis" && cfg.Cache.Provider != "memory" {
			errors = append(errors, "CACHE_PROVIDER must be one of: [redis memory]")
		}
	}

	// Validate game rules
	if cfg.Game.MaxDraws != 5 {
		errors = append(errors, "GAME_MAX_DRAWS must be 5")
	}
	if cfg.Game.DailyReplayPolicy != ReplayPolicyCasual && cfg.Game.DailyReplayPolicy != ReplayPolicyReject {
		errors = append(errors, "GAME_DAILY_REPLAY_POLICY must be one of: [casual reject]")
	}
	if _, err := time.LoadLocation(cfg.Game.StatsTimezone); err != nil {
		errors = append(errors, fmt.Sprintf("GAME_STATS_TIMEZONE is invalid: %v", err))
	}
	if cfg.Game.ActionRateLimit <= 0 {
		errors = append(errors, "GAME_ACTION_RATE_LIMIT must be positive")
	}
	if cfg.Game.HistoryExportLimit <= 0 {
		errors = append(errors, "GAME_HISTORY_EXPORT_LIMIT must be positive")
	}

	// Return validation errors if any
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
