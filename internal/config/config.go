package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	GitHub    GitHubConfig
	Scheduler SchedulerConfig
	Commits   CommitConfig
	Logging   LoggingConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	FrontendURL     string
	Environment     string
}

// DatabaseConfig contains database configuration.
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// GitHubConfig contains git provider API configuration.
type GitHubConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// SchedulerConfig contains cadence configuration for the dispatcher.
type SchedulerConfig struct {
	Enabled          bool
	Timezone         string
	DailyBatchCron   string // standard-tier batch, fixed local time
	WindowCheckCron  string // elevated-tier per-user window check
	RetrySweepCron   string
	CleanupSweepCron string
	RetentionDays    int
}

// CommitConfig tunes the orchestration layer.
type CommitConfig struct {
	WriteDelay     time.Duration // pacing between successive remote writes
	MaxRetries     int
	DefaultMessage string
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			FrontendURL:     getEnv("FRONTEND_URL", "http://localhost:5173"),
			Environment:     getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Path:            getEnv("DB_PATH", "commitcanvas.db"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 1),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		GitHub: GitHubConfig{
			BaseURL: getEnv("GITHUB_API_URL", "https://api.github.com"),
			Token:   getEnv("GITHUB_TOKEN", ""),
			Timeout: getEnvAsDuration("GITHUB_TIMEOUT", 30*time.Second),
		},
		Scheduler: SchedulerConfig{
			Enabled:          getEnvAsBool("SCHEDULER_ENABLED", true),
			Timezone:         getEnv("SCHEDULER_TIMEZONE", "UTC"),
			DailyBatchCron:   getEnv("SCHEDULER_DAILY_BATCH_CRON", "0 12 * * *"),
			WindowCheckCron:  getEnv("SCHEDULER_WINDOW_CHECK_CRON", "*/5 * * * *"),
			RetrySweepCron:   getEnv("SCHEDULER_RETRY_SWEEP_CRON", "15 * * * *"),
			CleanupSweepCron: getEnv("SCHEDULER_CLEANUP_CRON", "30 3 * * *"),
			RetentionDays:    getEnvAsInt("SCHEDULER_RETENTION_DAYS", 30),
		},
		Commits: CommitConfig{
			WriteDelay:     getEnvAsDuration("COMMIT_WRITE_DELAY", 750*time.Millisecond),
			MaxRetries:     getEnvAsInt("COMMIT_MAX_RETRIES", 1),
			DefaultMessage: getEnv("COMMIT_DEFAULT_MESSAGE", "Keep the streak alive"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("invalid scheduler timezone %q: %w", c.Scheduler.Timezone, err)
	}
	if c.Commits.MaxRetries < 0 {
		return fmt.Errorf("commit max retries must not be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
