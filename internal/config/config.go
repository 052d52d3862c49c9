package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"libraryhub/internal/core/domain"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for the application
type Config struct {
	AppMode   string
	Port      string
	Database  DatabaseConfig
	JWT       JWTConfig
	Cookie    CookieConfig
	Session   SessionConfig
	Lending   domain.LendingPolicy
	Mail      MailConfig
	Notify    NotifyConfig
	Jobs      JobsConfig
	RateLimit RateLimitConfig
	Seed      SeedConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	RefreshSecret    string
	AccessTokenMins  int
	RefreshTokenDays int
}

// CookieConfig holds cookie configuration
type CookieConfig struct {
	Secure   bool
	SameSite string
	Domain   string
}

// SessionConfig holds server-rendered page session configuration
type SessionConfig struct {
	ExpiryHours int
}

// MailConfig holds SMTP settings. An empty Host logs mail instead of sending it.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NotifyConfig sizes the outbound notification queue
type NotifyConfig struct {
	QueueSize          int
	SendTimeoutSeconds int
}

// JobsConfig holds cron schedules for background jobs
type JobsConfig struct {
	Enabled             bool
	OverdueReminderSpec string
	TokenCleanupSpec    string
}

// RateLimitConfig holds per-IP request limits per minute; 0 disables a limiter
type RateLimitConfig struct {
	General int
	Auth    int
}

// SeedConfig holds the bootstrap admin account and sample data switch
type SeedConfig struct {
	AdminUsername string
	AdminEmail    string
	AdminPassword string
	SampleBooks   bool
}

const (
	defaultJWTSecret        = "default_secret"
	defaultJWTRefreshSecret = "default_refresh_secret"
)

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		slog.Debug(".env file not found, using environment variables")
	}

	// Get APP_MODE (default to "dev") - trim spaces for Windows compatibility
	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	lending, err := loadLendingPolicy()
	if err != nil {
		return nil, err
	}

	config := &Config{
		AppMode:   appMode,
		Port:      getEnv("PORT", "3000"),
		Database:  loadDatabaseConfig(appMode),
		JWT:       loadJWTConfig(appMode),
		Cookie:    loadCookieConfig(appMode),
		Session:   SessionConfig{ExpiryHours: getEnvInt("SESSION_EXPIRY_HOURS", 24)},
		Lending:   lending,
		Mail:      loadMailConfig(),
		Notify:    NotifyConfig{QueueSize: getEnvInt("NOTIFY_QUEUE_SIZE", 100), SendTimeoutSeconds: getEnvInt("NOTIFY_SEND_TIMEOUT_SECONDS", 15)},
		Jobs:      loadJobsConfig(),
		RateLimit: RateLimitConfig{General: getEnvInt("RATE_LIMIT_GENERAL", 100), Auth: getEnvInt("RATE_LIMIT_AUTH", 5)},
		Seed:      loadSeedConfig(appMode),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid DB_DRIVER: '%s' (must be mysql, postgres or sqlite)", c.Database.Driver)
	}
	if err := c.Lending.Validate(); err != nil {
		return err
	}
	if c.JWT.AccessTokenMins <= 0 || c.JWT.RefreshTokenDays <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if c.Notify.QueueSize <= 0 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE must be positive")
	}
	if c.IsProd() && (c.JWT.Secret == defaultJWTSecret || c.JWT.RefreshSecret == defaultJWTRefreshSecret) {
		return fmt.Errorf("PROD_JWT_SECRET and PROD_JWT_REFRESH_SECRET must be set in prod")
	}
	return nil
}

func modePrefix(mode string) string {
	if mode == "prod" {
		return "PROD_"
	}
	return "DEV_"
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) DatabaseConfig {
	prefix := modePrefix(mode)
	driver := strings.ToLower(getEnv(prefix+"DB_DRIVER", "sqlite"))

	defaultPort := "3306"
	if driver == "postgres" {
		defaultPort = "5432"
	}

	return DatabaseConfig{
		Driver:     driver,
		Host:       getEnv(prefix+"DB_HOST", "localhost"),
		Port:       getEnv(prefix+"DB_PORT", defaultPort),
		User:       getEnv(prefix+"DB_USER", "root"),
		Password:   getEnv(prefix+"DB_PASS", ""),
		DBName:     getEnv(prefix+"DB_NAME", "libraryhub"),
		SSLMode:    getEnv(prefix+"DB_SSLMODE", "disable"),
		SQLitePath: getEnv(prefix+"SQLITE_PATH", "libraryhub.db"),
	}
}

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(mode string) JWTConfig {
	prefix := modePrefix(mode)

	return JWTConfig{
		Secret:           getEnv(prefix+"JWT_SECRET", defaultJWTSecret),
		RefreshSecret:    getEnv(prefix+"JWT_REFRESH_SECRET", defaultJWTRefreshSecret),
		AccessTokenMins:  getEnvInt("ACCESS_TOKEN_MINUTES", 15),
		RefreshTokenDays: getEnvInt("REFRESH_TOKEN_DAYS", 7),
	}
}

// loadCookieConfig loads cookie config based on mode
func loadCookieConfig(mode string) CookieConfig {
	secure, _ := strconv.ParseBool(getEnv(modePrefix(mode)+"COOKIE_SECURE", "false"))

	return CookieConfig{
		Secure:   secure,
		SameSite: getEnv("COOKIE_SAMESITE", "Lax"),
		Domain:   getEnv("COOKIE_DOMAIN", ""),
	}
}

// loadLendingPolicy loads loan period and penalty rate
func loadLendingPolicy() (domain.LendingPolicy, error) {
	rate, err := decimal.NewFromString(getEnv("PENALTY_PER_DAY", "1.00"))
	if err != nil {
		return domain.LendingPolicy{}, fmt.Errorf("invalid PENALTY_PER_DAY: %w", err)
	}
	period, err := strconv.Atoi(getEnv("LOAN_PERIOD_DAYS", strconv.Itoa(domain.DefaultLoanPeriodDays)))
	if err != nil {
		return domain.LendingPolicy{}, fmt.Errorf("invalid LOAN_PERIOD_DAYS: %w", err)
	}
	return domain.LendingPolicy{LoanPeriodDays: period, PenaltyPerDay: rate}, nil
}

func loadMailConfig() MailConfig {
	return MailConfig{
		Host:     getEnv("SMTP_HOST", ""),
		Port:     getEnvInt("SMTP_PORT", 587),
		Username: getEnv("SMTP_USER", ""),
		Password: getEnv("SMTP_PASS", ""),
		From:     getEnv("MAIL_FROM", "library@localhost"),
	}
}

func loadJobsConfig() JobsConfig {
	enabled, _ := strconv.ParseBool(getEnv("JOBS_ENABLED", "true"))
	return JobsConfig{
		Enabled:             enabled,
		OverdueReminderSpec: getEnv("OVERDUE_REMINDER_CRON", "30 8 * * *"),
		TokenCleanupSpec:    getEnv("TOKEN_CLEANUP_CRON", "0 3 * * *"),
	}
}

func loadSeedConfig(mode string) SeedConfig {
	sample, _ := strconv.ParseBool(getEnv("SEED_SAMPLE_BOOKS", strconv.FormatBool(mode == "dev")))
	return SeedConfig{
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		SampleBooks:   sample,
	}
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable, falling back on parse errors
func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		return "http://localhost:" + c.Port
	}
	return origins
}
