package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

// GetDSN returns the PostgreSQL connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// RedisConfig holds redis configuration for the login-state store and the
// signed-out-token denylist
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// JWTConfig holds session token configuration. SessionTTL bounds a single
// token; MaxLifetime caps the total session age across silent refreshes,
// counted from the original authentication time.
type JWTConfig struct {
	SigningKey  string
	Issuer      string
	SessionTTL  time.Duration
	MaxLifetime time.Duration
}

// IDPConfig holds the external identity provider (OAuth2/OIDC) settings
type IDPConfig struct {
	Provider     string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserinfoURL  string
	RedirectURL  string
	Scopes       []string
	StateTTL     time.Duration
}

// RentalAPIConfig holds the external rental-management API settings
type RentalAPIConfig struct {
	BaseURL         string
	Token           string
	SubscriptionKey string
}

// PortalConfig holds settings for the web portal this service backs
type PortalConfig struct {
	BaseURL      string
	TermsVersion string
}

// AuthConfig holds authentication feature flags and limits. These are
// explicit startup configuration, never read from ambient state at call
// time.
type AuthConfig struct {
	DevBypassEnabled       bool
	DevBypassSecretHash    string
	MockCompanyIDsForAdmin []uint
	RateLimitRPS           float64
	RateLimitBurst         int
}

// JobsConfig holds background job configuration
type JobsConfig struct {
	CustomerSyncSchedule    string
	LoginEventRetentionDays int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// Config holds all configuration
type Config struct {
	DB        DBConfig
	Redis     RedisConfig
	Server    ServerConfig
	JWT       JWTConfig
	IDP       IDPConfig
	RentalAPI RentalAPIConfig
	Portal    PortalConfig
	Auth      AuthConfig
	Jobs      JobsConfig
	Log       LogConfig
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Not returning error as .env file is optional
		fmt.Printf("Warning: .env file not found, using environment variables\n")
	}

	// Initialize config struct with values from environment
	config := &Config{
		DB: DBConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "password"),
			DBName:          getEnv("DB_NAME", "portal"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			LogLevel:        getEnvAsLogLevel("DB_LOG_LEVEL", logger.Warn),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("APP_ENV", "development"),
		},
		JWT: JWTConfig{
			SigningKey:  getEnv("JWT_SECRET", "portalsessionsecret"),
			Issuer:      getEnv("JWT_ISSUER", "bjugstad-utleie-portal"),
			SessionTTL:  getEnvAsDuration("SESSION_TTL", 1*time.Hour),
			MaxLifetime: getEnvAsDuration("SESSION_MAX_LIFETIME", 12*time.Hour),
		},
		IDP: IDPConfig{
			Provider:     getEnv("IDP_PROVIDER", "vipps"),
			ClientID:     getEnv("IDP_CLIENT_ID", ""),
			ClientSecret: getEnv("IDP_CLIENT_SECRET", ""),
			AuthURL:      getEnv("IDP_AUTH_URL", ""),
			TokenURL:     getEnv("IDP_TOKEN_URL", ""),
			UserinfoURL:  getEnv("IDP_USERINFO_URL", ""),
			RedirectURL:  getEnv("IDP_REDIRECT_URL", ""),
			Scopes:       getEnvAsSlice("IDP_SCOPES", []string{"openid", "phoneNumber", "email", "address", "name"}),
			StateTTL:     getEnvAsDuration("IDP_STATE_TTL", 10*time.Minute),
		},
		RentalAPI: RentalAPIConfig{
			BaseURL:         getEnv("RENTAL_API_BASE_URL", ""),
			Token:           getEnv("RENTAL_API_TOKEN", ""),
			SubscriptionKey: getEnv("RENTAL_API_SUBSCRIPTION_KEY", ""),
		},
		Portal: PortalConfig{
			BaseURL:      getEnv("PORTAL_BASE_URL", "http://localhost:3000"),
			TermsVersion: getEnv("TERMS_VERSION", "1.0"),
		},
		Auth: AuthConfig{
			DevBypassEnabled:       getEnvAsBool("DEV_BYPASS_ENABLED", false),
			DevBypassSecretHash:    getEnv("DEV_BYPASS_SECRET_HASH", ""),
			MockCompanyIDsForAdmin: getEnvAsUintSlice("MOCK_COMPANY_IDS_FOR_ADMIN", nil),
			RateLimitRPS:           getEnvAsFloat("AUTH_RATE_LIMIT_RPS", 5),
			RateLimitBurst:         getEnvAsInt("AUTH_RATE_LIMIT_BURST", 10),
		},
		Jobs: JobsConfig{
			CustomerSyncSchedule:    getEnv("CUSTOMER_SYNC_SCHEDULE", "0 0 2 * * *"),
			LoginEventRetentionDays: getEnvAsInt("LOGIN_EVENT_RETENTION_DAYS", 365),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	return config, nil
}

// LogConfig returns the configuration as a zap logger-friendly format
func (c *Config) LogConfig() []zap.Field {
	return []zap.Field{
		zap.String("environment", c.Server.Env),
		zap.String("db_host", c.DB.Host),
		zap.String("db_port", c.DB.Port),
		zap.String("db_name", c.DB.DBName),
		zap.String("redis_addr", c.Redis.Addr),
		zap.String("server_port", c.Server.Port),
		zap.String("idp_provider", c.IDP.Provider),
		zap.Bool("dev_bypass_enabled", c.Auth.DevBypassEnabled),
	}
}

// Helper function to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as integers
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as floats
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as booleans
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as durations
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as comma-separated strings
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Helper function to get environment variables as comma-separated uint ids
func getEnvAsUintSlice(key string, defaultValue []uint) []uint {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	result := make([]uint, 0, len(parts))
	for _, p := range parts {
		if value, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32); err == nil {
			result = append(result, uint(value))
		}
	}
	return result
}

// Helper function to get environment variables as log levels
func getEnvAsLogLevel(key string, defaultValue logger.LogLevel) logger.LogLevel {
	valueStr := getEnv(key, "")
	switch valueStr {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return defaultValue
	}
}
