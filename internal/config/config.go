package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	WhatsApp WhatsAppConfig
	Reply    ReplyConfig
	Security SecurityConfig
	Activity ActivityConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// WhatsAppConfig holds WhatsApp configuration
type WhatsAppConfig struct {
	DBPath           string
	LogLevel         string
	DefaultAccountID string
	QuoteCacheLimit  int
}

// ReplyConfig holds reply webhook and delivery configuration
type ReplyConfig struct {
	WebhookURL     string
	WebhookTimeout time.Duration
	RetryCount     int
	MaxMediaBytes  int64
	TextLimit      int
	AllowedJIDs    []string
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	APIKey string
}

// ActivityConfig holds channel activity tracking configuration
type ActivityConfig struct {
	DBPath    string
	Retention time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
		},
		WhatsApp: WhatsAppConfig{
			DBPath:           getEnv("WA_DB_PATH", "./db/whatsmeow.db"),
			LogLevel:         getEnv("WA_LOG_LEVEL", "INFO"),
			DefaultAccountID: getEnv("DEFAULT_ACCOUNT_ID", "default"),
			QuoteCacheLimit:  parseInt(getEnv("QUOTE_CACHE_LIMIT", "1000"), 1000),
		},
		Reply: ReplyConfig{
			WebhookURL:     getEnv("REPLY_WEBHOOK_URL", ""),
			WebhookTimeout: parseDuration(getEnv("REPLY_WEBHOOK_TIMEOUT", "10s"), 10*time.Second),
			RetryCount:     parseInt(getEnv("REPLY_WEBHOOK_RETRY_COUNT", "3"), 3),
			MaxMediaBytes:  int64(parseInt(getEnv("MAX_MEDIA_BYTES", "15728640"), 15728640)),
			TextLimit:      parseInt(getEnv("TEXT_LIMIT", "4096"), 4096),
			AllowedJIDs:    parseStringList(getEnv("REPLY_WHITELIST_JIDS", "")),
		},
		Security: SecurityConfig{
			APIKey: getEnv("API_KEY", ""),
		},
		Activity: ActivityConfig{
			DBPath:    getEnv("ACTIVITY_DB_PATH", "./db/activity.db"),
			Retention: parseDuration(getEnv("ACTIVITY_RETENTION", "720h"), 720*time.Hour),
		},
	}

	return config, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// parseInt parses string to int with default value
func parseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// parseDuration parses string to time.Duration with default value
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

// parseStringList parses comma-separated string to slice
func parseStringList(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
