package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEndpoint       = "https://downloads.majestic.com/majestic_million.csv"
	defaultDBPath         = "./majestic.db"
	defaultRetentionDays  = 30
	defaultRateLimit      = 0.0 // requests per second, 0 disables limiting
	defaultConnectTimeout = 10 * time.Second
	defaultReadTimeout    = 60 * time.Second
	defaultListenAddr     = ":8080"
)

// Config holds application configuration.
type Config struct {
	Endpoint       string
	VerifySSL      bool
	TmpRoot        string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	RateLimit      float64
	DBPath         string
	RetentionDays  int
	LogLevel       slog.Level
	ListenAddr     string
}

// Load loads configuration from environment variables, reading a .env file
// in the working directory first when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	verifySSL := true
	if str := os.Getenv("MM_VERIFY_SSL"); str != "" {
		val, err := strconv.ParseBool(str)
		if err != nil {
			return nil, fmt.Errorf("invalid MM_VERIFY_SSL %q: %w", str, err)
		}
		verifySSL = val
	}

	var level slog.Level
	if str := os.Getenv("MM_LOG_LEVEL"); str != "" {
		if err := level.UnmarshalText([]byte(str)); err != nil {
			return nil, fmt.Errorf("invalid MM_LOG_LEVEL %q: %w", str, err)
		}
	}

	return &Config{
		Endpoint:       getEnv("MM_ENDPOINT", defaultEndpoint),
		VerifySSL:      verifySSL,
		TmpRoot:        getEnv("MM_TMP_FILE_ROOT", os.TempDir()),
		ConnectTimeout: getEnvDuration("MM_CONNECT_TIMEOUT", defaultConnectTimeout),
		ReadTimeout:    getEnvDuration("MM_READ_TIMEOUT", defaultReadTimeout),
		RateLimit:      getEnvFloat("MM_RATE_LIMIT", defaultRateLimit),
		DBPath:         getEnv("MM_DB_PATH", defaultDBPath),
		RetentionDays:  getEnvInt("MM_HISTORY_RETENTION_DAYS", defaultRetentionDays),
		LogLevel:       level,
		ListenAddr:     getEnv("MM_LISTEN_ADDR", defaultListenAddr),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if str := os.Getenv(key); str != "" {
		if val, err := strconv.Atoi(str); err == nil && val > 0 {
			return val
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if str := os.Getenv(key); str != "" {
		if val, err := strconv.ParseFloat(str, 64); err == nil && val > 0 {
			return val
		}
	}
	return defaultValue
}

// getEnvDuration reads a whole number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if str := os.Getenv(key); str != "" {
		if seconds, err := strconv.Atoi(str); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
