package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gasly-backend/logger"

	"github.com/joho/godotenv"
)

func LoadEnv() error {
	// A missing .env file is fine: in production the variables are set directly.
	if err := godotenv.Load(); err != nil {
		return nil
	}
	return nil
}

// ValidateEnv checks that critical environment variables are set.
// Returns an error if any critical variable is missing.
func ValidateEnv() error {
	var missing []string

	if os.Getenv("JWT_SECRET") == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if os.Getenv("DATABASE_URL") == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return fmt.Errorf("critical environment variables not set: %v", missing)
	}

	warnings := map[string]string{
		"REDIS_URL":    "rewards policy will be read from the database on every request",
		"FRONTEND_URL": "CORS may not work correctly",
		"ADMIN_URL":    "admin panel origin not allowed by CORS",
		"SMTP_HOST":    "email notifications will not work",
		"SMTP_PORT":    "email notifications will not work",
		"SMTP_FROM":    "email notifications will not work",
	}
	for key, consequence := range warnings {
		if os.Getenv(key) == "" {
			logger.L.Sugar().Warnf("%s not set - %s", key, consequence)
		}
	}

	return nil
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvInt returns the integer value of key, or defaultValue when unset or malformed.
func GetEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		logger.L.Sugar().Warnf("%s=%q is not an integer, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

// GetEnvDuration parses key with time.ParseDuration, falling back to defaultValue.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		logger.L.Sugar().Warnf("%s=%q is not a duration, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
