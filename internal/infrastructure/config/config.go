package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"
	DBDriverOracle   = "oracle"
	DBDriverMemory   = "memory"
)

const defaultSQLiteDSN = "file:portfolio.db"

type Config struct {
	DBDriver string
	DBDSN    string

	ServerPort  string
	ServerHost  string
	LogLevel    string
	CORSOrigins []string

	// MarketDataURL enables price sync when non-empty.
	MarketDataURL        string
	PriceRefreshInterval time.Duration
}

func Load() (*Config, error) {
	driver := strings.ToLower(getEnvOrDefault("DB_DRIVER", DBDriverSQLite))

	dsn := os.Getenv("DB_DSN")
	switch driver {
	case DBDriverSQLite:
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
	case DBDriverPostgres, DBDriverOracle:
		if dsn == "" {
			return nil, fmt.Errorf("DB_DSN environment variable is required for %s driver", driver)
		}
	case DBDriverMemory:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER: %s (supported: sqlite, postgres, oracle, memory)", driver)
	}

	refreshInterval, err := time.ParseDuration(getEnvOrDefault("PRICE_REFRESH_INTERVAL", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid PRICE_REFRESH_INTERVAL: %w", err)
	}
	if refreshInterval <= 0 {
		return nil, fmt.Errorf("invalid PRICE_REFRESH_INTERVAL: must be positive, got %s", refreshInterval)
	}

	return &Config{
		DBDriver:             driver,
		DBDSN:                dsn,
		ServerPort:           getEnvOrDefault("SERVER_PORT", "8080"),
		ServerHost:           getEnvOrDefault("SERVER_HOST", "localhost"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		CORSOrigins:          splitList(getEnvOrDefault("CORS_ORIGINS", "http://localhost:4200")),
		MarketDataURL:        strings.TrimRight(os.Getenv("MARKET_DATA_URL"), "/"),
		PriceRefreshInterval: refreshInterval,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
