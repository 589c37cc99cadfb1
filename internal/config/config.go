package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMemory = "memory"
	StorageMongo  = "mongo"

	BackendStore = "store"
	BackendRedis = "redis"
)

type Config struct {
	ServiceName string
	Env         string
	HTTPAddr    string
	LogFile     string

	Storage  string
	MongoURI string
	MongoDB  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StockLedger   string
	OrderSequence string

	ShutdownTimeout time.Duration
}

// Load reads an optional .env file, then the environment. A missing .env is fine;
// a malformed one is not.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load env file: %w", err)
	}

	cfg := &Config{
		ServiceName:     getEnv("SERVICE_NAME", "minishop-orders"),
		Env:             getEnv("ENV", "dev"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		LogFile:         getEnv("LOG_FILE", ""),
		Storage:         strings.ToLower(getEnv("STORAGE", StorageMemory)),
		MongoURI:        getEnv("MONGO_URI", ""),
		MongoDB:         getEnv("MONGO_DB", "minishop"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvAsInt("REDIS_DB", 0),
		StockLedger:     strings.ToLower(getEnv("STOCK_LEDGER", BackendStore)),
		OrderSequence:   strings.ToLower(getEnv("ORDER_SEQUENCE", BackendStore)),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects setting combinations the process cannot start with.
func (c *Config) Validate() error {
	var problems []string

	switch c.Storage {
	case StorageMemory:
	case StorageMongo:
		if c.MongoURI == "" {
			problems = append(problems, "STORAGE=mongo requires MONGO_URI")
		}
	default:
		problems = append(problems, fmt.Sprintf("STORAGE must be memory or mongo, got %q", c.Storage))
	}

	for name, v := range map[string]string{"STOCK_LEDGER": c.StockLedger, "ORDER_SEQUENCE": c.OrderSequence} {
		switch v {
		case BackendStore:
		case BackendRedis:
			if c.RedisAddr == "" {
				problems = append(problems, name+"=redis requires REDIS_ADDR")
			}
		default:
			problems = append(problems, fmt.Sprintf("%s must be store or redis, got %q", name, v))
		}
	}

	if c.ShutdownTimeout <= 0 {
		problems = append(problems, "SHUTDOWN_TIMEOUT must be positive")
	}

	if len(problems) > 0 {
		slices.Sort(problems)
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// UsesRedis reports whether any component needs a Redis client.
func (c *Config) UsesRedis() bool {
	return c.StockLedger == BackendRedis || c.OrderSequence == BackendRedis
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
