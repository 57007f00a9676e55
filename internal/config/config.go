package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	MongoURI       string
	JWTSecret      string
	JWTExpiry      string
	AllowedOrigins []string
	Redis          RedisConfig
	SpecProvider   SpecProviderConfig
}

type RedisConfig struct {
	URL          string
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	RetryDelay   time.Duration
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
}

// SpecProviderConfig points at the external fleet-tracking system that
// exposes tank attributes and live fuel levels per vehicle.
type SpecProviderConfig struct {
	BaseURL string
	Timeout time.Duration
}

func Load() *Config {
	// load .env variable
	err := godotenv.Load()
	if err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		log.Fatal("MONGO_URI environment variable is not set")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173"
	}

	providerTimeout := 3 * time.Second
	if v := os.Getenv("SPEC_PROVIDER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			providerTimeout = d
		}
	}

	return &Config{
		Port:           port,
		MongoURI:       mongoURI,
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTExpiry:      os.Getenv("JWT_EXPIRY"),
		AllowedOrigins: strings.Split(allowedOrigins, ","),
		Redis:          loadRedisConfig(),
		SpecProvider: SpecProviderConfig{
			BaseURL: os.Getenv("SPEC_PROVIDER_URL"),
			Timeout: providerTimeout,
		},
	}
}

func loadRedisConfig() RedisConfig {
	cfg := RedisConfig{
		URL:          os.Getenv("REDIS_URL"),
		Host:         os.Getenv("REDIS_HOST"),
		Port:         os.Getenv("REDIS_PORT"),
		Password:     os.Getenv("REDIS_PASSWORD"),
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		RetryDelay:   500 * time.Millisecond,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	}

	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == "" {
		cfg.Port = "6379"
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			cfg.DB = n
		}
	}
	if ps := os.Getenv("REDIS_POOL_SIZE"); ps != "" {
		if n, err := strconv.Atoi(ps); err == nil && n > 0 {
			cfg.PoolSize = n
		}
	}

	return cfg
}
