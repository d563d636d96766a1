// Package config reads process settings from .env files and the environment.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"nmapcluster/queue"
)

// Queue backends.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds the settings shared by the coordinator and worker commands.
type Config struct {
	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisTLS      bool
	QueuePrefix   string
	QueueBackend  string

	WorkerAddr        string
	WorkerConcurrency int
	NmapBinary        string
	XMLDir            string

	DBPath    string
	APIAddr   string
	APIKey    string
	RateLimit int

	LogLevel string
}

// Load reads the given .env files, or ./.env when it exists, and then builds
// the configuration from the environment. Variables already set in the
// environment win over file values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading .env: %w", err)
		}
	} else if err := godotenv.Load(files...); err != nil {
		return Config{}, fmt.Errorf("loading %s: %w", strings.Join(files, ", "), err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (Config, error) {
	c := Config{
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisUsername: os.Getenv("REDIS_USERNAME"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		QueuePrefix:   getenv("QUEUE_PREFIX", queue.DefaultPrefix),
		QueueBackend:  strings.ToLower(getenv("QUEUE_BACKEND", BackendRedis)),
		WorkerAddr:    os.Getenv("WORKER_ADDR"),
		NmapBinary:    os.Getenv("NMAP_BINARY"),
		XMLDir:        os.Getenv("XML_DIR"),
		DBPath:        getenv("DB_PATH", "nmapcluster.db"),
		APIAddr:       getenv("API_ADDR", ":8080"),
		APIKey:        os.Getenv("API_KEY"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
	}

	var err error
	if c.RedisTLS, err = getbool("REDIS_TLS", false); err != nil {
		return Config{}, err
	}
	if c.WorkerConcurrency, err = getint("WORKER_CONCURRENCY", 1); err != nil {
		return Config{}, err
	}
	if c.RateLimit, err = getint("RATE_LIMIT", 0); err != nil {
		return Config{}, err
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks values that cannot be defaulted.
func (c Config) Validate() error {
	switch c.QueueBackend {
	case BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("QUEUE_BACKEND must be %q or %q, got %q", BackendRedis, BackendMemory, c.QueueBackend)
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1, got %d", c.WorkerConcurrency)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("RATE_LIMIT must not be negative, got %d", c.RateLimit)
	}
	return nil
}

// RedisOptions returns the connection settings for the queue set.
func (c Config) RedisOptions() queue.RedisOptions {
	opts := queue.RedisOptions{
		Addr:     c.RedisAddr,
		Username: c.RedisUsername,
		Password: c.RedisPassword,
		Prefix:   c.QueuePrefix,
	}
	if c.RedisTLS {
		opts.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getint(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", key, value)
	}
	return n, nil
}

func getbool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %q is not a boolean", key, value)
	}
	return b, nil
}
