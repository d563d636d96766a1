package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nmapcluster/queue"
)

var keys = []string{
	"REDIS_ADDR", "REDIS_USERNAME", "REDIS_PASSWORD", "REDIS_TLS", "QUEUE_PREFIX",
	"QUEUE_BACKEND", "WORKER_ADDR", "WORKER_CONCURRENCY", "NMAP_BINARY", "XML_DIR",
	"DB_PATH", "API_ADDR", "API_KEY", "RATE_LIMIT", "LOG_LEVEL",
}

// clearEnv empties every key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	c, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", c.RedisAddr)
	assert.Equal(t, queue.DefaultPrefix, c.QueuePrefix)
	assert.Equal(t, BackendRedis, c.QueueBackend)
	assert.Equal(t, 1, c.WorkerConcurrency)
	assert.Equal(t, ":8080", c.APIAddr)
	assert.Equal(t, "info", c.LogLevel)
	assert.Zero(t, c.RateLimit)
	assert.Nil(t, c.RedisOptions().TLS)
}

func TestOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_ADDR", "redis.lab:6380")
	t.Setenv("REDIS_USERNAME", "scanner")
	t.Setenv("REDIS_PASSWORD", "s3cret")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("QUEUE_BACKEND", "Memory")
	t.Setenv("WORKER_CONCURRENCY", "4")
	t.Setenv("RATE_LIMIT", "120")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, c.QueueBackend)
	assert.Equal(t, 4, c.WorkerConcurrency)
	assert.Equal(t, 120, c.RateLimit)

	opts := c.RedisOptions()
	assert.Equal(t, "redis.lab:6380", opts.Addr)
	assert.Equal(t, "scanner", opts.Username)
	assert.Equal(t, "s3cret", opts.Password)
	require.NotNil(t, opts.TLS)
}

func TestInvalidValues(t *testing.T) {
	var testCases = []struct {
		key, value string
	}{
		{"WORKER_CONCURRENCY", "many"},
		{"WORKER_CONCURRENCY", "0"},
		{"REDIS_TLS", "maybe"},
		{"QUEUE_BACKEND", "kafka"},
		{"RATE_LIMIT", "-1"},
	}
	for _, tc := range testCases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)
			_, err := FromEnv()
			assert.ErrorContains(t, err, tc.key)
		})
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides a variable that is set, even to ""
	os.Unsetenv("DB_PATH")
	os.Unsetenv("API_KEY")
	path := filepath.Join(t.TempDir(), "cluster.env")
	require.NoError(t, os.WriteFile(path, []byte("DB_PATH=/var/lib/inventory.db\nAPI_KEY=abc\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/inventory.db", c.DBPath)
	assert.Equal(t, "abc", c.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}
