package queue

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"nmapcluster/task"
)

// DefaultPrefix namespaces the queue keys in Redis.
const DefaultPrefix = "nmapcluster"

// RedisOptions configures the connection to the queue service. Credentials
// and TLS form the trust boundary between workers and the coordinator.
type RedisOptions struct {
	Addr     string
	Username string
	Password string
	DB       int
	// TLS enables TLS with the given configuration when non-nil.
	TLS    *tls.Config
	Prefix string
}

// NewRedisClient builds a go-redis client from opts.
func NewRedisClient(opts RedisOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLS,
	})
}

// RedisSet implements Set with one Redis list per queue. LPUSH appends and
// RPOP removes the head; RPOP is atomic, so an item reaches one consumer.
type RedisSet struct {
	client *redis.Client
	prefix string
}

// NewRedisSet wraps an existing client.
func NewRedisSet(client *redis.Client, prefix string) *RedisSet {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisSet{client: client, prefix: prefix}
}

// DialRedis connects to Redis and verifies the connection with PING.
func DialRedis(ctx context.Context, opts RedisOptions) (*RedisSet, error) {
	client := NewRedisClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return NewRedisSet(client, opts.Prefix), nil
}

// Client exposes the underlying client for components sharing the
// connection.
func (s *RedisSet) Client() *redis.Client {
	return s.client
}

// Close releases the connection pool.
func (s *RedisSet) Close() error {
	return s.client.Close()
}

func (s *RedisSet) key(name task.Queue) string {
	return fmt.Sprintf("%s:queue:%s", s.prefix, name)
}

// Enqueue pushes payload on the tail of the list.
func (s *RedisSet) Enqueue(ctx context.Context, name task.Queue, payload []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	return s.client.LPush(ctx, s.key(name), payload).Err()
}

// TryDequeue pops the head of the list without blocking.
func (s *RedisSet) TryDequeue(ctx context.Context, name task.Queue) ([]byte, bool, error) {
	if err := checkName(name); err != nil {
		return nil, false, err
	}
	res, err := s.client.RPop(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return res, true, nil
}

// Len returns LLEN of the list.
func (s *RedisSet) Len(ctx context.Context, name task.Queue) (int64, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}
	return s.client.LLen(ctx, s.key(name)).Result()
}
