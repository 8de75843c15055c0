package database

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter calls sit on the login path, which stays available when Redis is
// slow, so the client gives up well before an HTTP request would.
const (
	defaultRedisTimeout  = 250 * time.Millisecond
	defaultRedisPoolSize = 20
)

// RedisConfig holds Redis connection settings for the login attempt limiter.
// Zero Timeout and PoolSize fall back to limiter-sized defaults.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

// Addr returns the Redis address string.
func (c RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c RedisConfig) options() *redis.Options {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultRedisTimeout
	}
	poolSize := c.PoolSize
	if poolSize <= 0 {
		poolSize = defaultRedisPoolSize
	}
	return &redis.Options{
		Addr:         c.Addr(),
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     poolSize,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		PoolTimeout:  timeout,
		MaxRetries:   1,
	}
}

// NewRedisClient connects to Redis and pings it once. On failure the client
// is closed and the caller runs without a limiter.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(cfg.options())

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr(), err)
	}

	return client, nil
}
