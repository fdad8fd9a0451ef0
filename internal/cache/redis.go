// Package cache holds the shared Redis client and the cache-aside helpers built on it.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ynetwork/internal/middleware"
	"ynetwork/internal/observability"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// instrumentation records latency and non-miss errors for every command.
type instrumentation struct{}

func (instrumentation) DialHook(next redis.DialHook) redis.DialHook { return next }

func (instrumentation) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		observe(cmd.Name(), start, err)
		return err
	}
}

func (instrumentation) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		observe("pipeline", start, err)
		return err
	}
}

func observe(command string, start time.Time, err error) {
	observability.RedisCommandLatency.WithLabelValues(command).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, redis.Nil) {
		observability.RedisErrorRate.WithLabelValues(command).Inc()
	}
}

// NewClient builds an instrumented client. addr is either host:port or a redis:// URL.
func NewClient(addr string) (*redis.Client, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 3 * time.Second
	}

	c := redis.NewClient(opts)
	c.AddHook(instrumentation{})
	return c, nil
}

// InitRedis connects the package client. When Redis is unreachable the client stays nil
// and callers run without caching, rate limiting or cross-instance fan-out.
func InitRedis(addr string) {
	client = nil
	c, err := NewClient(addr)
	if err != nil {
		middleware.Logger.Warn("redis disabled: invalid REDIS_URL", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		middleware.Logger.Warn("redis disabled: ping failed", slog.String("addr", c.Options().Addr), slog.String("error", err.Error()))
		_ = c.Close()
		return
	}

	middleware.Logger.Info("redis connected", slog.String("addr", c.Options().Addr))
	client = c
}

// SetClient replaces the package client.
func SetClient(c *redis.Client) { client = c }

// GetClient returns the package client, nil when Redis is disabled.
func GetClient() *redis.Client { return client }
