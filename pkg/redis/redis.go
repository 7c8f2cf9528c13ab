package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection settings, populated from the environment.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL,required" envDefault:"redis://localhost:6379/0"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}

var (
	ErrFailedToParseURL  = errors.New("redis: failed to parse connection url")
	ErrFailedToConnect   = errors.New("redis: failed to connect")
	ErrHealthcheckFailed = errors.New("redis: healthcheck failed")
)

// Connect opens a Redis client and verifies it with a ping, retrying with
// linear backoff.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseURL, err)
	}

	client := redis.NewClient(opts)

	for i := range cfg.RetryAttempts {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		err = client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			return client, nil
		}
		time.Sleep(time.Duration(i+1) * cfg.RetryInterval)
	}

	_ = client.Close()
	return nil, errors.Join(ErrFailedToConnect, err)
}

// Healthcheck returns a probe compatible with func(context.Context) error
// health endpoints.
func Healthcheck(client *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
