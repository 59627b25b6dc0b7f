package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"memorypal/keeper/internal/logger"
)

// RedisOptions configures the Redis pub/sub bus.
type RedisOptions struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
}

// Redis is a bus over Redis PUBLISH/SUBSCRIBE, letting the producer and the
// consumer run as separate processes.
type Redis struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
}

func NewRedis(ctx context.Context, opts RedisOptions, log *logger.Logger) (*Redis, error) {
	if log == nil {
		log = logger.NewNop()
	}
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, errors.New("missing redis address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Redis{
		log:    log.With("component", "redis-bus"),
		rdb:    rdb,
		prefix: opts.ChannelPrefix,
	}, nil
}

func (b *Redis) channel(topic string) string {
	return b.prefix + topic
}

// Publish maps the PUBLISH receiver count onto Delivered or NoReceiver.
func (b *Redis) Publish(ctx context.Context, topic string, payload []byte) Delivery {
	if b == nil || b.rdb == nil {
		return Delivery{Result: Failed, Err: errors.New("redis bus not initialized")}
	}
	n, err := b.rdb.Publish(ctx, b.channel(topic), payload).Result()
	if err != nil {
		return Delivery{Result: Failed, Err: fmt.Errorf("redis publish: %w", err)}
	}
	if n == 0 {
		return Delivery{Result: NoReceiver}
	}
	return Delivery{Result: Delivered, Receivers: int(n)}
}

func (b *Redis) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	if b == nil || b.rdb == nil {
		return nil, errors.New("redis bus not initialized")
	}
	sub := b.rdb.Subscribe(ctx, b.channel(topic))

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan []byte, subscriberBuffer)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				select {
				case out <- []byte(m.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *Redis) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
