package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lalith-99/herdstream/internal/observ"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// keyPrefix namespaces pub/sub channels so several deployments can share a
// Redis instance.
const keyPrefix = "herdstream:"

// NewRedisClient parses a redis:// URL and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// RedisBroker relays payloads over Redis pub/sub. One PubSub connection
// carries every channel this instance subscribes to. Publishes go through a
// circuit breaker so a Redis outage fails fast instead of stalling writers.
type RedisBroker struct {
	rdb    *goredis.Client
	pubsub *goredis.PubSub
	cb     *gobreaker.CircuitBreaker
	out    chan BrokerMessage
	logger *zap.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func NewRedisBroker(ctx context.Context, rdb *goredis.Client, logger *zap.Logger) *RedisBroker {
	b := &RedisBroker{
		rdb:    rdb,
		pubsub: rdb.Subscribe(ctx),
		out:    make(chan BrokerMessage, 256),
		logger: logger,
		done:   make(chan struct{}),
	}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-publish",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("component", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			observ.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	go b.forward()
	return b
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// forward copies Redis messages onto out until the PubSub is closed.
func (b *RedisBroker) forward() {
	defer close(b.out)
	for msg := range b.pubsub.Channel() {
		channel := strings.TrimPrefix(msg.Channel, keyPrefix)
		select {
		case b.out <- BrokerMessage{Channel: channel, Payload: []byte(msg.Payload)}:
		case <-b.done:
			return
		}
	}
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.rdb.Publish(ctx, keyPrefix+channel, payload).Err()
	})
	if err != nil {
		status := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			status = "circuit_open"
		}
		observ.BrokerPublishes.WithLabelValues("redis", status).Inc()
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	observ.BrokerPublishes.WithLabelValues("redis", "ok").Inc()
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, channel string) error {
	if err := b.pubsub.Subscribe(ctx, keyPrefix+channel); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	return nil
}

func (b *RedisBroker) Unsubscribe(ctx context.Context, channel string) error {
	if err := b.pubsub.Unsubscribe(ctx, keyPrefix+channel); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", channel, err)
	}
	return nil
}

func (b *RedisBroker) Messages() <-chan BrokerMessage {
	return b.out
}

// Close releases the PubSub connection. The Redis client stays open.
func (b *RedisBroker) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.done)
		err = b.pubsub.Close()
	})
	return err
}
