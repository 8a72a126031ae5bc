package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/lalith-99/herdstream/internal/observ"
)

// ErrBrokerClosed is returned by operations on a closed broker.
var ErrBrokerClosed = errors.New("broker closed")

// BrokerMessage is one payload received on a subscribed channel.
type BrokerMessage struct {
	Channel string
	Payload []byte
}

// Broker moves payloads between instances. Publish reaches every instance
// subscribed to the channel, including the publisher's own.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) error
	Unsubscribe(ctx context.Context, channel string) error

	// Messages is closed when the broker is closed.
	Messages() <-chan BrokerMessage
	Close() error
}

// MemoryBroker is an in-process Broker for single-instance deployments and
// tests.
type MemoryBroker struct {
	mu         sync.RWMutex
	subscribed map[string]struct{}
	out        chan BrokerMessage
	closed     bool

	// done unblocks pending publishers on Close; inflight lets Close wait
	// for them before closing out.
	done     chan struct{}
	inflight sync.WaitGroup
}

func NewMemoryBroker(buffer int) *MemoryBroker {
	return &MemoryBroker{
		subscribed: make(map[string]struct{}),
		out:        make(chan BrokerMessage, buffer),
		done:       make(chan struct{}),
	}
}

// Publish drops payloads for channels nobody subscribed to. It blocks while
// the output buffer is full until ctx is done or the broker closes. The lock
// is not held while blocked, so Subscribe and Unsubscribe from the consumer
// never wait on a stalled publisher.
func (b *MemoryBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBrokerClosed
	}
	if _, ok := b.subscribed[channel]; !ok {
		b.mu.RUnlock()
		observ.BrokerPublishes.WithLabelValues("memory", "no_subscribers").Inc()
		return nil
	}
	b.inflight.Add(1)
	b.mu.RUnlock()
	defer b.inflight.Done()

	select {
	case b.out <- BrokerMessage{Channel: channel, Payload: payload}:
		observ.BrokerPublishes.WithLabelValues("memory", "ok").Inc()
		return nil
	case <-b.done:
		return ErrBrokerClosed
	case <-ctx.Done():
		observ.BrokerPublishes.WithLabelValues("memory", "error").Inc()
		return ctx.Err()
	}
}

func (b *MemoryBroker) Subscribe(_ context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBrokerClosed
	}
	b.subscribed[channel] = struct{}{}
	return nil
}

func (b *MemoryBroker) Unsubscribe(_ context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribed, channel)
	return nil
}

func (b *MemoryBroker) Messages() <-chan BrokerMessage {
	return b.out
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.inflight.Wait()
	close(b.out)
	return nil
}
