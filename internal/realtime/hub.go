package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lalith-99/herdstream/internal/observ"
	"go.uber.org/zap"
)

const brokerOpTimeout = 5 * time.Second

// ErrHubStopped is returned by hub operations after Run has returned.
var ErrHubStopped = errors.New("hub stopped")

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdJoin struct {
	channel string
	client  *Client
	errCh   chan error
}

func (cmdJoin) hubCmd() {}

type cmdLeave struct {
	channel string
	client  *Client
	doneCh  chan struct{}
}

func (cmdLeave) hubCmd() {}

type cmdLeaveAll struct {
	client *Client
	doneCh chan struct{}
}

func (cmdLeaveAll) hubCmd() {}

type cmdMembers struct {
	channel string
	replyCh chan int
}

func (cmdMembers) hubCmd() {}

// --- Hub ---

// Hub owns channel membership for this instance. A single goroutine (Run)
// holds the maps; every other goroutine talks to it through cmdCh, so no
// locks guard membership.
//
// The hub subscribes the broker to a channel when its first local member
// joins and unsubscribes when the last one leaves. Payloads arriving from
// the broker are copied onto member send buffers without blocking; a full
// buffer drops the payload for that client only.
type Hub struct {
	broker Broker
	logger *zap.Logger

	cmdCh   chan hubCmd
	stopped chan struct{}

	// Owned by Run.
	channels map[string]map[*Client]struct{}
	joined   map[*Client]map[string]struct{}
}

func NewHub(broker Broker, logger *zap.Logger) *Hub {
	return &Hub{
		broker:   broker,
		logger:   logger,
		cmdCh:    make(chan hubCmd, 256),
		stopped:  make(chan struct{}),
		channels: make(map[string]map[*Client]struct{}),
		joined:   make(map[*Client]map[string]struct{}),
	}
}

// Run processes commands and broker deliveries until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	msgs := h.broker.Messages()
	for {
		select {
		case cmd := <-h.cmdCh:
			h.handle(cmd)
		case msg, ok := <-msgs:
			if !ok {
				h.logger.Warn("broker message stream closed")
				msgs = nil
				continue
			}
			h.deliver(msg)
		case <-ctx.Done():
			h.shutdown()
			return
		}
	}
}

func (h *Hub) handle(cmd hubCmd) {
	switch c := cmd.(type) {
	case cmdJoin:
		c.errCh <- h.handleJoin(c.channel, c.client)
	case cmdLeave:
		h.handleLeave(c.channel, c.client)
		close(c.doneCh)
	case cmdLeaveAll:
		for channel := range h.joined[c.client] {
			h.handleLeave(channel, c.client)
		}
		close(c.doneCh)
	case cmdMembers:
		c.replyCh <- len(h.channels[c.channel])
	}
}

func (h *Hub) handleJoin(channel string, client *Client) error {
	members, exists := h.channels[channel]
	if !exists {
		ctx, cancel := context.WithTimeout(context.Background(), brokerOpTimeout)
		err := h.broker.Subscribe(ctx, channel)
		cancel()
		if err != nil {
			return fmt.Errorf("subscribe channel: %w", err)
		}
		members = make(map[*Client]struct{})
		h.channels[channel] = members
		observ.HubChannels.Inc()
	}
	if _, already := members[client]; already {
		return nil
	}

	members[client] = struct{}{}
	if h.joined[client] == nil {
		h.joined[client] = make(map[string]struct{})
	}
	h.joined[client][channel] = struct{}{}

	h.logger.Debug("client joined channel",
		zap.String("channel", channel),
		zap.Int64("user_id", client.UserID()),
		zap.Int("members", len(members)),
	)
	return nil
}

func (h *Hub) handleLeave(channel string, client *Client) {
	members, exists := h.channels[channel]
	if !exists {
		return
	}
	if _, member := members[client]; !member {
		return
	}

	delete(members, client)
	if set := h.joined[client]; set != nil {
		delete(set, channel)
		if len(set) == 0 {
			delete(h.joined, client)
		}
	}

	if len(members) > 0 {
		return
	}
	delete(h.channels, channel)
	observ.HubChannels.Dec()

	ctx, cancel := context.WithTimeout(context.Background(), brokerOpTimeout)
	defer cancel()
	if err := h.broker.Unsubscribe(ctx, channel); err != nil {
		h.logger.Warn("failed to unsubscribe channel", zap.String("channel", channel), zap.Error(err))
	}
}

func (h *Hub) deliver(msg BrokerMessage) {
	for client := range h.channels[msg.Channel] {
		if client.trySend(msg.Payload) {
			observ.HubPushesDelivered.Inc()
			continue
		}
		observ.HubPushesDropped.Inc()
		h.logger.Warn("dropping message for slow client",
			zap.String("channel", msg.Channel),
			zap.Int64("user_id", client.UserID()),
		)
	}
}

func (h *Hub) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), brokerOpTimeout)
	defer cancel()
	for channel := range h.channels {
		if err := h.broker.Unsubscribe(ctx, channel); err != nil {
			h.logger.Warn("failed to unsubscribe channel", zap.String("channel", channel), zap.Error(err))
		}
		observ.HubChannels.Dec()
	}
	h.channels = make(map[string]map[*Client]struct{})
	h.joined = make(map[*Client]map[string]struct{})
}

// send hands cmd to Run, giving up if the hub stopped or ctx is done.
func (h *Hub) send(ctx context.Context, cmd hubCmd) error {
	select {
	case h.cmdCh <- cmd:
		return nil
	case <-h.stopped:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join adds client to channel, creating the channel on first use. Joining
// a channel twice is a no-op.
func (h *Hub) Join(ctx context.Context, channel string, client *Client) error {
	errCh := make(chan error, 1)
	if err := h.send(ctx, cmdJoin{channel: channel, client: client, errCh: errCh}); err != nil {
		return err
	}
	select {
	case err := <-errCh:
		return err
	case <-h.stopped:
		return ErrHubStopped
	}
}

// Leave removes client from channel. Leaving a channel the client is not
// in is a no-op.
func (h *Hub) Leave(ctx context.Context, channel string, client *Client) error {
	doneCh := make(chan struct{})
	if err := h.send(ctx, cmdLeave{channel: channel, client: client, doneCh: doneCh}); err != nil {
		return err
	}
	select {
	case <-doneCh:
		return nil
	case <-h.stopped:
		return ErrHubStopped
	}
}

// LeaveAll removes client from every channel. It ignores cancellation so
// teardown always completes while the hub is running.
func (h *Hub) LeaveAll(client *Client) {
	doneCh := make(chan struct{})
	if err := h.send(context.Background(), cmdLeaveAll{client: client, doneCh: doneCh}); err != nil {
		return
	}
	select {
	case <-doneCh:
	case <-h.stopped:
	}
}

// Members reports how many local clients are in channel.
func (h *Hub) Members(ctx context.Context, channel string) (int, error) {
	replyCh := make(chan int, 1)
	if err := h.send(ctx, cmdMembers{channel: channel, replyCh: replyCh}); err != nil {
		return 0, err
	}
	select {
	case n := <-replyCh:
		return n, nil
	case <-h.stopped:
		return 0, ErrHubStopped
	}
}

// Publish wraps data in an envelope of msgType and sends it to every member
// of channel on every instance sharing the broker.
func (h *Hub) Publish(ctx context.Context, channel, msgType string, data any) error {
	payload, err := NewEnvelope(msgType, data)
	if err != nil {
		return err
	}
	if err := h.broker.Publish(ctx, channel, payload); err != nil {
		return fmt.Errorf("publish %s: %w", msgType, err)
	}
	return nil
}
