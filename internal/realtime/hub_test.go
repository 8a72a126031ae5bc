package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lalith-99/herdstream/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T) (*Hub, *MemoryBroker) {
	t.Helper()

	broker := NewMemoryBroker(64)
	hub := NewHub(broker, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.stopped
		_ = broker.Close()
	})
	return hub, broker
}

// testClient has no socket; tests read its send buffer directly.
func testClient(t *testing.T, userID int64, buffer int) *Client {
	t.Helper()
	opts := Options{SendBufferSize: buffer}.withDefaults()
	c := newClient(nil, &models.User{ID: userID, Active: true}, "test", opts, zap.NewNop())
	t.Cleanup(c.close)
	return c
}

func receive(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case payload := <-c.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(payload, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Envelope{}
	}
}

func assertNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case payload := <-c.send:
		t.Fatalf("unexpected message: %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func subscribed(b *MemoryBroker, channel string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.subscribed[channel]
	return ok
}

func members(t *testing.T, h *Hub, channel string) int {
	t.Helper()
	n, err := h.Members(context.Background(), channel)
	require.NoError(t, err)
	return n
}

func TestHub_JoinIsIdempotent(t *testing.T) {
	hub, broker := startHub(t)
	c := testClient(t, 1, 8)
	ctx := context.Background()

	require.NoError(t, hub.Join(ctx, "animal_7", c))
	require.NoError(t, hub.Join(ctx, "animal_7", c))

	assert.Equal(t, 1, members(t, hub, "animal_7"))
	assert.True(t, subscribed(broker, "animal_7"))
}

func TestHub_LastLeaveUnsubscribesBroker(t *testing.T) {
	hub, broker := startHub(t)
	a := testClient(t, 1, 8)
	b := testClient(t, 2, 8)
	ctx := context.Background()

	require.NoError(t, hub.Join(ctx, "animal_7", a))
	require.NoError(t, hub.Join(ctx, "animal_7", b))

	require.NoError(t, hub.Leave(ctx, "animal_7", a))
	assert.Equal(t, 1, members(t, hub, "animal_7"))
	assert.True(t, subscribed(broker, "animal_7"))

	require.NoError(t, hub.Leave(ctx, "animal_7", b))
	assert.Equal(t, 0, members(t, hub, "animal_7"))
	assert.False(t, subscribed(broker, "animal_7"))
}

func TestHub_LeaveWithoutJoinIsNoop(t *testing.T) {
	hub, _ := startHub(t)
	a := testClient(t, 1, 8)
	b := testClient(t, 2, 8)
	ctx := context.Background()

	require.NoError(t, hub.Leave(ctx, "animal_1", a))

	require.NoError(t, hub.Join(ctx, "animal_1", a))
	require.NoError(t, hub.Leave(ctx, "animal_1", b))
	assert.Equal(t, 1, members(t, hub, "animal_1"))
}

func TestHub_PublishFansOutToMembersOnly(t *testing.T) {
	hub, _ := startHub(t)
	a := testClient(t, 1, 8)
	b := testClient(t, 2, 8)
	outsider := testClient(t, 3, 8)
	ctx := context.Background()

	require.NoError(t, hub.Join(ctx, ChannelAnimalUpdates, a))
	require.NoError(t, hub.Join(ctx, ChannelAnimalUpdates, b))
	require.NoError(t, hub.Join(ctx, ChannelAdminLogs, outsider))

	require.NoError(t, hub.Publish(ctx, ChannelAnimalUpdates, TypeAnimalCreated, map[string]any{"id": 9}))

	for _, c := range []*Client{a, b} {
		env := receive(t, c)
		assert.Equal(t, TypeAnimalCreated, env.Type)
		assert.JSONEq(t, `{"id":9}`, string(env.Data))
	}
	assertNothing(t, outsider)
}

func TestHub_PublishWithoutMembersIsDropped(t *testing.T) {
	hub, _ := startHub(t)
	c := testClient(t, 1, 8)
	ctx := context.Background()

	require.NoError(t, hub.Publish(ctx, "animal_42", TypeAnimalUpdated, map[string]any{"id": 42}))

	require.NoError(t, hub.Join(ctx, "animal_42", c))
	assertNothing(t, c)
}

func TestHub_FullBufferDropsForSlowClientOnly(t *testing.T) {
	hub, _ := startHub(t)
	slow := testClient(t, 1, 1)
	fast := testClient(t, 2, 8)
	ctx := context.Background()

	require.NoError(t, hub.Join(ctx, ChannelGeneralNotifications, slow))
	require.NoError(t, hub.Join(ctx, ChannelGeneralNotifications, fast))

	for i := range 3 {
		require.NoError(t, hub.Publish(ctx, ChannelGeneralNotifications, TypeBroadcast, map[string]int{"n": i}))
	}

	for i := range 3 {
		env := receive(t, fast)
		assert.JSONEq(t, fmt.Sprintf(`{"n":%d}`, i), string(env.Data))
	}

	env := receive(t, slow)
	assert.JSONEq(t, `{"n":0}`, string(env.Data))
	assertNothing(t, slow)
}

func TestHub_LeaveAllReleasesEveryChannel(t *testing.T) {
	hub, broker := startHub(t)
	c := testClient(t, 5, 8)
	other := testClient(t, 6, 8)
	ctx := context.Background()

	channels := []string{UserChannel(5), ChannelGeneralNotifications, AnimalChannel(3)}
	for _, ch := range channels {
		require.NoError(t, hub.Join(ctx, ch, c))
	}
	require.NoError(t, hub.Join(ctx, ChannelGeneralNotifications, other))

	hub.LeaveAll(c)

	for _, ch := range channels {
		want := 0
		if ch == ChannelGeneralNotifications {
			want = 1
		}
		assert.Equal(t, want, members(t, hub, ch), ch)
	}
	assert.False(t, subscribed(broker, UserChannel(5)))
	assert.False(t, subscribed(broker, AnimalChannel(3)))
	assert.True(t, subscribed(broker, ChannelGeneralNotifications))
}

func TestHub_ClosedClientGetsNothing(t *testing.T) {
	hub, _ := startHub(t)
	c := testClient(t, 1, 8)
	ctx := context.Background()

	require.NoError(t, hub.Join(ctx, ChannelAnimalUpdates, c))
	c.close()

	require.NoError(t, hub.Publish(ctx, ChannelAnimalUpdates, TypeAnimalDeleted, map[string]any{"id": 1}))
	assertNothing(t, c)
}

func TestHub_StoppedHubRejectsCommands(t *testing.T) {
	broker := NewMemoryBroker(8)
	hub := NewHub(broker, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	c := testClient(t, 1, 8)
	require.NoError(t, hub.Join(context.Background(), "animal_1", c))

	cancel()
	<-hub.stopped

	assert.False(t, subscribed(broker, "animal_1"))
	assert.ErrorIs(t, hub.Join(context.Background(), "animal_1", c), ErrHubStopped)
	_, err := hub.Members(context.Background(), "animal_1")
	assert.ErrorIs(t, err, ErrHubStopped)

	// Teardown must not hang once the hub is gone.
	hub.LeaveAll(c)
}

func TestMemoryBroker_ClosedRejectsPublish(t *testing.T) {
	b := NewMemoryBroker(1)
	require.NoError(t, b.Subscribe(context.Background(), "c"))
	require.NoError(t, b.Close())

	assert.ErrorIs(t, b.Publish(context.Background(), "c", []byte("x")), ErrBrokerClosed)
	assert.ErrorIs(t, b.Subscribe(context.Background(), "d"), ErrBrokerClosed)

	_, open := <-b.Messages()
	assert.False(t, open)
}

func TestMemoryBroker_PublishBlocksUntilContextDone(t *testing.T) {
	b := NewMemoryBroker(1)
	ctx := context.Background()
	require.NoError(t, b.Subscribe(ctx, "c"))
	require.NoError(t, b.Publish(ctx, "c", []byte("first")))

	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, b.Publish(ctx, "c", []byte("second")), context.DeadlineExceeded)
}

func TestHub_JoinsProceedWhilePublishersFlood(t *testing.T) {
	broker := NewMemoryBroker(1)
	hub := NewHub(broker, zap.NewNop())
	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)
	t.Cleanup(func() {
		stopHub()
		<-hub.stopped
		_ = broker.Close()
	})

	listener := testClient(t, 1, 1)
	require.NoError(t, hub.Join(context.Background(), "busy", listener))

	pubCtx, stopPublishers := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pubCtx.Err() == nil {
				_ = hub.Publish(pubCtx, "busy", TypeNewLog, map[string]any{"n": 1})
			}
		}()
	}
	defer func() {
		stopPublishers()
		wg.Wait()
	}()

	joiner := testClient(t, 2, 1)
	for i := range 500 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := hub.Join(ctx, fmt.Sprintf("new_%d", i), joiner)
		cancel()
		require.NoError(t, err, "join %d", i)
	}
	assert.Equal(t, 1, members(t, hub, "new_499"))
}

func TestMemoryBroker_CloseReleasesBlockedPublisher(t *testing.T) {
	b := NewMemoryBroker(1)
	ctx := context.Background()
	require.NoError(t, b.Subscribe(ctx, "c"))
	require.NoError(t, b.Publish(ctx, "c", []byte("fills the buffer")))

	errCh := make(chan error, 1)
	go func() { errCh <- b.Publish(ctx, "c", []byte("blocked")) }()

	// Subscribe must not wait behind the blocked publisher.
	require.NoError(t, b.Subscribe(ctx, "d"))
	require.NoError(t, b.Close())

	select {
	case err := <-errCh:
		// The publisher may also have been rejected before it started waiting.
		assert.ErrorIs(t, err, ErrBrokerClosed)
	case <-time.After(time.Second):
		t.Fatal("publisher still blocked after Close")
	}
}
