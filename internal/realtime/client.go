package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/herdstream/internal/models"
	"go.uber.org/zap"
)

// Options tunes per-connection behaviour. Zero fields take the defaults
// from DefaultOptions.
type Options struct {
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageSize  int64
	SendBufferSize  int
	ReadBufferSize  int
	WriteBufferSize int
}

func DefaultOptions() Options {
	return Options{
		PingInterval:    30 * time.Second,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
		MaxMessageSize:  4096,
		SendBufferSize:  64,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.PingInterval <= 0 {
		o.PingInterval = d.PingInterval
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	if o.WriteWait <= 0 {
		o.WriteWait = d.WriteWait
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = d.MaxMessageSize
	}
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = d.SendBufferSize
	}
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = d.ReadBufferSize
	}
	if o.WriteBufferSize <= 0 {
		o.WriteBufferSize = d.WriteBufferSize
	}
	return o
}

// Client is one authenticated WebSocket connection. The reading goroutine
// is the only reader of conn and writePump the only writer.
type Client struct {
	id       uuid.UUID
	user     *models.User
	endpoint string
	conn     *websocket.Conn
	send     chan []byte
	opts     Options
	logger   *zap.Logger

	// ctx is cancelled when the connection closes; queries issued on
	// behalf of the client derive from it.
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, user *models.User, endpoint string, opts Options, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New()
	return &Client{
		id:       id,
		user:     user,
		endpoint: endpoint,
		conn:     conn,
		send:     make(chan []byte, opts.SendBufferSize),
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		logger: logger.With(
			zap.String("conn_id", id.String()),
			zap.String("endpoint", endpoint),
			zap.Int64("user_id", user.ID),
		),
	}
}

func (c *Client) UserID() int64 {
	if c.user == nil {
		return 0
	}
	return c.user.ID
}

func (c *Client) User() *models.User {
	return c.user
}

// trySend queues payload without blocking. It reports false when the send
// buffer is full or the connection is closed.
func (c *Client) trySend(payload []byte) bool {
	if c.ctx.Err() != nil {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// reply queues a direct response, waiting for buffer space until the
// connection closes.
func (c *Client) reply(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("failed to marshal reply", zap.Error(err))
		return
	}
	select {
	case c.send <- payload:
	case <-c.ctx.Done():
	}
}

func (c *Client) replyError(message string) {
	c.reply(errorReply{Type: TypeError, Message: message})
}

// close is safe to call from any goroutine, any number of times.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// readPump reads frames until the connection fails or closes, passing each
// text frame to handle. A missing pong within PongWait ends the loop.
func (c *Client) readPump(handle func([]byte)) {
	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		handle(data)
	}
}

// writePump writes queued payloads, one per frame, and pings the peer every
// PingInterval.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}
