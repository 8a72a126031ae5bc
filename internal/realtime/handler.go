package realtime

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/herdstream/internal/auth"
	"github.com/lalith-99/herdstream/internal/models"
	"github.com/lalith-99/herdstream/internal/observ"
	"github.com/lalith-99/herdstream/internal/repository"
	"go.uber.org/zap"
)

// Close codes sent when a handshake is refused.
const (
	CloseUnauthorized = 4001
	CloseForbidden    = 4003
)

const queryTimeout = 5 * time.Second

var (
	errUnauthorized = errors.New("unauthorized")
	errForbidden    = errors.New("forbidden")
)

// Handler serves the three WebSocket endpoints.
type Handler struct {
	hub      *Hub
	users    repository.UserRepository
	secret   string
	opts     Options
	logger   *zap.Logger
	upgrader websocket.Upgrader

	notifications endpoint
	logs          endpoint
	animals       endpoint
}

func NewHandler(
	hub *Hub,
	store *repository.Store,
	secret string,
	opts Options,
	logger *zap.Logger,
) *Handler {
	opts = opts.withDefaults()
	return &Handler{
		hub:    hub,
		users:  store.Users,
		secret: secret,
		opts:   opts,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  opts.ReadBufferSize,
			WriteBufferSize: opts.WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		notifications: &notificationsEndpoint{repo: store.Notifications},
		logs:          &logsEndpoint{repo: store.AuditLogs},
		animals:       &animalsEndpoint{hub: hub},
	}
}

// RegisterRoutes mounts the endpoints on rg, typically the /ws group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/notificaciones", h.Notifications)
	rg.GET("/logs", h.Logs)
	rg.GET("/animales", h.Animals)
}

// Notifications handles GET /ws/notificaciones
func (h *Handler) Notifications(c *gin.Context) { h.serve(c, h.notifications) }

// Logs handles GET /ws/logs (admins only)
func (h *Handler) Logs(c *gin.Context) { h.serve(c, h.logs) }

// Animals handles GET /ws/animales
func (h *Handler) Animals(c *gin.Context) { h.serve(c, h.animals) }

func (h *Handler) serve(c *gin.Context, ep endpoint) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already answered with an HTTP error.
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	user, err := h.authenticate(c.Request.Context(), c.Query("token"), ep)
	if err != nil {
		h.reject(conn, ep, err)
		return
	}

	client := newClient(conn, user, ep.name(), h.opts, h.logger)
	defer h.hub.LeaveAll(client)
	defer client.close()

	observ.WSConnections.WithLabelValues(ep.name()).Inc()
	defer observ.WSConnections.WithLabelValues(ep.name()).Dec()

	go client.writePump()

	for _, channel := range ep.channels(user) {
		if err := h.hub.Join(client.ctx, channel, client); err != nil {
			client.logger.Error("failed to join default channel", zap.String("channel", channel), zap.Error(err))
			return
		}
	}

	client.reply(connectionEstablishedReply{
		Type:    TypeConnectionEstablished,
		Message: ep.welcome(),
		UserID:  user.ID,
	})
	ep.onConnect(client)

	client.logger.Info("websocket connected")
	client.readPump(func(data []byte) { h.dispatch(client, ep, data) })
	client.logger.Info("websocket disconnected")
}

// authenticate resolves the query token to an active user and applies the
// endpoint's role requirement.
func (h *Handler) authenticate(ctx context.Context, token string, ep endpoint) (*models.User, error) {
	if token == "" {
		return nil, errUnauthorized
	}
	claims, err := auth.ParseToken(token, h.secret)
	if err != nil {
		return nil, errUnauthorized
	}

	user, err := h.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active {
		return nil, errUnauthorized
	}
	if ep.adminOnly() && !user.IsAdmin() {
		return nil, errForbidden
	}
	return user, nil
}

func (h *Handler) reject(conn *websocket.Conn, ep endpoint, cause error) {
	code, reason := websocket.CloseInternalServerErr, "internal error"
	switch {
	case errors.Is(cause, errUnauthorized):
		code, reason = CloseUnauthorized, "unauthorized"
	case errors.Is(cause, errForbidden):
		code, reason = CloseForbidden, "forbidden"
	default:
		h.logger.Error("websocket handshake failed", zap.String("endpoint", ep.name()), zap.Error(cause))
	}

	observ.WSHandshakeRejections.WithLabelValues(ep.name(), strconv.Itoa(code)).Inc()
	deadline := time.Now().Add(h.opts.WriteWait)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = conn.Close()
}

// dispatch parses one inbound frame and routes it. Nothing here closes the
// connection: bad input and failed queries produce an error reply.
func (h *Handler) dispatch(c *Client, ep endpoint, data []byte) {
	msg, err := parseInbound(data)
	if err != nil {
		observ.WSInboundMessages.WithLabelValues(ep.name(), "invalid").Inc()
		c.replyError(msgInvalidJSON)
		return
	}
	label := msg.inboundType()
	if _, unknown := msg.(unknownMsg); unknown {
		label = "unknown"
	}
	observ.WSInboundMessages.WithLabelValues(ep.name(), label).Inc()

	if ping, ok := msg.(pingMsg); ok {
		c.reply(pongReply{Type: TypePong, Timestamp: ping.Timestamp})
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, queryTimeout)
	defer cancel()
	if !ep.handle(ctx, c, msg) {
		c.replyError(msgUnsupportedType)
	}
}
