package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/herdstream/internal/auth"
	"github.com/lalith-99/herdstream/internal/models"
	"github.com/lalith-99/herdstream/internal/repository"
	"github.com/lalith-99/herdstream/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret-that-is-at-least-32-characters"

type wsEnv struct {
	store  *repository.Store
	hub    *Hub
	server *httptest.Server
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()
	return newWSEnvWithStore(t, memory.NewStore())
}

func newWSEnvWithStore(t *testing.T, store *repository.Store) *wsEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub, _ := startHub(t)
	h := NewHandler(hub, store, testSecret, Options{}, zap.NewNop())

	r := gin.New()
	h.RegisterRoutes(r.Group("/ws"))
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &wsEnv{store: store, hub: hub, server: server}
}

func (e *wsEnv) user(t *testing.T, role string, active bool) (*models.User, string) {
	t.Helper()
	existing, err := e.store.Users.List(context.Background())
	require.NoError(t, err)

	u, err := e.store.Users.Create(context.Background(), &models.User{
		FirstName: "Ana",
		Email:     fmt.Sprintf("user%d@finca.test", len(existing)+1),
		Role:      role,
		Active:    active,
	})
	require.NoError(t, err)

	token, err := auth.GenerateToken(u.ID, u.Role, testSecret, time.Hour)
	require.NoError(t, err)
	return u, token
}

func (e *wsEnv) dial(t *testing.T, path, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + path
	if token != "" {
		url += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func expectClose(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()

	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, code, closeErr.Code)
}

// connect dials path and consumes the welcome message.
func (e *wsEnv) connect(t *testing.T, path, token string) *websocket.Conn {
	t.Helper()
	conn := e.dial(t, path, token)
	msg := readJSON(t, conn)
	require.Equal(t, TypeConnectionEstablished, msg["type"])
	return conn
}

type failingUsers struct {
	repository.UserRepository
}

func (failingUsers) GetByID(context.Context, int64) (*models.User, error) {
	return nil, errors.New("connection refused")
}

func TestHandshake_Rejections(t *testing.T) {
	env := newWSEnv(t)
	_, userToken := env.user(t, models.RoleUser, true)
	_, inactiveToken := env.user(t, models.RoleUser, false)
	otherSecret, err := auth.GenerateToken(1, models.RoleAdmin, "another-secret-that-is-32-characters-long", time.Hour)
	require.NoError(t, err)
	ghost, err := auth.GenerateToken(999, models.RoleAdmin, testSecret, time.Hour)
	require.NoError(t, err)
	active, _ := env.user(t, models.RoleUser, true)
	expired, err := auth.GenerateToken(active.ID, active.Role, testSecret, -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name  string
		path  string
		token string
		code  int
	}{
		{"missing token", "/ws/notificaciones", "", CloseUnauthorized},
		{"garbage token", "/ws/animales", "not-a-jwt", CloseUnauthorized},
		{"wrong signing key", "/ws/notificaciones", otherSecret, CloseUnauthorized},
		{"expired token", "/ws/notificaciones", expired, CloseUnauthorized},
		{"unknown user", "/ws/notificaciones", ghost, CloseUnauthorized},
		{"inactive user", "/ws/animales", inactiveToken, CloseUnauthorized},
		{"non-admin on logs", "/ws/logs", userToken, CloseForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := env.dial(t, tt.path, tt.token)
			expectClose(t, conn, tt.code)
		})
	}
}

func TestHandshake_StoreFailureClosesWithInternalError(t *testing.T) {
	store := memory.NewStore()
	store.Users = failingUsers{store.Users}
	env := newWSEnvWithStore(t, store)

	token, err := auth.GenerateToken(1, models.RoleUser, testSecret, time.Hour)
	require.NoError(t, err)

	conn := env.dial(t, "/ws/notificaciones", token)
	expectClose(t, conn, websocket.CloseInternalServerErr)
}

func TestNotifications_WelcomeAndPendingReplay(t *testing.T) {
	env := newWSEnv(t)
	u, token := env.user(t, models.RoleUser, true)
	other, _ := env.user(t, models.RoleUser, true)
	ctx := context.Background()

	for _, n := range []models.Notification{
		{UserID: u.ID, Message: "primera", Category: models.NotificationInfo},
		{UserID: other.ID, Message: "ajena", Category: models.NotificationInfo},
		{UserID: u.ID, Message: "segunda", Category: models.NotificationReminder},
	} {
		_, err := env.store.Notifications.Create(ctx, &n)
		require.NoError(t, err)
	}

	conn := env.dial(t, "/ws/notificaciones", token)

	welcome := readJSON(t, conn)
	assert.Equal(t, TypeConnectionEstablished, welcome["type"])
	assert.Equal(t, "Conectado a notificaciones en tiempo real", welcome["message"])
	assert.EqualValues(t, u.ID, welcome["user_id"])

	for _, want := range []string{"segunda", "primera"} {
		msg := readJSON(t, conn)
		assert.Equal(t, TypePendingNotification, msg["type"])
		data := msg["data"].(map[string]any)
		assert.Equal(t, want, data["mensaje"])
	}
}

func TestNotifications_PendingReplayIsCapped(t *testing.T) {
	env := newWSEnv(t)
	u, token := env.user(t, models.RoleUser, true)
	for range pendingNotificationLimit + 5 {
		_, err := env.store.Notifications.Create(context.Background(), &models.Notification{UserID: u.ID, Message: "x"})
		require.NoError(t, err)
	}

	conn := env.connect(t, "/ws/notificaciones", token)
	for range pendingNotificationLimit {
		assert.Equal(t, TypePendingNotification, readJSON(t, conn)["type"])
	}

	sendJSON(t, conn, map[string]any{"type": "ping"})
	assert.Equal(t, TypePong, readJSON(t, conn)["type"])
}

func TestNotifications_PingInvalidAndUnsupported(t *testing.T) {
	env := newWSEnv(t)
	u, token := env.user(t, models.RoleUser, true)
	conn := env.connect(t, "/ws/notificaciones", token)

	sendJSON(t, conn, map[string]any{"type": "ping", "timestamp": 1700000000})
	pong := readJSON(t, conn)
	assert.Equal(t, TypePong, pong["type"])
	assert.EqualValues(t, 1700000000, pong["timestamp"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg := readJSON(t, conn)
	assert.Equal(t, TypeError, msg["type"])
	assert.Equal(t, msgInvalidJSON, msg["message"])

	sendJSON(t, conn, map[string]any{"type": TypeSubscribeAnimal, "animal_id": 1})
	msg = readJSON(t, conn)
	assert.Equal(t, TypeError, msg["type"])
	assert.Equal(t, msgUnsupportedType, msg["message"])

	// Still open after bad input, with its memberships intact.
	sendJSON(t, conn, map[string]any{"type": "ping"})
	assert.Equal(t, TypePong, readJSON(t, conn)["type"])

	assert.Equal(t, 1, members(t, env.hub, UserChannel(u.ID)))
	assert.Equal(t, 1, members(t, env.hub, ChannelGeneralNotifications))
	require.NoError(t, env.hub.Publish(context.Background(), UserChannel(u.ID), TypeNotification, map[string]any{"mensaje": "sigue conectado"}))
	msg = readJSON(t, conn)
	assert.Equal(t, TypeNotification, msg["type"])
	assert.Equal(t, "sigue conectado", msg["data"].(map[string]any)["mensaje"])
}

func TestNotifications_MarkAsReadAndUnreadCount(t *testing.T) {
	env := newWSEnv(t)
	u, token := env.user(t, models.RoleUser, true)
	other, _ := env.user(t, models.RoleUser, true)
	ctx := context.Background()

	mine, err := env.store.Notifications.Create(ctx, &models.Notification{UserID: u.ID, Message: "a"})
	require.NoError(t, err)
	_, err = env.store.Notifications.Create(ctx, &models.Notification{UserID: u.ID, Message: "b"})
	require.NoError(t, err)
	theirs, err := env.store.Notifications.Create(ctx, &models.Notification{UserID: other.ID, Message: "c"})
	require.NoError(t, err)

	conn := env.connect(t, "/ws/notificaciones", token)
	readJSON(t, conn)
	readJSON(t, conn)

	sendJSON(t, conn, map[string]any{"type": TypeMarkAsRead, "notification_id": mine.ID})
	msg := readJSON(t, conn)
	assert.Equal(t, TypeNotificationReadResponse, msg["type"])
	assert.EqualValues(t, mine.ID, msg["notification_id"])
	assert.Equal(t, true, msg["success"])

	sendJSON(t, conn, map[string]any{"type": TypeMarkAsRead, "notification_id": theirs.ID})
	msg = readJSON(t, conn)
	assert.Equal(t, false, msg["success"])

	sendJSON(t, conn, map[string]any{"type": TypeGetUnreadCount})
	msg = readJSON(t, conn)
	assert.Equal(t, TypeUnreadCount, msg["type"])
	assert.EqualValues(t, 1, msg["count"])

	n, err := env.store.Notifications.GetByID(ctx, theirs.ID)
	require.NoError(t, err)
	assert.False(t, n.Read)
}

func TestNotifications_ReceivesUserAndGeneralPushes(t *testing.T) {
	env := newWSEnv(t)
	u, token := env.user(t, models.RoleUser, true)
	conn := env.connect(t, "/ws/notificaciones", token)
	ctx := context.Background()

	require.NoError(t, env.hub.Publish(ctx, UserChannel(u.ID), TypeNotification, map[string]any{"mensaje": "hola"}))
	msg := readJSON(t, conn)
	assert.Equal(t, TypeNotification, msg["type"])

	require.NoError(t, env.hub.Publish(ctx, ChannelGeneralNotifications, TypeBroadcast, map[string]any{"mensaje": "a todos"}))
	msg = readJSON(t, conn)
	assert.Equal(t, TypeBroadcast, msg["type"])
	assert.Equal(t, "a todos", msg["data"].(map[string]any)["mensaje"])
}

func TestLogs_RecentAndFiltered(t *testing.T) {
	env := newWSEnv(t)
	admin, token := env.user(t, models.RoleAdmin, true)
	ctx := context.Background()

	for _, action := range []string{"crear", "editar", "crear", "eliminar"} {
		_, err := env.store.AuditLogs.Create(ctx, &models.AuditLog{UserID: &admin.ID, Action: action, Entity: "animal", EntityID: "1"})
		require.NoError(t, err)
	}

	conn := env.dial(t, "/ws/logs", token)
	welcome := readJSON(t, conn)
	assert.Equal(t, "Conectado a logs en tiempo real", welcome["message"])

	sendJSON(t, conn, map[string]any{"type": TypeGetRecentLogs, "limit": 2})
	msg := readJSON(t, conn)
	assert.Equal(t, TypeRecentLogs, msg["type"])
	logs := msg["data"].([]any)
	require.Len(t, logs, 2)
	assert.Equal(t, "eliminar", logs[0].(map[string]any)["tipo_accion"])

	sendJSON(t, conn, map[string]any{"type": TypeGetRecentLogs})
	assert.Len(t, readJSON(t, conn)["data"], 4)

	sendJSON(t, conn, map[string]any{"type": TypeFilterLogs, "filters": map[string]any{"tipo_accion": "crear"}})
	msg = readJSON(t, conn)
	assert.Equal(t, TypeFilteredLogs, msg["type"])
	assert.Len(t, msg["data"], 2)

	sendJSON(t, conn, map[string]any{"type": TypeMarkAsRead, "notification_id": 1})
	assert.Equal(t, msgUnsupportedType, readJSON(t, conn)["message"])
}

func TestLogs_ReceivesNewLogPushes(t *testing.T) {
	env := newWSEnv(t)
	_, token := env.user(t, models.RoleAdmin, true)
	conn := env.connect(t, "/ws/logs", token)

	require.NoError(t, env.hub.Publish(context.Background(), ChannelAdminLogs, TypeNewLog, map[string]any{"id": 1}))
	assert.Equal(t, TypeNewLog, readJSON(t, conn)["type"])
}

func TestAnimals_SubscribeReceiveUnsubscribe(t *testing.T) {
	env := newWSEnv(t)
	_, token := env.user(t, models.RoleUser, true)
	conn := env.connect(t, "/ws/animales", token)
	ctx := context.Background()

	sendJSON(t, conn, map[string]any{"type": TypeSubscribeAnimal, "animal_id": 5})
	msg := readJSON(t, conn)
	assert.Equal(t, TypeSubscriptionConfirmed, msg["type"])
	assert.EqualValues(t, 5, msg["animal_id"])

	require.NoError(t, env.hub.Publish(ctx, AnimalChannel(5), TypeAnimalUpdated, map[string]any{"id": 5}))
	msg = readJSON(t, conn)
	assert.Equal(t, TypeAnimalUpdated, msg["type"])

	require.NoError(t, env.hub.Publish(ctx, ChannelAnimalUpdates, TypeAnimalCreated, map[string]any{"id": 6}))
	assert.Equal(t, TypeAnimalCreated, readJSON(t, conn)["type"])

	sendJSON(t, conn, map[string]any{"type": TypeUnsubscribeAnimal, "animal_id": 5})
	msg = readJSON(t, conn)
	assert.Equal(t, TypeUnsubscriptionConfirmed, msg["type"])

	n, err := env.hub.Members(ctx, AnimalChannel(5))
	require.NoError(t, err)
	assert.Zero(t, n)

	sendJSON(t, conn, map[string]any{"type": TypeSubscribeAnimal})
	msg = readJSON(t, conn)
	assert.Equal(t, TypeError, msg["type"])
	assert.Equal(t, "animal_id requerido", msg["message"])
}

func TestAnimals_DisconnectReleasesMembership(t *testing.T) {
	env := newWSEnv(t)
	_, token := env.user(t, models.RoleUser, true)
	conn := env.connect(t, "/ws/animales", token)
	ctx := context.Background()

	sendJSON(t, conn, map[string]any{"type": TypeSubscribeAnimal, "animal_id": 8})
	readJSON(t, conn)

	n, err := env.hub.Members(ctx, AnimalChannel(8))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		a, _ := env.hub.Members(ctx, AnimalChannel(8))
		b, _ := env.hub.Members(ctx, ChannelAnimalUpdates)
		return a == 0 && b == 0
	}, 2*time.Second, 10*time.Millisecond)
}
