package realtime

import (
	"context"
	"errors"

	"github.com/lalith-99/herdstream/internal/models"
	"github.com/lalith-99/herdstream/internal/repository"
	"go.uber.org/zap"
)

const (
	pendingNotificationLimit = 10
	defaultRecentLogs        = 50
	maxLogs                  = 100
)

// endpoint is the per-route part of the protocol: who may connect, which
// channels they start in, and which inbound variants they accept.
type endpoint interface {
	name() string
	adminOnly() bool
	welcome() string
	channels(u *models.User) []string

	// onConnect runs after the welcome message, before the read loop.
	onConnect(c *Client)

	// handle reports false for variants the endpoint does not accept.
	handle(ctx context.Context, c *Client, msg inbound) bool
}

// --- /ws/notificaciones ---

type notificationsEndpoint struct {
	repo repository.NotificationRepository
}

func (e *notificationsEndpoint) name() string    { return "notificaciones" }
func (e *notificationsEndpoint) adminOnly() bool { return false }
func (e *notificationsEndpoint) welcome() string { return "Conectado a notificaciones en tiempo real" }

func (e *notificationsEndpoint) channels(u *models.User) []string {
	return []string{UserChannel(u.ID), ChannelGeneralNotifications}
}

// onConnect replays the most recent unread notifications.
func (e *notificationsEndpoint) onConnect(c *Client) {
	ctx, cancel := context.WithTimeout(c.ctx, queryTimeout)
	defer cancel()

	pending, err := e.repo.ListUnread(ctx, c.UserID(), pendingNotificationLimit)
	if err != nil {
		c.logger.Warn("failed to load pending notifications", zap.Error(err))
		return
	}
	for _, n := range pending {
		payload, err := NewEnvelope(TypePendingNotification, n)
		if err != nil {
			c.logger.Error("failed to encode pending notification", zap.Int64("notification_id", n.ID), zap.Error(err))
			continue
		}
		select {
		case c.send <- payload:
		case <-c.ctx.Done():
			return
		}
	}
}

func (e *notificationsEndpoint) handle(ctx context.Context, c *Client, msg inbound) bool {
	switch m := msg.(type) {
	case markAsReadMsg:
		err := e.repo.MarkRead(ctx, m.NotificationID, c.UserID())
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			c.logger.Error("failed to mark notification read", zap.Int64("notification_id", m.NotificationID), zap.Error(err))
			c.replyError(msgQueryFailed)
			return true
		}
		c.reply(readResponseReply{
			Type:           TypeNotificationReadResponse,
			NotificationID: m.NotificationID,
			Success:        err == nil,
		})

	case getUnreadCountMsg:
		count, err := e.repo.CountUnread(ctx, c.UserID())
		if err != nil {
			c.logger.Error("failed to count unread notifications", zap.Error(err))
			c.replyError(msgQueryFailed)
			return true
		}
		c.reply(unreadCountReply{Type: TypeUnreadCount, Count: count})

	default:
		return false
	}
	return true
}

// --- /ws/logs ---

type logsEndpoint struct {
	repo repository.AuditLogRepository
}

func (e *logsEndpoint) name() string    { return "logs" }
func (e *logsEndpoint) adminOnly() bool { return true }
func (e *logsEndpoint) welcome() string { return "Conectado a logs en tiempo real" }

func (e *logsEndpoint) channels(*models.User) []string {
	return []string{ChannelAdminLogs}
}

func (e *logsEndpoint) onConnect(*Client) {}

// recentLogsLimit applies the default to a missing or non-positive limit
// and caps the rest.
func recentLogsLimit(requested *int) int {
	if requested == nil || *requested <= 0 {
		return defaultRecentLogs
	}
	return min(*requested, maxLogs)
}

func (e *logsEndpoint) handle(ctx context.Context, c *Client, msg inbound) bool {
	var (
		filter  models.AuditLogFilter
		msgType string
	)
	switch m := msg.(type) {
	case getRecentLogsMsg:
		filter = models.AuditLogFilter{Limit: recentLogsLimit(m.Limit)}
		msgType = TypeRecentLogs
	case filterLogsMsg:
		filter = m.Filters.auditFilter(maxLogs)
		msgType = TypeFilteredLogs
	default:
		return false
	}

	logs, err := e.repo.List(ctx, filter)
	if err != nil {
		c.logger.Error("failed to list audit logs", zap.Error(err))
		c.replyError(msgQueryFailed)
		return true
	}
	payload, err := NewEnvelope(msgType, logs)
	if err != nil {
		c.logger.Error("failed to encode audit logs", zap.Error(err))
		c.replyError(msgQueryFailed)
		return true
	}
	select {
	case c.send <- payload:
	case <-c.ctx.Done():
	}
	return true
}

// --- /ws/animales ---

type animalsEndpoint struct {
	hub *Hub
}

func (e *animalsEndpoint) name() string    { return "animales" }
func (e *animalsEndpoint) adminOnly() bool { return false }
func (e *animalsEndpoint) welcome() string { return "Conectado a actualizaciones de animales" }

func (e *animalsEndpoint) onConnect(*Client) {}

func (e *animalsEndpoint) channels(*models.User) []string {
	return []string{ChannelAnimalUpdates}
}

func (e *animalsEndpoint) handle(ctx context.Context, c *Client, msg inbound) bool {
	switch m := msg.(type) {
	case subscribeAnimalMsg:
		if m.AnimalID <= 0 {
			c.replyError("animal_id requerido")
			return true
		}
		if err := e.hub.Join(ctx, AnimalChannel(m.AnimalID), c); err != nil {
			c.logger.Error("failed to subscribe to animal", zap.Int64("animal_id", m.AnimalID), zap.Error(err))
			c.replyError(msgQueryFailed)
			return true
		}
		c.reply(subscriptionReply{Type: TypeSubscriptionConfirmed, AnimalID: m.AnimalID})

	case unsubscribeAnimalMsg:
		if m.AnimalID <= 0 {
			c.replyError("animal_id requerido")
			return true
		}
		if err := e.hub.Leave(ctx, AnimalChannel(m.AnimalID), c); err != nil {
			c.logger.Error("failed to unsubscribe from animal", zap.Int64("animal_id", m.AnimalID), zap.Error(err))
			c.replyError(msgQueryFailed)
			return true
		}
		c.reply(subscriptionReply{Type: TypeUnsubscriptionConfirmed, AnimalID: m.AnimalID})

	default:
		return false
	}
	return true
}
