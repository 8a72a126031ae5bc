package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/herdstream/internal/middleware"
	"github.com/lalith-99/herdstream/internal/models"
	"github.com/lalith-99/herdstream/internal/repository"
	"go.uber.org/zap"
)

// Notifier persists a notification and pushes it, or fans a broadcast out
// to every active user. *notify.Emitter implements it.
type Notifier interface {
	Notify(ctx context.Context, n *models.Notification) (*models.Notification, error)
	Broadcast(ctx context.Context, message string, sentBy int64) int
}

type NotificationHandler struct {
	repo     repository.NotificationRepository
	users    repository.UserRepository
	notifier Notifier
	logger   *zap.Logger
}

func NewNotificationHandler(repo repository.NotificationRepository, users repository.UserRepository, notifier Notifier, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{repo: repo, users: users, notifier: notifier, logger: logger}
}

type createNotificationRequest struct {
	UserID   int64  `json:"usuario" binding:"required"`
	Message  string `json:"mensaje" binding:"required"`
	Category string `json:"tipo" binding:"omitempty,oneof=informativa alerta_sanitaria recordatorio"`
	AnimalID *int64 `json:"relacionado_con_animal"`
	EventID  *int64 `json:"relacionado_con_evento"`
}

type broadcastRequest struct {
	Message string `json:"mensaje" binding:"required"`
}

// List handles GET /api/notificaciones. Admins see every notification.
func (h *NotificationHandler) List(c *gin.Context) {
	var userID int64
	if !middleware.IsAdmin(c) {
		userID = middleware.GetUserID(c)
	}
	notifications, err := h.repo.List(c.Request.Context(), userID)
	if err != nil {
		writeStoreError(c, h.logger, "notification", err)
		return
	}
	c.JSON(http.StatusOK, notifications)
}

// Create handles POST /api/notificaciones (admin). The recipient gets a
// live push if connected.
func (h *NotificationHandler) Create(c *gin.Context) {
	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Category == "" {
		req.Category = models.NotificationInfo
	}

	recipient, err := h.users.GetByID(c.Request.Context(), req.UserID)
	if err != nil {
		writeStoreError(c, h.logger, "user", err)
		return
	}
	if recipient == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipient does not exist"})
		return
	}

	created, err := h.notifier.Notify(c.Request.Context(), &models.Notification{
		UserID:   req.UserID,
		Message:  req.Message,
		Category: req.Category,
		AnimalID: req.AnimalID,
		EventID:  req.EventID,
	})
	if err != nil {
		writeStoreError(c, h.logger, "notification", err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// MarkRead handles PATCH /api/notificaciones/:id/read for the caller's own
// notifications.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.repo.MarkRead(c.Request.Context(), id, middleware.GetUserID(c)); err != nil {
		writeStoreError(c, h.logger, "notification", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "visto": true})
}

// Broadcast handles POST /api/notificaciones/broadcast (admin).
func (h *NotificationHandler) Broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sent := h.notifier.Broadcast(c.Request.Context(), req.Message, middleware.GetUserID(c))

	h.logger.Info("broadcast sent", zap.Int64("sent_by", middleware.GetUserID(c)), zap.Int("recipients", sent))
	c.JSON(http.StatusOK, gin.H{
		"message":    "Notificación enviada",
		"recipients": sent,
	})
}
