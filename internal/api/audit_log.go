package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/herdstream/internal/models"
	"github.com/lalith-99/herdstream/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultLogPage = 100
	maxLogPage     = 500
)

type AuditLogHandler struct {
	repo   repository.AuditLogRepository
	logger *zap.Logger
}

func NewAuditLogHandler(repo repository.AuditLogRepository, logger *zap.Logger) *AuditLogHandler {
	return &AuditLogHandler{repo: repo, logger: logger}
}

// List handles GET /api/logs?tipo_accion=&entidad_afectada=&usuario=&limit=
// (admin), newest first.
func (h *AuditLogHandler) List(c *gin.Context) {
	filter := models.AuditLogFilter{
		Action: c.Query("tipo_accion"),
		Entity: c.Query("entidad_afectada"),
		Limit:  defaultLogPage,
	}
	if raw := c.Query("usuario"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid usuario"})
			return
		}
		filter.UserID = id
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		filter.Limit = min(n, maxLogPage)
	}

	logs, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		writeStoreError(c, h.logger, "audit log", err)
		return
	}
	c.JSON(http.StatusOK, logs)
}
