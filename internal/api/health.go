package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger reports whether the database answers. *db.DB implements it.
type Pinger interface {
	Health(ctx context.Context) error
}

const healthTimeout = 2 * time.Second

type HealthHandler struct {
	db      Pinger // nil for the in-memory store
	version string
	logger  *zap.Logger
}

func NewHealthHandler(db Pinger, version string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, version: version, logger: logger}
}

// Check handles GET /health. It is public so load balancers can call it.
func (h *HealthHandler) Check(c *gin.Context) {
	now := time.Now().Format(time.RFC3339)
	if h.db == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": now, "version": h.version, "database": "memory"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()
	if err := h.db.Health(ctx); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "timestamp": now, "version": h.version, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": now, "version": h.version, "database": "connected"})
}
