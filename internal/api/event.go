package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/herdstream/internal/middleware"
	"github.com/lalith-99/herdstream/internal/models"
	"github.com/lalith-99/herdstream/internal/notify"
	"github.com/lalith-99/herdstream/internal/repository"
	"go.uber.org/zap"
)

type EventHandler struct {
	repo    repository.EventRepository
	animals repository.AnimalRepository
	emitter *notify.Emitter
	logger  *zap.Logger
}

func NewEventHandler(repo repository.EventRepository, animals repository.AnimalRepository, emitter *notify.Emitter, logger *zap.Logger) *EventHandler {
	return &EventHandler{repo: repo, animals: animals, emitter: emitter, logger: logger}
}

type eventRequest struct {
	Recurring   bool    `json:"recurrente"`
	Title       string  `json:"titulo" binding:"required"`
	Description *string `json:"descripcion"`
	StartsAt    Date    `json:"fecha_inicio"`
	EndsAt      *Date   `json:"fecha_fin"`
	AnimalID    *int64  `json:"animal"`
	Kind        string  `json:"tipo" binding:"required,oneof=visita tratamiento alerta_parto otro"`
}

func (h *EventHandler) bind(c *gin.Context) (*models.Event, bool) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	if req.StartsAt.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fecha_inicio is required"})
		return nil, false
	}
	ends := timePtr(req.EndsAt)
	if ends != nil && ends.Before(req.StartsAt.Time) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fecha_fin must not precede fecha_inicio"})
		return nil, false
	}
	if req.AnimalID != nil && !animalExists(c, h.animals, h.logger, *req.AnimalID) {
		return nil, false
	}
	return &models.Event{
		Recurring:   req.Recurring,
		Title:       req.Title,
		Description: req.Description,
		StartsAt:    req.StartsAt.Time,
		EndsAt:      ends,
		AnimalID:    req.AnimalID,
		Kind:        req.Kind,
	}, true
}

func (h *EventHandler) load(c *gin.Context) (*models.Event, bool) {
	id, ok := idParam(c)
	if !ok {
		return nil, false
	}
	ev, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		writeStoreError(c, h.logger, "event", err)
		return nil, false
	}
	if ev == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return nil, false
	}
	return ev, true
}

func (h *EventHandler) List(c *gin.Context) {
	events, err := h.repo.List(c.Request.Context())
	if err != nil {
		writeStoreError(c, h.logger, "event", err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *EventHandler) Get(c *gin.Context) {
	ev, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ev)
}

// Create handles POST /api/eventos. Events starting today or tomorrow
// remind every active user.
func (h *EventHandler) Create(c *gin.Context) {
	ev, ok := h.bind(c)
	if !ok {
		return
	}
	actorID := middleware.GetUserID(c)
	ev.CreatedBy = &actorID

	created, err := h.repo.Create(c.Request.Context(), ev)
	if err != nil {
		writeStoreError(c, h.logger, "event", err)
		return
	}
	h.emitter.EventChanged(c.Request.Context(), notify.ActionCreated, created)
	c.JSON(http.StatusCreated, created)
}

func (h *EventHandler) Update(c *gin.Context) {
	existing, ok := h.load(c)
	if !ok {
		return
	}
	ev, ok := h.bind(c)
	if !ok {
		return
	}
	ev.ID = existing.ID

	updated, err := h.repo.Update(c.Request.Context(), ev)
	if err != nil {
		writeStoreError(c, h.logger, "event", err)
		return
	}
	h.emitter.EventChanged(c.Request.Context(), notify.ActionUpdated, updated)
	c.JSON(http.StatusOK, updated)
}

func (h *EventHandler) Delete(c *gin.Context) {
	ev, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), ev.ID); err != nil {
		writeStoreError(c, h.logger, "event", err)
		return
	}
	h.emitter.EventChanged(c.Request.Context(), notify.ActionDeleted, ev)
	c.Status(http.StatusNoContent)
}
