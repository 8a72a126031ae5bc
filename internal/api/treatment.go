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

// TreatmentHandler serves /api/tratamientos. Only admins create; other
// users see and edit the treatments they administered.
type TreatmentHandler struct {
	repo    repository.TreatmentRepository
	animals repository.AnimalRepository
	emitter *notify.Emitter
	logger  *zap.Logger
}

func NewTreatmentHandler(repo repository.TreatmentRepository, animals repository.AnimalRepository, emitter *notify.Emitter, logger *zap.Logger) *TreatmentHandler {
	return &TreatmentHandler{repo: repo, animals: animals, emitter: emitter, logger: logger}
}

type treatmentRequest struct {
	AnimalID       int64   `json:"animal" binding:"required"`
	Date           Date    `json:"fecha"`
	Medication     string  `json:"medicamento" binding:"required"`
	Dose           string  `json:"dosis" binding:"required"`
	Duration       string  `json:"duracion" binding:"required"`
	AdministeredBy *int64  `json:"administrado_por"`
	Notes          *string `json:"observaciones"`
}

func (h *TreatmentHandler) bind(c *gin.Context) (*models.Treatment, bool) {
	var req treatmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	if req.Date.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fecha is required"})
		return nil, false
	}
	if !animalExists(c, h.animals, h.logger, req.AnimalID) {
		return nil, false
	}
	return &models.Treatment{
		AnimalID:       req.AnimalID,
		Date:           req.Date.Time,
		Medication:     req.Medication,
		Dose:           req.Dose,
		Duration:       req.Duration,
		AdministeredBy: req.AdministeredBy,
		Notes:          req.Notes,
	}, true
}

func (h *TreatmentHandler) visible(c *gin.Context) (*models.Treatment, bool) {
	id, ok := idParam(c)
	if !ok {
		return nil, false
	}
	t, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		writeStoreError(c, h.logger, "treatment", err)
		return nil, false
	}
	if t == nil || !ownedBy(c, t.AdministeredBy) {
		c.JSON(http.StatusNotFound, gin.H{"error": "treatment not found"})
		return nil, false
	}
	return t, true
}

func (h *TreatmentHandler) List(c *gin.Context) {
	var administeredBy *int64
	if !middleware.IsAdmin(c) {
		id := middleware.GetUserID(c)
		administeredBy = &id
	}
	treatments, err := h.repo.List(c.Request.Context(), administeredBy)
	if err != nil {
		writeStoreError(c, h.logger, "treatment", err)
		return
	}
	c.JSON(http.StatusOK, treatments)
}

func (h *TreatmentHandler) Get(c *gin.Context) {
	t, ok := h.visible(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, t)
}

// Create handles POST /api/tratamientos (admin) and informs every active
// admin.
func (h *TreatmentHandler) Create(c *gin.Context) {
	t, ok := h.bind(c)
	if !ok {
		return
	}
	if t.AdministeredBy == nil {
		actorID := middleware.GetUserID(c)
		t.AdministeredBy = &actorID
	}

	created, err := h.repo.Create(c.Request.Context(), t)
	if err != nil {
		writeStoreError(c, h.logger, "treatment", err)
		return
	}
	h.emitter.TreatmentChanged(c.Request.Context(), notify.ActionCreated, created)
	c.JSON(http.StatusCreated, created)
}

func (h *TreatmentHandler) Update(c *gin.Context) {
	existing, ok := h.visible(c)
	if !ok {
		return
	}
	t, ok := h.bind(c)
	if !ok {
		return
	}
	t.ID = existing.ID
	// Non-admins cannot hand their treatment to someone else.
	if !middleware.IsAdmin(c) || t.AdministeredBy == nil {
		t.AdministeredBy = existing.AdministeredBy
	}

	updated, err := h.repo.Update(c.Request.Context(), t)
	if err != nil {
		writeStoreError(c, h.logger, "treatment", err)
		return
	}
	h.emitter.TreatmentChanged(c.Request.Context(), notify.ActionUpdated, updated)
	c.JSON(http.StatusOK, updated)
}

func (h *TreatmentHandler) Delete(c *gin.Context) {
	t, ok := h.visible(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), t.ID); err != nil {
		writeStoreError(c, h.logger, "treatment", err)
		return
	}
	h.emitter.TreatmentChanged(c.Request.Context(), notify.ActionDeleted, t)
	c.Status(http.StatusNoContent)
}
