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

// IncidentHandler serves /api/incidencias. Admins see every incident,
// other users only the ones they created.
type IncidentHandler struct {
	repo    repository.IncidentRepository
	animals repository.AnimalRepository
	emitter *notify.Emitter
	logger  *zap.Logger
}

func NewIncidentHandler(repo repository.IncidentRepository, animals repository.AnimalRepository, emitter *notify.Emitter, logger *zap.Logger) *IncidentHandler {
	return &IncidentHandler{repo: repo, animals: animals, emitter: emitter, logger: logger}
}

type incidentRequest struct {
	AnimalID    int64  `json:"animal" binding:"required"`
	Kind        string `json:"tipo" binding:"required"`
	Description string `json:"descripcion" binding:"required"`
	DetectedOn  Date   `json:"fecha_deteccion"`
	ReportedBy  *int64 `json:"reportado_por"`
	Status      string `json:"estado"`
	ResolvedOn  *Date  `json:"fecha_resolucion"`
}

func validIncidentStatus(s string) bool {
	switch s {
	case "", models.IncidentPending, models.IncidentTreating, models.IncidentResolved:
		return true
	}
	return false
}

func (h *IncidentHandler) bind(c *gin.Context) (*models.Incident, bool) {
	var req incidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	if req.DetectedOn.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fecha_deteccion is required"})
		return nil, false
	}
	if !validIncidentStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid estado"})
		return nil, false
	}
	if !animalExists(c, h.animals, h.logger, req.AnimalID) {
		return nil, false
	}
	return &models.Incident{
		AnimalID:    req.AnimalID,
		Kind:        req.Kind,
		Description: req.Description,
		DetectedOn:  req.DetectedOn.Time,
		ReportedBy:  req.ReportedBy,
		Status:      req.Status,
		ResolvedOn:  timePtr(req.ResolvedOn),
	}, true
}

// visible loads the :id incident if the caller may see it.
func (h *IncidentHandler) visible(c *gin.Context) (*models.Incident, bool) {
	id, ok := idParam(c)
	if !ok {
		return nil, false
	}
	inc, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		writeStoreError(c, h.logger, "incident", err)
		return nil, false
	}
	if inc == nil || !ownedBy(c, inc.CreatedBy) {
		c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
		return nil, false
	}
	return inc, true
}

func (h *IncidentHandler) List(c *gin.Context) {
	incidents, err := h.repo.List(c.Request.Context())
	if err != nil {
		writeStoreError(c, h.logger, "incident", err)
		return
	}
	out := make([]models.Incident, 0, len(incidents))
	for _, inc := range incidents {
		if ownedBy(c, inc.CreatedBy) {
			out = append(out, inc)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h *IncidentHandler) Get(c *gin.Context) {
	inc, ok := h.visible(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, inc)
}

// Create handles POST /api/incidencias and alerts every active admin.
func (h *IncidentHandler) Create(c *gin.Context) {
	inc, ok := h.bind(c)
	if !ok {
		return
	}
	actorID := middleware.GetUserID(c)
	inc.CreatedBy = &actorID
	if inc.ReportedBy == nil {
		inc.ReportedBy = &actorID
	}

	created, err := h.repo.Create(c.Request.Context(), inc)
	if err != nil {
		writeStoreError(c, h.logger, "incident", err)
		return
	}
	h.emitter.IncidentChanged(c.Request.Context(), notify.ActionCreated, created)
	c.JSON(http.StatusCreated, created)
}

func (h *IncidentHandler) Update(c *gin.Context) {
	existing, ok := h.visible(c)
	if !ok {
		return
	}
	inc, ok := h.bind(c)
	if !ok {
		return
	}
	inc.ID = existing.ID
	inc.CreatedBy = existing.CreatedBy
	if inc.Status == "" {
		inc.Status = existing.Status
	}

	updated, err := h.repo.Update(c.Request.Context(), inc)
	if err != nil {
		writeStoreError(c, h.logger, "incident", err)
		return
	}
	h.emitter.IncidentChanged(c.Request.Context(), notify.ActionUpdated, updated)
	c.JSON(http.StatusOK, updated)
}

func (h *IncidentHandler) Delete(c *gin.Context) {
	inc, ok := h.visible(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), inc.ID); err != nil {
		writeStoreError(c, h.logger, "incident", err)
		return
	}
	h.emitter.IncidentChanged(c.Request.Context(), notify.ActionDeleted, inc)
	c.Status(http.StatusNoContent)
}

// ownedBy reports whether the caller is an admin or the recorded owner.
func ownedBy(c *gin.Context, owner *int64) bool {
	if middleware.IsAdmin(c) {
		return true
	}
	return owner != nil && *owner == middleware.GetUserID(c)
}

// animalExists answers 400 when id does not name an animal.
func animalExists(c *gin.Context, animals repository.AnimalRepository, logger *zap.Logger, id int64) bool {
	a, err := animals.GetByID(c.Request.Context(), id)
	if err != nil {
		writeStoreError(c, logger, "animal", err)
		return false
	}
	if a == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "animal does not exist"})
		return false
	}
	return true
}
