package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/herdstream/internal/audit"
	"github.com/lalith-99/herdstream/internal/middleware"
	"github.com/lalith-99/herdstream/internal/models"
	"github.com/lalith-99/herdstream/internal/notify"
	"github.com/lalith-99/herdstream/internal/repository"
	"github.com/lalith-99/herdstream/internal/storage"
	"go.uber.org/zap"
)

// multipart overhead allowed on top of the image itself
const uploadSlack = 1 << 20

// AnimalHandler serves /api/animales. Every successful write is audited and
// pushed to animal subscribers.
type AnimalHandler struct {
	repo     repository.AnimalRepository
	images   storage.ImageStore // nil when object storage is not configured
	recorder *audit.Recorder
	emitter  *notify.Emitter
	logger   *zap.Logger
}

func NewAnimalHandler(
	repo repository.AnimalRepository,
	images storage.ImageStore,
	recorder *audit.Recorder,
	emitter *notify.Emitter,
	logger *zap.Logger,
) *AnimalHandler {
	return &AnimalHandler{
		repo:     repo,
		images:   images,
		recorder: recorder,
		emitter:  emitter,
		logger:   logger,
	}
}

type animalRequest struct {
	Tag                string          `json:"chapeta" binding:"required,max=50"`
	Name               *string         `json:"nombre"`
	Sex                string          `json:"sexo" binding:"required,oneof=macho hembra"`
	BirthDate          Date            `json:"fecha_nacimiento"`
	Breed              string          `json:"raza" binding:"required"`
	ReproductiveStatus string          `json:"estado_reproductivo" binding:"required"`
	ProductiveStatus   string          `json:"estado_productivo" binding:"required"`
	Health             json.RawMessage `json:"salud"`
	Production         json.RawMessage `json:"produccion"`
	CurrentWeight      *float64        `json:"peso_actual"`
	CurrentLocation    *string         `json:"ubicacion_actual"`
	MovementHistory    json.RawMessage `json:"historial_movimientos"`
	OffspringIDs       []int64         `json:"descendencia"`
	RemovedAt          *Date           `json:"fecha_baja_sistema"`
	Notes              *string         `json:"notas"`
}

// bind decodes and validates the body, answering 400 on failure.
func (r *animalRequest) bind(c *gin.Context) bool {
	if err := c.ShouldBindJSON(r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	if r.BirthDate.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fecha_nacimiento is required"})
		return false
	}
	return true
}

func (r *animalRequest) toModel() *models.Animal {
	offspring := r.OffspringIDs
	if offspring == nil {
		offspring = []int64{}
	}
	return &models.Animal{
		Tag:                r.Tag,
		Name:               r.Name,
		Sex:                r.Sex,
		BirthDate:          r.BirthDate.Time,
		Breed:              r.Breed,
		ReproductiveStatus: r.ReproductiveStatus,
		ProductiveStatus:   r.ProductiveStatus,
		Health:             jsonArray(r.Health),
		Production:         jsonArray(r.Production),
		CurrentWeight:      r.CurrentWeight,
		CurrentLocation:    r.CurrentLocation,
		MovementHistory:    jsonArray(r.MovementHistory),
		OffspringIDs:       offspring,
		RemovedAt:          timePtr(r.RemovedAt),
		Notes:              r.Notes,
	}
}

// load fetches the :id animal, answering 400/404/500 itself.
func (h *AnimalHandler) load(c *gin.Context) (*models.Animal, bool) {
	id, ok := idParam(c)
	if !ok {
		return nil, false
	}
	a, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		writeStoreError(c, h.logger, "animal", err)
		return nil, false
	}
	if a == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Animal no encontrado"})
		return nil, false
	}
	return a, true
}

// List handles GET /api/animales?estado_productivo=&estado_reproductivo=&sexo=&raza=
func (h *AnimalHandler) List(c *gin.Context) {
	animals, err := h.repo.List(c.Request.Context(), models.AnimalFilter{
		ProductiveStatus:   c.Query("estado_productivo"),
		ReproductiveStatus: c.Query("estado_reproductivo"),
		Sex:                c.Query("sexo"),
		Breed:              c.Query("raza"),
	})
	if err != nil {
		writeStoreError(c, h.logger, "animal", err)
		return
	}
	c.JSON(http.StatusOK, animals)
}

func (h *AnimalHandler) Get(c *gin.Context) {
	a, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, a)
}

// Create handles POST /api/animales (admin).
func (h *AnimalHandler) Create(c *gin.Context) {
	var req animalRequest
	if !req.bind(c) {
		return
	}
	actorID := middleware.GetUserID(c)
	a := req.toModel()
	a.CreatedBy = &actorID

	created, err := h.repo.Create(c.Request.Context(), a)
	if err != nil {
		writeStoreError(c, h.logger, "animal", err)
		return
	}

	h.recorder.AnimalCreated(c.Request.Context(), actorID, created)
	h.emitter.AnimalChanged(c.Request.Context(), notify.ActionCreated, created)
	c.JSON(http.StatusCreated, created)
}

// Update handles PUT /api/animales/:id (admin). The body replaces every
// editable field.
func (h *AnimalHandler) Update(c *gin.Context) {
	before, ok := h.load(c)
	if !ok {
		return
	}
	var req animalRequest
	if !req.bind(c) {
		return
	}
	actorID := middleware.GetUserID(c)
	a := req.toModel()
	a.ID = before.ID
	a.ModifiedBy = &actorID

	updated, err := h.repo.Update(c.Request.Context(), a)
	if err != nil {
		writeStoreError(c, h.logger, "animal", err)
		return
	}

	h.recorder.AnimalUpdated(c.Request.Context(), actorID, before, updated)
	h.emitter.AnimalChanged(c.Request.Context(), notify.ActionUpdated, updated)
	c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /api/animales/:id (admin). The profile image is
// removed afterwards on a best-effort basis.
func (h *AnimalHandler) Delete(c *gin.Context) {
	a, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), a.ID); err != nil {
		writeStoreError(c, h.logger, "animal", err)
		return
	}
	_ = h.removeImage(c, a)

	actorID := middleware.GetUserID(c)
	h.recorder.AnimalDeleted(c.Request.Context(), actorID, a)
	h.emitter.AnimalChanged(c.Request.Context(), notify.ActionDeleted, a)
	c.Status(http.StatusNoContent)
}

// removeImage deletes the stored object behind a.PhotoURL. URLs that do not
// belong to the configured bucket are left alone.
func (h *AnimalHandler) removeImage(c *gin.Context, a *models.Animal) error {
	if h.images == nil || a.PhotoURL == nil {
		return nil
	}
	err := h.images.Delete(c.Request.Context(), *a.PhotoURL)
	if err == nil || errors.Is(err, storage.ErrNotOwned) {
		return nil
	}
	h.logger.Warn("failed to remove animal image",
		zap.Int64("animal_id", a.ID),
		zap.String("url", *a.PhotoURL),
		zap.Error(err),
	)
	return err
}

// UploadImage handles POST /api/animales/:id/imagen with a multipart
// "image" field. Any authenticated user may upload.
func (h *AnimalHandler) UploadImage(c *gin.Context) {
	if h.images == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage is not configured"})
		return
	}
	a, ok := h.load(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxImageSize+uploadSlack)
	header, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"error": storage.ErrTooLarge.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No se envió ninguna imagen"})
		return
	}
	contentType := header.Header.Get("Content-Type")
	if err := storage.Validate(contentType, header.Size); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	file, err := header.Open()
	if err != nil {
		h.logger.Error("failed to open upload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read image"})
		return
	}
	defer file.Close()

	actorID := middleware.GetUserID(c)
	stored, err := h.images.Upload(c.Request.Context(), storage.Image{
		AnimalID:    a.ID,
		AnimalTag:   a.Tag,
		UploadedBy:  actorID,
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		h.logger.Error("failed to upload image", zap.Int64("animal_id", a.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store image"})
		return
	}

	// The previous image goes only once the new one is safely stored.
	_ = h.removeImage(c, a)

	updated, err := h.repo.SetPhotoURL(c.Request.Context(), a.ID, &stored.URL, actorID)
	if err != nil {
		writeStoreError(c, h.logger, "animal", err)
		return
	}

	h.recorder.ImageUpdated(c.Request.Context(), actorID, updated)
	h.emitter.AnimalChanged(c.Request.Context(), notify.ActionUpdated, updated)
	c.JSON(http.StatusOK, gin.H{
		"message":   "Imagen subida exitosamente",
		"url":       stored.URL,
		"animal_id": a.ID,
		"file_name": stored.ObjectName,
	})
}

// DeleteImage handles DELETE /api/animales/:id/imagen (admin). The URL is
// cleared even when the object store refuses the delete; the reply then
// carries a warning.
func (h *AnimalHandler) DeleteImage(c *gin.Context) {
	a, ok := h.load(c)
	if !ok {
		return
	}
	if a.PhotoURL == nil {
		c.JSON(http.StatusOK, gin.H{"message": "El animal no tiene imagen de perfil"})
		return
	}

	var warning string
	switch {
	case h.images == nil:
		warning = "image storage is not configured"
	default:
		if err := h.removeImage(c, a); err != nil {
			warning = err.Error()
		}
	}

	actorID := middleware.GetUserID(c)
	updated, err := h.repo.SetPhotoURL(c.Request.Context(), a.ID, nil, actorID)
	if err != nil {
		writeStoreError(c, h.logger, "animal", err)
		return
	}

	h.recorder.ImageDeleted(c.Request.Context(), actorID, updated)
	h.emitter.AnimalChanged(c.Request.Context(), notify.ActionUpdated, updated)

	if warning != "" {
		c.JSON(http.StatusOK, gin.H{
			"message": "Referencia de imagen eliminada (posible error en el almacenamiento)",
			"warning": warning,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Imagen eliminada exitosamente"})
}
