package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/herdstream/internal/models"
	"github.com/lalith-99/herdstream/internal/repository"
	"go.uber.org/zap"
)

type GroupHandler struct {
	repo   repository.GroupRepository
	logger *zap.Logger
}

func NewGroupHandler(repo repository.GroupRepository, logger *zap.Logger) *GroupHandler {
	return &GroupHandler{repo: repo, logger: logger}
}

type groupRequest struct {
	Name         string  `json:"nombre" binding:"required,max=100"`
	Description  *string `json:"descripcion"`
	Kind         string  `json:"tipo" binding:"required,oneof=produccion gestacion tratamiento"`
	AnimalIDs    []int64 `json:"animal_ids"`
	CurrentState *string `json:"estado_actual"`
}

func (r groupRequest) toModel() *models.Group {
	ids := r.AnimalIDs
	if ids == nil {
		ids = []int64{}
	}
	return &models.Group{
		Name:         r.Name,
		Description:  r.Description,
		Kind:         r.Kind,
		AnimalIDs:    ids,
		CurrentState: r.CurrentState,
	}
}

func (h *GroupHandler) List(c *gin.Context) {
	groups, err := h.repo.List(c.Request.Context())
	if err != nil {
		writeStoreError(c, h.logger, "group", err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (h *GroupHandler) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	g, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		writeStoreError(c, h.logger, "group", err)
		return
	}
	if g == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *GroupHandler) Create(c *gin.Context) {
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, err := h.repo.Create(c.Request.Context(), req.toModel())
	if err != nil {
		writeStoreError(c, h.logger, "group", err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (h *GroupHandler) Update(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g := req.toModel()
	g.ID = id

	updated, err := h.repo.Update(c.Request.Context(), g)
	if err != nil {
		writeStoreError(c, h.logger, "group", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *GroupHandler) Delete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		writeStoreError(c, h.logger, "group", err)
		return
	}
	c.Status(http.StatusNoContent)
}
