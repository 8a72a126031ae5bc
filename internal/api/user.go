package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/herdstream/internal/middleware"
	"github.com/lalith-99/herdstream/internal/models"
	"github.com/lalith-99/herdstream/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type UserHandler struct {
	repo   repository.UserRepository
	logger *zap.Logger
}

func NewUserHandler(repo repository.UserRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{repo: repo, logger: logger}
}

// GetMe handles GET /api/users/me. AuthMiddleware already loaded the row.
func (h *UserHandler) GetMe(c *gin.Context) {
	user, ok := c.Get(middleware.ContextKeyUser)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// List handles GET /api/users (admin).
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.repo.List(c.Request.Context())
	if err != nil {
		writeStoreError(c, h.logger, "user", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// Get handles GET /api/users/:id (admin).
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	user, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		writeStoreError(c, h.logger, "user", err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// updateUserRequest is a partial update: absent fields keep their value.
type updateUserRequest struct {
	FirstName *string `json:"nombre"`
	LastName  *string `json:"apellidos"`
	Email     *string `json:"email" binding:"omitempty,email"`
	Role      *string `json:"rol"`
	Active    *bool   `json:"activo"`
	Password  *string `json:"password" binding:"omitempty,min=8"`
}

// Update handles PUT /api/users/:id (admin).
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Role != nil && !models.ValidRole(*req.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}

	user, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		writeStoreError(c, h.logger, "user", err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
	// An empty hash tells the store to keep the current one.
	user.PasswordHash = ""
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			h.logger.Error("failed to hash password", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
			return
		}
		user.PasswordHash = string(hash)
	}

	updated, err := h.repo.Update(c.Request.Context(), user)
	if err != nil {
		writeStoreError(c, h.logger, "user", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /api/users/:id (admin). Admins cannot delete
// themselves.
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if id == middleware.GetUserID(c) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot delete your own account"})
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		writeStoreError(c, h.logger, "user", err)
		return
	}
	c.Status(http.StatusNoContent)
}
