package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"saasresto/internal/auth"
	"saasresto/internal/model"
	"saasresto/internal/store"
	"saasresto/pkg/logger"
)

// TeamHandler serves owner-only member management within a tenant.
type TeamHandler struct {
	store *store.Store
}

// NewTeamHandler wires the team management endpoints.
func NewTeamHandler(st *store.Store) *TeamHandler {
	return &TeamHandler{store: st}
}

// AddMember handles POST /api/app/team behind RequireOwner. The new user
// is created inside the caller's tenant.
func (h *TeamHandler) AddMember(c echo.Context) error {
	log := logger.FromContext(c)
	a := auth.MustAuth(c)

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
		Role     string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Email == "" || len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and a password of at least 8 characters are required"})
	}
	if req.Role == "" {
		req.Role = model.RoleStaff
	}
	if req.Role != model.RoleOwner && req.Role != model.RoleStaff {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be OWNER or STAFF"})
	}

	if _, err := h.store.UserByEmail(c.Request().Context(), a.Tenant.ID, req.Email); err == nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "a member with this email already exists"})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Error("Member lookup failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "an error occurred"})
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "an error occurred"})
	}
	user := &model.User{
		TenantID:     a.Tenant.ID,
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Role:         req.Role,
	}
	if err := h.store.CreateUser(c.Request().Context(), user); err != nil {
		log.Error("Failed to create member", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "an error occurred"})
	}

	log.Info("Team member added",
		zap.Uint("tenant_id", a.Tenant.ID),
		zap.Uint("user_id", user.ID),
		zap.String("role", user.Role))
	return c.JSON(http.StatusCreated, echo.Map{
		"user": map[string]interface{}{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
			"role":  user.Role,
		},
	})
}

// RemoveMember handles DELETE /api/app/team/:id behind RequireOwner.
// Deleting a user cascades to their sessions; owners cannot delete
// themselves.
func (h *TeamHandler) RemoveMember(c echo.Context) error {
	log := logger.FromContext(c)
	a := auth.MustAuth(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid member id"})
	}
	userID := uint(id)
	if userID == a.User.ID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "you cannot remove your own account"})
	}

	if _, err := h.store.UserByID(c.Request().Context(), a.Tenant.ID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "member not found"})
		}
		log.Error("Member lookup failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "an error occurred"})
	}

	if err := h.store.DeleteUser(c.Request().Context(), a.Tenant.ID, userID); err != nil {
		log.Error("Failed to remove member", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "an error occurred"})
	}

	log.Info("Team member removed",
		zap.Uint("tenant_id", a.Tenant.ID),
		zap.Uint("user_id", userID))
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
