package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"saasresto/internal/store"
	"saasresto/pkg/logger"
)

// TenantHandler serves the public, tenant-facing routes that the edge
// rewrites into the /t/<slug> namespace.
type TenantHandler struct {
	store *store.Store
}

// NewTenantHandler wires the public tenant routes.
func NewTenantHandler(st *store.Store) *TenantHandler {
	return &TenantHandler{store: st}
}

// Landing handles GET / for requests that did not resolve to a tenant
// (bare base domain, unrelated host).
func (h *TenantHandler) Landing(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"service": "saasresto",
		"message": "create your restaurant menu at your own address",
	})
}

// PublicSite handles GET /t/:slug. The edge rewrite is purely syntactic,
// so this is where an unknown slug turns into a 404.
func (h *TenantHandler) PublicSite(c echo.Context) error {
	slug := c.Param("slug")

	tenant, err := h.store.TenantBySlug(c.Request().Context(), slug)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "restaurant not found"})
	}
	if err != nil {
		logger.FromContext(c).Error("Tenant lookup failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "an error occurred"})
	}

	// Menu rendering is owned by the public menu collaborator; this core
	// exposes the resolved tenant identity.
	return c.JSON(http.StatusOK, echo.Map{
		"tenant": map[string]interface{}{
			"slug": tenant.Slug,
			"name": tenant.Name,
		},
	})
}
