package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/fieldvisit/backend/internal/db"
	"github.com/fieldvisit/backend/internal/geo"
	"github.com/fieldvisit/backend/internal/geocode"
	"github.com/fieldvisit/backend/internal/service"
)

type Handler struct {
	Store          *db.Store
	Assembler      *service.Assembler
	Optimizer      service.Optimizer
	Geocoder       geocode.Geocoder
	Validator      *validator.Validate
	Logger         zerolog.Logger
	AdminKey       string
	CountryDefault string
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// writeServiceError maps core error kinds onto HTTP statuses so callers can
// tell "no route today" from a rejected transition or a transient failure.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoRouteAvailable):
		writeError(c, http.StatusNotFound, "NO_ROUTE_AVAILABLE", "No route assigned today", nil)
	case errors.Is(err, service.ErrNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Resource not found", err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		writeError(c, http.StatusConflict, "INVALID_TRANSITION", "Visit state does not allow this operation", err.Error())
	case errors.Is(err, service.ErrMissingRequiredField):
		writeError(c, http.StatusBadRequest, "MISSING_REQUIRED_FIELD", "Required field missing or invalid", err.Error())
	case errors.Is(err, geo.ErrInvalidCoordinate):
		writeError(c, http.StatusUnprocessableEntity, "INVALID_COORDINATE", "Store coordinates are missing or malformed", err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Operation failed", err.Error())
	}
}

// parseDate reads a YYYY-MM-DD query param, defaulting to today (UTC).
func parseDate(c *gin.Context) (time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), true
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "date must be YYYY-MM-DD", raw)
		return time.Time{}, false
	}
	return d, true
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary List stores
// @Produce json
// @Param zone query string false "filter by zone"
// @Success 200 {array} models.Store
// @Router /api/stores [get]
func (h *Handler) StoresList(c *gin.Context) {
	stores, err := h.Store.ListStores(c.Request.Context(), c.Query("zone"))
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list stores", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"stores": stores})
}

// @Summary List advisors
// @Produce json
// @Success 200 {array} models.Advisor
// @Router /api/advisors [get]
func (h *Handler) AdvisorsList(c *gin.Context) {
	advisors, err := h.Store.ListAdvisors(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list advisors", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"advisors": advisors})
}
