package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldvisit/backend/internal/geocode"
	"github.com/fieldvisit/backend/internal/models"
)

// @Summary Get the effective route for an advisor
// @Produce json
// @Param id path string true "advisor id"
// @Param date query string false "YYYY-MM-DD, defaults to today"
// @Success 200 {object} service.EffectiveRoute
// @Failure 404 {object} map[string]any
// @Router /api/advisors/{id}/route [get]
func (h *Handler) RouteForAdvisor(c *gin.Context) {
	date, ok := parseDate(c)
	if !ok {
		return
	}

	route, err := h.Assembler.GetEffectiveRoute(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, route)
}

type optimizeRequest struct {
	Date        string              `json:"date"`
	Constraints []models.Constraint `json:"constraints"`
}

// @Summary Optimize the visit order of an advisor's route
// @Accept json
// @Produce json
// @Param id path string true "advisor id"
// @Success 200 {object} map[string]any
// @Failure 422 {object} map[string]any
// @Router /api/advisors/{id}/route/optimize [post]
func (h *Handler) OptimizeRoute(c *gin.Context) {
	var req optimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Malformed body", err.Error())
		return
	}

	date := time.Now().UTC()
	if req.Date != "" {
		d, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "date must be YYYY-MM-DD", req.Date)
			return
		}
		date = d
	}

	advisorID := c.Param("id")
	advisor, err := h.Store.AdvisorByID(c.Request.Context(), advisorID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load advisor", err.Error())
		return
	}
	if advisor == nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Advisor not found", advisorID)
		return
	}

	effective, err := h.Assembler.GetEffectiveRoute(c.Request.Context(), advisorID, date)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	stores := make([]models.Store, 0, len(effective.Visits))
	for _, v := range effective.Visits {
		stores = append(stores, v.Store)
	}

	result, err := h.Optimizer.Optimize(stores, *advisor, req.Constraints)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"route_id": effective.Route.ID,
		"source":   effective.Source.String(),
		"stops":    result.Stops,
		"metrics":  result.Metrics,
	})
}

type startVisitRequest struct {
	AdvisorID string `json:"advisor_id" validate:"required"`
	StoreID   string `json:"store_id" validate:"required"`
	Date      string `json:"date"`
}

// @Summary Start (or reinstate) a visit
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/visits/start [post]
func (h *Handler) VisitStart(c *gin.Context) {
	var req startVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Malformed body", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "advisor_id and store_id are required", err.Error())
		return
	}

	date := time.Now().UTC()
	if req.Date != "" {
		d, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "date must be YYYY-MM-DD", req.Date)
			return
		}
		date = d
	}

	route, visit, err := h.Assembler.StartVisit(c.Request.Context(), req.AdvisorID, date, req.StoreID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"route": route, "visit": visit})
}

type completeVisitRequest struct {
	DurationMin    *int `json:"duration_min"`
	TasksCompleted int  `json:"tasks_completed"`
	DamageCount    int  `json:"damage_count"`
}

// @Summary Complete a visit
// @Accept json
// @Produce json
// @Param id path string true "visit id"
// @Success 200 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/visits/{id}/complete [post]
func (h *Handler) VisitComplete(c *gin.Context) {
	var req completeVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Malformed body", err.Error())
		return
	}

	visit, err := h.Assembler.CompleteVisit(c.Request.Context(), c.Param("id"), req.DurationMin, req.TasksCompleted, req.DamageCount)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"visit": visit})
}

type skipVisitRequest struct {
	Reason string `json:"reason"`
}

// @Summary Skip a visit
// @Accept json
// @Produce json
// @Param id path string true "visit id"
// @Success 200 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/visits/{id}/skip [post]
func (h *Handler) VisitSkip(c *gin.Context) {
	var req skipVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Malformed body", err.Error())
		return
	}

	visit, err := h.Assembler.SkipVisit(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"visit": visit})
}

type templateStopRequest struct {
	StoreID    string `json:"store_id" validate:"required"`
	VisitOrder int    `json:"visit_order" validate:"gte=1"`
}

type templateUpsertRequest struct {
	AdvisorID string                `json:"advisor_id" validate:"required"`
	Weekday   int                   `json:"weekday" validate:"gte=0,lte=6"`
	Stops     []templateStopRequest `json:"stops" validate:"required,min=1,dive"`
}

// @Summary Create or replace a day-of-week route template
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/templates [post]
func (h *Handler) TemplateUpsert(c *gin.Context) {
	var req templateUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Malformed body", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Template validation failed", err.Error())
		return
	}

	tmpl := models.RouteTemplate{
		AdvisorID: req.AdvisorID,
		Weekday:   time.Weekday(req.Weekday),
	}
	for _, stop := range req.Stops {
		tmpl.Stops = append(tmpl.Stops, models.TemplateStop{StoreID: stop.StoreID, VisitOrder: stop.VisitOrder})
	}

	id, err := h.Store.UpsertTemplate(c.Request.Context(), tmpl)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to save template", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"template_id": id})
}

// @Summary Backfill missing store coordinates via geocoding
// @Produce json
// @Param force query bool false "re-geocode stores that already have coordinates"
// @Success 200 {object} map[string]any
// @Router /api/stores/regeocode [post]
func (h *Handler) RegeocodeStores(c *gin.Context) {
	ctx := c.Request.Context()
	force := c.Query("force") == "true"

	var stores []models.Store
	var err error
	if force {
		stores, err = h.Store.ListStores(ctx, "")
	} else {
		stores, err = h.Store.ListStoresMissingCoords(ctx)
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list stores", err.Error())
		return
	}

	updated := 0
	failed := []string{}
	for _, st := range stores {
		lat, lng, _, _, err := h.Geocoder.Geocode(ctx, geocode.BuildStoreQuery(h.CountryDefault, st))
		if err != nil {
			h.Logger.Warn().Err(err).Str("store_id", st.ID).Msg("geocode failed")
			failed = append(failed, st.ID)
			continue
		}
		if err := h.Store.UpdateStoreCoords(ctx, st.ID, lat, lng); err != nil {
			writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to update store coords", err.Error())
			return
		}
		updated++
	}

	c.JSON(http.StatusOK, gin.H{"updated": updated, "failed": failed})
}
