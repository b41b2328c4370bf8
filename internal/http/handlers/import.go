package handlers

import (
	"encoding/csv"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/fieldvisit/backend/internal/models"
)

type ImportSummary struct {
	Stores struct {
		Parsed   int `json:"parsed"`
		Inserted int `json:"inserted"`
		Errors   int `json:"errors"`
	} `json:"stores"`
	Advisors struct {
		Parsed   int `json:"parsed"`
		Inserted int `json:"inserted"`
		Errors   int `json:"errors"`
	} `json:"advisors"`
	Templates struct {
		Parsed   int `json:"parsed"`
		Inserted int `json:"inserted"`
		Errors   int `json:"errors"`
	} `json:"templates"`
	Errors []string `json:"errors"`
}

// @Summary Import CSV data
// @Description Upload stores, advisors, and route template CSV files
// @Tags import
// @Accept multipart/form-data
// @Produce json
// @Param stores formData file true "stores.csv"
// @Param advisors formData file true "advisors.csv"
// @Param templates formData file true "templates.csv"
// @Success 200 {object} ImportSummary
// @Failure 400 {object} map[string]any
// @Router /api/import [post]
func (h *Handler) Import(c *gin.Context) {
	storesFile, err := c.FormFile("stores")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "stores file required", nil)
		return
	}
	advisorsFile, err := c.FormFile("advisors")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "advisors file required", nil)
		return
	}
	templatesFile, err := c.FormFile("templates")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "templates file required", nil)
		return
	}

	if !validateExt(storesFile.Filename) || !validateExt(advisorsFile.Filename) || !validateExt(templatesFile.Filename) {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "all files must be .csv", nil)
		return
	}

	summary := ImportSummary{Errors: []string{}}
	ctx := c.Request.Context()

	stores, errs := parseStoresCSV(storesFile)
	summary.Stores.Parsed = len(stores)
	summary.Stores.Errors = len(errs)
	summary.Errors = append(summary.Errors, errs...)

	advisors, errs := parseAdvisorsCSV(advisorsFile)
	summary.Advisors.Parsed = len(advisors)
	summary.Advisors.Errors = len(errs)
	summary.Errors = append(summary.Errors, errs...)

	templates, errs := parseTemplatesCSV(templatesFile)
	summary.Templates.Parsed = len(templates)
	summary.Templates.Errors = len(errs)
	summary.Errors = append(summary.Errors, errs...)

	if len(summary.Errors) > 0 {
		writeError(c, http.StatusBadRequest, "CSV_PARSE_ERROR", "CSV validation errors", summary.Errors)
		return
	}

	err = h.Store.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `TRUNCATE stores, advisors, route_templates, template_stops, routes, visits RESTART IDENTITY CASCADE`)
		return err
	})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to reset tables", err.Error())
		return
	}

	inserted, err := h.Store.InsertStores(ctx, stores)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to insert stores", err.Error())
		return
	}
	summary.Stores.Inserted = int(inserted)

	inserted, err = h.Store.InsertAdvisors(ctx, advisors)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to insert advisors", err.Error())
		return
	}
	summary.Advisors.Inserted = int(inserted)

	for _, tmpl := range templates {
		if _, err := h.Store.UpsertTemplate(ctx, tmpl); err != nil {
			writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to insert templates", err.Error())
			return
		}
		summary.Templates.Inserted++
	}

	h.Logger.Info().
		Int("stores", summary.Stores.Inserted).
		Int("advisors", summary.Advisors.Inserted).
		Int("templates", summary.Templates.Inserted).
		Msg("import completed")

	c.JSON(http.StatusOK, summary)
}

func validateExt(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

func openCSV(fh *multipart.FileHeader) (*csv.Reader, io.Closer, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	return r, f, nil
}

// stores.csv: id,name,address,lat,lng,priority,category,zone,visit_duration_min
func parseStoresCSV(fh *multipart.FileHeader) ([]models.Store, []string) {
	r, closer, err := openCSV(fh)
	if err != nil {
		return nil, []string{"stores: " + err.Error()}
	}
	defer closer.Close()

	var out []models.Store
	var errs []string
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			errs = append(errs, fmt.Sprintf("stores line %d: %v", line, err))
			continue
		}
		if line == 1 && strings.EqualFold(rec[0], "id") {
			continue
		}
		if len(rec) < 9 {
			errs = append(errs, fmt.Sprintf("stores line %d: expected 9 columns", line))
			continue
		}

		st := models.Store{
			ID:       strings.TrimSpace(rec[0]),
			Name:     strings.TrimSpace(rec[1]),
			Address:  strings.TrimSpace(rec[2]),
			Priority: models.Priority(strings.ToLower(strings.TrimSpace(rec[5]))),
			Category: strings.TrimSpace(rec[6]),
			Zone:     strings.TrimSpace(rec[7]),
		}
		if st.ID == "" || st.Name == "" {
			errs = append(errs, fmt.Sprintf("stores line %d: id and name required", line))
			continue
		}
		if raw := strings.TrimSpace(rec[3]); raw != "" {
			lat, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				errs = append(errs, fmt.Sprintf("stores line %d: bad lat %q", line, raw))
				continue
			}
			st.Lat = &lat
		}
		if raw := strings.TrimSpace(rec[4]); raw != "" {
			lng, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				errs = append(errs, fmt.Sprintf("stores line %d: bad lng %q", line, raw))
				continue
			}
			st.Lng = &lng
		}
		if raw := strings.TrimSpace(rec[8]); raw != "" {
			dur, err := strconv.Atoi(raw)
			if err != nil || dur < 0 {
				errs = append(errs, fmt.Sprintf("stores line %d: bad visit_duration_min %q", line, raw))
				continue
			}
			st.VisitDurationMin = dur
		}
		out = append(out, st)
	}
	return out, errs
}

// advisors.csv: id,name,vehicle_type
func parseAdvisorsCSV(fh *multipart.FileHeader) ([]models.Advisor, []string) {
	r, closer, err := openCSV(fh)
	if err != nil {
		return nil, []string{"advisors: " + err.Error()}
	}
	defer closer.Close()

	var out []models.Advisor
	var errs []string
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			errs = append(errs, fmt.Sprintf("advisors line %d: %v", line, err))
			continue
		}
		if line == 1 && strings.EqualFold(rec[0], "id") {
			continue
		}
		if len(rec) < 3 {
			errs = append(errs, fmt.Sprintf("advisors line %d: expected 3 columns", line))
			continue
		}

		a := models.Advisor{
			ID:          strings.TrimSpace(rec[0]),
			Name:        strings.TrimSpace(rec[1]),
			VehicleType: models.VehicleType(strings.ToLower(strings.TrimSpace(rec[2]))),
		}
		if a.ID == "" || a.Name == "" {
			errs = append(errs, fmt.Sprintf("advisors line %d: id and name required", line))
			continue
		}
		out = append(out, a)
	}
	return out, errs
}

// templates.csv: advisor_id,weekday,store_id,visit_order — one row per stop,
// grouped here into one template per (advisor, weekday).
func parseTemplatesCSV(fh *multipart.FileHeader) ([]models.RouteTemplate, []string) {
	r, closer, err := openCSV(fh)
	if err != nil {
		return nil, []string{"templates: " + err.Error()}
	}
	defer closer.Close()

	type key struct {
		advisorID string
		weekday   int
	}
	grouped := map[key]*models.RouteTemplate{}
	order := []key{}
	var errs []string
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			errs = append(errs, fmt.Sprintf("templates line %d: %v", line, err))
			continue
		}
		if line == 1 && strings.EqualFold(rec[0], "advisor_id") {
			continue
		}
		if len(rec) < 4 {
			errs = append(errs, fmt.Sprintf("templates line %d: expected 4 columns", line))
			continue
		}

		weekday, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil || weekday < 0 || weekday > 6 {
			errs = append(errs, fmt.Sprintf("templates line %d: weekday must be 0-6", line))
			continue
		}
		visitOrder, err := strconv.Atoi(strings.TrimSpace(rec[3]))
		if err != nil || visitOrder < 1 {
			errs = append(errs, fmt.Sprintf("templates line %d: visit_order must be >= 1", line))
			continue
		}

		k := key{advisorID: strings.TrimSpace(rec[0]), weekday: weekday}
		if k.advisorID == "" {
			errs = append(errs, fmt.Sprintf("templates line %d: advisor_id required", line))
			continue
		}
		tmpl, ok := grouped[k]
		if !ok {
			tmpl = &models.RouteTemplate{AdvisorID: k.advisorID, Weekday: time.Weekday(k.weekday)}
			grouped[k] = tmpl
			order = append(order, k)
		}
		tmpl.Stops = append(tmpl.Stops, models.TemplateStop{
			StoreID:    strings.TrimSpace(rec[2]),
			VisitOrder: visitOrder,
		})
	}

	out := make([]models.RouteTemplate, 0, len(grouped))
	for _, k := range order {
		out = append(out, *grouped[k])
	}
	return out, errs
}
