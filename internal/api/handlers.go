package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/analysis"
	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/models"
	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/service"
)

// MaxBins caps the histogram bin count a client may request.
const MaxBins = 500

var errBadRequest = errors.New("bad request")

type Handler struct {
	Analytics *service.AnalyticsService
}

func NewHandler(analytics *service.AnalyticsService) *Handler {
	return &Handler{Analytics: analytics}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/files", h.ListFiles)
		r.Get("/sensors", h.GetSensors)
		r.Get("/summary", h.GetSummary)
		r.Get("/correlation", h.GetCorrelation)
		r.Get("/boxplot", h.GetBoxplot)
		r.Get("/distribution", h.GetDistribution)
		r.Get("/groups", h.GetGroups)
		r.Get("/groups/nested", h.GetNestedGroups)
		r.Get("/columns", h.GetColumns)
	})
}

// ============================================================================
// Health
// ============================================================================

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

// ============================================================================
// Files
// ============================================================================

// ListFiles handles GET /api/files
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.Analytics.Files(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.FilesResponse{Files: files})
}

// GetColumns handles GET /api/columns?name=
func (h *Handler) GetColumns(w http.ResponseWriter, r *http.Request) {
	name, err := requiredParam(r, "name")
	if err != nil {
		writeError(w, r, err)
		return
	}

	info, err := h.Analytics.Info(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	columns, err := h.Analytics.Columns(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ColumnsResponse{Dataset: info, Columns: columns})
}

// ============================================================================
// Analytics
// ============================================================================

// GetSensors handles GET /api/sensors?name=
func (h *Handler) GetSensors(w http.ResponseWriter, r *http.Request) {
	name, err := requiredParam(r, "name")
	if err != nil {
		writeError(w, r, err)
		return
	}
	sensors, err := h.Analytics.Sensors(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sensors)
}

// GetSummary handles GET /api/summary?name=&column=
// Without a column every sensor present is summarized.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	name, err := requiredParam(r, "name")
	if err != nil {
		writeError(w, r, err)
		return
	}

	column := strings.TrimSpace(r.URL.Query().Get("column"))
	if column == "" {
		summaries, err := h.Analytics.Summaries(r.Context(), name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, summaries)
		return
	}

	summary, err := h.Analytics.Summary(r.Context(), name, column)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetCorrelation handles GET /api/correlation?name=
func (h *Handler) GetCorrelation(w http.ResponseWriter, r *http.Request) {
	name, err := requiredParam(r, "name")
	if err != nil {
		writeError(w, r, err)
		return
	}
	matrix, err := h.Analytics.Correlation(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matrix)
}

// GetBoxplot handles GET /api/boxplot?name=
func (h *Handler) GetBoxplot(w http.ResponseWriter, r *http.Request) {
	name, err := requiredParam(r, "name")
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.Analytics.Boxplots(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetDistribution handles GET /api/distribution?name=&column=&bins=
func (h *Handler) GetDistribution(w http.ResponseWriter, r *http.Request) {
	name, err := requiredParam(r, "name")
	if err != nil {
		writeError(w, r, err)
		return
	}
	column, err := requiredParam(r, "column")
	if err != nil {
		writeError(w, r, err)
		return
	}
	bins, err := getIntParam(r, "bins", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if bins < 0 || bins > MaxBins {
		writeError(w, r, fmt.Errorf("%w: bins must be between 1 and %d", errBadRequest, MaxBins))
		return
	}

	fit, err := h.Analytics.Distribution(r.Context(), name, column, bins)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fit)
}

// GetGroups handles GET /api/groups?name=&keys=Phase,Heater_Profile
func (h *Handler) GetGroups(w http.ResponseWriter, r *http.Request) {
	name, err := requiredParam(r, "name")
	if err != nil {
		writeError(w, r, err)
		return
	}

	grouping, err := h.Analytics.Groups(r.Context(), name, listParam(r, "keys"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewGroupsResponse(grouping))
}

// GetNestedGroups handles GET /api/groups/nested?name=&outer=&inner=
func (h *Handler) GetNestedGroups(w http.ResponseWriter, r *http.Request) {
	name, err := requiredParam(r, "name")
	if err != nil {
		writeError(w, r, err)
		return
	}
	outer, inner := listParam(r, "outer"), listParam(r, "inner")
	if len(outer) == 0 || len(inner) == 0 {
		writeError(w, r, fmt.Errorf("%w: outer and inner are required", errBadRequest))
		return
	}

	nested, err := h.Analytics.NestedGroups(r.Context(), name, outer, inner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewNestedGroupsResponse(outer, inner, nested))
}

// ============================================================================
// Helpers
// ============================================================================

func requiredParam(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", errBadRequest, name)
	}
	return v, nil
}

func getIntParam(r *http.Request, name string, defaultVal int) (int, error) {
	valStr := r.URL.Query().Get(name)
	if valStr == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
	}
	return val, nil
}

// listParam splits a comma-separated parameter, dropping empty items.
func listParam(r *http.Request, name string) []string {
	var out []string
	for _, v := range strings.Split(r.URL.Query().Get(name), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == 0 {
		slog.Debug("client went away", "path", r.URL.Path, "err", err)
		return
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, models.ErrorResponse{Error: err.Error()})
}

// statusFor maps an error to its HTTP status; 0 means nothing should be written.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, analysis.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 0
	default:
		return http.StatusInternalServerError
	}
}
