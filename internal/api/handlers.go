package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/chronicle-lab/tsreport/internal/history"
	"github.com/chronicle-lab/tsreport/internal/services"
	"github.com/chronicle-lab/tsreport/internal/utils"
)

// Handlers exposes the report service over HTTP.
type Handlers struct {
	service *services.ReportService
	logger  *slog.Logger
}

func NewHandlers(service *services.ReportService, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{service: service, logger: logger}
}

// Routes builds the HTTP mux with all API endpoints.
func (h *Handlers) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/analyze", h.analyze)
	mux.HandleFunc("GET /api/v1/reports", h.listReports)
	mux.HandleFunc("GET /api/v1/reports/{id}", h.getReport)
	mux.HandleFunc("GET /healthz", h.health)
	return mux
}

type analyzeRequest struct {
	Path       string `json:"path"`
	FileName   string `json:"file_name,omitempty"`
	TimeColumn string `json:"time_column,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (h *Handlers) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}
	if req.Path == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "path is required")
		return
	}

	report, err := h.service.AnalyzeFile(r.Context(), services.AnalyzeRequest{
		Path:       req.Path,
		FileName:   req.FileName,
		TimeColumn: req.TimeColumn,
	})
	if err != nil {
		code := utils.ErrorCode(err)
		h.writeError(w, statusForCode(code), code, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handlers) listReports(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	summaries, err := h.service.ListReports(r.Context(), limit)
	if err != nil {
		h.logger.Error("list reports failed", slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, utils.CodeInternal, "failed to list reports")
		return
	}
	if summaries == nil {
		summaries = []history.Summary{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"reports": summaries})
}

func (h *Handlers) getReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	report, err := h.service.GetReport(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "not_found", "report not found")
		return
	}
	if err != nil {
		h.logger.Error("get report failed", slog.String("report_id", id), slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, utils.CodeInternal, "failed to load report")
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handlers) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statusForCode(code string) int {
	switch code {
	case utils.CodeFileNotFound:
		return http.StatusNotFound
	case utils.CodeUnsupportedFormat, utils.CodeEmptyDataset, utils.CodeNoNumericColumns:
		return http.StatusUnprocessableEntity
	case utils.CodeInvalidConfig:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("response encoding failed", slog.Any("error", err))
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, code, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg, Code: code})
}
