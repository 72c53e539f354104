package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"store-monitor/internal/models"
	"store-monitor/internal/repository"
	"store-monitor/internal/services"
	"store-monitor/pkg/logging"
	"store-monitor/pkg/metrics"
)

// ServiceName identifies the API in health and index responses
const ServiceName = "store-monitor-api"

// Pinger reports whether a backing store is reachable
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// ReportHandler handles the report trigger and poll endpoints
type ReportHandler struct {
	jobs     *services.JobService
	exporter *services.ExportService
	store    Pinger
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

// NewReportHandler creates a new report handler
func NewReportHandler(
	jobs *services.JobService,
	exporter *services.ExportService,
	store Pinger,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *ReportHandler {
	return &ReportHandler{
		jobs:     jobs,
		exporter: exporter,
		store:    store,
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// TriggerResponse is returned by POST /trigger_report
type TriggerResponse struct {
	ReportID string `json:"report_id"`
}

// StatusResponse describes a report that has no downloadable result
type StatusResponse struct {
	ReportID    string     `json:"report_id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// ReportResponse is the JSON rendering of a completed report
type ReportResponse struct {
	ReportID      string             `json:"report_id"`
	Status        string             `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty"`
	ReferenceTime *time.Time         `json:"reference_time,omitempty"`
	Rows          []models.ReportRow `json:"rows"`
	Summary       services.Summary   `json:"summary"`
}

// TriggerReport handles POST /trigger_report
func (h *ReportHandler) TriggerReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	job, err := h.jobs.Trigger(ctx)
	if err != nil {
		h.logger.Error(ctx, "[API_TRIGGER_ERROR] Failed to trigger report", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", "/trigger_report")
		h.sendError(w, r, "failed to trigger report", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/trigger_report", r.Method, "200")
	h.sendJSON(w, TriggerResponse{ReportID: job.ReportID}, http.StatusOK)
}

// GetReport handles GET /get_report/{report_id}. A running or failed job yields a JSON
// status; a completed job yields the report as csv (default), xlsx or json.
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reportID := mux.Vars(r)["report_id"]

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" && format != "json" {
		h.sendError(w, r, "invalid format, expected csv, xlsx or json", http.StatusBadRequest)
		return
	}

	job, err := h.jobs.Status(ctx, reportID)
	var notFound *repository.NotFoundError
	if errors.As(err, &notFound) {
		h.metrics.RecordAPIError("not_found", "/get_report")
		h.sendError(w, r, "report not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error(ctx, "[API_GET_REPORT_ERROR] Failed to get report", logging.Fields{
			"report_id": reportID,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/get_report")
		h.sendError(w, r, "failed to retrieve report", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/get_report", r.Method, "200")

	if job.State != models.JobComplete {
		h.sendJSON(w, StatusResponse{
			ReportID:    job.ReportID,
			Status:      string(job.State),
			CreatedAt:   job.CreatedAt,
			CompletedAt: job.CompletedAt,
			Error:       job.Error,
		}, http.StatusOK)
		return
	}

	switch format {
	case "json":
		h.sendJSON(w, ReportResponse{
			ReportID:      job.ReportID,
			Status:        string(job.State),
			CreatedAt:     job.CreatedAt,
			CompletedAt:   job.CompletedAt,
			ReferenceTime: job.ReferenceTime,
			Rows:          job.Rows,
			Summary:       services.Summarize(job.Rows),
		}, http.StatusOK)
	case "xlsx":
		var buf bytes.Buffer
		if err := h.exporter.RenderXLSX(&buf, job.Rows); err != nil {
			h.renderFailed(w, r, reportID, err)
			return
		}
		h.sendFile(w, buf.Bytes(), "report_"+reportID+".xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	default:
		var buf bytes.Buffer
		if err := h.exporter.WriteCSV(&buf, job.Rows); err != nil {
			h.renderFailed(w, r, reportID, err)
			return
		}
		h.sendFile(w, buf.Bytes(), "report_"+reportID+".csv", "text/csv")
	}
}

// Index handles GET /
func (h *ReportHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, map[string]interface{}{
		"service": ServiceName,
		"endpoints": map[string]string{
			"trigger_report": "POST /trigger_report",
			"get_report":     "GET /get_report/{report_id}",
			"health":         "GET /health",
			"docs":           "GET /api/docs",
		},
	}, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *ReportHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"service":   ServiceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

// ReadinessCheck handles GET /health/ready
func (h *ReportHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.store.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[READINESS_CHECK] Store unavailable", logging.Fields{
			"error": err.Error(),
		})
		h.sendError(w, r, "store unavailable", http.StatusServiceUnavailable)
		return
	}

	h.sendJSON(w, map[string]string{"status": "ready"}, http.StatusOK)
}

func (h *ReportHandler) renderFailed(w http.ResponseWriter, r *http.Request, reportID string, err error) {
	h.logger.Error(r.Context(), "[API_RENDER_ERROR] Failed to render report", logging.Fields{
		"report_id": reportID,
	}, err)
	h.metrics.RecordAPIError("render_error", "/get_report")
	h.sendError(w, r, "failed to render report", http.StatusInternalServerError)
}

// sendFile sends a downloadable body
func (h *ReportHandler) sendFile(w http.ResponseWriter, body []byte, filename, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// sendJSON sends a JSON response
func (h *ReportHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *ReportHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(routeName(r), r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all report API routes
func (h *ReportHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/", h.Index).Methods("GET")
	router.HandleFunc("/trigger_report", h.TriggerReport).Methods("POST")
	router.HandleFunc("/get_report/{report_id}", h.GetReport).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/health/ready", h.ReadinessCheck).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
}
