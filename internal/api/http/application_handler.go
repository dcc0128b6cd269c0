// internal/api/http/application_handler.go
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"form-orchestrator/internal/domain"
	"form-orchestrator/internal/metrics"
	"form-orchestrator/internal/usecase"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ApplicationHandler serves the submission gateway and the status query
// endpoint.
type ApplicationHandler struct {
	submissions *usecase.SubmissionService
	status      *usecase.StatusService
	logger      *slog.Logger
	validate    *validator.Validate
	tracer      trace.Tracer
}

// NewApplicationHandler creates a new ApplicationHandler and initializes the validator.
func NewApplicationHandler(submissions *usecase.SubmissionService, status *usecase.StatusService, logger *slog.Logger) *ApplicationHandler {
	validate := validator.New()

	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return &ApplicationHandler{
		submissions: submissions,
		status:      status,
		logger:      logger.With("component", "application-handler"),
		validate:    validate,
		tracer:      otel.Tracer("form-orchestrator-api"),
	}
}

// A helper struct to capture the status code
type instrumentedResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *instrumentedResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// RegisterRoutes registers the application routes to the http.ServeMux.
func (h *ApplicationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/applications", h.instrument("/applications", http.HandlerFunc(h.handleSubmit)))
	mux.Handle("/applications/status", h.instrument("/applications/status", http.HandlerFunc(h.handleStatus)))
}

func (h *ApplicationHandler) instrument(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := h.tracer.Start(r.Context(), "HTTP "+r.Method+" "+path, trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		))
		defer span.End()

		r = r.WithContext(ctx)

		iw := &instrumentedResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(iw, r)

		metrics.HttpRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(iw.statusCode)).Inc()

		span.SetAttributes(attribute.Int("http.status_code", iw.statusCode))
		if iw.statusCode >= 500 {
			span.SetStatus(codes.Error, "Server Error")
		}
	})
}

// handleSubmit starts a pipeline execution (POST /applications).
func (h *ApplicationHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "handler.Submit")
	defer span.End()

	var req SubmitApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.SetStatus(codes.Error, "Failed to decode request body")
		span.RecordError(err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		span.SetStatus(codes.Error, "Validation failed")
		span.RecordError(err)
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors,
				"Field '"+err.Field()+"' failed on the '"+err.Tag()+"' tag.",
			)
		}
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "Validation failed",
			"details": validationErrors,
		})
		return
	}

	executionID, err := h.submissions.Submit(ctx, req.ToDomainRequest())
	if err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			span.SetStatus(codes.Error, "Submission validation failed")
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":   "Validation failed",
				"details": []string{vErr.Error()},
			})
			return
		}
		span.SetStatus(codes.Error, "Failed to submit application")
		span.RecordError(err)
		h.logger.Error("error submitting application", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	span.SetAttributes(attribute.String("execution.id", executionID))

	writeJSON(w, http.StatusAccepted, SubmitApplicationResponse{ExecutionArn: executionID})
}

// handleStatus reports an execution's progress (GET /applications/status?executionArn=...).
func (h *ApplicationHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "handler.Status")
	defer span.End()

	executionID := r.URL.Query().Get("executionArn")
	if executionID == "" {
		http.Error(w, "executionArn query parameter is required", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("execution.id", executionID))

	view, err := h.status.Get(ctx, executionID)
	if err != nil {
		if errors.Is(err, domain.ErrExecutionNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		span.SetStatus(codes.Error, "Failed to get execution status")
		span.RecordError(err)
		h.logger.Error("error getting execution status", "execution_id", executionID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
