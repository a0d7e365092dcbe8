// Package httpapi exposes the diagnostic interview over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/abhisek/orgdiag/internal/diagnosis"
	"github.com/abhisek/orgdiag/internal/interview"
	"github.com/abhisek/orgdiag/internal/protocol"
)

// CallerHeader carries the authenticated company id, set by the gateway in
// front of this service.
const CallerHeader = "X-Company-ID"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// Advancer runs one interview exchange.
type Advancer interface {
	Advance(ctx context.Context, req interview.AdvanceRequest) (*interview.AdvanceResult, error)
}

// RecordReader looks up diagnostic records.
type RecordReader interface {
	FindByID(ctx context.Context, id string) (*diagnosis.Record, error)
}

// Handler serves the interview API.
type Handler struct {
	interviews Advancer
	records    RecordReader
	logger     *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(interviews Advancer, records RecordReader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{interviews: interviews, records: records, logger: logger}
}

// NewRouter returns the service router with global middleware installed.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))

	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the interview routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/diagnostic/messages", h.PostMessage)
		r.Get("/diagnostics/{id}", h.GetDiagnostic)
	})
}

type messageRequest struct {
	SessionID *string `json:"sessionId"`
	Message   string  `json:"message"`
}

// PostMessage handles POST /api/diagnostic/messages.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var body messageRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		ErrorDetails(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	req := interview.AdvanceRequest{
		CallerID:  r.Header.Get(CallerHeader),
		Utterance: body.Message,
	}
	// Only null or an absent sessionId starts a new interview.
	if body.SessionID != nil {
		if strings.TrimSpace(*body.SessionID) == "" {
			Error(w, http.StatusBadRequest, "sessionId must be null or a session id")
			return
		}
		req.SessionID = *body.SessionID
	}

	res, err := h.interviews.Advance(r.Context(), req)
	if err != nil {
		h.writeAdvanceError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

type diagnosticResponse struct {
	ID            string                 `json:"id"`
	CompanyID     string                 `json:"companyId"`
	SessionID     string                 `json:"sessionId"`
	FinalReport   string                 `json:"finalReport"`
	CollectedData protocol.CollectedData `json:"collectedData"`
	CreatedAt     time.Time              `json:"createdAt"`
}

// GetDiagnostic handles GET /api/diagnostics/{id}. Records of other
// companies are reported as not found.
func (h *Handler) GetDiagnostic(w http.ResponseWriter, r *http.Request) {
	caller := r.Header.Get(CallerHeader)
	if caller == "" {
		Error(w, http.StatusBadRequest, "missing "+CallerHeader+" header")
		return
	}

	rec, err := h.records.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Error("load diagnostic failed", zap.Error(err))
		ErrorDetails(w, http.StatusInternalServerError, "failed to load diagnostic", err.Error())
		return
	}
	if rec == nil || rec.CompanyID != caller {
		Error(w, http.StatusNotFound, "diagnostic not found")
		return
	}

	JSON(w, http.StatusOK, diagnosticResponse{
		ID:            rec.ID,
		CompanyID:     rec.CompanyID,
		SessionID:     rec.SessionID,
		FinalReport:   rec.FinalReport,
		CollectedData: rec.Data,
		CreatedAt:     rec.CreatedAt,
	})
}

func (h *Handler) writeAdvanceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		processing *protocol.ProcessingError
		violation  *protocol.ContractViolationError
	)
	switch {
	case errors.Is(err, interview.ErrInvalidRequest):
		ErrorDetails(w, http.StatusBadRequest, "invalid request", err.Error())
	case errors.Is(err, interview.ErrForbidden):
		ErrorDetails(w, http.StatusForbidden, "access denied", err.Error())
	case errors.Is(err, interview.ErrNotFound):
		ErrorDetails(w, http.StatusNotFound, "session not found", err.Error())
	case errors.As(err, &processing):
		ErrorDetails(w, http.StatusBadGateway, "failed to process message", err.Error())
	case errors.As(err, &violation):
		ErrorDetails(w, http.StatusBadGateway, "failed to process message", err.Error())
	default:
		h.logger.Error("advance failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		ErrorDetails(w, http.StatusInternalServerError, "failed to process message", err.Error())
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// ErrorDetails writes a JSON error response with a details field.
func ErrorDetails(w http.ResponseWriter, status int, message, details string) {
	JSON(w, status, map[string]string{"error": message, "details": details})
}

// requestLogger logs one line per request.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
