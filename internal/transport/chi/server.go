// Package chi exposes the test case generation API over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/intellix-ai/testgen/internal/domain"
	"github.com/intellix-ai/testgen/internal/usecase/export"
	generationuc "github.com/intellix-ai/testgen/internal/usecase/generation"
	healthuc "github.com/intellix-ai/testgen/internal/usecase/health"
	recorduc "github.com/intellix-ai/testgen/internal/usecase/record"
	"github.com/intellix-ai/testgen/internal/version"
)

// ErrorCode identifies an error category in API responses.
type ErrorCode string

const (
	CodeBadRequest             ErrorCode = "bad_request"
	CodeValidationFailed       ErrorCode = "validation_failed"
	CodeTicketNotFound         ErrorCode = "ticket_not_found"
	CodeRecordNotFound         ErrorCode = "record_not_found"
	CodeTrackerAuthFailed      ErrorCode = "tracker_auth_failed"
	CodeTrackerUnavailable     ErrorCode = "tracker_unavailable"
	CodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	CodeGenerationTimeout      ErrorCode = "generation_timeout"
	CodeModelUnavailable       ErrorCode = "model_unavailable"
	CodeGenerationFailed       ErrorCode = "generation_failed"
	CodeStoreUnavailable       ErrorCode = "store_unavailable"
	CodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the JSON body returned for every failed request.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server carries the HTTP handlers for the API endpoints.
type Server struct {
	generation    *generationuc.Service
	records       *recorduc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	generation *generationuc.Service,
	records *recorduc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		generation: generation,
		records:    records,
		health:     health,
		logger:     logger,
	}
	s.errorHandlers = []errorHandler{
		generationFailureHandler,
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrTicketNotFound, http.StatusNotFound, CodeTicketNotFound),
		sentinelHandler(domain.ErrRecordNotFound, http.StatusNotFound, CodeRecordNotFound),
		sentinelHandler(domain.ErrAuthFailure, http.StatusBadGateway, CodeTrackerAuthFailed),
		sentinelHandler(domain.ErrTrackerUnavailable, http.StatusBadGateway, CodeTrackerUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError),
		sentinelHandler(domain.ErrGenerationTimeout, http.StatusInternalServerError, CodeGenerationTimeout),
		sentinelHandler(domain.ErrModelUnavailable, http.StatusInternalServerError, CodeModelUnavailable),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusInternalServerError, CodeStoreUnavailable),
	}
	return s
}

// Routes registers all API endpoints on the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/", s.Banner)
	r.Post("/generate-test-case", s.GenerateTestCase)
	r.Get("/fetch-stored-case/{ticketID}", s.FetchStoredCase)
	r.Get("/get-test-case-csv/{ticketID}", s.GetTestCaseCSV)
	r.Post("/search-test-cases", s.SearchTestCases)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type generateRequest struct {
	TicketID    string              `json:"ticket_id"`
	Credentials *domain.Credentials `json:"credentials"`
}

// recordPayload is the wire shape of a stored record.
type recordPayload struct {
	TicketID    string            `json:"ticket_id"`
	Description string            `json:"description"`
	TestCases   []domain.TestCase `json:"test_cases"`
	StoredAt    time.Time         `json:"stored_at"`
}

type generateResponse struct {
	recordPayload
	// Cached reports that the record was served from the store without
	// calling the model.
	Cached bool `json:"cached"`
}

type searchRequest struct {
	Query string `json:"query"`
	// Limit distinguishes an absent field from an explicit value so that
	// explicit out-of-range limits are rejected rather than defaulted.
	Limit    *int     `json:"limit"`
	MinScore *float64 `json:"min_score"`
}

type searchResultItem struct {
	recordPayload
	Score float64 `json:"score"`
}

type searchResponse struct {
	Results []searchResultItem `json:"results"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func recordToPayload(rec *domain.TestCaseRecord) recordPayload {
	return recordPayload{
		TicketID:    rec.TicketID,
		Description: rec.Description,
		TestCases:   rec.TestCases,
		StoredAt:    rec.StoredAt,
	}
}

// GenerateTestCase handles POST /generate-test-case.
func (s *Server) GenerateTestCase(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.TicketID == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "ticket_id is required")
		return
	}

	var creds domain.Credentials
	if req.Credentials != nil {
		creds = *req.Credentials
	}

	result, err := s.generation.Generate(r.Context(), req.TicketID, creds)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{
		recordPayload: recordToPayload(result.Record),
		Cached:        result.Cached,
	})
}

// FetchStoredCase handles GET /fetch-stored-case/{ticketID}.
func (s *Server) FetchStoredCase(w http.ResponseWriter, r *http.Request) {
	rec, err := s.records.Fetch(r.Context(), chi.URLParam(r, "ticketID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, recordToPayload(rec))
}

// GetTestCaseCSV handles GET /get-test-case-csv/{ticketID}.
func (s *Server) GetTestCaseCSV(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")

	rec, err := s.records.Fetch(r.Context(), ticketID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	data, err := export.CSV(rec)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(rec.TicketID)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// SearchTestCases handles POST /search-test-cases.
func (s *Server) SearchTestCases(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	results, err := s.records.Search(r.Context(), req.Query, recorduc.SearchOptions{
		Limit:    req.Limit,
		MinScore: req.MinScore,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]searchResultItem, len(results))
	for i, res := range results {
		items[i] = searchResultItem{
			recordPayload: recordToPayload(&res.Record),
			Score:         res.Score,
		}
	}

	writeJSON(w, http.StatusOK, searchResponse{Results: items})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Banner handles GET /.
func (s *Server) Banner(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "testgen",
		"version": version.String(),
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrTicketNotFound,
		domain.ErrRecordNotFound,
		domain.ErrAuthFailure,
		domain.ErrTrackerUnavailable,
		domain.ErrEmbeddingProviderError,
		domain.ErrGenerationTimeout,
		domain.ErrModelUnavailable,
		domain.ErrGenerationMalformed,
		domain.ErrStoreUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// generationFailureHandler handles malformed model output, attaching the raw
// model answer so a caller can inspect what the model actually said.
func generationFailureHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrGenerationMalformed) {
		return false
	}
	var ge *domain.GenerationError
	if errors.As(err, &ge) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"code":       CodeGenerationFailed,
			"message":    msg,
			"raw_output": ge.Raw,
		})
		return true
	}
	writeError(w, http.StatusInternalServerError, CodeGenerationFailed, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
