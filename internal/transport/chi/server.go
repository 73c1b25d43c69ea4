package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/entry"
	"github.com/kailas-cloud/searchdex/internal/domain/search/response"
	"github.com/kailas-cloud/searchdex/internal/logger"
	"github.com/kailas-cloud/searchdex/internal/metrics"
	healthuc "github.com/kailas-cloud/searchdex/internal/usecase/health"
)

const defaultMaxBatchSize = 500

// searchService is the consumer interface for the search facade (ISP).
type searchService interface {
	AddAll(ctx context.Context, entries ...entry.Entry) ([]string, error)
	Query(ctx context.Context, q string, params ...any) (*response.Response, error)
	Delete(ctx context.Context, ids ...string) error
	DeleteAll(ctx context.Context) error
	DeleteByQuery(ctx context.Context, q string, params ...any) error
	Commit(ctx context.Context) error
	Refresh(ctx context.Context) error
}

// healthChecker reports component health.
type healthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the searchdex HTTP API.
type Server struct {
	search        searchService
	health        healthChecker
	maxBatchSize  int
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. maxBatchSize <= 0 uses the default.
func NewServer(search searchService, health healthChecker, maxBatchSize int, logger *zap.Logger) *Server {
	if maxBatchSize <= 0 {
		maxBatchSize = defaultMaxBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		search:       search,
		health:       health,
		maxBatchSize: maxBatchSize,
		logger:       logger,
	}
	s.errorHandlers = []errorHandler{
		searchErrorHandler(domain.ErrInvalidQuery, http.StatusBadRequest, CodeInvalidQuery),
		sentinelHandler(domain.ErrInvalidParams, http.StatusBadRequest, CodeInvalidParams, true),
		sentinelHandler(domain.ErrInvalidIndexEntry, http.StatusBadRequest, CodeInvalidEntry, true),
		sentinelHandler(domain.ErrIndexEntryMapping, http.StatusBadRequest, CodeMappingFailed, true),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound, false),
		searchErrorHandler(domain.ErrServerUnavailable, http.StatusServiceUnavailable, CodeServerUnavailable),
		searchErrorHandler(domain.ErrUncategorized, http.StatusBadGateway, CodeBackendError),
	}
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Handle(metrics.ScrapePath, promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Post("/entries", s.AddEntries)
		r.Delete("/entries", s.DeleteAllEntries)
		r.Delete("/entries/{id}", s.DeleteEntry)
		r.Post("/query", s.Query)
		r.Post("/delete-by-query", s.DeleteByQuery)
		r.Post("/commit", s.Commit)
		r.Post("/refresh", s.Refresh)
	})
}

// AddEntries handles POST /v1/entries.
func (s *Server) AddEntries(w http.ResponseWriter, r *http.Request) {
	var req AddEntriesRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Entries) > s.maxBatchSize {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			fmt.Sprintf("batch size %d exceeds limit %d", len(req.Entries), s.maxBatchSize))
		return
	}

	entries := make([]entry.Entry, len(req.Entries))
	for i, e := range req.Entries {
		entries[i] = entry.Entry(e)
	}

	ids, err := s.search.AddAll(r.Context(), entries...)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, AddEntriesResponse{IDs: ids})
}

// DeleteEntry handles DELETE /v1/entries/{id}.
func (s *Server) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.search.Delete(r.Context(), id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAllEntries handles DELETE /v1/entries.
func (s *Server) DeleteAllEntries(w http.ResponseWriter, r *http.Request) {
	if err := s.search.DeleteAll(r.Context()); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Query handles POST /v1/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !s.decode(w, r, &req) {
		return
	}

	resp, err := s.search.Query(r.Context(), req.Query, req.Params...)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	out := QueryResponse{
		TookMS:  resp.Elapsed.Milliseconds(),
		Total:   resp.Total,
		Entries: make([]map[string]any, len(resp.Entries)),
		Scores:  resp.Scores,
	}
	for i, e := range resp.Entries {
		out.Entries[i] = e
	}
	writeJSON(w, http.StatusOK, out)
}

// DeleteByQuery handles POST /v1/delete-by-query.
func (s *Server) DeleteByQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.search.DeleteByQuery(r.Context(), req.Query, req.Params...); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Commit handles POST /v1/commit.
func (s *Server) Commit(w http.ResponseWriter, r *http.Request) {
	if err := s.search.Commit(r.Context()); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Refresh handles POST /v1/refresh.
func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := s.search.Refresh(r.Context()); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Backend: report.Backend,
		Checks:  checks,
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := decodeAndValidate(r, dst)
	if err == nil {
		return true
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    CodeValidationFailed,
			Message: ve.Error(),
			Fields:  ve.Fields(),
		})
		return false
	}
	writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// Client errors expose the full message; others only the sentinel text.
func sentinelHandler(sentinel error, status int, code string, detailed bool) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		msg := sentinel.Error()
		if detailed {
			msg = err.Error()
		}
		writeError(w, status, code, msg)
		return true
	}
}

// searchErrorHandler matches a translated backend failure of the given kind
// and reports its message and offending query.
func searchErrorHandler(kind error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, kind) {
			return false
		}
		resp := ErrorResponse{Code: code, Message: kind.Error()}
		var se *domain.SearchError
		if errors.As(err, &se) {
			if se.Message != "" {
				resp.Message = kind.Error() + ": " + se.Message
			}
			resp.Query = se.Query
		}
		writeJSON(w, status, resp)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
