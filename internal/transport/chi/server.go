// Package chi exposes the query, ingest, and session APIs over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	healthuc "github.com/kailas-cloud/ragdex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/ragdex/internal/usecase/ingest"
)

// answerService is the consumer interface for the query pipeline (ISP).
type answerService interface {
	Answer(ctx context.Context, sessionID, question string) (domain.Answer, error)
	History(sessionID string) ([]domain.Turn, error)
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API server.
type Server struct {
	answers       answerService
	ingest        *ingestuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	answers answerService,
	ingest *ingestuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		answers: answers,
		ingest:  ingest,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument"),
		sentinelHandler(domain.ErrInvalidSession, http.StatusBadRequest, "invalid_session"),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, "vector_dim_mismatch"),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, "embedding_provider_error"),
		sentinelHandler(domain.ErrGenerationFailed, http.StatusBadGateway, "generation_failed"),
		sentinelHandler(domain.ErrSourceUnavailable, http.StatusInternalServerError, "source_unavailable"),
		sentinelHandler(domain.ErrIndexCorrupt, http.StatusInternalServerError, "index_corrupt"),
	}
	return s
}

// Routes mounts the API handlers on the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/query", s.Query)
		r.Post("/ingest", s.Ingest)
		r.Get("/sessions/{sessionID}/history", s.SessionHistory)
	})
}

type queryRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type sourceItem struct {
	DocID   string `json:"doc_id"`
	Ordinal int    `json:"ordinal"`
	Heading string `json:"heading,omitempty"`
	Text    string `json:"text"`
}

type queryResponse struct {
	SessionID string       `json:"session_id"`
	Answer    string       `json:"answer"`
	Sources   []sourceItem `json:"sources"`
}

// Query handles POST /v1/query. An empty session_id mints a fresh session.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	answer, err := s.answers.Answer(r.Context(), req.SessionID, req.Question)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	sources := make([]sourceItem, len(answer.Sources))
	for i, c := range answer.Sources {
		sources[i] = sourceItem{
			DocID:   c.DocumentID(),
			Ordinal: c.Ordinal(),
			Heading: c.Heading(),
			Text:    c.Text(),
		}
	}

	writeJSON(w, http.StatusOK, queryResponse{
		SessionID: answer.SessionID,
		Answer:    answer.Text,
		Sources:   sources,
	})
}

type ingestDocResult struct {
	DocID  string `json:"doc_id"`
	Chunks int    `json:"chunks"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type ingestResponse struct {
	Documents int               `json:"documents"`
	Chunks    int               `json:"chunks"`
	Failed    int               `json:"failed"`
	Results   []ingestDocResult `json:"results"`
}

// Ingest handles POST /v1/ingest: a full corpus re-ingestion run.
func (s *Server) Ingest(w http.ResponseWriter, r *http.Request) {
	report, err := s.ingest.Run(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	results := make([]ingestDocResult, 0, report.Documents())
	for _, res := range report.Results() {
		item := ingestDocResult{
			DocID:  res.DocID(),
			Chunks: res.Chunks(),
			Status: string(res.Status()),
		}
		if res.Err() != nil {
			item.Error = safeDomainMessage(res.Err())
		}
		results = append(results, item)
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Documents: report.Documents(),
		Chunks:    report.Chunks(),
		Failed:    report.Failed(),
		Results:   results,
	})
}

type historyTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
	At   string `json:"at"`
}

type historyResponse struct {
	SessionID string        `json:"session_id"`
	Turns     []historyTurn `json:"turns"`
}

// SessionHistory handles GET /v1/sessions/{sessionID}/history.
func (s *Server) SessionHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	turns, err := s.answers.History(sessionID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]historyTurn, len(turns))
	for i, t := range turns {
		items[i] = historyTurn{
			Role: string(t.Role()),
			Text: t.Text(),
			At:   t.At().UTC().Format(timeFormat),
		}
	}

	writeJSON(w, http.StatusOK, historyResponse{
		SessionID: sessionID,
		Turns:     items,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	statuses, ok := s.health.Check(r.Context())

	checks := make(map[string]string, len(statuses))
	for _, st := range statuses {
		if st.OK {
			checks[st.Name] = "ok"
		} else {
			checks[st.Name] = st.Error
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !ok {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidArgument,
		domain.ErrInvalidSession,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingProviderError,
		domain.ErrGenerationFailed,
		domain.ErrSourceUnavailable,
		domain.ErrIndexCorrupt,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
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
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
