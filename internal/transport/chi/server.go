package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/fusedex/internal/domain"
	"github.com/kailas-cloud/fusedex/internal/domain/search/request"
	"github.com/kailas-cloud/fusedex/internal/domain/search/result"
	documentuc "github.com/kailas-cloud/fusedex/internal/usecase/document"
	healthuc "github.com/kailas-cloud/fusedex/internal/usecase/health"
	retrievaluc "github.com/kailas-cloud/fusedex/internal/usecase/retrieval"
)

// Error codes returned in JSON error responses.
const (
	codeBadRequest             = "bad_request"
	codeValidationFailed       = "validation_failed"
	codeDimensionMismatch      = "dimension_mismatch"
	codeDocumentNotFound       = "document_not_found"
	codeSourceFailure          = "source_failure"
	codeSourcesUnavailable     = "sources_unavailable"
	codeIndexUnavailable       = "index_unavailable"
	codeEmbeddingProviderError = "embedding_provider_error"
	codeInternalError          = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API over the retrieval and document services.
type Server struct {
	retrieval     *retrievaluc.Service
	documents     *documentuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	retrieval *retrievaluc.Service,
	documents *documentuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		retrieval: retrieval,
		documents: documents,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		dimensionMismatchHandler,
		sourceFailureHandler,
		sentinelHandler(domain.ErrInvalidOptions, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProviderError),
		sentinelHandler(domain.ErrBothSourcesFailed, http.StatusServiceUnavailable, codeSourcesUnavailable),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, codeIndexUnavailable),
	}
	return s
}

// Routes mounts all API routes on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/search", s.Search)
	r.Put("/documents/{id}", s.UpsertDocument)
	r.Get("/documents/{id}", s.GetDocument)
	r.Delete("/documents/{id}", s.DeleteDocument)
	r.Post("/documents:batch", s.BatchUpsert)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// searchRequest is the POST /search body.
type searchRequest struct {
	Query          string    `json:"query"`
	Embedding      []float32 `json:"embedding,omitempty"`
	PerSourceLimit int       `json:"per_source_limit,omitempty"`
	Limit          int       `json:"limit,omitempty"`
	LexicalWeight  *float64  `json:"lexical_weight,omitempty"`
	VectorWeight   *float64  `json:"vector_weight,omitempty"`
	RRFK           int       `json:"rrf_k,omitempty"`
	OnPartialFail  string    `json:"on_partial_failure,omitempty"`
}

// searchResultItem is one fused hit in the response.
type searchResultItem struct {
	ID      string   `json:"id"`
	Score   float64  `json:"score"`
	Content string   `json:"content"`
	Sources []string `json:"sources"`
}

// searchResponse is the POST /search reply.
type searchResponse struct {
	Items         []searchResultItem `json:"items"`
	Total         int                `json:"total"`
	Degraded      bool               `json:"degraded"`
	MissingSource string             `json:"missing_source,omitempty"`
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	domReq, err := request.New(request.Params{
		Query:          req.Query,
		Embedding:      req.Embedding,
		PerSourceLimit: req.PerSourceLimit,
		Limit:          req.Limit,
		LexicalWeight:  req.LexicalWeight,
		VectorWeight:   req.VectorWeight,
		RRFK:           req.RRFK,
		OnPartialFail:  request.Policy(req.OnPartialFail),
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp, err := s.retrieval.Search(r.Context(), domReq)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]searchResultItem, len(resp.Results))
	for i := range resp.Results {
		items[i] = resultToItem(&resp.Results[i])
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Items:         items,
		Total:         len(items),
		Degraded:      resp.Degraded,
		MissingSource: string(resp.MissingSource),
	})
}

// upsertDocumentRequest is the PUT /documents/{id} body.
type upsertDocumentRequest struct {
	Content string    `json:"content"`
	Vector  []float32 `json:"vector,omitempty"`
}

// documentResponse is a stored document on the wire.
type documentResponse struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// UpsertDocument handles PUT /documents/{id}.
func (s *Server) UpsertDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req upsertDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	created, err := s.documents.Upsert(r.Context(), id, req.Content, req.Vector)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		w.Header().Set("Location", fmt.Sprintf("/api/v1/documents/%s", id))
	}

	writeJSON(w, status, documentResponse{ID: id, Content: req.Content})
}

// GetDocument handles GET /documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, err := s.documents.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, documentResponse{ID: doc.ID(), Content: doc.Content()})
}

// DeleteDocument handles DELETE /documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.documents.Delete(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// batchUpsertRequest is the POST /documents:batch body.
type batchUpsertRequest struct {
	Documents []batchUpsertItem `json:"documents"`
}

type batchUpsertItem struct {
	ID      string    `json:"id"`
	Content string    `json:"content"`
	Vector  []float32 `json:"vector,omitempty"`
}

// batchResultItem reports the outcome for one batch item.
type batchResultItem struct {
	ID    string         `json:"id"`
	Error *errorResponse `json:"error,omitempty"`
}

// batchUpsertResponse is the POST /documents:batch reply.
type batchUpsertResponse struct {
	Items     []batchResultItem `json:"items"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// BatchUpsert handles POST /documents:batch.
func (s *Server) BatchUpsert(w http.ResponseWriter, r *http.Request) {
	var req batchUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	items := make([]documentuc.BatchItem, len(req.Documents))
	for i, d := range req.Documents {
		items[i] = documentuc.BatchItem{ID: d.ID, Content: d.Content, Vector: d.Vector}
	}

	results, err := s.documents.UpsertBatch(r.Context(), items)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	succeeded, failed := 0, 0
	out := make([]batchResultItem, len(results))
	for i, res := range results {
		out[i] = batchResultItem{ID: res.ID}
		if res.Err != nil {
			failed++
			out[i].Error = &errorResponse{
				Code:    batchErrorCode(res.Err),
				Message: safeDomainMessage(res.Err),
			}
		} else {
			succeeded++
		}
	}

	writeJSON(w, http.StatusOK, batchUpsertResponse{
		Items:     out,
		Succeeded: succeeded,
		Failed:    failed,
	})
}

// healthResponse is the GET /health reply.
type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func resultToItem(r *result.Fused) searchResultItem {
	sources := make([]string, len(r.Sources()))
	for i, src := range r.Sources() {
		sources[i] = string(src)
	}
	return searchResultItem{
		ID:      r.ID(),
		Score:   r.Score(),
		Content: r.Content(),
		Sources: sources,
	}
}

// errorResponse is the JSON error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Got     *int   `json:"got,omitempty"`
	Want    *int   `json:"want,omitempty"`
	Source  string `json:"source,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidOptions,
		domain.ErrDimensionMismatch,
		domain.ErrDocumentNotFound,
		domain.ErrPartialSourceFailure,
		domain.ErrBothSourcesFailed,
		domain.ErrIndexUnavailable,
		domain.ErrEmbeddingProviderError,
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

// dimensionMismatchHandler reports the offending sizes alongside the error.
func dimensionMismatchHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		return false
	}
	resp := errorResponse{Code: codeDimensionMismatch, Message: msg}
	var dme *domain.DimensionMismatchError
	if errors.As(err, &dme) {
		resp.Got = &dme.Got
		resp.Want = &dme.Want
	}
	writeJSON(w, http.StatusBadRequest, resp)
	return true
}

// sourceFailureHandler names the failed source on a fail-policy response.
func sourceFailureHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrPartialSourceFailure) {
		return false
	}
	resp := errorResponse{Code: codeSourceFailure, Message: msg}
	var sfe *domain.SourceFailureError
	if errors.As(err, &sfe) {
		resp.Source = sfe.Source
	}
	writeJSON(w, http.StatusBadGateway, resp)
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
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func batchErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidOptions):
		return codeValidationFailed
	case errors.Is(err, domain.ErrDimensionMismatch):
		return codeDimensionMismatch
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		return codeEmbeddingProviderError
	default:
		return codeInternalError
	}
}
