package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/medrag/internal/domain"
	"github.com/kailas-cloud/medrag/internal/domain/document"
	domret "github.com/kailas-cloud/medrag/internal/domain/retrieval"
	logpkg "github.com/kailas-cloud/medrag/internal/logger"
	documentuc "github.com/kailas-cloud/medrag/internal/usecase/document"
	healthuc "github.com/kailas-cloud/medrag/internal/usecase/health"
)

// maxBodyBytes caps request bodies; a full document batch fits comfortably.
const maxBodyBytes = 32 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Retriever is the retrieval surface served over HTTP.
type Retriever interface {
	Retrieve(ctx context.Context, q string, topK int) ([]domret.Result, error)
	Stats(ctx context.Context) domret.Stats
	Enrich(ctx context.Context, topic string, maxResults int) (bool, error)
	DefaultTopK() int
}

// DocumentAdder adds caller-supplied documents.
type DocumentAdder interface {
	Add(ctx context.Context, items []documentuc.Input) ([]string, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server holds the HTTP handlers.
type Server struct {
	retrieval     Retriever
	documents     DocumentAdder
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(retrieval Retriever, documents DocumentAdder, health HealthChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		retrieval: retrieval,
		documents: documents,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrInvalidDocument, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, ErrorCodeVectorDimMismatch),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, ErrorCodeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorCodeEmbeddingProvider),
		sentinelHandler(domain.ErrIngestionFailed, http.StatusBadGateway, ErrorCodeIngestionFailed),
		sentinelHandler(domain.ErrCollectionUnavailable,
			http.StatusServiceUnavailable, ErrorCodeCollectionUnavailable),
	}
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/retrieve", s.RetrievePost)
		r.Get("/retrieve", s.RetrieveGet)
		r.Get("/stats", s.Stats)
		r.Post("/documents", s.AddDocuments)
		r.Post("/fetch", s.Fetch)
	})
}

// RetrievePost handles POST /v1/retrieve.
func (s *Server) RetrievePost(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if !s.decode(w, r, &req) {
		return
	}
	topK := s.retrieval.DefaultTopK()
	if req.TopK != nil {
		topK = *req.TopK
	}
	s.retrieve(w, r, req.Query, topK)
}

// RetrieveGet handles GET /v1/retrieve?q=&top_k=.
func (s *Server) RetrieveGet(w http.ResponseWriter, r *http.Request) {
	var (
		q    string
		topK *int
	)
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, true, "q", query, &q); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter q: "+err.Error())
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "top_k", query, &topK); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter top_k: "+err.Error())
		return
	}

	k := s.retrieval.DefaultTopK()
	if topK != nil {
		k = *topK
	}
	s.retrieve(w, r, q, k)
}

func (s *Server) retrieve(w http.ResponseWriter, r *http.Request, q string, topK int) {
	results, err := s.retrieval.Retrieve(r.Context(), q, topK)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]RetrieveResultItem, len(results))
	for i := range results {
		items[i] = resultToAPI(&results[i])
	}
	writeJSON(w, http.StatusOK, RetrieveResponse{Results: items, Total: len(items)})
}

// Stats handles GET /v1/stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	st := s.retrieval.Stats(r.Context())
	cols := make(map[string]int, len(st.Collections))
	for _, c := range st.Collections {
		cols[c.Name] = c.Count
	}
	writeJSON(w, http.StatusOK, StatsResponse{
		Collections:      cols,
		Total:            st.Total,
		LexicalDocuments: st.LexicalDocuments,
	})
}

// AddDocuments handles POST /v1/documents.
func (s *Server) AddDocuments(w http.ResponseWriter, r *http.Request) {
	var req AddDocumentsRequest
	if !s.decode(w, r, &req) {
		return
	}

	items := make([]documentuc.Input, len(req.Documents))
	for i, d := range req.Documents {
		items[i] = documentuc.Input{Content: d.Content, Metadata: d.Metadata}
	}
	ids, err := s.documents.Add(r.Context(), items)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, AddDocumentsResponse{Added: len(ids), IDs: ids})
}

// Fetch handles POST /v1/fetch.
func (s *Server) Fetch(w http.ResponseWriter, r *http.Request) {
	var req FetchRequest
	if !s.decode(w, r, &req) {
		return
	}
	ok, err := s.retrieval.Enrich(r.Context(), req.Topic, req.MaxResults)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FetchResponse{Success: ok})
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
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrInvalidDocument,
		domain.ErrVectorDimMismatch,
		domain.ErrNotFound,
		domain.ErrRateLimited,
		domain.ErrEmbeddingProviderError,
		domain.ErrIngestionFailed,
		domain.ErrCollectionUnavailable,
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

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternal, "internal error")
}

func resultToAPI(r *domret.Result) RetrieveResultItem {
	meta := r.Metadata()
	if meta == nil {
		meta = map[string]any{}
	}
	if v, ok := meta["title"]; !ok || v == nil {
		meta["title"] = document.Unknown
	}
	return RetrieveResultItem{
		ID:             r.ID(),
		Document:       r.Document(),
		Metadata:       meta,
		Source:         r.Source().Name,
		RawScore:       r.RawScore(),
		RelevanceScore: r.RelevanceScore(),
	}
}
