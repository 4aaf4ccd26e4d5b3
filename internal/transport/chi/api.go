package chi

// ErrorCode is the machine-readable error code of an ErrorResponse.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest            ErrorCode = "bad_request"
	ErrorCodeUnauthorized          ErrorCode = "unauthorized"
	ErrorCodeValidationFailed      ErrorCode = "validation_failed"
	ErrorCodeNotFound              ErrorCode = "not_found"
	ErrorCodeVectorDimMismatch     ErrorCode = "vector_dim_mismatch"
	ErrorCodeRateLimited           ErrorCode = "rate_limited"
	ErrorCodeEmbeddingProvider     ErrorCode = "embedding_provider_error"
	ErrorCodeCollectionUnavailable ErrorCode = "collection_unavailable"
	ErrorCodeIngestionFailed       ErrorCode = "ingestion_failed"
	ErrorCodeInternal              ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// RetrieveRequest is the body of POST /v1/retrieve.
type RetrieveRequest struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k,omitempty"`
}

// RetrieveResultItem is one ranked result.
type RetrieveResultItem struct {
	ID             string         `json:"id"`
	Document       string         `json:"document"`
	Metadata       map[string]any `json:"metadata"`
	Source         string         `json:"source"`
	RawScore       float64        `json:"raw_score"`
	RelevanceScore float64        `json:"relevance_score"`
}

// RetrieveResponse is the body of a successful retrieve.
type RetrieveResponse struct {
	Results []RetrieveResultItem `json:"results"`
	Total   int                  `json:"total"`
}

// StatsResponse is the body of GET /v1/stats.
type StatsResponse struct {
	Collections      map[string]int `json:"collections"`
	Total            int            `json:"total"`
	LexicalDocuments int            `json:"lexical_documents"`
}

// AddDocumentItem is one document in POST /v1/documents.
type AddDocumentItem struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AddDocumentsRequest is the body of POST /v1/documents.
type AddDocumentsRequest struct {
	Documents []AddDocumentItem `json:"documents"`
}

// AddDocumentsResponse reports the ids assigned to added documents.
type AddDocumentsResponse struct {
	Added int      `json:"added"`
	IDs   []string `json:"ids"`
}

// FetchRequest is the body of POST /v1/fetch.
type FetchRequest struct {
	Topic      string `json:"topic"`
	MaxResults int    `json:"max_results,omitempty"`
}

// FetchResponse reports whether any literature was stored.
type FetchResponse struct {
	Success bool `json:"success"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
