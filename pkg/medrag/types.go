package medrag

// Source labels of retrieval results.
const (
	SourcePrimary    = "main"
	SourceLiterature = "pubmed"
	SourceLexical    = "bm25"
)

// Document is a caller-supplied document for Add.
type Document struct {
	Content  string
	Metadata map[string]any
}

// Result is one ranked retrieval result.
type Result struct {
	ID        string
	Content   string
	Metadata  map[string]any
	Source    string
	RawScore  float64
	Relevance float64
}

// Stats summarizes the indexed corpus.
type Stats struct {
	Collections      map[string]int // name → document count, 0 when absent or uncountable
	Total            int
	LexicalDocuments int
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component → "ok"/"error"
}
