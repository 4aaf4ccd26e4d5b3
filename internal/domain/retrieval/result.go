// Package retrieval holds the value types produced by a retrieve call.
package retrieval

import "github.com/kailas-cloud/medrag/internal/domain/document"

// Kind distinguishes vector sources from the lexical index.
type Kind int

const (
	// KindVector marks a nearest-neighbour collection.
	KindVector Kind = iota + 1
	// KindLexical marks the BM25 index.
	KindLexical
)

// LexicalSource is the source label of BM25 results.
const LexicalSource = "bm25"

// Source names the backend a result came from.
type Source struct {
	Name string
	Kind Kind
}

// Result is one ranked candidate. It lives only for the duration of a retrieve call.
type Result struct {
	doc       document.Document
	source    Source
	raw       float64
	relevance float64
}

// NewResult creates a Result with its source score; relevance is assigned by fusion.
func NewResult(doc document.Document, source Source, raw float64) Result {
	return Result{doc: doc, source: source, raw: raw}
}

// ID returns the document id.
func (r *Result) ID() string { return r.doc.ID() }

// Document returns the document text.
func (r *Result) Document() string { return r.doc.Content() }

// Metadata returns a copy of the document metadata.
func (r *Result) Metadata() map[string]any { return r.doc.Metadata() }

// Doc returns the underlying document.
func (r *Result) Doc() document.Document { return r.doc }

// Source returns the producing backend.
func (r *Result) Source() Source { return r.source }

// RawScore returns the backend score: similarity for vectors, BM25 for lexical.
func (r *Result) RawScore() float64 { return r.raw }

// RelevanceScore returns the unified score used for final ordering.
func (r *Result) RelevanceScore() float64 { return r.relevance }

// WithRelevance returns a copy carrying the given relevance score.
func (r Result) WithRelevance(score float64) Result {
	r.relevance = score
	return r
}
