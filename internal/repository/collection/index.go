package collection

import "github.com/kailas-cloud/medrag/internal/db"

// buildIndex creates the FT schema of a collection: TEXT content, TAG source
// and an HNSW/COSINE vector.
func buildIndex(keys keySet, vectorDim int, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	return db.NewIndex(keys.index).
		Prefix(keys.prefix).
		Text(fieldContent).
		Tag(fieldSource).
		VectorHNSW(fieldVector, vectorDim, db.DistanceCosine, hnsw.M, hnsw.EFConstruct).
		Build()
}
