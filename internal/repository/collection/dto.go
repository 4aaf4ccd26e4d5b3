package collection

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"strings"

	"github.com/kailas-cloud/medrag/internal/domain/document"
)

const (
	fieldID      = "__id"
	fieldContent = "__content"
	fieldMeta    = "__meta"
	fieldSource  = "__source"
	fieldVector  = "__vector"
)

var returnFields = []string{fieldID, fieldContent, fieldMeta}

// buildHashFields converts a Document and its embedding into a flat map for HSET.
func buildHashFields(doc *document.Document, vector []float32) (map[string]string, error) {
	meta := doc.Metadata()
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, err //nolint:wrapcheck // caller adds document context
	}
	return map[string]string{
		fieldID:      doc.ID(),
		fieldContent: doc.Content(),
		fieldMeta:    string(raw),
		fieldSource:  doc.String("source", document.Empty),
		fieldVector:  vectorToBytes(vector),
	}, nil
}

// parseHashFields converts FT.SEARCH fields back into a Document.
// Unparseable metadata degrades to an empty map.
func parseHashFields(key, prefix, collection string, m map[string]string) document.Document {
	id := m[fieldID]
	if id == "" {
		id = strings.TrimPrefix(key, prefix)
	}

	meta := map[string]any{}
	if raw := m[fieldMeta]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			meta = map[string]any{}
		}
	}

	return document.Reconstruct(id, m[fieldContent], meta, collection)
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
