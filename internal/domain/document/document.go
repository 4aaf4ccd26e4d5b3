package document

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

// MaxContentSize is the maximum document content size in bytes.
const MaxContentSize = 163840 // 160KB

// Placeholder values for metadata a stored record is missing.
const (
	Unknown = "Unknown"
	Empty   = ""
)

// CustomIDPrefix marks documents added directly rather than ingested.
const CustomIDPrefix = "custom_"

// Document is an immutable unit of retrievable text.
type Document struct {
	id         string
	content    string
	metadata   map[string]any
	collection string
}

// New validates and creates a Document.
// ID: ^[a-zA-Z0-9_.:-]+$, 1-256 chars. Content: non-empty, max 160KB.
// Metadata values must be scalars (string, bool, int, int64, float64).
func New(id, content string, metadata map[string]any, collection string) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required")
	}
	if len(id) > 256 {
		return Document{}, fmt.Errorf("document ID too long (max 256)")
	}
	if !idRegex.MatchString(id) {
		return Document{}, fmt.Errorf("document ID %q has invalid characters", id)
	}
	if strings.TrimSpace(content) == "" {
		return Document{}, fmt.Errorf("content is required")
	}
	if len(content) > MaxContentSize {
		return Document{}, fmt.Errorf("content too large (max %d bytes)", MaxContentSize)
	}
	meta, err := normalizeMetadata(metadata)
	if err != nil {
		return Document{}, err
	}

	return Document{id: id, content: content, metadata: meta, collection: collection}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(id, content string, metadata map[string]any, collection string) Document {
	return Document{id: id, content: content, metadata: metadata, collection: collection}
}

// ID returns the document identifier, unique within its collection.
func (d *Document) ID() string { return d.id }

// Content returns the document text.
func (d *Document) Content() string { return d.content }

// Metadata returns a copy of the scalar metadata.
func (d *Document) Metadata() map[string]any { return CloneMetadata(d.metadata) }

// Collection returns the name of the collection the document came from.
func (d *Document) Collection() string { return d.collection }

// String returns the metadata value for key, or fallback when it is absent or blank.
func (d *Document) String(key, fallback string) string {
	v, ok := d.metadata[key]
	if !ok || v == nil {
		return fallback
	}
	s := fmt.Sprint(v)
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// Title returns the title metadata or the Unknown placeholder.
func (d *Document) Title() string { return d.String("title", Unknown) }

// ContentID derives a stable id from content: prefix followed by a 64-bit blake2b digest.
func ContentID(prefix, content string) string {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	_, _ = h.Write([]byte(content))
	return prefix + hex.EncodeToString(h.Sum(nil))
}

// CloneMetadata copies a metadata map. Nil stays nil.
func CloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func normalizeMetadata(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k == "" {
			return nil, fmt.Errorf("metadata key must not be empty")
		}
		switch x := v.(type) {
		case string, bool, int64, float64:
			out[k] = x
		case int:
			out[k] = int64(x)
		case int32:
			out[k] = int64(x)
		case float32:
			out[k] = float64(x)
		case nil:
			out[k] = Empty
		default:
			return nil, fmt.Errorf("metadata %q: unsupported type %T", k, v)
		}
	}
	return out, nil
}
