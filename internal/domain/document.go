package domain

import (
	"fmt"
	"regexp"
)

// KeyPrefix namespaces every key the service writes.
const KeyPrefix = "fusedex:"

// DocKeyPrefix returns the storage key prefix for corpus documents.
func DocKeyPrefix() string { return KeyPrefix + "docs:" }

// DocKey returns the storage key for a document id.
func DocKey(id string) string { return DocKeyPrefix() + id }

// IndexName returns the FT index name covering the corpus.
func IndexName() string { return KeyPrefix + "docs:idx" }

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// MaxContentSize is the maximum document content size in bytes.
const MaxContentSize = 163840 // 160KB

// Document is the corpus document aggregate (immutable value object).
// Content and vector live in one storage key, so the lexical and vector
// index entries for a document appear and disappear together.
type Document struct {
	id      string
	content string
	vector  []float32
}

// NewDocument validates and creates a Document.
// ID: ^[a-zA-Z0-9_-]+$, 1-256 chars. Content: non-empty, max 160KB.
// The vector may be empty at this point; the ingest service fills it in.
func NewDocument(id, content string, vector []float32) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required")
	}
	if len(id) > 256 {
		return Document{}, fmt.Errorf("document ID too long (max 256)")
	}
	if !idRegex.MatchString(id) {
		return Document{}, fmt.Errorf("document ID must be alphanumeric with underscores and hyphens")
	}
	if content == "" {
		return Document{}, fmt.Errorf("content is required")
	}
	if len(content) > MaxContentSize {
		return Document{}, fmt.Errorf("content too large (max %d bytes)", MaxContentSize)
	}

	return Document{id: id, content: content, vector: vector}, nil
}

// ReconstructDocument creates a Document without validation (storage hydration).
func ReconstructDocument(id, content string, vector []float32) Document {
	return Document{id: id, content: content, vector: vector}
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// Content returns the document text content.
func (d *Document) Content() string { return d.content }

// Vector returns the embedding vector.
func (d *Document) Vector() []float32 { return d.vector }

// SetVector attaches the embedding computed during ingest.
func (d *Document) SetVector(v []float32) { d.vector = v }
