package models

import "fmt"

// Document is a raw source text loaded from the corpus at startup
type Document struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Source  string `json:"source"`
}

// SourceOffset locates a chunk inside the document it was split from
type SourceOffset struct {
	DocumentID string `json:"document_id"`
	Ordinal    int    `json:"ordinal"`
}

// String renders the offset as "<document>#<ordinal>"
func (o SourceOffset) String() string {
	return fmt.Sprintf("%s#%d", o.DocumentID, o.Ordinal)
}

// Chunk is an immutable slice of a document used as a retrieval unit
type Chunk struct {
	Text         string       `json:"text"`
	Source       string       `json:"source"`
	SourceOffset SourceOffset `json:"source_offset"`
}

// EmbeddedChunk pairs a chunk with its embedding vector
type EmbeddedChunk struct {
	Chunk
	Embedding []float32 `json:"embedding"`
}

// SearchResult represents a chunk that matched a query
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}
