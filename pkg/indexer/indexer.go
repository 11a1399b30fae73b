package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/andrew/voice-tutor/pkg/llm"
	"github.com/andrew/voice-tutor/pkg/models"
	"github.com/andrew/voice-tutor/pkg/vector"
)

// Indexer turns documents into an embedded, searchable corpus
type Indexer struct {
	embedder llm.Embedder
	store    vector.Store
	splitter *Splitter
	logger   *slog.Logger
}

// New creates an indexer writing into store
func New(embedder llm.Embedder, store vector.Store, splitter *Splitter, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{embedder: embedder, store: store, splitter: splitter, logger: logger}
}

// SplitDocuments chunks every document, numbering chunks per document
func (ix *Indexer) SplitDocuments(docs []models.Document) []models.Chunk {
	var chunks []models.Chunk
	for _, doc := range docs {
		for ordinal, text := range ix.splitter.Split(doc.Content) {
			chunks = append(chunks, models.Chunk{
				Text:         text,
				Source:       doc.Source,
				SourceOffset: models.SourceOffset{DocumentID: doc.ID, Ordinal: ordinal},
			})
		}
	}
	return chunks
}

// BuildIndex splits, embeds and stores docs, replacing whatever the store
// held before. Any embedding failure aborts the build before the store is
// touched, so it never holds a partial corpus.
func (ix *Indexer) BuildIndex(ctx context.Context, docs []models.Document) (int, error) {
	if len(docs) == 0 {
		return 0, ErrNoDocuments
	}

	chunks := ix.SplitDocuments(docs)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: documents contain no text", ErrNoDocuments)
	}
	ix.logger.Info("indexer: documents split", "documents", len(docs), "chunks", len(chunks))

	embedded := make([]models.EmbeddedChunk, 0, len(chunks))
	for i, chunk := range chunks {
		vec, err := ix.embedder.EmbedText(ctx, chunk.Text)
		if err != nil {
			return 0, fmt.Errorf("indexer: embed chunk %s: %w", chunk.SourceOffset, err)
		}
		embedded = append(embedded, models.EmbeddedChunk{Chunk: chunk, Embedding: vec})
		ix.logger.Debug("indexer: chunk embedded", "chunk", i+1, "of", len(chunks), "chars", runeLen(chunk.Text))
	}

	if err := ix.store.Reset(ctx); err != nil {
		return 0, fmt.Errorf("indexer: reset store: %w", err)
	}
	if err := ix.store.Upsert(ctx, embedded); err != nil {
		return 0, fmt.Errorf("indexer: store chunks: %w", err)
	}

	ix.logger.Info("indexer: corpus indexed", "chunks", len(embedded))
	return len(embedded), nil
}
