package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rage-labs/ragechat/internal/models"
	"github.com/rage-labs/ragechat/internal/store"
)

// Indexer rebuilds a tenant's semantic-search index from the catalog:
// render each entry, chunk the text, embed the chunks and swap them
// into the datastore atomically.
type Indexer struct {
	store     store.Store
	searcher  store.VectorSearcher
	embedder  Embedder
	chunkSize int
	overlap   int
}

// NewIndexer creates an Indexer. Returns an error when the datastore
// has no vector-search support to index into.
func NewIndexer(st store.Store, embedder Embedder) (*Indexer, error) {
	vs, ok := st.(store.VectorSearcher)
	if !ok {
		return nil, fmt.Errorf("datastore does not support vector search")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	return &Indexer{
		store:     st,
		searcher:  vs,
		embedder:  embedder,
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}, nil
}

// Reindex rebuilds the tenant's chunk index and returns how many
// chunks were written. An empty catalog clears the index.
func (ix *Indexer) Reindex(ctx context.Context, tenantID string) (int, error) {
	entries, err := ix.store.ListKnowledge(tenantID, 0)
	if err != nil {
		return 0, fmt.Errorf("listing knowledge catalog: %w", err)
	}

	var sources []chunkSource
	for _, e := range entries {
		for _, text := range Split(renderEntry(e), ix.chunkSize, ix.overlap) {
			sources = append(sources, chunkSource{category: e.Category, text: text})
		}
	}

	if len(sources) == 0 {
		if err := ix.searcher.ReplaceChunks(tenantID, nil, nil); err != nil {
			return 0, fmt.Errorf("clearing chunk index: %w", err)
		}
		slog.Info("Indexer.Reindex cleared empty index", "tenant_id", tenantID)
		return 0, nil
	}

	texts := make([]string, len(sources))
	for i, s := range sources {
		texts[i] = s.text
	}
	embeddings, err := ix.embedder.EmbeddingBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding chunks: %w", err)
	}
	if len(embeddings) != len(sources) {
		return 0, fmt.Errorf("embedding count mismatch: %d chunks, %d embeddings", len(sources), len(embeddings))
	}

	chunks := make([]models.KnowledgeChunk, len(sources))
	for i, s := range sources {
		chunks[i] = models.KnowledgeChunk{
			TenantID: tenantID,
			Category: string(s.category),
			Text:     s.text,
		}
	}
	if err := ix.searcher.ReplaceChunks(tenantID, chunks, embeddings); err != nil {
		return 0, fmt.Errorf("replacing chunk index: %w", err)
	}

	slog.Info("Indexer.Reindex succeeded", "tenant_id", tenantID, "entries", len(entries), "chunks", len(chunks))
	return len(chunks), nil
}
