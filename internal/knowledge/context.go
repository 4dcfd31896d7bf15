package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rage-labs/ragechat/internal/models"
	"github.com/rage-labs/ragechat/internal/store"
)

// Semantic search defaults.
const (
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.3
)

// vectorHeader opens the semantic-search context block.
const vectorHeader = "=== BASE DE CONHECIMENTO (Busca Semântica) ==="

// Embedder produces embedding vectors for text. Satisfied by
// genai.Client.
type Embedder interface {
	Embedding(ctx context.Context, text string) ([]float64, error)
	EmbeddingBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// ContextProvider builds the knowledge block injected into the system
// prompt for one incoming message.
type ContextProvider interface {
	Context(ctx context.Context, tenantID, query string) (string, error)
}

// Select picks the semantic-search provider when the datastore supports
// vector search and an embedder is configured, falling back to the
// full-catalog provider otherwise.
func Select(st store.Store, embedder Embedder, catalogLimit int) ContextProvider {
	if embedder != nil {
		if vs, ok := st.(store.VectorSearcher); ok {
			slog.Info("knowledge.Select using semantic search provider")
			return &VectorProvider{
				searcher: vs,
				embedder: embedder,
				fallback: &CatalogProvider{store: st, limit: catalogLimit},
			}
		}
	}
	slog.Info("knowledge.Select using catalog provider")
	return &CatalogProvider{store: st, limit: catalogLimit}
}

// CatalogProvider renders the tenant's whole catalog, query-blind.
type CatalogProvider struct {
	store store.Store
	limit int
}

// NewCatalogProvider creates a provider over the full catalog. limit
// caps how many entries are fetched; non-positive means no cap.
func NewCatalogProvider(st store.Store, limit int) *CatalogProvider {
	return &CatalogProvider{store: st, limit: limit}
}

// Context renders every catalog entry for the tenant.
func (p *CatalogProvider) Context(_ context.Context, tenantID, _ string) (string, error) {
	entries, err := p.store.ListKnowledge(tenantID, p.limit)
	if err != nil {
		return "", fmt.Errorf("listing knowledge catalog: %w", err)
	}
	return Render(entries), nil
}

// VectorProvider embeds the incoming message and returns only the
// catalog chunks semantically close to it. Falls back to the full
// catalog when the search yields nothing or fails.
type VectorProvider struct {
	searcher  store.VectorSearcher
	embedder  Embedder
	fallback  *CatalogProvider
	topK      int
	threshold float64
}

// NewVectorProvider creates a semantic-search provider with a catalog
// fallback.
func NewVectorProvider(searcher store.VectorSearcher, embedder Embedder, fallback *CatalogProvider) *VectorProvider {
	return &VectorProvider{searcher: searcher, embedder: embedder, fallback: fallback}
}

// Context runs a similarity search for the query.
func (p *VectorProvider) Context(ctx context.Context, tenantID, query string) (string, error) {
	topK := p.topK
	if topK <= 0 {
		topK = DefaultTopK
	}
	threshold := p.threshold
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}

	embedding, err := p.embedder.Embedding(ctx, query)
	if err != nil {
		slog.Warn("VectorProvider.Context embedding failed, falling back to catalog", "error", err, "tenant_id", tenantID)
		return p.fallbackContext(ctx, tenantID, query)
	}

	chunks, err := p.searcher.SearchChunks(tenantID, embedding, topK, threshold)
	if err != nil {
		slog.Warn("VectorProvider.Context search failed, falling back to catalog", "error", err, "tenant_id", tenantID)
		return p.fallbackContext(ctx, tenantID, query)
	}
	if len(chunks) == 0 {
		slog.Debug("VectorProvider.Context no chunks above threshold, falling back to catalog", "tenant_id", tenantID)
		return p.fallbackContext(ctx, tenantID, query)
	}

	lines := []string{vectorHeader, ""}
	for _, c := range chunks {
		lines = append(lines, c.Text, "")
	}
	return strings.Join(lines, "\n"), nil
}

func (p *VectorProvider) fallbackContext(ctx context.Context, tenantID, query string) (string, error) {
	if p.fallback == nil {
		return EmptyCatalogContext, nil
	}
	return p.fallback.Context(ctx, tenantID, query)
}

// chunkSource labels a chunk with the category it was rendered from,
// used by the indexer.
type chunkSource struct {
	category models.KnowledgeCategory
	text     string
}
