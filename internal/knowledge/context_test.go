package knowledge

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rage-labs/ragechat/internal/models"
	"github.com/rage-labs/ragechat/internal/store"
)

type fakeEmbedder struct {
	embedErr error
	calls    int
}

func (f *fakeEmbedder) Embedding(_ context.Context, _ string) ([]float64, error) {
	f.calls++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return []float64{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) EmbeddingBatch(_ context.Context, texts []string) ([][]float64, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{0.1, 0.2, 0.3}
	}
	return out, nil
}

type fakeSearcher struct {
	chunks    []models.KnowledgeChunk
	searchErr error
	replaced  []models.KnowledgeChunk
}

func (f *fakeSearcher) SearchChunks(_ string, _ []float64, _ int, _ float64) ([]models.KnowledgeChunk, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.chunks, nil
}

func (f *fakeSearcher) ReplaceChunks(_ string, chunks []models.KnowledgeChunk, _ [][]float64) error {
	f.replaced = chunks
	return nil
}

func seedCatalog(st *store.InMemoryStore) {
	st.SeedKnowledge("tenant-1", models.KnowledgeEntry{
		Category: models.CategoryFAQ,
		Data:     map[string]interface{}{"pergunta": "Qual o horário?", "resposta": "9h às 18h."},
	})
}

func TestCatalogProviderRendersCatalog(t *testing.T) {
	st := store.NewInMemoryStore()
	seedCatalog(st)

	p := NewCatalogProvider(st, 0)
	got, err := p.Context(context.Background(), "tenant-1", "qualquer pergunta")
	if err != nil {
		t.Fatalf("Context failed: %v", err)
	}
	if !strings.Contains(got, "=== BASE DE CONHECIMENTO ===") || !strings.Contains(got, "Qual o horário?") {
		t.Errorf("catalog context missing expected content:\n%s", got)
	}
}

func TestCatalogProviderEmpty(t *testing.T) {
	p := NewCatalogProvider(store.NewInMemoryStore(), 0)
	got, err := p.Context(context.Background(), "tenant-1", "oi")
	if err != nil {
		t.Fatalf("Context failed: %v", err)
	}
	if got != EmptyCatalogContext {
		t.Errorf("Context = %q, want %q", got, EmptyCatalogContext)
	}
}

func TestVectorProviderReturnsChunks(t *testing.T) {
	st := store.NewInMemoryStore()
	searcher := &fakeSearcher{chunks: []models.KnowledgeChunk{
		{Text: "Plano Essencial custa R$ 260/mês.", Similarity: 0.9},
	}}
	p := NewVectorProvider(searcher, &fakeEmbedder{}, NewCatalogProvider(st, 0))

	got, err := p.Context(context.Background(), "tenant-1", "quanto custa?")
	if err != nil {
		t.Fatalf("Context failed: %v", err)
	}
	if !strings.Contains(got, "Busca Semântica") {
		t.Errorf("semantic header missing:\n%s", got)
	}
	if !strings.Contains(got, "Plano Essencial custa") {
		t.Errorf("chunk text missing:\n%s", got)
	}
}

func TestVectorProviderFallsBackOnEmbedError(t *testing.T) {
	st := store.NewInMemoryStore()
	seedCatalog(st)
	p := NewVectorProvider(&fakeSearcher{}, &fakeEmbedder{embedErr: fmt.Errorf("quota")}, NewCatalogProvider(st, 0))

	got, err := p.Context(context.Background(), "tenant-1", "oi")
	if err != nil {
		t.Fatalf("Context failed: %v", err)
	}
	if !strings.Contains(got, "=== BASE DE CONHECIMENTO ===") {
		t.Errorf("expected catalog fallback:\n%s", got)
	}
}

func TestVectorProviderFallsBackOnNoMatches(t *testing.T) {
	st := store.NewInMemoryStore()
	seedCatalog(st)
	p := NewVectorProvider(&fakeSearcher{}, &fakeEmbedder{}, NewCatalogProvider(st, 0))

	got, err := p.Context(context.Background(), "tenant-1", "oi")
	if err != nil {
		t.Fatalf("Context failed: %v", err)
	}
	if !strings.Contains(got, "Qual o horário?") {
		t.Errorf("expected catalog fallback content:\n%s", got)
	}
}

func TestSelectUsesCatalogWithoutVectorSupport(t *testing.T) {
	p := Select(store.NewInMemoryStore(), &fakeEmbedder{}, 0)
	if _, ok := p.(*CatalogProvider); !ok {
		t.Errorf("Select over plain store returned %T, want *CatalogProvider", p)
	}
}
