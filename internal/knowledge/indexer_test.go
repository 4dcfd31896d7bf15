package knowledge

import (
	"context"
	"testing"

	"github.com/rage-labs/ragechat/internal/models"
	"github.com/rage-labs/ragechat/internal/store"
)

// vectorStore pairs the in-memory store with a fake chunk index so the
// indexer sees vector support.
type vectorStore struct {
	*store.InMemoryStore
	fakeSearcher
}

func TestNewIndexerRequiresVectorSupport(t *testing.T) {
	if _, err := NewIndexer(store.NewInMemoryStore(), &fakeEmbedder{}); err == nil {
		t.Error("expected error for store without vector support")
	}
}

func TestReindexWritesChunks(t *testing.T) {
	vs := &vectorStore{InMemoryStore: store.NewInMemoryStore()}
	seedCatalog(vs.InMemoryStore)

	ix, err := NewIndexer(vs, &fakeEmbedder{})
	if err != nil {
		t.Fatalf("NewIndexer failed: %v", err)
	}

	count, err := ix.Reindex(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}
	if count == 0 {
		t.Fatal("expected at least one chunk")
	}
	if len(vs.replaced) != count {
		t.Errorf("stored %d chunks, reported %d", len(vs.replaced), count)
	}
	for _, c := range vs.replaced {
		if c.TenantID != "tenant-1" {
			t.Errorf("chunk tenant = %q, want tenant-1", c.TenantID)
		}
		if c.Category != string(models.CategoryFAQ) {
			t.Errorf("chunk category = %q, want %q", c.Category, models.CategoryFAQ)
		}
		if c.Text == "" {
			t.Error("chunk with empty text")
		}
	}
}

func TestReindexEmptyCatalogClearsIndex(t *testing.T) {
	vs := &vectorStore{InMemoryStore: store.NewInMemoryStore()}
	vs.replaced = []models.KnowledgeChunk{{Text: "stale"}}

	ix, err := NewIndexer(vs, &fakeEmbedder{})
	if err != nil {
		t.Fatalf("NewIndexer failed: %v", err)
	}

	count, err := ix.Reindex(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
	if len(vs.replaced) != 0 {
		t.Errorf("index not cleared, still holds %d chunks", len(vs.replaced))
	}
}
