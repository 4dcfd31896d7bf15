package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rage-labs/ragechat/internal/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(WithSQLiteDSN(filepath.Join(t.TempDir(), "test.db")))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func seedKnowledgeRow(t *testing.T, st *SQLiteStore, tenantID string, category models.KnowledgeCategory) {
	t.Helper()
	_, err := st.db.Exec(
		`INSERT INTO knowledge_base (id, tenant_id, category, data) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), tenantID, category, `{"nome":"Item de teste"}`,
	)
	if err != nil {
		t.Fatalf("seed knowledge row failed: %v", err)
	}
}

func TestSQLiteListKnowledgeUnlimitedByDefault(t *testing.T) {
	st := newTestSQLiteStore(t)
	for i := 0; i < 3; i++ {
		seedKnowledgeRow(t, st, "tenant-1", models.CategoryProduct)
	}

	// An unset KB_LIMIT reaches the store as zero and must mean "whole
	// catalog", matching the in-memory behavior.
	entries, err := st.ListKnowledge("tenant-1", 0)
	if err != nil {
		t.Fatalf("ListKnowledge failed: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("ListKnowledge(limit=0) returned %d entries, want 3", len(entries))
	}

	entries, err = st.ListKnowledge("tenant-1", -1)
	if err != nil {
		t.Fatalf("ListKnowledge failed: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("ListKnowledge(limit=-1) returned %d entries, want 3", len(entries))
	}
}

func TestSQLiteListKnowledgeAppliesPositiveLimit(t *testing.T) {
	st := newTestSQLiteStore(t)
	for i := 0; i < 3; i++ {
		seedKnowledgeRow(t, st, "tenant-1", models.CategoryFAQ)
	}
	seedKnowledgeRow(t, st, "tenant-2", models.CategoryFAQ)

	entries, err := st.ListKnowledge("tenant-1", 2)
	if err != nil {
		t.Fatalf("ListKnowledge failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("ListKnowledge(limit=2) returned %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.TenantID != "tenant-1" {
			t.Errorf("entry tenant = %q, want tenant-1", e.TenantID)
		}
	}
}

func TestSQLiteConversationLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)

	conv, err := st.GetOrCreateConversation("tenant-1", "5511999999999")
	if err != nil {
		t.Fatalf("GetOrCreateConversation failed: %v", err)
	}
	if conv.State != models.StateAwaitingName {
		t.Errorf("state = %s, want %s", conv.State, models.StateAwaitingName)
	}

	if err := st.SetDisplayName(conv.ID, "Maria"); err != nil {
		t.Fatalf("SetDisplayName failed: %v", err)
	}
	got, err := st.GetConversationByID(conv.ID)
	if err != nil {
		t.Fatalf("GetConversationByID failed: %v", err)
	}
	if got.DisplayName != "Maria" || got.State != models.StateActive {
		t.Errorf("after SetDisplayName: name=%q state=%s, want Maria/%s", got.DisplayName, got.State, models.StateActive)
	}
}

func TestSQLiteGetHistoryMostRecentAscending(t *testing.T) {
	st := newTestSQLiteStore(t)
	conv, err := st.GetOrCreateConversation("tenant-1", "5511999999999")
	if err != nil {
		t.Fatalf("GetOrCreateConversation failed: %v", err)
	}
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if _, err := st.CreateMessage(models.Message{
			ConversationID: conv.ID,
			TenantID:       "tenant-1",
			Direction:      models.DirectionInbound,
			Text:           fmt.Sprintf("msg-%d", i),
			Timestamp:      base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("CreateMessage failed: %v", err)
		}
	}

	msgs, err := st.GetHistory(conv.ID, 3)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	for i, want := range []string{"msg-2", "msg-3", "msg-4"} {
		if msgs[i].Text != want {
			t.Errorf("msgs[%d].Text = %q, want %q", i, msgs[i].Text, want)
		}
	}
}
