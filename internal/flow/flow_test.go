package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/rage-labs/ragechat/internal/cache"
	"github.com/rage-labs/ragechat/internal/models"
	"github.com/rage-labs/ragechat/internal/store"
)

const (
	testTenant  = "tenant-1"
	testContact = "+5511999999999"
)

func newTestProcessor() (*Processor, *store.InMemoryStore) {
	st := store.NewInMemoryStore()
	pending := cache.NewPendingNames(cache.NewMemoryKV())
	return NewProcessor(st, pending), st
}

func mustConversation(t *testing.T, st *store.InMemoryStore) *models.Conversation {
	t.Helper()
	conv, err := st.GetConversationByContact(testTenant, testContact)
	if err != nil {
		t.Fatalf("GetConversationByContact failed: %v", err)
	}
	if conv == nil {
		t.Fatal("conversation not found")
	}
	return conv
}

func TestProcessFullOnboarding(t *testing.T) {
	p, st := newTestProcessor()
	ctx := context.Background()

	// AWAITING_NAME: the message is treated as a name attempt. (The
	// webhook layer greets brand-new contacts before the flow runs.)
	reply, proceed, err := p.Process(ctx, "Olá!", testContact, testTenant)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if proceed {
		t.Error("expected onboarding to handle the first message")
	}
	if reply != MsgInvalidName && !strings.Contains(reply, "Olá") {
		// "Olá" alone normalizes to a valid name, so a confirmation is asked.
		t.Errorf("unexpected reply: %q", reply)
	}

	conv := mustConversation(t, st)
	if err := st.SetConversationState(conv.ID, models.StateAwaitingName); err != nil {
		t.Fatalf("reset state: %v", err)
	}

	// Valid name moves to CONFIRMING_NAME.
	reply, proceed, err = p.Process(ctx, "meu nome é joão silva", testContact, testTenant)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if proceed {
		t.Error("expected onboarding to handle the name message")
	}
	if !strings.Contains(reply, "João Silva") {
		t.Errorf("confirmation reply should contain the captured name, got %q", reply)
	}
	if conv = mustConversation(t, st); conv.State != models.StateConfirmingName {
		t.Errorf("state = %s, want %s", conv.State, models.StateConfirmingName)
	}

	// Positive confirmation saves the name and activates.
	reply, proceed, err = p.Process(ctx, "sim", testContact, testTenant)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if proceed {
		t.Error("expected onboarding to handle the confirmation")
	}
	if !strings.Contains(reply, "João Silva") {
		t.Errorf("welcome reply should contain the name, got %q", reply)
	}
	conv = mustConversation(t, st)
	if conv.State != models.StateActive {
		t.Errorf("state = %s, want %s", conv.State, models.StateActive)
	}
	if conv.DisplayName != "João Silva" {
		t.Errorf("display name = %q, want %q", conv.DisplayName, "João Silva")
	}

	// ACTIVE conversations pass through to reply generation.
	reply, proceed, err = p.Process(ctx, "Quero saber dos planos", testContact, testTenant)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !proceed {
		t.Error("expected active conversation to pass through")
	}
	if reply != "" {
		t.Errorf("expected empty reply on pass-through, got %q", reply)
	}
}

func TestProcessInvalidName(t *testing.T) {
	p, st := newTestProcessor()
	ctx := context.Background()

	reply, proceed, err := p.Process(ctx, "123!!!", testContact, testTenant)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if proceed {
		t.Error("expected onboarding to handle the message")
	}
	if reply != MsgInvalidName {
		t.Errorf("reply = %q, want MsgInvalidName", reply)
	}
	if conv := mustConversation(t, st); conv.State != models.StateAwaitingName {
		t.Errorf("state = %s, want %s", conv.State, models.StateAwaitingName)
	}
}

func TestProcessNameRejected(t *testing.T) {
	p, st := newTestProcessor()
	ctx := context.Background()

	if _, _, err := p.Process(ctx, "Maria", testContact, testTenant); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	reply, proceed, err := p.Process(ctx, "não", testContact, testTenant)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if proceed {
		t.Error("expected onboarding to handle the rejection")
	}
	if reply != MsgAskNameAgain {
		t.Errorf("reply = %q, want MsgAskNameAgain", reply)
	}
	conv := mustConversation(t, st)
	if conv.State != models.StateAwaitingName {
		t.Errorf("state = %s, want %s", conv.State, models.StateAwaitingName)
	}
	if conv.DisplayName != "" {
		t.Errorf("display name should stay empty after rejection, got %q", conv.DisplayName)
	}
}

func TestProcessAmbiguousConfirmation(t *testing.T) {
	p, st := newTestProcessor()
	ctx := context.Background()

	if _, _, err := p.Process(ctx, "Maria", testContact, testTenant); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	reply, _, err := p.Process(ctx, "talvez", testContact, testTenant)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if reply != MsgNeedConfirmation {
		t.Errorf("reply = %q, want MsgNeedConfirmation", reply)
	}
	if conv := mustConversation(t, st); conv.State != models.StateConfirmingName {
		t.Errorf("state = %s, want %s", conv.State, models.StateConfirmingName)
	}
}
