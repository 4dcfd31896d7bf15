package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rage-labs/ragechat/internal/knowledge"
	"github.com/rage-labs/ragechat/internal/models"
	"github.com/rage-labs/ragechat/internal/store"
)

type fakeGenerator struct {
	reply        string
	err          error
	systemPrompt string
	userPrompt   string
}

func (f *fakeGenerator) GenerateReply(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	f.systemPrompt = systemPrompt
	f.userPrompt = userPrompt
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeHistory struct {
	msgs []models.Message
	name string
}

func (f *fakeHistory) Get(_ context.Context, _, _ string) ([]models.Message, string, error) {
	return f.msgs, f.name, nil
}

func newTestOrchestrator(gen *fakeGenerator, hs HistorySource) (*Orchestrator, *store.InMemoryStore) {
	st := store.NewInMemoryStore()
	return New(st, knowledge.NewCatalogProvider(st, 0), hs, gen), st
}

func TestReplySystemPromptSections(t *testing.T) {
	gen := &fakeGenerator{reply: "Oi!"}
	orch, st := newTestOrchestrator(gen, nil)
	st.SeedKnowledge("tenant-1", models.KnowledgeEntry{
		Category: models.CategoryFAQ,
		Data:     map[string]interface{}{"pergunta": "Tem plano anual?", "resposta": "Sim."},
	})
	st.SeedPersonality("tenant-1", models.Personality{
		Name:        "RAG-E Assistant",
		Level:       8,
		Tone:        models.ToneFriendly,
		AddressForm: models.AddressVoce,
		Greeting:    "Olá!",
	})

	if _, err := orch.Reply(context.Background(), "tenant-1", "", "oi"); err != nil {
		t.Fatalf("Reply failed: %v", err)
	}

	wantParts := []string{
		"=== PERSONALIDADE DO AGENTE ===",
		"Nome: RAG-E Assistant",
		"Nível de Personalidade: 8 (Animado e entusiasmado)",
		"- Use tom conversacional, seja caloroso e acessível",
		"- Trate o cliente por 'você'",
		"- Demonstre entusiasmo e energia nas respostas",
		"=== BASE DE CONHECIMENTO ===",
		"Tem plano anual?",
		"=== INSTRUÇÕES ===",
		"Responda sempre em português brasileiro.",
		"=== FORMATAÇÃO DE RESPOSTAS ===",
	}
	for _, part := range wantParts {
		if !strings.Contains(gen.systemPrompt, part) {
			t.Errorf("system prompt missing %q", part)
		}
	}
}

func TestReplyDefaultPersonality(t *testing.T) {
	gen := &fakeGenerator{reply: "Oi!"}
	orch, _ := newTestOrchestrator(gen, nil)

	if _, err := orch.Reply(context.Background(), "tenant-1", "", "oi"); err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if !strings.Contains(gen.systemPrompt, "Nome: Assistente Virtual") {
		t.Error("default personality not applied")
	}
	if !strings.Contains(gen.systemPrompt, knowledge.EmptyCatalogContext) {
		t.Error("empty catalog context not injected")
	}
}

func TestReplyInjectsHistory(t *testing.T) {
	gen := &fakeGenerator{reply: "Claro!"}
	hs := &fakeHistory{
		name: "João Silva",
		msgs: []models.Message{
			{Direction: models.DirectionInbound, Text: "Quais os planos?", Timestamp: time.Now()},
			{Direction: models.DirectionOutbound, Text: "Temos o Essencial.", Timestamp: time.Now()},
		},
	}
	orch, _ := newTestOrchestrator(gen, hs)

	if _, err := orch.Reply(context.Background(), "tenant-1", "+5511999999999", "E o preço?"); err != nil {
		t.Fatalf("Reply failed: %v", err)
	}

	wantParts := []string{
		"=== INFORMAÇÕES DA CONVERSA ===",
		"Você está conversando com: João Silva",
		"=== HISTÓRICO DE MENSAGENS ===",
		"Usuário: Quais os planos?",
		"Assistente: Temos o Essencial.",
		"=== FIM DO HISTÓRICO ===",
		"=== MENSAGEM ATUAL ===",
	}
	for _, part := range wantParts {
		if !strings.Contains(gen.userPrompt, part) {
			t.Errorf("user prompt missing %q:\n%s", part, gen.userPrompt)
		}
	}
	if !strings.HasSuffix(gen.userPrompt, "E o preço?") {
		t.Errorf("user prompt should end with the current message, got:\n%s", gen.userPrompt)
	}
}

func TestReplySkipsHistoryWithoutContact(t *testing.T) {
	gen := &fakeGenerator{reply: "Oi!"}
	hs := &fakeHistory{name: "João"}
	orch, _ := newTestOrchestrator(gen, hs)

	if _, err := orch.Reply(context.Background(), "tenant-1", "", "oi"); err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if gen.userPrompt != "oi" {
		t.Errorf("user prompt = %q, want bare message", gen.userPrompt)
	}
}

func TestReplyFallbackOnGenerationError(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("rate limited")}
	orch, _ := newTestOrchestrator(gen, nil)

	reply, err := orch.Reply(context.Background(), "tenant-1", "", "oi")
	if err == nil {
		t.Error("expected generation error to be reported")
	}
	if reply != FallbackReply {
		t.Errorf("reply = %q, want fallback apology", reply)
	}
}

func TestReplyNormalizesLineBreaks(t *testing.T) {
	gen := &fakeGenerator{reply: "Linha 1\r\nLinha 2\r\nLinha 3"}
	orch, _ := newTestOrchestrator(gen, nil)

	reply, err := orch.Reply(context.Background(), "tenant-1", "", "oi")
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if strings.Contains(reply, "\r\n") {
		t.Errorf("reply still contains CRLF: %q", reply)
	}
	if reply != "Linha 1\nLinha 2\nLinha 3" {
		t.Errorf("reply = %q", reply)
	}
}

func TestReplyEmptyCompletion(t *testing.T) {
	gen := &fakeGenerator{reply: "   "}
	orch, _ := newTestOrchestrator(gen, nil)

	reply, err := orch.Reply(context.Background(), "tenant-1", "", "oi")
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if reply == "" {
		t.Error("reply should never be empty")
	}
}
