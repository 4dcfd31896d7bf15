// Package orchestrator assembles the prompt for one incoming message
// and produces the assistant reply: personality block, knowledge
// context and conversation history go in, normalized reply text comes
// out. Generation failures degrade to a canned apology so the contact
// always gets an answer.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"

	"github.com/rage-labs/ragechat/internal/knowledge"
	"github.com/rage-labs/ragechat/internal/models"
	"github.com/rage-labs/ragechat/internal/store"
)

// FallbackReply is sent when generation fails.
const FallbackReply = "Desculpe, tive um problema ao processar sua solicitação. Tente novamente em instantes."

// emptyReply is sent when the model returns no content.
const emptyReply = "Desculpe, não consegui gerar uma resposta."

// Generator produces a completion from a system and user prompt.
// Satisfied by genai.Client.
type Generator interface {
	GenerateReply(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// HistorySource fetches recent conversation history and the contact's
// display name. Satisfied by history.Fetcher.
type HistorySource interface {
	Get(ctx context.Context, tenantID, externalContactID string) ([]models.Message, string, error)
}

// Orchestrator ties the prompt inputs together.
type Orchestrator struct {
	store     store.Store
	knowledge knowledge.ContextProvider
	history   HistorySource
	generator Generator
}

// New creates an Orchestrator. history may be nil when the caller has
// no contact identity to fetch history for.
func New(st store.Store, kp knowledge.ContextProvider, hs HistorySource, gen Generator) *Orchestrator {
	return &Orchestrator{store: st, knowledge: kp, history: hs, generator: gen}
}

// Reply generates the assistant reply for one incoming message.
// externalContactID may be empty, which skips history. Input failures
// degrade to defaults and generation failures to FallbackReply, so the
// returned text is always non-empty; the error reports generation
// failure for callers that track it.
func (o *Orchestrator) Reply(ctx context.Context, tenantID, externalContactID, message string) (string, error) {
	kbContext, err := o.knowledge.Context(ctx, tenantID, message)
	if err != nil {
		slog.Warn("Orchestrator.Reply knowledge context failed, using empty context", "error", err, "tenant_id", tenantID)
		kbContext = knowledge.EmptyCatalogContext
	}

	personality := models.DefaultPersonality()
	if p, err := o.store.GetPersonality(tenantID); err != nil {
		slog.Warn("Orchestrator.Reply personality fetch failed, using defaults", "error", err, "tenant_id", tenantID)
	} else if p != nil {
		personality = *p
	}

	systemPrompt := buildSystemPrompt(kbContext, personality)
	userPrompt := message

	if externalContactID != "" && o.history != nil {
		msgs, contactName, err := o.history.Get(ctx, tenantID, externalContactID)
		if err != nil {
			slog.Warn("Orchestrator.Reply history fetch failed, replying without history", "error", err, "tenant_id", tenantID)
		} else if prefix := historyContext(msgs, contactName); prefix != "" {
			userPrompt = prefix + message
		}
	}

	reply, err := o.generator.GenerateReply(ctx, systemPrompt, userPrompt)
	if err != nil {
		slog.Error("Orchestrator.Reply generation failed", "error", err, "tenant_id", tenantID)
		return FallbackReply, err
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = emptyReply
	}
	return normalizeLineBreaks(reply), nil
}

// historyContext renders the conversation-context prefix prepended to
// the user prompt. Empty when there is nothing to show.
func historyContext(msgs []models.Message, contactName string) string {
	if len(msgs) == 0 && contactName == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString("=== INFORMAÇÕES DA CONVERSA ===\n")
	if contactName != "" {
		b.WriteString("Você está conversando com: " + contactName + "\n")
	}
	if len(msgs) > 0 {
		b.WriteString("\n=== HISTÓRICO DE MENSAGENS ===\n")
		for _, m := range msgs {
			switch m.Direction {
			case models.DirectionInbound:
				b.WriteString("Usuário: " + m.Text + "\n")
			case models.DirectionOutbound:
				b.WriteString("Assistente: " + m.Text + "\n")
			}
		}
	}
	b.WriteString("=== FIM DO HISTÓRICO ===\n\n")
	b.WriteString("=== MENSAGEM ATUAL ===\n")
	return b.String()
}

// normalizeLineBreaks rewrites Windows line endings so the messaging
// channel renders breaks consistently.
func normalizeLineBreaks(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
