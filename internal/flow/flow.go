// Package flow implements the name-collection state machine gating the
// chat path for first contact.
//
// States: AWAITING_NAME -> CONFIRMING_NAME -> ACTIVE. Once a
// conversation reaches ACTIVE, the flow is a pass-through and the
// caller proceeds to normal reply generation. Conversation state lives
// in the durable store; the candidate name awaiting confirmation lives
// in the transient cache (losing it only costs a reprompt).
package flow

import (
	"context"
	"log/slog"

	"github.com/rage-labs/ragechat/internal/cache"
	"github.com/rage-labs/ragechat/internal/models"
	"github.com/rage-labs/ragechat/internal/nameutil"
	"github.com/rage-labs/ragechat/internal/store"
)

// Processor runs the onboarding state machine for inbound messages.
type Processor struct {
	store   store.Store
	pending *cache.PendingNames
}

// NewProcessor creates a Processor over the given store and pending-name
// table.
func NewProcessor(st store.Store, pending *cache.PendingNames) *Processor {
	return &Processor{store: st, pending: pending}
}

// Process consumes one inbound message. It returns the canned reply to
// send verbatim and false when onboarding handled the turn, or an empty
// reply and true when the conversation is ACTIVE and the caller should
// run full reply generation.
//
// Store failures propagate: onboarding must not silently half-complete.
func (p *Processor) Process(ctx context.Context, messageText, externalContactID, tenantID string) (string, bool, error) {
	conv, err := p.store.GetOrCreateConversation(tenantID, externalContactID)
	if err != nil {
		return "", false, err
	}

	slog.Debug("Processor.Process: handling message", "conversation_id", conv.ID, "state", conv.State)

	switch conv.State {
	case models.StateAwaitingName:
		return p.handleAwaitingName(ctx, messageText, conv)
	case models.StateConfirmingName:
		return p.handleConfirmingName(ctx, messageText, conv)
	case models.StateActive:
		return "", true, nil
	default:
		// Loosely constrained state column; unknown values behave as ACTIVE.
		slog.Warn("Processor.Process: unknown conversation state, treating as ACTIVE", "conversation_id", conv.ID, "state", conv.State)
		return "", true, nil
	}
}

// WelcomeMessage returns the greeting for a brand-new contact.
func (p *Processor) WelcomeMessage() string {
	return MsgWelcome
}

func (p *Processor) handleAwaitingName(ctx context.Context, messageText string, conv *models.Conversation) (string, bool, error) {
	name := nameutil.Normalize(messageText)
	if !nameutil.IsValidName(name) {
		slog.Info("Processor.handleAwaitingName: invalid name", "conversation_id", conv.ID)
		return MsgInvalidName, false, nil
	}

	if err := p.pending.Save(ctx, conv.ID, name); err != nil {
		return "", false, err
	}
	if err := p.store.SetConversationState(conv.ID, models.StateConfirmingName); err != nil {
		return "", false, err
	}
	slog.Info("Processor.handleAwaitingName: candidate name captured", "conversation_id", conv.ID)
	return confirmNameMsg(name), false, nil
}

func (p *Processor) handleConfirmingName(ctx context.Context, messageText string, conv *models.Conversation) (string, bool, error) {
	isConfirmation, isPositive := nameutil.ClassifyConfirmation(messageText)
	if !isConfirmation {
		return MsgNeedConfirmation, false, nil
	}

	pendingName, err := p.pending.Get(ctx, conv.ID)
	if err != nil {
		return "", false, err
	}

	if isPositive {
		if err := p.store.SetDisplayName(conv.ID, pendingName); err != nil {
			return "", false, err
		}
		if err := p.pending.Clear(ctx, conv.ID); err != nil {
			return "", false, err
		}
		slog.Info("Processor.handleConfirmingName: name confirmed", "conversation_id", conv.ID)
		return nameSavedMsg(pendingName), false, nil
	}

	if err := p.store.SetConversationState(conv.ID, models.StateAwaitingName); err != nil {
		return "", false, err
	}
	if err := p.pending.Clear(ctx, conv.ID); err != nil {
		return "", false, err
	}
	slog.Info("Processor.handleConfirmingName: name rejected, reprompting", "conversation_id", conv.ID)
	return MsgAskNameAgain, false, nil
}
