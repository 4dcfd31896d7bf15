// Package history reads prior conversation turns and the resolved
// contact name for prompt assembly. Pure read path: it never creates a
// conversation as a side effect of looking one up.
package history

import (
	"context"
	"log/slog"

	"github.com/rage-labs/ragechat/internal/models"
	"github.com/rage-labs/ragechat/internal/store"
)

// DefaultLimit is the default history depth injected into prompts.
const DefaultLimit = 10

// Fetcher retrieves recent message history for a tenant's contact.
type Fetcher struct {
	store store.Store
	limit int
}

// NewFetcher creates a Fetcher with the given default depth. A
// non-positive limit selects DefaultLimit.
func NewFetcher(st store.Store, limit int) *Fetcher {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Fetcher{store: st, limit: limit}
}

// Get returns up to the configured limit of most recent messages for
// the (tenant, contact) conversation ordered oldest-first, plus the
// resolved display name (empty when onboarding has not completed).
// When no conversation exists it returns (nil, "") without creating one.
func (f *Fetcher) Get(ctx context.Context, tenantID, externalContactID string) ([]models.Message, string, error) {
	conv, err := f.store.GetConversationByContact(tenantID, externalContactID)
	if err != nil {
		return nil, "", err
	}
	if conv == nil {
		slog.Debug("Fetcher.Get: no conversation for contact", "tenant_id", tenantID, "contact", externalContactID)
		return nil, "", nil
	}

	messages, err := f.store.GetHistory(conv.ID, f.limit)
	if err != nil {
		return nil, "", err
	}
	slog.Debug("Fetcher.Get: history fetched", "conversation_id", conv.ID, "count", len(messages), "has_name", conv.DisplayName != "")
	return messages, conv.DisplayName, nil
}
