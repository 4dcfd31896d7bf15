package cache

import (
	"context"
	"time"
)

// DefaultPendingTTL bounds how long a candidate name waits for
// confirmation before the contact is simply reprompted.
const DefaultPendingTTL = 24 * time.Hour

const pendingKeyPrefix = "pending_name:"

// PendingNames is the transient conversation id -> candidate name side
// table used between the AWAITING_NAME -> CONFIRMING_NAME transition
// and its resolution. At most one pending name per conversation; losing
// it on restart only costs a reprompt.
type PendingNames struct {
	kv  KV
	ttl time.Duration
}

// NewPendingNames creates the pending-name table over the given KV.
func NewPendingNames(kv KV) *PendingNames {
	return &PendingNames{kv: kv, ttl: DefaultPendingTTL}
}

// Save stores the candidate name for a conversation, replacing any
// previous candidate.
func (p *PendingNames) Save(ctx context.Context, conversationID, name string) error {
	return p.kv.SetEx(ctx, pendingKeyPrefix+conversationID, name, p.ttl)
}

// Get returns the pending candidate name, or empty when none exists.
func (p *PendingNames) Get(ctx context.Context, conversationID string) (string, error) {
	name, _, err := p.kv.Get(ctx, pendingKeyPrefix+conversationID)
	return name, err
}

// Clear discards the pending candidate name.
func (p *PendingNames) Clear(ctx context.Context, conversationID string) error {
	return p.kv.Del(ctx, pendingKeyPrefix+conversationID)
}
