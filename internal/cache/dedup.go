package cache

import (
	"context"
	"log/slog"
	"time"
)

// DefaultIdempotencyTTL is the default suppression window for repeated
// provider message ids.
const DefaultIdempotencyTTL = 10 * time.Minute

const idempotencyKeyPrefix = "idemp:"

// Deduper suppresses duplicate webhook deliveries by provider message
// id within a TTL window. Best-effort: with the in-memory backend the
// window is lost on restart and not shared across instances.
type Deduper struct {
	kv  KV
	ttl time.Duration
}

// NewDeduper creates a Deduper over the given KV backend. A zero ttl
// selects DefaultIdempotencyTTL.
func NewDeduper(kv KV, ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &Deduper{kv: kv, ttl: ttl}
}

// Seen reports whether the message id was already recorded within the
// window.
func (d *Deduper) Seen(ctx context.Context, messageID string) (bool, error) {
	return d.kv.Exists(ctx, idempotencyKeyPrefix+messageID)
}

// Record marks a message id as processed for the rest of the window.
func (d *Deduper) Record(ctx context.Context, messageID string) error {
	if err := d.kv.SetEx(ctx, idempotencyKeyPrefix+messageID, "1", d.ttl); err != nil {
		return err
	}
	slog.Debug("Deduper.Record: message id recorded", "message_id", messageID, "ttl", d.ttl)
	return nil
}
