// Package store provides storage backends for ragechat.
//
// It persists conversations, their append-only message history, the
// tenant knowledge catalog and agent personality configuration. Three
// implementations are provided: PostgreSQL (production), SQLite
// (single-box deployments and development) and an in-memory store used
// by tests and DSN-less runs.
package store

import (
	"strings"

	"github.com/rage-labs/ragechat/internal/models"
)

// Default table names. The hosted datastore the original deployment
// points at uses different (Portuguese) names, so each is overridable.
const (
	DefaultConversationsTable = "conversations"
	DefaultMessagesTable      = "messages"
	DefaultKnowledgeTable     = "knowledge_base"
	DefaultPersonalityTable   = "personality"
	DefaultChunksTable        = "knowledge_chunks"
)

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN                string
	ConversationsTable string
	MessagesTable      string
	KnowledgeTable     string
	PersonalityTable   string
}

// Option defines a configuration option for store constructors.
type Option func(*Opts)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithConversationsTable overrides the conversations table name.
// Overridden tables are assumed to exist with a compatible schema;
// migrations only manage the default-named tables.
func WithConversationsTable(name string) Option {
	return func(o *Opts) { o.ConversationsTable = name }
}

// WithMessagesTable overrides the messages table name.
func WithMessagesTable(name string) Option {
	return func(o *Opts) { o.MessagesTable = name }
}

// WithKnowledgeTable overrides the knowledge catalog table name.
func WithKnowledgeTable(name string) Option {
	return func(o *Opts) { o.KnowledgeTable = name }
}

// applyDefaults fills unset table names.
func (o *Opts) applyDefaults() {
	if o.ConversationsTable == "" {
		o.ConversationsTable = DefaultConversationsTable
	}
	if o.MessagesTable == "" {
		o.MessagesTable = DefaultMessagesTable
	}
	if o.KnowledgeTable == "" {
		o.KnowledgeTable = DefaultKnowledgeTable
	}
	if o.PersonalityTable == "" {
		o.PersonalityTable = DefaultPersonalityTable
	}
}

// Store is the persistence contract consumed by the flow, history and
// orchestration components. Datastore errors propagate to the caller
// unwrapped into fallbacks; the request boundary translates them.
type Store interface {
	// GetOrCreateConversation looks up the conversation for the tenant
	// and external contact, creating it in AWAITING_NAME when absent.
	// An existing conversation without a display name is forced back to
	// AWAITING_NAME and the correction is persisted before returning.
	GetOrCreateConversation(tenantID, externalContactID string) (*models.Conversation, error)

	// GetConversationByContact resolves a conversation without side
	// effects. Returns nil when none exists.
	GetConversationByContact(tenantID, externalContactID string) (*models.Conversation, error)

	// GetConversationByID fetches a conversation by primary key.
	// Returns nil when none exists.
	GetConversationByID(id string) (*models.Conversation, error)

	// SetConversationState writes the lifecycle state and bumps the
	// update timestamp. Transition legality is the caller's concern.
	SetConversationState(conversationID string, state models.ConversationState) error

	// SetDisplayName writes the display name and sets state ACTIVE in a
	// single update.
	SetDisplayName(conversationID, name string) error

	// UpsertConversation creates or updates a conversation record for
	// the CRUD surface. Reports whether a row was created.
	UpsertConversation(req models.ConversationUpsertRequest) (string, bool, error)

	// CreateMessage appends a message and returns its id.
	CreateMessage(msg models.Message) (string, error)

	// GetHistory returns up to limit of the most recent messages for a
	// conversation, ordered oldest-first.
	GetHistory(conversationID string, limit int) ([]models.Message, error)

	// ListKnowledge fetches up to limit knowledge catalog entries for a
	// tenant.
	ListKnowledge(tenantID string, limit int) ([]models.KnowledgeEntry, error)

	// GetPersonality fetches the tenant's agent personality. Returns
	// nil when none is configured.
	GetPersonality(tenantID string) (*models.Personality, error)

	// Close releases the underlying resources.
	Close() error
}

// VectorSearcher is the optional capability for semantic knowledge
// search. Only the PostgreSQL store implements it (pgvector); callers
// type-assert and degrade to the plain catalog when it is absent.
type VectorSearcher interface {
	// SearchChunks returns up to topK chunks for the tenant whose
	// similarity to the query embedding meets the threshold, most
	// similar first.
	SearchChunks(tenantID string, embedding []float64, topK int, threshold float64) ([]models.KnowledgeChunk, error)

	// ReplaceChunks atomically replaces the tenant's indexed chunks.
	// chunks[i] pairs with embeddings[i].
	ReplaceChunks(tenantID string, chunks []models.KnowledgeChunk, embeddings [][]float64) error
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite3" based on
// its shape. Postgres DSNs use a URL scheme or key=value form; anything
// else is treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite3"
}
