// Package store provides storage backends for ragechat.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
	"github.com/rage-labs/ragechat/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

//go:embed migrations_pgvector.sql
var pgvectorMigrations string

// PostgresStore persists conversations, messages, knowledge and
// personality in PostgreSQL. It also implements VectorSearcher when the
// pgvector extension is available.
type PostgresStore struct {
	db          *sql.DB
	tables      Opts
	vectorReady bool
}

// Compile-time checks.
var (
	_ Store          = (*PostgresStore)(nil)
	_ VectorSearcher = (*PostgresStore)(nil)
)

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.applyDefaults()
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// pgvector is optional; without it context retrieval degrades to the
	// plain catalog listing.
	vectorReady := true
	if _, err := db.Exec(pgvectorMigrations); err != nil {
		slog.Warn("PostgresStore: pgvector unavailable, semantic search disabled", "error", err)
		vectorReady = false
	}

	slog.Debug("Postgres migrations applied", "vector_ready", vectorReady)
	return &PostgresStore{db: db, tables: cfg, vectorReady: vectorReady}, nil
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// GetOrCreateConversation implements the Store contract, including the
// self-healing rule: an existing conversation without a display name is
// forced back to AWAITING_NAME before it is returned.
func (s *PostgresStore) GetOrCreateConversation(tenantID, externalContactID string) (*models.Conversation, error) {
	conv, err := s.GetConversationByContact(tenantID, externalContactID)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		if conv.DisplayName == "" && conv.State != models.StateAwaitingName {
			slog.Info("PostgresStore.GetOrCreateConversation: conversation missing name, resetting to AWAITING_NAME", "conversation_id", conv.ID)
			if err := s.SetConversationState(conv.ID, models.StateAwaitingName); err != nil {
				return nil, err
			}
			conv.State = models.StateAwaitingName
		}
		return conv, nil
	}

	slog.Info("PostgresStore.GetOrCreateConversation: creating conversation", "tenant_id", tenantID, "contact", externalContactID)
	row := s.db.QueryRow(
		fmt.Sprintf(`INSERT INTO %s (tenant_id, external_contact_id, state, status) VALUES ($1, $2, $3, $4) RETURNING %s`,
			s.tables.ConversationsTable, conversationColumns),
		tenantID, externalContactID, models.StateAwaitingName, models.ConversationStatusOpen,
	)
	created, err := scanConversation(row)
	if err != nil {
		slog.Error("PostgresStore.GetOrCreateConversation: insert failed", "error", err, "tenant_id", tenantID)
		return nil, fmt.Errorf("failed to create conversation for %s: %w", externalContactID, err)
	}
	return created, nil
}

// GetConversationByContact resolves a conversation with no side effects.
func (s *PostgresStore) GetConversationByContact(tenantID, externalContactID string) (*models.Conversation, error) {
	row := s.db.QueryRow(
		fmt.Sprintf(`SELECT %s FROM %s WHERE tenant_id = $1 AND external_contact_id = $2`,
			conversationColumns, s.tables.ConversationsTable),
		tenantID, externalContactID,
	)
	conv, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.GetConversationByContact: query failed", "error", err, "tenant_id", tenantID)
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	return conv, nil
}

// GetConversationByID fetches a conversation by primary key.
func (s *PostgresStore) GetConversationByID(id string) (*models.Conversation, error) {
	row := s.db.QueryRow(
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, conversationColumns, s.tables.ConversationsTable),
		id,
	)
	conv, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.GetConversationByID: query failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query conversation %s: %w", id, err)
	}
	return conv, nil
}

// SetConversationState writes the lifecycle state and update timestamp.
func (s *PostgresStore) SetConversationState(conversationID string, state models.ConversationState) error {
	_, err := s.db.Exec(
		fmt.Sprintf(`UPDATE %s SET state = $1, updated_at = now() WHERE id = $2`, s.tables.ConversationsTable),
		state, conversationID,
	)
	if err != nil {
		slog.Error("PostgresStore.SetConversationState failed", "error", err, "conversation_id", conversationID, "state", state)
		return fmt.Errorf("failed to set conversation state: %w", err)
	}
	slog.Debug("PostgresStore.SetConversationState succeeded", "conversation_id", conversationID, "state", state)
	return nil
}

// SetDisplayName writes the display name and state ACTIVE in one update.
func (s *PostgresStore) SetDisplayName(conversationID, name string) error {
	_, err := s.db.Exec(
		fmt.Sprintf(`UPDATE %s SET display_name = $1, state = $2, updated_at = now() WHERE id = $3`, s.tables.ConversationsTable),
		name, models.StateActive, conversationID,
	)
	if err != nil {
		slog.Error("PostgresStore.SetDisplayName failed", "error", err, "conversation_id", conversationID)
		return fmt.Errorf("failed to set display name: %w", err)
	}
	slog.Info("PostgresStore.SetDisplayName succeeded", "conversation_id", conversationID)
	return nil
}

// UpsertConversation creates or updates a conversation for the CRUD
// surface.
func (s *PostgresStore) UpsertConversation(req models.ConversationUpsertRequest) (string, bool, error) {
	existing, err := s.GetConversationByContact(req.UserID, req.ExternalContactID)
	if err != nil {
		return "", false, err
	}

	if existing != nil {
		sets := []string{"updated_at = now()"}
		args := []interface{}{}
		if req.ContactName != "" && req.ContactName != existing.DisplayName {
			args = append(args, req.ContactName)
			sets = append(sets, "display_name = $"+strconv.Itoa(len(args)))
		}
		if req.Status != "" && req.Status != existing.Status {
			args = append(args, req.Status)
			sets = append(sets, "status = $"+strconv.Itoa(len(args)))
		}
		args = append(args, existing.ID)
		_, err := s.db.Exec(
			fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d`, s.tables.ConversationsTable, strings.Join(sets, ", "), len(args)),
			args...,
		)
		if err != nil {
			slog.Error("PostgresStore.UpsertConversation: update failed", "error", err, "conversation_id", existing.ID)
			return "", false, fmt.Errorf("failed to update conversation: %w", err)
		}
		return existing.ID, false, nil
	}

	state := models.StateAwaitingName
	if req.ContactName != "" {
		state = models.StateActive
	}
	status := req.Status
	if status == "" {
		status = models.ConversationStatusOpen
	}
	var id string
	err = s.db.QueryRow(
		fmt.Sprintf(`INSERT INTO %s (tenant_id, external_contact_id, display_name, state, status) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			s.tables.ConversationsTable),
		req.UserID, req.ExternalContactID, nilIfEmpty(req.ContactName), state, status,
	).Scan(&id)
	if err != nil {
		slog.Error("PostgresStore.UpsertConversation: insert failed", "error", err, "tenant_id", req.UserID)
		return "", false, fmt.Errorf("failed to insert conversation: %w", err)
	}
	slog.Info("PostgresStore.UpsertConversation: conversation created", "conversation_id", id)
	return id, true, nil
}

// CreateMessage appends a message to its conversation.
func (s *PostgresStore) CreateMessage(msg models.Message) (string, error) {
	metadata, err := marshalMetadata(msg.Metadata)
	if err != nil {
		return "", err
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	var id string
	err = s.db.QueryRow(
		fmt.Sprintf(`INSERT INTO %s (conversation_id, tenant_id, direction, role, text, metadata, timestamp) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			s.tables.MessagesTable),
		msg.ConversationID, msg.TenantID, msg.Direction, defaultRole(msg), msg.Text, metadata, ts,
	).Scan(&id)
	if err != nil {
		slog.Error("PostgresStore.CreateMessage failed", "error", err, "conversation_id", msg.ConversationID)
		return "", fmt.Errorf("failed to insert message: %w", err)
	}
	slog.Debug("PostgresStore.CreateMessage succeeded", "message_id", id, "direction", msg.Direction)
	return id, nil
}

// GetHistory returns the limit most recent messages ordered oldest-first.
func (s *PostgresStore) GetHistory(conversationID string, limit int) ([]models.Message, error) {
	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT %s FROM (
			SELECT %s FROM %s WHERE conversation_id = $1 ORDER BY timestamp DESC LIMIT $2
		) recent ORDER BY timestamp ASC`, messageColumns, messageColumns, s.tables.MessagesTable),
		conversationID, limit,
	)
	if err != nil {
		slog.Error("PostgresStore.GetHistory query failed", "error", err, "conversation_id", conversationID)
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}
	slog.Debug("PostgresStore.GetHistory succeeded", "conversation_id", conversationID, "count", len(messages))
	return messages, nil
}

// ListKnowledge fetches the tenant's knowledge catalog entries. A
// non-positive limit returns the whole catalog.
func (s *PostgresStore) ListKnowledge(tenantID string, limit int) ([]models.KnowledgeEntry, error) {
	query := fmt.Sprintf(`SELECT id, tenant_id, category, data FROM %s WHERE tenant_id = $1`, s.tables.KnowledgeTable)
	args := []interface{}{tenantID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore.ListKnowledge query failed", "error", err, "tenant_id", tenantID)
		return nil, fmt.Errorf("failed to query knowledge base: %w", err)
	}
	defer rows.Close()

	var entries []models.KnowledgeEntry
	for rows.Next() {
		var e models.KnowledgeEntry
		var raw []byte
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Category, &raw); err != nil {
			return nil, fmt.Errorf("scan knowledge entry failed: %w", err)
		}
		if len(raw) > 0 {
			if err := unmarshalKnowledgeData(raw, &e); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate knowledge rows: %w", err)
	}
	slog.Debug("PostgresStore.ListKnowledge succeeded", "tenant_id", tenantID, "count", len(entries))
	return entries, nil
}

// GetPersonality fetches the tenant's agent personality.
func (s *PostgresStore) GetPersonality(tenantID string) (*models.Personality, error) {
	var p models.Personality
	err := s.db.QueryRow(
		fmt.Sprintf(`SELECT tenant_id, name, level, tone, address_form, greeting FROM %s WHERE tenant_id = $1`, s.tables.PersonalityTable),
		tenantID,
	).Scan(&p.TenantID, &p.Name, &p.Level, &p.Tone, &p.AddressForm, &p.Greeting)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.GetPersonality query failed", "error", err, "tenant_id", tenantID)
		return nil, fmt.Errorf("failed to query personality: %w", err)
	}
	return &p, nil
}

// SearchChunks runs a pgvector cosine-similarity search over the
// tenant's indexed knowledge chunks.
func (s *PostgresStore) SearchChunks(tenantID string, embedding []float64, topK int, threshold float64) ([]models.KnowledgeChunk, error) {
	if !s.vectorReady {
		return nil, fmt.Errorf("vector search unavailable: pgvector extension not installed")
	}
	vec := vectorLiteral(embedding)
	rows, err := s.db.Query(
		`SELECT id, tenant_id, category, chunk_text, 1 - (embedding <=> $2::vector) AS similarity
		 FROM knowledge_chunks
		 WHERE tenant_id = $1 AND 1 - (embedding <=> $2::vector) >= $3
		 ORDER BY embedding <=> $2::vector
		 LIMIT $4`,
		tenantID, vec, threshold, topK,
	)
	if err != nil {
		slog.Error("PostgresStore.SearchChunks query failed", "error", err, "tenant_id", tenantID)
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.KnowledgeChunk
	for rows.Next() {
		var c models.KnowledgeChunk
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Category, &c.Text, &c.Similarity); err != nil {
			return nil, fmt.Errorf("scan chunk failed: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunk rows: %w", err)
	}
	slog.Debug("PostgresStore.SearchChunks succeeded", "tenant_id", tenantID, "count", len(chunks))
	return chunks, nil
}

// ReplaceChunks swaps the tenant's indexed chunks inside a transaction.
func (s *PostgresStore) ReplaceChunks(tenantID string, chunks []models.KnowledgeChunk, embeddings [][]float64) error {
	if !s.vectorReady {
		return fmt.Errorf("vector search unavailable: pgvector extension not installed")
	}
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk/embedding count mismatch: %d vs %d", len(chunks), len(embeddings))
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin chunk replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM knowledge_chunks WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	for i, c := range chunks {
		_, err := tx.Exec(
			`INSERT INTO knowledge_chunks (tenant_id, knowledge_id, category, chunk_text, embedding) VALUES ($1, $2, $3, $4, $5::vector)`,
			tenantID, nilIfEmpty(c.ID), c.Category, c.Text, vectorLiteral(embeddings[i]),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunk replace: %w", err)
	}
	slog.Info("PostgresStore.ReplaceChunks succeeded", "tenant_id", tenantID, "count", len(chunks))
	return nil
}

// vectorLiteral renders an embedding in pgvector's input syntax.
func vectorLiteral(embedding []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}
