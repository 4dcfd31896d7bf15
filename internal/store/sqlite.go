// Package store provides storage backends for ragechat.
//
// This file implements the SQLite-backed store used by single-box
// deployments and development. Semantic chunk search is a Postgres-only
// capability; callers degrade to the plain catalog here.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rage-labs/ragechat/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists the same schema as PostgresStore in a local file.
type SQLiteStore struct {
	db     *sql.DB
	tables Opts
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN is a file path; its directory is created when missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.applyDefaults()
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")
	return &SQLiteStore{db: db, tables: cfg}, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetOrCreateConversation mirrors the Postgres implementation, with ids
// generated in Go.
func (s *SQLiteStore) GetOrCreateConversation(tenantID, externalContactID string) (*models.Conversation, error) {
	conv, err := s.GetConversationByContact(tenantID, externalContactID)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		if conv.DisplayName == "" && conv.State != models.StateAwaitingName {
			slog.Info("SQLiteStore.GetOrCreateConversation: conversation missing name, resetting to AWAITING_NAME", "conversation_id", conv.ID)
			if err := s.SetConversationState(conv.ID, models.StateAwaitingName); err != nil {
				return nil, err
			}
			conv.State = models.StateAwaitingName
		}
		return conv, nil
	}

	now := time.Now()
	created := &models.Conversation{
		ID:                uuid.NewString(),
		TenantID:          tenantID,
		ExternalContactID: externalContactID,
		State:             models.StateAwaitingName,
		Status:            models.ConversationStatusOpen,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	_, err = s.db.Exec(
		fmt.Sprintf(`INSERT INTO %s (id, tenant_id, external_contact_id, display_name, state, status, created_at, updated_at) VALUES (?, ?, ?, NULL, ?, ?, ?, ?)`,
			s.tables.ConversationsTable),
		created.ID, tenantID, externalContactID, created.State, created.Status, now, now,
	)
	if err != nil {
		slog.Error("SQLiteStore.GetOrCreateConversation: insert failed", "error", err, "tenant_id", tenantID)
		return nil, fmt.Errorf("failed to create conversation for %s: %w", externalContactID, err)
	}
	slog.Info("SQLiteStore.GetOrCreateConversation: conversation created", "conversation_id", created.ID)
	return created, nil
}

// GetConversationByContact resolves a conversation with no side effects.
func (s *SQLiteStore) GetConversationByContact(tenantID, externalContactID string) (*models.Conversation, error) {
	row := s.db.QueryRow(
		fmt.Sprintf(`SELECT %s FROM %s WHERE tenant_id = ? AND external_contact_id = ?`,
			conversationColumns, s.tables.ConversationsTable),
		tenantID, externalContactID,
	)
	conv, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	return conv, nil
}

// GetConversationByID fetches a conversation by primary key.
func (s *SQLiteStore) GetConversationByID(id string) (*models.Conversation, error) {
	row := s.db.QueryRow(
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, conversationColumns, s.tables.ConversationsTable),
		id,
	)
	conv, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation %s: %w", id, err)
	}
	return conv, nil
}

// SetConversationState writes the lifecycle state and update timestamp.
func (s *SQLiteStore) SetConversationState(conversationID string, state models.ConversationState) error {
	_, err := s.db.Exec(
		fmt.Sprintf(`UPDATE %s SET state = ?, updated_at = ? WHERE id = ?`, s.tables.ConversationsTable),
		state, time.Now(), conversationID,
	)
	if err != nil {
		slog.Error("SQLiteStore.SetConversationState failed", "error", err, "conversation_id", conversationID)
		return fmt.Errorf("failed to set conversation state: %w", err)
	}
	return nil
}

// SetDisplayName writes the display name and state ACTIVE in one update.
func (s *SQLiteStore) SetDisplayName(conversationID, name string) error {
	_, err := s.db.Exec(
		fmt.Sprintf(`UPDATE %s SET display_name = ?, state = ?, updated_at = ? WHERE id = ?`, s.tables.ConversationsTable),
		name, models.StateActive, time.Now(), conversationID,
	)
	if err != nil {
		slog.Error("SQLiteStore.SetDisplayName failed", "error", err, "conversation_id", conversationID)
		return fmt.Errorf("failed to set display name: %w", err)
	}
	return nil
}

// UpsertConversation creates or updates a conversation for the CRUD
// surface.
func (s *SQLiteStore) UpsertConversation(req models.ConversationUpsertRequest) (string, bool, error) {
	existing, err := s.GetConversationByContact(req.UserID, req.ExternalContactID)
	if err != nil {
		return "", false, err
	}

	if existing != nil {
		name := existing.DisplayName
		if req.ContactName != "" {
			name = req.ContactName
		}
		status := existing.Status
		if req.Status != "" {
			status = req.Status
		}
		_, err := s.db.Exec(
			fmt.Sprintf(`UPDATE %s SET display_name = ?, status = ?, updated_at = ? WHERE id = ?`, s.tables.ConversationsTable),
			nilIfEmpty(name), status, time.Now(), existing.ID,
		)
		if err != nil {
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
	id := uuid.NewString()
	now := time.Now()
	_, err = s.db.Exec(
		fmt.Sprintf(`INSERT INTO %s (id, tenant_id, external_contact_id, display_name, state, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			s.tables.ConversationsTable),
		id, req.UserID, req.ExternalContactID, nilIfEmpty(req.ContactName), state, status, now, now,
	)
	if err != nil {
		return "", false, fmt.Errorf("failed to insert conversation: %w", err)
	}
	return id, true, nil
}

// CreateMessage appends a message to its conversation.
func (s *SQLiteStore) CreateMessage(msg models.Message) (string, error) {
	metadata, err := marshalMetadata(msg.Metadata)
	if err != nil {
		return "", err
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	id := uuid.NewString()
	_, err = s.db.Exec(
		fmt.Sprintf(`INSERT INTO %s (id, conversation_id, tenant_id, direction, role, text, metadata, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			s.tables.MessagesTable),
		id, msg.ConversationID, msg.TenantID, msg.Direction, defaultRole(msg), msg.Text, metadata, ts,
	)
	if err != nil {
		slog.Error("SQLiteStore.CreateMessage failed", "error", err, "conversation_id", msg.ConversationID)
		return "", fmt.Errorf("failed to insert message: %w", err)
	}
	return id, nil
}

// GetHistory returns the limit most recent messages ordered oldest-first.
func (s *SQLiteStore) GetHistory(conversationID string, limit int) ([]models.Message, error) {
	rows, err := s.db.Query(
		fmt.Sprintf(`SELECT %s FROM (
			SELECT %s FROM %s WHERE conversation_id = ? ORDER BY timestamp DESC LIMIT ?
		) ORDER BY timestamp ASC`, messageColumns, messageColumns, s.tables.MessagesTable),
		conversationID, limit,
	)
	if err != nil {
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
	return messages, nil
}

// ListKnowledge fetches the tenant's knowledge catalog entries. A
// non-positive limit returns the whole catalog.
func (s *SQLiteStore) ListKnowledge(tenantID string, limit int) ([]models.KnowledgeEntry, error) {
	query := fmt.Sprintf(`SELECT id, tenant_id, category, data FROM %s WHERE tenant_id = ?`, s.tables.KnowledgeTable)
	args := []interface{}{tenantID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
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
	return entries, nil
}

// GetPersonality fetches the tenant's agent personality.
func (s *SQLiteStore) GetPersonality(tenantID string) (*models.Personality, error) {
	var p models.Personality
	err := s.db.QueryRow(
		fmt.Sprintf(`SELECT tenant_id, name, level, tone, address_form, greeting FROM %s WHERE tenant_id = ?`, s.tables.PersonalityTable),
		tenantID,
	).Scan(&p.TenantID, &p.Name, &p.Level, &p.Tone, &p.AddressForm, &p.Greeting)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query personality: %w", err)
	}
	return &p, nil
}
