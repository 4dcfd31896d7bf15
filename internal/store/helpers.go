package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rage-labs/ragechat/internal/models"
)

// rowScanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// conversationColumns is the column list every conversation query selects,
// in the order scanConversation expects.
const conversationColumns = "id, tenant_id, external_contact_id, display_name, state, status, created_at, updated_at"

// scanConversation scans a Conversation from a row.
func scanConversation(row rowScanner) (*models.Conversation, error) {
	var c models.Conversation
	var displayName sql.NullString
	err := row.Scan(&c.ID, &c.TenantID, &c.ExternalContactID, &displayName, &c.State, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.DisplayName = displayName.String
	return &c, nil
}

// messageColumns is the column list every message query selects, in the
// order scanMessage expects.
const messageColumns = "id, conversation_id, tenant_id, direction, role, text, metadata, timestamp"

// scanMessage scans a Message from a row, decoding the metadata JSON
// column when present.
func scanMessage(row rowScanner) (models.Message, error) {
	var m models.Message
	var metadata sql.NullString
	err := row.Scan(&m.ID, &m.ConversationID, &m.TenantID, &m.Direction, &m.Role, &m.Text, &metadata, &m.Timestamp)
	if err != nil {
		return m, fmt.Errorf("scan message failed: %w", err)
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &m.Metadata); err != nil {
			return m, fmt.Errorf("decode message metadata failed: %w", err)
		}
	}
	return m, nil
}

// marshalMetadata encodes message metadata for a nullable JSON column.
func marshalMetadata(metadata map[string]string) (interface{}, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode message metadata failed: %w", err)
	}
	return string(raw), nil
}

// unmarshalKnowledgeData decodes a catalog entry's JSON payload column.
func unmarshalKnowledgeData(raw []byte, e *models.KnowledgeEntry) error {
	if err := json.Unmarshal(raw, &e.Data); err != nil {
		return fmt.Errorf("decode knowledge data failed: %w", err)
	}
	return nil
}

// defaultRole derives a role tag from the direction when the caller did
// not supply one.
func defaultRole(msg models.Message) models.MessageRole {
	if msg.Role != "" {
		return msg.Role
	}
	if msg.Direction == models.DirectionOutbound {
		return models.RoleAssistant
	}
	return models.RoleUser
}
