// Package store provides storage backends for ragechat.
//
// This file implements an in-memory store used by unit tests and
// DSN-less runs. Not durable, not shared across processes.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rage-labs/ragechat/internal/models"
)

// InMemoryStore keeps all records in process memory behind a mutex.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*models.Conversation // keyed by id
	messages      map[string][]models.Message     // keyed by conversation id
	knowledge     map[string][]models.KnowledgeEntry
	personalities map[string]models.Personality
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]models.Message),
		knowledge:     make(map[string][]models.KnowledgeEntry),
		personalities: make(map[string]models.Personality),
	}
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) findByContact(tenantID, externalContactID string) *models.Conversation {
	for _, c := range s.conversations {
		if c.TenantID == tenantID && c.ExternalContactID == externalContactID {
			return c
		}
	}
	return nil
}

// GetOrCreateConversation implements the Store contract, including the
// self-healing AWAITING_NAME rule.
func (s *InMemoryStore) GetOrCreateConversation(tenantID, externalContactID string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c := s.findByContact(tenantID, externalContactID); c != nil {
		if c.DisplayName == "" && c.State != models.StateAwaitingName {
			c.State = models.StateAwaitingName
			c.UpdatedAt = time.Now()
		}
		copied := *c
		return &copied, nil
	}

	now := time.Now()
	c := &models.Conversation{
		ID:                uuid.NewString(),
		TenantID:          tenantID,
		ExternalContactID: externalContactID,
		State:             models.StateAwaitingName,
		Status:            models.ConversationStatusOpen,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.conversations[c.ID] = c
	copied := *c
	return &copied, nil
}

// GetConversationByContact resolves a conversation with no side effects.
func (s *InMemoryStore) GetConversationByContact(tenantID, externalContactID string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c := s.findByContact(tenantID, externalContactID); c != nil {
		copied := *c
		return &copied, nil
	}
	return nil, nil
}

// GetConversationByID fetches a conversation by primary key.
func (s *InMemoryStore) GetConversationByID(id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.conversations[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, nil
}

// SetConversationState writes the lifecycle state.
func (s *InMemoryStore) SetConversationState(conversationID string, state models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return fmt.Errorf("conversation %s not found", conversationID)
	}
	c.State = state
	c.UpdatedAt = time.Now()
	return nil
}

// SetDisplayName writes the display name and state ACTIVE together.
func (s *InMemoryStore) SetDisplayName(conversationID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return fmt.Errorf("conversation %s not found", conversationID)
	}
	c.DisplayName = name
	c.State = models.StateActive
	c.UpdatedAt = time.Now()
	return nil
}

// UpsertConversation creates or updates a conversation record.
func (s *InMemoryStore) UpsertConversation(req models.ConversationUpsertRequest) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c := s.findByContact(req.UserID, req.ExternalContactID); c != nil {
		if req.ContactName != "" {
			c.DisplayName = req.ContactName
		}
		if req.Status != "" {
			c.Status = req.Status
		}
		c.UpdatedAt = time.Now()
		return c.ID, false, nil
	}

	state := models.StateAwaitingName
	if req.ContactName != "" {
		state = models.StateActive
	}
	status := req.Status
	if status == "" {
		status = models.ConversationStatusOpen
	}
	now := time.Now()
	c := &models.Conversation{
		ID:                uuid.NewString(),
		TenantID:          req.UserID,
		ExternalContactID: req.ExternalContactID,
		DisplayName:       req.ContactName,
		State:             state,
		Status:            status,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.conversations[c.ID] = c
	return c.ID, true, nil
}

// CreateMessage appends a message to its conversation.
func (s *InMemoryStore) CreateMessage(msg models.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[msg.ConversationID]; !ok {
		return "", fmt.Errorf("conversation %s not found", msg.ConversationID)
	}
	msg.ID = uuid.NewString()
	msg.Role = defaultRole(msg)
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)
	return msg.ID, nil
}

// GetHistory returns the limit most recent messages ordered oldest-first.
func (s *InMemoryStore) GetHistory(conversationID string, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[conversationID]
	sorted := make([]models.Message, len(all))
	copy(sorted, all)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}
	return sorted, nil
}

// ListKnowledge fetches the tenant's knowledge catalog entries.
func (s *InMemoryStore) ListKnowledge(tenantID string, limit int) ([]models.KnowledgeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.knowledge[tenantID]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]models.KnowledgeEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// GetPersonality fetches the tenant's agent personality.
func (s *InMemoryStore) GetPersonality(tenantID string) (*models.Personality, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.personalities[tenantID]; ok {
		copied := p
		return &copied, nil
	}
	return nil, nil
}

// SeedKnowledge adds catalog entries for a tenant (test helper).
func (s *InMemoryStore) SeedKnowledge(tenantID string, entries ...models.KnowledgeEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
		entries[i].TenantID = tenantID
	}
	s.knowledge[tenantID] = append(s.knowledge[tenantID], entries...)
}

// SeedPersonality sets a tenant's personality (test helper).
func (s *InMemoryStore) SeedPersonality(tenantID string, p models.Personality) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.TenantID = tenantID
	s.personalities[tenantID] = p
}

// MessageCount reports how many messages a conversation holds (test helper).
func (s *InMemoryStore) MessageCount(conversationID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages[conversationID])
}

// ConversationCount reports the number of stored conversations (test helper).
func (s *InMemoryStore) ConversationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}
