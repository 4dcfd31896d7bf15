// Package models defines the core data types shared across ragechat
// components: conversations, messages, the tenant knowledge catalog,
// agent personality configuration, and the API response envelope.
package models

import (
	"fmt"
	"time"
)

// MessageDirection indicates whether a message was received from the
// contact or sent by the agent.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// MessageRole tags who authored a message turn.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// ConversationStatus is the free-form lifecycle status of a conversation
// as exposed on the CRUD surface.
type ConversationStatus string

const (
	ConversationStatusOpen     ConversationStatus = "open"
	ConversationStatusClosed   ConversationStatus = "closed"
	ConversationStatusArchived ConversationStatus = "archived"
)

// Conversation is one chat thread between a tenant and an external
// contact. Exactly one exists per (TenantID, ExternalContactID) pair.
type Conversation struct {
	ID                string             `json:"id"`
	TenantID          string             `json:"tenant_id"`
	ExternalContactID string             `json:"external_contact_id"`
	DisplayName       string             `json:"display_name,omitempty"` // empty until onboarding completes
	State             ConversationState  `json:"state"`
	Status            ConversationStatus `json:"status"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// Message is a single turn in a conversation. Messages are append-only
// and ordered by Timestamp ascending within their conversation.
type Message struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversation_id"`
	TenantID       string            `json:"tenant_id"`
	Direction      MessageDirection  `json:"direction"`
	Role           MessageRole       `json:"role"`
	Text           string            `json:"text"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
}

// KnowledgeCategory is the closed set of knowledge catalog entry kinds.
// Rendering switches over this set exhaustively; unknown values coming
// from the datastore fall through to a default renderer.
type KnowledgeCategory string

const (
	CategoryProduct KnowledgeCategory = "produto"
	CategoryService KnowledgeCategory = "servico"
	CategoryCompany KnowledgeCategory = "empresa"
	CategoryFAQ     KnowledgeCategory = "faq"
	CategoryCustom  KnowledgeCategory = "personalizado"
)

// KnowledgeEntry is one tenant-supplied catalog item. Data carries the
// category-specific payload as stored in the datastore's JSON column.
type KnowledgeEntry struct {
	ID       string                 `json:"id"`
	TenantID string                 `json:"tenant_id"`
	Category KnowledgeCategory      `json:"category"`
	Data     map[string]interface{} `json:"data"`
}

// KnowledgeChunk is a fragment of catalog text indexed for semantic
// search, with the similarity score filled in by the search.
type KnowledgeChunk struct {
	ID         string  `json:"id"`
	TenantID   string  `json:"tenant_id"`
	Category   string  `json:"category"`
	Text       string  `json:"chunk_text"`
	Similarity float64 `json:"similarity"`
}

// VoiceTone enumerates the personality tone-of-voice settings.
type VoiceTone string

const (
	ToneFormal   VoiceTone = "formal"
	ToneFriendly VoiceTone = "amigavel"
	ToneDirect   VoiceTone = "objetivo"
	ToneCasual   VoiceTone = "descontraido"
)

// AddressForm enumerates how the agent addresses the contact.
type AddressForm string

const (
	AddressVoce     AddressForm = "voce"
	AddressSenhor   AddressForm = "senhor"
	AddressInformal AddressForm = "informal"
)

// Personality is a tenant's agent configuration: display name, a 1-10
// register level, tone of voice and address form.
type Personality struct {
	TenantID    string      `json:"tenant_id,omitempty"`
	Name        string      `json:"name"`
	Level       int         `json:"level"`
	Tone        VoiceTone   `json:"tone"`
	AddressForm AddressForm `json:"address_form"`
	Greeting    string      `json:"greeting"`
}

// DefaultPersonality is used whenever a tenant has no personality row.
func DefaultPersonality() Personality {
	return Personality{
		Name:        "Assistente Virtual",
		Level:       5,
		Tone:        ToneFriendly,
		AddressForm: AddressVoce,
		Greeting:    "Olá! Como posso ajudar?",
	}
}

// Validate checks a message direction as accepted on the CRUD surface.
func (d MessageDirection) Validate() error {
	switch d {
	case DirectionInbound, DirectionOutbound:
		return nil
	}
	return fmt.Errorf("invalid direction %q: must be %q or %q", d, DirectionInbound, DirectionOutbound)
}
