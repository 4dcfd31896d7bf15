// Package models defines request/response DTOs for the ragechat HTTP
// API, plus the standard JSON response envelope.
package models

import (
	"fmt"
	"strings"
)

// ChatRequest is the synchronous chat endpoint payload. ExternalContactID
// is optional; when present, conversation history is injected into the
// prompt.
type ChatRequest struct {
	UserID            string `json:"user_id"`
	Message           string `json:"message"`
	ExternalContactID string `json:"external_contact_id,omitempty"`
}

// Validate checks required chat request fields.
func (r ChatRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("missing required field: user_id")
	}
	if strings.TrimSpace(r.Message) == "" {
		return fmt.Errorf("missing required field: message")
	}
	return nil
}

// ChatResponse is returned by both the chat and simulation endpoints.
type ChatResponse struct {
	Reply     string `json:"reply"`
	Source    string `json:"source"`
	RequestID string `json:"request_id,omitempty"`
}

// ConversationUpsertRequest creates or updates a conversation record for
// an orchestration caller.
type ConversationUpsertRequest struct {
	UserID            string             `json:"user_id"`
	ExternalContactID string             `json:"external_contact_id"`
	ContactName       string             `json:"contact_name,omitempty"`
	Source            string             `json:"source,omitempty"`
	Status            ConversationStatus `json:"status,omitempty"`
}

// Validate checks required upsert fields.
func (r ConversationUpsertRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("missing required field: user_id")
	}
	if strings.TrimSpace(r.ExternalContactID) == "" {
		return fmt.Errorf("missing required field: external_contact_id")
	}
	return nil
}

// ConversationUpsertResponse reports the resulting conversation id and
// whether it was newly created.
type ConversationUpsertResponse struct {
	ConversationID string `json:"conversation_id"`
	Created        bool   `json:"created"`
}

// MessageCreateRequest appends a message to a conversation. When
// ConversationID is empty the conversation is resolved (or created)
// from UserID + ExternalContactID.
type MessageCreateRequest struct {
	UserID            string            `json:"user_id"`
	ExternalContactID string            `json:"external_contact_id,omitempty"`
	ConversationID    string            `json:"conversation_id,omitempty"`
	Direction         MessageDirection  `json:"direction"`
	Type              MessageRole       `json:"type,omitempty"`
	Text              string            `json:"text"`
	TimestampUnix     int64             `json:"timestamp_ts,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// Validate checks required message-create fields.
func (r MessageCreateRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("missing required field: user_id")
	}
	if r.ConversationID == "" && strings.TrimSpace(r.ExternalContactID) == "" {
		return fmt.Errorf("either conversation_id or external_contact_id is required")
	}
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("missing required field: text")
	}
	return r.Direction.Validate()
}

// MessageCreateResponse reports the stored message and its conversation.
type MessageCreateResponse struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
}

// APIStatus represents the status values used in API responses.
type APIStatus string

const (
	APIStatusOK    APIStatus = "ok"
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{response: APIResponse{}}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
