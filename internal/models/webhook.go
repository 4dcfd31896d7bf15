// Package models defines the subset of the WhatsApp Business Cloud API
// webhook payload that ragechat consumes.
package models

// WebhookPayload is the top-level POST /webhook body. Only text message
// events under object "whatsapp_business_account" are processed.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

// WebhookEntry is one account-level entry in a webhook delivery.
type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

// WebhookChange wraps a value object describing what changed.
type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

// WebhookValue carries the messages and metadata of a change.
type WebhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         WebhookMetadata  `json:"metadata"`
	Messages         []WebhookMessage `json:"messages"`
}

// WebhookMetadata identifies the receiving business phone number.
type WebhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// WebhookMessage is one inbound message event.
type WebhookMessage struct {
	ID        string       `json:"id"`
	From      string       `json:"from"`
	Timestamp string       `json:"timestamp"`
	Type      string       `json:"type"`
	Text      *WebhookText `json:"text,omitempty"`
}

// WebhookText is the text body of a message event.
type WebhookText struct {
	Body string `json:"body"`
}
