// Package api provides the WhatsApp Cloud API webhook handlers.
package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rage-labs/ragechat/internal/models"
)

// webhookProcessTimeout bounds the background handling of one inbound
// message.
const webhookProcessTimeout = 60 * time.Second

// maxWebhookBody caps how much of a webhook delivery is read.
const maxWebhookBody = 1 << 20

// webhookHandler dispatches GET (handshake) and POST (events) on
// /webhook.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.verifyWebhookHandler(w, r)
	case http.MethodPost:
		s.receiveWebhookHandler(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// verifyWebhookHandler answers the Cloud API subscription handshake:
// echo hub.challenge when the verify token matches, 403 otherwise.
func (s *Server) verifyWebhookHandler(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && s.verifyToken != "" && token == s.verifyToken {
		slog.Info("Server.verifyWebhookHandler: webhook verified")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(challenge)); err != nil {
			slog.Error("Server.verifyWebhookHandler: failed to write challenge", "error", err)
		}
		return
	}

	slog.Warn("Server.verifyWebhookHandler: verification failed", "mode", mode)
	w.WriteHeader(http.StatusForbidden)
}

// receiveWebhookHandler accepts a webhook delivery. The signature is
// checked over the raw body before anything is parsed; processing then
// happens in the background so the delivery is acked immediately.
func (s *Server) receiveWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		slog.Warn("Server.receiveWebhookHandler: failed to read body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !s.validSignature(body, r.Header.Get("X-Hub-Signature-256")) {
		slog.Warn("Server.receiveWebhookHandler: invalid signature")
		w.WriteHeader(http.StatusForbidden)
		return
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.Warn("Server.receiveWebhookHandler: invalid JSON", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// Ack before processing: the Cloud API retries deliveries that do
	// not return 200 quickly.
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("EVENT_RECEIVED")); err != nil {
		slog.Error("Server.receiveWebhookHandler: failed to write ack", "error", err)
	}

	go s.processWebhookPayload(payload)
}

// validSignature checks the X-Hub-Signature-256 header against an
// HMAC-SHA256 of the raw body. An empty app secret disables checking.
func (s *Server) validSignature(body []byte, header string) bool {
	if s.appSecret == "" {
		return true
	}
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig))
}

// processWebhookPayload walks the delivery and handles each text
// message event.
func (s *Server) processWebhookPayload(payload models.WebhookPayload) {
	ctx, cancel := context.WithTimeout(context.Background(), webhookProcessTimeout)
	defer cancel()

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text == nil {
					slog.Debug("Server.processWebhookPayload: skipping non-text message", "type", msg.Type, "message_id", msg.ID)
					continue
				}
				s.handleInboundMessage(ctx, msg)
			}
		}
	}
}

// handleInboundMessage runs the dedupe, persistence, onboarding and
// reply-generation pipeline for one inbound text message.
func (s *Server) handleInboundMessage(ctx context.Context, msg models.WebhookMessage) {
	tenantID := s.defaultTenant
	if tenantID == "" {
		slog.Error("Server.handleInboundMessage: no webhook tenant configured, dropping message", "message_id", msg.ID)
		return
	}

	seen, err := s.deduper.Seen(ctx, msg.ID)
	if err != nil {
		slog.Warn("Server.handleInboundMessage: dedupe check failed, processing anyway", "error", err, "message_id", msg.ID)
	} else if seen {
		slog.Info("Server.handleInboundMessage: duplicate delivery ignored", "message_id", msg.ID)
		return
	}
	if err := s.deduper.Record(ctx, msg.ID); err != nil {
		slog.Warn("Server.handleInboundMessage: dedupe record failed", "error", err, "message_id", msg.ID)
	}

	from := msg.From
	text := msg.Text.Body
	slog.Info("Server.handleInboundMessage: processing message", "from", maskID(from), "message_id", msg.ID)

	existing, err := s.st.GetConversationByContact(tenantID, from)
	if err != nil {
		slog.Error("Server.handleInboundMessage: conversation lookup failed", "error", err, "from", maskID(from))
		return
	}
	firstContact := existing == nil

	conv, err := s.st.GetOrCreateConversation(tenantID, from)
	if err != nil {
		slog.Error("Server.handleInboundMessage: conversation lookup failed", "error", err, "from", maskID(from))
		return
	}
	if _, err := s.st.CreateMessage(models.Message{
		ConversationID: conv.ID,
		TenantID:       tenantID,
		Direction:      models.DirectionInbound,
		Role:           models.RoleUser,
		Text:           text,
		Metadata:       map[string]string{"wa_message_id": msg.ID},
	}); err != nil {
		slog.Error("Server.handleInboundMessage: failed to persist inbound message", "error", err, "conversation_id", conv.ID)
	}

	// A brand-new contact gets the greeting asking for their name; the
	// message that opened the conversation is not treated as a name
	// attempt and the state stays AWAITING_NAME.
	var reply string
	var proceed bool
	if firstContact {
		reply = s.flowProc.WelcomeMessage()
	} else {
		reply, proceed, err = s.flowProc.Process(ctx, text, from, tenantID)
		if err != nil {
			slog.Error("Server.handleInboundMessage: onboarding flow failed", "error", err, "conversation_id", conv.ID)
			return
		}
	}

	source := "flow"
	if proceed {
		source = "ai"
		reply, err = s.orch.Reply(ctx, tenantID, from, text)
		if err != nil {
			slog.Error("Server.handleInboundMessage: reply generation failed, sending fallback", "error", err, "conversation_id", conv.ID)
		}
	}
	if reply == "" {
		slog.Warn("Server.handleInboundMessage: empty reply, nothing to send", "conversation_id", conv.ID)
		return
	}

	if s.msgService == nil {
		slog.Warn("Server.handleInboundMessage: no messaging service configured, reply dropped", "conversation_id", conv.ID)
		return
	}
	if err := s.msgService.SendMessage(ctx, from, reply); err != nil {
		slog.Error("Server.handleInboundMessage: failed to send reply", "error", err, "from", maskID(from))
		return
	}

	if _, err := s.st.CreateMessage(models.Message{
		ConversationID: conv.ID,
		TenantID:       tenantID,
		Direction:      models.DirectionOutbound,
		Role:           models.RoleAssistant,
		Text:           reply,
		Metadata:       map[string]string{"source": source},
	}); err != nil {
		slog.Error("Server.handleInboundMessage: failed to persist outbound message", "error", err, "conversation_id", conv.ID)
	}

	slog.Info("Server.handleInboundMessage: reply sent", "conversation_id", conv.ID, "source", source)
}
