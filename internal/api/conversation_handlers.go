// Package api provides conversation and message CRUD handlers used by
// orchestration callers (n8n and the dashboard backend).
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rage-labs/ragechat/internal/models"
)

// upsertConversationHandler handles POST /conversations/upsert.
func (s *Server) upsertConversationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.upsertConversationHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.ConversationUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.upsertConversationHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.upsertConversationHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	conversationID, created, err := s.st.UpsertConversation(req)
	if err != nil {
		slog.Error("Server.upsertConversationHandler: upsert failed", "error", err, "user_id", maskID(req.UserID))
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to upsert conversation"))
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	slog.Info("Server.upsertConversationHandler: conversation upserted", "conversation_id", conversationID, "created", created)
	writeJSONResponse(w, status, models.Success(models.ConversationUpsertResponse{
		ConversationID: conversationID,
		Created:        created,
	}))
}

// createMessageHandler handles POST /messages: append a message to a
// conversation, resolving the conversation from the contact when no id
// is given.
func (s *Server) createMessageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.createMessageHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.MessageCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.createMessageHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.createMessageHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	conversationID := req.ConversationID
	if conversationID != "" {
		conv, err := s.st.GetConversationByID(conversationID)
		if err != nil {
			slog.Error("Server.createMessageHandler: conversation lookup failed", "error", err, "conversation_id", conversationID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to resolve conversation"))
			return
		}
		if conv == nil {
			slog.Warn("Server.createMessageHandler: unknown conversation", "conversation_id", conversationID)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Unknown conversation_id"))
			return
		}
	} else {
		conv, err := s.st.GetOrCreateConversation(req.UserID, req.ExternalContactID)
		if err != nil {
			slog.Error("Server.createMessageHandler: conversation resolution failed", "error", err, "user_id", maskID(req.UserID))
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to resolve conversation"))
			return
		}
		conversationID = conv.ID
	}

	msg := models.Message{
		ConversationID: conversationID,
		TenantID:       req.UserID,
		Direction:      req.Direction,
		Role:           req.Type,
		Text:           req.Text,
		Metadata:       req.Metadata,
	}
	if req.TimestampUnix > 0 {
		msg.Timestamp = time.Unix(req.TimestampUnix, 0).UTC()
	}

	messageID, err := s.st.CreateMessage(msg)
	if err != nil {
		slog.Error("Server.createMessageHandler: failed to store message", "error", err, "conversation_id", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store message"))
		return
	}

	slog.Info("Server.createMessageHandler: message recorded", "message_id", messageID, "conversation_id", conversationID)
	writeJSONResponse(w, http.StatusCreated, models.Success(models.MessageCreateResponse{
		MessageID:      messageID,
		ConversationID: conversationID,
	}))
}
