// Package api provides HTTP handlers for ragechat endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rage-labs/ragechat/internal/models"
)

// chatHandler handles POST /chat: generate a reply for a tenant's
// message, injecting conversation history when a contact id is given.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.chatHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err, "request_id", requestID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.chatHandler: validation failed", "error", err, "request_id", requestID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	start := time.Now()
	slog.Info("Server.chatHandler: processing chat request", "user_id", maskID(req.UserID), "request_id", requestID)

	reply, err := s.orch.Reply(r.Context(), req.UserID, req.ExternalContactID, req.Message)
	if err != nil {
		slog.Error("Server.chatHandler: reply generation degraded to fallback", "error", err, "request_id", requestID)
	}

	slog.Info("Server.chatHandler: reply generated", "request_id", requestID, "elapsed_ms", time.Since(start).Milliseconds())
	writeJSONResponse(w, http.StatusOK, models.Success(models.ChatResponse{
		Reply:     reply,
		Source:    "ai",
		RequestID: requestID,
	}))
}

// simulationChatHandler handles POST /simulation/chat: same reply
// pipeline as /chat but guaranteed side-effect free, for tenants
// testing their knowledge base and personality from the dashboard.
func (s *Server) simulationChatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.simulationChatHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.simulationChatHandler: failed to decode JSON", "error", err, "request_id", requestID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.simulationChatHandler: validation failed", "error", err, "request_id", requestID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	slog.Info("Server.simulationChatHandler: processing simulation request", "user_id", maskID(req.UserID), "request_id", requestID)

	reply, err := s.orch.Reply(r.Context(), req.UserID, req.ExternalContactID, req.Message)
	if err != nil {
		slog.Error("Server.simulationChatHandler: reply generation degraded to fallback", "error", err, "request_id", requestID)
	}

	writeJSONResponse(w, http.StatusOK, models.Success(models.ChatResponse{
		Reply:     reply,
		Source:    "simulation",
		RequestID: requestID,
	}))
}

// reindexRequest is the POST /knowledge/reindex payload.
type reindexRequest struct {
	UserID string `json:"user_id"`
}

// reindexHandler handles POST /knowledge/reindex: rebuild the tenant's
// semantic-search index from the knowledge catalog.
func (s *Server) reindexHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if s.indexer == nil {
		slog.Warn("Server.reindexHandler: semantic search not configured")
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Semantic search is not configured"))
		return
	}

	var req reindexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.reindexHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.UserID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("missing required field: user_id"))
		return
	}

	count, err := s.indexer.Reindex(r.Context(), req.UserID)
	if err != nil {
		slog.Error("Server.reindexHandler: reindex failed", "error", err, "user_id", maskID(req.UserID))
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to rebuild knowledge index"))
		return
	}

	slog.Info("Server.reindexHandler: reindex complete", "user_id", maskID(req.UserID), "chunks", count)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Knowledge index rebuilt", map[string]interface{}{"chunks": count}))
}

// healthHandler provides a health check endpoint for monitoring and
// load balancing.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
