package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rage-labs/ragechat/internal/cache"
	"github.com/rage-labs/ragechat/internal/flow"
	"github.com/rage-labs/ragechat/internal/history"
	"github.com/rage-labs/ragechat/internal/knowledge"
	"github.com/rage-labs/ragechat/internal/messaging"
	"github.com/rage-labs/ragechat/internal/models"
	"github.com/rage-labs/ragechat/internal/orchestrator"
	"github.com/rage-labs/ragechat/internal/store"
)

const (
	testTenant    = "tenant-1"
	testContact   = "5511999999999"
	testSecret    = "app-secret"
	testVerifyTok = "verify-token"
)

type fakeGenerator struct {
	reply string
}

func (f *fakeGenerator) GenerateReply(_ context.Context, _, _ string) (string, error) {
	return f.reply, nil
}

type testEnv struct {
	server *Server
	st     *store.InMemoryStore
	msg    *messaging.MockService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := store.NewInMemoryStore()
	kv := cache.NewMemoryKV()
	msg := messaging.NewMockService()
	gen := &fakeGenerator{reply: "Resposta gerada."}

	orch := orchestrator.New(st, knowledge.NewCatalogProvider(st, 0), history.NewFetcher(st, 10), gen)
	flowProc := flow.NewProcessor(st, cache.NewPendingNames(kv))

	server, err := NewServer(Deps{
		Store:      st,
		MsgService: msg,
		Flow:       flowProc,
		Orch:       orch,
		Deduper:    cache.NewDeduper(kv, 0),
	},
		WithAddr(":0"),
		WithVerifyToken(testVerifyTok),
		WithAppSecret(testSecret),
		WithDefaultTenant(testTenant),
	)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return &testEnv{server: server, st: st, msg: msg}
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func textPayload(messageID, from, text string) models.WebhookPayload {
	return models.WebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []models.WebhookEntry{{
			ID: "entry-1",
			Changes: []models.WebhookChange{{
				Field: "messages",
				Value: models.WebhookValue{
					MessagingProduct: "whatsapp",
					Messages: []models.WebhookMessage{{
						ID:   messageID,
						From: from,
						Type: "text",
						Text: &models.WebhookText{Body: text},
					}},
				},
			}},
		}},
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestWebhookHandshake(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token="+testVerifyTok+"&hub.challenge=12345", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "12345" {
		t.Errorf("body = %q, want the challenge echoed", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status with wrong token = %d, want 403", rec.Code)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)
	body, _ := json.Marshal(textPayload("wamid.1", testContact, "Olá!"))

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}

	// Missing header is rejected the same way.
	req = httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status without header = %d, want 403", rec.Code)
	}
}

func TestWebhookAcksValidDelivery(t *testing.T) {
	env := newTestEnv(t)
	body, _ := json.Marshal(textPayload("wamid.1", testContact, "Olá!"))

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign(body))
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "EVENT_RECEIVED" {
		t.Errorf("body = %q, want EVENT_RECEIVED", rec.Body.String())
	}
}

func TestProcessWebhookFirstContactGetsWelcome(t *testing.T) {
	env := newTestEnv(t)

	env.server.processWebhookPayload(textPayload("wamid.1", testContact, "Olá!"))

	if len(env.msg.Sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(env.msg.Sent))
	}
	if env.msg.Sent[0].Body != flow.MsgWelcome {
		t.Errorf("first contact reply = %q, want the welcome greeting", env.msg.Sent[0].Body)
	}

	conv, err := env.st.GetConversationByContact(testTenant, testContact)
	if err != nil || conv == nil {
		t.Fatalf("conversation not created: %v", err)
	}
	// The opening message is not a name attempt.
	if conv.State != models.StateAwaitingName {
		t.Errorf("state = %s, want %s", conv.State, models.StateAwaitingName)
	}
	// Inbound and outbound messages are persisted.
	if n := env.st.MessageCount(conv.ID); n != 2 {
		t.Errorf("message count = %d, want 2", n)
	}
}

func TestProcessWebhookOnboardsContact(t *testing.T) {
	env := newTestEnv(t)

	env.server.processWebhookPayload(textPayload("wamid.1", testContact, "Olá!"))
	env.server.processWebhookPayload(textPayload("wamid.2", testContact, "meu nome é joão silva"))

	if len(env.msg.Sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(env.msg.Sent))
	}
	if !strings.Contains(env.msg.Sent[1].Body, "João Silva") {
		t.Errorf("reply should ask to confirm the captured name, got %q", env.msg.Sent[1].Body)
	}

	conv, err := env.st.GetConversationByContact(testTenant, testContact)
	if err != nil || conv == nil {
		t.Fatalf("conversation not created: %v", err)
	}
	if conv.State != models.StateConfirmingName {
		t.Errorf("state = %s, want %s", conv.State, models.StateConfirmingName)
	}
	if n := env.st.MessageCount(conv.ID); n != 4 {
		t.Errorf("message count = %d, want 4", n)
	}
}

func TestProcessWebhookDeduplicates(t *testing.T) {
	env := newTestEnv(t)
	payload := textPayload("wamid.same", testContact, "Maria")

	env.server.processWebhookPayload(payload)
	env.server.processWebhookPayload(payload)

	if len(env.msg.Sent) != 1 {
		t.Errorf("sent %d messages, want 1 (duplicate delivery suppressed)", len(env.msg.Sent))
	}
}

func TestProcessWebhookActiveConversationUsesAI(t *testing.T) {
	env := newTestEnv(t)

	conv, err := env.st.GetOrCreateConversation(testTenant, testContact)
	if err != nil {
		t.Fatalf("GetOrCreateConversation failed: %v", err)
	}
	if err := env.st.SetDisplayName(conv.ID, "João Silva"); err != nil {
		t.Fatalf("SetDisplayName failed: %v", err)
	}

	env.server.processWebhookPayload(textPayload("wamid.2", testContact, "Quero saber dos planos"))

	if len(env.msg.Sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(env.msg.Sent))
	}
	if env.msg.Sent[0].Body != "Resposta gerada." {
		t.Errorf("reply = %q, want generated reply", env.msg.Sent[0].Body)
	}
}

func TestProcessWebhookSkipsNonText(t *testing.T) {
	env := newTestEnv(t)
	payload := textPayload("wamid.3", testContact, "")
	payload.Entry[0].Changes[0].Value.Messages[0].Type = "image"
	payload.Entry[0].Changes[0].Value.Messages[0].Text = nil

	env.server.processWebhookPayload(payload)

	if len(env.msg.Sent) != 0 {
		t.Errorf("sent %d messages, want 0", len(env.msg.Sent))
	}
	if env.st.ConversationCount() != 0 {
		t.Error("non-text message should not create a conversation")
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, payload interface{}) (*httptest.ResponseRecorder, models.APIResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var envelope models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response %q: %v", rec.Body.String(), err)
	}
	return rec, envelope
}

func TestChatEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec, envelope := doJSON(t, env.server.Handler(), http.MethodPost, "/chat", models.ChatRequest{
		UserID:  testTenant,
		Message: "Quais são os planos?",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if envelope.Status != string(models.APIStatusOK) {
		t.Errorf("envelope status = %q", envelope.Status)
	}

	result, ok := envelope.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result type %T", envelope.Result)
	}
	if result["reply"] != "Resposta gerada." {
		t.Errorf("reply = %v", result["reply"])
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}
}

func TestChatEchoesRequestID(t *testing.T) {
	env := newTestEnv(t)
	body, _ := json.Marshal(models.ChatRequest{UserID: testTenant, Message: "oi"})

	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body))
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-42" {
		t.Errorf("X-Request-ID = %q, want req-42", got)
	}
}

func TestChatValidation(t *testing.T) {
	env := newTestEnv(t)

	rec, envelope := doJSON(t, env.server.Handler(), http.MethodPost, "/chat", models.ChatRequest{UserID: testTenant})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if envelope.Status != string(models.APIStatusError) {
		t.Errorf("envelope status = %q, want error", envelope.Status)
	}
}

func TestSimulationChatHasNoSideEffects(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := doJSON(t, env.server.Handler(), http.MethodPost, "/simulation/chat", models.ChatRequest{
		UserID:            testTenant,
		Message:           "oi",
		ExternalContactID: testContact,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if env.st.ConversationCount() != 0 {
		t.Error("simulation chat must not create conversations")
	}
	if len(env.msg.Sent) != 0 {
		t.Error("simulation chat must not send messages")
	}
}

func TestUpsertConversationEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec, envelope := doJSON(t, env.server.Handler(), http.MethodPost, "/conversations/upsert", models.ConversationUpsertRequest{
		UserID:            testTenant,
		ExternalContactID: testContact,
		ContactName:       "Ana",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	result := envelope.Result.(map[string]interface{})
	if result["created"] != true {
		t.Error("expected created=true on first upsert")
	}

	rec, _ = doJSON(t, env.server.Handler(), http.MethodPost, "/conversations/upsert", models.ConversationUpsertRequest{
		UserID:            testTenant,
		ExternalContactID: testContact,
	})
	if rec.Code != http.StatusOK {
		t.Errorf("status on update = %d, want 200", rec.Code)
	}
}

func TestCreateMessageEndpoint(t *testing.T) {
	env := newTestEnv(t)
	conv, _ := env.st.GetOrCreateConversation(testTenant, testContact)

	rec, envelope := doJSON(t, env.server.Handler(), http.MethodPost, "/messages", models.MessageCreateRequest{
		UserID:         testTenant,
		ConversationID: conv.ID,
		Direction:      models.DirectionInbound,
		Text:           "oi",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	result := envelope.Result.(map[string]interface{})
	if result["conversation_id"] != conv.ID {
		t.Errorf("conversation_id = %v, want %s", result["conversation_id"], conv.ID)
	}
	if env.st.MessageCount(conv.ID) != 1 {
		t.Errorf("message count = %d, want 1", env.st.MessageCount(conv.ID))
	}
}

func TestCreateMessageUnknownConversation(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := doJSON(t, env.server.Handler(), http.MethodPost, "/messages", models.MessageCreateRequest{
		UserID:         testTenant,
		ConversationID: "missing",
		Direction:      models.DirectionInbound,
		Text:           "oi",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreateMessageResolvesByContact(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := doJSON(t, env.server.Handler(), http.MethodPost, "/messages", models.MessageCreateRequest{
		UserID:            testTenant,
		ExternalContactID: testContact,
		Direction:         models.DirectionOutbound,
		Text:              "enviado pelo agente",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	conv, _ := env.st.GetConversationByContact(testTenant, testContact)
	if conv == nil {
		t.Fatal("conversation not created from contact")
	}
	if env.st.MessageCount(conv.ID) != 1 {
		t.Errorf("message count = %d, want 1", env.st.MessageCount(conv.ID))
	}
}

func TestReindexUnavailableWithoutIndexer(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := doJSON(t, env.server.Handler(), http.MethodPost, "/knowledge/reindex", map[string]string{"user_id": testTenant})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
