// Package api provides HTTP handlers and the main API server logic for
// ragechat.
//
// It exposes the WhatsApp webhook, the synchronous chat and simulation
// endpoints and the conversation CRUD surface, wiring together the
// store, flow, orchestrator, cache and messaging modules.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/rage-labs/ragechat/internal/cache"
	"github.com/rage-labs/ragechat/internal/flow"
	"github.com/rage-labs/ragechat/internal/knowledge"
	"github.com/rage-labs/ragechat/internal/messaging"
	"github.com/rage-labs/ragechat/internal/orchestrator"
	"github.com/rage-labs/ragechat/internal/store"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = ":8080"

// Server timeouts.
const (
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr          string
	VerifyToken   string
	AppSecret     string
	DefaultTenant string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithVerifyToken sets the webhook handshake verify token.
func WithVerifyToken(token string) Option {
	return func(o *Opts) { o.VerifyToken = token }
}

// WithAppSecret sets the app secret used to check webhook signatures.
// Empty disables signature checking.
func WithAppSecret(secret string) Option {
	return func(o *Opts) { o.AppSecret = secret }
}

// WithDefaultTenant sets the tenant that webhook traffic is attributed
// to.
func WithDefaultTenant(tenantID string) Option {
	return func(o *Opts) { o.DefaultTenant = tenantID }
}

// Server ties the HTTP surface to the backing services.
type Server struct {
	st         store.Store
	msgService messaging.Service
	flowProc   *flow.Processor
	orch       *orchestrator.Orchestrator
	deduper    *cache.Deduper
	indexer    *knowledge.Indexer

	addr          string
	verifyToken   string
	appSecret     string
	defaultTenant string

	httpServer *http.Server
}

// Deps bundles the services the server dispatches to. MsgService and
// Indexer are optional; the endpoints needing them degrade when absent.
type Deps struct {
	Store      store.Store
	MsgService messaging.Service
	Flow       *flow.Processor
	Orch       *orchestrator.Orchestrator
	Deduper    *cache.Deduper
	Indexer    *knowledge.Indexer
}

// NewServer creates a Server. Options fall back to the API_ADDR,
// VERIFY_TOKEN, APP_SECRET and WEBHOOK_TENANT_ID environment variables.
func NewServer(deps Deps, opts ...Option) (*Server, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = os.Getenv("API_ADDR")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.VerifyToken == "" {
		cfg.VerifyToken = os.Getenv("VERIFY_TOKEN")
	}
	if cfg.AppSecret == "" {
		cfg.AppSecret = os.Getenv("APP_SECRET")
	}
	if cfg.DefaultTenant == "" {
		cfg.DefaultTenant = os.Getenv("WEBHOOK_TENANT_ID")
	}

	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Flow == nil {
		return nil, fmt.Errorf("flow processor is required")
	}
	if deps.Orch == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if deps.Deduper == nil {
		return nil, fmt.Errorf("deduper is required")
	}

	return &Server{
		st:            deps.Store,
		msgService:    deps.MsgService,
		flowProc:      deps.Flow,
		orch:          deps.Orch,
		deduper:       deps.Deduper,
		indexer:       deps.Indexer,
		addr:          cfg.Addr,
		verifyToken:   cfg.VerifyToken,
		appSecret:     cfg.AppSecret,
		defaultTenant: cfg.DefaultTenant,
	}, nil
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/chat", s.chatHandler)
	mux.HandleFunc("/simulation/chat", s.simulationChatHandler)
	mux.HandleFunc("/conversations/upsert", s.upsertConversationHandler)
	mux.HandleFunc("/messages", s.createMessageHandler)
	mux.HandleFunc("/knowledge/reindex", s.reindexHandler)
	mux.HandleFunc("/healthz", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until the context is canceled
// or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: ragechat API listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		slog.Info("Server.Run: shutting down")
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	}
}

// maskID keeps the last 4 characters of an identifier for logging.
func maskID(id string) string {
	if len(id) <= 4 {
		return id
	}
	return "..." + id[len(id)-4:]
}
