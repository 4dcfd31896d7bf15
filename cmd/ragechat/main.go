package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rage-labs/ragechat/internal/api"
	"github.com/rage-labs/ragechat/internal/cache"
	"github.com/rage-labs/ragechat/internal/flow"
	"github.com/rage-labs/ragechat/internal/genai"
	"github.com/rage-labs/ragechat/internal/history"
	"github.com/rage-labs/ragechat/internal/knowledge"
	"github.com/rage-labs/ragechat/internal/messaging"
	"github.com/rage-labs/ragechat/internal/orchestrator"
	"github.com/rage-labs/ragechat/internal/store"
	"github.com/rage-labs/ragechat/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ragechat state data
	DefaultStateDir = "/var/lib/ragechat"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "ragechat.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping ragechat with configured modules")
	if err := run(ctx, flags); err != nil {
		slog.Error("ragechat failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("ragechat exited successfully")
}

// run wires the modules together and serves until the context ends.
func run(ctx context.Context, flags Flags) error {
	st, err := openStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	kv := cache.Select(ctx, *flags.redisURL)
	defer kv.Close()

	deduper := cache.NewDeduper(kv, util.ParseDurationEnv("IDEMPOTENCY_TTL", cache.DefaultIdempotencyTTL))
	pending := cache.NewPendingNames(kv)
	flowProc := flow.NewProcessor(st, pending)

	gaClient, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		return err
	}

	kbLimit := util.ParseIntEnv("KB_LIMIT", 0)
	provider := knowledge.Select(st, gaClient, kbLimit)
	indexer, err := knowledge.NewIndexer(st, gaClient)
	if err != nil {
		slog.Warn("Semantic search indexing unavailable", "reason", err)
		indexer = nil
	}

	historyLimit := util.ParseIntEnv("HISTORY_LIMIT", history.DefaultLimit)
	fetcher := history.NewFetcher(st, historyLimit)
	orch := orchestrator.New(st, provider, fetcher, gaClient)

	msgService := selectMessagingService()

	server, err := api.NewServer(api.Deps{
		Store:      st,
		MsgService: msgService,
		Flow:       flowProc,
		Orch:       orch,
		Deduper:    deduper,
		Indexer:    indexer,
	}, buildAPIOptions(flags)...)
	if err != nil {
		return err
	}

	return server.Run(ctx)
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	RedisURL    string
	StateDir    string
	OpenAIKey   string
	APIAddr     string
	VerifyToken string
	AppSecret   string
	TenantID    string
}

// Flags holds command line flag values
type Flags struct {
	stateDir    *string
	dbDSN       *string
	redisURL    *string
	openaiKey   *string
	apiAddr     *string
	verifyToken *string
	appSecret   *string
	tenantID    *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		StateDir:    os.Getenv("RAGECHAT_STATE_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		APIAddr:     os.Getenv("API_ADDR"),
		VerifyToken: os.Getenv("VERIFY_TOKEN"),
		AppSecret:   os.Getenv("APP_SECRET"),
		TenantID:    os.Getenv("WEBHOOK_TENANT_ID"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No RAGECHAT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"REDIS_URL_SET", config.RedisURL != "",
		"RAGECHAT_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"VERIFY_TOKEN_SET", config.VerifyToken != "",
		"APP_SECRET_SET", config.AppSecret != "",
		"WEBHOOK_TENANT_ID_SET", config.TenantID != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for ragechat data (overrides $RAGECHAT_STATE_DIR)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "database DSN for the conversation store (overrides $DATABASE_URL)"),
		redisURL:    flag.String("redis-url", config.RedisURL, "Redis URL for the idempotency cache (overrides $REDIS_URL)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		verifyToken: flag.String("verify-token", config.VerifyToken, "webhook handshake verify token (overrides $VERIFY_TOKEN)"),
		appSecret:   flag.String("app-secret", config.AppSecret, "app secret for webhook signature checks (overrides $APP_SECRET)"),
		tenantID:    flag.String("webhook-tenant", config.TenantID, "tenant id webhook traffic belongs to (overrides $WEBHOOK_TENANT_ID)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"redisURL_set", *flags.redisURL != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) != "postgres" {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// openStore builds the conversation store matching the DSN shape.
func openStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn), buildTableOption("CONVERSATIONS_TABLE", store.WithConversationsTable), buildTableOption("MESSAGES_TABLE", store.WithMessagesTable), buildTableOption("KB_TABLE", store.WithKnowledgeTable))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}

// buildTableOption returns a table-name override option sourced from
// the environment, or a no-op when the variable is unset.
func buildTableOption(envKey string, opt func(string) store.Option) store.Option {
	if name := os.Getenv(envKey); name != "" {
		return opt(name)
	}
	return func(*store.Opts) {}
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(model))
	}
	if temp := util.ParseFloatEnv("OPENAI_TEMPERATURE", -1); temp >= 0 {
		genaiOpts = append(genaiOpts, genai.WithTemperature(temp))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.verifyToken != "" {
		apiOpts = append(apiOpts, api.WithVerifyToken(*flags.verifyToken))
	}
	if *flags.appSecret != "" {
		apiOpts = append(apiOpts, api.WithAppSecret(*flags.appSecret))
	}
	if *flags.tenantID != "" {
		apiOpts = append(apiOpts, api.WithDefaultTenant(*flags.tenantID))
	}
	return apiOpts
}

// selectMessagingService picks the configured delivery channel: the
// WhatsApp Cloud API when a token is present, Twilio as the alternate,
// none otherwise (webhook replies are then dropped with a warning).
func selectMessagingService() messaging.Service {
	if os.Getenv("WHATSAPP_TOKEN") != "" {
		svc, err := messaging.NewCloudAPIService()
		if err != nil {
			slog.Error("Failed to configure WhatsApp Cloud API service", "error", err)
			return nil
		}
		slog.Info("Using WhatsApp Cloud API messaging service")
		return svc
	}
	if os.Getenv("TWILIO_ACCOUNT_SID") != "" {
		svc, err := messaging.NewTwilioService()
		if err != nil {
			slog.Error("Failed to configure Twilio messaging service", "error", err)
			return nil
		}
		slog.Info("Using Twilio messaging service")
		return svc
	}
	slog.Warn("No messaging service configured; webhook replies will not be delivered")
	return nil
}
