// Package docchat provides the document chat server implementation.
package docchat

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docchat/internal/docchat/biz"
	"github.com/kart-io/docchat/internal/docchat/handler"
	"github.com/kart-io/docchat/internal/docchat/parser"
	"github.com/kart-io/docchat/internal/docchat/router"
	"github.com/kart-io/docchat/internal/docchat/store"
	"github.com/kart-io/docchat/pkg/app"
	"github.com/kart-io/docchat/pkg/component/milvus"
	"github.com/kart-io/docchat/pkg/llm"
	"github.com/kart-io/docchat/pkg/llm/resilience"

	// Register LLM providers.
	_ "github.com/kart-io/docchat/pkg/llm/huggingface"
	_ "github.com/kart-io/docchat/pkg/llm/ollama"
	_ "github.com/kart-io/docchat/pkg/llm/openai"

	llmopts "github.com/kart-io/docchat/pkg/options/llm"
	logopts "github.com/kart-io/docchat/pkg/options/logger"
	milvusopts "github.com/kart-io/docchat/pkg/options/milvus"
	ragopts "github.com/kart-io/docchat/pkg/options/rag"
	redisopts "github.com/kart-io/docchat/pkg/options/redis"
	httpopts "github.com/kart-io/docchat/pkg/options/server/http"
	sessionopts "github.com/kart-io/docchat/pkg/options/session"
	uploadopts "github.com/kart-io/docchat/pkg/options/upload"
)

// Name is the name of the application.
const Name = "docchat"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	MilvusOptions    *milvusopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	RAGOptions       *ragopts.Options
	UploadOptions    *uploadopts.Options
	SessionOptions   *sessionopts.Options
	RedisOptions     *redisopts.Options
}

// Server represents the document chat server.
type Server struct {
	httpServer *http.Server
	config     *Config
	closers    []func()
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	// 1. Logger
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting document chat service...")

	var closers []func()

	// 2. Milvus client and vector store
	milvusClient, err := milvus.New(cfg.MilvusOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize milvus: %w", err)
	}
	closers = append(closers, func() { _ = milvusClient.Close(context.Background()) })
	logger.Info("Milvus client initialized")

	vectorStore := store.NewMilvusStore(milvusClient)
	if err := vectorStore.EnsureCollection(ctx, &store.CollectionConfig{
		Name:        cfg.RAGOptions.Collection,
		Description: "Uploaded document chunks",
		Dimension:   cfg.RAGOptions.EmbeddingDim,
	}); err != nil {
		return nil, fmt.Errorf("failed to prepare collection: %w", err)
	}
	logger.Infow("Vector store initialized",
		"collection", cfg.RAGOptions.Collection,
		"dimension", cfg.RAGOptions.EmbeddingDim,
	)

	// 3. Session store
	sessions, sessionClose := cfg.newSessionStore()
	if sessionClose != nil {
		closers = append(closers, sessionClose)
	}

	// 4. LLM providers
	embedProvider, chatProvider, err := cfg.newProviders()
	if err != nil {
		return nil, err
	}

	// 5. Parsers
	parsers := cfg.newParserDispatcher()

	// 6. Biz layer
	ingestor := biz.NewIngestor(vectorStore, embedProvider, parsers, &biz.IngestorConfig{
		AllowedExtensions: cfg.UploadOptions.AllowedExtensions,
		MaxFileSize:       cfg.UploadOptions.MaxFileSize,
		ChunkSize:         cfg.RAGOptions.ChunkSize,
		ChunkOverlap:      cfg.RAGOptions.ChunkOverlap,
		Collection:        cfg.RAGOptions.Collection,
		EmbeddingDim:      cfg.RAGOptions.EmbeddingDim,
		EmbedWorkers:      cfg.UploadOptions.EmbedWorkers,
	})
	chatter := biz.NewChatter(vectorStore, embedProvider, chatProvider, sessions, &biz.ChatterConfig{
		Collection:     cfg.RAGOptions.Collection,
		TopK:           cfg.RAGOptions.TopK,
		ScoreThreshold: float32(cfg.RAGOptions.ScoreThreshold),
		SystemPrompt:   cfg.RAGOptions.SystemPrompt,
		MaxQuestionLen: cfg.RAGOptions.MaxQuestionLen,
		HistoryWindow:  cfg.RAGOptions.HistoryWindow,
	})
	health := biz.NewHealthChecker(vectorStore, embedProvider, chatProvider, parsers,
		cfg.RAGOptions.Collection, cfg.RAGOptions.EmbeddingDim)
	service := biz.NewDocChatService(ingestor, chatter, health, sessions)
	logger.Info("Document chat service initialized")

	// 7. Handler and routes
	docHandler := handler.NewDocChatHandler(service)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.MaxMultipartMemory = cfg.UploadOptions.MaxFileSize
	router.Register(engine, docHandler)

	httpServer := &http.Server{
		Addr:         cfg.HTTPOptions.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
		WriteTimeout: cfg.HTTPOptions.WriteTimeout,
		IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
	}

	logger.Info("Document chat service is ready")
	return &Server{
		httpServer: httpServer,
		config:     cfg,
		closers:    closers,
	}, nil
}

// newSessionStore builds the configured session backend. A broken Redis
// degrades to the in-process store with a warning instead of failing startup.
func (cfg *Config) newSessionStore() (biz.SessionStore, func()) {
	if cfg.SessionOptions.Backend != sessionopts.BackendRedis {
		logger.Infow("Session store initialized", "backend", sessionopts.BackendMemory)
		return biz.NewMemorySessionStore(cfg.SessionOptions.MaxTurns), nil
	}

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:         cfg.RedisOptions.Addr(),
		Password:     cfg.RedisOptions.Password,
		DB:           cfg.RedisOptions.Database,
		MaxRetries:   cfg.RedisOptions.MaxRetries,
		PoolSize:     cfg.RedisOptions.PoolSize,
		MinIdleConns: cfg.RedisOptions.MinIdleConns,
		DialTimeout:  cfg.RedisOptions.DialTimeout,
		ReadTimeout:  cfg.RedisOptions.ReadTimeout,
		WriteTimeout: cfg.RedisOptions.WriteTimeout,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warnw("failed to connect to redis, falling back to in-memory sessions", "error", err.Error())
		_ = redisClient.Close()
		return biz.NewMemorySessionStore(cfg.SessionOptions.MaxTurns), nil
	}

	logger.Infow("Session store initialized",
		"backend", sessionopts.BackendRedis,
		"addr", cfg.RedisOptions.Addr(),
		"ttl", cfg.SessionOptions.TTL,
	)
	sessionStore := biz.NewRedisSessionStore(redisClient, &biz.RedisSessionConfig{
		MaxTurns:  cfg.SessionOptions.MaxTurns,
		TTL:       cfg.SessionOptions.TTL,
		KeyPrefix: cfg.SessionOptions.KeyPrefix,
	})
	return sessionStore, func() { _ = redisClient.Close() }
}

// newProviders builds the embedding and chat providers from the registry,
// wrapping each with retry and circuit breaking when enabled.
func (cfg *Config) newProviders() (llm.EmbeddingProvider, llm.ChatProvider, error) {
	embedProvider, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	if cfg.EmbeddingOptions.Resilience {
		embedProvider = resilience.NewResilientEmbeddingProvider(embedProvider, nil, nil)
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
	)

	chatProvider, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	if cfg.ChatOptions.Resilience {
		chatProvider = resilience.NewResilientChatProvider(chatProvider, nil, nil)
	}
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
	)

	return embedProvider, chatProvider, nil
}

// newParserDispatcher routes plain text formats in-process and the rest to
// the extraction service.
func (cfg *Config) newParserDispatcher() *parser.Dispatcher {
	dispatcher := parser.NewDispatcher()
	textParser := parser.NewTextParser()
	remoteParser := parser.NewRemoteParser(cfg.UploadOptions.ParserServiceURL, cfg.EmbeddingOptions.Timeout)

	for _, ext := range cfg.UploadOptions.AllowedExtensions {
		switch strings.ToLower(ext) {
		case ".txt", ".md":
			dispatcher.Register(textParser, ext)
		default:
			dispatcher.Register(remoteParser, ext)
		}
	}
	return dispatcher
}

// Run starts the server and shuts down gracefully when ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		for _, closeFn := range s.closers {
			closeFn()
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.HTTPOptions.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
