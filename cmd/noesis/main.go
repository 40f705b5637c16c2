package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/noesis-dev/noesis/internal/api"
	"github.com/noesis-dev/noesis/internal/config"
	"github.com/noesis-dev/noesis/internal/embedding"
	"github.com/noesis-dev/noesis/internal/llm"
	"github.com/noesis-dev/noesis/internal/search"
	"github.com/noesis-dev/noesis/internal/service"
	"github.com/noesis-dev/noesis/internal/store"
	"github.com/noesis-dev/noesis/internal/vector"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	if err := config.Load(); err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	dbURL := config.DatabaseURL()
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}
	logger.Info("connected to database")

	// Stores
	runStore := store.NewRunStore(pool)
	exchangeStore := store.NewExchangeStore(pool)
	stateStore := store.NewStateStore(pool)
	memoryStore := store.NewMemoryStore(pool)
	conceptStore := store.NewConceptStore(pool)
	procedureStore := store.NewProcedureStore(pool)
	insightStore := store.NewInsightStore(pool)
	snapshotStore := store.NewSnapshotStore(pool)

	// External clients via provider factories
	chatClient, err := llm.NewClient(config.LLMProvider(), config.OpenAIAPIKey(), config.ChatRPS())
	if err != nil {
		logger.Fatal("LLM client initialization failed", zap.String("provider", config.LLMProvider()), zap.Error(err))
	}
	logger.Info("LLM client initialized", zap.String("provider", config.LLMProvider()))

	embeddingClient, err := embedding.NewClient(config.EmbeddingProvider(), config.OpenAIAPIKey(), config.EmbeddingModel())
	if err != nil {
		logger.Fatal("embedding client initialization failed", zap.String("provider", config.EmbeddingProvider()), zap.Error(err))
	}
	logger.Info("embedding client initialized", zap.String("provider", config.EmbeddingProvider()))

	vectorStore, err := vector.NewStore(config.VectorProvider(), pool, config.VectorPath())
	if err != nil {
		logger.Fatal("vector store initialization failed", zap.String("provider", config.VectorProvider()), zap.Error(err))
	}
	logger.Info("vector store initialized", zap.String("provider", config.VectorProvider()))

	webClient := search.NewDuckDuckGoClient(logger)

	// Services
	memoryManager := service.NewMemoryManager(
		memoryStore, conceptStore, procedureStore,
		vectorStore, embeddingClient, chatClient,
		config.SynthesisModel(), logger,
	)
	toolRunner := service.NewToolRunner(memoryManager, conceptStore, webClient, logger)
	orchestrator := service.NewOrchestrator(
		chatClient, toolRunner, memoryManager,
		config.QuestionerModel(), config.ExplorerModel(), logger,
	)
	identityBuilder := service.NewIdentityBuilder(
		chatClient, exchangeStore, insightStore, snapshotStore,
		config.SynthesisModel(), logger,
	)
	controller := service.NewController(
		orchestrator, identityBuilder, memoryManager,
		runStore, exchangeStore, stateStore, insightStore,
		config.StepInterval(), logger,
	)

	if err := controller.Initialize(ctx); err != nil {
		logger.Fatal("failed to initialize dialogue", zap.Error(err))
	}

	loopCtx, cancelLoop := context.WithCancel(ctx)
	go controller.Start(loopCtx)

	addr := config.StatusAddr()
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewRouter(pool, controller, logger),
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("status server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("status server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down")

	controller.Stop(ctx)
	cancelLoop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("status server forced to shutdown", zap.Error(err))
	}

	logger.Info("stopped")
}
