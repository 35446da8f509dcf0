package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/terralinea/geosql-engine/pkg/catalog"
	"github.com/terralinea/geosql-engine/pkg/config"
	"github.com/terralinea/geosql-engine/pkg/correct"
	"github.com/terralinea/geosql-engine/pkg/database"
	"github.com/terralinea/geosql-engine/pkg/handlers"
	"github.com/terralinea/geosql-engine/pkg/llm"
	"github.com/terralinea/geosql-engine/pkg/logging"
	"github.com/terralinea/geosql-engine/pkg/middleware"
	"github.com/terralinea/geosql-engine/pkg/retry"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load("config.yaml", Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.Strings("schemas", cfg.Catalog.AllowedSchemas),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_endpoint", cfg.LLM.Endpoint))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The database may still be coming up alongside us.
	db, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{
			URL:            cfg.Database.ConnectionString(),
			MaxConnections: cfg.Database.MaxConnections,
		})
	})
	if err != nil {
		logger.Fatal("database connection failed", zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	introspector := catalog.NewPGIntrospector(db.Pool,
		cfg.Catalog.AllowedSchemas,
		cfg.Corrections.FallbackSRID,
		cfg.Catalog.IntrospectTimeout(),
		logger)
	cache := catalog.NewCache(introspector, cfg.Catalog.RefreshInterval(), logger)

	// Warm the catalog now so the first request does not pay for it. A warm-up
	// failure is not fatal; the cache retries on demand.
	if _, err := cache.Get(ctx); err != nil {
		logger.Warn("catalog warm-up failed", zap.Error(err))
	}

	executor := database.NewExecutor(db, database.ExecutorOptions{
		RowLimit:         cfg.Executor.RowLimit,
		StatementTimeout: cfg.Executor.StatementTimeout(),
		IdleTimeout:      cfg.Executor.IdleTimeout(),
		ExplainTimeout:   cfg.Executor.ExplainTimeout(),
		SearchPath:       cfg.Catalog.AllowedSchemas,
	}, logger)

	sqlClient, err := llm.NewFromConfig(&cfg.LLM, cfg.LLM.SQLModel, logger)
	if err != nil {
		logger.Fatal("LLM client creation failed", zap.Error(err))
	}
	chatClient := sqlClient
	if cfg.LLM.ChatModel != "" && cfg.LLM.ChatModel != cfg.LLM.SQLModel {
		chatClient, err = llm.NewFromConfig(&cfg.LLM, cfg.LLM.ChatModel, logger)
		if err != nil {
			logger.Fatal("chat LLM client creation failed", zap.Error(err))
		}
	}

	engine := correct.NewEngine(logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewSchemaHandler(cache, executor, logger).RegisterRoutes(mux)
	handlers.NewChatHandler(cfg, cache, engine, executor, sqlClient, chatClient, logger).RegisterRoutes(mux)

	handler := middleware.RequestID(middleware.RequestLogger(logger)(mux))

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting geosql-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
