package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nexusai/backend/api"
	"github.com/nexusai/backend/chat"
	"github.com/nexusai/backend/config"
	"github.com/nexusai/backend/database"
	"github.com/nexusai/backend/embeddings"
	"github.com/nexusai/backend/history"
	"github.com/nexusai/backend/ingestion"
	"github.com/nexusai/backend/knowledge"
	"github.com/nexusai/backend/llm"
)

func main() {
	cfg := config.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	logger := log.Logger

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pool.Close()

	index, err := knowledge.NewIndex(pool, cfg.ChunksTable, cfg.VectorDimension, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("knowledge index setup failed")
	}
	if err := index.EnsureReady(ctx); err != nil {
		logger.Fatal().Err(err).Msg("knowledge index not ready")
	}

	// History degrades to empty when Redis is down; the server still starts.
	redisClient, err := database.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, chat history disabled")
		redisClient = nil
	}
	historyStore := history.NewStore(redisClient, logger)

	embedder := embeddings.Shared(embeddings.Options{
		BaseURL:   cfg.EmbeddingsBaseURL,
		APIKey:    cfg.EmbeddingsAPIKey,
		Model:     cfg.EmbeddingModel,
		Dimension: cfg.VectorDimension,
	})

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("llm setup failed")
	}

	ingestService := ingestion.NewService(embedder, index, logger, cfg.ChunkSize, cfg.ChunkOverlap)
	chatService := chat.NewService(embedder, index, llmClient, logger)

	server := api.New(ingestService, index, chatService, historyStore, logger, api.Options{
		CORSOrigins: cfg.CORSOrigins,
		Debug:       cfg.Debug,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Handler(),
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
}
