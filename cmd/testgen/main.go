package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/intellix-ai/testgen/internal/config"
	"github.com/intellix-ai/testgen/internal/db"
	dbQdrant "github.com/intellix-ai/testgen/internal/db/qdrant"
	dbRedis "github.com/intellix-ai/testgen/internal/db/redis"
	"github.com/intellix-ai/testgen/internal/domain"
	logpkg "github.com/intellix-ai/testgen/internal/logger"
	"github.com/intellix-ai/testgen/internal/metrics"
	"github.com/intellix-ai/testgen/internal/repository/embcache"
	recordrepo "github.com/intellix-ai/testgen/internal/repository/record"
	chiTransport "github.com/intellix-ai/testgen/internal/transport/chi"
	"github.com/intellix-ai/testgen/internal/transport/jira"
	"github.com/intellix-ai/testgen/internal/transport/ollama"
	openaiEmb "github.com/intellix-ai/testgen/internal/transport/openai"
	generationuc "github.com/intellix-ai/testgen/internal/usecase/generation"
	healthuc "github.com/intellix-ai/testgen/internal/usecase/health"
	recorduc "github.com/intellix-ai/testgen/internal/usecase/record"
	"github.com/intellix-ai/testgen/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting testgen API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Create vector store based on driver
	var store db.Store
	switch cfg.Database.Driver {
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.Database.Addrs,
			Password:   cfg.Database.Password,
			Collection: cfg.Database.Collection,
		})
	case "qdrant":
		store, err = dbQdrant.NewStore(dbQdrant.Config{
			Addr:       cfg.Database.Addrs[0],
			Collection: cfg.Database.Collection,
		})
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create vector store", zap.Error(err))
	}
	defer store.Close()

	// Wait for the vector store to be ready, then ensure the index exists
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Vector store not ready", zap.Error(err))
	}
	if err := store.Init(ctx, cfg.Embedding.Dimensions); err != nil {
		logger.Fatal("Failed to initialize vector index", zap.Error(err))
	}
	logger.Info("Connected to vector store",
		zap.String("collection", cfg.Database.Collection),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Register Prometheus metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterGenerationMetrics()

	embedder := buildEmbedder(cfg, store, logger)
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	fetcher := jira.NewFetcher(&jira.Config{
		BaseURL:  cfg.Tracker.BaseURL,
		Username: cfg.Tracker.Username,
		APIToken: cfg.Tracker.APIToken,
		Timeout:  time.Duration(cfg.Tracker.TimeoutSec) * time.Second,
		Logger:   logger,
	})

	completer := ollama.NewCompleter(&ollama.Config{
		BaseURL:   cfg.Model.BaseURL,
		APIKey:    cfg.Model.APIKey,
		Model:     cfg.Model.Name,
		MaxTokens: cfg.Model.MaxTokens,
		Timeout:   time.Duration(cfg.Model.TimeoutSec) * time.Second,
		Logger:    logger,
	})

	// Repository and use case services
	repo := recordrepo.New(store)
	recordSvc := recorduc.New(repo, embedder, recorduc.Config{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxLimit:     cfg.Search.MaxLimit,
		MinScore:     cfg.Search.MinScore,
	}, logger)
	generationSvc := generationuc.New(fetcher, completer, recordSvc, cfg.Model.Name, logger)

	// Health service
	healthSvc := healthuc.New(store, newProviderChecker(embedder), completer)

	// Create chi server
	server := chiTransport.NewServer(generationSvc, recordSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the embedder chain: OpenAI-compatible base, wrapped
// in a cache when the store driver exposes key-value storage (redis does,
// qdrant does not).
func buildEmbedder(cfg config.Config, store db.Store, logger *zap.Logger) domain.Embedder {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   "ollama",
		Logger:     logger,
	})

	if !cfg.Embedding.Cache {
		return base
	}
	kv, ok := store.(db.KVStore)
	if !ok {
		logger.Info("Embedding cache disabled: store driver has no key-value support")
		return base
	}
	return embcache.New(base, kv, metrics.EmbeddingCacheTotal, logger)
}

// providerChecker wraps domain.Embedder to implement health.Checker.
type providerChecker struct {
	embedder domain.Embedder
}

func newProviderChecker(embedder domain.Embedder) *providerChecker {
	return &providerChecker{embedder: embedder}
}

func (h *providerChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.IntoContext(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
