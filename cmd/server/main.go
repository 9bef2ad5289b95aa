// Command server starts the AI interview evaluator HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	ai "github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai/openrouter"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/ai/stub"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/cache/rediscache"
	events "github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/events/redpanda"
	httpserver "github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/repo/postgres"
	qdrantret "github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/retrieval/qdrant"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/app"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/chain"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/config"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/evaluation"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/flow"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/followup"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/planner"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/report"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/usecase"
)

// redisAdapter narrows *redis.Client to the readiness interface.
type redisAdapter struct{ *redis.Client }

func (r redisAdapter) Ping(ctx context.Context) app.RedisPingResult { return r.Client.Ping(ctx) }

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()

	// Infra: DB pool and schema
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		slog.Error("db schema failed", slog.Any("error", err))
		os.Exit(1)
	}
	sessRepo := postgres.NewSessionRepo(pool)
	turnRepo := postgres.NewTurnRepo(pool)
	repRepo := postgres.NewReportRepo(pool)

	// Report cache
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() { _ = rdb.Close() }()
	reportCache := rediscache.NewCache(rdb, cfg.ReportCacheTTL)

	// Event producer; events are best-effort so failure only degrades.
	var publisher domain.EventPublisher
	producer, err := events.NewProducer(ctx, cfg.KafkaBrokers)
	if err != nil {
		slog.Warn("event producer unavailable, events disabled", slog.Any("error", err))
	} else {
		publisher = producer
		defer func() { _ = producer.Close() }()
	}

	// LLM client: OpenRouter when a key is present, deterministic stub otherwise.
	var llm domain.LLMClient
	if cfg.OpenRouterAPIKey != "" {
		llm = openrouter.New(cfg)
	} else {
		slog.Warn("OPENROUTER_API_KEY not set; using the deterministic stub client")
		llm = stub.New()
	}
	llm, err = ai.NewCachingClient(llm, cfg.ChatCacheSize, cfg.EmbedCacheSize)
	if err != nil {
		slog.Error("llm cache init failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Grounding retriever (optional)
	var retriever domain.ContextRetriever
	if cfg.QdrantURL != "" {
		ret := qdrantret.New(cfg.QdrantURL, cfg.QdrantAPIKey, cfg.QdrantCollection, llm)
		if err := ret.EnsureCollection(ctx, 1536); err != nil {
			slog.Warn("qdrant collection ensure failed", slog.Any("error", err))
		}
		retriever = ret
	}

	// Interview pipeline
	ex := chain.NewExecutor(llm, cfg.ChatModel, cfg.MaxPromptTokens)
	personas, err := planner.LoadPersonas(cfg.PersonaFile)
	if err != nil {
		slog.Error("persona file load failed", slog.Any("error", err))
		os.Exit(1)
	}
	policy := report.HiringPolicy{
		MainWeight:      cfg.HiringMainWeight,
		ExtWeight:       cfg.HiringExtWeight,
		StrongThreshold: cfg.HiringStrongThreshold,
		HireThreshold:   cfg.HiringHireThreshold,
		LeanThreshold:   cfg.HiringLeanThreshold,
		MetricsGate:     cfg.HiringMetricsGate,
		StarGate:        cfg.HiringStarGate,
	}
	thresholds := followup.Thresholds{
		Icebreak: cfg.MinLenIcebreak,
		Intro:    cfg.MinLenIntro,
		Motive:   cfg.MinLenMotive,
	}

	sessions := usecase.NewSessionService(
		sessRepo, turnRepo, repRepo, reportCache, publisher,
		planner.New(ex, personas, 0),
		evaluation.New(ex, retriever),
		followup.New(ex, thresholds, nil),
		flow.NewController(cfg.MaxFollowupsPerQuestion),
		report.NewAssembler(ex, policy, nil),
	)

	// HTTP server
	dbCheck, redisCheck, qdrantCheck := app.BuildReadinessChecks(cfg, pool, redisAdapter{rdb})
	srv := httpserver.NewServer(cfg, sessions, dbCheck, redisCheck, qdrantCheck)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
