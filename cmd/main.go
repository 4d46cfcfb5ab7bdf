package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"

	"maitred/internal/api"
	"maitred/internal/assistant"
	"maitred/internal/cart"
	"maitred/internal/checkout"
	"maitred/internal/config"
	"maitred/internal/database"
	"maitred/internal/evaluation"
	"maitred/internal/extract"
	"maitred/internal/llm"
	"maitred/internal/matching"
	"maitred/internal/menu"
	"maitred/internal/monitoring"
	"maitred/internal/ordering"
)

var (
	configFile    = flag.String("config", "configs/config.yaml", "Path to configuration file")
	scenariosFile = flag.String("scenarios", "", "Optional YAML file of extra evaluation scenarios")
)

func main() {
	flag.Parse()

	// Initialize context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	if cfg.SlogLevel() > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize LLM
	client, err := llm.New(cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to initialize LLM: %v", err)
	}
	checkCtx, checkCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := client.HealthCheck(checkCtx); err != nil {
		logger.Warn("LLM endpoint not answering, replies will fail until it recovers", slog.Any("error", err))
	}
	checkCancel()

	// Initialize database and menu
	db, catalog, err := initializeDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()
	logger.Info("menu loaded", slog.Int("items", catalog.Len()))

	metrics := monitoring.NewMetrics()

	// Initialize resolver
	resolver, retriever := initializeResolver(ctx, cfg, client, catalog, metrics, logger)

	sessions := cart.NewSessions()
	reconciler := ordering.NewReconciler(catalog, resolver,
		ordering.WithLogger(logger),
		ordering.WithObserver(metrics),
		ordering.WithMaxAlternatives(cfg.Matching.MaxAlternatives),
	)

	bot := assistant.New(assistant.Config{
		Sessions:     sessions,
		Router:       extract.NewRouter(client.Model, logger),
		Extractor:    extract.NewExtractor(client.Model, logger),
		Reconciler:   reconciler,
		Checkout:     checkout.NewService(db, logger, metrics),
		Model:        client.Model,
		Retriever:    retriever,
		ContextItems: cfg.Matching.ContextItems,
		Logger:       logger,
	})

	evaluator := evaluation.NewEvaluator(resolver, catalog)
	if *scenariosFile != "" {
		data, err := os.ReadFile(*scenariosFile)
		if err != nil {
			log.Fatalf("Failed to read scenarios: %v", err)
		}
		if err := evaluator.LoadScenarios(data); err != nil {
			log.Fatalf("Failed to load scenarios: %v", err)
		}
	}

	// Initialize API server
	srv := api.NewServer(api.Config{
		Assistant: bot,
		Sessions:  sessions,
		Catalog:   catalog,
		Evaluator: evaluator,
		Metrics:   metrics,
		JWTSecret: cfg.Server.JWTSecret,
		Logger:    logger,
	})

	// Start metrics server
	metricsServer := newMetricsServer(cfg.Server.MetricsPort, metrics)
	go func() {
		logger.Info("starting metrics server", slog.Int("port", cfg.Server.MetricsPort))
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()

	// Expire idle sessions
	go expireSessions(ctx, sessions, cfg.Server.SessionTTL, logger)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down servers")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("API server shutdown error", slog.Any("error", err))
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
		}

		cancel()
	}()

	logger.Info("starting API server", slog.Int("port", cfg.Server.Port))
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("API server error: %v", err)
	}
	<-stopped
}

// initializeDB opens the database, seeds it from the menu file and loads the catalog
func initializeDB(cfg *config.Config) (*gorm.DB, *menu.Catalog, error) {
	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, nil, err
	}

	file, err := menu.LoadFile(cfg.MenuFile)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	if err := database.SeedMenu(db, file); err != nil {
		db.Close()
		return nil, nil, err
	}

	catalog, err := database.LoadCatalog(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, catalog, nil
}

// initializeResolver builds the lexical scorer from configuration and the
// semantic scorer when an embedder is available. A failed warm-up is not
// fatal: the scorer embeds lazily on the first query. The second result
// ranks menu items as context for questions.
func initializeResolver(ctx context.Context, cfg *config.Config, client *llm.Client, catalog *menu.Catalog, metrics *monitoring.Metrics, logger *slog.Logger) (*matching.Resolver, matching.Scorer) {
	var lexical matching.Scorer = matching.SequenceScorer{}
	if cfg.Matching.Lexical == "bm25" {
		lexical = matching.BM25Scorer{}
	}

	var semantic matching.Scorer
	var retriever matching.Scorer = matching.BM25Scorer{}
	if client.Embedder != nil {
		s := matching.NewSemanticScorer(client.Embedder, cfg.Matching.SemanticTimeout, logger)
		if err := s.Warm(ctx, catalog.Names()); err != nil {
			logger.Warn("semantic warm-up failed", slog.Any("error", err))
		}
		semantic = s
		retriever = s
	}

	return matching.NewResolver(lexical, semantic,
		matching.WithThresholds(cfg.Matching.Thresholds),
		matching.WithLogger(logger),
		matching.WithObserver(metrics),
	), retriever
}

func newMetricsServer(port int, metrics *monitoring.Metrics) *http.Server {
	metricsRouter := gin.New()
	metricsRouter.GET("/metrics", gin.WrapH(metrics.Handler()))

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: metricsRouter,
	}
}

func expireSessions(ctx context.Context, sessions *cart.Sessions, ttl time.Duration, logger *slog.Logger) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Expire(ttl); n > 0 {
				logger.Info("expired idle sessions", slog.Int("count", n))
			}
		}
	}
}
