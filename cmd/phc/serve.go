package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/cache"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/config"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/datasource"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/datasource/csvdir"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/datasource/warehouse"
	dbRedis "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/db/redis"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/dedup"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/payload"
	domtriage "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/triage"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/fingerprint"
	logpkg "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/logger"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/metrics"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/repository/history"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/repository/snapshot"
	chiTransport "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/transport/chi"
	openaiLLM "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/transport/openai"
	cacheadminuc "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/usecase/cacheadmin"
	chatuc "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/usecase/chat"
	dashboarduc "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/usecase/dashboard"
	healthuc "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/usecase/health"
	inventoryuc "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/usecase/inventory"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/usecase/query"
	triageuc "github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/usecase/triage"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/version"
)

// Dedup namespaces, one per use case sharing the cache.
const (
	nsTriage    = "triage"
	nsChat      = "chat"
	nsInventory = "inventory"
	nsDashboard = "dashboard"
)

func newServeCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if env == "" {
				env = config.GetEnv()
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, env)
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "config environment (defaults to $ENV or local)")
	return cmd
}

func runServe(ctx context.Context, env string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	info := version.Get()
	logger.Info("Starting PHC assistant API server",
		zap.String("version", info.Version),
		zap.String("commit", info.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("data_sources", cfg.DataSource.Priority),
		zap.String("snapshot_backend", cfg.Cache.Snapshot.Backend),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterCacheMetrics()
	metrics.RegisterLLMMetrics()

	// Redis is optional: snapshots and health only.
	var redisStore *dbRedis.Store
	if len(cfg.Redis.Addrs) > 0 {
		redisStore, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.Redis.Addrs,
			Password:  cfg.Redis.Password,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fmt.Errorf("create redis store: %w", err)
		}
		defer redisStore.Close()

		if err := redisStore.WaitForReady(ctx, seconds(cfg.Redis.ReadinessTimeout)); err != nil {
			return fmt.Errorf("redis not ready: %w", err)
		}
		logger.Info("Connected to redis", zap.Strings("addrs", cfg.Redis.Addrs))
	}

	store := cache.New[payload.Value](cache.Config{
		DefaultTTL: seconds(cfg.Cache.DefaultTTLSec),
		MaxSize:    cfg.Cache.MaxSize,
		Policy:     cache.Policy(cfg.Cache.EvictionPolicy),
	}, cache.WithEvents(metrics.CacheEventsTotal), cache.WithSizeGauge(metrics.CacheEntries))
	switch cfg.Cache.Snapshot.Backend {
	case "file":
		store.WithPersistence(snapshot.NewFile(cfg.Cache.Snapshot.Dir), payload.Codec{})
	case "redis":
		store.WithPersistence(snapshot.NewKV(redisStore, 0), payload.Codec{})
	}

	cacheSvc := cacheadminuc.New(store, cfg.Cache.Snapshot.Name, logger).WithMetrics(metrics.SnapshotOpsTotal)
	if cfg.Cache.Snapshot.LoadOnStart && cfg.Cache.Snapshot.Backend != "none" {
		// A corrupt snapshot is logged by Restore; the server starts empty.
		_ = cacheSvc.Restore(ctx)
	}

	newRunner := func(cfgIdx dedup.Config, hasher *fingerprint.Hasher, resultTTLSec int) (*dedup.Index, *query.Runner) {
		cfgIdx.TTL = seconds(cfg.Cache.DedupTTLSec)
		cfgIdx.Threshold = cfg.Cache.SimilarityThreshold
		idx := dedup.New(store, hasher, cfgIdx, logger).WithMetrics(metrics.DedupQueriesTotal)
		return idx, query.NewRunner(idx, store, seconds(resultTTLSec), logger)
	}
	triageIdx, triageRunner := newRunner(
		dedup.Config{Namespace: nsTriage, TextField: "symptoms"}, domtriage.ContentHasher(), cfg.Cache.TriageResultTTLSec)
	_, chatRunner := newRunner(
		dedup.Config{Namespace: nsChat, TextField: "message"}, nil, cfg.Cache.ChatResultTTLSec)
	_, inventoryRunner := newRunner(dedup.Config{Namespace: nsInventory}, nil, cfg.Cache.InventoryTTLSec)
	_, dashboardRunner := newRunner(dedup.Config{Namespace: nsDashboard}, nil, cfg.Cache.DashboardTTLSec)

	hist, err := history.New(cfg.History.SQLitePath)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer func() { _ = hist.Close() }()

	sources, closeSources := buildSources(ctx, cfg.DataSource, logger)
	defer closeSources()
	if len(sources) == 0 {
		return errors.New("no data source could be opened")
	}
	data := datasource.NewChain(logger, sources...)
	logger.Info("Data sources ready", zap.String("chain", data.Name()))

	// Pass nil interfaces (not typed nil pointers!) when the LLM is off.
	var (
		analyzer  triageuc.Analyzer
		responder chatuc.Responder
		llmCheck  healthuc.LLMChecker
	)
	if cfg.LLM.Enabled() {
		client := openaiLLM.NewClient(&openaiLLM.Config{
			Provider:          cfg.LLM.Provider,
			APIKey:            cfg.LLM.APIKey,
			BaseURL:           cfg.LLM.BaseURL,
			Model:             cfg.LLM.Model,
			Temperature:       cfg.LLM.Temperature,
			MaxTokens:         cfg.LLM.MaxTokens,
			RequestsPerSecond: cfg.LLM.RequestsPerSecond,
			Burst:             cfg.LLM.Burst,
			Timeout:           seconds(cfg.LLM.TimeoutSec),
			Logger:            logger,
		})
		analyzer, responder, llmCheck = client, client, client
		logger.Info("LLM client created",
			zap.String("provider", cfg.LLM.Provider),
			zap.String("model", cfg.LLM.Model),
		)
	} else {
		logger.Warn("LLM not configured, triage uses the keyword fallback and chat is disabled")
	}

	var redisPing healthuc.Pinger
	if redisStore != nil {
		redisPing = redisStore
	}

	triageSvc := triageuc.New(triageRunner, triageIdx, analyzer, hist, logger)
	chatSvc := chatuc.New(chatRunner, responder, hist, cfg.History.HistoryLimit, logger)
	inventorySvc := inventoryuc.New(data, inventoryRunner, logger)
	dashboardSvc := dashboarduc.New(data, dashboardRunner, logger)
	healthSvc := healthuc.New(redisPing, data, llmCheck, logger).WithHistory(hist)

	server := chiTransport.NewServer(triageSvc, chatSvc, inventorySvc, dashboardSvc, cacheSvc, healthSvc, logger).
		WithSimilarityThreshold(cfg.Cache.SimilarityThreshold)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(cfg.Auth.APIKeys),
		ReadTimeout:  seconds(cfg.HTTP.ReadTimeoutSec),
		WriteTimeout: seconds(cfg.HTTP.WriteTimeoutSec),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), seconds(cfg.HTTP.ShutdownSec))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	if cfg.Cache.Snapshot.SaveOnShutdown && cfg.Cache.Snapshot.Backend != "none" {
		if _, err := cacheSvc.Save(shutdownCtx); err != nil {
			logger.Error("Failed to save cache snapshot", zap.Error(err))
		}
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// buildSources opens the configured data sources in priority order. A
// warehouse that cannot be reached is skipped so the next source serves.
func buildSources(ctx context.Context, cfg config.DataSourceConfig, logger *zap.Logger) ([]datasource.Source, func()) {
	var (
		sources []datasource.Source
		closers []func()
	)
	for _, name := range cfg.Priority {
		switch name {
		case "warehouse":
			if cfg.Warehouse.DSN == "" {
				continue
			}
			wh, err := warehouse.New(ctx, warehouse.Config{
				DSN:      cfg.Warehouse.DSN,
				Schema:   cfg.Warehouse.Schema,
				MaxConns: cfg.Warehouse.MaxConns,
			})
			if err != nil {
				logger.Warn("Warehouse unavailable, skipping", zap.Error(err))
				continue
			}
			sources = append(sources, wh)
			closers = append(closers, wh.Close)
		case "csv":
			if cfg.CSV.Dir == "" {
				continue
			}
			sources = append(sources, csvdir.New(cfg.CSV.Dir))
		}
	}
	return sources, func() {
		for _, c := range closers {
			c()
		}
	}
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
