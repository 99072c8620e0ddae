// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"video-analysis-platform/internal/config"
	runnerAdapter "video-analysis-platform/internal/infra/adapters/runner"
	pg "video-analysis-platform/internal/infra/db/postgres"
	"video-analysis-platform/internal/infra/events"
	"video-analysis-platform/internal/infra/logging"
	"video-analysis-platform/internal/infra/metrics"
	red "video-analysis-platform/internal/infra/redis"
	"video-analysis-platform/internal/infra/sched"
	"video-analysis-platform/internal/infra/security"
	"video-analysis-platform/internal/infra/storage/gcs"
	"video-analysis-platform/internal/infra/web"
	"video-analysis-platform/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (relaxed validation)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	txManager := pg.NewTxManager(pool)
	jobRepo := pg.NewJobRepo(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Object storage ----
	store, err := gcs.NewStore(ctx, cfg.Storage.Bucket, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("object storage")
	}
	defer store.Close()

	// ---- Callback tokens ----
	webhookSecret := cfg.Webhook.Secret
	if webhookSecret == "" {
		logger.Warn().Msg("webhook.secret not set; falling back to dev secret (INSECURE)")
		webhookSecret = "dev-callback-secret"
	}
	tokens, err := security.NewCallbackTokenService(webhookSecret, 0)
	if err != nil {
		logger.Fatal().Err(err).Msg("callback tokens")
	}

	// ---- Execution service ----
	runner := runnerAdapter.NewClient(cfg.Runner)

	// ---- Event store ----
	eventStore := events.NewStore(cfg.Pipeline.UpdateRetention, logger)
	defer eventStore.Close()

	// ---- Use cases ----
	webhookURL := strings.TrimSuffix(cfg.Webhook.PublicURL, "/") + "/api/v1/webhook/runner"
	jobUC := usecase.NewJobUseCase(jobRepo, txManager, runner, locker, tokens, webhookURL, cfg.Pipeline.RetryLimit, logger)
	healthUC := usecase.NewWorkerHealthUseCase(runner, logger)
	progressUC := usecase.NewProgressUseCase(store, cfg.Pipeline.Stages)
	statusUC := usecase.NewStatusUseCase(jobUC, healthUC, progressUC, logger)
	uploadUC := usecase.NewUploadUseCase(store, usecase.UploadConfig{
		ChunkThreshold: cfg.Storage.ChunkThreshold,
		PartSize:       cfg.Storage.PartSize,
		URLTTL:         cfg.Storage.URLTTL,
	}, logger)

	// ---- Stale-job reconciler ----
	if cfg.Reconciler.Interval > 0 {
		reconciler := sched.NewStatusReconciler(statusUC, jobRepo, cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, logger)
		go reconciler.Start(ctx)
	} else {
		logger.Info().Msg("status reconciler disabled")
	}

	// ---- HTTP server ----
	srv := web.NewServer(jobUC, statusUC, uploadUC, eventStore, tokens, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
