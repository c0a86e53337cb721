// Package main wires together the content generation service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	gcppubsub "cloud.google.com/go/pubsub"

	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/api"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/approval"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/breaker"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/clock/system"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/config"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/events"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/events/sinks"
	sha256hash "github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/hash/sha256"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/id/uuid"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/logging"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/metrics"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/orchestrator"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/pipeline"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/provider"
	memorypublisher "github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/publisher/memory"
	pubsubpublisher "github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/publisher/pubsub"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/status"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/store"
	memorystore "github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/store/memory"
	postgresstore "github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/store/postgres"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/storage/gcs"
	"github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/storage/local"
	memoryblob "github.com/mike-seoasis/client-fulfillment-v2-sub002/internal/storage/memory"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pages, closeStore, err := buildPageStore(ctx, cfg)
	if err != nil {
		logger.Fatal("page store init failed", zap.Error(err))
	}
	defer closeStore()

	blobs, err := buildBlobStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("blob store init failed", zap.Error(err))
	}

	publisher, closePublisher, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}
	defer closePublisher()

	clock := system.New()
	idGen := uuid.New()

	hub, err := buildEventHub(logger)
	if err != nil {
		logger.Fatal("event hub init failed", zap.Error(err))
	}

	briefs := buildBriefProvider(cfg, logger)
	qa := buildQAProvider(cfg, logger)
	generator := provider.NewHTTPGenerationProvider(provider.GenerationConfig{
		BaseURL: cfg.Providers.Generation.BaseURL,
		APIKey:  cfg.Providers.Generation.APIKey,
		Model:   cfg.Providers.Generation.Model,
		Timeout: time.Duration(cfg.Providers.Generation.TimeoutSeconds) * time.Second,
	})

	orch := orchestrator.New(
		pages, briefs, generator, qa, blobs, publisher, clock,
		orchestrator.Config{
			Concurrency: cfg.Pipeline.Concurrency,
			StepTimeout: cfg.StepTimeout(),
			Topic:       cfg.PubSub.TopicName,
			DraftPrefix: cfg.Pipeline.DraftPrefix,
			Events:      hub,
			Hasher:      sha256hash.New(),
		},
		logger.Named("orchestrator"),
	)

	apiServer := api.NewServer(
		pages, orch,
		status.NewReporter(pages),
		approval.NewGate(pages),
		idGen, clock, cfg,
		logger.Named("api"),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	orch.Wait()
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Warn("event hub close failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func buildEventHub(logger *zap.Logger) (*events.Hub, error) {
	promSink, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		return nil, err
	}
	hub := events.NewHub(
		events.Config{Logger: logger.Named("events")},
		promSink,
		sinks.NewLogSink(logger.Named("events")),
	)
	return hub, nil
}

func buildPageStore(ctx context.Context, cfg config.Config) (store.PageStore, func(), error) {
	if cfg.DB.DSN == "" {
		return memorystore.NewPageStore(), func() {}, nil
	}
	pg, err := postgresstore.NewPageStore(ctx, postgresstore.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: int32(cfg.DB.MaxOpenConns),
		MinConns: int32(cfg.DB.MinConns),
	})
	if err != nil {
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

func buildBlobStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (pipeline.BlobStore, error) {
	switch {
	case cfg.Storage.GCSBucket != "":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		return gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
	case cfg.Storage.LocalDir != "":
		return local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
	default:
		logger.Info("draft archiving uses in-memory store; drafts are not durable")
		return memoryblob.NewBlobStore(), nil
	}
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (pipeline.Publisher, func(), error) {
	if cfg.PubSub.TopicName == "" {
		logger.Info("completion events disabled; no pubsub topic configured")
		return memorypublisher.New(), func() {}, nil
	}
	client, err := gcppubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	return pubsubpublisher.New(client), closeFn, nil
}

func buildBriefProvider(cfg config.Config, logger *zap.Logger) pipeline.BriefProvider {
	primary := provider.NewHTTPBriefProvider(provider.BriefConfig{
		BaseURL: cfg.Providers.Brief.BaseURL,
		APIKey:  cfg.Providers.Brief.APIKey,
		Timeout: time.Duration(cfg.Providers.Brief.TimeoutSeconds) * time.Second,
	})
	br := breaker.New[pipeline.Brief]("brief", breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Cooldown:         cfg.BreakerCooldown(),
		PrimaryDisabled:  !cfg.Providers.Brief.Enabled,
		ShadowMode:       cfg.Breaker.ShadowMode,
		OnStateChange:    breakerGauge,
	}, logger.Named("breaker"))
	return provider.NewResilientBriefProvider(primary, &provider.HeuristicBriefProvider{}, br)
}

func buildQAProvider(cfg config.Config, logger *zap.Logger) pipeline.QAProvider {
	primary := provider.NewHTTPQAProvider(provider.QAConfig{
		BaseURL: cfg.Providers.QA.BaseURL,
		APIKey:  cfg.Providers.QA.APIKey,
		Timeout: time.Duration(cfg.Providers.QA.TimeoutSeconds) * time.Second,
	})
	br := breaker.New[pipeline.QAResult]("qa", breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Cooldown:         cfg.BreakerCooldown(),
		PrimaryDisabled:  !cfg.Providers.QA.Enabled,
		ShadowMode:       cfg.Breaker.ShadowMode,
		OnStateChange:    breakerGauge,
	}, logger.Named("breaker"))
	return provider.NewResilientQAProvider(primary, provider.LegacyQAScorer{}, br)
}

func breakerGauge(name string, state breaker.State) {
	var v int
	switch state {
	case breaker.StateOpen:
		v = 1
	case breaker.StateHalfOpen:
		v = 2
	}
	metrics.SetBreakerState(name, v)
}
