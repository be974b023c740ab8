package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	httpadapter "github.com/couchcryptid/tribal-hazard-alerts/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/tribal-hazard-alerts/internal/adapter/kafka"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/adapter/nwszones"
	redisadapter "github.com/couchcryptid/tribal-hazard-alerts/internal/adapter/redis"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/adapter/zonedb"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/boundary"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/config"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/feed/eccc"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/feed/nws"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/match"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/observability"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/pipeline"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/resilience"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/resolver"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	boundaries, err := boundary.LoadFile(cfg.BoundariesPath, logger)
	if err != nil {
		logger.Error("failed to load boundaries", "path", cfg.BoundariesPath, "error", err)
		os.Exit(1)
	}
	matcher := match.NewMatcher(boundaries)
	logger.Info("boundaries loaded", "count", matcher.Len(), "path", cfg.BoundariesPath)

	var zones resolver.ZoneTable
	if cfg.ZonesDBPath != "" {
		zones, err = loadZones(ctx, cfg.ZonesDBPath, logger)
		if err != nil {
			logger.Error("failed to load zones", "path", cfg.ZonesDBPath, "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("zone table disabled, zone-only alerts fall back to named regions")
	}

	// One breaker per upstream agency, shared by every URL of that agency.
	policy := resilience.Policy{
		MaxRetries:     cfg.FetchMaxRetries,
		InitialDelay:   cfg.FetchInitialDelay,
		MaxDelay:       cfg.FetchMaxDelay,
		Multiplier:     2,
		Jitter:         0.3,
		AttemptTimeout: cfg.FetchAttemptTimeout,
	}
	onChange := resilience.ReportStateChanges(logger, metrics)
	nwsBreaker := resilience.NewBreaker(resilience.BreakerSettings{
		Name:             "nws",
		FailureThreshold: cfg.BreakerThreshold,
		Cooldown:         cfg.BreakerCooldown,
		OnStateChange:    onChange,
	})
	ecccBreaker := resilience.NewBreaker(resilience.BreakerSettings{
		Name:             "eccc",
		FailureThreshold: cfg.BreakerThreshold,
		Cooldown:         cfg.BreakerCooldown,
		OnStateChange:    onChange,
	})
	httpClient := &http.Client{}
	nwsFetcher := resilience.NewClient(httpClient, policy, nwsBreaker, logger, metrics)
	ecccFetcher := resilience.NewClient(httpClient, policy, ecccBreaker, logger, metrics)

	sources := buildSources(cfg, nwsFetcher, ecccFetcher, logger)

	if cfg.NWSZoneLookup {
		remote := nwszones.NewClient(nwsFetcher, cfg.NWSBaseURL, cfg.NWSUserAgent, logger)
		zones = nwszones.NewCachedZones(zones, remote, cfg.NWSZoneCacheSize, cfg.NWSZoneLookupTimeout, logger)
		logger.Info("remote zone lookup enabled", "cache_size", cfg.NWSZoneCacheSize)
	}

	var publishers []pipeline.Publisher
	var closers []func() error
	if cfg.KafkaEnabled {
		pub := kafkaadapter.NewPublisher(cfg, logger)
		publishers = append(publishers, pub)
		closers = append(closers, pub.Close)
		logger.Info("kafka publishing enabled", "alerts_topic", cfg.KafkaAlertsTopic, "matches_topic", cfg.KafkaMatchesTopic)
	}
	if cfg.RedisURL != "" {
		mirror, err := redisadapter.NewMirror(ctx, cfg.RedisURL, cfg.RedisKeyPrefix, cfg.PollInterval, logger)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		publishers = append(publishers, mirror)
		closers = append(closers, mirror.Close)
		logger.Info("redis mirror enabled", "key", mirror.SnapshotKey())
	}

	transformer := pipeline.NewTransformer(resolver.New(zones), logger, metrics)
	p := pipeline.New(sources, transformer, matcher, publishers, logger, metrics, pipeline.Options{
		Interval:    cfg.PollInterval,
		Timeout:     cfg.PollTimeout,
		Concurrency: cfg.FetchConcurrency,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, []httpadapter.BreakerReporter{nwsBreaker, ecccBreaker}, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start poller.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			logger.Error("poller error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("poller did not stop before shutdown timeout")
	}
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("sink close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

func buildSources(cfg *config.Config, nwsFetcher, ecccFetcher *resilience.Client, logger *slog.Logger) []pipeline.Source {
	var sources []pipeline.Source
	areas := cfg.NWSAreas
	if len(areas) == 0 {
		areas = []string{""}
	}
	for _, area := range areas {
		sources = append(sources, nws.NewClient(nwsFetcher, cfg.NWSBaseURL, area, cfg.NWSUserAgent, logger))
	}
	for i, url := range cfg.ECCCFeedURLs {
		name := "eccc"
		if len(cfg.ECCCFeedURLs) > 1 {
			name = "eccc:" + strconv.Itoa(i+1)
		}
		sources = append(sources, eccc.NewClient(name, ecccFetcher, url, cfg.ECCCLanguage, logger))
	}
	return sources
}

func loadZones(ctx context.Context, path string, logger *slog.Logger) (resolver.ZoneTable, error) {
	store, err := zonedb.Open(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	zones, err := store.LoadAll(ctx, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("zone table loaded", "zones", len(zones), "path", path)
	return zones, nil
}
