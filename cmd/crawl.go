package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adsight/adstxt-crawler/internal/api"
	"github.com/adsight/adstxt-crawler/internal/clock/system"
	"github.com/adsight/adstxt-crawler/internal/config"
	"github.com/adsight/adstxt-crawler/internal/crawler"
	"github.com/adsight/adstxt-crawler/internal/domainlist"
	"github.com/adsight/adstxt-crawler/internal/hash/sha256"
	"github.com/adsight/adstxt-crawler/internal/id/uuid"
	pubsubpub "github.com/adsight/adstxt-crawler/internal/publisher/pubsub"
	fssink "github.com/adsight/adstxt-crawler/internal/sink/fs"
	gcssink "github.com/adsight/adstxt-crawler/internal/sink/gcs"
	"github.com/adsight/adstxt-crawler/internal/storage/postgres"
)

// newCrawlCmd creates the 'crawl' subcommand: it resolves ads.txt for every
// domain in the input file and stores what it finds.
func newCrawlCmd() *cobra.Command {
	var (
		domainFile string
		outDir     string
		chunkSize  int
		timeoutMs  int
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls ads.txt for every domain in a newline-delimited file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := runtimeConfig
			// Flags win over file/env config when set explicitly.
			if cmd.Flags().Changed("out-dir") {
				cfg.Crawler.OutDir = outDir
			}
			if cmd.Flags().Changed("chunk-size") {
				cfg.Crawler.ChunkSize = chunkSize
			}
			if cmd.Flags().Changed("timeout") {
				cfg.Crawler.TimeoutMs = timeoutMs
			}
			if cmd.Flags().Changed("limit") {
				cfg.Crawler.Limit = limit
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runCrawl(cmd.Context(), cfg, domainFile)
		},
	}

	cmd.Flags().StringVarP(&domainFile, "file", "f", "", "newline-delimited domain list (required)")
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "data/adstxt", "directory for discovered ads.txt files")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 50, "domains crawled concurrently per chunk")
	cmd.Flags().IntVar(&timeoutMs, "timeout", 1000, "per-fetch deadline in milliseconds")
	cmd.Flags().IntVar(&limit, "limit", 0, "crawl only the first N domains (0 = all)")
	_ = cmd.MarkFlagRequired("file") //nolint:errcheck // flag exists

	return cmd
}

func runCrawl(parent context.Context, cfg config.Config, domainFile string) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := zap.L()

	domains, err := domainlist.Load(domainFile, cfg.Crawler.Limit)
	if err != nil {
		return fmt.Errorf("load domain list: %w", err)
	}
	if len(domains) == 0 {
		logger.Warn("domain list is empty, nothing to crawl", zap.String("file", domainFile))
		return nil
	}

	registry := prometheus.NewRegistry()
	metrics, err := crawler.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	fetcher := crawler.NewHTTPFetcher(crawler.FetcherConfig{
		MaxBodyBytes: cfg.Crawler.MaxBodyBytes,
	}, logger)
	guarded := crawler.NewTimeoutGuard(fetcher, cfg.Timeout())
	resolver := crawler.NewResolver(guarded, metrics, logger)

	sink, err := buildSink(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var publisher crawler.Publisher
	var topic string
	if cfg.PubSub.ProjectID != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("create pubsub client: %w", err)
		}
		defer client.Close() //nolint:errcheck // shutdown path
		events := pubsubpub.New(client)
		defer events.Close()
		publisher = events
		topic = cfg.PubSub.TopicName
	}

	var ledger crawler.Ledger
	if cfg.DB.DSN != "" {
		pgLedger, err := postgres.NewLedger(ctx, postgres.LedgerConfig{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: cfg.DB.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("open crawl ledger: %w", err)
		}
		defer pgLedger.Close()
		ledger = pgLedger
	}

	engine, err := crawler.NewEngine(
		crawler.EngineConfig{ChunkSize: cfg.Crawler.ChunkSize, Topic: topic},
		resolver,
		sink,
		publisher,
		ledger,
		sha256.New(),
		system.New(),
		uuid.New(),
		metrics,
		logger,
	)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	shutdownOps := startOpsServer(cfg, engine, registry, logger)
	defer shutdownOps()

	summary, err := engine.Run(ctx, domains)
	if err != nil {
		return fmt.Errorf("crawl batch: %w", err)
	}

	logger.Info("batch complete",
		zap.String("run_id", summary.RunID),
		zap.Int("total", summary.Total),
		zap.Int("found", summary.Found),
		zap.Int("not_found", summary.NotFound),
		zap.Int("failed", summary.Failed),
		zap.Int("decode_errors", summary.DecodeErrors),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return nil
}

// buildSink selects the storage backend for discovered files.
func buildSink(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawler.Sink, error) {
	switch cfg.Storage.Backend {
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		return gcssink.New(client, gcssink.Config{
			Bucket: cfg.Storage.GCSBucket,
			Prefix: cfg.Storage.Prefix,
		})
	default:
		return fssink.New(fssink.Config{OutDir: cfg.Crawler.OutDir}, logger)
	}
}

// startOpsServer exposes /healthz, /metrics and /progress when configured.
// The returned func shuts the listener down; it is a no-op when the server
// is disabled.
func startOpsServer(cfg config.Config, engine *crawler.Engine, registry *prometheus.Registry, logger *zap.Logger) func() {
	if cfg.Server.MetricsAddr == "" {
		return func() {}
	}

	srv := &http.Server{
		Addr:              cfg.Server.MetricsAddr,
		Handler:           api.NewServer(engine, registry, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("ops server listening", zap.String("addr", cfg.Server.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server failed", zap.Error(err))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("ops server shutdown", zap.Error(err))
		}
	}
}
