// Command ragdex-ingest runs one corpus ingestion pass and exits. It shares
// the server's config so a CLI run and the running service index identically.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/config"
	dbRedis "github.com/kailas-cloud/ragdex/internal/db/redis"
	domainingest "github.com/kailas-cloud/ragdex/internal/domain/ingest"
	"github.com/kailas-cloud/ragdex/internal/loader"
	logpkg "github.com/kailas-cloud/ragdex/internal/logger"
	"github.com/kailas-cloud/ragdex/internal/metrics"
	"github.com/kailas-cloud/ragdex/internal/repository/embcache"
	indexrepo "github.com/kailas-cloud/ragdex/internal/repository/index"
	openaiTransport "github.com/kailas-cloud/ragdex/internal/transport/openai"
	ingestuc "github.com/kailas-cloud/ragdex/internal/usecase/ingest"
	"github.com/kailas-cloud/ragdex/internal/version"
)

func main() {
	// .env is optional; real env vars win either way.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting corpus ingestion",
		zap.String("version", version.Version),
		zap.String("env", env),
		zap.String("corpus_dir", cfg.Corpus.Dir),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}

	metrics.RegisterProviderMetrics()

	baseEmbedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		BatchSize:  cfg.Embedding.BatchSize,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:     logger,
	})
	embedder := embcache.New(
		baseEmbedder, store, cfg.Embedding.Model,
		time.Duration(cfg.Embedding.CacheTTLMin)*time.Minute,
		metrics.EmbeddingCacheTotal, logger,
	)

	indexRepo := indexrepo.New(store, cfg.Embedding.Dimensions).WithHNSW(indexrepo.HNSWConfig{
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
	})
	if err := indexRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure chunk index", zap.Error(err))
	}

	corpusLoader := loader.New(cfg.Corpus.Dir, cfg.Corpus.Recursive, logger)
	chunker, err := loader.NewChunker(cfg.Corpus.MaxChunkSize, cfg.Corpus.Overlap)
	if err != nil {
		logger.Fatal("Failed to create chunker", zap.Error(err))
	}

	svc := ingestuc.New(corpusLoader, chunker, embedder, indexRepo, logger).
		WithWorkers(cfg.Corpus.Workers)

	start := time.Now()
	report, err := svc.Run(ctx)
	if err != nil {
		logger.Fatal("Ingestion failed", zap.Error(err))
	}

	for _, res := range report.Results() {
		if res.Status() == domainingest.StatusError {
			fmt.Printf("FAIL  %-50s %v\n", res.DocID(), res.Err())
		} else {
			fmt.Printf("ok    %-50s %d chunks\n", res.DocID(), res.Chunks())
		}
	}
	fmt.Printf("\n%d documents, %d chunks, %d failed in %s\n",
		report.Documents(), report.Chunks(), report.Failed(), time.Since(start).Round(time.Millisecond))

	if report.Failed() > 0 {
		os.Exit(1)
	}
}
