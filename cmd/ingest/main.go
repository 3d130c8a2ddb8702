package main

import (
	"context"
	"fmt"
	"os"

	goredis "github.com/redis/go-redis/v9"

	"bookbrain/internal/app/bootstrap"
	redisdb "bookbrain/internal/db/redis"
	"bookbrain/internal/domain/library"
	"bookbrain/internal/platform/config"
	applog "bookbrain/internal/platform/log"
	"bookbrain/internal/store/jsonfile"
)

// 入库是独占性维护操作：重建期间不应有查询流量（存储会先被清空）。
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Config load failed: %v\n", err)
		os.Exit(1)
	}

	applog.Init(applog.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	store := jsonfile.New(cfg.Store.Path)
	if !cfg.Library.ClearBefore {
		// 增量累加模式下保留存量段落
		if err := store.Load(); err != nil {
			applog.Fatalf("❌ Failed to load passage store: %v", err)
		}
	}

	ctx := context.Background()
	index, cleanup, err := bootstrap.NewVectorIndex(ctx, cfg)
	if err != nil {
		applog.Fatalf("❌ Failed to init vector index: %v", err)
	}
	defer cleanup()

	embedder := bootstrap.NewEmbedder(cfg)
	applog.Infof("✅ Embedder ready (model: %s, dims: %d)", cfg.Embedding.Model, embedder.Dims())

	ingestor := library.NewIngestor(embedder, index, store, &cfg.Library)

	report, err := ingestor.Run(ctx)
	if err != nil {
		applog.Fatalf("❌ Ingestion run failed: %v", err)
	}

	// 索引重建后陈旧的查询缓存必须清掉
	if cfg.Redis.URL != "" && cfg.Redis.CacheTTLSeconds > 0 {
		if opt, err := goredis.ParseURL(cfg.Redis.URL); err == nil {
			redisdb.NewQueryCache(goredis.NewClient(opt), cfg.Redis.CacheTTLSeconds).InvalidateAll(ctx)
		}
	}

	applog.Infof("✅ Processed %d books, %d vectors stored (run %s)",
		len(report.Books), report.TotalVectors, report.RunID)
	for _, book := range report.Books {
		if book.SkipCause != "" {
			applog.Warnf("⚠️  %s skipped: %s", book.File, book.SkipCause)
			continue
		}
		applog.Infof("   %s: %d paragraphs, %d vectors", book.File, book.Passages, book.Vectors)
	}
}
