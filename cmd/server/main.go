package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"bookbrain/internal/api"
	"bookbrain/internal/app/bootstrap"
	redisdb "bookbrain/internal/db/redis"
	"bookbrain/internal/domain/library"
	"bookbrain/internal/platform/config"
	applog "bookbrain/internal/platform/log"
	"bookbrain/internal/store/jsonfile"
)

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

	// 段落存储整体加载进内存；文件缺失回退为空存储（只影响回表结果）
	store := jsonfile.New(cfg.Store.Path)
	if err := store.Load(); err != nil {
		applog.Fatalf("❌ Failed to load passage store: %v", err)
	}

	ctx := context.Background()
	index, cleanup, err := bootstrap.NewVectorIndex(ctx, cfg)
	if err != nil {
		applog.Fatalf("❌ Failed to init vector index: %v", err)
	}
	defer cleanup()

	embedder := bootstrap.NewEmbedder(cfg)
	applog.Infof("✅ Embedder ready (model: %s, dims: %d)", cfg.Embedding.Model, embedder.Dims())

	retriever := library.NewRetriever(embedder, index, store, cfg.Library.RetrievalOptions())

	if cfg.Anthropic.APIKey != "" {
		retriever.SetGenerator(library.NewAnthropicGenerator(library.AnthropicGeneratorConfig{
			BaseURL:        cfg.Anthropic.BaseURL,
			APIKey:         cfg.Anthropic.APIKey,
			Model:          cfg.Anthropic.Model,
			MaxTokens:      cfg.Anthropic.MaxTokens,
			TimeoutSeconds: cfg.Anthropic.TimeoutSeconds,
		}))
		applog.Infof("✅ Answer synthesis enabled (model: %s)", cfg.Anthropic.Model)
	} else {
		applog.Info("ℹ️  No ANTHROPIC_API_KEY set, answer synthesis disabled")
	}

	if cfg.Redis.URL != "" && cfg.Redis.CacheTTLSeconds > 0 {
		if opt, err := goredis.ParseURL(cfg.Redis.URL); err == nil {
			retriever.SetCache(redisdb.NewQueryCache(goredis.NewClient(opt), cfg.Redis.CacheTTLSeconds))
			applog.Infof("✅ Query cache enabled (TTL: %ds)", cfg.Redis.CacheTTLSeconds)
		} else {
			applog.Warnf("⚠️  Redis URL invalid, query cache disabled: %v", err)
		}
	}

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.ReadTimeout = time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second
	serverConfig.WriteTimeout = time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second
	server := api.NewServer(serverConfig, retriever, store)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		applog.Info("🔄 Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := server.Stop(shutdownCtx); err != nil {
			applog.Errorf("❌ Server shutdown error: %v", err)
		}
	}()

	if err := server.Start(); err != nil && err.Error() != "http: Server closed" {
		applog.Fatalf("❌ Server error: %v", err)
	}

	applog.Info("👋 Server stopped")
}
