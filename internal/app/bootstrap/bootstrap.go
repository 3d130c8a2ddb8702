// Package bootstrap wires configured backends into the domain ports shared
// by the server and ingest entrypoints.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"bookbrain/internal/db/memoryindex"
	"bookbrain/internal/db/pgvector"
	"bookbrain/internal/db/pinecone"
	"bookbrain/internal/domain/library"
	"bookbrain/internal/platform/config"
	applog "bookbrain/internal/platform/log"
)

// NewVectorIndex 按配置构建向量索引后端。返回的 cleanup 在进程退出时调用。
func NewVectorIndex(ctx context.Context, cfg *config.AppConfig) (library.VectorIndex, func(), error) {
	noop := func() {}

	switch cfg.Index.Backend {
	case "pinecone":
		client := pinecone.NewClient(pinecone.Config{
			Host:           cfg.Index.PineconeHost,
			APIKey:         cfg.Index.PineconeAPIKey,
			TimeoutSeconds: cfg.Index.TimeoutSeconds,
		})
		applog.Info("✅ Pinecone index client ready", "host", cfg.Index.PineconeHost)
		return client, noop, nil

	case "pgvector":
		db, err := sql.Open("postgres", cfg.Index.PostgresURL)
		if err != nil {
			return nil, noop, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, noop, fmt.Errorf("ping postgres: %w", err)
		}

		store := pgvector.New(db, cfg.Embedding.Dims)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, noop, err
		}
		applog.Info("✅ Connected to PostgreSQL (pgvector backend)")
		return store, func() { db.Close() }, nil

	case "memory":
		applog.Info("ℹ️  Using in-memory vector index (data is not persisted)")
		return memoryindex.New(), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown vector index backend: %s", cfg.Index.Backend)
	}
}

// NewEmbedder 构建 Embedding Engine。入库与查询必须使用同一配置，
// 模型或维度不一致会让相似度检索失去意义。
func NewEmbedder(cfg *config.AppConfig) *library.OpenAIEmbedder {
	return library.NewOpenAIEmbedder(library.OpenAIEmbedderConfig{
		BaseURL:        cfg.Embedding.BaseURL,
		APIKey:         cfg.Embedding.APIKey,
		Model:          cfg.Embedding.Model,
		Dims:           cfg.Embedding.Dims,
		BatchSize:      cfg.Embedding.BatchSize,
		TimeoutSeconds: cfg.Embedding.TimeoutSeconds,
	})
}
