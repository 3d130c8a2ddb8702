// Package pgvector implements the VectorIndex port on Postgres with the
// pgvector extension (cosine distance kNN).
package pgvector

import (
	"context"
	"database/sql"
	"fmt"

	pgv "github.com/pgvector/pgvector-go"

	"bookbrain/internal/domain/library"
	applog "bookbrain/internal/platform/log"
)

// Store Postgres + pgvector 向量索引后端。
type Store struct {
	db   *sql.DB
	dims int
}

// New 创建后端。调用方负责 sql.Open 与连接池配置。
func New(db *sql.DB, dims int) *Store {
	if dims <= 0 {
		dims = 768
	}
	return &Store{db: db, dims: dims}
}

// EnsureSchema 建表与 HNSW 余弦索引（幂等）。
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS passages (
			id TEXT PRIMARY KEY,
			book TEXT NOT NULL DEFAULT '',
			embedding vector(%d) NOT NULL
		)`, s.dims),
		`CREATE INDEX IF NOT EXISTS idx_passages_embedding
			ON passages USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure pgvector schema: %w", err)
		}
	}
	applog.Info("[PGVector] Schema ready", "dims", s.dims)
	return nil
}

// Upsert 批量写入，同 id 覆盖。
func (s *Store) Upsert(ctx context.Context, records []library.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO passages (id, book, embedding) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET book = EXCLUDED.book, embedding = EXCLUDED.embedding`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.ID, r.Metadata.Book, pgv.NewVector(r.Values)); err != nil {
			return fmt.Errorf("upsert passage %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// Query top-k 余弦近邻，按相似度降序。
func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]library.Match, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, book, 1 - (embedding <=> $1) AS score
		FROM passages
		ORDER BY embedding <=> $1
		LIMIT $2`, pgv.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("pgvector query: %w", err)
	}
	defer rows.Close()

	var matches []library.Match
	for rows.Next() {
		var m library.Match
		if err := rows.Scan(&m.ID, &m.Metadata.Book, &m.Score); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.Metadata.ParagraphID = m.ID
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Clear 清空全部向量。
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `TRUNCATE passages`); err != nil {
		return fmt.Errorf("truncate passages: %w", err)
	}
	return nil
}
