// Package pinecone implements the VectorIndex port against the Pinecone
// data-plane REST API.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bookbrain/internal/domain/library"
	applog "bookbrain/internal/platform/log"
)

// Config Pinecone 连接配置。
type Config struct {
	Host           string // index 专属 data-plane host
	APIKey         string
	TimeoutSeconds int
}

// Client Pinecone data-plane 客户端。
type Client struct {
	host   string
	apiKey string
	client *http.Client
}

// NewClient 创建客户端。
func NewClient(cfg Config) *Client {
	host := strings.TrimRight(cfg.Host, "/")
	if host != "" && !strings.HasPrefix(host, "http") {
		host = "https://" + host
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		host:   host,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
}

// ── 请求/响应结构 ────────────────────────────────────────────

type upsertRequest struct {
	Vectors []vectorPayload `json:"vectors"`
}

type vectorPayload struct {
	ID       string                 `json:"id"`
	Values   []float32              `json:"values"`
	Metadata library.RecordMetadata `json:"metadata"`
}

type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string                 `json:"id"`
		Score    float64                `json:"score"`
		Metadata library.RecordMetadata `json:"metadata"`
	} `json:"matches"`
}

type deleteRequest struct {
	DeleteAll bool `json:"deleteAll"`
}

// Upsert 批量写入向量，同 id 覆盖。
func (c *Client) Upsert(ctx context.Context, records []library.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	vectors := make([]vectorPayload, len(records))
	for i, r := range records {
		vectors[i] = vectorPayload{ID: r.ID, Values: r.Values, Metadata: r.Metadata}
	}

	var resp struct {
		UpsertedCount int `json:"upsertedCount"`
	}
	if err := c.post(ctx, "/vectors/upsert", upsertRequest{Vectors: vectors}, &resp); err != nil {
		return fmt.Errorf("pinecone upsert: %w", err)
	}

	applog.Debug("[Pinecone] Vectors upserted", "count", resp.UpsertedCount)
	return nil
}

// Query top-k 余弦近邻（metric 在索引创建时固定为 cosine）。
func (c *Client) Query(ctx context.Context, vector []float32, topK int) ([]library.Match, error) {
	req := queryRequest{
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
	}

	var resp queryResponse
	if err := c.post(ctx, "/query", req, &resp); err != nil {
		return nil, fmt.Errorf("pinecone query: %w", err)
	}

	matches := make([]library.Match, len(resp.Matches))
	for i, m := range resp.Matches {
		matches[i] = library.Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata}
	}
	return matches, nil
}

// Clear 删除索引内全部向量。
func (c *Client) Clear(ctx context.Context) error {
	if err := c.post(ctx, "/vectors/delete", deleteRequest{DeleteAll: true}, nil); err != nil {
		return fmt.Errorf("pinecone delete all: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, reqBody, respBody interface{}) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.host+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Api-Key", c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pinecone API error (%d): %s", resp.StatusCode, string(raw))
	}

	if respBody != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, respBody); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}
