package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"bookbrain/internal/domain/library"
)

// AppConfig 全局配置。启动时统一加载，再按模块提取使用。
type AppConfig struct {
	LogLevel  string          `json:"log_level"`
	LogFormat string          `json:"log_format"`
	Server    ServerConfig    `json:"server"`
	Store     StoreConfig     `json:"store"`
	Index     IndexConfig     `json:"index"`
	Embedding EmbeddingConfig `json:"embedding"`
	Anthropic AnthropicConfig `json:"anthropic"`
	Redis     RedisConfig     `json:"redis"`
	Library   library.Config  `json:"library"`
}

type ServerConfig struct {
	Host                string `json:"host"`
	Port                int    `json:"port"`
	ReadTimeoutSeconds  int    `json:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `json:"write_timeout_seconds"`
}

type StoreConfig struct {
	Path string `json:"path"`
}

// IndexConfig 向量索引后端选择与连接参数。
type IndexConfig struct {
	Backend        string `json:"backend"` // pinecone | pgvector | memory
	PineconeHost   string `json:"pinecone_host"`
	PineconeAPIKey string `json:"pinecone_api_key"`
	PostgresURL    string `json:"postgres_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type EmbeddingConfig struct {
	BaseURL        string `json:"base_url"`
	APIKey         string `json:"api_key"`
	Model          string `json:"model"`
	Dims           int    `json:"dims"`
	BatchSize      int    `json:"batch_size"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type AnthropicConfig struct {
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	MaxTokens      int    `json:"max_tokens"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type RedisConfig struct {
	URL             string `json:"url"`
	CacheTTLSeconds int    `json:"cache_ttl_seconds"` // 0 = 缓存关闭
}

// Default 返回默认配置。
func Default() *AppConfig {
	libCfg := library.DefaultConfig()
	return &AppConfig{
		LogLevel:  "info",
		LogFormat: "text",
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                5555,
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 120,
		},
		Store: StoreConfig{
			Path: "sentence_storage.json",
		},
		Index: IndexConfig{
			Backend:        "pinecone",
			TimeoutSeconds: 30,
		},
		Embedding: EmbeddingConfig{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "text-embedding-3-small",
			Dims:           768,
			BatchSize:      64,
			TimeoutSeconds: 60,
		},
		Anthropic: AnthropicConfig{
			BaseURL:        "https://api.anthropic.com",
			Model:          "claude-3-5-haiku-latest",
			MaxTokens:      300,
			TimeoutSeconds: 60,
		},
		Library: *libCfg,
	}
}

// Load 加载全局配置：默认值 -> 配置文件 -> 环境变量。
// 配置文件路径通过 APP_CONFIG_FILE 指定（JSON）。
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		// .env 非必需，忽略错误
	}

	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read APP_CONFIG_FILE %q failed: %w", path, err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse APP_CONFIG_FILE %q failed: %w", path, err)
	}
	return nil
}

func (c *AppConfig) applyEnv() {
	applyString("LOG_LEVEL", &c.LogLevel)
	applyString("LOG_FORMAT", &c.LogFormat)

	applyString("HOST", &c.Server.Host)
	applyInt("PORT", &c.Server.Port)
	applyInt("SERVER_READ_TIMEOUT", &c.Server.ReadTimeoutSeconds)
	applyInt("SERVER_WRITE_TIMEOUT", &c.Server.WriteTimeoutSeconds)

	applyString("STORE_PATH", &c.Store.Path)

	applyString("VECTOR_INDEX_BACKEND", &c.Index.Backend)
	applyString("PINECONE_INDEX_HOST", &c.Index.PineconeHost)
	applyString("PINECONE_API_KEY", &c.Index.PineconeAPIKey)
	applyString("DATABASE_URL", &c.Index.PostgresURL)
	applyInt("INDEX_TIMEOUT", &c.Index.TimeoutSeconds)

	applyString("EMBEDDING_BASE_URL", &c.Embedding.BaseURL)
	applyString("EMBEDDING_API_KEY", &c.Embedding.APIKey)
	applyString("EMBEDDING_MODEL", &c.Embedding.Model)
	applyInt("EMBEDDING_DIMS", &c.Embedding.Dims)
	applyInt("EMBEDDING_BATCH_SIZE", &c.Embedding.BatchSize)
	applyInt("EMBEDDING_TIMEOUT", &c.Embedding.TimeoutSeconds)

	applyString("ANTHROPIC_API_KEY", &c.Anthropic.APIKey)
	applyString("ANTHROPIC_BASE_URL", &c.Anthropic.BaseURL)
	applyString("ANTHROPIC_MODEL", &c.Anthropic.Model)
	applyInt("ANTHROPIC_MAX_TOKENS", &c.Anthropic.MaxTokens)
	applyInt("ANTHROPIC_TIMEOUT", &c.Anthropic.TimeoutSeconds)

	applyString("REDIS_URL", &c.Redis.URL)
	applyInt("CACHE_TTL", &c.Redis.CacheTTLSeconds)

	// Library 环境变量
	applyInt("MIN_PASSAGE_LEN", &c.Library.MinPassageLen)
	applyInt("MAX_PASSAGE_LEN", &c.Library.MaxPassageLen)
	applyInt("RETRIEVAL_TOP_K", &c.Library.DefaultTopK)
	applyFloat64("RETRIEVAL_SCORE_THRESHOLD", &c.Library.ScoreThreshold)
	applyBool("RETRIEVAL_SYNTHESIZE", &c.Library.Synthesize)
	applyBool("RETRIEVAL_POST_PROCESS", &c.Library.PostProcess)
	applyString("BOOKS_DIR", &c.Library.BooksDir)
	applyInt("INGEST_BATCH_SIZE", &c.Library.BatchSize)
	applyBool("INGEST_CLEAR_BEFORE", &c.Library.ClearBefore)
	applyInt("MAX_BOOKS", &c.Library.MaxBooks)
}

func (c *AppConfig) validate() error {
	switch c.Index.Backend {
	case "pinecone":
		if strings.TrimSpace(c.Index.PineconeAPIKey) == "" {
			return fmt.Errorf("PINECONE_API_KEY is required for the pinecone backend")
		}
		if strings.TrimSpace(c.Index.PineconeHost) == "" {
			return fmt.Errorf("PINECONE_INDEX_HOST is required for the pinecone backend")
		}
	case "pgvector":
		if strings.TrimSpace(c.Index.PostgresURL) == "" {
			return fmt.Errorf("DATABASE_URL is required for the pgvector backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown VECTOR_INDEX_BACKEND %q (use pinecone, pgvector or memory)", c.Index.Backend)
	}
	return nil
}

func applyString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func applyInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func applyFloat64(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			*target = n
		}
	}
}

func applyBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}
