package library

// Config Library 模块配置（分段、检索、入库）。
type Config struct {
	// 分段配置
	MinPassageLen int `json:"min_passage_len"` // 低于该长度的候选段落被丢弃
	MaxPassageLen int `json:"max_passage_len"` // 超过该长度的段落按句子重切

	// 检索配置
	DefaultTopK    int     `json:"default_top_k"`
	ScoreThreshold float64 `json:"score_threshold"` // 0 = 不过滤
	Synthesize     bool    `json:"synthesize"`
	PostProcess    bool    `json:"post_process"`

	// 入库配置
	BooksDir    string `json:"books_dir"`
	BatchSize   int    `json:"batch_size"`    // 向量 upsert 批大小
	ClearBefore bool   `json:"clear_before"`  // 入库前清空索引与存储
	MaxBooks    int    `json:"max_books"`     // 0 = 不限制
}

// DefaultConfig 默认配置。阈值与批大小沿用线上观测值，可按需调整。
func DefaultConfig() *Config {
	return &Config{
		MinPassageLen:  100,
		MaxPassageLen:  1000,
		DefaultTopK:    5,
		ScoreThreshold: 0.5,
		Synthesize:     true,
		PostProcess:    false,
		BooksDir:       "./books",
		BatchSize:      100,
		ClearBefore:    true,
	}
}

// Options 检索编排开关，由 Config 派生。
type Options struct {
	DefaultTopK    int
	ScoreThreshold float64
	Synthesize     bool
	PostProcess    bool
}

// RetrievalOptions 从配置提取检索开关。
func (c *Config) RetrievalOptions() Options {
	return Options{
		DefaultTopK:    c.DefaultTopK,
		ScoreThreshold: c.ScoreThreshold,
		Synthesize:     c.Synthesize,
		PostProcess:    c.PostProcess,
	}
}
