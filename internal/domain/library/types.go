package library

import "errors"

// NotFoundSentinel 段落缺失时返回的占位文本（跨存储一致性兜底，不报错）。
const NotFoundSentinel = "Paragraph not found"

var (
	// ErrEmptyQuery 查询文本为空（客户端错误，4xx）。
	ErrEmptyQuery = errors.New("no query provided")
	// ErrPassageNotFound 段落 id 不在 Passage Store 中。
	ErrPassageNotFound = errors.New("passage not found")
	// ErrUnsupportedFormat 文档扩展名不受支持（入库循环跳过并继续）。
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// Passage 检索的原子单元，一段规范化后的书籍正文。
type Passage struct {
	ID   string `json:"id"`   // {source_document}_{ordinal}
	Text string `json:"text"` // 目标长度区间约 100–1000 字符
	Book string `json:"book"` // 来源文件名
}

// RecordMetadata 向量索引中每条记录携带的元数据。
type RecordMetadata struct {
	Book        string `json:"book"`
	ParagraphID string `json:"paragraph_id"`
}

// VectorRecord 入库批次中的单条 (id, vector, metadata)。
type VectorRecord struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata RecordMetadata `json:"metadata"`
}

// Match 向量索引返回的单条近邻结果。
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"` // cosine, [-1,1]
	Metadata RecordMetadata `json:"metadata"`
}

// RankedPassage 查询响应中的单条结果。
type RankedPassage struct {
	Paragraph string  `json:"paragraph"`
	Score     float64 `json:"score"`
	Book      string  `json:"book"`
}

// QueryResponse 查询响应。Results 按 score 降序排列。
type QueryResponse struct {
	Query             string          `json:"query"`
	AnthropicResponse string          `json:"anthropic_response,omitempty"`
	Results           []RankedPassage `json:"results"`
}

// BookReport 单本书的入库结果。
type BookReport struct {
	File      string `json:"file_name"`
	Passages  int    `json:"paragraphs_processed"`
	Vectors   int    `json:"vectors_stored"`
	SkipCause string `json:"skip_cause,omitempty"`
}

// IngestReport 一次完整入库运行的汇总。
type IngestReport struct {
	RunID        string       `json:"run_id"`
	Books        []BookReport `json:"books"`
	TotalVectors int          `json:"total_vectors"`
	ElapsedMs    int64        `json:"elapsed_ms"`
}
