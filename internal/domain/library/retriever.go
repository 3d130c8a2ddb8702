package library

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	applog "bookbrain/internal/platform/log"
)

// Retriever 检索编排器：embed 查询 → 向量索引 top-k → 段落回表 →
// 阈值过滤/后处理 → 可选答案合成。
// 两个历史版本的编排逻辑（只合成不过滤 / 只过滤不合成）统一在 Options 开关下。
type Retriever struct {
	embedder  Embedder
	index     VectorIndex
	passages  PassageReader
	generator Generator  // 可选
	cache     QueryCache // 可选
	opts      Options
}

// NewRetriever 创建检索编排器。
func NewRetriever(embedder Embedder, index VectorIndex, passages PassageReader, opts Options) *Retriever {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 5
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		passages: passages,
		opts:     opts,
	}
}

// SetGenerator 设置答案合成 Generator（启用 synthesis）。
func (r *Retriever) SetGenerator(g Generator) {
	r.generator = g
}

// SetCache 设置查询缓存。
func (r *Retriever) SetCache(c QueryCache) {
	r.cache = c
}

// Answer 处理一次查询。合成失败只降级（丢弃 synthesis 字段），
// 索引查询失败才整体报错。
func (r *Retriever) Answer(ctx context.Context, query string, topK int) (*QueryResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = r.opts.DefaultTopK
	}

	if r.cache != nil {
		if cached, ok := r.cache.Get(ctx, query, topK); ok {
			return cached, nil
		}
	}

	start := time.Now()

	// 1. Embed 查询
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// 2. top-k 近邻
	matches, err := r.index.Query(ctx, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("vector index query: %w", err)
	}

	// 3. 回表 + 过滤 + 后处理
	results := make([]RankedPassage, 0, len(matches))
	for _, m := range matches {
		text, err := r.passages.Get(m.ID)
		if err != nil {
			// 单条缺失不拖垮整个请求，占位返回
			applog.Warn("[Library] Paragraph not found in store", "paragraph_id", m.ID)
			text = NotFoundSentinel
		}

		if r.opts.ScoreThreshold > 0 && m.Score <= r.opts.ScoreThreshold {
			continue
		}
		if r.opts.PostProcess && text != NotFoundSentinel {
			text = postProcessParagraph(text)
		}

		book := m.Metadata.Book
		if book == "" {
			book = "Unknown book"
		}
		results = append(results, RankedPassage{
			Paragraph: text,
			Score:     m.Score,
			Book:      book,
		})
	}

	resp := &QueryResponse{
		Query:   query,
		Results: results,
	}

	// 4. 可选答案合成；provider 失败降级为仅返回段落
	if r.opts.Synthesize && r.generator != nil && len(results) > 0 {
		answer, err := r.generator.Generate(ctx, buildSynthesisPrompt(query, results))
		if err != nil {
			applog.Warn("[Library] Synthesis failed, returning raw results only", "error", err)
		} else {
			resp.AnthropicResponse = answer
		}
	}

	applog.Info("[Library] Query answered",
		"query", query,
		"top_k", topK,
		"results", len(results),
		"synthesized", resp.AnthropicResponse != "",
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if r.cache != nil {
		cacheResp := *resp
		cacheResp.Results = append([]RankedPassage(nil), resp.Results...)
		go func() {
			cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			r.cache.Set(cacheCtx, query, topK, &cacheResp)
		}()
	}

	return resp, nil
}

// buildSynthesisPrompt 拼接查询与来源标注的段落文本。
func buildSynthesisPrompt(query string, results []RankedPassage) string {
	var sb strings.Builder
	for i, res := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("From '%s':\n%s", res.Book, res.Paragraph))
	}

	return fmt.Sprintf("Based on the following query and raw results, provide a concise and informative answer. "+
		"Synthesize the information and present it clearly. "+
		"Ignore any irrelevant metadata or bibliographic information.\n\nQuery: %s\n\nRaw Results:\n%s",
		query, sb.String())
}

var reRefNumber = regexp.MustCompile(`\[\d+\]`)

// postProcessParagraph 展示前的修饰性清理：残留页戳、引用序号、句首大写。
func postProcessParagraph(text string) string {
	text = rePageStamp.ReplaceAllString(text, "")
	text = reRefNumber.ReplaceAllString(text, "")

	sentences := strings.Split(text, ". ")
	for i, s := range sentences {
		sentences[i] = capitalizeFirst(s)
	}
	return strings.TrimSpace(strings.Join(sentences, ". "))
}

func capitalizeFirst(s string) string {
	for i, r := range s {
		if unicode.IsLetter(r) {
			return s[:i] + string(unicode.ToUpper(r)) + s[i+len(string(r)):]
		}
		if !unicode.IsSpace(r) {
			break
		}
	}
	return s
}
