package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	applog "bookbrain/internal/platform/log"
)

// Ingestor 入库 Pipeline：抽取 → 分段 → {落库, 向量化} → 批量 upsert。
// 整个流程是独占性维护操作，逐文档串行执行；调用方需保证没有并发的重建。
type Ingestor struct {
	extractors *ExtractorRegistry
	segmenter  *Segmenter
	embedder   Embedder
	index      VectorIndex
	store      PassageStore
	config     *Config
}

// NewIngestor 创建入库 Pipeline。
func NewIngestor(embedder Embedder, index VectorIndex, store PassageStore, cfg *Config) *Ingestor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Ingestor{
		extractors: NewExtractorRegistry(),
		segmenter:  NewSegmenter(cfg.MinPassageLen, cfg.MaxPassageLen),
		embedder:   embedder,
		index:      index,
		store:      store,
		config:     cfg,
	}
}

// Run 执行一次完整入库。单文档/单批次失败只记录并跳过，不中断整体运行。
func (ing *Ingestor) Run(ctx context.Context) (*IngestReport, error) {
	start := time.Now()
	report := &IngestReport{RunID: uuid.New().String()}

	files, err := ing.listBooks()
	if err != nil {
		return nil, err
	}
	applog.Info("[Ingest] Run started",
		"run_id", report.RunID,
		"books_dir", ing.config.BooksDir,
		"books", len(files),
		"clear_before", ing.config.ClearBefore,
	)

	// 全量重建：索引与存储一起清空，避免孤儿 id 破坏跨存储一致性
	if ing.config.ClearBefore {
		if err := ing.index.Clear(ctx); err != nil {
			return nil, fmt.Errorf("clear vector index: %w", err)
		}
		if err := ing.store.Reset(); err != nil {
			return nil, fmt.Errorf("reset passage store: %w", err)
		}
		applog.Info("[Ingest] Index and passage store cleared")
	}

	for _, file := range files {
		book := ing.processBook(ctx, file)
		report.Books = append(report.Books, book)
		report.TotalVectors += book.Vectors
	}

	if err := ing.store.Flush(); err != nil {
		return nil, fmt.Errorf("flush passage store: %w", err)
	}

	report.ElapsedMs = time.Since(start).Milliseconds()
	applog.Info("[Ingest] Run finished",
		"run_id", report.RunID,
		"books", len(report.Books),
		"total_vectors", report.TotalVectors,
		"elapsed_ms", report.ElapsedMs,
	)
	return report, nil
}

// listBooks 列出待处理文件。os.ReadDir 返回名字有序，保证多次运行顺序一致。
func (ing *Ingestor) listBooks() ([]string, error) {
	entries, err := os.ReadDir(ing.config.BooksDir)
	if err != nil {
		return nil, fmt.Errorf("read books dir %s: %w", ing.config.BooksDir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !ing.extractors.Supports(e.Name()) {
			continue
		}
		files = append(files, e.Name())
	}
	if ing.config.MaxBooks > 0 && len(files) > ing.config.MaxBooks {
		files = files[:ing.config.MaxBooks]
	}
	return files, nil
}

// processBook 处理单本书。返回的 BookReport 带失败原因时表示整本跳过。
func (ing *Ingestor) processBook(ctx context.Context, file string) BookReport {
	report := BookReport{File: file}

	extractor, err := ing.extractors.Get(file)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFormat) {
			applog.Warn("[Ingest] Unsupported file type, skipping", "file", file)
		}
		report.SkipCause = err.Error()
		return report
	}

	f, err := os.Open(filepath.Join(ing.config.BooksDir, file))
	if err != nil {
		applog.Error("[Ingest] Failed to open book", "file", file, "error", err)
		report.SkipCause = err.Error()
		return report
	}
	defer f.Close()

	extracted, err := extractor.Extract(f, file)
	if err != nil {
		// 单本抽取失败不中断整个运行
		applog.Error("[Ingest] Extraction failed, skipping book", "file", file, "error", err)
		report.SkipCause = err.Error()
		return report
	}

	text := CleanText(extracted.Text)
	if text == "" {
		applog.Warn("[Ingest] No text extracted", "file", file)
		report.SkipCause = "no text extracted"
		return report
	}

	paragraphs := ing.segmenter.Segment(text)
	report.Passages = len(paragraphs)
	applog.Info("[Ingest] Book segmented", "file", file, "paragraphs", len(paragraphs))

	// 段落先落库再入索引，保证索引中的每个 id 在存储中都有对应项
	passages := make([]Passage, len(paragraphs))
	for i, p := range paragraphs {
		id := fmt.Sprintf("%s_%d", file, i)
		passages[i] = Passage{ID: id, Text: p, Book: file}
		if err := ing.store.Put(id, p); err != nil {
			applog.Error("[Ingest] Failed to store paragraph", "paragraph_id", id, "error", err)
			report.SkipCause = err.Error()
			return report
		}
	}

	report.Vectors = ing.upsertBatches(ctx, passages)
	return report
}

// upsertBatches 批量向量化并写入索引。单批失败记录并跳过（至多丢一批）。
func (ing *Ingestor) upsertBatches(ctx context.Context, passages []Passage) int {
	batchSize := ing.config.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	stored := 0
	for i := 0; i < len(passages); i += batchSize {
		end := i + batchSize
		if end > len(passages) {
			end = len(passages)
		}
		batch := passages[i:end]

		texts := make([]string, len(batch))
		for j, p := range batch {
			texts[j] = p.Text
		}

		vectors, err := ing.embedder.Embed(ctx, texts)
		if err != nil {
			applog.Error("[Ingest] Embedding batch failed, skipping", "from", i, "to", end, "error", err)
			continue
		}

		records := make([]VectorRecord, len(batch))
		for j, p := range batch {
			records[j] = VectorRecord{
				ID:     p.ID,
				Values: vectors[j],
				Metadata: RecordMetadata{
					Book:        p.Book,
					ParagraphID: p.ID,
				},
			}
		}

		if err := ing.index.Upsert(ctx, records); err != nil {
			applog.Error("[Ingest] Upsert batch failed, skipping", "from", i, "to", end, "error", err)
			continue
		}
		stored += len(records)
	}
	return stored
}
