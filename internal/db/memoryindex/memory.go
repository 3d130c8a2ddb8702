// Package memoryindex provides an in-process brute-force cosine similarity
// index, used for local runs and tests.
package memoryindex

import (
	"context"
	"math"
	"sort"
	"sync"

	"bookbrain/internal/domain/library"
)

// Index 暴力余弦近邻索引。
type Index struct {
	mu      sync.RWMutex
	byID    map[string]int
	records []library.VectorRecord
}

// New 创建空索引。
func New() *Index {
	return &Index{byID: make(map[string]int)}
}

// Upsert 写入记录，同 id 覆盖。
func (idx *Index) Upsert(ctx context.Context, records []library.VectorRecord) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, r := range records {
		if pos, ok := idx.byID[r.ID]; ok {
			idx.records[pos] = r
			continue
		}
		idx.byID[r.ID] = len(idx.records)
		idx.records = append(idx.records, r)
	}
	return nil
}

// Query 按余弦相似度降序返回 top-k。
func (idx *Index) Query(ctx context.Context, vector []float32, topK int) ([]library.Match, error) {
	if topK <= 0 {
		topK = 5
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches := make([]library.Match, 0, len(idx.records))
	for _, r := range idx.records {
		matches = append(matches, library.Match{
			ID:       r.ID,
			Score:    cosine(r.Values, vector),
			Metadata: r.Metadata,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Clear 清空索引。
func (idx *Index) Clear(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.byID = make(map[string]int)
	idx.records = nil
	return nil
}

// Len 当前记录数。
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
