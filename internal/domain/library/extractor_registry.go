package library

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ExtractorRegistry 文档抽取器注册表。
type ExtractorRegistry struct {
	mu         sync.RWMutex
	extractors map[string]Extractor // key = ".ext"
}

// NewExtractorRegistry 创建注册表并注册内置抽取器。
func NewExtractorRegistry() *ExtractorRegistry {
	r := &ExtractorRegistry{
		extractors: make(map[string]Extractor),
	}

	r.Register(&PDFExtractor{})
	r.Register(&EPUBExtractor{})
	r.Register(&DOCXExtractor{})
	r.Register(&PlainTextExtractor{})

	return r
}

// Register 注册抽取器。
func (r *ExtractorRegistry) Register(e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range e.SupportedTypes() {
		r.extractors[strings.ToLower(ext)] = e
	}
}

// Get 根据文件名选择抽取器。不支持的扩展名返回 ErrUnsupportedFormat。
func (r *ExtractorRegistry) Get(filename string) (Extractor, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return nil, fmt.Errorf("%w: no file extension in %s", ErrUnsupportedFormat, filename)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.extractors[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s (supported: %s)", ErrUnsupportedFormat, ext, r.supportedLocked())
	}
	return e, nil
}

// Supports 判断文件名是否有对应抽取器。
func (r *ExtractorRegistry) Supports(filename string) bool {
	_, err := r.Get(filename)
	return err == nil
}

// SupportedTypes 返回所有支持的扩展名。
func (r *ExtractorRegistry) SupportedTypes() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.supportedLocked()
}

func (r *ExtractorRegistry) supportedLocked() string {
	types := make([]string, 0, len(r.extractors))
	for ext := range r.extractors {
		types = append(types, ext)
	}
	sort.Strings(types)
	return strings.Join(types, ", ")
}
