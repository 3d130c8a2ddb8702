// Package jsonfile implements the passage store as a single JSON file
// mapping paragraph id to paragraph text, loaded wholesale at startup and
// rebuilt wholesale at ingestion time.
package jsonfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"bookbrain/internal/domain/library"
	applog "bookbrain/internal/platform/log"
)

// Store 单文件 JSON 段落存储。加载后读路径无锁竞争（RWMutex 只读）。
type Store struct {
	mu   sync.RWMutex
	path string
	data map[string]string
}

// New 创建存储（不触碰磁盘，显式 Load/Flush）。
func New(path string) *Store {
	return &Store{
		path: path,
		data: make(map[string]string),
	}
}

// Load 启动时整体加载。文件缺失不报错，回退为空存储。
func (s *Store) Load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			applog.Warn("[Store] Passage store file not found, starting empty", "path", s.path)
			return nil
		}
		return fmt.Errorf("read passage store %s: %w", s.path, err)
	}

	data := make(map[string]string)
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parse passage store %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()

	applog.Info("[Store] Passage store loaded", "path", s.path, "paragraphs", len(data))
	return nil
}

// Get 按 id 取段落文本。缺失返回 ErrPassageNotFound。
func (s *Store) Get(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	text, ok := s.data[id]
	if !ok {
		return "", library.ErrPassageNotFound
	}
	return text, nil
}

// Put 写入段落文本（内存态，Flush 落盘）。
func (s *Store) Put(id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = text
	return nil
}

// Len 当前段落数。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Reset 丢弃全部内容并删除存量文件（全量重建的第一步）。
func (s *Store) Reset() error {
	s.mu.Lock()
	s.data = make(map[string]string)
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove passage store %s: %w", s.path, err)
	}
	return nil
}

// Flush 整体落盘。先写临时文件再原子替换，避免半写状态。
func (s *Store) Flush() error {
	s.mu.RLock()
	raw, err := json.Marshal(s.data)
	count := len(s.data)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal passage store: %w", err)
	}

	tmp := s.path + ".tmp"
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write passage store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace passage store: %w", err)
	}

	applog.Info("[Store] Passage store flushed", "path", s.path, "paragraphs", count)
	return nil
}
