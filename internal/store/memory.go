package store

import (
	"context"
	"sync"

	"github.com/mautops/change-gin/internal/change"
)

// MemoryRecordStore 内存存储,用于测试和单机演示
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]*change.Record
}

// NewMemoryRecordStore 创建内存存储
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string]*change.Record)}
}

// Save 保存副本
func (s *MemoryRecordStore) Save(ctx context.Context, rec *change.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := rec.Clone()
	s.mu.Lock()
	s.records[rec.ID] = cp
	s.mu.Unlock()
	return nil
}

// Load 返回副本
func (s *MemoryRecordStore) Load(ctx context.Context, id string) (*change.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, change.ErrNotFound
	}
	return rec.Clone(), nil
}

// List 查询变更摘要
func (s *MemoryRecordStore) List(ctx context.Context, filter Filter) ([]*change.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]*change.Summary, 0, len(s.records))
	for _, rec := range s.records {
		summary := rec.Summarize()
		if filter.Match(summary) {
			out = append(out, summary)
		}
	}
	s.mu.RUnlock()

	sortSummaries(out)
	return filter.Paginate(out), nil
}

// Exists 判断变更记录是否存在
func (s *MemoryRecordStore) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok, nil
}
