package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mautops/change-gin/internal/change"
	"github.com/mautops/change-gin/internal/model"
	"github.com/mautops/change-gin/internal/repository"
	"gorm.io/gorm"
)

// dbRecordStore 基于 gorm 的变更记录存储
type dbRecordStore struct {
	db *gorm.DB
}

// NewDBRecordStore 创建数据库存储
func NewDBRecordStore(db *gorm.DB) RecordStore {
	return &dbRecordStore{db: db}
}

// Save 保存变更记录
func (s *dbRecordStore) Save(ctx context.Context, rec *change.Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	m := &model.ChangeModel{
		ID:         rec.ID,
		Title:      rec.Title,
		ChangeType: string(rec.ChangeType),
		Priority:   string(rec.Priority),
		Status:     string(rec.Status),
		Requester:  rec.Requester,
		Data:       data,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}

	return s.repo(ctx).Save(m)
}

// Load 加载变更记录
func (s *dbRecordStore) Load(ctx context.Context, id string) (*change.Record, error) {
	m, err := s.repo(ctx).FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, change.ErrNotFound
		}
		return nil, err
	}
	return decodeRecord(m.Data)
}

// List 查询变更摘要
// 状态、类型、优先级、申请人在数据库中过滤,受影响系统在内存中过滤
func (s *dbRecordStore) List(ctx context.Context, filter Filter) ([]*change.Summary, error) {
	rf := &repository.ChangeFilter{}
	if filter.Status != nil {
		v := string(*filter.Status)
		rf.Status = &v
	}
	if filter.ChangeType != nil {
		v := string(*filter.ChangeType)
		rf.ChangeType = &v
	}
	if filter.Priority != nil {
		v := string(*filter.Priority)
		rf.Priority = &v
	}
	if filter.Requester != "" {
		v := filter.Requester
		rf.Requester = &v
	}

	models, err := s.repo(ctx).FindByFilter(rf)
	if err != nil {
		return nil, err
	}

	out := make([]*change.Summary, 0, len(models))
	for _, m := range models {
		rec, err := decodeRecord(m.Data)
		if err != nil {
			return nil, err
		}
		summary := rec.Summarize()
		if filter.Match(summary) {
			out = append(out, summary)
		}
	}
	sortSummaries(out)
	return filter.Paginate(out), nil
}

// Exists 判断变更记录是否存在
func (s *dbRecordStore) Exists(ctx context.Context, id string) (bool, error) {
	return s.repo(ctx).Exists(id)
}

// repo 返回绑定请求上下文的仓储
func (s *dbRecordStore) repo(ctx context.Context) repository.ChangeRepository {
	return repository.NewChangeRepository(s.db.WithContext(ctx))
}

func encodeRecord(rec *change.Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal change: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (*change.Record, error) {
	var rec change.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal change: %w", err)
	}
	rec.Normalize()
	return &rec, nil
}
