package service

import (
	"context"
	"fmt"

	"github.com/mautops/change-gin/internal/change"
	"github.com/mautops/change-gin/internal/model"
	"github.com/mautops/change-gin/internal/store"
	"gorm.io/gorm"
)

// StatisticsService 统计服务接口
type StatisticsService interface {
	CountByStatus(ctx context.Context) (map[string]int64, error)
	GetStatistics(ctx context.Context) (*ChangeStatistics, error)
}

// ChangeStatistics 变更统计
type ChangeStatistics struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"by_status"`
	ByType     map[string]int64 `json:"by_type"`
	ByPriority map[string]int64 `json:"by_priority"`
	Active     int64            `json:"active"`
}

// statisticsService 统计服务实现
// 数据库后端直接按列分组统计,其他后端遍历摘要
type statisticsService struct {
	db      *gorm.DB
	records store.RecordStore
}

// NewStatisticsService 创建统计服务,db 为 nil 时使用记录存储
func NewStatisticsService(db *gorm.DB, records store.RecordStore) StatisticsService {
	return &statisticsService{db: db, records: records}
}

// CountByStatus 按状态统计变更
func (s *statisticsService) CountByStatus(ctx context.Context) (map[string]int64, error) {
	if s.db != nil {
		return s.groupCount(ctx, "status")
	}
	stats, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	return stats.ByStatus, nil
}

// GetStatistics 获取变更统计
func (s *statisticsService) GetStatistics(ctx context.Context) (*ChangeStatistics, error) {
	var (
		stats *ChangeStatistics
		err   error
	)
	if s.db != nil {
		stats, err = s.query(ctx)
	} else {
		stats, err = s.scan(ctx)
	}
	if err != nil {
		return nil, err
	}

	for status, n := range stats.ByStatus {
		stats.Total += n
		if !change.Status(status).IsTerminal() {
			stats.Active += n
		}
	}
	return stats, nil
}

func (s *statisticsService) query(ctx context.Context) (*ChangeStatistics, error) {
	byStatus, err := s.groupCount(ctx, "status")
	if err != nil {
		return nil, err
	}
	byType, err := s.groupCount(ctx, "change_type")
	if err != nil {
		return nil, err
	}
	byPriority, err := s.groupCount(ctx, "priority")
	if err != nil {
		return nil, err
	}
	return &ChangeStatistics{ByStatus: byStatus, ByType: byType, ByPriority: byPriority}, nil
}

// groupCount 按列分组计数,column 只接受内部常量
func (s *statisticsService) groupCount(ctx context.Context, column string) (map[string]int64, error) {
	var results []struct {
		GroupKey string
		Count    int64
	}

	err := s.db.WithContext(ctx).Model(&model.ChangeModel{}).
		Select(column + " as group_key, COUNT(*) as count").
		Group(column).
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get change statistics by %s: %v", change.ErrPersistenceFailure, column, err)
	}

	counts := make(map[string]int64, len(results))
	for _, r := range results {
		counts[r.GroupKey] = r.Count
	}
	return counts, nil
}

func (s *statisticsService) scan(ctx context.Context) (*ChangeStatistics, error) {
	items, err := s.records.List(ctx, store.Filter{})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list changes: %v", change.ErrPersistenceFailure, err)
	}

	stats := &ChangeStatistics{
		ByStatus:   make(map[string]int64),
		ByType:     make(map[string]int64),
		ByPriority: make(map[string]int64),
	}
	for _, item := range items {
		stats.ByStatus[string(item.Status)]++
		stats.ByType[string(item.ChangeType)]++
		stats.ByPriority[string(item.Priority)]++
	}
	return stats, nil
}
