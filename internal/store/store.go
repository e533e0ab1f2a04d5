package store

import (
	"context"
	"sort"

	"github.com/mautops/change-gin/internal/change"
)

// RecordStore 变更记录存储接口
// Save 返回后,任意调用方的 Load 都能读到最新记录
type RecordStore interface {
	Save(ctx context.Context, rec *change.Record) error
	Load(ctx context.Context, id string) (*change.Record, error)
	List(ctx context.Context, filter Filter) ([]*change.Summary, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// EventLog 审计事件日志,只追加
type EventLog interface {
	Append(ctx context.Context, evt change.Event) error
}

// EventReader 审计事件查询
type EventReader interface {
	Events(ctx context.Context, changeID string) ([]change.Event, error)
}

// EventStore 可读写的事件日志
type EventStore interface {
	EventLog
	EventReader
}

// Filter 变更列表过滤条件
type Filter struct {
	Status         *change.Status
	Priority       *change.Priority
	ChangeType     *change.Type
	Requester      string
	AffectedSystem string
	Page           int
	PageSize       int
}

// Match 判断摘要是否满足过滤条件(不含分页)
func (f Filter) Match(s *change.Summary) bool {
	if f.Status != nil && s.Status != *f.Status {
		return false
	}
	if f.Priority != nil && s.Priority != *f.Priority {
		return false
	}
	if f.ChangeType != nil && s.ChangeType != *f.ChangeType {
		return false
	}
	if f.Requester != "" && s.Requester != f.Requester {
		return false
	}
	if f.AffectedSystem != "" {
		found := false
		for _, sys := range s.AffectedSystems {
			if sys == f.AffectedSystem {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Paginate 按分页参数截取,Page 或 PageSize 不大于 0 时返回全部
func (f Filter) Paginate(items []*change.Summary) []*change.Summary {
	if f.Page <= 0 || f.PageSize <= 0 {
		return items
	}
	start := (f.Page - 1) * f.PageSize
	if start >= len(items) {
		return []*change.Summary{}
	}
	end := start + f.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// sortSummaries 按创建时间倒序,时间相同按 ID 倒序
func sortSummaries(items []*change.Summary) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
