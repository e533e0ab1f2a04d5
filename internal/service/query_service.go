package service

import (
	"context"
	"fmt"

	"github.com/mautops/change-gin/internal/change"
	"github.com/mautops/change-gin/internal/integration"
	"github.com/mautops/change-gin/internal/store"
)

// 分页默认值
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// QueryService 查询服务接口
type QueryService interface {
	ListChanges(ctx context.Context, filter *ListChangesFilter) ([]*change.Summary, int64, error)
	GetEvents(ctx context.Context, changeID string) ([]change.Event, error)
	GetHistory(ctx context.Context, changeID string) ([]change.StateChange, error)
}

// ListChangesFilter 变更列表查询过滤器
type ListChangesFilter struct {
	Status         *change.Status
	Priority       *change.Priority
	ChangeType     *change.Type
	Requester      string
	AffectedSystem string
	Page           int
	PageSize       int
}

// Validate 校验枚举取值并补齐分页默认值
func (f *ListChangesFilter) Validate() error {
	if f.Status != nil && !f.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", change.ErrInvalidRequest, *f.Status)
	}
	if f.Priority != nil && !f.Priority.IsValid() {
		return fmt.Errorf("%w: unknown priority %q", change.ErrInvalidRequest, *f.Priority)
	}
	if f.ChangeType != nil && !f.ChangeType.IsValid() {
		return fmt.Errorf("%w: unknown change type %q", change.ErrInvalidRequest, *f.ChangeType)
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return nil
}

// queryService 查询服务实现
type queryService struct {
	manager integration.ChangeManager
}

// NewQueryService 创建查询服务
func NewQueryService(manager integration.ChangeManager) QueryService {
	return &queryService{manager: manager}
}

// ListChanges 列出变更,返回当前页和总数
func (s *queryService) ListChanges(ctx context.Context, filter *ListChangesFilter) ([]*change.Summary, int64, error) {
	if filter == nil {
		filter = &ListChangesFilter{}
	}
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	// 先查询全部匹配项以得到总数
	all, err := s.manager.List(ctx, store.Filter{
		Status:         filter.Status,
		Priority:       filter.Priority,
		ChangeType:     filter.ChangeType,
		Requester:      filter.Requester,
		AffectedSystem: filter.AffectedSystem,
	})
	if err != nil {
		return nil, 0, err
	}

	// 应用分页
	page := store.Filter{Page: filter.Page, PageSize: filter.PageSize}.Paginate(all)
	return page, int64(len(all)), nil
}

// GetEvents 获取审计事件
func (s *queryService) GetEvents(ctx context.Context, changeID string) ([]change.Event, error) {
	return s.manager.Events(ctx, changeID)
}

// GetHistory 获取状态历史
func (s *queryService) GetHistory(ctx context.Context, changeID string) ([]change.StateChange, error) {
	return s.manager.History(ctx, changeID)
}
