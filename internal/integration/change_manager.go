package integration

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mautops/change-gin/internal/analyzer"
	"github.com/mautops/change-gin/internal/change"
	"github.com/mautops/change-gin/internal/planner"
	"github.com/mautops/change-gin/internal/statemachine"
	"github.com/mautops/change-gin/internal/store"
	"github.com/mautops/change-gin/internal/testrunner"
	"github.com/sirupsen/logrus"
)

// ChangeManager 变更管理引擎
// 每个操作读取一条变更记录,在副本上修改,最后一步持久化;出错时不持久化任何修改
type ChangeManager interface {
	Create(ctx context.Context, req *CreateChangeRequest) (*change.Record, error)
	Get(ctx context.Context, id string) (*change.Record, error)
	List(ctx context.Context, filter store.Filter) ([]*change.Summary, error)
	GetStatusReport(ctx context.Context, id string) (*change.StatusReport, error)
	Events(ctx context.Context, id string) ([]change.Event, error)
	History(ctx context.Context, id string) ([]change.StateChange, error)

	SubmitForReview(ctx context.Context, id string, submittedBy string, notes string) (*change.Record, error)
	AssessImpact(ctx context.Context, id string) (*change.ImpactAssessment, error)
	CreateRollbackPlan(ctx context.Context, id string) (*change.RollbackPlan, error)
	RunTests(ctx context.Context, id string, suite string) ([]change.TestResult, error)

	RequestApproval(ctx context.Context, id string, approver string, notes string) (*change.Approval, error)
	Approve(ctx context.Context, id string, approver string, notes string) (*change.Approval, error)
	Reject(ctx context.Context, id string, approver string, reason string) (*change.Approval, error)

	Deploy(ctx context.Context, id string, deployedBy string) (*change.DeploymentRecord, error)
	CompleteDeployment(ctx context.Context, id string, success bool, notes string) (*change.DeploymentRecord, error)
	Rollback(ctx context.Context, id string, rolledBackBy string, reason string) (*change.RollbackExecution, error)
	Cancel(ctx context.Context, id string, cancelledBy string, reason string) (*change.Record, error)
}

// CreateChangeRequest 创建变更请求参数
type CreateChangeRequest struct {
	Title                 string          `json:"title" validate:"required,max=255"`
	Description           string          `json:"description" validate:"required"`
	ChangeType            change.Type     `json:"change_type" validate:"required"`
	Priority              change.Priority `json:"priority" validate:"required"`
	Requester             string          `json:"requester" validate:"required,max=128"`
	AffectedSystems       []string        `json:"affected_systems" validate:"required,min=1"`
	BusinessJustification string          `json:"business_justification" validate:"required"`
	TechnicalDetails      string          `json:"technical_details" validate:"required"`
	TargetDeploymentDate  *time.Time      `json:"target_deployment_date,omitempty"`
}

// ManagerOptions 变更管理引擎可选依赖
type ManagerOptions struct {
	// EventReader 为空时尝试使用 events 自身的查询能力
	EventReader  store.EventReader
	Planner      *planner.Planner
	StateMachine statemachine.StateMachine
	TestTimeout  time.Duration
	TestWorkers  int
	Logger       *logrus.Logger
	Now          func() time.Time
}

// changeManager 变更管理引擎实现
type changeManager struct {
	store        store.RecordStore
	events       store.EventLog
	reader       store.EventReader
	assessor     *analyzer.Assessor
	runner       testrunner.Runner
	planner      *planner.Planner
	stateMachine statemachine.StateMachine
	testTimeout  time.Duration
	testWorkers  int
	logger       *logrus.Logger
	now          func() time.Time
	locks        *keyedMutex
	validate     *validator.Validate
}

// NewChangeManager 创建变更管理引擎
// events 可以为 nil,此时不记录审计事件
func NewChangeManager(recordStore store.RecordStore, events store.EventLog, assessor *analyzer.Assessor, runner testrunner.Runner, opts ManagerOptions) ChangeManager {
	// 如果没有提供状态机,创建默认实例
	if opts.StateMachine == nil {
		opts.StateMachine = statemachine.NewStateMachine()
	}
	if opts.Planner == nil {
		opts.Planner = planner.New("", nil)
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TestWorkers <= 0 {
		opts.TestWorkers = 1
	}
	if opts.EventReader == nil {
		if r, ok := events.(store.EventReader); ok {
			opts.EventReader = r
		}
	}
	if assessor == nil {
		assessor = analyzer.NewAssessor(nil, 0, opts.Logger)
	}

	return &changeManager{
		store:        recordStore,
		events:       events,
		reader:       opts.EventReader,
		assessor:     assessor,
		runner:       runner,
		planner:      opts.Planner,
		stateMachine: opts.StateMachine,
		testTimeout:  opts.TestTimeout,
		testWorkers:  opts.TestWorkers,
		logger:       opts.Logger,
		now:          opts.Now,
		locks:        newKeyedMutex(),
		validate:     validator.New(),
	}
}

// eventInfo 操作成功后要写入的审计事件
type eventInfo struct {
	Type        string
	Description string
	Operator    string
}

// Create 创建变更记录,初始状态为 DRAFT
func (m *changeManager) Create(ctx context.Context, req *CreateChangeRequest) (*change.Record, error) {
	const op = "create"

	// 1. 校验请求
	if req == nil {
		return nil, change.NewOpError(op, "", "", fmt.Errorf("%w: request is required", change.ErrInvalidRequest))
	}
	if err := m.validate.Struct(req); err != nil {
		return nil, change.NewOpError(op, "", "", fmt.Errorf("%w: %v", change.ErrInvalidRequest, err))
	}
	if !req.ChangeType.IsValid() {
		return nil, change.NewOpError(op, "", "", fmt.Errorf("%w: unknown change type %q", change.ErrInvalidRequest, req.ChangeType))
	}
	if !req.Priority.IsValid() {
		return nil, change.NewOpError(op, "", "", fmt.Errorf("%w: unknown priority %q", change.ErrInvalidRequest, req.Priority))
	}
	systems := uniqueSystems(req.AffectedSystems)
	if len(systems) == 0 {
		return nil, change.NewOpError(op, "", "", fmt.Errorf("%w: affected systems are required", change.ErrInvalidRequest))
	}

	// 2. 生成 ID
	now := m.now()
	id := GenerateChangeID(req.Title, now)
	unlock := m.locks.Lock(id)
	defer unlock()

	exists, err := m.store.Exists(ctx, id)
	if err != nil {
		return nil, change.NewOpError(op, id, "", persistenceError(err))
	}
	if exists {
		// 同一秒内标题相同,追加随机后缀
		id = id + "-" + uuid.New().String()[:4]
	}

	// 3. 创建记录
	rec := &change.Record{
		ID:                    id,
		Title:                 strings.TrimSpace(req.Title),
		Description:           req.Description,
		ChangeType:            req.ChangeType,
		Priority:              req.Priority,
		Status:                change.StatusDraft,
		Requester:             req.Requester,
		CreatedAt:             now,
		UpdatedAt:             now,
		TargetDeploymentDate:  req.TargetDeploymentDate,
		AffectedSystems:       systems,
		BusinessJustification: req.BusinessJustification,
		TechnicalDetails:      req.TechnicalDetails,
	}
	rec.Normalize()

	// 4. 持久化
	if err := ctx.Err(); err != nil {
		return nil, change.NewOpError(op, id, "", err)
	}
	if err := m.store.Save(ctx, rec); err != nil {
		return nil, change.NewOpError(op, id, "", persistenceError(err))
	}

	m.appendEvent(ctx, rec.ID, now, eventInfo{
		Type:        store.EventCreated,
		Description: fmt.Sprintf("Change request created by %s", rec.Requester),
		Operator:    rec.Requester,
	})

	return rec.Clone(), nil
}

// Get 获取变更记录副本
func (m *changeManager) Get(ctx context.Context, id string) (*change.Record, error) {
	rec, err := m.load(ctx, "get", id)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List 查询变更列表
func (m *changeManager) List(ctx context.Context, filter store.Filter) ([]*change.Summary, error) {
	items, err := m.store.List(ctx, filter)
	if err != nil {
		return nil, change.NewOpError("list", "", "", persistenceError(err))
	}
	return items, nil
}

// GetStatusReport 获取变更状态报告
func (m *changeManager) GetStatusReport(ctx context.Context, id string) (*change.StatusReport, error) {
	rec, err := m.load(ctx, "status_report", id)
	if err != nil {
		return nil, err
	}
	return rec.Report(), nil
}

// Events 查询变更的审计事件,按写入顺序返回
func (m *changeManager) Events(ctx context.Context, id string) ([]change.Event, error) {
	const op = "events"

	exists, err := m.store.Exists(ctx, id)
	if err != nil {
		return nil, change.NewOpError(op, id, "", persistenceError(err))
	}
	if !exists {
		return nil, change.NewOpError(op, id, "", change.ErrNotFound)
	}
	if m.reader == nil {
		return []change.Event{}, nil
	}

	events, err := m.reader.Events(ctx, id)
	if err != nil {
		return nil, change.NewOpError(op, id, "", persistenceError(err))
	}
	return events, nil
}

// History 查询变更的状态历史
func (m *changeManager) History(ctx context.Context, id string) ([]change.StateChange, error) {
	rec, err := m.load(ctx, "history", id)
	if err != nil {
		return nil, err
	}
	return rec.StateHistory, nil
}

// SubmitForReview 提交评审 DRAFT -> PENDING_REVIEW
func (m *changeManager) SubmitForReview(ctx context.Context, id string, submittedBy string, notes string) (*change.Record, error) {
	return m.update(ctx, string(statemachine.OpSubmitForReview), id, func(rec *change.Record, now time.Time) (*eventInfo, error) {
		if err := m.stateMachine.Transition(rec, statemachine.OpSubmitForReview, submittedBy, notes, now); err != nil {
			return nil, err
		}
		if err := rec.SetMetadata(change.MetadataReview, map[string]interface{}{
			"submitted_by": submittedBy,
			"notes":        notes,
			"submitted_at": now,
		}); err != nil {
			return nil, err
		}
		return &eventInfo{
			Type:        store.EventSubmittedForReview,
			Description: fmt.Sprintf("Submitted for review by %s", submittedBy),
			Operator:    submittedBy,
		}, nil
	})
}

// Cancel 取消变更,IN_PROGRESS 和终态不可取消
func (m *changeManager) Cancel(ctx context.Context, id string, cancelledBy string, reason string) (*change.Record, error) {
	return m.update(ctx, string(statemachine.OpCancel), id, func(rec *change.Record, now time.Time) (*eventInfo, error) {
		if err := m.stateMachine.Transition(rec, statemachine.OpCancel, cancelledBy, reason, now); err != nil {
			return nil, err
		}
		if err := rec.SetMetadata(change.MetadataCancellation, map[string]interface{}{
			"cancelled_by": cancelledBy,
			"reason":       reason,
			"cancelled_at": now,
		}); err != nil {
			return nil, err
		}
		return &eventInfo{
			Type:        store.EventCancelled,
			Description: fmt.Sprintf("Change cancelled by %s: %s", cancelledBy, reason),
			Operator:    cancelledBy,
		}, nil
	})
}

// load 加载记录,错误统一包装为 OpError
func (m *changeManager) load(ctx context.Context, op string, id string) (*change.Record, error) {
	rec, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, change.NewOpError(op, id, "", persistenceError(err))
	}
	rec.Normalize()
	return rec, nil
}

// update 在变更锁内执行 读取 -> 复制 -> 修改 -> 持久化 -> 记录事件
func (m *changeManager) update(ctx context.Context, op string, id string, apply func(rec *change.Record, now time.Time) (*eventInfo, error)) (*change.Record, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	// 1. 读取当前记录
	current, err := m.load(ctx, op, id)
	if err != nil {
		return nil, err
	}

	// 2. 在副本上修改
	rec := current.Clone()
	now := m.tick(current)
	evt, err := apply(rec, now)
	if err != nil {
		return nil, change.NewOpError(op, id, current.Status, err)
	}
	rec.UpdatedAt = now

	// 3. 持久化是最后一步
	if err := ctx.Err(); err != nil {
		return nil, change.NewOpError(op, id, current.Status, err)
	}
	if err := m.store.Save(ctx, rec); err != nil {
		return nil, change.NewOpError(op, id, current.Status, persistenceError(err))
	}

	// 4. 记录审计事件,失败不影响操作结果
	if evt != nil {
		m.appendEvent(ctx, id, now, *evt)
	}

	return rec, nil
}

// tick 返回本次修改时间,保证 updated_at 不回退
func (m *changeManager) tick(current *change.Record) time.Time {
	now := m.now()
	if now.Before(current.UpdatedAt) {
		return current.UpdatedAt
	}
	return now
}

// appendEvent 写入审计事件,失败只记录告警
func (m *changeManager) appendEvent(ctx context.Context, changeID string, at time.Time, info eventInfo) {
	if m.events == nil {
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	evt := change.Event{
		ID:          id.String(),
		ChangeID:    changeID,
		Type:        info.Type,
		Description: info.Description,
		Operator:    info.Operator,
		RequestID:   RequestIDFromContext(ctx),
		Timestamp:   at,
	}

	// 操作已提交,事件写入不受调用方取消影响
	if err := m.events.Append(context.WithoutCancel(ctx), evt); err != nil {
		m.logger.WithFields(logrus.Fields{
			"change_id":  changeID,
			"event_type": info.Type,
			"error":      err.Error(),
		}).Warn("Failed to append change event")
	}
}

// GenerateChangeID 生成变更 ID: CHG-<时间戳>-<标题 md5 前 6 位>
func GenerateChangeID(title string, now time.Time) string {
	sum := md5.Sum([]byte(title))
	return fmt.Sprintf("CHG-%s-%s", now.Format("20060102150405"), hex.EncodeToString(sum[:])[:6])
}

// uniqueSystems 去除空值和重复项,保持原顺序
func uniqueSystems(systems []string) []string {
	seen := make(map[string]struct{}, len(systems))
	out := make([]string, 0, len(systems))
	for _, s := range systems {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// persistenceError NotFound 原样返回,其余存储错误包装为 ErrPersistenceFailure
func persistenceError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) || isContextError(err) {
		return err
	}
	return fmt.Errorf("%w: %v", change.ErrPersistenceFailure, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, change.ErrNotFound)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
