package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mautops/change-gin/internal/change"
	"github.com/mautops/change-gin/internal/model"
	"github.com/mautops/change-gin/internal/repository"
	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"
)

// 事件类型
const (
	EventCreated             = "created"
	EventSubmittedForReview  = "submitted_for_review"
	EventImpactAssessed      = "impact_assessed"
	EventRollbackPlanCreated = "rollback_plan_created"
	EventTestsPassed         = "tests_passed"
	EventTestsFailed         = "tests_failed"
	EventApprovalRequested   = "approval_requested"
	EventApproved            = "approved"
	EventRejected            = "rejected"
	EventDeploymentStarted   = "deployment_started"
	EventDeployed            = "deployed"
	EventDeploymentFailed    = "deployment_failed"
	EventRolledBack          = "rolled_back"
	EventCancelled           = "cancelled"
)

// dbEventLog 基于数据库的事件日志
type dbEventLog struct {
	db *gorm.DB
}

// NewDBEventLog 创建数据库事件日志
func NewDBEventLog(db *gorm.DB) EventStore {
	return &dbEventLog{db: db}
}

// Append 追加事件
func (l *dbEventLog) Append(ctx context.Context, evt change.Event) error {
	return repository.NewChangeEventRepository(l.db.WithContext(ctx)).Save(&model.ChangeEventModel{
		ID:          evt.ID,
		ChangeID:    evt.ChangeID,
		Type:        evt.Type,
		Description: evt.Description,
		Operator:    evt.Operator,
		RequestID:   evt.RequestID,
		CreatedAt:   evt.Timestamp,
	})
}

// Events 查询变更的全部事件
func (l *dbEventLog) Events(ctx context.Context, changeID string) ([]change.Event, error) {
	models, err := repository.NewChangeEventRepository(l.db.WithContext(ctx)).FindByChangeID(changeID)
	if err != nil {
		return nil, err
	}
	out := make([]change.Event, 0, len(models))
	for _, m := range models {
		out = append(out, change.Event{
			ID:          m.ID,
			ChangeID:    m.ChangeID,
			Type:        m.Type,
			Description: m.Description,
			Operator:    m.Operator,
			RequestID:   m.RequestID,
			Timestamp:   m.CreatedAt,
		})
	}
	return out, nil
}

// MessageWriter Kafka 写入接口,*kafka.Writer 实现了该接口
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter 创建 Kafka 写入器
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
	}
}

// kafkaEventLog 将事件发布到 Kafka,按变更 ID 分区保证单个变更的事件有序
type kafkaEventLog struct {
	writer MessageWriter
}

// NewKafkaEventLog 创建 Kafka 事件日志
func NewKafkaEventLog(writer MessageWriter) EventLog {
	return &kafkaEventLog{writer: writer}
}

// Append 发布事件
func (l *kafkaEventLog) Append(ctx context.Context, evt change.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(evt.ChangeID),
		Value: data,
		Time:  evt.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(evt.ID)},
			{Key: "event_type", Value: []byte(evt.Type)},
			{Key: "request_id", Value: []byte(evt.RequestID)},
		},
	}

	if err := l.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// multiEventLog 依次写入多个事件日志,返回全部错误
type multiEventLog struct {
	logs []EventLog
}

// NewMultiEventLog 组合多个事件日志
func NewMultiEventLog(logs ...EventLog) EventLog {
	return &multiEventLog{logs: logs}
}

// Append 追加事件
func (l *multiEventLog) Append(ctx context.Context, evt change.Event) error {
	var errs []error
	for _, el := range l.logs {
		if err := el.Append(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemoryEventLog 内存事件日志
type MemoryEventLog struct {
	mu     sync.RWMutex
	events []change.Event
}

// NewMemoryEventLog 创建内存事件日志
func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{}
}

// Append 追加事件
func (l *MemoryEventLog) Append(ctx context.Context, evt change.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, evt)
	return nil
}

// Events 查询变更的全部事件
func (l *MemoryEventLog) Events(ctx context.Context, changeID string) ([]change.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]change.Event, 0)
	for _, evt := range l.events {
		if evt.ChangeID == changeID {
			out = append(out, evt)
		}
	}
	return out, nil
}
