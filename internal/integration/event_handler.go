package integration

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/mautops/change-gin/internal/change"
	"github.com/mautops/change-gin/internal/store"
	"github.com/sirupsen/logrus"
)

// ErrEventLogStopped 事件日志已停止
var ErrEventLogStopped = errors.New("event log stopped")

// AsyncEventLogConfig 异步事件日志配置
type AsyncEventLogConfig struct {
	Workers    int
	QueueSize  int
	MaxRetries int
	Backoff    time.Duration
}

// AsyncEventLog 异步事件发布器
// 事件按 ChangeID 分片到 worker,同一变更的事件按追加顺序发布
// 队列满时丢弃并记录告警,不阻塞变更操作
type AsyncEventLog struct {
	next       store.EventLog
	logger     *logrus.Logger
	queues     []chan change.Event
	maxRetries int
	backoff    time.Duration
	stop       chan struct{}
	wg         sync.WaitGroup
	once       sync.Once
}

// NewAsyncEventLog 创建异步事件日志并启动 worker
func NewAsyncEventLog(next store.EventLog, cfg AsyncEventLogConfig, logger *logrus.Logger) *AsyncEventLog {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	l := &AsyncEventLog{
		next:       next,
		logger:     logger,
		queues:     make([]chan change.Event, cfg.Workers),
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		stop:       make(chan struct{}),
	}

	// 每个 worker 独占一个分片队列
	size := (cfg.QueueSize + cfg.Workers - 1) / cfg.Workers
	for i := range l.queues {
		l.queues[i] = make(chan change.Event, size)
		l.wg.Add(1)
		go l.worker(l.queues[i])
	}

	return l
}

// Append 事件入队
func (l *AsyncEventLog) Append(ctx context.Context, evt change.Event) error {
	select {
	case <-l.stop:
		return ErrEventLogStopped
	default:
	}

	select {
	case l.shard(evt.ChangeID) <- evt:
	default:
		// 队列满时记录日志,不阻塞
		l.logger.WithFields(logrus.Fields{
			"change_id":  evt.ChangeID,
			"event_type": evt.Type,
			"event_id":   evt.ID,
		}).Warn("Event queue full, dropping event")
	}
	return nil
}

func (l *AsyncEventLog) shard(changeID string) chan change.Event {
	h := fnv.New32a()
	_, _ = h.Write([]byte(changeID))
	return l.queues[h.Sum32()%uint32(len(l.queues))]
}

// worker 按顺序发布单个分片的事件
func (l *AsyncEventLog) worker(queue chan change.Event) {
	defer l.wg.Done()
	for {
		select {
		case evt := <-queue:
			l.publish(evt)
		case <-l.stop:
			// 发布剩余事件后退出
			for {
				select {
				case evt := <-queue:
					l.publish(evt)
				default:
					return
				}
			}
		}
	}
}

// publish 发布事件,失败按指数退避重试
func (l *AsyncEventLog) publish(evt change.Event) {
	backoff := l.backoff

	var err error
	for i := 0; i < l.maxRetries; i++ {
		if err = l.next.Append(context.Background(), evt); err == nil {
			return
		}

		// 如果还有重试机会,等待后重试
		if i < l.maxRetries-1 {
			select {
			case <-time.After(backoff):
			case <-l.stop:
				// 停止期间不再等待退避
			}
			backoff *= 2 // 指数退避
		}
	}

	l.logger.WithFields(logrus.Fields{
		"change_id":  evt.ChangeID,
		"event_type": evt.Type,
		"event_id":   evt.ID,
		"retries":    l.maxRetries,
		"error":      err.Error(),
	}).Warn("Failed to publish change event")
}

// Stop 停止 worker 并等待队列中的事件发布完成
func (l *AsyncEventLog) Stop() {
	l.once.Do(func() {
		close(l.stop)
	})
	l.wg.Wait()
}
