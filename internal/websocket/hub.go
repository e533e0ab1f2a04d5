package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/change-gin/internal/change"
	"github.com/sirupsen/logrus"
)

// ErrHubStopped Hub 已停止
var ErrHubStopped = errors.New("hub stopped")

// 推送消息类型
const (
	TypeConnected = "connected"
	TypeEvent     = "event"
	TypeHeartbeat = "heartbeat"
)

// Notification 推送给订阅者的消息
type Notification struct {
	Type     string        `json:"type"`
	ChangeID string        `json:"change_id"`
	Status   change.Status `json:"status,omitempty"`
	Event    *change.Event `json:"event,omitempty"`
	Time     int64         `json:"time"`
}

// RecordLoader 读取变更当前状态,store.RecordStore 实现了该接口
type RecordLoader interface {
	Load(ctx context.Context, id string) (*change.Record, error)
}

// Subscriber 单个变更的订阅者,WebSocket 和 SSE 连接各持有一个
type Subscriber struct {
	ID       string
	ChangeID string
	Send     chan []byte
}

type message struct {
	changeID string
	data     []byte
}

// Hub 按变更 ID 管理订阅者,并把变更事件推送给它们
// 同时实现 store.EventLog,可与其他事件日志组合使用
type Hub struct {
	// 变更 ID -> 订阅者
	subscribers map[string]map[*Subscriber]struct{}

	broadcast  chan message
	register   chan *Subscriber
	unregister chan *Subscriber
	stop       chan struct{}
	once       sync.Once

	records RecordLoader
	logger  *logrus.Logger

	// 保护 subscribers
	mu sync.RWMutex
}

// NewHub 创建 Hub,records 为空时推送的消息不带状态
func NewHub(records RecordLoader, logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		subscribers: make(map[string]map[*Subscriber]struct{}),
		broadcast:   make(chan message, 256),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		stop:        make(chan struct{}),
		records:     records,
		logger:      logger,
	}
}

// Run 运行 Hub,直到 Stop 被调用
func (h *Hub) Run() {
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			if h.subscribers[sub.ChangeID] == nil {
				h.subscribers[sub.ChangeID] = make(map[*Subscriber]struct{})
			}
			h.subscribers[sub.ChangeID][sub] = struct{}{}
			h.mu.Unlock()

		case sub := <-h.unregister:
			h.mu.Lock()
			h.remove(sub)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for sub := range h.subscribers[msg.changeID] {
				select {
				case sub.Send <- msg.data:
				default:
					// 消费过慢的订阅者直接断开
					h.remove(sub)
				}
			}
			h.mu.Unlock()

		case <-h.stop:
			h.mu.Lock()
			for _, subs := range h.subscribers {
				for sub := range subs {
					h.remove(sub)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// remove 调用方持有写锁
func (h *Hub) remove(sub *Subscriber) {
	subs, ok := h.subscribers[sub.ChangeID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.Send)
	if len(subs) == 0 {
		delete(h.subscribers, sub.ChangeID)
	}
}

// Stop 停止 Hub 并关闭所有订阅者;Run 未启动时直接返回
func (h *Hub) Stop() {
	h.once.Do(func() {
		close(h.stop)
	})
}

// Subscribe 订阅变更的推送
func (h *Hub) Subscribe(changeID string) (*Subscriber, error) {
	sub := &Subscriber{
		ID:       uuid.NewString(),
		ChangeID: changeID,
		Send:     make(chan []byte, 64),
	}
	select {
	case h.register <- sub:
		return sub, nil
	case <-h.stop:
		return nil, ErrHubStopped
	}
}

// Unsubscribe 取消订阅,Send 会被关闭
func (h *Hub) Unsubscribe(sub *Subscriber) {
	select {
	case h.unregister <- sub:
	case <-h.stop:
	}
}

// SubscriberCount 返回变更的订阅者数量
func (h *Hub) SubscriberCount(changeID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[changeID])
}

// Append 实现 store.EventLog,推送失败不影响变更操作
func (h *Hub) Append(ctx context.Context, evt change.Event) error {
	if h.SubscriberCount(evt.ChangeID) == 0 {
		return nil
	}

	n := Notification{
		Type:     TypeEvent,
		ChangeID: evt.ChangeID,
		Status:   h.status(ctx, evt.ChangeID),
		Event:    &evt,
		Time:     evt.Timestamp.Unix(),
	}
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- message{changeID: evt.ChangeID, data: data}:
	case <-h.stop:
	default:
		h.logger.WithFields(logrus.Fields{
			"change_id":  evt.ChangeID,
			"event_type": evt.Type,
		}).Warn("Live update queue full, dropping notification")
	}
	return nil
}

// Snapshot 返回订阅建立时推送的首条消息,变更不存在时返回 ErrNotFound
func (h *Hub) Snapshot(ctx context.Context, changeID string) (Notification, error) {
	n := Notification{Type: TypeConnected, ChangeID: changeID, Time: time.Now().Unix()}
	if h.records == nil {
		return n, nil
	}
	rec, err := h.records.Load(ctx, changeID)
	if err != nil {
		return n, err
	}
	n.Status = rec.Status
	return n, nil
}

func (h *Hub) status(ctx context.Context, changeID string) change.Status {
	if h.records == nil {
		return ""
	}
	rec, err := h.records.Load(ctx, changeID)
	if err != nil {
		return ""
	}
	return rec.Status
}
