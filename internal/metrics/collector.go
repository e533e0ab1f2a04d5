package metrics

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"
)

// StatusCounter 按状态统计变更数量
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// Collector 指标收集器
type Collector struct {
	db       *gorm.DB
	counter  StatusCounter
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	start    sync.Once
	started  bool
}

// NewCollector 创建指标收集器,db 和 counter 均可为 nil
func NewCollector(db *gorm.DB, counter StatusCounter, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Collector{
		db:       db,
		counter:  counter,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start 启动指标收集器
func (c *Collector) Start() {
	c.start.Do(func() {
		c.started = true
		go c.collect()
	})
}

// Stop 停止指标收集器,未启动时直接返回
func (c *Collector) Stop() {
	c.cancel()
	// 未启动时占用 Once,防止停止后再启动
	c.start.Do(func() {})
	if c.started {
		<-c.done
	}
}

// CollectOnce 立即收集一次
func (c *Collector) CollectOnce() {
	// 更新数据库连接数指标
	if c.db != nil {
		_ = UpdateDatabaseConnections(c.db)
	}

	// 更新变更状态分布
	if c.counter != nil {
		counts, err := c.counter.CountByStatus(c.ctx)
		if err != nil {
			return
		}
		for status, n := range counts {
			UpdateChangesByStatus(status, float64(n))
		}
	}
}

// collect 定期收集指标
func (c *Collector) collect() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.done)

	c.CollectOnce()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.CollectOnce()
		}
	}
}
