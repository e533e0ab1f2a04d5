package analyzer

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// breakerAnalyzer 为分析器加上熔断保护
// 连续失败达到阈值后直接返回 gobreaker.ErrOpenState,不再请求远端
type breakerAnalyzer struct {
	next Analyzer
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerAnalyzer 创建带熔断的分析器
func NewBreakerAnalyzer(next Analyzer, cfg BreakerConfig, logger *logrus.Logger) Analyzer {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "impact-analyzer",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger == nil {
				return
			}
			logger.WithFields(logrus.Fields{
				"name": name,
				"from": from.String(),
				"to":   to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &breakerAnalyzer{next: next, cb: cb}
}

// Analyze 实现 Analyzer 接口
func (b *breakerAnalyzer) Analyze(ctx context.Context, summary ChangeSummary) (*StructuredAssessment, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Analyze(ctx, summary)
	})
	if err != nil {
		return nil, err
	}
	return result.(*StructuredAssessment), nil
}
