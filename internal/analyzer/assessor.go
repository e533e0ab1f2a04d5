package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mautops/change-gin/internal/change"
	"github.com/sirupsen/logrus"
)

// ErrAnalyzerDisabled 未配置分析器
var ErrAnalyzerDisabled = errors.New("impact analyzer disabled")

// Assessor 影响评估引擎
// 优先使用分析器,任何失败都回退到按变更类型的人工评估,Assess 不会返回错误
type Assessor struct {
	primary Analyzer
	timeout time.Duration
	logger  *logrus.Logger
}

// NewAssessor 创建评估引擎,primary 为 nil 时始终使用人工评估
func NewAssessor(primary Analyzer, timeout time.Duration, logger *logrus.Logger) *Assessor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Assessor{
		primary: primary,
		timeout: timeout,
		logger:  logger,
	}
}

// Assess 评估变更影响
func (a *Assessor) Assess(ctx context.Context, summary ChangeSummary, now time.Time) *change.ImpactAssessment {
	assessment, err := a.analyze(ctx, summary)
	if err != nil {
		if !errors.Is(err, ErrAnalyzerDisabled) {
			a.logger.WithFields(logrus.Fields{
				"change_id": summary.ChangeID,
				"operation": "assess_impact",
				"error":     err.Error(),
			}).Warn("Impact analyzer unavailable, using manual assessment")
		}
		return ManualAssessment(summary, now)
	}
	assessment.Timestamp = now
	return assessment
}

func (a *Assessor) analyze(ctx context.Context, summary ChangeSummary) (*change.ImpactAssessment, error) {
	if a.primary == nil {
		return nil, ErrAnalyzerDisabled
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	structured, err := a.primary.Analyze(ctx, summary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", change.ErrExternalServiceUnavailable, err)
	}

	assessment, err := ToImpactAssessment(structured)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", change.ErrExternalServiceUnavailable, err)
	}
	return assessment, nil
}
