package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/change-gin/internal/analyzer"
	"github.com/mautops/change-gin/internal/change"
	"github.com/mautops/change-gin/internal/statemachine"
	"github.com/mautops/change-gin/internal/store"
)

// AssessImpact 执行影响评估,分析器不可用时回退到人工评估
func (m *changeManager) AssessImpact(ctx context.Context, id string) (*change.ImpactAssessment, error) {
	rec, err := m.update(ctx, string(statemachine.OpAssessImpact), id, func(rec *change.Record, now time.Time) (*eventInfo, error) {
		// 1. 先校验状态,避免对非法状态调用外部分析器
		if _, err := m.stateMachine.Target(statemachine.OpAssessImpact, rec.Status); err != nil {
			return nil, err
		}

		// 2. 调用分析器
		assessment := m.assessor.Assess(ctx, analyzer.NewChangeSummary(rec), now)

		// 3. 更新记录
		if err := m.stateMachine.Transition(rec, statemachine.OpAssessImpact, "", string(assessment.Source), now); err != nil {
			return nil, err
		}
		rec.ImpactAssessment = assessment

		label := "AI"
		if assessment.Source == change.SourceManual {
			label = "Manual"
		}
		return &eventInfo{
			Type:        store.EventImpactAssessed,
			Description: fmt.Sprintf("%s impact assessment completed (confidence: %.2f)", label, assessment.ConfidenceScore),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return rec.ImpactAssessment, nil
}
