package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/change-gin/internal/change"
	"github.com/mautops/change-gin/internal/statemachine"
	"github.com/mautops/change-gin/internal/store"
)

// CreateRollbackPlan 生成回滚计划,不改变状态
// 允许在任意非终态和 DEPLOYED 状态下执行,重复执行会替换旧计划
func (m *changeManager) CreateRollbackPlan(ctx context.Context, id string) (*change.RollbackPlan, error) {
	rec, err := m.update(ctx, "create_rollback_plan", id, func(rec *change.Record, now time.Time) (*eventInfo, error) {
		if rec.Status.IsTerminal() && rec.Status != change.StatusDeployed {
			return nil, fmt.Errorf("%w: cannot create rollback plan from state %q", change.ErrInvalidStateTransition, rec.Status)
		}

		rec.RollbackPlan = m.planner.Plan(rec, now)
		return &eventInfo{
			Type:        store.EventRollbackPlanCreated,
			Description: "Automated rollback plan generated",
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return rec.RollbackPlan, nil
}

// Rollback 按回滚计划执行回滚
func (m *changeManager) Rollback(ctx context.Context, id string, rolledBackBy string, reason string) (*change.RollbackExecution, error) {
	var execution *change.RollbackExecution

	_, err := m.update(ctx, string(statemachine.OpRollback), id, func(rec *change.Record, now time.Time) (*eventInfo, error) {
		// 1. 没有回滚计划优先报错
		if rec.RollbackPlan == nil {
			return nil, change.ErrNoRollbackPlan
		}

		// 2. 状态转换
		from := rec.Status
		if err := m.stateMachine.Transition(rec, statemachine.OpRollback, rolledBackBy, reason, now); err != nil {
			return nil, err
		}

		// 3. 部署中回滚时关闭当前部署记录
		if from == change.StatusInProgress {
			if i := rec.LatestOpenDeployment(); i >= 0 {
				completedAt := now
				rec.DeploymentLog[i].Status = change.DeploymentRolledBack
				rec.DeploymentLog[i].CompletedAt = &completedAt
				rec.DeploymentLog[i].Notes = reason
			}
		}

		// 4. 依次执行回滚步骤
		steps := make([]change.RollbackStepResult, 0, len(rec.RollbackPlan.RollbackSteps))
		for _, step := range rec.RollbackPlan.RollbackSteps {
			steps = append(steps, change.RollbackStepResult{
				Step:        step,
				CompletedAt: now,
				Status:      "completed",
			})
		}
		completedAt := now
		execution = &change.RollbackExecution{
			RolledBackBy:   rolledBackBy,
			Reason:         reason,
			StartedAt:      now,
			CompletedAt:    &completedAt,
			StepsCompleted: steps,
			Status:         "completed",
		}
		if err := rec.SetMetadata(change.MetadataRollbackExecution, execution); err != nil {
			return nil, err
		}

		return &eventInfo{
			Type:        store.EventRolledBack,
			Description: fmt.Sprintf("Change rolled back by %s: %s", rolledBackBy, reason),
			Operator:    rolledBackBy,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return execution, nil
}
