package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/change-gin/internal/change"
	"github.com/mautops/change-gin/internal/statemachine"
	"github.com/mautops/change-gin/internal/store"
)

// Deploy 开始部署,只有 APPROVED 状态可以部署
func (m *changeManager) Deploy(ctx context.Context, id string, deployedBy string) (*change.DeploymentRecord, error) {
	var deployment *change.DeploymentRecord

	_, err := m.update(ctx, string(statemachine.OpDeploy), id, func(rec *change.Record, now time.Time) (*eventInfo, error) {
		if rec.Status != change.StatusApproved {
			return nil, fmt.Errorf("%w: current status %q", change.ErrNotApproved, rec.Status)
		}
		if err := m.stateMachine.Transition(rec, statemachine.OpDeploy, deployedBy, "", now); err != nil {
			return nil, err
		}

		rec.DeploymentLog = append(rec.DeploymentLog, change.DeploymentRecord{
			ID:         uuid.New().String(),
			DeployedBy: deployedBy,
			StartedAt:  now,
			Status:     change.DeploymentInProgress,
		})
		d := rec.DeploymentLog[len(rec.DeploymentLog)-1]
		deployment = &d

		return &eventInfo{
			Type:        store.EventDeploymentStarted,
			Description: fmt.Sprintf("Deployment started by %s", deployedBy),
			Operator:    deployedBy,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return deployment, nil
}

// CompleteDeployment 结束最近一次部署,成功进入 DEPLOYED,失败回到 APPROVED
func (m *changeManager) CompleteDeployment(ctx context.Context, id string, success bool, notes string) (*change.DeploymentRecord, error) {
	op := statemachine.OpCompleteDeploy
	if !success {
		op = statemachine.OpFailDeploy
	}

	var deployment *change.DeploymentRecord

	_, err := m.update(ctx, string(op), id, func(rec *change.Record, now time.Time) (*eventInfo, error) {
		if err := m.stateMachine.Transition(rec, op, "", notes, now); err != nil {
			return nil, err
		}

		i := rec.LatestOpenDeployment()
		if i < 0 {
			return nil, change.ErrNoOpenDeployment
		}

		completedAt := now
		rec.DeploymentLog[i].CompletedAt = &completedAt
		rec.DeploymentLog[i].Notes = notes

		evt := &eventInfo{Operator: rec.DeploymentLog[i].DeployedBy}
		if success {
			rec.DeploymentLog[i].Status = change.DeploymentCompleted
			evt.Type = store.EventDeployed
			evt.Description = "Change successfully deployed"
		} else {
			rec.DeploymentLog[i].Status = change.DeploymentFailed
			evt.Type = store.EventDeploymentFailed
			evt.Description = fmt.Sprintf("Deployment failed: %s", notes)
		}

		d := rec.DeploymentLog[i]
		deployment = &d
		return evt, nil
	})
	if err != nil {
		return nil, err
	}
	return deployment, nil
}
