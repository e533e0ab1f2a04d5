package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/change-gin/internal/change"
	"github.com/mautops/change-gin/internal/statemachine"
	"github.com/mautops/change-gin/internal/store"
)

// RequestApproval 向审批人发起审批请求
func (m *changeManager) RequestApproval(ctx context.Context, id string, approver string, notes string) (*change.Approval, error) {
	var approval *change.Approval

	_, err := m.update(ctx, string(statemachine.OpRequestApproval), id, func(rec *change.Record, now time.Time) (*eventInfo, error) {
		if approver == "" {
			return nil, fmt.Errorf("%w: approver is required", change.ErrInvalidRequest)
		}
		if err := m.stateMachine.Transition(rec, statemachine.OpRequestApproval, approver, notes, now); err != nil {
			return nil, err
		}
		if rec.LatestPendingApproval(approver) >= 0 {
			return nil, change.ErrApprovalAlreadyPending
		}

		rec.Approvals = append(rec.Approvals, change.Approval{
			Approver:    approver,
			RequestedAt: now,
			Status:      change.ApprovalPending,
			Notes:       notes,
		})
		a := rec.Approvals[len(rec.Approvals)-1]
		approval = &a

		return &eventInfo{
			Type:        store.EventApprovalRequested,
			Description: fmt.Sprintf("Approval requested from %s", approver),
			Operator:    approver,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return approval, nil
}

// Approve 通过审批人最近一条待审批请求
func (m *changeManager) Approve(ctx context.Context, id string, approver string, notes string) (*change.Approval, error) {
	return m.decide(ctx, statemachine.OpApprove, id, approver, notes)
}

// Reject 驳回审批人最近一条待审批请求
func (m *changeManager) Reject(ctx context.Context, id string, approver string, reason string) (*change.Approval, error) {
	return m.decide(ctx, statemachine.OpReject, id, approver, reason)
}

// decide 处理审批决定,只影响该审批人自己的请求
func (m *changeManager) decide(ctx context.Context, op statemachine.Operation, id string, approver string, notes string) (*change.Approval, error) {
	var approval *change.Approval

	_, err := m.update(ctx, string(op), id, func(rec *change.Record, now time.Time) (*eventInfo, error) {
		if err := m.stateMachine.Transition(rec, op, approver, notes, now); err != nil {
			return nil, err
		}

		i := rec.LatestPendingApproval(approver)
		if i < 0 {
			return nil, change.ErrNoPendingApproval
		}

		decidedAt := now
		rec.Approvals[i].DecisionNotes = notes
		rec.Approvals[i].DecidedAt = &decidedAt

		evt := &eventInfo{Operator: approver}
		if op == statemachine.OpApprove {
			rec.Approvals[i].Status = change.ApprovalApproved
			evt.Type = store.EventApproved
			evt.Description = fmt.Sprintf("Approved by %s", approver)
		} else {
			rec.Approvals[i].Status = change.ApprovalRejected
			evt.Type = store.EventRejected
			evt.Description = fmt.Sprintf("Rejected by %s: %s", approver, notes)
		}

		a := rec.Approvals[i]
		approval = &a
		return evt, nil
	})
	if err != nil {
		return nil, err
	}
	return approval, nil
}
