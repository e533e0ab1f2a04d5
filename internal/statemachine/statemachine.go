package statemachine

import (
	"fmt"
	"time"

	"github.com/mautops/change-gin/internal/change"
)

// Operation 触发状态转换的操作
type Operation string

const (
	OpSubmitForReview Operation = "submit_for_review"
	OpAssessImpact    Operation = "assess_impact"
	OpRunTests        Operation = "run_tests"
	OpRequestApproval Operation = "request_approval"
	OpApprove         Operation = "approve"
	OpReject          Operation = "reject"
	OpDeploy          Operation = "deploy"
	OpCompleteDeploy  Operation = "complete_deployment"
	OpFailDeploy      Operation = "fail_deployment"
	OpRollback        Operation = "rollback"
	OpCancel          Operation = "cancel"
)

// Operations 返回全部操作
func Operations() []Operation {
	return []Operation{
		OpSubmitForReview, OpAssessImpact, OpRunTests, OpRequestApproval, OpApprove, OpReject,
		OpDeploy, OpCompleteDeploy, OpFailDeploy, OpRollback, OpCancel,
	}
}

// rule 单个操作的转换规则
type rule struct {
	from []change.Status
	to   change.Status
}

// StateMachine 变更状态机接口
type StateMachine interface {
	// CanApply 判断操作能否在当前状态执行
	CanApply(op Operation, from change.Status) bool
	// Target 返回操作的目标状态,当前状态不允许时返回 ErrInvalidStateTransition
	Target(op Operation, from change.Status) (change.Status, error)
	// CanTransition 判断 from -> to 是否为任一操作允许的转换
	CanTransition(from change.Status, to change.Status) bool
	// Transition 执行操作对应的状态转换并记录状态历史
	Transition(rec *change.Record, op Operation, operator string, reason string, at time.Time) error
}

type stateMachine struct {
	rules map[Operation]rule
}

// NewStateMachine 创建默认状态机
func NewStateMachine() StateMachine {
	active := []change.Status{
		change.StatusDraft,
		change.StatusPendingReview,
		change.StatusImpactAssessment,
		change.StatusTesting,
		change.StatusPendingApproval,
		change.StatusApproved,
		change.StatusScheduled,
	}

	return &stateMachine{
		rules: map[Operation]rule{
			OpSubmitForReview: {
				from: []change.Status{change.StatusDraft},
				to:   change.StatusPendingReview,
			},
			OpAssessImpact: {
				from: []change.Status{change.StatusDraft, change.StatusPendingReview, change.StatusImpactAssessment},
				to:   change.StatusImpactAssessment,
			},
			OpRunTests: {
				from: []change.Status{change.StatusImpactAssessment, change.StatusTesting, change.StatusPendingApproval},
				to:   change.StatusPendingApproval,
			},
			OpRequestApproval: {
				from: []change.Status{change.StatusImpactAssessment, change.StatusTesting, change.StatusPendingApproval, change.StatusApproved},
				to:   change.StatusPendingApproval,
			},
			OpApprove: {
				from: []change.Status{change.StatusPendingApproval, change.StatusApproved},
				to:   change.StatusApproved,
			},
			OpReject: {
				from: []change.Status{change.StatusPendingApproval, change.StatusApproved},
				to:   change.StatusRejected,
			},
			OpDeploy: {
				from: []change.Status{change.StatusApproved},
				to:   change.StatusInProgress,
			},
			OpCompleteDeploy: {
				from: []change.Status{change.StatusInProgress},
				to:   change.StatusDeployed,
			},
			OpFailDeploy: {
				from: []change.Status{change.StatusInProgress},
				to:   change.StatusApproved,
			},
			OpRollback: {
				from: []change.Status{change.StatusDeployed, change.StatusInProgress},
				to:   change.StatusRolledBack,
			},
			OpCancel: {
				from: active,
				to:   change.StatusCancelled,
			},
		},
	}
}

// CanApply 判断操作能否在当前状态执行
func (sm *stateMachine) CanApply(op Operation, from change.Status) bool {
	r, ok := sm.rules[op]
	if !ok {
		return false
	}
	for _, s := range r.from {
		if s == from {
			return true
		}
	}
	return false
}

// Target 返回操作的目标状态
func (sm *stateMachine) Target(op Operation, from change.Status) (change.Status, error) {
	if !sm.CanApply(op, from) {
		return "", fmt.Errorf("%w: cannot %s from state %q", change.ErrInvalidStateTransition, op, from)
	}
	return sm.rules[op].to, nil
}

// CanTransition 判断 from -> to 是否合法
func (sm *stateMachine) CanTransition(from change.Status, to change.Status) bool {
	for op, r := range sm.rules {
		if r.to == to && sm.CanApply(op, from) {
			return true
		}
	}
	return false
}

// Transition 执行状态转换
func (sm *stateMachine) Transition(rec *change.Record, op Operation, operator string, reason string, at time.Time) error {
	from := rec.Status
	to, err := sm.Target(op, from)
	if err != nil {
		return err
	}

	rec.Status = to
	rec.StateHistory = append(rec.StateHistory, change.StateChange{
		From:      from,
		To:        to,
		Operation: string(op),
		Operator:  operator,
		Reason:    reason,
		Time:      at,
	})
	return nil
}
