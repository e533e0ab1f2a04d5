package change

import (
	"errors"
	"fmt"
)

// 错误定义
var (
	ErrNotFound                   = errors.New("change not found")
	ErrInvalidStateTransition     = errors.New("invalid state transition")
	ErrNoPendingApproval          = errors.New("no pending approval for approver")
	ErrApprovalAlreadyPending     = errors.New("approver already has a pending approval")
	ErrNotApproved                = errors.New("change is not approved for deployment")
	ErrNoRollbackPlan             = errors.New("no rollback plan exists")
	ErrNoOpenDeployment           = errors.New("no open deployment record")
	ErrExternalServiceUnavailable = errors.New("external service unavailable")
	ErrPersistenceFailure         = errors.New("persistence failure")
	ErrInvalidRequest             = errors.New("invalid request")
)

// OpError 变更操作错误
// 携带变更 ID、操作名和当前状态,errors.Is 仍可匹配底层错误
type OpError struct {
	Op       string
	ChangeID string
	Status   Status
	Err      error
}

func (e *OpError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.ChangeID, e.Err)
	}
	return fmt.Sprintf("%s %s (status %q): %v", e.Op, e.ChangeID, e.Status, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// NewOpError 创建操作错误,已经是 OpError 的直接返回
func NewOpError(op string, changeID string, status Status, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}
	return &OpError{Op: op, ChangeID: changeID, Status: status, Err: err}
}
