package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mautops/change-gin/internal/change"
	"github.com/mautops/change-gin/internal/integration"
	"github.com/mautops/change-gin/internal/metrics"
	"github.com/sirupsen/logrus"
)

// ChangeService 变更服务接口
// 在变更管理引擎之上记录业务指标
type ChangeService interface {
	Create(ctx context.Context, req *integration.CreateChangeRequest) (*change.Record, error)
	Get(ctx context.Context, id string) (*change.Record, error)
	GetStatusReport(ctx context.Context, id string) (*change.StatusReport, error)
	SubmitForReview(ctx context.Context, id string, req *SubmitRequest) (*change.Record, error)
	AssessImpact(ctx context.Context, id string) (*change.ImpactAssessment, error)
	CreateRollbackPlan(ctx context.Context, id string) (*change.RollbackPlan, error)
	ListBackups(ctx context.Context, id string) ([]BackupInfo, error)
	GetBackup(ctx context.Context, id string, filename string) (*change.Record, error)
	RunTests(ctx context.Context, id string, req *RunTestsRequest) ([]change.TestResult, error)
	RequestApproval(ctx context.Context, id string, req *ApprovalRequest) (*change.Approval, error)
	Approve(ctx context.Context, id string, req *DecisionRequest) (*change.Approval, error)
	Reject(ctx context.Context, id string, req *DecisionRequest) (*change.Approval, error)
	Deploy(ctx context.Context, id string, req *DeployRequest) (*change.DeploymentRecord, error)
	CompleteDeployment(ctx context.Context, id string, req *CompleteDeploymentRequest) (*change.DeploymentRecord, error)
	Rollback(ctx context.Context, id string, req *RollbackRequest) (*change.RollbackExecution, error)
	Cancel(ctx context.Context, id string, req *CancelRequest) (*change.Record, error)
}

// SubmitRequest 提交评审请求
type SubmitRequest struct {
	SubmittedBy string `json:"submitted_by" binding:"required"` // 提交人
	Notes       string `json:"notes"`                           // 备注
}

// RunTestsRequest 执行测试请求
type RunTestsRequest struct {
	Suite string `json:"suite"` // quick/standard/comprehensive/compliance,默认 standard
}

// ApprovalRequest 发起审批请求
type ApprovalRequest struct {
	Approver string `json:"approver" binding:"required"` // 审批人
	Notes    string `json:"notes"`                       // 备注
}

// DecisionRequest 审批决定请求
type DecisionRequest struct {
	Approver string `json:"approver" binding:"required"` // 审批人
	Notes    string `json:"notes"`                       // 审批意见或驳回原因
}

// DeployRequest 部署请求
type DeployRequest struct {
	DeployedBy string `json:"deployed_by" binding:"required"` // 部署人
}

// CompleteDeploymentRequest 完成部署请求
type CompleteDeploymentRequest struct {
	Success *bool  `json:"success" binding:"required"` // 是否成功
	Notes   string `json:"notes"`                      // 备注
}

// RollbackRequest 回滚请求
type RollbackRequest struct {
	RolledBackBy string `json:"rolled_back_by" binding:"required"` // 回滚人
	Reason       string `json:"reason" binding:"required"`         // 回滚原因
}

// CancelRequest 取消请求
type CancelRequest struct {
	CancelledBy string `json:"cancelled_by" binding:"required"` // 取消人
	Reason      string `json:"reason"`                          // 取消原因
}

type changeService struct {
	manager integration.ChangeManager
	backups *BackupService
	logger  *logrus.Logger
}

// NewChangeService 创建变更服务,backups 为 nil 时不写回滚快照
func NewChangeService(manager integration.ChangeManager, backups *BackupService, logger *logrus.Logger) ChangeService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &changeService{
		manager: manager,
		backups: backups,
		logger:  logger,
	}
}

// Create 创建变更
func (s *changeService) Create(ctx context.Context, req *integration.CreateChangeRequest) (*change.Record, error) {
	rec, err := s.manager.Create(ctx, req)
	metrics.RecordOperation("create", err)
	if err != nil {
		return nil, err
	}

	// 记录业务指标
	metrics.RecordChangeCreated()
	return rec, nil
}

// Get 获取变更详情
func (s *changeService) Get(ctx context.Context, id string) (*change.Record, error) {
	return s.manager.Get(ctx, id)
}

// GetStatusReport 获取状态报告
func (s *changeService) GetStatusReport(ctx context.Context, id string) (*change.StatusReport, error) {
	return s.manager.GetStatusReport(ctx, id)
}

// SubmitForReview 提交评审
func (s *changeService) SubmitForReview(ctx context.Context, id string, req *SubmitRequest) (*change.Record, error) {
	rec, err := s.manager.SubmitForReview(ctx, id, req.SubmittedBy, req.Notes)
	metrics.RecordOperation("submit_for_review", err)
	return rec, err
}

// AssessImpact 影响评估
func (s *changeService) AssessImpact(ctx context.Context, id string) (*change.ImpactAssessment, error) {
	assessment, err := s.manager.AssessImpact(ctx, id)
	metrics.RecordOperation("assess_impact", err)
	if err != nil {
		return nil, err
	}
	metrics.RecordImpactAssessment(string(assessment.Source))
	return assessment, nil
}

// CreateRollbackPlan 生成回滚计划
func (s *changeService) CreateRollbackPlan(ctx context.Context, id string) (*change.RollbackPlan, error) {
	plan, err := s.manager.CreateRollbackPlan(ctx, id)
	metrics.RecordOperation("create_rollback_plan", err)
	if err != nil {
		return nil, err
	}

	// 写入回滚快照,失败不影响回滚计划
	if s.backups != nil {
		if err := s.writeSnapshots(ctx, id); err != nil {
			s.logger.WithFields(logrus.Fields{
				"change_id": id,
				"operation": "create_rollback_plan",
				"error":     err.Error(),
			}).Warn("Failed to write rollback snapshot")
		}
	}
	return plan, nil
}

func (s *changeService) writeSnapshots(ctx context.Context, id string) error {
	rec, err := s.manager.Get(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.backups.WriteSnapshots(ctx, rec)
	return err
}

// ListBackups 列出变更的回滚快照
func (s *changeService) ListBackups(ctx context.Context, id string) ([]BackupInfo, error) {
	if _, err := s.manager.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.backups == nil {
		return []BackupInfo{}, nil
	}
	return s.backups.ListBackups(ctx, id)
}

// GetBackup 读取变更的单个回滚快照,文件名必须属于该变更
func (s *changeService) GetBackup(ctx context.Context, id string, filename string) (*change.Record, error) {
	if _, err := s.manager.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.backups == nil || !isBackupFile(filename) || !strings.HasPrefix(filename, backupPrefix(id)) {
		return nil, fmt.Errorf("%w: backup %s", change.ErrNotFound, filename)
	}
	return s.backups.LoadSnapshot(ctx, filename)
}

// RunTests 执行测试套件
func (s *changeService) RunTests(ctx context.Context, id string, req *RunTestsRequest) ([]change.TestResult, error) {
	results, err := s.manager.RunTests(ctx, id, req.Suite)
	metrics.RecordOperation("run_tests", err)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		metrics.RecordTestResult(r.Suite, r.Passed)
	}
	return results, nil
}

// RequestApproval 发起审批
func (s *changeService) RequestApproval(ctx context.Context, id string, req *ApprovalRequest) (*change.Approval, error) {
	approval, err := s.manager.RequestApproval(ctx, id, req.Approver, req.Notes)
	metrics.RecordOperation("request_approval", err)
	if err == nil {
		metrics.RecordApproval("request")
	}
	return approval, err
}

// Approve 审批通过
func (s *changeService) Approve(ctx context.Context, id string, req *DecisionRequest) (*change.Approval, error) {
	approval, err := s.manager.Approve(ctx, id, req.Approver, req.Notes)
	metrics.RecordOperation("approve", err)
	if err == nil {
		metrics.RecordApproval("approve")
	}
	return approval, err
}

// Reject 审批驳回
func (s *changeService) Reject(ctx context.Context, id string, req *DecisionRequest) (*change.Approval, error) {
	approval, err := s.manager.Reject(ctx, id, req.Approver, req.Notes)
	metrics.RecordOperation("reject", err)
	if err == nil {
		metrics.RecordApproval("reject")
	}
	return approval, err
}

// Deploy 开始部署
func (s *changeService) Deploy(ctx context.Context, id string, req *DeployRequest) (*change.DeploymentRecord, error) {
	deployment, err := s.manager.Deploy(ctx, id, req.DeployedBy)
	metrics.RecordOperation("deploy", err)
	if err == nil {
		metrics.RecordDeployment("started")
	}
	return deployment, err
}

// CompleteDeployment 完成部署
func (s *changeService) CompleteDeployment(ctx context.Context, id string, req *CompleteDeploymentRequest) (*change.DeploymentRecord, error) {
	success := req.Success != nil && *req.Success
	deployment, err := s.manager.CompleteDeployment(ctx, id, success, req.Notes)
	metrics.RecordOperation("complete_deployment", err)
	if err == nil {
		metrics.RecordDeployment(string(deployment.Status))
	}
	return deployment, err
}

// Rollback 执行回滚
func (s *changeService) Rollback(ctx context.Context, id string, req *RollbackRequest) (*change.RollbackExecution, error) {
	execution, err := s.manager.Rollback(ctx, id, req.RolledBackBy, req.Reason)
	metrics.RecordOperation("rollback", err)
	if err == nil {
		metrics.RecordDeployment("rolled_back")
	}
	return execution, err
}

// Cancel 取消变更
func (s *changeService) Cancel(ctx context.Context, id string, req *CancelRequest) (*change.Record, error) {
	rec, err := s.manager.Cancel(ctx, id, req.CancelledBy, req.Reason)
	metrics.RecordOperation("cancel", err)
	return rec, err
}
