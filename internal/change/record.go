package change

import (
	"encoding/json"
	"time"
)

// ImpactAssessment 影响评估结果
type ImpactAssessment struct {
	RiskLevel           RiskLevel          `json:"risk_level"`
	AffectedComponents  []string           `json:"affected_components"`
	AffectedUsers       string             `json:"affected_users"`
	PerformanceImpact   string             `json:"performance_impact"`
	ComplianceImpact    string             `json:"compliance_impact"`
	RollbackComplexity  RollbackComplexity `json:"rollback_complexity"`
	TestingRequirements []string           `json:"testing_requirements"`
	Dependencies        []string           `json:"dependencies"`
	Analysis            string             `json:"analysis"`
	ConfidenceScore     float64            `json:"confidence_score"`
	Source              AssessmentSource   `json:"source"`
	Timestamp           time.Time          `json:"timestamp"`
}

// TestResult 单个测试类型的执行结果
type TestResult struct {
	ID              string    `json:"test_id"`
	Suite           string    `json:"suite"`
	Name            string    `json:"test_name"`
	TestType        string    `json:"test_type"`
	Status          string    `json:"status"` // passed/failed
	Passed          bool      `json:"passed"`
	DurationSeconds float64   `json:"duration_seconds"`
	Details         string    `json:"details"`
	Timestamp       time.Time `json:"timestamp"`
	Artifacts       []string  `json:"artifacts"`
}

// Approval 审批请求及其决定
type Approval struct {
	Approver      string         `json:"approver"`
	RequestedAt   time.Time      `json:"requested_at"`
	Status        ApprovalStatus `json:"status"`
	Notes         string         `json:"notes"`
	DecisionNotes string         `json:"decision_notes,omitempty"`
	DecidedAt     *time.Time     `json:"decided_at,omitempty"`
}

// RollbackPlan 回滚计划
type RollbackPlan struct {
	ChangeID                 string    `json:"change_id"`
	CreatedAt                time.Time `json:"created_at"`
	RollbackSteps            []string  `json:"rollback_steps"`
	VerificationSteps        []string  `json:"verification_steps"`
	BackupLocations          []string  `json:"backup_locations"`
	EstimatedDurationMinutes int       `json:"estimated_duration_minutes"`
	Automated                bool      `json:"automated"`
}

// DeploymentRecord 一次部署尝试
type DeploymentRecord struct {
	ID          string           `json:"id"`
	DeployedBy  string           `json:"deployed_by"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Status      DeploymentStatus `json:"status"`
	Notes       string           `json:"notes,omitempty"`
}

// IsOpen 部署记录尚未关闭
func (d *DeploymentRecord) IsOpen() bool {
	return d.Status == DeploymentInProgress && d.CompletedAt == nil
}

// RollbackStepResult 回滚步骤执行记录
type RollbackStepResult struct {
	Step        string    `json:"step"`
	CompletedAt time.Time `json:"completed_at"`
	Status      string    `json:"status"`
}

// RollbackExecution 回滚执行记录
type RollbackExecution struct {
	RolledBackBy   string               `json:"rolled_back_by"`
	Reason         string               `json:"reason"`
	StartedAt      time.Time            `json:"started_at"`
	CompletedAt    *time.Time           `json:"completed_at,omitempty"`
	StepsCompleted []RollbackStepResult `json:"steps_completed"`
	Status         string               `json:"status"`
}

// StateChange 状态变更记录
type StateChange struct {
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Operation string    `json:"operation"`
	Operator  string    `json:"operator,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Time      time.Time `json:"time"`
}

// 元数据键
const (
	MetadataRollbackExecution = "rollback_execution"
	MetadataCancellation      = "cancellation"
	MetadataReview            = "review"
)

// Record 变更记录(聚合根)
// 集合字段只允许追加,由变更管理器负责维护
type Record struct {
	ID                    string                     `json:"change_id"`
	Title                 string                     `json:"title"`
	Description           string                     `json:"description"`
	ChangeType            Type                       `json:"change_type"`
	Priority              Priority                   `json:"priority"`
	Status                Status                     `json:"status"`
	Requester             string                     `json:"requester"`
	CreatedAt             time.Time                  `json:"created_at"`
	UpdatedAt             time.Time                  `json:"updated_at"`
	TargetDeploymentDate  *time.Time                 `json:"target_deployment_date,omitempty"`
	AffectedSystems       []string                   `json:"affected_systems"`
	BusinessJustification string                     `json:"business_justification"`
	TechnicalDetails      string                     `json:"technical_details"`
	ImpactAssessment      *ImpactAssessment          `json:"impact_assessment,omitempty"`
	TestResults           []TestResult               `json:"test_results"`
	Approvals             []Approval                 `json:"approvals"`
	RollbackPlan          *RollbackPlan              `json:"rollback_plan,omitempty"`
	DeploymentLog         []DeploymentRecord         `json:"deployment_log"`
	StateHistory          []StateChange              `json:"state_history"`
	Metadata              map[string]json.RawMessage `json:"metadata"`
}

// Clone 深拷贝变更记录
// 通过 JSON 往返复制,保证调用方拿到的副本与存储中的记录互不影响
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		// Record 只包含可序列化字段,这里不会失败
		panic(err)
	}
	var cp Record
	if err := json.Unmarshal(data, &cp); err != nil {
		panic(err)
	}
	cp.Normalize()
	return &cp
}

// Normalize 保证集合字段非 nil,序列化后为 [] 而不是 null
func (r *Record) Normalize() {
	if r.AffectedSystems == nil {
		r.AffectedSystems = []string{}
	}
	if r.TestResults == nil {
		r.TestResults = []TestResult{}
	}
	if r.Approvals == nil {
		r.Approvals = []Approval{}
	}
	if r.DeploymentLog == nil {
		r.DeploymentLog = []DeploymentRecord{}
	}
	if r.StateHistory == nil {
		r.StateHistory = []StateChange{}
	}
	if r.Metadata == nil {
		r.Metadata = make(map[string]json.RawMessage)
	}
}

// LatestPendingApproval 返回审批人最近一条待审批记录的下标,不存在返回 -1
func (r *Record) LatestPendingApproval(approver string) int {
	for i := len(r.Approvals) - 1; i >= 0; i-- {
		if r.Approvals[i].Approver == approver && r.Approvals[i].Status == ApprovalPending {
			return i
		}
	}
	return -1
}

// LatestOpenDeployment 返回最近一条未关闭部署记录的下标,不存在返回 -1
func (r *Record) LatestOpenDeployment() int {
	for i := len(r.DeploymentLog) - 1; i >= 0; i-- {
		if r.DeploymentLog[i].IsOpen() {
			return i
		}
	}
	return -1
}

// SetMetadata 写入元数据
func (r *Record) SetMetadata(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if r.Metadata == nil {
		r.Metadata = make(map[string]json.RawMessage)
	}
	r.Metadata[key] = data
	return nil
}

// Summary 变更列表摘要
type Summary struct {
	ID              string    `json:"change_id"`
	Title           string    `json:"title"`
	Status          Status    `json:"status"`
	Priority        Priority  `json:"priority"`
	ChangeType      Type      `json:"change_type"`
	CreatedAt       time.Time `json:"created_at"`
	Requester       string    `json:"requester"`
	AffectedSystems []string  `json:"affected_systems"`
}

// Summarize 生成摘要
func (r *Record) Summarize() *Summary {
	systems := make([]string, len(r.AffectedSystems))
	copy(systems, r.AffectedSystems)
	return &Summary{
		ID:              r.ID,
		Title:           r.Title,
		Status:          r.Status,
		Priority:        r.Priority,
		ChangeType:      r.ChangeType,
		CreatedAt:       r.CreatedAt,
		Requester:       r.Requester,
		AffectedSystems: systems,
	}
}

// StatusReport 变更状态报告
type StatusReport struct {
	ChangeID                 string    `json:"change_id"`
	Title                    string    `json:"title"`
	Status                   Status    `json:"status"`
	Priority                 Priority  `json:"priority"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
	Requester                string    `json:"requester"`
	ImpactAssessmentComplete bool      `json:"impact_assessment_complete"`
	TestsRun                 int       `json:"tests_run"`
	TestsPassed              int       `json:"tests_passed"`
	ApprovalsPending         int       `json:"approvals_pending"`
	ApprovalsGranted         int       `json:"approvals_granted"`
	RollbackPlanReady        bool      `json:"rollback_plan_ready"`
	DeploymentAttempts       int       `json:"deployment_attempts"`
}

// Report 生成状态报告
func (r *Record) Report() *StatusReport {
	report := &StatusReport{
		ChangeID:                 r.ID,
		Title:                    r.Title,
		Status:                   r.Status,
		Priority:                 r.Priority,
		CreatedAt:                r.CreatedAt,
		UpdatedAt:                r.UpdatedAt,
		Requester:                r.Requester,
		ImpactAssessmentComplete: r.ImpactAssessment != nil,
		TestsRun:                 len(r.TestResults),
		RollbackPlanReady:        r.RollbackPlan != nil,
		DeploymentAttempts:       len(r.DeploymentLog),
	}
	for _, t := range r.TestResults {
		if t.Passed {
			report.TestsPassed++
		}
	}
	for _, a := range r.Approvals {
		switch a.Status {
		case ApprovalPending:
			report.ApprovalsPending++
		case ApprovalApproved:
			report.ApprovalsGranted++
		}
	}
	return report
}

// Event 审计事件
type Event struct {
	ID          string    `json:"id"`
	ChangeID    string    `json:"change_id"`
	Type        string    `json:"event_type"`
	Description string    `json:"description"`
	Operator    string    `json:"operator,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
