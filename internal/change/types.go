package change

// Status 变更状态
type Status string

const (
	StatusDraft            Status = "draft"
	StatusPendingReview    Status = "pending_review"
	StatusImpactAssessment Status = "impact_assessment"
	StatusTesting          Status = "testing"
	StatusPendingApproval  Status = "pending_approval"
	StatusApproved         Status = "approved"
	StatusScheduled        Status = "scheduled"
	StatusInProgress       Status = "in_progress"
	StatusDeployed         Status = "deployed"
	StatusRolledBack       Status = "rolled_back"
	StatusRejected         Status = "rejected"
	StatusCancelled        Status = "cancelled"
)

// AllStatuses 返回全部十二个状态(按生命周期顺序)
func AllStatuses() []Status {
	return []Status{
		StatusDraft, StatusPendingReview, StatusImpactAssessment, StatusTesting,
		StatusPendingApproval, StatusApproved, StatusScheduled, StatusInProgress,
		StatusDeployed, StatusRolledBack, StatusRejected, StatusCancelled,
	}
}

// IsValid 判断状态是否合法
func (s Status) IsValid() bool {
	for _, st := range AllStatuses() {
		if st == s {
			return true
		}
	}
	return false
}

// IsTerminal 判断是否为终态
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDeployed, StatusRolledBack, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Type 变更类型
type Type string

const (
	TypeModelUpdate     Type = "model_update"
	TypeAlgorithmChange Type = "algorithm_change"
	TypeDataPipeline    Type = "data_pipeline"
	TypeConfiguration   Type = "configuration"
	TypeInfrastructure  Type = "infrastructure"
	TypeSecurityPatch   Type = "security_patch"
	TypeFeatureAddition Type = "feature_addition"
	TypeBugFix          Type = "bug_fix"
)

// AllTypes 返回全部变更类型
func AllTypes() []Type {
	return []Type{
		TypeModelUpdate, TypeAlgorithmChange, TypeDataPipeline, TypeConfiguration,
		TypeInfrastructure, TypeSecurityPatch, TypeFeatureAddition, TypeBugFix,
	}
}

// IsValid 判断变更类型是否合法
func (t Type) IsValid() bool {
	for _, ct := range AllTypes() {
		if ct == t {
			return true
		}
	}
	return false
}

// Priority 变更优先级
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// IsValid 判断优先级是否合法
func (p Priority) IsValid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// RiskLevel 风险等级
type RiskLevel string

const (
	RiskCritical RiskLevel = "critical"
	RiskHigh     RiskLevel = "high"
	RiskMedium   RiskLevel = "medium"
	RiskLow      RiskLevel = "low"
	RiskMinimal  RiskLevel = "minimal"
)

// IsValid 判断风险等级是否合法
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskCritical, RiskHigh, RiskMedium, RiskLow, RiskMinimal:
		return true
	}
	return false
}

// RollbackComplexity 回滚复杂度
type RollbackComplexity string

const (
	ComplexityEasy        RollbackComplexity = "easy"
	ComplexityModerate    RollbackComplexity = "moderate"
	ComplexityComplex     RollbackComplexity = "complex"
	ComplexityVeryComplex RollbackComplexity = "very complex"
)

// IsValid 判断回滚复杂度是否合法
func (c RollbackComplexity) IsValid() bool {
	switch c {
	case ComplexityEasy, ComplexityModerate, ComplexityComplex, ComplexityVeryComplex:
		return true
	}
	return false
}

// ApprovalStatus 审批状态
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// DeploymentStatus 部署记录状态
type DeploymentStatus string

const (
	DeploymentInProgress DeploymentStatus = "in_progress"
	DeploymentCompleted  DeploymentStatus = "completed"
	DeploymentFailed     DeploymentStatus = "failed"
	DeploymentRolledBack DeploymentStatus = "rolled_back"
)

// AssessmentSource 影响评估来源
type AssessmentSource string

const (
	SourceAI     AssessmentSource = "ai"
	SourceManual AssessmentSource = "manual"
)
