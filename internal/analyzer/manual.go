package analyzer

import (
	"time"

	"github.com/mautops/change-gin/internal/change"
)

// ManualConfidenceScore 人工评估的置信度
const ManualConfidenceScore = 0.5

// ManualAnalysisNote 人工评估说明
const ManualAnalysisNote = "Manual assessment - AI analysis unavailable; manual review required"

var manualRisk = map[change.Type]change.RiskLevel{
	change.TypeSecurityPatch:   change.RiskCritical,
	change.TypeModelUpdate:     change.RiskHigh,
	change.TypeAlgorithmChange: change.RiskHigh,
	change.TypeConfiguration:   change.RiskMedium,
	change.TypeBugFix:          change.RiskLow,
}

// ManualRiskLevel 按变更类型返回保守风险等级
func ManualRiskLevel(t change.Type) change.RiskLevel {
	if risk, ok := manualRisk[t]; ok {
		return risk
	}
	return change.RiskMedium
}

// ManualAssessment 分析器不可用时的确定性评估
func ManualAssessment(summary ChangeSummary, now time.Time) *change.ImpactAssessment {
	return &change.ImpactAssessment{
		RiskLevel:           ManualRiskLevel(summary.ChangeType),
		AffectedComponents:  orEmpty(summary.AffectedSystems),
		AffectedUsers:       "Requires manual assessment",
		PerformanceImpact:   "Requires manual assessment",
		ComplianceImpact:    "Requires manual compliance review",
		RollbackComplexity:  change.ComplexityModerate,
		TestingRequirements: []string{"unit", "integration", "regression"},
		Dependencies:        []string{},
		Analysis:            ManualAnalysisNote,
		ConfidenceScore:     ManualConfidenceScore,
		Source:              change.SourceManual,
		Timestamp:           now,
	}
}
