package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/mautops/change-gin/internal/change"
)

// ChangeSummary 提交给影响分析器的变更摘要
type ChangeSummary struct {
	ChangeID              string          `json:"change_id"`
	Title                 string          `json:"title"`
	Description           string          `json:"description"`
	ChangeType            change.Type     `json:"change_type"`
	Priority              change.Priority `json:"priority"`
	AffectedSystems       []string        `json:"affected_systems"`
	TechnicalDetails      string          `json:"technical_details"`
	BusinessJustification string          `json:"business_justification"`
}

// NewChangeSummary 从变更记录构建摘要
func NewChangeSummary(rec *change.Record) ChangeSummary {
	systems := make([]string, len(rec.AffectedSystems))
	copy(systems, rec.AffectedSystems)
	return ChangeSummary{
		ChangeID:              rec.ID,
		Title:                 rec.Title,
		Description:           rec.Description,
		ChangeType:            rec.ChangeType,
		Priority:              rec.Priority,
		AffectedSystems:       systems,
		TechnicalDetails:      rec.TechnicalDetails,
		BusinessJustification: rec.BusinessJustification,
	}
}

// Prompt 生成分析请求文本
func (s ChangeSummary) Prompt() string {
	var b strings.Builder
	b.WriteString("Analyze this change request to a production AI system and provide an impact assessment.\n\n")
	b.WriteString("CHANGE REQUEST:\n")
	fmt.Fprintf(&b, "Title: %s\n", s.Title)
	fmt.Fprintf(&b, "Type: %s\n", s.ChangeType)
	fmt.Fprintf(&b, "Priority: %s\n", s.Priority)
	fmt.Fprintf(&b, "Description: %s\n", s.Description)
	fmt.Fprintf(&b, "Affected Systems: %s\n", strings.Join(s.AffectedSystems, ", "))
	fmt.Fprintf(&b, "Technical Details: %s\n", s.TechnicalDetails)
	fmt.Fprintf(&b, "Business Justification: %s\n\n", s.BusinessJustification)
	b.WriteString("Respond with a single JSON object using exactly these keys:\n")
	b.WriteString("- risk_level (critical/high/medium/low/minimal)\n")
	b.WriteString("- affected_components (array)\n")
	b.WriteString("- affected_users\n")
	b.WriteString("- performance_impact\n")
	b.WriteString("- compliance_impact\n")
	b.WriteString("- rollback_complexity (easy/moderate/complex/very complex)\n")
	b.WriteString("- testing_requirements (array)\n")
	b.WriteString("- dependencies (array)\n")
	b.WriteString("- analysis (detailed text)\n")
	b.WriteString("- confidence_score (0.0-1.0)\n")
	return b.String()
}

// StructuredAssessment 分析器返回的结构化评估
// 指针字段为 nil 表示分析器未给出该项
type StructuredAssessment struct {
	RiskLevel           string   `json:"risk_level"`
	AffectedComponents  []string `json:"affected_components"`
	AffectedUsers       *string  `json:"affected_users"`
	PerformanceImpact   *string  `json:"performance_impact"`
	ComplianceImpact    *string  `json:"compliance_impact"`
	RollbackComplexity  string   `json:"rollback_complexity"`
	TestingRequirements []string `json:"testing_requirements"`
	Dependencies        []string `json:"dependencies"`
	Analysis            string   `json:"analysis"`
	ConfidenceScore     *float64 `json:"confidence_score"`
}

// Analyzer 影响分析器接口
type Analyzer interface {
	Analyze(ctx context.Context, summary ChangeSummary) (*StructuredAssessment, error)
}

// AnalyzerFunc 函数适配器
type AnalyzerFunc func(ctx context.Context, summary ChangeSummary) (*StructuredAssessment, error)

// Analyze 实现 Analyzer 接口
func (f AnalyzerFunc) Analyze(ctx context.Context, summary ChangeSummary) (*StructuredAssessment, error) {
	return f(ctx, summary)
}
