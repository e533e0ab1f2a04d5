package analyzer

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/mautops/change-gin/internal/change"
)

// 分析器未给出时使用的默认值
const (
	DefaultAffectedUsers      = "Unknown"
	DefaultPerformanceImpact  = "To be determined"
	DefaultComplianceImpact   = "Requires review"
	DefaultConfidenceScore    = 0.7
	DefaultRollbackComplexity = change.ComplexityModerate
	DefaultRiskLevel          = change.RiskMedium
)

// ParseStructured 解析分析器的文本响应
// 允许响应被 ```json 代码块包裹
func ParseStructured(text string) (*StructuredAssessment, error) {
	body := strings.TrimSpace(text)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)

	if body == "" {
		return nil, fmt.Errorf("empty analyzer response")
	}

	var out StructuredAssessment
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, fmt.Errorf("failed to parse analyzer response: %w", err)
	}
	return &out, nil
}

// ToImpactAssessment 校验结构化评估并补齐默认值
// 风险等级无法识别时返回错误,由调用方回退到人工评估
func ToImpactAssessment(s *StructuredAssessment) (*change.ImpactAssessment, error) {
	if s == nil {
		return nil, fmt.Errorf("nil assessment")
	}

	risk := DefaultRiskLevel
	if s.RiskLevel != "" {
		risk = change.RiskLevel(strings.ToLower(strings.TrimSpace(s.RiskLevel)))
		if !risk.IsValid() {
			return nil, fmt.Errorf("unknown risk level %q", s.RiskLevel)
		}
	}

	complexity := DefaultRollbackComplexity
	if s.RollbackComplexity != "" {
		c := change.RollbackComplexity(strings.ToLower(strings.TrimSpace(s.RollbackComplexity)))
		if c.IsValid() {
			complexity = c
		}
	}

	confidence := DefaultConfidenceScore
	if s.ConfidenceScore != nil {
		confidence = clamp(*s.ConfidenceScore)
	}

	return &change.ImpactAssessment{
		RiskLevel:           risk,
		AffectedComponents:  orEmpty(s.AffectedComponents),
		AffectedUsers:       orDefault(s.AffectedUsers, DefaultAffectedUsers),
		PerformanceImpact:   orDefault(s.PerformanceImpact, DefaultPerformanceImpact),
		ComplianceImpact:    orDefault(s.ComplianceImpact, DefaultComplianceImpact),
		RollbackComplexity:  complexity,
		TestingRequirements: orEmpty(s.TestingRequirements),
		Dependencies:        orEmpty(s.Dependencies),
		Analysis:            s.Analysis,
		ConfidenceScore:     confidence,
		Source:              change.SourceAI,
	}, nil
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func orDefault(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}

func orEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	out := make([]string, len(v))
	copy(out, v)
	return out
}
