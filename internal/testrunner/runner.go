package testrunner

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/change-gin/internal/change"
)

// Runner 测试执行器接口
type Runner interface {
	// RunSuite 执行单个测试类型,返回的结果不含 Suite 字段,由调用方补齐
	RunSuite(ctx context.Context, changeID string, testType string) (*change.TestResult, error)
}

// 测试套件名称
const (
	SuiteQuick         = "quick"
	SuiteStandard      = "standard"
	SuiteComprehensive = "comprehensive"
	SuiteCompliance    = "compliance"
)

var suites = map[string][]string{
	SuiteQuick:         {"unit", "smoke"},
	SuiteStandard:      {"unit", "integration", "regression"},
	SuiteComprehensive: {"unit", "integration", "regression", "performance", "security"},
	SuiteCompliance:    {"compliance", "audit", "documentation"},
}

// ResolveSuite 返回套件名和包含的测试类型,未知套件回退到 standard
func ResolveSuite(name string) (string, []string) {
	types, ok := suites[name]
	if !ok {
		name = SuiteStandard
		types = suites[SuiteStandard]
	}
	out := make([]string, len(types))
	copy(out, types)
	return name, out
}

// SuiteNames 返回全部套件名
func SuiteNames() []string {
	return []string{SuiteQuick, SuiteStandard, SuiteComprehensive, SuiteCompliance}
}

// MaxSuiteSize 返回最大套件的测试类型数
func MaxSuiteSize() int {
	n := 0
	for _, name := range SuiteNames() {
		if len(suites[name]) > n {
			n = len(suites[name])
		}
	}
	return n
}

// TestID 生成测试结果 ID,同一秒内重跑靠随机后缀区分
func TestID(changeID string, testType string, at time.Time) string {
	return fmt.Sprintf("TEST-%s-%s-%s-%s", changeID, testType, at.Format("20060102150405"), uuid.NewString()[:8])
}

// ValidateResult 检查执行器返回的结果能否安全记录
func ValidateResult(r *change.TestResult) error {
	if r == nil {
		return fmt.Errorf("%w: empty test result", change.ErrExternalServiceUnavailable)
	}
	d := r.DurationSeconds
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return fmt.Errorf("%w: invalid test duration %v", change.ErrExternalServiceUnavailable, d)
	}
	return nil
}

// FailedResult 执行器出错或超时时记录的失败结果
func FailedResult(changeID string, testType string, at time.Time, err error) *change.TestResult {
	return &change.TestResult{
		ID:        TestID(changeID, testType, at),
		Name:      displayName(testType),
		TestType:  testType,
		Status:    "failed",
		Passed:    false,
		Details:   fmt.Sprintf("Test runner failed for change %s: %v", changeID, err),
		Timestamp: at,
		Artifacts: []string{},
	}
}
