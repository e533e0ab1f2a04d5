package testrunner_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mautops/change-gin/internal/change"
	"github.com/mautops/change-gin/internal/testrunner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResolveSuite 测试套件解析
func TestResolveSuite(t *testing.T) {
	tests := []struct {
		input string
		name  string
		types []string
	}{
		{"quick", "quick", []string{"unit", "smoke"}},
		{"standard", "standard", []string{"unit", "integration", "regression"}},
		{"comprehensive", "comprehensive", []string{"unit", "integration", "regression", "performance", "security"}},
		{"compliance", "compliance", []string{"compliance", "audit", "documentation"}},
		{"nightly", "standard", []string{"unit", "integration", "regression"}},
		{"", "standard", []string{"unit", "integration", "regression"}},
	}

	for _, tt := range tests {
		name, types := testrunner.ResolveSuite(tt.input)
		assert.Equal(t, tt.name, name, tt.input)
		assert.Equal(t, tt.types, types, tt.input)
	}

	// 返回副本
	_, types := testrunner.ResolveSuite("quick")
	types[0] = "mutated"
	_, again := testrunner.ResolveSuite("quick")
	assert.Equal(t, "unit", again[0])
}

// TestSimulatedRunner 测试模拟执行器
func TestSimulatedRunner(t *testing.T) {
	dir := t.TempDir()
	r := testrunner.NewSimulatedRunner(42, dir)

	res, err := r.RunSuite(context.Background(), "CHG-1", "smoke")
	require.NoError(t, err)
	assert.Equal(t, "Smoke Test Suite", res.Name)
	assert.Equal(t, "smoke", res.TestType)
	assert.True(t, strings.HasPrefix(res.ID, "TEST-CHG-1-smoke-"))
	assert.GreaterOrEqual(t, res.DurationSeconds, 2.0)
	assert.LessOrEqual(t, res.DurationSeconds, 5.0)
	assert.Equal(t, res.Passed, res.Status == "passed")
	assert.Contains(t, res.Details, "Executed Smoke Test Suite for change CHG-1.")
	require.Len(t, res.Artifacts, 1)
	assert.Equal(t, filepath.Join(dir, res.ID+"_report.json"), res.Artifacts[0])

	data, err := os.ReadFile(res.Artifacts[0])
	require.NoError(t, err)
	var report change.TestResult
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, res.ID, report.ID)
	assert.Equal(t, res.Passed, report.Passed)
}

// TestSimulatedRunner_NoReportDir 测试未配置报告目录时不产生附件
func TestSimulatedRunner_NoReportDir(t *testing.T) {
	res, err := testrunner.NewSimulatedRunner(5, "").RunSuite(context.Background(), "CHG-1", "unit")
	require.NoError(t, err)
	assert.NotNil(t, res.Artifacts)
	assert.Empty(t, res.Artifacts)
}

// TestSimulatedRunner_UniqueIDs 测试同一秒内重跑的结果 ID 不重复
func TestSimulatedRunner_UniqueIDs(t *testing.T) {
	r := testrunner.NewSimulatedRunner(11, "")
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		res, err := r.RunSuite(context.Background(), "CHG-1", "unit")
		require.NoError(t, err)
		assert.False(t, seen[res.ID], res.ID)
		seen[res.ID] = true
	}
}

// TestSimulatedRunner_UnknownTypeUsesUnitProfile 测试未知测试类型
func TestSimulatedRunner_UnknownTypeUsesUnitProfile(t *testing.T) {
	r := testrunner.NewSimulatedRunner(7, "")
	res, err := r.RunSuite(context.Background(), "CHG-1", "audit")
	require.NoError(t, err)
	assert.Equal(t, "Unit Test Suite", res.Name)
	assert.Equal(t, "audit", res.TestType)
}

// TestSimulatedRunner_Deterministic 测试相同种子结果相同
func TestSimulatedRunner_Deterministic(t *testing.T) {
	a := testrunner.NewSimulatedRunner(99, "")
	b := testrunner.NewSimulatedRunner(99, "")
	for _, tt := range []string{"unit", "integration", "regression", "performance", "security"} {
		ra, err := a.RunSuite(context.Background(), "CHG-1", tt)
		require.NoError(t, err)
		rb, err := b.RunSuite(context.Background(), "CHG-1", tt)
		require.NoError(t, err)
		assert.Equal(t, ra.Passed, rb.Passed)
		assert.Equal(t, ra.DurationSeconds, rb.DurationSeconds)
	}
}

// TestSimulatedRunner_Cancelled 测试上下文取消
func TestSimulatedRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testrunner.NewSimulatedRunner(1, "").RunSuite(ctx, "CHG-1", "unit")
	assert.ErrorIs(t, err, context.Canceled)
}

// TestFailedResult 测试失败结果
func TestFailedResult(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	res := testrunner.FailedResult("CHG-1", "security", at, errors.New("timeout"))
	assert.Regexp(t, regexp.MustCompile(`^TEST-CHG-1-security-20250102030405-[0-9a-f]{8}$`), res.ID)
	assert.NotEqual(t, res.ID, testrunner.FailedResult("CHG-1", "security", at, errors.New("timeout")).ID)
	assert.False(t, res.Passed)
	assert.Equal(t, "failed", res.Status)
	assert.Equal(t, "Security Test Suite", res.Name)
	assert.Contains(t, res.Details, "timeout")
}

// TestValidateResult 测试执行器结果校验
func TestValidateResult(t *testing.T) {
	assert.NoError(t, testrunner.ValidateResult(&change.TestResult{DurationSeconds: 1.5}))
	assert.NoError(t, testrunner.ValidateResult(&change.TestResult{}))

	for _, d := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -1} {
		err := testrunner.ValidateResult(&change.TestResult{DurationSeconds: d})
		assert.ErrorIs(t, err, change.ErrExternalServiceUnavailable, "%v", d)
	}
	assert.ErrorIs(t, testrunner.ValidateResult(nil), change.ErrExternalServiceUnavailable)
}

// TestMaxSuiteSize 测试最大套件大小
func TestMaxSuiteSize(t *testing.T) {
	assert.Equal(t, 5, testrunner.MaxSuiteSize())
}

// TestHTTPRunner 测试远程执行器
func TestHTTPRunner(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "CHG-9", req["change_id"])
		assert.Equal(t, "integration", req["test_type"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"passed":           true,
			"duration_seconds": 12.5,
			"details":          "42 cases",
		})
	}))
	defer server.Close()

	r := testrunner.NewHTTPRunner(testrunner.HTTPConfig{Endpoint: server.URL, Token: "secret"})
	res, err := r.RunSuite(context.Background(), "CHG-9", "integration")
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, "passed", res.Status)
	assert.Equal(t, 12.5, res.DurationSeconds)
	assert.Equal(t, "Integration Test Suite", res.Name)
	assert.Equal(t, "42 cases", res.Details)
	assert.NotNil(t, res.Artifacts)
}

// TestHTTPRunner_ErrorStatus 测试远程服务报错
func TestHTTPRunner_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	r := testrunner.NewHTTPRunner(testrunner.HTTPConfig{Endpoint: server.URL})
	_, err := r.RunSuite(context.Background(), "CHG-9", "unit")
	assert.ErrorIs(t, err, change.ErrExternalServiceUnavailable)
}
