package change_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mautops/change-gin/internal/change"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecord_CloneIsolation 测试深拷贝互不影响
func TestRecord_CloneIsolation(t *testing.T) {
	decided := time.Now()
	rec := &change.Record{
		ID:              "CHG-1",
		Status:          change.StatusPendingApproval,
		AffectedSystems: []string{"api"},
		Approvals:       []change.Approval{{Approver: "bob", Status: change.ApprovalApproved, DecidedAt: &decided}},
		ImpactAssessment: &change.ImpactAssessment{
			RiskLevel:          change.RiskHigh,
			AffectedComponents: []string{"api"},
		},
	}
	require.NoError(t, rec.SetMetadata("k", map[string]string{"a": "b"}))

	cp := rec.Clone()
	cp.AffectedSystems[0] = "db"
	cp.Approvals[0].Approver = "eve"
	*cp.Approvals[0].DecidedAt = decided.Add(time.Hour)
	cp.ImpactAssessment.RiskLevel = change.RiskLow
	cp.Metadata["k"] = json.RawMessage(`{}`)

	assert.Equal(t, "api", rec.AffectedSystems[0])
	assert.Equal(t, "bob", rec.Approvals[0].Approver)
	assert.True(t, rec.Approvals[0].DecidedAt.Equal(decided))
	assert.Equal(t, change.RiskHigh, rec.ImpactAssessment.RiskLevel)
	assert.JSONEq(t, `{"a":"b"}`, string(rec.Metadata["k"]))

	var nilRec *change.Record
	assert.Nil(t, nilRec.Clone())
}

// TestRecord_Normalize 测试集合字段序列化为空数组
func TestRecord_Normalize(t *testing.T) {
	rec := &change.Record{ID: "CHG-1"}
	rec.Normalize()

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"affected_systems", "test_results", "approvals", "deployment_log", "state_history"} {
		assert.Equal(t, []interface{}{}, raw[key], key)
	}
	assert.Equal(t, map[string]interface{}{}, raw["metadata"])
	assert.NotContains(t, raw, "impact_assessment")
	assert.NotContains(t, raw, "rollback_plan")
}

// TestRecord_LatestLookups 测试查找最近的待审批和未关闭部署
func TestRecord_LatestLookups(t *testing.T) {
	done := time.Now()
	rec := &change.Record{
		Approvals: []change.Approval{
			{Approver: "bob", Status: change.ApprovalPending},
			{Approver: "carol", Status: change.ApprovalPending},
			{Approver: "bob", Status: change.ApprovalRejected},
		},
		DeploymentLog: []change.DeploymentRecord{
			{ID: "d1", Status: change.DeploymentFailed, CompletedAt: &done},
			{ID: "d2", Status: change.DeploymentInProgress},
		},
	}

	assert.Equal(t, 0, rec.LatestPendingApproval("bob"))
	assert.Equal(t, 1, rec.LatestPendingApproval("carol"))
	assert.Equal(t, -1, rec.LatestPendingApproval("dave"))
	assert.Equal(t, 1, rec.LatestOpenDeployment())

	rec.DeploymentLog[1].CompletedAt = &done
	assert.Equal(t, -1, rec.LatestOpenDeployment())
}

// TestRecord_Report 测试状态报告统计
func TestRecord_Report(t *testing.T) {
	rec := &change.Record{
		ID:               "CHG-1",
		Title:            "t",
		Status:           change.StatusApproved,
		ImpactAssessment: &change.ImpactAssessment{},
		TestResults:      []change.TestResult{{Passed: true}, {Passed: false}, {Passed: true}},
		Approvals: []change.Approval{
			{Status: change.ApprovalPending},
			{Status: change.ApprovalApproved},
			{Status: change.ApprovalRejected},
		},
		DeploymentLog: []change.DeploymentRecord{{}},
	}

	report := rec.Report()
	assert.True(t, report.ImpactAssessmentComplete)
	assert.Equal(t, 3, report.TestsRun)
	assert.Equal(t, 2, report.TestsPassed)
	assert.Equal(t, 1, report.ApprovalsPending)
	assert.Equal(t, 1, report.ApprovalsGranted)
	assert.False(t, report.RollbackPlanReady)
	assert.Equal(t, 1, report.DeploymentAttempts)

	summary := rec.Summarize()
	assert.Equal(t, "CHG-1", summary.ID)
	assert.Equal(t, change.StatusApproved, summary.Status)
}

// TestStatus_Values 测试状态枚举
func TestStatus_Values(t *testing.T) {
	assert.Len(t, change.AllStatuses(), 12)

	terminal := 0
	for _, s := range change.AllStatuses() {
		assert.True(t, s.IsValid())
		if s.IsTerminal() {
			terminal++
		}
	}
	assert.Equal(t, 4, terminal)
	assert.False(t, change.Status("unknown").IsValid())
	assert.True(t, change.ComplexityVeryComplex.IsValid())
	assert.False(t, change.Type("other").IsValid())
}

// TestOpError 测试操作错误包装
func TestOpError(t *testing.T) {
	assert.Nil(t, change.NewOpError("deploy", "CHG-1", change.StatusDraft, nil))

	err := change.NewOpError("deploy", "CHG-1", change.StatusDraft, fmt.Errorf("%w: status draft", change.ErrNotApproved))
	assert.ErrorIs(t, err, change.ErrNotApproved)
	assert.Contains(t, err.Error(), "deploy CHG-1")
	assert.Contains(t, err.Error(), `"draft"`)

	var opErr *change.OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "deploy", opErr.Op)

	// 已经是 OpError 的不重复包装
	same := change.NewOpError("other", "CHG-2", "", err)
	assert.Same(t, err, same)
}
