package planner_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mautops/change-gin/internal/change"
	"github.com/mautops/change-gin/internal/planner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPlanner_BuiltinPlaybooks 测试内置回滚步骤
func TestPlanner_BuiltinPlaybooks(t *testing.T) {
	p := planner.New("/var/backups", nil)
	now := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		changeType change.Type
		first      string
		steps      int
		minutes    int
	}{
		{change.TypeModelUpdate, "Stop current model serving", 6, 15},
		{change.TypeConfiguration, "Backup current configuration", 5, 5},
		{change.TypeDataPipeline, "Pause data pipeline", 5, 20},
		{change.TypeSecurityPatch, "Identify components to rollback", 5, 30},
		{change.TypeBugFix, "Identify components to rollback", 5, 30},
	}

	for _, tt := range tests {
		t.Run(string(tt.changeType), func(t *testing.T) {
			plan := p.Plan(&change.Record{ID: "CHG-1", ChangeType: tt.changeType}, now)
			require.Len(t, plan.RollbackSteps, tt.steps)
			assert.Equal(t, tt.first, plan.RollbackSteps[0])
			assert.Equal(t, tt.minutes, plan.EstimatedDurationMinutes)
			assert.Equal(t, planner.VerificationSteps, plan.VerificationSteps)
			assert.True(t, plan.Automated)
			assert.Equal(t, "CHG-1", plan.ChangeID)
			assert.Equal(t, now, plan.CreatedAt)
		})
	}
}

// TestPlanner_BackupLocationUnique 测试备份路径唯一
func TestPlanner_BackupLocationUnique(t *testing.T) {
	p := planner.New("/var/backups", nil)
	now := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	rec := &change.Record{ID: "CHG-1", ChangeType: change.TypeBugFix}

	a := p.Plan(rec, now).BackupLocations
	b := p.Plan(rec, now).BackupLocations
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.NotEqual(t, a[0], b[0])
	assert.True(t, strings.HasPrefix(a[0], filepath.Join("/var/backups", "backup_CHG-1_20250301_103000_")))
	assert.True(t, strings.HasSuffix(a[0], ".json"))
}

// TestPlanner_PlanIsolated 测试计划之间互不影响
func TestPlanner_PlanIsolated(t *testing.T) {
	p := planner.New("", nil)
	rec := &change.Record{ID: "CHG-1", ChangeType: change.TypeModelUpdate}
	first := p.Plan(rec, time.Now())
	first.RollbackSteps[0] = "mutated"
	first.VerificationSteps[0] = "mutated"

	second := p.Plan(rec, time.Now())
	assert.Equal(t, "Stop current model serving", second.RollbackSteps[0])
	assert.Equal(t, "Check system health endpoints", second.VerificationSteps[0])
}

// TestLoadPlaybooks 测试加载 YAML 覆盖
func TestLoadPlaybooks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "playbooks.yaml")
	content := `version: 1
playbooks:
  infrastructure:
    duration_minutes: 45
    automated: false
    steps:
      - Drain traffic
      - Restore previous stack
      - Verify system health
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	overrides, err := planner.LoadPlaybooks(path)
	require.NoError(t, err)
	require.Contains(t, overrides, change.TypeInfrastructure)

	p := planner.New(dir, overrides)
	plan := p.Plan(&change.Record{ID: "CHG-2", ChangeType: change.TypeInfrastructure}, time.Now())
	assert.Equal(t, []string{"Drain traffic", "Restore previous stack", "Verify system health"}, plan.RollbackSteps)
	assert.Equal(t, 45, plan.EstimatedDurationMinutes)
	assert.False(t, plan.Automated)

	// 未覆盖的类型仍使用内置步骤
	other := p.Plan(&change.Record{ID: "CHG-3", ChangeType: change.TypeConfiguration}, time.Now())
	assert.Equal(t, 5, other.EstimatedDurationMinutes)
}

// TestLoadPlaybooks_Invalid 测试非法配置
func TestLoadPlaybooks_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := map[string]string{
		"version":  "version: 2\nplaybooks: {}\n",
		"type":     "version: 1\nplaybooks:\n  teleport:\n    duration_minutes: 1\n    steps: [a]\n",
		"steps":    "version: 1\nplaybooks:\n  bug_fix:\n    duration_minutes: 1\n",
		"duration": "version: 1\nplaybooks:\n  bug_fix:\n    steps: [a]\n",
		"syntax":   "version: [",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			_, err := planner.LoadPlaybooks(path)
			assert.Error(t, err)
		})
	}

	_, err := planner.LoadPlaybooks(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	empty, err := planner.LoadPlaybooks("")
	assert.NoError(t, err)
	assert.Nil(t, empty)
}
