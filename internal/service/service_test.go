package service_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mautops/change-gin/internal/change"
	"github.com/mautops/change-gin/internal/config"
	"github.com/mautops/change-gin/internal/database"
	"github.com/mautops/change-gin/internal/integration"
	"github.com/mautops/change-gin/internal/planner"
	"github.com/mautops/change-gin/internal/service"
	"github.com/mautops/change-gin/internal/store"
	"github.com/mautops/change-gin/internal/testrunner"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	manager integration.ChangeManager
	records store.RecordStore
	changes service.ChangeService
	queries service.QueryService
	backups *service.BackupService
	hook    *test.Hook
}

func clock() func() time.Time {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func newFixture(t *testing.T, records store.RecordStore) *fixture {
	t.Helper()
	logger, hook := test.NewNullLogger()
	backupDir := filepath.Join(t.TempDir(), "backups")

	manager := integration.NewChangeManager(
		records,
		store.NewMemoryEventLog(),
		nil,
		testrunner.NewSimulatedRunner(3, t.TempDir()),
		integration.ManagerOptions{
			Planner: planner.New(backupDir, nil),
			Logger:  logger,
			Now:     clock(),
		},
	)
	backups := service.NewBackupService(backupDir)

	return &fixture{
		manager: manager,
		records: records,
		changes: service.NewChangeService(manager, backups, logger),
		queries: service.NewQueryService(manager),
		backups: backups,
		hook:    hook,
	}
}

func newRequest(title string, t change.Type, p change.Priority) *integration.CreateChangeRequest {
	return &integration.CreateChangeRequest{
		Title:                 title,
		Description:           "desc",
		ChangeType:            t,
		Priority:              p,
		Requester:             "alice",
		AffectedSystems:       []string{"api"},
		BusinessJustification: "why",
		TechnicalDetails:      "how",
	}
}

func sqliteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// TestChangeService_Lifecycle 测试服务层完整流程
func TestChangeService_Lifecycle(t *testing.T) {
	f := newFixture(t, store.NewMemoryRecordStore())
	ctx := context.Background()

	rec, err := f.changes.Create(ctx, newRequest("upgrade model", change.TypeModelUpdate, change.PriorityHigh))
	require.NoError(t, err)

	_, err = f.changes.SubmitForReview(ctx, rec.ID, &service.SubmitRequest{SubmittedBy: "alice"})
	require.NoError(t, err)
	assessment, err := f.changes.AssessImpact(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, change.RiskHigh, assessment.RiskLevel)

	_, err = f.changes.RunTests(ctx, rec.ID, &service.RunTestsRequest{Suite: "quick"})
	require.NoError(t, err)
	_, err = f.changes.RequestApproval(ctx, rec.ID, &service.ApprovalRequest{Approver: "bob"})
	require.NoError(t, err)
	_, err = f.changes.Approve(ctx, rec.ID, &service.DecisionRequest{Approver: "bob"})
	require.NoError(t, err)
	_, err = f.changes.Deploy(ctx, rec.ID, &service.DeployRequest{DeployedBy: "ops"})
	require.NoError(t, err)

	success := true
	deployment, err := f.changes.CompleteDeployment(ctx, rec.ID, &service.CompleteDeploymentRequest{Success: &success})
	require.NoError(t, err)
	assert.Equal(t, change.DeploymentCompleted, deployment.Status)

	report, err := f.changes.GetStatusReport(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, change.StatusDeployed, report.Status)

	_, err = f.changes.Rollback(ctx, rec.ID, &service.RollbackRequest{RolledBackBy: "ops", Reason: "regression"})
	assert.ErrorIs(t, err, change.ErrNoRollbackPlan)
}

// TestChangeService_RollbackSnapshots 测试回滚计划写入快照
func TestChangeService_RollbackSnapshots(t *testing.T) {
	f := newFixture(t, store.NewMemoryRecordStore())
	ctx := context.Background()

	rec, err := f.changes.Create(ctx, newRequest("tune config", change.TypeConfiguration, change.PriorityLow))
	require.NoError(t, err)

	backups, err := f.changes.ListBackups(ctx, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, backups)

	plan, err := f.changes.CreateRollbackPlan(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, plan.BackupLocations, 1)

	backups, err = f.changes.ListBackups(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, plan.BackupLocations[0], backups[0].Path)
	assert.Equal(t, rec.ID, backups[0].ChangeID)

	snapshot, err := f.changes.GetBackup(ctx, rec.ID, backups[0].Filename)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, snapshot.ID)
	require.NotNil(t, snapshot.RollbackPlan)

	// 其他变更的快照不可通过该变更读取
	other, err := f.changes.Create(ctx, newRequest("other config", change.TypeConfiguration, change.PriorityLow))
	require.NoError(t, err)
	_, err = f.changes.GetBackup(ctx, other.ID, backups[0].Filename)
	assert.ErrorIs(t, err, change.ErrNotFound)
	_, err = f.changes.GetBackup(ctx, rec.ID, "../"+backups[0].Filename)
	assert.ErrorIs(t, err, change.ErrNotFound)
	_, err = f.changes.GetBackup(ctx, "CHG-missing", backups[0].Filename)
	assert.ErrorIs(t, err, change.ErrNotFound)

	_, err = f.changes.ListBackups(ctx, "CHG-missing")
	assert.ErrorIs(t, err, change.ErrNotFound)
	assert.Empty(t, f.hook.AllEntries())
}

// TestBackupService_PathSafety 测试快照路径必须在备份目录内
func TestBackupService_PathSafety(t *testing.T) {
	dir := t.TempDir()
	backups := service.NewBackupService(dir)
	ctx := context.Background()

	rec := &change.Record{
		ID:           "CHG-1",
		RollbackPlan: &change.RollbackPlan{BackupLocations: []string{filepath.Join(dir, "..", "escape.json")}},
	}
	_, err := backups.WriteSnapshots(ctx, rec)
	assert.ErrorIs(t, err, change.ErrInvalidRequest)

	_, err = backups.LoadSnapshot(ctx, "../escape.json")
	assert.ErrorIs(t, err, change.ErrInvalidRequest)

	_, err = backups.LoadSnapshot(ctx, "backup_CHG-1_missing.json")
	assert.ErrorIs(t, err, change.ErrNotFound)

	_, err = backups.WriteSnapshots(ctx, &change.Record{ID: "CHG-2"})
	assert.ErrorIs(t, err, change.ErrNoRollbackPlan)

	list, err := service.NewBackupService(filepath.Join(dir, "absent")).ListBackups(ctx, "CHG-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

// TestQueryService_ListChanges 测试列表分页和过滤
func TestQueryService_ListChanges(t *testing.T) {
	f := newFixture(t, store.NewMemoryRecordStore())
	ctx := context.Background()

	for i, title := range []string{"a", "b", "c", "d", "e"} {
		p := change.PriorityLow
		if i%2 == 0 {
			p = change.PriorityHigh
		}
		_, err := f.changes.Create(ctx, newRequest(title, change.TypeBugFix, p))
		require.NoError(t, err)
	}

	items, total, err := f.queries.ListChanges(ctx, &service.ListChangesFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, items, 2)
	assert.Equal(t, "c", items[0].Title)
	assert.Equal(t, "b", items[1].Title)

	high := change.PriorityHigh
	items, total, err = f.queries.ListChanges(ctx, &service.ListChangesFilter{Priority: &high})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, items, 3)

	items, total, err = f.queries.ListChanges(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, items, 5)

	bad := change.Status("shipping")
	_, _, err = f.queries.ListChanges(ctx, &service.ListChangesFilter{Status: &bad})
	assert.ErrorIs(t, err, change.ErrInvalidRequest)
}

// TestListChangesFilter_Validate 测试分页默认值
func TestListChangesFilter_Validate(t *testing.T) {
	f := &service.ListChangesFilter{PageSize: 1000}
	require.NoError(t, f.Validate())
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, service.MaxPageSize, f.PageSize)

	f = &service.ListChangesFilter{}
	require.NoError(t, f.Validate())
	assert.Equal(t, service.DefaultPageSize, f.PageSize)
}

// TestQueryService_EventsAndHistory 测试事件和状态历史查询
func TestQueryService_EventsAndHistory(t *testing.T) {
	f := newFixture(t, store.NewMemoryRecordStore())
	ctx := context.Background()

	rec, err := f.changes.Create(ctx, newRequest("x", change.TypeBugFix, change.PriorityLow))
	require.NoError(t, err)
	_, err = f.changes.Cancel(ctx, rec.ID, &service.CancelRequest{CancelledBy: "alice", Reason: "dup"})
	require.NoError(t, err)

	events, err := f.queries.GetEvents(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, store.EventCancelled, events[1].Type)

	history, err := f.queries.GetHistory(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, change.StatusCancelled, history[0].To)
}

// TestStatisticsService 测试统计(内存与 SQLite 两种实现)
func TestStatisticsService(t *testing.T) {
	db := sqliteDB(t)
	cases := map[string]struct {
		records store.RecordStore
		db      *gorm.DB
	}{
		"memory": {records: store.NewMemoryRecordStore()},
		"sqlite": {records: store.NewDBRecordStore(db), db: db},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, tc.records)
			ctx := context.Background()

			a, err := f.changes.Create(ctx, newRequest("a", change.TypeBugFix, change.PriorityLow))
			require.NoError(t, err)
			_, err = f.changes.Create(ctx, newRequest("b", change.TypeBugFix, change.PriorityHigh))
			require.NoError(t, err)
			_, err = f.changes.Create(ctx, newRequest("c", change.TypeSecurityPatch, change.PriorityCritical))
			require.NoError(t, err)
			_, err = f.changes.Cancel(ctx, a.ID, &service.CancelRequest{CancelledBy: "alice"})
			require.NoError(t, err)

			stats := service.NewStatisticsService(tc.db, tc.records)
			result, err := stats.GetStatistics(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(3), result.Total)
			assert.Equal(t, int64(2), result.Active)
			assert.Equal(t, int64(2), result.ByStatus["draft"])
			assert.Equal(t, int64(1), result.ByStatus["cancelled"])
			assert.Equal(t, int64(2), result.ByType["bug_fix"])
			assert.Equal(t, int64(1), result.ByPriority["critical"])

			byStatus, err := stats.CountByStatus(ctx)
			require.NoError(t, err)
			assert.Equal(t, result.ByStatus, byStatus)
		})
	}
}
