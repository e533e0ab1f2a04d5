package integration_test

import (
	"context"
	"testing"

	"github.com/mautops/change-gin/internal/analyzer"
	"github.com/mautops/change-gin/internal/change"
	"github.com/mautops/change-gin/internal/config"
	"github.com/mautops/change-gin/internal/database"
	"github.com/mautops/change-gin/internal/integration"
	"github.com/mautops/change-gin/internal/store"
	"github.com/mautops/change-gin/internal/testrunner"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestChangeManager_SQLite 测试基于 SQLite 存储的完整流程
func TestChangeManager_SQLite(t *testing.T) {
	db, err := database.Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	defer database.Close(db)
	require.NoError(t, database.Migrate(db))

	logger, _ := test.NewNullLogger()
	events := store.NewDBEventLog(db)
	manager := integration.NewChangeManager(
		store.NewDBRecordStore(db),
		events,
		analyzer.NewAssessor(nil, 0, logger),
		testrunner.NewSimulatedRunner(1, t.TempDir()),
		integration.ManagerOptions{Logger: logger, Now: newFakeClock().Now},
	)
	ctx := context.Background()

	rec, err := manager.Create(ctx, validRequest())
	require.NoError(t, err)
	_, err = manager.AssessImpact(ctx, rec.ID)
	require.NoError(t, err)
	_, err = manager.CreateRollbackPlan(ctx, rec.ID)
	require.NoError(t, err)
	_, err = manager.RunTests(ctx, rec.ID, testrunner.SuiteCompliance)
	require.NoError(t, err)
	_, err = manager.RequestApproval(ctx, rec.ID, "qa@x", "")
	require.NoError(t, err)
	_, err = manager.Approve(ctx, rec.ID, "qa@x", "")
	require.NoError(t, err)
	_, err = manager.Deploy(ctx, rec.ID, "ops")
	require.NoError(t, err)
	_, err = manager.CompleteDeployment(ctx, rec.ID, true, "")
	require.NoError(t, err)

	got, err := manager.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, change.StatusDeployed, got.Status)
	assert.Len(t, got.TestResults, 3)
	assert.NotNil(t, got.RollbackPlan)
	assert.Len(t, got.StateHistory, 6)

	status := change.StatusDeployed
	items, err := manager.List(ctx, store.Filter{Status: &status})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, rec.ID, items[0].ID)

	// 事件读取来自 events 自身
	history, err := manager.Events(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, history, 8)
	assert.Equal(t, store.EventCreated, history[0].Type)
	assert.Equal(t, store.EventDeployed, history[len(history)-1].Type)

	_, err = manager.Get(ctx, "CHG-missing")
	assert.ErrorIs(t, err, change.ErrNotFound)
}
