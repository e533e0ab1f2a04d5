package integration_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mautops/change-gin/internal/analyzer"
	"github.com/mautops/change-gin/internal/change"
	"github.com/mautops/change-gin/internal/integration"
	"github.com/mautops/change-gin/internal/store"
	"github.com/mautops/change-gin/internal/testrunner"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// fakeClock 每次调用前进一秒
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// runnerFunc 脚本化测试执行器
type runnerFunc func(ctx context.Context, changeID string, testType string) (*change.TestResult, error)

func (f runnerFunc) RunSuite(ctx context.Context, changeID string, testType string) (*change.TestResult, error) {
	return f(ctx, changeID, testType)
}

// passingRunner 全部通过
func passingRunner() testrunner.Runner {
	return runnerFunc(func(ctx context.Context, changeID string, testType string) (*change.TestResult, error) {
		return &change.TestResult{
			ID:        testrunner.TestID(changeID, testType, time.Now()),
			Name:      testType,
			TestType:  testType,
			Status:    "passed",
			Passed:    true,
			Timestamp: time.Now(),
		}, nil
	})
}

// failingStore 保存总是失败的存储
type failingStore struct {
	store.RecordStore
	failSave bool
}

func (s *failingStore) Save(ctx context.Context, rec *change.Record) error {
	if s.failSave {
		return errors.New("disk full")
	}
	return s.RecordStore.Save(ctx, rec)
}

// failingEventLog 追加总是失败的事件日志
type failingEventLog struct{}

func (failingEventLog) Append(ctx context.Context, evt change.Event) error {
	return errors.New("event log unavailable")
}

type testEnv struct {
	manager integration.ChangeManager
	records *store.MemoryRecordStore
	events  *store.MemoryEventLog
	clock   *fakeClock
	logs    *test.Hook
}

type envOptions struct {
	analyzer analyzer.Analyzer
	runner   testrunner.Runner
	store    store.RecordStore
	events   store.EventLog
	timeout  time.Duration
	workers  int
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	records := store.NewMemoryRecordStore()
	events := store.NewMemoryEventLog()
	clock := newFakeClock()

	var recordStore store.RecordStore = records
	if opts.store != nil {
		recordStore = opts.store
	}
	var eventLog store.EventLog = events
	if opts.events != nil {
		eventLog = opts.events
	}
	runner := opts.runner
	if runner == nil {
		runner = passingRunner()
	}

	manager := integration.NewChangeManager(
		recordStore,
		eventLog,
		analyzer.NewAssessor(opts.analyzer, time.Second, logger),
		runner,
		integration.ManagerOptions{
			EventReader: events,
			TestTimeout: opts.timeout,
			TestWorkers: opts.workers,
			Logger:      logger,
			Now:         clock.Now,
		},
	)

	return &testEnv{manager: manager, records: records, events: events, clock: clock, logs: hook}
}

func validRequest() *integration.CreateChangeRequest {
	return &integration.CreateChangeRequest{
		Title:                 "Patch OpenSSL on edge proxies",
		Description:           "Upgrade OpenSSL to fix CVE",
		ChangeType:            change.TypeSecurityPatch,
		Priority:              change.PriorityHigh,
		Requester:             "alice",
		AffectedSystems:       []string{"edge-proxy", "api-gateway"},
		BusinessJustification: "Critical vulnerability",
		TechnicalDetails:      "apt upgrade openssl",
	}
}

func createChange(t *testing.T, env *testEnv, req *integration.CreateChangeRequest) *change.Record {
	t.Helper()
	rec, err := env.manager.Create(context.Background(), req)
	require.NoError(t, err)
	return rec
}

// approvedChange 创建并推进到 APPROVED 状态
func approvedChange(t *testing.T, env *testEnv) *change.Record {
	t.Helper()
	ctx := context.Background()
	rec := createChange(t, env, validRequest())

	_, err := env.manager.AssessImpact(ctx, rec.ID)
	require.NoError(t, err)
	_, err = env.manager.RunTests(ctx, rec.ID, testrunner.SuiteQuick)
	require.NoError(t, err)
	_, err = env.manager.RequestApproval(ctx, rec.ID, "bob", "please review")
	require.NoError(t, err)
	_, err = env.manager.Approve(ctx, rec.ID, "bob", "lgtm")
	require.NoError(t, err)
	return rec
}
