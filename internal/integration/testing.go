package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/change-gin/internal/change"
	"github.com/mautops/change-gin/internal/statemachine"
	"github.com/mautops/change-gin/internal/store"
	"github.com/mautops/change-gin/internal/testrunner"
	"golang.org/x/sync/errgroup"
)

// RunTests 执行测试套件
// 测试类型并发执行,结果按套件顺序追加;无论是否通过都进入 PENDING_APPROVAL
func (m *changeManager) RunTests(ctx context.Context, id string, suite string) ([]change.TestResult, error) {
	var results []change.TestResult

	_, err := m.update(ctx, string(statemachine.OpRunTests), id, func(rec *change.Record, now time.Time) (*eventInfo, error) {
		// 1. 先校验状态
		if _, err := m.stateMachine.Target(statemachine.OpRunTests, rec.Status); err != nil {
			return nil, err
		}

		// 2. 执行测试
		suiteName, types := testrunner.ResolveSuite(suite)
		run, err := m.runSuite(ctx, rec.ID, suiteName, types)
		if err != nil {
			return nil, err
		}

		// 3. 更新记录
		failed := 0
		for _, r := range run {
			if !r.Passed {
				failed++
			}
		}
		reason := fmt.Sprintf("suite %s: %d/%d passed", suiteName, len(run)-failed, len(run))
		if err := m.stateMachine.Transition(rec, statemachine.OpRunTests, "", reason, now); err != nil {
			return nil, err
		}
		rec.TestResults = append(rec.TestResults, run...)
		results = run

		if failed == 0 {
			return &eventInfo{
				Type:        store.EventTestsPassed,
				Description: fmt.Sprintf("All %d tests passed", len(run)),
			}, nil
		}
		return &eventInfo{
			Type:        store.EventTestsFailed,
			Description: fmt.Sprintf("%d/%d tests failed", failed, len(run)),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// runSuite 并发执行测试类型,执行器出错或超时记为失败结果
func (m *changeManager) runSuite(ctx context.Context, changeID string, suite string, types []string) ([]change.TestResult, error) {
	results := make([]change.TestResult, len(types))

	var g errgroup.Group
	g.SetLimit(m.testWorkers)

	for i, testType := range types {
		i, testType := i, testType
		g.Go(func() error {
			results[i] = m.runOne(ctx, changeID, suite, testType)
			return nil
		})
	}
	_ = g.Wait()

	// 调用方已取消时不记录任何结果
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (m *changeManager) runOne(ctx context.Context, changeID string, suite string, testType string) change.TestResult {
	if m.testTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.testTimeout)
		defer cancel()
	}

	var (
		result *change.TestResult
		err    error
	)
	if m.runner == nil {
		err = fmt.Errorf("%w: test runner not configured", change.ErrExternalServiceUnavailable)
	} else {
		result, err = m.runner.RunSuite(ctx, changeID, testType)
	}
	if err == nil {
		err = testrunner.ValidateResult(result)
	}
	if err != nil {
		m.logger.WithField("change_id", changeID).
			WithField("test_type", testType).
			WithError(err).
			Warn("Test runner failed, recording failed result")
		result = testrunner.FailedResult(changeID, testType, m.now(), err)
	}

	out := *result
	out.Suite = suite
	out.TestType = testType
	if out.Artifacts == nil {
		out.Artifacts = []string{}
	}
	return out
}
