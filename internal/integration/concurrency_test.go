package integration_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/mautops/change-gin/internal/change"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrency_ApprovalsNotLost 测试同一变更并发审批请求不丢失
func TestConcurrency_ApprovalsNotLost(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	rec := createChange(t, env, validRequest())
	_, err := env.manager.AssessImpact(ctx, rec.ID)
	require.NoError(t, err)

	const approvers = 20
	var wg sync.WaitGroup
	errs := make(chan error, approvers)
	for i := 0; i < approvers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.manager.RequestApproval(ctx, rec.ID, fmt.Sprintf("approver-%02d", i), "")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	got, err := env.manager.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, got.Approvals, approvers)
	assert.Equal(t, change.StatusPendingApproval, got.Status)

	events, err := env.manager.Events(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, events, approvers+2)
}

// TestConcurrency_SingleApproverOnce 测试同一审批人并发请求只成功一次
func TestConcurrency_SingleApproverOnce(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	rec := createChange(t, env, validRequest())
	_, err := env.manager.AssessImpact(ctx, rec.ID)
	require.NoError(t, err)

	const attempts = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, pending := 0, 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.manager.RequestApproval(ctx, rec.ID, "bob", "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if assert.ErrorIs(t, err, change.ErrApprovalAlreadyPending) {
				pending++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, pending)
}

// TestConcurrency_IndependentChanges 测试不同变更并行推进
func TestConcurrency_IndependentChanges(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	const n = 8
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		req := validRequest()
		req.Title = fmt.Sprintf("change %d", i)
		ids[i] = createChange(t, env, req).ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := env.manager.AssessImpact(ctx, id)
			assert.NoError(t, err)
			_, err = env.manager.RunTests(ctx, id, "quick")
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		got, err := env.manager.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, change.StatusPendingApproval, got.Status)
		assert.Len(t, got.TestResults, 2)
	}
}
