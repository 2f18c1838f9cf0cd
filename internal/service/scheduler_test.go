package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SangwoonYun/ks-rewards.com/internal/upstream"
)

func TestSchedulerRunsRedemptionImmediately(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client := newFakeRedeemer()
	s := newTestRedemption(t, env, client)

	require.NoError(t, env.accounts.Upsert(ctx, "100001", "Alice", true))
	seedValidatedCode(t, env, "GOOD1")
	require.NoError(t, env.queue.Enqueue(ctx, "100001", "GOOD1", 0))
	client.setOutcome("100001", "GOOD1", upstream.StatusSuccess)

	// Only the redemption job enabled; a long interval proves the first
	// run comes from the immediate startup pass, not the timer.
	sched := NewScheduler(SchedulerConfig{RedemptionInterval: time.Hour}, s, nil, nil, nil)
	require.NoError(t, sched.Start())
	defer sched.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		items, err := env.queue.FindAll(ctx)
		require.NoError(t, err)
		if len(items) == 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("startup pass never drained the queue")
}

func TestSchedulerSkipsDisabledJobs(t *testing.T) {
	env := newTestEnv(t)
	client := newFakeRedeemer()
	s := newTestRedemption(t, env, client)

	// All intervals zero: nothing registers, Start and Stop still work.
	sched := NewScheduler(SchedulerConfig{}, s, nil, nil, nil)
	require.NoError(t, sched.Start())
	sched.Stop()
	sched.Stop()

	assert.Zero(t, client.redeemCount())
}
