package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SangwoonYun/ks-rewards.com/internal/model"
	"github.com/SangwoonYun/ks-rewards.com/internal/upstream"
)

func newTestValidator(t *testing.T, env *testEnv, client *fakeRedeemer) *Validator {
	t.Helper()
	return NewValidator(ValidatorConfig{FallbackFID: "27370737"}, client, newFakeClock(),
		env.accounts, env.codes, env.queue)
}

func seedPendingCode(t *testing.T, env *testEnv, code string) {
	t.Helper()
	created, err := env.codes.InsertIgnore(context.Background(), code, model.ValidationPending, model.SourceAPI, time.Now())
	require.NoError(t, err)
	require.True(t, created)
}

func TestValidateOneValidated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client := newFakeRedeemer()
	v := newTestValidator(t, env, client)

	require.NoError(t, env.accounts.Upsert(ctx, "100001", "Alice", true))
	seedPendingCode(t, env, "GOOD1")
	client.setOutcome("100001", "GOOD1", upstream.StatusSuccess)

	result, err := v.ValidateOne(ctx, "good1")
	require.NoError(t, err)
	assert.Equal(t, ClassificationValidated, result.Classification)
	assert.Equal(t, "GOOD1", result.Code, "input normalized")

	code, err := env.codes.FindByCode(ctx, "GOOD1")
	require.NoError(t, err)
	require.NotNil(t, code)
	assert.Equal(t, model.ValidationValidated, code.ValidationStatus)
}

func TestValidateOneRestrictedStillValidates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client := newFakeRedeemer()
	v := newTestValidator(t, env, client)

	require.NoError(t, env.accounts.Upsert(ctx, "100001", "Alice", true))
	seedPendingCode(t, env, "VIPONLY")
	client.setOutcome("100001", "VIPONLY", upstream.StatusTooSmallSpend)

	result, err := v.ValidateOne(ctx, "VIPONLY")
	require.NoError(t, err)
	assert.Equal(t, ClassificationValidated, result.Classification,
		"a spend-restriction rejection proves the code exists")

	code, err := env.codes.FindByCode(ctx, "VIPONLY")
	require.NoError(t, err)
	assert.Equal(t, model.ValidationValidated, code.ValidationStatus)
}

func TestValidateOneExpiredPurgesQueue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client := newFakeRedeemer()
	v := newTestValidator(t, env, client)

	require.NoError(t, env.accounts.Upsert(ctx, "100001", "Alice", true))
	seedPendingCode(t, env, "OLD1")
	require.NoError(t, env.queue.Enqueue(ctx, "100001", "OLD1", 0))
	require.NoError(t, env.queue.Enqueue(ctx, "100002", "OLD1", 0))
	client.setOutcome("100001", "OLD1", upstream.StatusTimeError)

	result, err := v.ValidateOne(ctx, "OLD1")
	require.NoError(t, err)
	assert.Equal(t, ClassificationExpired, result.Classification)

	code, err := env.codes.FindByCode(ctx, "OLD1")
	require.NoError(t, err)
	assert.Equal(t, model.ValidationExpired, code.ValidationStatus)

	items, err := env.queue.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, items, "retired code leaves no queue items behind")
}

func TestValidateOneInvalid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client := newFakeRedeemer()
	v := newTestValidator(t, env, client)

	require.NoError(t, env.accounts.Upsert(ctx, "100001", "Alice", true))
	seedPendingCode(t, env, "TYPO1")
	client.setOutcome("100001", "TYPO1", upstream.StatusNotFound)

	result, err := v.ValidateOne(ctx, "TYPO1")
	require.NoError(t, err)
	assert.Equal(t, ClassificationInvalid, result.Classification)

	code, err := env.codes.FindByCode(ctx, "TYPO1")
	require.NoError(t, err)
	assert.Equal(t, model.ValidationInvalid, code.ValidationStatus)
}

func TestValidateOneUncertainLeavesPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client := newFakeRedeemer()
	v := newTestValidator(t, env, client)

	require.NoError(t, env.accounts.Upsert(ctx, "100001", "Alice", true))
	seedPendingCode(t, env, "FLAKY1")
	client.setOutcome("100001", "FLAKY1", upstream.StatusTimeoutRetry)

	result, err := v.ValidateOne(ctx, "FLAKY1")
	require.NoError(t, err)
	assert.Equal(t, ClassificationUncertain, result.Classification)

	code, err := env.codes.FindByCode(ctx, "FLAKY1")
	require.NoError(t, err)
	assert.Equal(t, model.ValidationPending, code.ValidationStatus,
		"inconclusive attempt changes nothing")
}

func TestValidateOneUsesFallbackWithoutAccounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client := newFakeRedeemer()
	v := newTestValidator(t, env, client)

	seedPendingCode(t, env, "GOOD1")
	client.setOutcome("27370737", "GOOD1", upstream.StatusSuccess)

	result, err := v.ValidateOne(ctx, "GOOD1")
	require.NoError(t, err)
	assert.Equal(t, ClassificationValidated, result.Classification)
	assert.Equal(t, []string{"27370737/GOOD1"}, client.redeemCalls)
}

func TestPickTestFIDFallsBackWhenLoginsFail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client := newFakeRedeemer()
	v := newTestValidator(t, env, client)

	require.NoError(t, env.accounts.Upsert(ctx, "100001", "Alice", true))
	require.NoError(t, env.accounts.Upsert(ctx, "100002", "Bob", true))
	client.failLogins["100001"] = true
	client.failLogins["100002"] = true

	fid, err := v.pickTestFID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "27370737", fid)
	assert.Len(t, client.loginCalls, 2, "both account candidates tried before the fallback")
}

func TestValidatePendingPass(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client := newFakeRedeemer()
	v := newTestValidator(t, env, client)

	require.NoError(t, env.accounts.Upsert(ctx, "100001", "Alice", true))
	seedPendingCode(t, env, "GOOD1")
	seedPendingCode(t, env, "DEAD1")
	seedPendingCode(t, env, "FLAKY1")
	client.setOutcome("100001", "GOOD1", upstream.StatusSuccess)
	client.setOutcome("100001", "DEAD1", upstream.StatusNotFound)
	client.setOutcome("100001", "FLAKY1", upstream.StatusTimeoutRetry)

	summary, err := v.ValidatePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 1, summary.Valid)
	assert.Equal(t, 1, summary.Invalid)
	assert.Equal(t, 1, summary.Uncertain)

	stats, err := env.codes.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Validated)
	assert.EqualValues(t, 1, stats.Invalid)
	assert.EqualValues(t, 1, stats.Pending)
}

func TestValidatePendingEmpty(t *testing.T) {
	env := newTestEnv(t)
	client := newFakeRedeemer()
	v := newTestValidator(t, env, client)

	summary, err := v.ValidatePending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Processed)
	assert.Zero(t, client.redeemCount())
}

func TestRevalidateCatchesSilentExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client := newFakeRedeemer()
	v := newTestValidator(t, env, client)

	require.NoError(t, env.accounts.Upsert(ctx, "100001", "Alice", true))
	created, err := env.codes.InsertIgnore(ctx, "WASGOOD", model.ValidationValidated, model.SourceAPI, time.Now())
	require.NoError(t, err)
	require.True(t, created)
	client.setOutcome("100001", "WASGOOD", upstream.StatusTimeError)

	summary, err := v.RevalidateValidated(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Invalid)

	code, err := env.codes.FindByCode(ctx, "WASGOOD")
	require.NoError(t, err)
	assert.Equal(t, model.ValidationExpired, code.ValidationStatus)
}
