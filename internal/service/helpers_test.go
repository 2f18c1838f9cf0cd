package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SangwoonYun/ks-rewards.com/internal/repository"
	"github.com/SangwoonYun/ks-rewards.com/internal/upstream"
)

// fakeClock returns instantly from every sleep.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return nil
}

// fakeRedeemer scripts upstream outcomes per (fid, code) pair and
// records every call.
type fakeRedeemer struct {
	mu sync.Mutex

	// outcomes maps "fid/code" (or "*/code" as a wildcard) to the
	// status returned for that redeem.
	outcomes map[string]upstream.Status

	// failLogins holds fids whose login is rejected.
	failLogins map[string]bool

	// redeemErr, when set, fails every redeem at the transport level.
	redeemErr error

	loginCalls  []string
	redeemCalls []string
}

func newFakeRedeemer() *fakeRedeemer {
	return &fakeRedeemer{
		outcomes:   make(map[string]upstream.Status),
		failLogins: make(map[string]bool),
	}
}

func (f *fakeRedeemer) setOutcome(fid, code string, status upstream.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[fid+"/"+code] = status
}

func (f *fakeRedeemer) Login(ctx context.Context, fid string) (*upstream.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls = append(f.loginCalls, fid)
	if f.failLogins[fid] {
		return &upstream.LoginResult{OK: false, Message: "role not exist"}, nil
	}
	return &upstream.LoginResult{OK: true, Message: "success"}, nil
}

func (f *fakeRedeemer) Redeem(ctx context.Context, fid, code string) (*upstream.RedeemResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redeemCalls = append(f.redeemCalls, fid+"/"+code)
	if f.redeemErr != nil {
		return nil, f.redeemErr
	}
	status, ok := f.outcomes[fid+"/"+code]
	if !ok {
		status, ok = f.outcomes["*/"+code]
	}
	if !ok {
		status = upstream.StatusNotFound
	}
	return &upstream.RedeemResult{Status: status, Message: string(status)}, nil
}

func (f *fakeRedeemer) redeemCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.redeemCalls)
}

var errTransport = errors.New("upstream unreachable")

// testEnv bundles real SQLite-backed repositories for service tests.
type testEnv struct {
	store       *repository.Store
	accounts    *repository.SQLiteAccountRepository
	codes       *repository.SQLiteGiftCodeRepository
	redemptions *repository.SQLiteRedemptionRepository
	queue       *repository.SQLiteQueueRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := repository.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &testEnv{
		store:       store,
		accounts:    repository.NewSQLiteAccountRepository(store.DB()),
		codes:       repository.NewSQLiteGiftCodeRepository(store.DB()),
		redemptions: repository.NewSQLiteRedemptionRepository(store.DB()),
		queue:       repository.NewSQLiteQueueRepository(store.DB()),
	}
}
