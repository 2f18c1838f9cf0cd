package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountUpsertRefreshesNickname(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	accounts := NewSQLiteAccountRepository(store.DB())

	require.NoError(t, accounts.Upsert(ctx, "100001", "Alice", true))
	require.NoError(t, accounts.SetActive(ctx, "100001", false))
	require.NoError(t, accounts.Upsert(ctx, "100001", "Alicia", true))

	got, err := accounts.FindByFID(ctx, "100001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alicia", got.Nickname)
	assert.False(t, got.Active, "re-registering does not re-activate")
}

func TestAccountFindActive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	accounts := NewSQLiteAccountRepository(store.DB())

	require.NoError(t, accounts.Upsert(ctx, "100001", "Alice", true))
	require.NoError(t, accounts.Upsert(ctx, "100002", "Bob", true))
	require.NoError(t, accounts.SetActive(ctx, "100002", false))

	active, err := accounts.FindActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "100001", active[0].FID)

	all, err := accounts.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAccountSetActiveUnknown(t *testing.T) {
	store := newTestStore(t)
	accounts := NewSQLiteAccountRepository(store.DB())

	err := accounts.SetActive(context.Background(), "999999", true)
	assert.Error(t, err)
}

func TestAccountUpdateProfileSkipsEmptyFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	accounts := NewSQLiteAccountRepository(store.DB())

	require.NoError(t, accounts.Upsert(ctx, "100001", "Alice", true))
	require.NoError(t, accounts.UpdateProfile(ctx, "100001", "Warlord", "245", "https://cdn/a.png"))
	require.NoError(t, accounts.UpdateProfile(ctx, "100001", "", "", ""))

	got, err := accounts.FindByFID(ctx, "100001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Warlord", got.Nickname)
	assert.Equal(t, "245", got.Kingdom)
	assert.Equal(t, "https://cdn/a.png", got.AvatarURL)
}

func TestAccountFindByFIDUnknown(t *testing.T) {
	store := newTestStore(t)
	accounts := NewSQLiteAccountRepository(store.DB())

	got, err := accounts.FindByFID(context.Background(), "999999")
	require.NoError(t, err)
	assert.Nil(t, got)
}
