package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vuquang/nhatro/internal/store"
	"github.com/vuquang/nhatro/internal/types"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return NewRepository(db)
}

func TestSetGetRoundTrip(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	cap := int64(200_000)
	in := types.LateFeeConfig{
		Enabled:   true,
		AfterDays: 3,
		Mode:      types.LateFeePercent,
		Percent:   5,
		Repeat:    types.RepeatDaily,
		Cap:       &cap,
	}
	require.NoError(t, repo.Set(ctx, "late_fee", in))

	var out types.LateFeeConfig
	found, err := repo.Get(ctx, "late_fee", &out)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, in, out)
}

func TestSetReplaces(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "k", map[string]int{"a": 1}))
	require.NoError(t, repo.Set(ctx, "k", map[string]int{"a": 2}))

	var out map[string]int
	found, err := repo.Get(ctx, "k", &out)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 2, out["a"])
}

func TestGetUnset(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	var out types.LateFeeConfig
	found, err := repo.Get(ctx, "never_set", &out)
	require.NoError(t, err)
	require.False(t, found)

	cfg, err := Get[types.LateFeeConfig](ctx, repo, "never_set")
	require.NoError(t, err)
	require.Nil(t, cfg)
}

func TestDelete(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "k", "v"))
	require.NoError(t, repo.Delete(ctx, "k"))
	require.NoError(t, repo.Delete(ctx, "k"))

	v, err := Get[string](ctx, repo, "k")
	require.NoError(t, err)
	require.Nil(t, v)
}
