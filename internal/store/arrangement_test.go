package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/api/internal/ordering"
	"taskboard/api/internal/store"
	"taskboard/api/internal/testutil"
)

func TestAdvanceBoardVersion(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	owner := testutil.SeedUser(t, s, "ada")
	testutil.SeedBoard(t, s, "b1", owner.ID)

	v, err := s.AdvanceBoardVersion(ctx, "b1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	expected := int64(1)
	v, err = s.AdvanceBoardVersion(ctx, "b1", &expected)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	stale := int64(1)
	_, err = s.AdvanceBoardVersion(ctx, "b1", &stale)
	assert.ErrorIs(t, err, store.ErrStaleVersion)

	board, err := s.GetBoard(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), board.Version, "a stale advance writes nothing")

	_, err = s.AdvanceBoardVersion(ctx, "missing", nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.AdvanceBoardVersion(ctx, "missing", &stale)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLoadSnapshot_OrderedAndScopedToBoard(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	owner := testutil.SeedUser(t, s, "ada")
	testutil.SeedBoard(t, s, "b1", owner.ID, 2, 0, 3)
	testutil.SeedBoard(t, s, "b2", owner.ID, 4)

	snapshot, err := s.LoadSnapshot(ctx, "b1")
	require.NoError(t, err)
	require.NoError(t, ordering.VerifyDense(snapshot))

	require.Len(t, snapshot.Lists, 3)
	assert.Equal(t, "b1-l0", snapshot.Lists[0].ID)
	assert.Len(t, snapshot.Lists[0].Cards, 2)
	assert.Empty(t, snapshot.Lists[1].Cards)
	assert.Equal(t, "b1-l2-c2", snapshot.Lists[2].Cards[2].ID)
}

func TestApplyPositionUpdates_CrossListMove(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	owner := testutil.SeedUser(t, s, "ada")
	testutil.SeedBoard(t, s, "b1", owner.ID, 3, 2)

	current, err := s.LoadSnapshot(ctx, "b1")
	require.NoError(t, err)

	desired := ordering.Arrangement{Lists: []ordering.ListOrder{
		{ID: "b1-l0", Cards: []string{"b1-l0-c0", "b1-l0-c1"}},
		{ID: "b1-l1", Cards: []string{"b1-l0-c2", "b1-l1-c0", "b1-l1-c1"}},
	}}
	updates, err := ordering.Reconcile(current, desired)
	require.NoError(t, err)
	require.NoError(t, s.ApplyPositionUpdates(ctx, "b1", updates))

	after, err := s.LoadSnapshot(ctx, "b1")
	require.NoError(t, err)
	require.NoError(t, ordering.VerifyDense(after))
	assert.Len(t, after.Lists[0].Cards, 2)
	require.Len(t, after.Lists[1].Cards, 3)
	assert.Equal(t, "b1-l0-c2", after.Lists[1].Cards[0].ID)
}

func TestApplyPositionUpdates_NeverTouchesAnotherBoard(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	owner := testutil.SeedUser(t, s, "ada")
	testutil.SeedBoard(t, s, "b1", owner.ID, 1)
	testutil.SeedBoard(t, s, "b2", owner.ID, 2)

	err := s.ApplyPositionUpdates(ctx, "b1", []ordering.Update{
		{Kind: ordering.KindCard, ID: "b2-l0-c1", Position: 0, ListID: "b1-l0"},
	})
	assert.ErrorIs(t, err, store.ErrRowMissing)

	err = s.ApplyPositionUpdates(ctx, "b1", []ordering.Update{
		{Kind: ordering.KindList, ID: "b2-l0", Position: 5},
	})
	assert.ErrorIs(t, err, store.ErrRowMissing)

	other, err := s.LoadSnapshot(ctx, "b2")
	require.NoError(t, err)
	assert.NoError(t, ordering.VerifyDense(other))
	assert.Len(t, other.Lists[0].Cards, 2)
}

func TestApplyPositionUpdates_FailureMidApplyRollsBackEverything(t *testing.T) {
	ctx := context.Background()
	database := testutil.NewTestDB(t)
	s := store.NewSQLStore(database, store.DialectSQLite)
	owner := testutil.SeedUser(t, s, "ada")
	testutil.SeedBoard(t, s, "b1", owner.ID, 3, 2)

	before, err := s.LoadSnapshot(ctx, "b1")
	require.NoError(t, err)

	injected := errors.New("disk full")
	uow := &testutil.FailOnNthExecUoW{DB: database, FailOn: 3, Err: injected}
	err = uow.WithinTx(ctx, func(ctx context.Context, tx store.DBTX) error {
		txStore := s.WithTx(tx)
		if _, err := txStore.AdvanceBoardVersion(ctx, "b1", nil); err != nil {
			return err
		}
		current, err := txStore.LoadSnapshot(ctx, "b1")
		if err != nil {
			return err
		}
		updates, err := ordering.Reconcile(current, ordering.Arrangement{Lists: []ordering.ListOrder{
			{ID: "b1-l1", Cards: []string{"b1-l0-c0", "b1-l1-c0", "b1-l1-c1"}},
			{ID: "b1-l0", Cards: []string{"b1-l0-c2", "b1-l0-c1"}},
		}})
		if err != nil {
			return err
		}
		return txStore.ApplyPositionUpdates(ctx, "b1", updates)
	})
	require.ErrorIs(t, err, injected)

	after, err := s.LoadSnapshot(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, before, after, "no partial arrangement is visible")

	board, err := s.GetBoard(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), board.Version)
}
