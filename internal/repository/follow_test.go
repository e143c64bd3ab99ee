package repository

import (
	"context"
	"sync"
	"testing"

	"echoes/internal/models"
	"echoes/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowRepository_UpsertResetsStatus(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()
	ada := testutil.CreateUser(t, db, "ada")
	bob := testutil.CreateUser(t, db, "bob")

	first, err := repo.UpsertRequest(ctx, ada.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FollowRequestPending, first.Status)

	require.NoError(t, repo.SetStatus(ctx, first.ID, models.FollowRequestRejected))

	again, err := repo.UpsertRequest(ctx, ada.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID, "one row per directed pair")
	assert.Equal(t, models.FollowRequestPending, again.Status)

	var count int64
	require.NoError(t, db.Model(&models.FollowRequest{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestFollowRepository_AcceptIsIdempotent(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()
	ada := testutil.CreateUser(t, db, "ada")
	bob := testutil.CreateUser(t, db, "bob")

	req, err := repo.UpsertRequest(ctx, ada.ID, bob.ID)
	require.NoError(t, err)

	transitioned, err := repo.Accept(ctx, req)
	require.NoError(t, err)
	assert.True(t, transitioned)
	transitioned, err = repo.Accept(ctx, req)
	require.NoError(t, err)
	assert.False(t, transitioned, "second accept changes nothing")

	var edges int64
	require.NoError(t, db.Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", ada.ID, bob.ID).
		Count(&edges).Error)
	assert.Equal(t, int64(1), edges)

	stored, err := repo.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FollowRequestAccepted, stored.Status)

	ids, err := repo.FollowingIDs(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{bob.ID}, ids)

	following, err := repo.ListFollowing(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, "bob", following[0].Name)

	none, err := repo.FollowingIDs(ctx, bob.ID)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestFollowRepository_ConcurrentAccept(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()
	ada := testutil.CreateUser(t, db, "ada")
	bob := testutil.CreateUser(t, db, "bob")

	req, err := repo.UpsertRequest(ctx, ada.ID, bob.ID)
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]bool, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			own := *req
			results[i], errs[i] = repo.Accept(ctx, &own)
		}(i)
	}
	wg.Wait()

	transitions := 0
	for i := range results {
		require.NoError(t, errs[i])
		if results[i] {
			transitions++
		}
	}
	assert.Equal(t, 1, transitions)

	var edges int64
	require.NoError(t, db.Model(&models.Follow{}).Count(&edges).Error)
	assert.Equal(t, int64(1), edges)
	stored, err := repo.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FollowRequestAccepted, stored.Status)
}

func TestFollowRepository_PendingLists(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()
	ada := testutil.CreateUser(t, db, "ada")
	bob := testutil.CreateUser(t, db, "bob")
	eve := testutil.CreateUser(t, db, "eve")

	_, err := repo.UpsertRequest(ctx, ada.ID, bob.ID)
	require.NoError(t, err)
	rejected, err := repo.UpsertRequest(ctx, ada.ID, eve.ID)
	require.NoError(t, err)
	require.NoError(t, repo.SetStatus(ctx, rejected.ID, models.FollowRequestRejected))

	outgoing, err := repo.ListOutgoing(ctx, ada.ID, models.FollowRequestPending)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	require.NotNil(t, outgoing[0].Target)
	assert.Equal(t, "bob", outgoing[0].Target.Name)

	incoming, err := repo.ListIncoming(ctx, bob.ID, models.FollowRequestPending)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	require.NotNil(t, incoming[0].Requester)
	assert.Equal(t, "ada", incoming[0].Requester.Name)

	pending, err := repo.PendingTargetIDs(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{bob.ID}, pending)

	err = repo.SetStatus(ctx, 9999, models.FollowRequestRejected)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	_, err = repo.GetRequest(ctx, 9999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
