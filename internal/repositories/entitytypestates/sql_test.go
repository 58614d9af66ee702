package entitytypestates

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/models"
	"github.com/dmitrijs2005/gophsync/internal/repositories/repository"
	"github.com/dmitrijs2005/gophsync/internal/session"
	"github.com/dmitrijs2005/gophsync/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	models.EntityBase
}

func at(t time.Time) models.Entity {
	return &item{EntityBase: models.EntityBase{ModifiedOn: &t}}
}

var (
	orders = repository.Meta{EntityTypeId: "order", HasCompanyScope: true, HasUserScope: true}
	alice  = session.Static{User: session.User{ID: "alice", CompanyID: "acme"}}
	bob    = session.Static{User: session.User{ID: "bob", CompanyID: "acme"}}
	t0     = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
)

func setupRepo(t *testing.T) *SQLRepository {
	t.Helper()
	db, err := store.Open(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLRepository(db)
}

func TestGetOrCreate_ScopesByPartition(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()

	s, err := r.GetOrCreate(ctx, alice, orders)
	require.NoError(t, err)
	assert.Equal(t, "acme", s.CompanyId)
	assert.Equal(t, "alice", s.UserId)
	assert.Nil(t, s.LastDownloadedOn)

	none, err := r.Find(ctx, bob, orders)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestGetOrCreate_UnscopedTypeIgnoresSession(t *testing.T) {
	r := setupRepo(t)
	countries := repository.Meta{EntityTypeId: "country"}

	s, err := r.GetOrCreate(context.Background(), session.Anonymous, countries)
	require.NoError(t, err)
	assert.Empty(t, s.CompanyId)
	assert.Empty(t, s.UserId)

	_, err = r.GetOrCreate(context.Background(), session.Anonymous, orders)
	require.ErrorIs(t, err, common.ErrNoSession)
}

func TestUpdateOnDownloaded_IsMonotonic(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.UpdateOnDownloaded(ctx, alice, orders, t0,
		[]models.Entity{at(t0.Add(-2 * time.Hour)), at(t0.Add(-time.Hour)), &item{}}))

	s, err := r.Find(ctx, alice, orders)
	require.NoError(t, err)
	assert.True(t, t0.Equal(*s.LastDownloadedOn))
	assert.True(t, t0.Add(-time.Hour).Equal(*s.LastModifiedOn))

	second := t0.Add(time.Hour)
	require.NoError(t, r.UpdateOnDownloaded(ctx, alice, orders, second,
		[]models.Entity{at(t0.Add(-3 * time.Hour))}))

	s, err = r.Find(ctx, alice, orders)
	require.NoError(t, err)
	assert.True(t, second.Equal(*s.LastDownloadedOn))
	assert.True(t, t0.Add(-time.Hour).Equal(*s.LastModifiedOn))

	require.NoError(t, r.UpdateOnDownloaded(ctx, alice, orders, second, nil))
	s, err = r.Find(ctx, alice, orders)
	require.NoError(t, err)
	assert.True(t, t0.Add(-time.Hour).Equal(*s.LastModifiedOn))
}

func TestUpdateOnRemoteDeletions(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.UpdateOnRemoteDeletions(ctx, alice, orders, t0))
	require.NoError(t, r.UpdateOnRemoteDeletions(ctx, alice, orders, t0.Add(-time.Hour)))

	s, err := r.Find(ctx, alice, orders)
	require.NoError(t, err)
	assert.True(t, t0.Equal(*s.LastRemoteDeletionOn))
}

func TestDelete_RemovesEveryPartition(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	other := repository.Meta{EntityTypeId: "invoice", HasUserScope: true}

	_, err := r.GetOrCreate(ctx, alice, orders)
	require.NoError(t, err)
	_, err = r.GetOrCreate(ctx, bob, orders)
	require.NoError(t, err)
	_, err = r.GetOrCreate(ctx, alice, other)
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, orders))

	for _, sess := range []session.Session{alice, bob} {
		s, err := r.Find(ctx, sess, orders)
		require.NoError(t, err)
		assert.Nil(t, s)
	}
	kept, err := r.Find(ctx, alice, other)
	require.NoError(t, err)
	assert.NotNil(t, kept)

	require.NoError(t, r.Clear(ctx))
	kept, err = r.Find(ctx, alice, other)
	require.NoError(t, err)
	assert.Nil(t, kept)
}
