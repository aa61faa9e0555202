package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-registration/internal/model"
	"github.com/iliyamo/event-registration/internal/repository"
	"github.com/iliyamo/event-registration/internal/testutil"
)

func TestEventRepo_CRUD(t *testing.T) {
	repo := repository.NewEventRepo(testutil.NewTestDB(t))
	ctx := context.Background()

	start := time.Date(2031, 3, 1, 0, 0, 0, 0, time.UTC)
	ev := model.Event{Name: "Meetup", Location: "Berlin", StartDate: start, EndDate: start.Add(24 * time.Hour), PriceCents: 1500}
	require.NoError(t, repo.Create(ctx, &ev))
	require.NotZero(t, ev.ID)

	got, err := repo.GetByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Meetup", got.Name)
	assert.Equal(t, uint32(1500), got.PriceCents)
	assert.True(t, got.StartDate.Equal(start))

	got.Location = "Hamburg"
	require.NoError(t, repo.Update(ctx, &got))
	again, err := repo.GetByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hamburg", again.Location)

	require.NoError(t, repo.Delete(ctx, ev.ID))
	_, err = repo.GetByID(ctx, ev.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
	assert.True(t, errors.Is(repo.Delete(ctx, ev.ID), repository.ErrNotFound))

	missing := model.Event{ID: 424242, Name: "x", Location: "y"}
	assert.True(t, errors.Is(repo.Update(ctx, &missing), repository.ErrNotFound))
}

func TestEventRepo_ListAndGetByIDs(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewEventRepo(db)
	ctx := context.Background()
	a := testutil.InsertEvent(t, db, "A")
	b := testutil.InsertEvent(t, db, "B")

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	byID, err := repo.GetByIDs(ctx, []uint64{a, b, 9999})
	require.NoError(t, err)
	assert.Len(t, byID, 2)
	assert.Equal(t, "A", byID[a].Name)
	_, ok := byID[9999]
	assert.False(t, ok)

	empty, err := repo.GetByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestProfileRepo_GetByIDs(t *testing.T) {
	db := testutil.NewTestDB(t)
	testutil.InsertProfile(t, db, "u1", "Ada Lovelace", "ada@example.com")
	repo := repository.NewProfileRepo(db)
	ctx := context.Background()

	got, err := repo.GetByIDs(ctx, []string{"u1", "u2"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got["u1"].FullName)
	assert.Equal(t, "Ada Lovelace", *got["u1"].FullName)
	assert.Nil(t, got["u1"].Phone)

	_, err = repo.GetByID(ctx, "u2")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestRoleRepo_RoleOf(t *testing.T) {
	db := testutil.NewTestDB(t)
	testutil.GrantRole(t, db, "boss", "admin")
	testutil.GrantRole(t, db, "plain", "user")
	repo := repository.NewRoleRepo(db)
	ctx := context.Background()

	for id, want := range map[string]model.Role{"boss": model.RoleAdmin, "plain": model.RoleUser, "unknown": model.RoleUser} {
		got, err := repo.RoleOf(ctx, id)
		require.NoError(t, err, id)
		assert.Equal(t, want, got, id)
	}
}
