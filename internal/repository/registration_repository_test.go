package repository_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-registration/internal/model"
	"github.com/iliyamo/event-registration/internal/repository"
	"github.com/iliyamo/event-registration/internal/testutil"
)

var t0 = time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

func newRegRepo(t *testing.T) (*repository.RegistrationRepo, uint64) {
	t.Helper()
	db := testutil.NewTestDB(t)
	return repository.NewRegistrationRepo(db), testutil.InsertEvent(t, db, "GopherCon")
}

func TestRegistrationRepo_CreateAndGet(t *testing.T) {
	repo, ev := newRegRepo(t)
	ctx := context.Background()

	reg, err := repo.Create(ctx, "u1", ev, t0)
	require.NoError(t, err)
	assert.NotZero(t, reg.ID)
	assert.Equal(t, "u1", reg.UserID)
	assert.Equal(t, ev, reg.EventID)
	assert.Equal(t, model.StatusSelected, reg.Status)
	assert.Nil(t, reg.ReceiptRef)
	assert.Nil(t, reg.Notes)
	assert.True(t, reg.CreatedAt.Equal(t0))

	got, err := repo.Get(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, got.ID)
}

func TestRegistrationRepo_CreateDuplicateConflicts(t *testing.T) {
	repo, ev := newRegRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, "u1", ev, t0)
	require.NoError(t, err)
	_, err = repo.Create(ctx, "u1", ev, t0)
	assert.True(t, errors.Is(err, repository.ErrConflict), "got %v", err)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// A different user may still register for the same event.
	_, err = repo.Create(ctx, "u2", ev, t0)
	assert.NoError(t, err)
}

func TestRegistrationRepo_GetMissing(t *testing.T) {
	repo, _ := newRegRepo(t)
	_, err := repo.Get(context.Background(), 999)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestRegistrationRepo_ListByUserOrdersByCreation(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewRegistrationRepo(db)
	ctx := context.Background()
	e1 := testutil.InsertEvent(t, db, "One")
	e2 := testutil.InsertEvent(t, db, "Two")

	_, err := repo.Create(ctx, "u1", e2, t0.Add(time.Second))
	require.NoError(t, err)
	_, err = repo.Create(ctx, "u1", e1, t0)
	require.NoError(t, err)
	_, err = repo.Create(ctx, "u2", e1, t0)
	require.NoError(t, err)

	mine, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, e1, mine[0].EventID)
	assert.Equal(t, e2, mine[1].EventID)

	none, err := repo.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRegistrationRepo_SetReceiptIsConditional(t *testing.T) {
	repo, ev := newRegRepo(t)
	ctx := context.Background()
	reg, err := repo.Create(ctx, "u1", ev, t0)
	require.NoError(t, err)

	updated, err := repo.SetReceipt(ctx, reg.ID, model.StatusSelected, "u1/1/a.pdf", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaymentPending, updated.Status)
	require.NotNil(t, updated.ReceiptRef)
	assert.Equal(t, "u1/1/a.pdf", *updated.ReceiptRef)
	assert.True(t, updated.Consistent())

	// The observed status is stale now.
	_, err = repo.SetReceipt(ctx, reg.ID, model.StatusSelected, "u1/1/b.pdf", t0.Add(2*time.Minute))
	assert.True(t, errors.Is(err, repository.ErrInvalidTransition), "got %v", err)

	got, err := repo.Get(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1/1/a.pdf", *got.ReceiptRef)

	_, err = repo.SetReceipt(ctx, 12345, model.StatusSelected, "x", t0)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestRegistrationRepo_SetDecision(t *testing.T) {
	repo, ev := newRegRepo(t)
	ctx := context.Background()
	reg, err := repo.Create(ctx, "u1", ev, t0)
	require.NoError(t, err)
	_, err = repo.SetReceipt(ctx, reg.ID, model.StatusSelected, "u1/1/a.pdf", t0)
	require.NoError(t, err)

	note := "paid in full"
	done, err := repo.SetDecision(ctx, reg.ID, model.StatusPaymentPending, model.StatusApproved, &note, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, done.Status)
	require.NotNil(t, done.Notes)
	assert.Equal(t, note, *done.Notes)
	assert.True(t, done.UpdatedAt.Equal(t0.Add(time.Hour)))

	_, err = repo.SetDecision(ctx, reg.ID, model.StatusPaymentPending, model.StatusRejected, nil, t0)
	assert.True(t, errors.Is(err, repository.ErrInvalidTransition))
}

func TestRegistrationRepo_SetNotes(t *testing.T) {
	repo, ev := newRegRepo(t)
	ctx := context.Background()
	reg, err := repo.Create(ctx, "u1", ev, t0)
	require.NoError(t, err)

	got, err := repo.SetNotes(ctx, reg.ID, "call back", t0)
	require.NoError(t, err)
	require.NotNil(t, got.Notes)
	assert.Equal(t, "call back", *got.Notes)
	assert.Equal(t, model.StatusSelected, got.Status)

	// Writing identical notes changes no row and must still succeed.
	got, err = repo.SetNotes(ctx, reg.ID, "call back", t0)
	require.NoError(t, err)
	assert.Equal(t, "call back", *got.Notes)

	_, err = repo.SetNotes(ctx, 777, "x", t0)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestRegistrationRepo_Delete(t *testing.T) {
	repo, ev := newRegRepo(t)
	ctx := context.Background()
	allowed := []model.Status{model.StatusSelected, model.StatusPaymentPending}

	reg, err := repo.Create(ctx, "u1", ev, t0)
	require.NoError(t, err)

	err = repo.Delete(ctx, reg.ID, "intruder", allowed)
	assert.True(t, errors.Is(err, repository.ErrForbidden), "got %v", err)

	require.NoError(t, repo.Delete(ctx, reg.ID, "u1", allowed))
	_, err = repo.Get(ctx, reg.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	err = repo.Delete(ctx, reg.ID, "u1", allowed)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestRegistrationRepo_DeleteRefusesDecided(t *testing.T) {
	repo, ev := newRegRepo(t)
	ctx := context.Background()
	reg, err := repo.Create(ctx, "u1", ev, t0)
	require.NoError(t, err)
	_, err = repo.SetReceipt(ctx, reg.ID, model.StatusSelected, "r", t0)
	require.NoError(t, err)
	_, err = repo.SetDecision(ctx, reg.ID, model.StatusPaymentPending, model.StatusApproved, nil, t0)
	require.NoError(t, err)

	err = repo.Delete(ctx, reg.ID, "u1", []model.Status{model.StatusSelected, model.StatusPaymentPending})
	assert.True(t, errors.Is(err, repository.ErrInvalidTransition), "got %v", err)

	_, err = repo.Get(ctx, reg.ID)
	assert.NoError(t, err)
}

func TestRegistrationRepo_ConcurrentDecisionsHaveOneWinner(t *testing.T) {
	repo, ev := newRegRepo(t)
	ctx := context.Background()
	reg, err := repo.Create(ctx, "u1", ev, t0)
	require.NoError(t, err)
	_, err = repo.SetReceipt(ctx, reg.ID, model.StatusSelected, "r", t0)
	require.NoError(t, err)

	const workers = 8
	var (
		wg      sync.WaitGroup
		wins    atomic.Int32
		refused atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			to := model.StatusApproved
			if i%2 == 1 {
				to = model.StatusRejected
			}
			_, err := repo.SetDecision(ctx, reg.ID, model.StatusPaymentPending, to, nil, t0)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, repository.ErrInvalidTransition):
				refused.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(workers-1), refused.Load())
}
