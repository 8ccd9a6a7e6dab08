package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/E-ugine/kyc-verification-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(idNumber string) domain.Application {
	return domain.Application{
		FullName:    "Jane Doe",
		DateOfBirth: domain.Date{Year: 1990, Month: 1, Day: 2},
		IDNumber:    idNumber,
		Country:     "Kenya",
		Address:     "12 Moi Avenue, Nairobi",
		Status:      domain.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestCreate_AssignsSequentialIDs(t *testing.T) {
	repo := NewApplicationRepository()
	ctx := context.Background()

	a, err := repo.Create(ctx, newApp("ID-0001"))
	require.NoError(t, err)
	b, err := repo.Create(ctx, newApp("ID-0002"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)

	got, err := repo.GetByIDNumber(ctx, "ID-0002")
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestCreate_RejectsUnknownStatus(t *testing.T) {
	repo := NewApplicationRepository()
	app := newApp("ID-0001")
	app.Status = "archived"

	_, err := repo.Create(context.Background(), app)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreate_ConcurrentDuplicatesOnlyOneWins(t *testing.T) {
	repo := NewApplicationRepository()
	var wins, dups atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Create(context.Background(), newApp("SAME-ID"))
			switch {
			case err == nil:
				wins.Add(1)
			case assert.ErrorIs(t, err, domain.ErrDuplicateIdentifier):
				dups.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(31), dups.Load())
	stats, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
}

func TestUpdateStatus_CompareAndSwap(t *testing.T) {
	repo := NewApplicationRepository()
	ctx := context.Background()
	app, err := repo.Create(ctx, newApp("ID-0001"))
	require.NoError(t, err)

	reason := "blurry photo"
	updated, err := repo.UpdateStatus(ctx, domain.StatusUpdate{
		ID: app.ID, From: domain.StatusPending, To: domain.StatusRejected,
		RejectionReason: &reason, UpdatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, updated.Status)
	require.NotNil(t, updated.RejectionReason)
	assert.Equal(t, "blurry photo", *updated.RejectionReason)
	assert.NotNil(t, updated.UpdatedAt)

	_, err = repo.UpdateStatus(ctx, domain.StatusUpdate{ID: app.ID, From: domain.StatusPending, To: domain.StatusApproved})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = repo.UpdateStatus(ctx, domain.StatusUpdate{ID: 99, From: domain.StatusPending, To: domain.StatusApproved})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateStatus_ConcurrentReviewsOnlyOneWins(t *testing.T) {
	repo := NewApplicationRepository()
	app, err := repo.Create(context.Background(), newApp("ID-0001"))
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.UpdateStatus(context.Background(), domain.StatusUpdate{
				ID: app.ID, From: domain.StatusPending, To: domain.StatusApproved, UpdatedAt: time.Now().UTC(),
			})
			if err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestList_FiltersAndPaginatesInCreationOrder(t *testing.T) {
	repo := NewApplicationRepository()
	ctx := context.Background()
	for i := 1; i <= 6; i++ {
		app, err := repo.Create(ctx, newApp(fmt.Sprintf("ID-%04d", i)))
		require.NoError(t, err)
		if i%2 == 0 {
			_, err = repo.UpdateStatus(ctx, domain.StatusUpdate{ID: app.ID, From: domain.StatusPending, To: domain.StatusApproved, UpdatedAt: time.Now()})
			require.NoError(t, err)
		}
	}

	approved := domain.StatusApproved
	got, err := repo.List(ctx, domain.ListFilter{Status: &approved, Offset: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ID-0004", got[0].IDNumber)
	assert.Equal(t, "ID-0006", got[1].IDNumber)

	page, err := repo.List(ctx, domain.ListFilter{Offset: 0, Limit: 4})
	require.NoError(t, err)
	require.Len(t, page, 4)
	for i, app := range page {
		assert.Equal(t, int64(i+1), app.ID)
	}
}
