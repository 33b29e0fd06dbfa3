//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"

	"desapego-pix/internal/domain"
	"desapego-pix/internal/domain/model"
	"desapego-pix/internal/domain/ports/repository"
)

func seedListing(t *testing.T, repo *listingRepo, id string, status model.ListingStatus, createdAt time.Time) {
	t.Helper()
	l := &model.Listing{
		ID:         id,
		SellerID:   "seller-1",
		Title:      "Bicicleta aro 29",
		PlanID:     2,
		PriceCents: 45000,
		Status:     status,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
	if err := repo.Create(context.Background(), nil, l); err != nil {
		t.Fatalf("seed listing: %v", err)
	}
}

func TestListingRepo_CreateAndFind(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	repo := NewListingRepo(testPool)
	seedListing(t, repo, "lst-1", model.ListingStatusPending, time.Now().UTC())

	got, err := repo.FindByID(ctx, nil, "lst-1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Status != model.ListingStatusPending || got.PlanID != 2 || got.PaidAt != nil {
		t.Errorf("unexpected listing: %+v", got)
	}

	if _, err := repo.FindByID(ctx, nil, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Create(ctx, nil, got); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists on duplicate id, got %v", err)
	}
}

func TestListingRepo_ActivateIfPending_ConcurrentSingleWinner(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	repo := NewListingRepo(testPool)
	seedListing(t, repo, "lst-race", model.ListingStatusPending, time.Now().UTC())

	const callers = 12
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paid := base.Add(time.Duration(i) * time.Second)
			ok, err := repo.ActivateIfPending(ctx, nil, "lst-race", paid, paid.AddDate(0, 0, 7))
			if err != nil {
				t.Errorf("activate: %v", err)
				return
			}
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winning write, got %d", wins)
	}
	got, _ := repo.FindByID(ctx, nil, "lst-race")
	if got.Status != model.ListingStatusActive || got.PaidAt == nil || got.ExpiresAt == nil {
		t.Fatalf("listing not activated: %+v", got)
	}
	if !got.ExpiresAt.Equal(got.PaidAt.AddDate(0, 0, 7)) {
		t.Errorf("expiry %s does not match paidAt %s + 7d", got.ExpiresAt, got.PaidAt)
	}
}

func TestListingRepo_ActivateIfPending_GuardsTerminalStates(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	repo := NewListingRepo(testPool)
	seedListing(t, repo, "lst-sold", model.ListingStatusSold, time.Now().UTC())
	seedListing(t, repo, "lst-banned", model.ListingStatusBanned, time.Now().UTC())

	now := time.Now().UTC()
	for _, id := range []string{"lst-sold", "lst-banned", "missing"} {
		ok, err := repo.ActivateIfPending(ctx, nil, id, now, now.AddDate(0, 0, 1))
		if err != nil || ok {
			t.Errorf("%s: expected (false, nil), got (%v, %v)", id, ok, err)
		}
	}
	if got, _ := repo.FindByID(ctx, nil, "lst-sold"); got.Status != model.ListingStatusSold {
		t.Errorf("sold listing changed to %s", got.Status)
	}
}

func TestListingRepo_TransitionInsideTx(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	repo := NewListingRepo(testPool)
	tm := NewTxManager(testPool)
	seedListing(t, repo, "lst-tx", model.ListingStatusActive, time.Now().UTC())

	err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		l, err := repo.FindByID(ctx, tx, "lst-tx")
		if err != nil {
			return err
		}
		ok, err := repo.TransitionStatus(ctx, tx, l.ID, model.ListingStatusActive, model.ListingStatusSold)
		if err != nil {
			return err
		}
		if !ok {
			t.Error("expected transition to apply")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	got, _ := repo.FindByID(ctx, nil, "lst-tx")
	if got.Status != model.ListingStatusSold {
		t.Errorf("expected vendido, got %s", got.Status)
	}
}

func TestListingRepo_ListPendingCreatedBetween(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	repo := NewListingRepo(testPool)
	now := time.Now().UTC()
	seedListing(t, repo, "old", model.ListingStatusPending, now.Add(-48*time.Hour))
	seedListing(t, repo, "stale", model.ListingStatusPending, now.Add(-10*time.Minute))
	seedListing(t, repo, "fresh", model.ListingStatusPending, now)
	seedListing(t, repo, "paid", model.ListingStatusActive, now.Add(-10*time.Minute))

	got, err := repo.ListPendingCreatedBetween(ctx, nil, now.Add(-24*time.Hour), now.Add(-2*time.Minute), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "stale" {
		t.Fatalf("expected only the stale pending listing, got %+v", got)
	}
}
