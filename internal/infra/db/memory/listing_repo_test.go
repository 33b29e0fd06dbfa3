//go:build !integration

package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"desapego-pix/internal/domain"
	"desapego-pix/internal/domain/model"
)

func TestListingRepo_ActivateIfPending(t *testing.T) {
	ctx := context.Background()
	repo := NewListingRepo()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = repo.Create(ctx, nil, &model.Listing{ID: "a", Status: model.ListingStatusPending, CreatedAt: now})
	_ = repo.Create(ctx, nil, &model.Listing{ID: "b", Status: model.ListingStatusBanned, CreatedAt: now})

	t.Run("concurrent callers produce one write", func(t *testing.T) {
		var wg sync.WaitGroup
		results := make(chan bool, 20)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				paid := now.Add(time.Duration(i) * time.Millisecond)
				ok, err := repo.ActivateIfPending(ctx, nil, "a", paid, paid.AddDate(0, 0, 7))
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				results <- ok
			}(i)
		}
		wg.Wait()
		close(results)
		wins := 0
		for ok := range results {
			if ok {
				wins++
			}
		}
		if wins != 1 || repo.ActivationWrites() != 1 {
			t.Fatalf("expected a single write, wins=%d writes=%d", wins, repo.ActivationWrites())
		}
	})

	t.Run("banned listing is never activated", func(t *testing.T) {
		ok, err := repo.ActivateIfPending(ctx, nil, "b", now, now)
		if err != nil || ok {
			t.Fatalf("expected (false, nil), got (%v, %v)", ok, err)
		}
		got, _ := repo.FindByID(ctx, nil, "b")
		if got.Status != model.ListingStatusBanned || got.PaidAt != nil {
			t.Errorf("banned listing mutated: %+v", got)
		}
	})

	t.Run("returned copies are detached", func(t *testing.T) {
		got, _ := repo.FindByID(ctx, nil, "a")
		got.Status = model.ListingStatusSold
		again, _ := repo.FindByID(ctx, nil, "a")
		if again.Status != model.ListingStatusActive {
			t.Errorf("store was mutated through a returned pointer")
		}
	})
}

func TestListingRepo_CreateDuplicateAndMissing(t *testing.T) {
	ctx := context.Background()
	repo := NewListingRepo()
	l := &model.Listing{ID: "x", Status: model.ListingStatusPending}
	if err := repo.Create(ctx, nil, l); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, nil, l); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
	if _, err := repo.FindByID(ctx, nil, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := repo.UpdatePrice(ctx, nil, "nope", 10); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListingRepo_ListPendingCreatedBetween(t *testing.T) {
	ctx := context.Background()
	repo := NewListingRepo()
	now := time.Now().UTC()
	_ = repo.Create(ctx, nil, &model.Listing{ID: "old", Status: model.ListingStatusPending, CreatedAt: now.Add(-48 * time.Hour)})
	_ = repo.Create(ctx, nil, &model.Listing{ID: "s2", Status: model.ListingStatusPending, CreatedAt: now.Add(-5 * time.Minute)})
	_ = repo.Create(ctx, nil, &model.Listing{ID: "s1", Status: model.ListingStatusPending, CreatedAt: now.Add(-10 * time.Minute)})
	_ = repo.Create(ctx, nil, &model.Listing{ID: "fresh", Status: model.ListingStatusPending, CreatedAt: now})
	_ = repo.Create(ctx, nil, &model.Listing{ID: "sold", Status: model.ListingStatusSold, CreatedAt: now.Add(-5 * time.Minute)})

	got, err := repo.ListPendingCreatedBetween(ctx, nil, now.Add(-24*time.Hour), now.Add(-time.Minute), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "s1" || got[1].ID != "s2" {
		t.Fatalf("unexpected candidates: %+v", got)
	}
}
