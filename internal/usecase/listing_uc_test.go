//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"desapego-pix/internal/domain"
	"desapego-pix/internal/domain/model"
	"desapego-pix/internal/usecase"
)

func (e *testEnv) listings() usecase.ListingUseCase {
	return usecase.NewListingUseCase(e.repo, e.plans, e.tm, e.clock, e.log)
}

func TestListingCreate(t *testing.T) {
	env := newTestEnv()
	uc := env.listings()

	l, err := uc.Create(context.Background(), "seller-9", "  Geladeira  ", 0, 120000)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(l.ID) != 26 {
		t.Errorf("expected ULID id, got %q", l.ID)
	}
	if l.Status != model.ListingStatusPending || l.PlanID != model.DefaultPlanID || l.Title != "Geladeira" {
		t.Errorf("unexpected listing %+v", l)
	}
	if !l.CreatedAt.Equal(scenarioT) {
		t.Errorf("createdAt = %s", l.CreatedAt)
	}
	got, err := uc.Get(context.Background(), l.ID)
	if err != nil || got.ID != l.ID {
		t.Fatalf("Get: %+v %v", got, err)
	}

	for name, fn := range map[string]func() error{
		"no seller":      func() error { _, err := uc.Create(context.Background(), "", "x", 2, 1); return err },
		"no title":       func() error { _, err := uc.Create(context.Background(), "s", " ", 2, 1); return err },
		"negative price": func() error { _, err := uc.Create(context.Background(), "s", "x", 2, -1); return err },
		"unknown plan":   func() error { _, err := uc.Create(context.Background(), "s", "x", 77, 1); return err },
	} {
		if err := fn(); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("%s: expected ErrInvalidArgument, got %v", name, err)
		}
	}
}

func TestListingSellerTransitions(t *testing.T) {
	env := newTestEnv()
	env.seed("lst-1", 2, model.ListingStatusActive)
	uc := env.listings()
	ctx := context.Background()

	l, err := uc.MarkSold(ctx, "lst-1")
	if err != nil || l.Status != model.ListingStatusSold {
		t.Fatalf("MarkSold: %+v %v", l, err)
	}
	if _, err := uc.MarkSold(ctx, "lst-1"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("double sold: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := uc.UpdatePrice(ctx, "lst-1", 500); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("price on sold listing: expected ErrInvalidTransition, got %v", err)
	}
	l, err = uc.Reopen(ctx, "lst-1")
	if err != nil || l.Status != model.ListingStatusActive {
		t.Fatalf("Reopen: %+v %v", l, err)
	}
	l, err = uc.UpdatePrice(ctx, "lst-1", 500)
	if err != nil || l.PriceCents != 500 {
		t.Fatalf("UpdatePrice: %+v %v", l, err)
	}
	if _, err := uc.UpdatePrice(ctx, "lst-1", -5); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("negative price: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := uc.MarkSold(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing: expected ErrNotFound, got %v", err)
	}
}

func TestListingPendingCannotBeSold(t *testing.T) {
	env := newTestEnv()
	env.seed("lst-p", 2, model.ListingStatusPending)
	if _, err := env.listings().MarkSold(context.Background(), "lst-p"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestListingBanUnban(t *testing.T) {
	env := newTestEnv()
	env.seed("never-paid", 2, model.ListingStatusPending)
	env.seed("paid", 2, model.ListingStatusPending)
	env.gateway.Put("1", "paid", model.IntentStatusApproved)
	if _, err := env.reconciler().Reconcile(context.Background(), "1"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	uc := env.listings()
	ctx := context.Background()

	for _, id := range []string{"never-paid", "paid"} {
		l, err := uc.Ban(ctx, id)
		if err != nil || l.Status != model.ListingStatusBanned {
			t.Fatalf("Ban(%s): %+v %v", id, l, err)
		}
		if _, err := uc.Ban(ctx, id); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("double ban: expected ErrInvalidTransition, got %v", err)
		}
	}

	// a late approval must not resurrect a banned listing
	res, err := env.reconciler().Reconcile(ctx, "1")
	if err != nil || res.ListingStatus != model.ListingStatusBanned {
		t.Fatalf("late approval: %+v %v", res, err)
	}

	l, err := uc.Unban(ctx, "never-paid")
	if err != nil || l.Status != model.ListingStatusPending {
		t.Errorf("unban unpaid: %+v %v", l, err)
	}
	l, err = uc.Unban(ctx, "paid")
	if err != nil || l.Status != model.ListingStatusActive {
		t.Errorf("unban paid: %+v %v", l, err)
	}
	if _, err := uc.Unban(ctx, "paid"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("unban active: expected ErrInvalidTransition, got %v", err)
	}
}
