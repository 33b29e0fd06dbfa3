//go:build !integration

package sched

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"desapego-pix/internal/clock"
	"desapego-pix/internal/domain/model"
	"desapego-pix/internal/infra/adapters/payment"
	"desapego-pix/internal/infra/db/memory"
	"desapego-pix/internal/infra/worker"
	"desapego-pix/internal/usecase"
)

type fakeLocker struct {
	held     bool
	unlocked int
}

func (f *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if f.held {
		return "", errors.New("held")
	}
	f.held = true
	return "tok", nil
}

func (f *fakeLocker) Unlock(ctx context.Context, key, token string) error {
	f.held = false
	f.unlocked++
	return nil
}

type sweepEnv struct {
	repo    *memory.ListingRepo
	gateway *payment.SandboxGateway
	clock   *clock.FakeClock
	sweeper *PaymentReconciler
}

func newSweepEnv(t *testing.T, locker Locker) *sweepEnv {
	t.Helper()
	nop := zerolog.Nop()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	env := &sweepEnv{
		repo:    memory.NewListingRepo(),
		gateway: payment.NewSandboxGateway(&nop),
		clock:   clock.NewFakeClock(now),
	}
	plans := model.DefaultPlanCatalog()
	uc := usecase.NewReconcileUseCase(env.repo, plans, env.gateway, env.clock, &nop)
	pool := worker.NewPool(2, &nop)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(func() { cancel(); pool.Stop() })
	env.sweeper = NewPaymentReconciler(env.repo, env.gateway, uc, pool, locker, env.clock, ReconcilerOptions{}, &nop)
	return env
}

func (e *sweepEnv) listing(t *testing.T, id string, age time.Duration) {
	t.Helper()
	l := &model.Listing{ID: id, SellerID: "s", Title: "t", PlanID: 2, Status: model.ListingStatusPending, CreatedAt: e.clock.Now().Add(-age)}
	if err := e.repo.Create(context.Background(), nil, l); err != nil {
		t.Fatal(err)
	}
}

func (e *sweepEnv) paidIntent(t *testing.T, listingID string) {
	t.Helper()
	in, err := e.gateway.CreatePixPayment(context.Background(), model.ChargeRequest{AmountCents: 6000, ExternalReference: listingID})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.gateway.Approve(in.ID); err != nil {
		t.Fatal(err)
	}
}

func TestRunOnce_ActivatesStalePaidListings(t *testing.T) {
	env := newSweepEnv(t, nil)
	env.listing(t, "stale-paid", 10*time.Minute)
	env.listing(t, "stale-unpaid", 10*time.Minute)
	env.listing(t, "fresh-paid", 30*time.Second)
	env.listing(t, "ancient-paid", 48*time.Hour)
	env.paidIntent(t, "stale-paid")
	env.paidIntent(t, "fresh-paid")
	env.paidIntent(t, "ancient-paid")
	if _, err := env.gateway.CreatePixPayment(context.Background(), model.ChargeRequest{AmountCents: 6000, ExternalReference: "stale-unpaid"}); err != nil {
		t.Fatal(err)
	}

	n, err := env.sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 1 {
		t.Fatalf("activated = %d, want 1", n)
	}
	want := map[string]model.ListingStatus{
		"stale-paid":   model.ListingStatusActive,
		"stale-unpaid": model.ListingStatusPending,
		"fresh-paid":   model.ListingStatusPending,
		"ancient-paid": model.ListingStatusPending,
	}
	for id, st := range want {
		l, _ := env.repo.FindByID(context.Background(), nil, id)
		if l.Status != st {
			t.Errorf("%s: status = %s, want %s", id, l.Status, st)
		}
	}

	// second sweep finds nothing new to do
	if n, _ := env.sweeper.RunOnce(context.Background()); n != 0 {
		t.Errorf("second sweep activated %d", n)
	}
}

func TestRunOnce_SkipsWithoutLock(t *testing.T) {
	locker := &fakeLocker{held: true}
	env := newSweepEnv(t, locker)
	env.listing(t, "stale-paid", 10*time.Minute)
	env.paidIntent(t, "stale-paid")

	if n, err := env.sweeper.RunOnce(context.Background()); err != nil || n != 0 {
		t.Fatalf("RunOnce: n=%d err=%v", n, err)
	}
	locker.held = false
	if n, _ := env.sweeper.RunOnce(context.Background()); n != 1 {
		t.Errorf("activated = %d, want 1", n)
	}
	if locker.unlocked != 1 || locker.held {
		t.Errorf("lock not released: %+v", locker)
	}
}

func TestRunOnce_ProcessorErrorsDoNotActivate(t *testing.T) {
	env := newSweepEnv(t, nil)
	env.listing(t, "stale-paid", 10*time.Minute)
	env.paidIntent(t, "stale-paid")
	env.gateway.FailLookups(errors.New("processor down"))

	n, err := env.sweeper.RunOnce(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("RunOnce: n=%d err=%v", n, err)
	}
	l, _ := env.repo.FindByID(context.Background(), nil, "stale-paid")
	if l.Status != model.ListingStatusPending {
		t.Errorf("status = %s", l.Status)
	}
}

func TestRunOnce_ReturnsWhenPoolStopsMidSweep(t *testing.T) {
	nop := zerolog.Nop()
	env := newSweepEnv(t, nil)
	for _, id := range []string{"stale-1", "stale-2", "stale-3"} {
		env.listing(t, id, 10*time.Minute)
		env.paidIntent(t, id)
	}

	locker := &fakeLocker{}
	pool := worker.NewPool(1, &nop)
	pctx, pcancel := context.WithCancel(context.Background())
	pool.Start(pctx)
	pcancel()
	uc := usecase.NewReconcileUseCase(env.repo, model.DefaultPlanCatalog(), env.gateway, env.clock, &nop)
	sweeper := NewPaymentReconciler(env.repo, env.gateway, uc, pool, locker, env.clock, ReconcilerOptions{}, &nop)

	returned := make(chan struct{})
	go func() {
		defer close(returned)
		_, _ = sweeper.RunOnce(context.Background())
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("RunOnce did not return after the pool stopped")
	}
	if locker.unlocked != 1 {
		t.Errorf("lock released %d times, want 1", locker.unlocked)
	}
}

func TestRunOnce_ReturnsWhenContextCancelled(t *testing.T) {
	nop := zerolog.Nop()
	env := newSweepEnv(t, nil)
	env.listing(t, "stale-1", 10*time.Minute)
	env.paidIntent(t, "stale-1")

	// never started: queued tasks are not picked up
	pool := worker.NewPool(1, &nop)
	t.Cleanup(pool.Stop)
	uc := usecase.NewReconcileUseCase(env.repo, model.DefaultPlanCatalog(), env.gateway, env.clock, &nop)
	sweeper := NewPaymentReconciler(env.repo, env.gateway, uc, pool, nil, env.clock, ReconcilerOptions{}, &nop)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := sweeper.RunOnce(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
}
