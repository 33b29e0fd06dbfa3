package sched

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"desapego-pix/internal/clock"
	"desapego-pix/internal/domain/model"
	"desapego-pix/internal/domain/ports/adapter"
	"desapego-pix/internal/domain/ports/repository"
	"desapego-pix/internal/infra/metrics"
	"desapego-pix/internal/infra/worker"
	"desapego-pix/internal/usecase"
)

const sweepLockKey = "desapego:reconcile-sweep"

// Locker elects a single sweeper across replicas.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
}

type ReconcilerOptions struct {
	Interval   time.Duration // how often to scan
	StaleAfter time.Duration // listings younger than this are left to webhook and poll
	MaxAge     time.Duration // listings older than this are not retried
	LockTTL    time.Duration
	Batch      int
}

// PaymentReconciler periodically looks for pending listings that may have been paid
// without any notification reaching us (lost webhook, closed browser), and feeds the
// processor's answer into the same reconciliation path as webhook and poll.
type PaymentReconciler struct {
	listings repository.ListingRepository
	gateway  adapter.PaymentGateway
	uc       usecase.ReconcileUseCase
	pool     *worker.Pool
	locker   Locker // optional
	clock    clock.Clock
	opts     ReconcilerOptions
	log      *zerolog.Logger
}

func NewPaymentReconciler(listings repository.ListingRepository, gateway adapter.PaymentGateway, uc usecase.ReconcileUseCase, pool *worker.Pool, locker Locker, clk clock.Clock, opts ReconcilerOptions, logger *zerolog.Logger) *PaymentReconciler {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 2 * time.Minute
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 24 * time.Hour
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = opts.Interval - opts.Interval/6
	}
	if opts.Batch <= 0 {
		opts.Batch = 200
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{listings: listings, gateway: gateway, uc: uc, pool: pool, locker: locker, clock: clk, opts: opts, log: &l}
}

func (w *PaymentReconciler) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.opts.Interval).Msg("reconciliation sweeper started")
	t := time.NewTicker(w.opts.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("reconciliation sweeper stopped")
			return
		case <-t.C:
			if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.log.Warn().Err(err).Msg("sweep failed")
			}
		}
	}
}

// RunOnce performs one sweep and returns how many listings it activated.
func (w *PaymentReconciler) RunOnce(ctx context.Context) (int, error) {
	if !w.gateway.Configured() {
		metrics.IncSweepRun("skipped")
		return 0, nil
	}
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, sweepLockKey, w.opts.LockTTL)
		if err != nil {
			metrics.IncSweepRun("skipped")
			w.log.Debug().Err(err).Msg("sweep lock not acquired")
			return 0, nil
		}
		defer func() {
			uctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := w.locker.Unlock(uctx, sweepLockKey, token); err != nil {
				w.log.Warn().Err(err).Msg("sweep unlock failed")
			}
		}()
	}

	now := w.clock.Now()
	candidates, err := w.listings.ListPendingCreatedBetween(ctx, repository.NoTX, now.Add(-w.opts.MaxAge), now.Add(-w.opts.StaleAfter), w.opts.Batch)
	if err != nil {
		metrics.IncSweepRun("error")
		return 0, err
	}
	metrics.SetSweepCandidates(len(candidates))
	if len(candidates) == 0 {
		metrics.IncSweepRun("ok")
		return 0, nil
	}

	sctx := usecase.WithChannel(ctx, metrics.ChannelSweep)
	var activated int32
	var wg sync.WaitGroup
	for _, l := range candidates {
		listingID := l.ID
		wg.Add(1)
		err := w.pool.Submit(sctx, func(ctx context.Context) error {
			defer wg.Done()
			ok, err := w.sweepListing(ctx, listingID)
			if ok {
				atomic.AddInt32(&activated, 1)
			}
			return err
		})
		if err != nil {
			wg.Done()
			metrics.IncSweepRun("error")
			_ = w.wait(ctx, &wg)
			return int(atomic.LoadInt32(&activated)), err
		}
	}
	if err := w.wait(ctx, &wg); err != nil {
		metrics.IncSweepRun("error")
		return int(atomic.LoadInt32(&activated)), err
	}

	n := int(atomic.LoadInt32(&activated))
	metrics.IncSweepRun("ok")
	w.log.Info().Int("candidates", len(candidates)).Int("activated", n).Msg("sweep finished")
	return n, nil
}

// wait returns once every submitted task has finished, ctx ends or the pool shuts down
// with tasks it will never run.
func (w *PaymentReconciler) wait(ctx context.Context, wg *sync.WaitGroup) error {
	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.pool.Done():
		select {
		case <-finished:
			return nil
		default:
			return worker.ErrPoolStopped
		}
	}
}

func (w *PaymentReconciler) sweepListing(ctx context.Context, listingID string) (bool, error) {
	intents, err := w.gateway.SearchByExternalReference(ctx, listingID)
	if err != nil {
		return false, err
	}
	for _, in := range intents {
		if in.Status != model.IntentStatusApproved {
			continue
		}
		if in.ExternalReference == "" {
			in.ExternalReference = listingID
		}
		res, err := w.uc.ReconcileIntent(ctx, in)
		if err != nil {
			return false, err
		}
		return res.Activated, nil
	}
	return false, nil
}
