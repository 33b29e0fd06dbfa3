package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"desapego-pix/internal/clock"
	"desapego-pix/internal/domain"
	"desapego-pix/internal/domain/model"
	"desapego-pix/internal/domain/ports/adapter"
	"desapego-pix/internal/domain/ports/repository"
	"desapego-pix/internal/infra/logging"
	"desapego-pix/internal/infra/metrics"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileResult reports what a reconciliation pass saw and did.
// Activated is true only for the caller whose write moved the listing out of pending.
type ReconcileResult struct {
	IntentID      string
	IntentStatus  model.IntentStatus
	ListingID     string
	ListingStatus model.ListingStatus
	Activated     bool
}

// ReconcileUseCase turns a processor intent into at most one listing activation.
// It is safe to call concurrently and repeatedly for the same intent.
type ReconcileUseCase interface {
	Reconcile(ctx context.Context, intentID string) (*ReconcileResult, error)
	// ReconcileIntent skips the processor lookup for an intent the caller already fetched
	// from the processor (the sweeper's search results).
	ReconcileIntent(ctx context.Context, intent *model.PaymentIntent) (*ReconcileResult, error)
}

type channelKey struct{}

// WithChannel tags ctx with the entry point driving reconciliation (webhook, poll, sweep).
func WithChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, channelKey{}, channel)
}

func channelFrom(ctx context.Context) string {
	if v, ok := ctx.Value(channelKey{}).(string); ok && v != "" {
		return v
	}
	return "direct"
}

type reconcileUC struct {
	listings repository.ListingRepository
	plans    *model.PlanCatalog
	gateway  adapter.PaymentGateway
	clock    clock.Clock
	log      *zerolog.Logger
}

func NewReconcileUseCase(listings repository.ListingRepository, plans *model.PlanCatalog, gateway adapter.PaymentGateway, clk clock.Clock, logger *zerolog.Logger) *reconcileUC {
	l := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{listings: listings, plans: plans, gateway: gateway, clock: clk, log: &l}
}

func (u *reconcileUC) Reconcile(ctx context.Context, intentID string) (*ReconcileResult, error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.Reconcile")()
	channel := channelFrom(ctx)

	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	// The processor is the only source of truth for the payment status.
	intent, err := u.gateway.GetPayment(ctx, intentID)
	if err != nil {
		log := logging.With(logging.WithIntentID(ctx, intentID), u.log)
		switch {
		case errors.Is(err, domain.ErrPaymentNotConfigured):
			metrics.IncReconcile(channel, "not_configured")
			log.Debug().Str("channel", channel).Msg("processor credentials missing, lookup skipped")
			return nil, err
		case errors.Is(err, domain.ErrNotFound):
			metrics.IncReconcile(channel, "intent_not_found")
		default:
			metrics.IncReconcile(channel, "upstream_error")
		}
		log.Warn().Err(err).Str("channel", channel).Msg("processor lookup failed")
		return nil, err
	}
	if intent.ID == "" {
		intent.ID = intentID
	}
	return u.apply(ctx, channel, intent)
}

func (u *reconcileUC) ReconcileIntent(ctx context.Context, intent *model.PaymentIntent) (*ReconcileResult, error) {
	if intent == nil || intent.ID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.apply(ctx, channelFrom(ctx), intent)
}

func (u *reconcileUC) apply(ctx context.Context, channel string, intent *model.PaymentIntent) (*ReconcileResult, error) {
	ctx = logging.WithListingID(logging.WithIntentID(ctx, intent.ID), intent.ExternalReference)
	log := logging.With(ctx, u.log).With().Str("channel", channel).Logger()

	res := &ReconcileResult{
		IntentID:     intent.ID,
		IntentStatus: intent.Status,
		ListingID:    intent.ExternalReference,
	}

	if intent.Status != model.IntentStatusApproved {
		metrics.IncReconcile(channel, "not_approved")
		if res.ListingID == "" {
			return res, nil
		}
		l, err := u.listings.FindByID(ctx, repository.NoTX, res.ListingID)
		switch {
		case err == nil:
			res.ListingStatus = l.Status
		case errors.Is(err, domain.ErrNotFound):
			log.Debug().Msg("intent references an unknown listing")
		default:
			log.Warn().Err(err).Msg("listing read failed")
		}
		return res, nil
	}

	if res.ListingID == "" {
		metrics.IncReconcile(channel, "listing_not_found")
		log.Warn().Msg("approved intent without external reference")
		return res, domain.ErrNotFound
	}
	listing, err := u.listings.FindByID(ctx, repository.NoTX, res.ListingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncReconcile(channel, "listing_not_found")
			log.Warn().Msg("approved intent for an unknown listing")
		} else {
			metrics.IncReconcile(channel, "store_error")
			log.Error().Err(err).Msg("listing read failed")
		}
		return res, err
	}
	if listing.Status != model.ListingStatusPending {
		res.ListingStatus = listing.Status
		metrics.IncReconcile(channel, guardedOutcome(listing.Status))
		log.Debug().Str("status", string(listing.Status)).Msg("listing not pending, nothing to activate")
		return res, nil
	}

	plan, _ := u.plans.Lookup(listing.PlanID)
	if intent.AmountCents > 0 && plan.PriceCents > 0 && intent.AmountCents != plan.PriceCents {
		log.Warn().Int64("amount_cents", intent.AmountCents).Int64("plan_price_cents", plan.PriceCents).Msg("approved amount differs from plan price")
	}
	paidAt, expiresAt := model.ActivationWindow(u.clock.Now(), u.plans.DurationDays(listing.PlanID))

	won, err := u.listings.ActivateIfPending(ctx, repository.NoTX, listing.ID, paidAt, expiresAt)
	if err != nil {
		metrics.IncReconcile(channel, "store_error")
		log.Error().Err(err).Msg("listing activation write failed")
		return res, err
	}
	res.Activated = won

	after, err := u.listings.FindByID(ctx, repository.NoTX, listing.ID)
	switch {
	case err == nil:
		res.ListingStatus = after.Status
	case won:
		res.ListingStatus = model.ListingStatusActive
	default:
		log.Warn().Err(err).Msg("listing re-read failed after lost activation race")
	}

	if won {
		metrics.IncReconcile(channel, "activated")
		metrics.IncActivation(channel)
		log.Info().Time("paid_at", paidAt).Time("expires_at", expiresAt).Msg("listing activated")
	} else {
		metrics.IncReconcile(channel, "lost_race")
		log.Debug().Str("status", string(res.ListingStatus)).Msg("activation already done by another caller")
	}
	return res, nil
}

func guardedOutcome(s model.ListingStatus) string {
	if s == model.ListingStatusActive {
		return "already_active"
	}
	return "guarded"
}
