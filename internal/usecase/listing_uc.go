package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"desapego-pix/internal/clock"
	"desapego-pix/internal/domain"
	"desapego-pix/internal/domain/model"
	"desapego-pix/internal/domain/ports/repository"
	"desapego-pix/internal/infra/logging"
)

// Compile-time check
var _ ListingUseCase = (*listingUC)(nil)

// ListingUseCase covers the seller and moderation actions around a listing.
// Payment activation is not here; see ReconcileUseCase.
type ListingUseCase interface {
	Create(ctx context.Context, sellerID, title string, planID int, priceCents int64) (*model.Listing, error)
	Get(ctx context.Context, id string) (*model.Listing, error)
	UpdatePrice(ctx context.Context, id string, priceCents int64) (*model.Listing, error)
	MarkSold(ctx context.Context, id string) (*model.Listing, error)
	Reopen(ctx context.Context, id string) (*model.Listing, error)
	Ban(ctx context.Context, id string) (*model.Listing, error)
	Unban(ctx context.Context, id string) (*model.Listing, error)
}

type listingUC struct {
	listings repository.ListingRepository
	plans    *model.PlanCatalog
	tm       repository.TransactionManager
	clock    clock.Clock
	log      *zerolog.Logger
}

func NewListingUseCase(listings repository.ListingRepository, plans *model.PlanCatalog, tm repository.TransactionManager, clk clock.Clock, logger *zerolog.Logger) *listingUC {
	l := logger.With().Str("component", "ListingUC").Logger()
	return &listingUC{listings: listings, plans: plans, tm: tm, clock: clk, log: &l}
}

func (u *listingUC) Create(ctx context.Context, sellerID, title string, planID int, priceCents int64) (*model.Listing, error) {
	defer logging.TraceDuration(u.log, "ListingUC.Create")()

	sellerID = strings.TrimSpace(sellerID)
	title = strings.TrimSpace(title)
	if sellerID == "" || title == "" || priceCents < 0 {
		return nil, domain.ErrInvalidArgument
	}
	plan, ok := u.plans.Lookup(planID)
	if !ok {
		return nil, domain.ErrInvalidArgument
	}

	now := u.clock.Now()
	l := &model.Listing{
		ID:         ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		SellerID:   sellerID,
		Title:      title,
		PlanID:     plan.ID,
		PriceCents: priceCents,
		Status:     model.ListingStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := u.listings.Create(ctx, repository.NoTX, l); err != nil {
		u.log.Error().Err(err).Str("listing_id", l.ID).Msg("create listing failed")
		return nil, err
	}
	u.log.Info().Str("listing_id", l.ID).Int("plan_id", plan.ID).Msg("listing created, waiting for payment")
	return l, nil
}

func (u *listingUC) Get(ctx context.Context, id string) (*model.Listing, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.listings.FindByID(ctx, repository.NoTX, id)
}

func (u *listingUC) UpdatePrice(ctx context.Context, id string, priceCents int64) (*model.Listing, error) {
	defer logging.TraceDuration(u.log, "ListingUC.UpdatePrice")()
	if priceCents < 0 {
		return nil, domain.ErrInvalidArgument
	}
	var out *model.Listing
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		l, err := u.listings.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if l.Status == model.ListingStatusSold {
			return domain.ErrInvalidTransition
		}
		if err := u.listings.UpdatePrice(ctx, tx, id, priceCents); err != nil {
			return err
		}
		out, err = u.listings.FindByID(ctx, tx, id)
		return err
	})
	return out, err
}

func (u *listingUC) MarkSold(ctx context.Context, id string) (*model.Listing, error) {
	return u.transition(ctx, id, "sold", func(*model.Listing) (model.ListingStatus, model.ListingStatus, bool) {
		return model.ListingStatusActive, model.ListingStatusSold, true
	})
}

func (u *listingUC) Reopen(ctx context.Context, id string) (*model.Listing, error) {
	return u.transition(ctx, id, "reopen", func(*model.Listing) (model.ListingStatus, model.ListingStatus, bool) {
		return model.ListingStatusSold, model.ListingStatusActive, true
	})
}

func (u *listingUC) Ban(ctx context.Context, id string) (*model.Listing, error) {
	return u.transition(ctx, id, "ban", func(l *model.Listing) (model.ListingStatus, model.ListingStatus, bool) {
		return l.Status, model.ListingStatusBanned, l.Status != model.ListingStatusBanned
	})
}

// Unban restores a banned listing. A listing that was never paid goes back to
// pending so it still has to go through activation.
func (u *listingUC) Unban(ctx context.Context, id string) (*model.Listing, error) {
	return u.transition(ctx, id, "unban", func(l *model.Listing) (model.ListingStatus, model.ListingStatus, bool) {
		if l.Paid() {
			return model.ListingStatusBanned, model.ListingStatusActive, true
		}
		return model.ListingStatusBanned, model.ListingStatusPending, true
	})
}

type transitionRule func(current *model.Listing) (from, to model.ListingStatus, allowed bool)

func (u *listingUC) transition(ctx context.Context, id, action string, rule transitionRule) (*model.Listing, error) {
	defer logging.TraceDuration(u.log, "ListingUC."+action)()

	var out *model.Listing
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ctx context.Context, tx repository.Tx) error {
		l, err := u.listings.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		from, to, allowed := rule(l)
		if !allowed || l.Status != from {
			return domain.ErrInvalidTransition
		}
		ok, err := u.listings.TransitionStatus(ctx, tx, id, from, to)
		if err != nil {
			return err
		}
		if !ok {
			// a concurrent writer (usually payment activation) moved it first
			return domain.ErrInvalidTransition
		}
		out, err = u.listings.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidTransition) && !errors.Is(err, domain.ErrNotFound) {
			u.log.Error().Err(err).Str("listing_id", id).Str("action", action).Msg("listing transition failed")
		}
		return nil, err
	}
	u.log.Info().Str("listing_id", id).Str("action", action).Str("status", string(out.Status)).Msg("listing status changed")
	return out, nil
}
