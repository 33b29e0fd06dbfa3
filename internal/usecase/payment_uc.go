package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"desapego-pix/internal/domain"
	"desapego-pix/internal/domain/model"
	"desapego-pix/internal/domain/ports/adapter"
	"desapego-pix/internal/domain/ports/repository"
	"desapego-pix/internal/infra/logging"
	"desapego-pix/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

const (
	DefaultPayerEmail     = "comprador@desapegopiaui.com.br"
	defaultPayerFirstName = "Comprador"
	defaultPayerLastName  = "Desapego"
	defaultChargeTimeout  = 10 * time.Second
)

// CreateIntentInput is a buyer's request to pay for a listing's plan.
// PlanID 0 means "the listing's plan"; AmountCents nil means "the plan price".
type CreateIntentInput struct {
	ListingID   string
	PlanID      int
	AmountCents *int64
	Description string
	PayerEmail  string
}

type PaymentUseCase interface {
	// CreateIntent opens a PIX charge for a pending listing. Nothing is written locally.
	CreateIntent(ctx context.Context, in CreateIntentInput) (*model.PaymentIntent, error)
}

type PaymentOptions struct {
	ChargeTimeout     time.Duration
	DefaultPayerEmail string
	Dev               bool
}

type paymentUC struct {
	listings repository.ListingRepository
	plans    *model.PlanCatalog
	gateway  adapter.PaymentGateway
	opts     PaymentOptions
	log      *zerolog.Logger
}

func NewPaymentUseCase(listings repository.ListingRepository, plans *model.PlanCatalog, gateway adapter.PaymentGateway, opts PaymentOptions, logger *zerolog.Logger) *paymentUC {
	if opts.ChargeTimeout <= 0 {
		opts.ChargeTimeout = defaultChargeTimeout
	}
	if opts.DefaultPayerEmail == "" {
		opts.DefaultPayerEmail = DefaultPayerEmail
	}
	l := logger.With().Str("component", "PaymentUC").Str("gateway", gateway.Name()).Logger()
	return &paymentUC{listings: listings, plans: plans, gateway: gateway, opts: opts, log: &l}
}

func (u *paymentUC) CreateIntent(ctx context.Context, in CreateIntentInput) (*model.PaymentIntent, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.CreateIntent")()
	log := logging.With(logging.WithListingID(ctx, in.ListingID), u.log)

	// Checked before anything else: without credentials there is nothing to offer.
	if !u.gateway.Configured() {
		metrics.IncPixIntent("config_error")
		log.Error().Msg("payment processor credentials are not configured")
		return nil, domain.ErrPaymentNotConfigured
	}

	in.ListingID = strings.TrimSpace(in.ListingID)
	if in.ListingID == "" {
		metrics.IncPixIntent("rejected_input")
		return nil, domain.ErrInvalidArgument
	}
	listing, err := u.listings.FindByID(ctx, repository.NoTX, in.ListingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncPixIntent("rejected_input")
		}
		return nil, err
	}
	if listing.Status != model.ListingStatusPending {
		metrics.IncPixIntent("rejected_input")
		return nil, domain.ErrListingNotPending
	}

	plan, err := u.resolvePlan(listing, in.PlanID)
	if err != nil {
		metrics.IncPixIntent("rejected_input")
		return nil, err
	}
	if in.AmountCents != nil && *in.AmountCents != plan.PriceCents {
		metrics.IncPixIntent("rejected_input")
		log.Warn().Int64("amount_cents", *in.AmountCents).Int64("plan_price_cents", plan.PriceCents).Msg("client amount does not match plan price")
		return nil, fmt.Errorf("%w: amount does not match plan price", domain.ErrInvalidArgument)
	}

	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		desc = fmt.Sprintf("DesapegoPI: %s (%s)", listing.Title, plan.Name)
	}
	email := strings.TrimSpace(in.PayerEmail)
	if email == "" {
		email = u.opts.DefaultPayerEmail
	}

	cctx, cancel := context.WithTimeout(ctx, u.opts.ChargeTimeout)
	defer cancel()
	intent, err := u.gateway.CreatePixPayment(cctx, model.ChargeRequest{
		AmountCents:       plan.PriceCents,
		Description:       desc,
		PayerEmail:        email,
		PayerFirstName:    defaultPayerFirstName,
		PayerLastName:     defaultPayerLastName,
		ExternalReference: listing.ID,
		IdempotencyKey:    uuid.NewString(),
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPaymentNotConfigured):
			metrics.IncPixIntent("config_error")
		case errors.Is(err, context.DeadlineExceeded):
			metrics.IncPixIntent("upstream_error")
			err = fmt.Errorf("%w: %v", domain.ErrUpstream, err)
		default:
			metrics.IncPixIntent("upstream_error")
		}
		log.Error().Err(err).Msg("pix charge creation failed")
		return nil, err
	}

	metrics.IncPixIntent("created")
	log.Info().
		Str("intent_id", intent.ID).
		Int("plan_id", plan.ID).
		Int64("amount_cents", plan.PriceCents).
		Str("payer", logging.Redact(email, u.opts.Dev)).
		Msg("pix intent created")
	return intent, nil
}

func (u *paymentUC) resolvePlan(listing *model.Listing, requested int) (model.Plan, error) {
	// Activation derives the expiry from the listing's plan, so the charge must too.
	id := listing.PlanID
	if id == 0 {
		id = model.DefaultPlanID
	}
	if requested != 0 {
		if _, ok := u.plans.Lookup(requested); !ok {
			return model.Plan{}, fmt.Errorf("%w: unknown plan %d", domain.ErrInvalidArgument, requested)
		}
		if requested != id {
			return model.Plan{}, fmt.Errorf("%w: plan differs from the listing's plan", domain.ErrInvalidArgument)
		}
	}
	plan, ok := u.plans.Lookup(id)
	if !ok {
		return model.Plan{}, fmt.Errorf("%w: listing plan %d not in catalog", domain.ErrInvalidArgument, listing.PlanID)
	}
	return plan, nil
}
