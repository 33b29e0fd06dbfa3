package adapter

import (
	"context"

	"desapego-pix/internal/domain/model"
)

// PaymentGateway is the hex port for the payment processor.
type PaymentGateway interface {
	Name() string
	// Configured is false when credentials are missing; every call then fails with
	// domain.ErrPaymentNotConfigured.
	Configured() bool

	// CreatePixPayment submits a charge and returns the intent with its display artifacts.
	// Returns domain.ErrPaymentNotConfigured without credentials and wraps domain.ErrUpstream
	// on transport or protocol failures.
	CreatePixPayment(ctx context.Context, req model.ChargeRequest) (*model.PaymentIntent, error)
	// GetPayment returns the authoritative state of an intent.
	GetPayment(ctx context.Context, intentID string) (*model.PaymentIntent, error)
	// SearchByExternalReference lists intents created for a listing, newest first.
	SearchByExternalReference(ctx context.Context, ref string) ([]*model.PaymentIntent, error)
}
