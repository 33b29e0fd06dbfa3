package repository

import (
	"context"
	"time"

	"desapego-pix/internal/domain/model"
)

// ListingRepository is the port for listing persistence.
//
// ActivateIfPending and TransitionStatus are compare-and-swap writes: the status
// precondition is evaluated by the store in the same statement that mutates the row.
// A false result with a nil error means another writer got there first.
type ListingRepository interface {
	Create(ctx context.Context, tx Tx, l *model.Listing) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Listing, error)
	ActivateIfPending(ctx context.Context, tx Tx, id string, paidAt, expiresAt time.Time) (bool, error)
	TransitionStatus(ctx context.Context, tx Tx, id string, from, to model.ListingStatus) (bool, error)
	UpdatePrice(ctx context.Context, tx Tx, id string, priceCents int64) error
	ListPendingCreatedBetween(ctx context.Context, tx Tx, from, to time.Time, limit int) ([]*model.Listing, error)
}
