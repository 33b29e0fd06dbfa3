package model

import "time"

// ListingStatus values are the labels persisted in storage.
type ListingStatus string

const (
	ListingStatusPending ListingStatus = "pendente" // created, waiting for plan payment
	ListingStatusActive  ListingStatus = "ativo"    // paid and visible until ExpiresAt
	ListingStatusSold    ListingStatus = "vendido"  // seller marked the item as sold
	ListingStatusBanned  ListingStatus = "banido"   // removed by an admin
)

func (s ListingStatus) Valid() bool {
	switch s {
	case ListingStatusPending, ListingStatusActive, ListingStatusSold, ListingStatusBanned:
		return true
	}
	return false
}

// Listing is an item posted by a seller. Only its monetization fields are modeled here;
// description, photos and category belong to other services.
type Listing struct {
	ID         string
	SellerID   string
	Title      string
	PlanID     int
	PriceCents int64 // asking price of the item, in centavos
	Status     ListingStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
	PaidAt     *time.Time // set once, by the first successful activation
	ExpiresAt  *time.Time // PaidAt + plan duration
}

func (l *Listing) IsZero() bool { return l == nil || l.ID == "" }

// Paid reports whether the listing went through a payment activation at some point.
func (l *Listing) Paid() bool { return l != nil && l.PaidAt != nil }

// ActivationWindow returns paidAt and the expiry for a plan of durationDays.
// Days are calendar days in UTC.
func ActivationWindow(paidAt time.Time, durationDays int) (time.Time, time.Time) {
	paidAt = paidAt.UTC()
	return paidAt, paidAt.AddDate(0, 0, durationDays)
}
