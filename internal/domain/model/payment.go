package model

import "time"

// IntentStatus is the normalized processor status.
type IntentStatus string

const (
	IntentStatusPending  IntentStatus = "pending"
	IntentStatusApproved IntentStatus = "approved"
	IntentStatusRejected IntentStatus = "rejected"
)

// PaymentIntent mirrors a charge held by the processor. It is never persisted locally;
// ExternalReference carries the listing id.
type PaymentIntent struct {
	ID                string
	ExternalReference string
	Status            IntentStatus
	RawStatus         string // processor label, kept for logs
	AmountCents       int64
	PayerEmail        string
	QRCode            string // PIX copy-and-paste code
	QRCodeBase64      string // PNG image, base64
	CreatedAt         time.Time
}

// ChargeRequest is what we ask the processor to create.
type ChargeRequest struct {
	AmountCents       int64
	Description       string
	PayerEmail        string
	PayerFirstName    string
	PayerLastName     string
	ExternalReference string
	IdempotencyKey    string
}
