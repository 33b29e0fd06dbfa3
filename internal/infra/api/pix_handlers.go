package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"desapego-pix/internal/domain"
	"desapego-pix/internal/domain/model"
	"desapego-pix/internal/infra/logging"
	"desapego-pix/internal/infra/metrics"
	"desapego-pix/internal/usecase"
)

type createPixRequest struct {
	Amount      *float64 `json:"amount"` // BRL, informational; must match the plan price
	Description string   `json:"description"`
	PayerEmail  string   `json:"payerEmail"`
	AdID        string   `json:"adId"`
	PlanID      int      `json:"planId"`
}

type createPixResponse struct {
	QRCode       string `json:"qr_code"`
	QRCodeBase64 string `json:"qr_code_base64"`
	ID           string `json:"id"`
}

func (s *Server) handleCreatePix(w http.ResponseWriter, r *http.Request) {
	var req createPixRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	in := usecase.CreateIntentInput{
		ListingID:   req.AdID,
		PlanID:      req.PlanID,
		Description: req.Description,
		PayerEmail:  req.PayerEmail,
	}
	if req.Amount != nil {
		cents := int64(math.Round(*req.Amount * 100))
		in.AmountCents = &cents
	}

	intent, err := s.payments.CreateIntent(r.Context(), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, createPixResponse{
		QRCode:       intent.QRCode,
		QRCodeBase64: intent.QRCodeBase64,
		ID:           intent.ID,
	})
}

type statusResponse struct {
	Status        model.IntentStatus  `json:"status"`
	ListingStatus model.ListingStatus `json:"listing_status,omitempty"`
	Error         string              `json:"error,omitempty"`
}

// handlePixStatus reconciles before answering, so "approved" is only ever sent once the
// listing write has happened. Any failure answers "pending" with a non-200 code and the
// client simply polls again.
func (s *Server) handlePixStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: model.IntentStatusPending, Error: "missing id"})
		return
	}
	ctx := usecase.WithChannel(logging.WithIntentID(r.Context(), id), metrics.ChannelPoll)

	res, err := s.reconcile.Reconcile(ctx, id)
	if err != nil {
		metrics.StatusPollDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		code, msg := http.StatusBadGateway, "payment processor unavailable"
		switch {
		case errors.Is(err, domain.ErrInvalidArgument):
			code, msg = http.StatusBadRequest, "invalid id"
		case errors.Is(err, domain.ErrPaymentNotConfigured):
			code, msg = http.StatusServiceUnavailable, "payment unavailable"
			s.notConfigured.Do(func() {
				logging.With(ctx, s.log).Warn().Msg("status polled while processor credentials are missing")
			})
		case errors.Is(err, domain.ErrNotFound) && res == nil:
			code, msg = http.StatusNotFound, "payment not found"
		case errors.Is(err, domain.ErrNotFound):
			code, msg = http.StatusNotFound, "listing not found"
		case res != nil:
			// approved at the processor but the listing is not active yet
			code, msg = http.StatusServiceUnavailable, "payment confirmed, activation pending"
		default:
			// timeouts and processor outages are logged by the reconciler
			if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrUpstream) {
				logging.With(ctx, s.log).Error().Err(err).Msg("status reconcile failed")
			}
		}
		writeJSON(w, code, statusResponse{Status: model.IntentStatusPending, Error: msg})
		return
	}
	metrics.StatusPollDuration.WithLabelValues(string(res.IntentStatus)).Observe(time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, statusResponse{Status: res.IntentStatus, ListingStatus: res.ListingStatus})
}
