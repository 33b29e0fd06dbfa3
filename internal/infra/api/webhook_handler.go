package api

import (
	"context"
	"io"
	"net/http"
	"strings"

	"desapego-pix/internal/infra/logging"
	"desapego-pix/internal/infra/metrics"
	"desapego-pix/internal/infra/payment"
	"desapego-pix/internal/usecase"
)

type webhookAck struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// handleWebhook acknowledges every delivery that names an intent, whatever happens
// while reconciling it. Delivery is at-least-once; a failed pass here is repaired by the
// processor's retry, the buyer's poll or the sweeper.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		logging.With(r.Context(), s.log).Warn().Err(err).Msg("webhook body read failed")
	}
	n, ok := payment.ParseNotification(body, r.URL.Query())
	if !ok {
		metrics.WebhookEventsTotal.WithLabelValues("missing_id").Inc()
		writeJSON(w, http.StatusBadRequest, webhookAck{Success: false, Error: "missing id"})
		return
	}

	ctx := logging.WithIntentID(r.Context(), n.ID)
	log := logging.With(ctx, s.log).With().Str("type", n.Type).Str("action", n.Action).Logger()

	if s.opts.WebhookSecret != "" &&
		!payment.VerifyMercadoPagoSignature(s.opts.WebhookSecret, r.Header.Get("X-Signature"), r.Header.Get("X-Request-Id"), n.ID) {
		metrics.WebhookEventsTotal.WithLabelValues("bad_signature").Inc()
		log.Warn().Msg("webhook signature mismatch, ignoring delivery")
		writeJSON(w, http.StatusOK, webhookAck{Success: true})
		return
	}
	if n.Type != "" && !strings.HasPrefix(n.Type, "payment") {
		metrics.WebhookEventsTotal.WithLabelValues("ignored").Inc()
		log.Debug().Msg("non-payment notification ignored")
		writeJSON(w, http.StatusOK, webhookAck{Success: true})
		return
	}

	rctx, cancel := context.WithTimeout(usecase.WithChannel(ctx, metrics.ChannelWebhook), s.opts.WebhookTimeout)
	defer cancel()
	res, err := s.reconcile.Reconcile(rctx, n.ID)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("swallowed").Inc()
		log.Warn().Err(err).Msg("webhook reconcile failed, acknowledging anyway")
	} else {
		metrics.WebhookEventsTotal.WithLabelValues("reconciled").Inc()
		log.Info().
			Str("intent_status", string(res.IntentStatus)).
			Str("listing_status", string(res.ListingStatus)).
			Bool("activated", res.Activated).
			Msg("webhook reconciled")
	}
	writeJSON(w, http.StatusOK, webhookAck{Success: true})
}
