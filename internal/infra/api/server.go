package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"desapego-pix/internal/domain"
	"desapego-pix/internal/domain/model"
	"desapego-pix/internal/usecase"
)

type Options struct {
	RequestTimeout time.Duration // /pix, /pix/status and listing routes
	WebhookTimeout time.Duration // reconcile budget inside /webhook
	WebhookSecret  string        // empty disables signature checks
	Dev            bool
}

// Server exposes the payment and listing endpoints.
type Server struct {
	listings  usecase.ListingUseCase
	payments  usecase.PaymentUseCase
	reconcile usecase.ReconcileUseCase
	plans     *model.PlanCatalog
	limiter   Limiter
	opts      Options
	log       *zerolog.Logger

	notConfigured sync.Once
}

func NewServer(listings usecase.ListingUseCase, payments usecase.PaymentUseCase, reconcile usecase.ReconcileUseCase, plans *model.PlanCatalog, limiter Limiter, opts Options, logger *zerolog.Logger) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.WebhookTimeout <= 0 {
		opts.WebhookTimeout = 8 * time.Second
	}
	l := logger.With().Str("component", "HTTPServer").Logger()
	return &Server{listings: listings, payments: payments, reconcile: reconcile, plans: plans, limiter: limiter, opts: opts, log: &l}
}

// Router builds the chi mux with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), Recover(s.log), RequestLog(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Webhooks carry their own budget; they must answer even when the processor is slow.
	r.Post("/webhook", s.handleWebhook)
	r.Post("/api/webhook", s.handleWebhook)

	r.Group(func(r chi.Router) {
		r.Use(Timeout(s.opts.RequestTimeout))

		r.With(RateLimit(s.limiter, "pix", s.log)).Post("/pix", s.handleCreatePix)
		r.With(NoCache()).Get("/pix/status", s.handlePixStatus)

		r.Get("/plans", s.handlePlans)
		r.With(RateLimit(s.limiter, "listings", s.log)).Post("/listings", s.handleCreateListing)
		r.Route("/listings/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetListing)
			r.Patch("/price", s.handleUpdatePrice)
			r.Post("/sold", s.listingAction(s.listings.MarkSold))
			r.Post("/reopen", s.listingAction(s.listings.Reopen))
			r.Post("/ban", s.listingAction(s.listings.Ban))
			r.Post("/unban", s.listingAction(s.listings.Unban))
		})
	})
	return r
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError is the single place where domain errors become HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, domain.ErrPaymentNotConfigured):
		code, msg = http.StatusBadRequest, "payment unavailable: processor credentials are not configured"
	case errors.Is(err, domain.ErrInvalidArgument):
		code, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		code, msg = http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrListingNotPending):
		code, msg = http.StatusConflict, "listing is not awaiting payment"
	case errors.Is(err, domain.ErrInvalidTransition):
		code, msg = http.StatusConflict, "status change not allowed"
	case errors.Is(err, domain.ErrAlreadyExists):
		code, msg = http.StatusConflict, "already exists"
	case errors.Is(err, domain.ErrRateLimited):
		code, msg = http.StatusTooManyRequests, "too many requests"
	case errors.Is(err, domain.ErrUpstream):
		code, msg = http.StatusInternalServerError, "payment processor unavailable, try again"
	}
	writeJSON(w, code, errorBody{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return domain.ErrInvalidArgument
	}
	return nil
}
