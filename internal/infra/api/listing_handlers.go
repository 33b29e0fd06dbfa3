package api

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"desapego-pix/internal/domain"
	"desapego-pix/internal/domain/model"
)

type listingView struct {
	ID         string     `json:"id"`
	SellerID   string     `json:"sellerId"`
	Title      string     `json:"title"`
	PlanID     int        `json:"planId"`
	Price      float64    `json:"price"`
	PriceCents int64      `json:"priceCents"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	PaidAt     *time.Time `json:"paidAt,omitempty"`
	ExpiresAt  *time.Time `json:"expiraEm,omitempty"`
}

func toListingView(l *model.Listing) listingView {
	return listingView{
		ID:         l.ID,
		SellerID:   l.SellerID,
		Title:      l.Title,
		PlanID:     l.PlanID,
		Price:      float64(l.PriceCents) / 100,
		PriceCents: l.PriceCents,
		Status:     string(l.Status),
		CreatedAt:  l.CreatedAt,
		PaidAt:     l.PaidAt,
		ExpiresAt:  l.ExpiresAt,
	}
}

func (s *Server) handlePlans(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.plans.List()})
}

type createListingRequest struct {
	SellerID string  `json:"sellerId"`
	Title    string  `json:"title"`
	PlanID   int     `json:"planId"`
	Price    float64 `json:"price"`
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	l, err := s.listings.Create(r.Context(), req.SellerID, req.Title, req.PlanID, toCents(req.Price))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toListingView(l))
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	l, err := s.listings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingView(l))
}

func (s *Server) handleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price *float64 `json:"price"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Price == nil {
		s.writeError(w, domain.ErrInvalidArgument)
		return
	}
	l, err := s.listings.UpdatePrice(r.Context(), chi.URLParam(r, "id"), toCents(*req.Price))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingView(l))
}

func (s *Server) listingAction(action func(context.Context, string) (*model.Listing, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := action(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toListingView(l))
	}
}

func toCents(brl float64) int64 {
	return int64(math.Round(brl * 100))
}
