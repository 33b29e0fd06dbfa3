// Package memory provides process-local stores for -dev runs and unit tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"desapego-pix/internal/domain"
	"desapego-pix/internal/domain/model"
	"desapego-pix/internal/domain/ports/repository"
)

var (
	_ repository.ListingRepository  = (*ListingRepo)(nil)
	_ repository.TransactionManager = (*TxManager)(nil)
)

// ListingRepo keeps listings in a map. Conditional writes check and mutate under
// one lock acquisition, which gives the same guarantee as the SQL WHERE guard.
type ListingRepo struct {
	mu    sync.RWMutex
	items map[string]*model.Listing

	// test hooks
	activateErr error
	writes      int
}

func NewListingRepo() *ListingRepo {
	return &ListingRepo{items: make(map[string]*model.Listing)}
}

func clone(l *model.Listing) *model.Listing {
	cp := *l
	if l.PaidAt != nil {
		t := *l.PaidAt
		cp.PaidAt = &t
	}
	if l.ExpiresAt != nil {
		t := *l.ExpiresAt
		cp.ExpiresAt = &t
	}
	return &cp
}

func (r *ListingRepo) Create(_ context.Context, _ repository.Tx, l *model.Listing) error {
	if l == nil || l.ID == "" {
		return domain.ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[l.ID]; ok {
		return domain.ErrAlreadyExists
	}
	r.items[l.ID] = clone(l)
	return nil
}

func (r *ListingRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(l), nil
}

func (r *ListingRepo) ActivateIfPending(_ context.Context, _ repository.Tx, id string, paidAt, expiresAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activateErr != nil {
		return false, r.activateErr
	}
	l, ok := r.items[id]
	if !ok || l.Status != model.ListingStatusPending || l.PaidAt != nil {
		return false, nil
	}
	p, e := paidAt, expiresAt
	l.Status = model.ListingStatusActive
	l.PaidAt = &p
	l.ExpiresAt = &e
	l.UpdatedAt = time.Now().UTC()
	r.writes++
	return true, nil
}

func (r *ListingRepo) TransitionStatus(_ context.Context, _ repository.Tx, id string, from, to model.ListingStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.items[id]
	if !ok || l.Status != from {
		return false, nil
	}
	l.Status = to
	l.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *ListingRepo) UpdatePrice(_ context.Context, _ repository.Tx, id string, priceCents int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.PriceCents = priceCents
	l.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *ListingRepo) ListPendingCreatedBetween(_ context.Context, _ repository.Tx, from, to time.Time, limit int) ([]*model.Listing, error) {
	if limit <= 0 {
		limit = 100
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Listing
	for _, l := range r.items {
		if l.Status == model.ListingStatusPending && !l.CreatedAt.Before(from) && l.CreatedAt.Before(to) {
			out = append(out, clone(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FailActivations makes ActivateIfPending return err until called again with nil.
func (r *ListingRepo) FailActivations(err error) {
	r.mu.Lock()
	r.activateErr = err
	r.mu.Unlock()
}

// ActivationWrites counts successful activation writes.
func (r *ListingRepo) ActivationWrites() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.writes
}

// TxManager serializes transactions; the repositories above ignore the handle.
type TxManager struct {
	mu sync.Mutex
}

func NewTxManager() *TxManager { return &TxManager{} }

func (m *TxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, repository.NoTX)
}
