//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"desapego-pix/internal/clock"
	"desapego-pix/internal/domain"
	"desapego-pix/internal/domain/model"
	"desapego-pix/internal/domain/ports/adapter"
	"desapego-pix/internal/infra/db/memory"
)

var scenarioT = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// MockGateway answers lookups from a fixed table. When barrier > 0, GetPayment
// blocks until that many callers are inside it, so racing callers resume together.
type MockGateway struct {
	adapter.PaymentGateway

	mu         sync.Mutex
	configured bool
	intents    map[string]*model.PaymentIntent
	getErr     error
	createErr  error
	created    []model.ChargeRequest
	getCalls   int

	barrier int
	arrived int
	release chan struct{}
}

func NewMockGateway() *MockGateway {
	return &MockGateway{configured: true, intents: map[string]*model.PaymentIntent{}, release: make(chan struct{})}
}

func (m *MockGateway) Name() string     { return "mock" }
func (m *MockGateway) Configured() bool { return m.configured }

func (m *MockGateway) Put(id, listingID string, st model.IntentStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intents[id] = &model.PaymentIntent{ID: id, ExternalReference: listingID, Status: st, AmountCents: 6000}
}

func (m *MockGateway) CreatePixPayment(ctx context.Context, req model.ChargeRequest) (*model.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.configured {
		return nil, domain.ErrPaymentNotConfigured
	}
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = append(m.created, req)
	return &model.PaymentIntent{
		ID:                "9001",
		ExternalReference: req.ExternalReference,
		Status:            model.IntentStatusPending,
		AmountCents:       req.AmountCents,
		QRCode:            "000201PIX",
		QRCodeBase64:      "iVBORw0KGgo=",
	}, nil
}

func (m *MockGateway) GetPayment(ctx context.Context, id string) (*model.PaymentIntent, error) {
	m.mu.Lock()
	m.getCalls++
	if m.barrier > 0 {
		m.arrived++
		if m.arrived == m.barrier {
			close(m.release)
		}
		release := m.release
		m.mu.Unlock()
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		m.mu.Lock()
	}
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	in, ok := m.intents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *in
	return &cp, nil
}

func (m *MockGateway) SearchByExternalReference(ctx context.Context, ref string) ([]*model.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentIntent
	for _, in := range m.intents {
		if in.ExternalReference == ref {
			cp := *in
			out = append(out, &cp)
		}
	}
	return out, nil
}

type testEnv struct {
	repo    *memory.ListingRepo
	tm      *memory.TxManager
	gateway *MockGateway
	clock   *clock.FakeClock
	plans   *model.PlanCatalog
	log     *zerolog.Logger
}

func newTestEnv() *testEnv {
	nop := zerolog.Nop()
	return &testEnv{
		repo:    memory.NewListingRepo(),
		tm:      memory.NewTxManager(),
		gateway: NewMockGateway(),
		clock:   clock.NewFakeClock(scenarioT),
		plans:   model.DefaultPlanCatalog(),
		log:     &nop,
	}
}

func (e *testEnv) seed(id string, planID int, st model.ListingStatus) {
	l := &model.Listing{ID: id, SellerID: "seller-1", Title: "Bicicleta aro 29", PlanID: planID, PriceCents: 85000, Status: st, CreatedAt: scenarioT.Add(-time.Hour)}
	if err := e.repo.Create(context.Background(), nil, l); err != nil {
		panic(err)
	}
}
