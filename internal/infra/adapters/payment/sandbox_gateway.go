package payment

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"desapego-pix/internal/domain"
	"desapego-pix/internal/domain/model"
	"desapego-pix/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*SandboxGateway)(nil)

// SandboxGateway is an in-process processor used in dev mode and tests.
// Intents stay pending until Approve or Reject is called.
type SandboxGateway struct {
	mu       sync.Mutex
	nextID   int64
	intents  map[string]*model.PaymentIntent
	order    []string
	now      func() time.Time
	log      *zerolog.Logger
	createEr error
	getErr   error
	getCalls int
}

func NewSandboxGateway(logger *zerolog.Logger) *SandboxGateway {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "SandboxGateway").Logger()
	return &SandboxGateway{
		nextID:  1000,
		intents: make(map[string]*model.PaymentIntent),
		now:     func() time.Time { return time.Now().UTC() },
		log:     &l,
	}
}

func (g *SandboxGateway) Name() string { return "sandbox" }

func (g *SandboxGateway) Configured() bool { return true }

func (g *SandboxGateway) CreatePixPayment(ctx context.Context, req model.ChargeRequest) (*model.PaymentIntent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.AmountCents <= 0 || req.ExternalReference == "" {
		return nil, domain.ErrInvalidArgument
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createEr != nil {
		return nil, g.createEr
	}
	g.nextID++
	id := strconv.FormatInt(g.nextID, 10)
	code := fmt.Sprintf("00020126580014BR.GOV.BCB.PIX0136sandbox-%s5204000053039865405%.2f5802BR6009TERESINA62070503***", id, float64(req.AmountCents)/100)
	img, err := RenderQRBase64(code)
	if err != nil {
		return nil, err
	}
	intent := &model.PaymentIntent{
		ID:                id,
		ExternalReference: req.ExternalReference,
		Status:            model.IntentStatusPending,
		RawStatus:         "pending",
		AmountCents:       req.AmountCents,
		PayerEmail:        req.PayerEmail,
		QRCode:            code,
		QRCodeBase64:      img,
		CreatedAt:         g.now(),
	}
	g.intents[id] = intent
	g.order = append(g.order, id)
	g.log.Debug().Str("intent_id", id).Str("listing_id", req.ExternalReference).Int64("amount_cents", req.AmountCents).Msg("sandbox intent created")
	cp := *intent
	return &cp, nil
}

func (g *SandboxGateway) GetPayment(ctx context.Context, intentID string) (*model.PaymentIntent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getCalls++
	if g.getErr != nil {
		return nil, g.getErr
	}
	in, ok := g.intents[intentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *in
	return &cp, nil
}

func (g *SandboxGateway) SearchByExternalReference(ctx context.Context, ref string) ([]*model.PaymentIntent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.getErr != nil {
		return nil, g.getErr
	}
	var out []*model.PaymentIntent
	for _, id := range g.order {
		if in := g.intents[id]; in.ExternalReference == ref {
			cp := *in
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Approve marks an intent as paid, as if the payer had completed the transfer.
func (g *SandboxGateway) Approve(intentID string) error {
	return g.setStatus(intentID, "approved")
}

func (g *SandboxGateway) Reject(intentID string) error {
	return g.setStatus(intentID, "rejected")
}

// Put registers an intent directly, e.g. one created out of band.
func (g *SandboxGateway) Put(in model.PaymentIntent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if in.CreatedAt.IsZero() {
		in.CreatedAt = g.now()
	}
	if _, ok := g.intents[in.ID]; !ok {
		g.order = append(g.order, in.ID)
	}
	g.intents[in.ID] = &in
}

// FailCreate makes CreatePixPayment return err until reset with nil.
func (g *SandboxGateway) FailCreate(err error) {
	g.mu.Lock()
	g.createEr = err
	g.mu.Unlock()
}

// FailLookups makes GetPayment and SearchByExternalReference return err until reset with nil.
func (g *SandboxGateway) FailLookups(err error) {
	g.mu.Lock()
	g.getErr = err
	g.mu.Unlock()
}

func (g *SandboxGateway) LookupCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.getCalls
}

func (g *SandboxGateway) setStatus(intentID, raw string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[intentID]
	if !ok {
		return domain.ErrNotFound
	}
	in.RawStatus = raw
	in.Status = MapStatus(raw)
	g.log.Debug().Str("intent_id", intentID).Str("status", raw).Msg("sandbox intent updated")
	return nil
}
