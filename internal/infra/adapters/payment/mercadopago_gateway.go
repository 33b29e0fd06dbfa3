package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"desapego-pix/internal/domain"
	"desapego-pix/internal/domain/model"
	"desapego-pix/internal/domain/ports/adapter"
	"desapego-pix/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*MercadoPagoGateway)(nil)

// MercadoPagoGateway talks to the Mercado Pago payments REST API (v1).
// An empty access token is accepted at construction; every call then fails with
// domain.ErrPaymentNotConfigured so the service can start and report it per request.
type MercadoPagoGateway struct {
	accessToken     string
	baseURL         string
	notificationURL string
	client          *http.Client
	log             *zerolog.Logger
}

func NewMercadoPagoGateway(accessToken, baseURL, notificationURL string, timeout time.Duration, logger *zerolog.Logger) (*MercadoPagoGateway, error) {
	if baseURL == "" {
		baseURL = "https://api.mercadopago.com"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if notificationURL != "" {
		if _, err := url.Parse(notificationURL); err != nil {
			return nil, fmt.Errorf("invalid notification url: %w", err)
		}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "MercadoPagoGateway").Logger()
	return &MercadoPagoGateway{
		accessToken:     strings.TrimSpace(accessToken),
		baseURL:         strings.TrimRight(baseURL, "/"),
		notificationURL: notificationURL,
		client:          &http.Client{Timeout: timeout},
		log:             &l,
	}, nil
}

func (g *MercadoPagoGateway) Name() string { return "mercadopago" }

func (g *MercadoPagoGateway) Configured() bool { return g.accessToken != "" }

// mpID accepts both numeric and quoted ids.
type mpID string

func (id *mpID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}
	*id = mpID(s)
	return nil
}

type mpPayment struct {
	ID                mpID    `json:"id"`
	Status            string  `json:"status"`
	StatusDetail      string  `json:"status_detail"`
	ExternalReference string  `json:"external_reference"`
	TransactionAmount float64 `json:"transaction_amount"`
	DateCreated       string  `json:"date_created"`
	Payer             struct {
		Email string `json:"email"`
	} `json:"payer"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

type mpPayer struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type mpCreateRequest struct {
	TransactionAmount float64 `json:"transaction_amount"`
	Description       string  `json:"description"`
	PaymentMethodID   string  `json:"payment_method_id"`
	Payer             mpPayer `json:"payer"`
	ExternalReference string  `json:"external_reference"`
	NotificationURL   string  `json:"notification_url,omitempty"`
}

// MapStatus folds Mercado Pago payment states into the three states reconciliation cares about.
func MapStatus(raw string) model.IntentStatus {
	switch strings.ToLower(raw) {
	case "approved":
		return model.IntentStatusApproved
	case "rejected", "cancelled", "refunded", "charged_back":
		return model.IntentStatusRejected
	default: // pending, in_process, authorized, in_mediation
		return model.IntentStatusPending
	}
}

func (g *MercadoPagoGateway) CreatePixPayment(ctx context.Context, req model.ChargeRequest) (*model.PaymentIntent, error) {
	if !g.Configured() {
		return nil, domain.ErrPaymentNotConfigured
	}
	if req.AmountCents <= 0 || req.ExternalReference == "" {
		return nil, domain.ErrInvalidArgument
	}
	body := mpCreateRequest{
		TransactionAmount: float64(req.AmountCents) / 100,
		Description:       req.Description,
		PaymentMethodID:   "pix",
		Payer: mpPayer{
			Email:     req.PayerEmail,
			FirstName: req.PayerFirstName,
			LastName:  req.PayerLastName,
		},
		ExternalReference: req.ExternalReference,
		NotificationURL:   g.notificationURL,
	}
	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	var out mpPayment
	if err := g.do(ctx, "create", http.MethodPost, "/v1/payments", body, map[string]string{"X-Idempotency-Key": key}, &out); err != nil {
		return nil, err
	}
	intent := toIntent(&out)
	if intent.ID == "" {
		return nil, fmt.Errorf("%w: create response without id", domain.ErrUpstream)
	}
	if intent.QRCode == "" {
		return nil, fmt.Errorf("%w: create response without pix code", domain.ErrUpstream)
	}
	if intent.QRCodeBase64 == "" {
		img, err := RenderQRBase64(intent.QRCode)
		if err != nil {
			g.log.Warn().Err(err).Str("intent_id", intent.ID).Msg("local qr rendering failed")
		}
		intent.QRCodeBase64 = img
	}
	return intent, nil
}

func (g *MercadoPagoGateway) GetPayment(ctx context.Context, intentID string) (*model.PaymentIntent, error) {
	if !g.Configured() {
		return nil, domain.ErrPaymentNotConfigured
	}
	if !isNumericID(intentID) {
		return nil, domain.ErrInvalidArgument
	}
	var out mpPayment
	if err := g.do(ctx, "get", http.MethodGet, "/v1/payments/"+intentID, nil, nil, &out); err != nil {
		return nil, err
	}
	return toIntent(&out), nil
}

func (g *MercadoPagoGateway) SearchByExternalReference(ctx context.Context, ref string) ([]*model.PaymentIntent, error) {
	if !g.Configured() {
		return nil, domain.ErrPaymentNotConfigured
	}
	if ref == "" {
		return nil, domain.ErrInvalidArgument
	}
	q := url.Values{}
	q.Set("external_reference", ref)
	q.Set("sort", "date_created")
	q.Set("criteria", "desc")
	var out struct {
		Results []mpPayment `json:"results"`
	}
	if err := g.do(ctx, "search", http.MethodGet, "/v1/payments/search?"+q.Encode(), nil, nil, &out); err != nil {
		return nil, err
	}
	intents := make([]*model.PaymentIntent, 0, len(out.Results))
	for i := range out.Results {
		intents = append(intents, toIntent(&out.Results[i]))
	}
	return intents, nil
}

func (g *MercadoPagoGateway) do(ctx context.Context, op, method, path string, in any, headers map[string]string, out any) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveProcessorCall(op, err == nil, time.Since(start)) }()

	var body io.Reader
	if in != nil {
		b, mErr := json.Marshal(in)
		if mErr != nil {
			return fmt.Errorf("encode %s request: %w", op, mErr)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+g.accessToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %s: %v", domain.ErrUpstream, op, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %s: read body: %v", domain.ErrUpstream, op, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		g.log.Warn().Str("op", op).Int("status", resp.StatusCode).Bytes("body", truncate(raw, 512)).Msg("processor returned error")
		return fmt.Errorf("%w: %s: http %d", domain.ErrUpstream, op, resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: malformed body: %v", domain.ErrUpstream, op, err)
	}
	return nil
}

func toIntent(p *mpPayment) *model.PaymentIntent {
	intent := &model.PaymentIntent{
		ID:                string(p.ID),
		ExternalReference: p.ExternalReference,
		Status:            MapStatus(p.Status),
		RawStatus:         p.Status,
		AmountCents:       int64(math.Round(p.TransactionAmount * 100)),
		PayerEmail:        p.Payer.Email,
		QRCode:            p.PointOfInteraction.TransactionData.QRCode,
		QRCodeBase64:      p.PointOfInteraction.TransactionData.QRCodeBase64,
	}
	if t, err := time.Parse(time.RFC3339, p.DateCreated); err == nil {
		intent.CreatedAt = t
	}
	return intent
}

func isNumericID(s string) bool {
	if s == "" || len(s) > 20 {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
