// Package pixclient is the buyer-side status poller: it asks the service for an
// intent's status until the payment settles, the wait budget runs out, or the caller
// cancels.
package pixclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
	// OutcomeGaveUp means the budget ran out while the payment was still pending.
	// The payment may still complete; the listing is activated server side regardless.
	OutcomeGaveUp Outcome = "gave_up"
)

type Options struct {
	BaseURL    string
	HTTPClient *http.Client

	InitialInterval time.Duration // default 2s
	Multiplier      float64       // default 1.5
	MaxInterval     time.Duration // default 30s
	Budget          time.Duration // default 15m

	// OnApproved runs once, Grace after approval is observed (default 3s).
	OnApproved func(intentID string)
	Grace      time.Duration

	// OnTick observes every poll; status is empty when err is set.
	OnTick func(status string, err error)

	Logger *zerolog.Logger
}

type Poller struct {
	base *url.URL
	hc   *http.Client
	opts Options
	log  *zerolog.Logger
}

func New(opts Options) (*Poller, error) {
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 2 * time.Second
	}
	if opts.Multiplier < 1 {
		opts.Multiplier = 1.5
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 30 * time.Second
	}
	if opts.Budget <= 0 {
		opts.Budget = 15 * time.Minute
	}
	if opts.Grace <= 0 {
		opts.Grace = 3 * time.Second
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	l := opts.Logger.With().Str("component", "PixPoller").Logger()
	return &Poller{base: u, hc: opts.HTTPClient, opts: opts, log: &l}, nil
}

// Wait polls until a terminal outcome. Transient failures count against the budget
// but never end the wait on their own. Cancellation returns ctx.Err().
// If ctx ends during the grace delay the outcome is still Approved and OnApproved is skipped.
func (p *Poller) Wait(ctx context.Context, intentID string) (Outcome, error) {
	if strings.TrimSpace(intentID) == "" {
		return "", fmt.Errorf("empty intent id")
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.opts.InitialInterval
	b.Multiplier = p.opts.Multiplier
	b.MaxInterval = p.opts.MaxInterval
	b.Reset()

	start := time.Now()
	for {
		status, err := p.Check(ctx, intentID)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if p.opts.OnTick != nil {
			p.opts.OnTick(status, err)
		}
		switch {
		case err != nil:
			p.log.Debug().Err(err).Str("intent_id", intentID).Msg("status check failed, still waiting")
		case status == string(OutcomeApproved):
			p.approved(ctx, intentID)
			return OutcomeApproved, nil
		case status == string(OutcomeRejected):
			return OutcomeRejected, nil
		}

		next := b.NextBackOff()
		if next == backoff.Stop || time.Since(start)+next > p.opts.Budget {
			p.log.Info().Str("intent_id", intentID).Dur("waited", time.Since(start)).Msg("giving up, payment still pending")
			return OutcomeGaveUp, nil
		}
		t := time.NewTimer(next)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
	}
}

func (p *Poller) approved(ctx context.Context, intentID string) {
	if p.opts.OnApproved == nil {
		return
	}
	t := time.NewTimer(p.opts.Grace)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return
	case <-t.C:
		p.opts.OnApproved(intentID)
	}
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Check performs a single status request. A 502 carrying {"status":"pending"} is the
// server's best-effort answer during a processor outage and is reported as an error.
func (p *Poller) Check(ctx context.Context, intentID string) (string, error) {
	u := *p.base
	u.Path += "/pix/status"
	q := url.Values{}
	q.Set("id", intentID)
	q.Set("t", strconv.FormatInt(time.Now().UnixNano(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept", "application/json")
	resp, err := p.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body statusResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		return "", fmt.Errorf("status %d: decode: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, body.Error)
	}
	return body.Status, nil
}
