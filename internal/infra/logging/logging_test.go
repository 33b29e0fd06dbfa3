//go:build !integration

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestWith_AttachesContextIDs(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithTraceID(context.Background(), "tr-1")
	ctx = WithListingID(ctx, "lst-9")
	ctx = WithIntentID(ctx, "123")

	With(ctx, &base).Info().Msg("hello")
	out := buf.String()
	for _, want := range []string{`"trace_id":"tr-1"`, `"listing_id":"lst-9"`, `"intent_id":"123"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
	if got := TraceID(ctx); got != "tr-1" {
		t.Errorf("TraceID = %q", got)
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("comprador@example.com", false); got != "comp...om" {
		t.Errorf("unexpected redaction %q", got)
	}
	if got := Redact("short", false); got != "***" {
		t.Errorf("short values must be fully hidden, got %q", got)
	}
	if got := Redact("comprador@example.com", true); got != "comprador@example.com" {
		t.Errorf("dev mode must not redact, got %q", got)
	}
}
