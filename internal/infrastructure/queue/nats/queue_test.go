package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func TestEventRoundTripCarriesManualID(t *testing.T) {
	payload, err := encodeEvent("manual-7", time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("encodeEvent() error = %v", err)
	}
	id, err := decodeEvent(payload)
	if err != nil || id != "manual-7" {
		t.Fatalf("expected manual-7, got %q (%v)", id, err)
	}
}

func TestDecodeEventAcceptsBareID(t *testing.T) {
	id, err := decodeEvent([]byte(" manual-3\n"))
	if err != nil || id != "manual-3" {
		t.Fatalf("expected manual-3, got %q (%v)", id, err)
	}
}

func TestDecodeEventRejectsInvalidPayloads(t *testing.T) {
	for _, raw := range []string{"", "   ", `{"manual_id":""}`, `{"manual_id":`} {
		if _, err := decodeEvent([]byte(raw)); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestClassifyNATSError(t *testing.T) {
	if c := classifyNATSError(fmt.Errorf("publish: %w", nats.ErrConnectionClosed)); !c.Retryable {
		t.Fatalf("closed connection should be retryable")
	}
	if c := classifyNATSError(context.Canceled); c.Retryable || c.Trips {
		t.Fatalf("cancellation should be ignored, got %+v", c)
	}
	if c := classifyNATSError(errors.New("bad subject")); c.Retryable {
		t.Fatalf("unknown errors should not retry")
	}
}
