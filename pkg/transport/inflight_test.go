package transport

import (
	"context"
	"testing"
)

func TestInFlightRegistry_CancelStopsContext(t *testing.T) {
	reg := NewInFlightRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	reg.Register("gen-1", cancel)

	if !reg.Cancel("gen-1") {
		t.Fatal("Cancel returned false for a registered generation")
	}
	select {
	case <-ctx.Done():
	default:
		t.Error("context was not cancelled")
	}
}

func TestInFlightRegistry_CancelUnknown(t *testing.T) {
	reg := NewInFlightRegistry()
	if reg.Cancel("missing") {
		t.Error("Cancel returned true for an unknown generation")
	}
}

func TestInFlightRegistry_CancelIsOneShot(t *testing.T) {
	reg := NewInFlightRegistry()
	_, cancel := context.WithCancel(context.Background())
	reg.Register("gen-1", cancel)

	reg.Cancel("gen-1")
	if reg.Cancel("gen-1") {
		t.Error("second Cancel should report not found")
	}
}

func TestInFlightRegistry_RemoveWithoutCancel(t *testing.T) {
	reg := NewInFlightRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	reg.Register("gen-1", cancel)

	reg.Remove("gen-1")
	select {
	case <-ctx.Done():
		t.Error("Remove must not cancel the context")
	default:
	}
	if reg.Cancel("gen-1") {
		t.Error("removed generation should not be cancellable")
	}
}
