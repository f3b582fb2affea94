package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesKindSentinel(t *testing.T) {
	errAccepted := New(KindInvalidState, "ride already accepted")
	wrapped := fmt.Errorf("accept ride: %w", errAccepted)

	if !errors.Is(wrapped, ErrInvalidState) {
		t.Fatalf("expected %v to match ErrInvalidState", wrapped)
	}
	if !errors.Is(wrapped, errAccepted) {
		t.Fatalf("expected identity match through wrapping")
	}
	if errors.Is(wrapped, ErrNotFound) {
		t.Fatalf("invalid state must not match not found")
	}
	if errors.Is(InvalidState("other"), errAccepted) {
		t.Fatalf("a different invalid state error must not match a specific sentinel")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{NotFound("ride %s", "R1"), KindNotFound},
		{fmt.Errorf("outer: %w", Validation("lat", "out of range")), KindValidation},
		{Wrap(KindAlreadyProcessed, errors.New("unique violation"), "payment exists"), KindAlreadyProcessed},
		{errors.New("plain"), ""},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	err := Wrap(KindNotFound, errors.New("no rows"), "driver d1 not found")
	if got := err.Error(); got != "driver d1 not found: no rows" {
		t.Errorf("Error() = %q", got)
	}
	if got := ErrUnauthorized.Error(); got != "unauthorized" {
		t.Errorf("Error() = %q", got)
	}
}
