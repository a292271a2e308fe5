package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestOfUnwrapsWrappedFault(t *testing.T) {
	f := New(Conflict, "slot", "time slot already booked")
	wrapped := fmt.Errorf("reserve: %w", f)

	got, ok := Of(wrapped)
	if !ok {
		t.Fatal("expected fault in chain")
	}
	if got.Kind != Conflict || got.Subject != "slot" {
		t.Fatalf("unexpected fault %+v", got)
	}
}

func TestOfPlainError(t *testing.T) {
	if _, ok := Of(errors.New("boom")); ok {
		t.Fatal("plain error should not be a fault")
	}
}
