package model

import (
	"testing"
	"time"

	"github.com/d-castillo/trimbook/services/booking-service/internal/fault"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusCompleted, StatusConfirmed, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestOverlaps(t *testing.T) {
	at := func(h int) time.Time { return now.Add(time.Duration(h) * time.Hour) }

	if !Overlaps(at(0), at(2), at(1), at(3)) {
		t.Error("partial overlap not detected")
	}
	if !Overlaps(at(0), at(4), at(1), at(2)) {
		t.Error("containment not detected")
	}
	if Overlaps(at(0), at(1), at(1), at(2)) {
		t.Error("back-to-back intervals must not overlap")
	}
	if Overlaps(at(0), at(1), at(2), at(3)) {
		t.Error("disjoint intervals must not overlap")
	}
}

func TestValidateReserve(t *testing.T) {
	if f := ValidateReserve("u1", "u1", now.Add(time.Hour), now); f == nil || f.Kind != fault.Forbidden {
		t.Fatalf("self-booking: got %v, want forbidden", f)
	}
	if f := ValidateReserve("u1", "p1", now.Add(-time.Minute), now); f == nil || f.Kind != fault.InvalidArgument {
		t.Fatalf("past start: got %v, want invalid_argument", f)
	}
	if f := ValidateReserve("u1", "p1", now, now); f == nil {
		t.Fatal("start equal to now must be rejected")
	}
	if f := ValidateReserve("u1", "p1", now.Add(time.Hour), now); f != nil {
		t.Fatalf("valid reserve rejected: %v", f)
	}
}

func TestAuthorizeCancel(t *testing.T) {
	appt := Appointment{ClientID: "c1", ProviderID: "p1", Status: StatusConfirmed}

	if f := AuthorizeCancel(appt, "someone-else"); f == nil || f.Kind != fault.Forbidden {
		t.Fatalf("outsider cancel: got %v, want forbidden", f)
	}
	if f := AuthorizeCancel(appt, "c1"); f != nil {
		t.Fatalf("client cancel rejected: %v", f)
	}
	if f := AuthorizeCancel(appt, "p1"); f != nil {
		t.Fatalf("provider cancel rejected: %v", f)
	}

	appt.Status = StatusCompleted
	if f := AuthorizeCancel(appt, "c1"); f == nil || f.Kind != fault.InvalidState {
		t.Fatalf("terminal cancel: got %v, want invalid_state", f)
	}
}

func TestAuthorizeConfirmAndComplete(t *testing.T) {
	appt := Appointment{ClientID: "c1", ProviderID: "p1", Status: StatusPending}

	if f := AuthorizeConfirm(appt, "c1"); f == nil || f.Kind != fault.Forbidden {
		t.Fatalf("client confirm: got %v, want forbidden", f)
	}
	if f := AuthorizeConfirm(appt, "p1"); f != nil {
		t.Fatalf("provider confirm rejected: %v", f)
	}
	if f := AuthorizeComplete(appt, "p1"); f == nil || f.Kind != fault.InvalidState {
		t.Fatalf("complete from pending: got %v, want invalid_state", f)
	}

	appt.Status = StatusConfirmed
	if f := AuthorizeComplete(appt, "p1"); f != nil {
		t.Fatalf("provider complete rejected: %v", f)
	}
}

func TestAuthorizeReview(t *testing.T) {
	appt := Appointment{ClientID: "c1", ProviderID: "p1", Status: StatusConfirmed}

	if f := AuthorizeReview(appt, "c1"); f == nil || f.Kind != fault.InvalidState {
		t.Fatalf("review before completion: got %v, want invalid_state", f)
	}

	appt.Status = StatusCompleted
	if f := AuthorizeReview(appt, "p1"); f == nil || f.Kind != fault.Forbidden {
		t.Fatalf("provider reviewing own work: got %v, want forbidden", f)
	}
	if f := AuthorizeReview(appt, "c1"); f != nil {
		t.Fatalf("client review rejected: %v", f)
	}
}

func TestValidateRating(t *testing.T) {
	for _, r := range []int{0, -1, 6} {
		if f := ValidateRating(r); f == nil || f.Kind != fault.InvalidArgument {
			t.Errorf("rating %d: got %v, want invalid_argument", r, f)
		}
	}
	for r := 1; r <= 5; r++ {
		if f := ValidateRating(r); f != nil {
			t.Errorf("rating %d rejected: %v", r, f)
		}
	}
}
