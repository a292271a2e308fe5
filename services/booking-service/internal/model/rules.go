package model

import (
	"time"

	"github.com/d-castillo/trimbook/services/booking-service/internal/fault"
)

// ValidateReserve checks the parts of a reservation that need no
// storage lookup. now is the caller's clock, in UTC.
func ValidateReserve(clientID, providerID string, start time.Time, now time.Time) *fault.Fault {
	if clientID == providerID {
		return fault.New(fault.Forbidden, "appointment", "providers cannot book themselves")
	}
	if !start.After(now) {
		return fault.New(fault.InvalidArgument, "start_time", "must be in the future")
	}
	return nil
}

func AuthorizeConfirm(a Appointment, actorID string) *fault.Fault {
	if actorID != a.ProviderID {
		return fault.New(fault.Forbidden, "appointment", "only the provider can confirm")
	}
	if !CanTransition(a.Status, StatusConfirmed) {
		return fault.New(fault.InvalidState, "appointment", "cannot confirm from status "+string(a.Status))
	}
	return nil
}

func AuthorizeCancel(a Appointment, actorID string) *fault.Fault {
	if actorID != a.ClientID && actorID != a.ProviderID {
		return fault.New(fault.Forbidden, "appointment", "only a participant can cancel")
	}
	if !CanTransition(a.Status, StatusCancelled) {
		return fault.New(fault.InvalidState, "appointment", "cannot cancel from status "+string(a.Status))
	}
	return nil
}

func AuthorizeComplete(a Appointment, actorID string) *fault.Fault {
	if actorID != a.ProviderID {
		return fault.New(fault.Forbidden, "appointment", "only the provider can complete")
	}
	if !CanTransition(a.Status, StatusCompleted) {
		return fault.New(fault.InvalidState, "appointment", "cannot complete from status "+string(a.Status))
	}
	return nil
}
