package model

import (
	"time"

	"github.com/d-castillo/trimbook/services/booking-service/internal/fault"
)

type Review struct {
	ID            string
	AppointmentID string
	ClientID      string
	ProviderID    string
	Rating        int
	Comment       string
	CreatedAt     time.Time
}

func ValidateRating(rating int) *fault.Fault {
	if rating < 1 || rating > 5 {
		return fault.New(fault.InvalidArgument, "rating", "must be between 1 and 5")
	}
	return nil
}

// AuthorizeReview gates review submission on the appointment a review
// would attach to. Only the client of a completed appointment may review.
func AuthorizeReview(a Appointment, actorID string) *fault.Fault {
	if actorID != a.ClientID {
		return fault.New(fault.Forbidden, "review", "only the appointment client can review")
	}
	if a.Status != StatusCompleted {
		return fault.New(fault.InvalidState, "review", "appointment is not completed")
	}
	return nil
}
