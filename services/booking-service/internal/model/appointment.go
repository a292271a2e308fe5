// Package model holds the booking domain entities and the pure rules
// that govern them. Nothing here touches storage or transport.
package model

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Active statuses are the ones that hold a provider's time slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Appointment snapshots price and duration from the catalog at reserve
// time so later catalog edits do not rewrite history.
type Appointment struct {
	ID              string
	ClientID        string
	ProviderID      string
	ServiceID       string
	StartTime       time.Time
	EndTime         time.Time
	Status          Status
	Price           string
	DurationMinutes int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Overlaps reports whether the half-open intervals [aStart,aEnd) and
// [bStart,bEnd) intersect. Back-to-back intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
