// Package fault carries structured rejection reasons across the booking
// domain so handlers can map them onto transport status codes without
// string matching.
package fault

import "errors"

type Kind string

const (
	InvalidArgument  Kind = "invalid_argument"
	InvalidReference Kind = "invalid_reference"
	Forbidden        Kind = "forbidden"
	InvalidState     Kind = "invalid_state"
	Conflict         Kind = "conflict"
	Duplicate        Kind = "duplicate"
	NotFound         Kind = "not_found"
)

// Fault is a domain-level rejection. Subject names the entity or field
// the rejection refers to.
type Fault struct {
	Kind    Kind
	Subject string
	Msg     string
}

func (f *Fault) Error() string {
	return string(f.Kind) + ": " + f.Subject + ": " + f.Msg
}

func New(kind Kind, subject, msg string) *Fault {
	return &Fault{Kind: kind, Subject: subject, Msg: msg}
}

// Of unwraps err into a *Fault if one is in the chain.
func Of(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
