package model

import (
	"fmt"
	"time"

	"github.com/iliyamo/event-registration/internal/apperr"
)

// Status is the lifecycle state of a registration. The zero value is not a
// valid status; only the four constants below are ever persisted.
type Status string

const (
	StatusSelected       Status = "selected"
	StatusPaymentPending Status = "payment_pending"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"

	// StatusRemoved is the target of a withdrawal. It is never stored: a
	// withdrawn registration is deleted.
	StatusRemoved Status = "removed"
)

// Valid reports whether s is one of the persisted statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusSelected, StatusPaymentPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool { return s == StatusApproved || s == StatusRejected }

// HasReceipt reports whether a registration in state s must carry a
// receipt reference.
func (s Status) HasReceipt() bool {
	return s == StatusPaymentPending || s == StatusApproved || s == StatusRejected
}

// ParseStatus converts a stored column value into a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown registration status %q", v)
	}
	return s, nil
}

// Action is an external event that may move a registration between states.
type Action string

const (
	ActionSelect        Action = "select"
	ActionSubmitReceipt Action = "submit_receipt"
	ActionApprove       Action = "approve"
	ActionReject        Action = "reject"
	ActionWithdraw      Action = "withdraw"
)

type edge struct {
	from Status
	act  Action
}

// transitions is the complete lifecycle. The empty from-status stands for
// "no registration yet".
var transitions = map[edge]Status{
	{"", ActionSelect}:                     StatusSelected,
	{StatusSelected, ActionSubmitReceipt}:  StatusPaymentPending,
	{StatusPaymentPending, ActionApprove}:  StatusApproved,
	{StatusPaymentPending, ActionReject}:   StatusRejected,
	{StatusSelected, ActionWithdraw}:       StatusRemoved,
	{StatusPaymentPending, ActionWithdraw}: StatusRemoved,
}

// Next returns the status reached by applying a to a registration in state
// from. It fails with apperr.ErrInvalidTransition when no such edge exists.
func Next(from Status, a Action) (Status, error) {
	to, ok := transitions[edge{from, a}]
	if !ok {
		return "", fmt.Errorf("%w: %s from %q", apperr.ErrInvalidTransition, a, from)
	}
	return to, nil
}

// SourcesOf lists every status from which a is permitted.
func SourcesOf(a Action) []Status {
	var out []Status
	for _, s := range []Status{StatusSelected, StatusPaymentPending, StatusApproved, StatusRejected} {
		if _, ok := transitions[edge{s, a}]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Registration binds one identity to one event.
//
// Fields:
//  ID         – registrations.id
//  UserID     – identity that owns the registration
//  EventID    – referenced event
//  Status     – lifecycle state
//  ReceiptRef – storage path of the latest receipt (nil while selected)
//  Notes      – admin-authored notes
type Registration struct {
	ID         uint64    `json:"id"`
	UserID     string    `json:"user_id"`
	EventID    uint64    `json:"event_id"`
	Status     Status    `json:"status"`
	ReceiptRef *string   `json:"receipt_ref,omitempty"`
	Notes      *string   `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Consistent reports whether the receipt reference agrees with the status.
func (r Registration) Consistent() bool {
	return r.Status.Valid() && (r.ReceiptRef != nil) == r.Status.HasReceipt()
}
