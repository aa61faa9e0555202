// Package queue defines message payloads exchanged over the message broker.
package queue

// RegistrationQueue is the durable queue lifecycle events are published to.
const RegistrationQueue = "registration.events"

// RegistrationEvent is published after every committed lifecycle
// transition. It carries enough information for downstream consumers to
// log, notify, or trigger analytics without querying the primary database.
type RegistrationEvent struct {
    Type           string  `json:"type"`
    RegistrationID uint64  `json:"registration_id"`
    UserID         string  `json:"user_id"`
    EventID        uint64  `json:"event_id"`
    FromStatus     string  `json:"from_status,omitempty"`
    ToStatus       string  `json:"to_status"`
    ReceiptRef     *string `json:"receipt_ref,omitempty"`
    Notes          *string `json:"notes,omitempty"`
    OccurredAt     string  `json:"occurred_at"`
}
