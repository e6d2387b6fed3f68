package models

import "time"

// AuditEvent is one synthetic history entry reconstructed from the mutable
// milestone fields on the current request record. There is no append-only
// event log behind this: a withdraw-then-resubmit cycle overwrites the prior
// submission's timestamp, so reconstructed history is inherently lossy.
// Downstream consumers depend on this current-record-only shape.
type AuditEvent struct {
	Event     string    `json:"event"`
	Actor     string    `json:"actor"`
	Title     *string   `json:"title,omitempty"`
	Comment   *string   `json:"comment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
