package models

import (
	"encoding/json"
	"time"
)

// Pending sync operations replayed against the remote store.
const (
	SyncOpCreate = "create"
	SyncOpUpdate = "update"
	SyncOpDelete = "delete"
	SyncOpLink   = "link"
	SyncOpUnlink = "unlink"
)

// Pending sync entry states.
const (
	SyncStatusPending = "pending"
	SyncStatusFailed  = "failed"
	SyncStatusDone    = "done"
)

// PendingSyncEntry journals a local write that the remote system of record
// has not confirmed. Entries in pending or failed state are the cache's
// explicit "pending remote confirmation" marker; the flush job replays them
// with capped backoff.
type PendingSyncEntry struct {
	ID           string          `json:"id"`
	Operation    string          `json:"operation"`
	RequestID    int64           `json:"request_id"`
	Payload      json.RawMessage `json:"payload"`
	Status       string          `json:"status"`
	Attempts     int             `json:"attempts"`
	ErrorMessage *string         `json:"error_message"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
