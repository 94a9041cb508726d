// Package queue defines message payloads exchanged over the message broker.
package queue

// StatusChangedEvent is published after a user's override row is written
// through the HTTP API. It carries enough for downstream consumers to
// log or feed analytics without querying the primary database.
type StatusChangedEvent struct {
    OwnerID     uint64  `json:"owner_id"`
    BaseEventID string  `json:"base_event_id"`
    EventTitle  string  `json:"event_title,omitempty"`
    Status      *string `json:"status,omitempty"`
    Hidden      bool    `json:"hidden"`
    HasNotes    bool    `json:"has_notes"` // note contents stay private
    UpdatedAt   string  `json:"updated_at"`
}
