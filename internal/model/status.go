package model

import "time"

// EventStatus enumerates the attendance intents a user can record for a
// bloco. The set is closed; no ordering exists between members. Two
// records for the same event are only ever compared by their UpdatedAt,
// never by status value.
type EventStatus string

const (
    StatusMaybe EventStatus = "maybe" // undecided, default leaning
    StatusGoing EventStatus = "going" // plans to attend
    StatusSure  EventStatus = "sure"  // committed to attend
)

// Valid reports whether s is a member of the closed enumeration.
func (s EventStatus) Valid() bool {
    switch s {
    case StatusMaybe, StatusGoing, StatusSure:
        return true
    }
    return false
}

// StatusRecord is a timestamped attendance intent for one event.  The
// record is replaced wholly on every set; UpdatedAt is the only field
// ever consulted when two records conflict (last writer wins).
//
// Fields:
//  Status    – one of the EventStatus members.
//  UpdatedAt – UTC time of the write that produced this record.
type StatusRecord struct {
    Status    EventStatus `json:"status"`
    UpdatedAt time.Time   `json:"updatedAt"`
}

// OverrideRecord is a timestamped auxiliary annotation for one event,
// independent of the attendance status and independently timestamped.
//
// Fields:
//  Hidden    – the event is hidden from the user's agenda views.
//  Notes     – free-form user note, empty when unset.
//  UpdatedAt – UTC time of the write that produced this record.
type OverrideRecord struct {
    Hidden    bool      `json:"hidden,omitempty"`
    Notes     string    `json:"notes,omitempty"`
    UpdatedAt time.Time `json:"updatedAt"`
}

// GoingRoleRecord annotates how the user joins an event they attend
// (e.g. marching with the bloco vs. watching). Local-only: the role map
// is persisted on the device but never reconciled with the remote table.
type GoingRoleRecord struct {
    Role      string    `json:"role"`
    UpdatedAt time.Time `json:"updatedAt"`
}

// StatusMap, OverrideMap and GoingRoleMap key their records by the
// opaque event identifier. Keys are unique; iteration order carries no
// meaning.
type (
    StatusMap    map[string]StatusRecord
    OverrideMap  map[string]OverrideRecord
    GoingRoleMap map[string]GoingRoleRecord
)
