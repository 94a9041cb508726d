package model

import "time"

// OverrideRow mirrors the `user_event_overrides` table. One row exists
// per (owner_id, base_event_id) pair and carries both the attendance
// status and the override fields, because the remote schema stores them
// together. Status is a pointer: a row created from an override-only
// record carries no status at all rather than a manufactured default.
//
// Fields:
//  OwnerID     – user_event_overrides.owner_id (FK to users.id).
//  BaseEventID – user_event_overrides.base_event_id (FK to events_base.id).
//  Status      – user_event_overrides.status (nullable enum string).
//  Hidden      – user_event_overrides.hidden (nullable, false when absent).
//  Notes       – user_event_overrides.notes (nullable).
//  UpdatedAt   – user_event_overrides.updated_at (nullable; readers treat
//                null as epoch zero).
type OverrideRow struct {
    OwnerID     uint64       `json:"owner_id"`
    BaseEventID string       `json:"base_event_id"`
    Status      *EventStatus `json:"status,omitempty"`
    Hidden      bool         `json:"hidden"`
    Notes       *string      `json:"notes,omitempty"`
    UpdatedAt   time.Time    `json:"updated_at"`
}
