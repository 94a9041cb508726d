package model

import "time"

// BaseEvent mirrors the `events_base` table populated by the CSV
// importer. Rows are shared by all users; per-user state lives in
// user_event_overrides.
//
// Fields:
//  ID             – events_base.id (UUID string, assigned at import).
//  Title          – bloco name as printed in the source listing.
//  StartsAt       – concentration time; midnight local time for all-day rows.
//  EndsAt         – events_base.ends_at (nullable, unknown for most blocos).
//  AllDay         – true when the listing published no start time.
//  Location       – concentration address.
//  Description    – events_base.description (nullable).
//  Ritmos         – comma-separated rhythm tags from the listing.
//  TamanhoPublico – published crowd-size category.
//  LGBT           – LGBT-friendly marker from the listing.
type BaseEvent struct {
    ID             string     `json:"id"`
    Title          string     `json:"title"`
    StartsAt       time.Time  `json:"starts_at"`
    EndsAt         *time.Time `json:"ends_at,omitempty"`
    AllDay         bool       `json:"all_day"`
    Location       string     `json:"location"`
    Description    *string    `json:"description,omitempty"`
    Ritmos         string     `json:"ritmos"`
    TamanhoPublico string     `json:"tamanho_publico"`
    LGBT           string     `json:"lgbt"`
}

// Key returns the natural identity of an imported event, used by the
// importer to recognize rows that already exist under a different UUID.
// StartsAt is normalized to UTC so the same instant keys identically
// whether it was just parsed (fixed listing offset) or read back from
// the database (UTC session).
func (e BaseEvent) Key() string {
    return e.Title + "|" + e.StartsAt.UTC().Format(time.RFC3339) + "|" + e.Location
}
