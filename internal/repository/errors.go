// Package repository holds the database/sql access layer over the MySQL
// tables shared by every device: events_base, user_event_overrides,
// users and refresh_tokens. Sentinel errors defined here let handlers
// translate failures into HTTP responses without string matching.
package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist. Handlers
// should translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")
