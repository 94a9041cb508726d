package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/blocosbh/bloco-agenda/internal/model"
)

// EventRepo provides read access to the shared events_base table and
// the bulk upsert used by the CSV importer.
type EventRepo struct{ DB *sql.DB }

// NewEventRepo returns an EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{DB: db} }

const eventColumns = `id, title, starts_at, ends_at, all_day, location, description, ritmos, tamanho_publico, lgbt`

// ListByYear returns every event starting inside the given calendar
// year, ordered by start time.
func (r *EventRepo) ListByYear(ctx context.Context, year int) ([]model.BaseEvent, error) {
	from := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)
	const q = `SELECT ` + eventColumns + `
        FROM events_base WHERE starts_at >= ? AND starts_at < ? ORDER BY starts_at, title`
	rows, err := r.DB.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BaseEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// GetByID returns one event or ErrNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id string) (model.BaseEvent, error) {
	const q = `SELECT ` + eventColumns + ` FROM events_base WHERE id = ? LIMIT 1`
	row := r.DB.QueryRowContext(ctx, q, id)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return model.BaseEvent{}, ErrNotFound
	}
	return ev, err
}

// ExistingID is the minimal projection the importer needs to recognize
// an already-imported event by its natural key.
type ExistingID struct {
	ID  string
	Key string
}

// ListExistingKeys returns id plus natural key for every event of the
// year, letting the importer reuse ids instead of duplicating rows.
func (r *EventRepo) ListExistingKeys(ctx context.Context, year int) ([]ExistingID, error) {
	events, err := r.ListByYear(ctx, year)
	if err != nil {
		return nil, err
	}
	out := make([]ExistingID, 0, len(events))
	for _, ev := range events {
		out = append(out, ExistingID{ID: ev.ID, Key: ev.Key()})
	}
	return out, nil
}

// UpsertBatch writes events keyed by id; an existing id has all its
// columns replaced. Passing an empty slice has no effect and returns
// nil.
func (r *EventRepo) UpsertBatch(ctx context.Context, events []model.BaseEvent) error {
	if len(events) == 0 {
		return nil
	}
	query := `INSERT INTO events_base (` + eventColumns + `) VALUES `
	args := make([]interface{}, 0, len(events)*10)
	for i, ev := range events {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
		var endsAt, desc interface{}
		if ev.EndsAt != nil {
			endsAt = ev.EndsAt.UTC()
		}
		if ev.Description != nil {
			desc = *ev.Description
		}
		args = append(args, ev.ID, ev.Title, ev.StartsAt.UTC(), endsAt, ev.AllDay,
			ev.Location, desc, ev.Ritmos, ev.TamanhoPublico, ev.LGBT)
	}
	query += ` ON DUPLICATE KEY UPDATE
        title = VALUES(title),
        starts_at = VALUES(starts_at),
        ends_at = VALUES(ends_at),
        all_day = VALUES(all_day),
        location = VALUES(location),
        description = VALUES(description),
        ritmos = VALUES(ritmos),
        tamanho_publico = VALUES(tamanho_publico),
        lgbt = VALUES(lgbt)`
	_, err := r.DB.ExecContext(ctx, query, args...)
	return err
}

// scanEvent reads one events_base row from either *sql.Row or *sql.Rows.
func scanEvent(row interface{ Scan(...interface{}) error }) (model.BaseEvent, error) {
	var (
		ev     model.BaseEvent
		endsAt sql.NullTime
		desc   sql.NullString
	)
	err := row.Scan(&ev.ID, &ev.Title, &ev.StartsAt, &endsAt, &ev.AllDay,
		&ev.Location, &desc, &ev.Ritmos, &ev.TamanhoPublico, &ev.LGBT)
	if err != nil {
		return model.BaseEvent{}, err
	}
	if endsAt.Valid {
		t := endsAt.Time.UTC()
		ev.EndsAt = &t
	}
	if desc.Valid {
		d := desc.String
		ev.Description = &d
	}
	ev.StartsAt = ev.StartsAt.UTC()
	return ev, nil
}
