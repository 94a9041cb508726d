package repository

import (
	"context"
	"database/sql"

	"github.com/blocosbh/bloco-agenda/internal/model"
)

// OverrideRepo is the adapter over the user_event_overrides table: one
// row per (owner_id, base_event_id) carrying status, hidden, notes and
// updated_at. It implements agenda.RemoteStore. Failures propagate
// untouched; retry policy belongs to the callers (the outbox retries,
// the merge aborts).
type OverrideRepo struct{ DB *sql.DB }

// NewOverrideRepo returns an OverrideRepo bound to the given database.
func NewOverrideRepo(db *sql.DB) *OverrideRepo { return &OverrideRepo{DB: db} }

// FetchForOwner returns every override row owned by ownerID. The table
// holds at most a few hundred rows per user, so no pagination is
// applied.
func (r *OverrideRepo) FetchForOwner(ctx context.Context, ownerID uint64) ([]model.OverrideRow, error) {
	const q = `SELECT base_event_id, status, hidden, notes, updated_at
        FROM user_event_overrides WHERE owner_id = ?`
	rows, err := r.DB.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OverrideRow
	for rows.Next() {
		var (
			row       model.OverrideRow
			status    sql.NullString
			hidden    sql.NullBool
			notes     sql.NullString
			updatedAt sql.NullTime
		)
		if err := rows.Scan(&row.BaseEventID, &status, &hidden, &notes, &updatedAt); err != nil {
			return nil, err
		}
		row.OwnerID = ownerID
		if status.Valid {
			st := model.EventStatus(status.String)
			row.Status = &st
		}
		row.Hidden = hidden.Valid && hidden.Bool // null hidden reads as false
		if notes.Valid {
			n := notes.String
			row.Notes = &n
		}
		if updatedAt.Valid {
			row.UpdatedAt = updatedAt.Time.UTC()
		}
		// null updated_at leaves the zero value; the engine treats it as epoch zero
		out = append(out, row)
	}
	return out, rows.Err()
}

// Get returns the single row for (ownerID, eventID) or ErrNotFound.
func (r *OverrideRepo) Get(ctx context.Context, ownerID uint64, eventID string) (model.OverrideRow, error) {
	const q = `SELECT base_event_id, status, hidden, notes, updated_at
        FROM user_event_overrides WHERE owner_id = ? AND base_event_id = ? LIMIT 1`
	var (
		row       model.OverrideRow
		status    sql.NullString
		hidden    sql.NullBool
		notes     sql.NullString
		updatedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, q, ownerID, eventID).
		Scan(&row.BaseEventID, &status, &hidden, &notes, &updatedAt)
	if err == sql.ErrNoRows {
		return model.OverrideRow{}, ErrNotFound
	}
	if err != nil {
		return model.OverrideRow{}, err
	}
	row.OwnerID = ownerID
	if status.Valid {
		st := model.EventStatus(status.String)
		row.Status = &st
	}
	row.Hidden = hidden.Valid && hidden.Bool
	if notes.Valid {
		n := notes.String
		row.Notes = &n
	}
	if updatedAt.Valid {
		row.UpdatedAt = updatedAt.Time.UTC()
	}
	return row, nil
}

// Upsert bulk-writes rows keyed by (owner_id, base_event_id). An
// existing row is fully replaced: status, hidden, notes and updated_at
// all take the incoming values, including NULLs. Passing an empty slice
// has no effect and returns nil.
func (r *OverrideRepo) Upsert(ctx context.Context, rows []model.OverrideRow) error {
	if len(rows) == 0 {
		return nil
	}
	query := `INSERT INTO user_event_overrides (owner_id, base_event_id, status, hidden, notes, updated_at) VALUES `
	args := make([]interface{}, 0, len(rows)*6)
	for i, row := range rows {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		var status, notes interface{}
		if row.Status != nil {
			status = string(*row.Status)
		}
		if row.Notes != nil {
			notes = *row.Notes
		}
		args = append(args, row.OwnerID, row.BaseEventID, status, row.Hidden, notes, row.UpdatedAt.UTC())
	}
	query += ` ON DUPLICATE KEY UPDATE
        status = VALUES(status),
        hidden = VALUES(hidden),
        notes = VALUES(notes),
        updated_at = VALUES(updated_at)`
	_, err := r.DB.ExecContext(ctx, query, args...)
	return err
}
