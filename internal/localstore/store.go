// Package localstore persists the device-local agenda state: the status,
// override and going-role maps. It is a small synchronous key-value layer
// over a single-file SQLite database, independent of authentication and
// of the remote table. A corrupt persisted value is treated as absence so
// a bad payload can never block the agenda from loading.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/blocosbh/bloco-agenda/internal/model"
)

// Keys under which the three maps are stored. Each value is one JSON
// document replaced wholly on every save.
const (
	statusKey    = "status-map"
	overrideKey  = "override-map"
	goingRoleKey = "going-role-map"
)

// Store wraps the device-local SQLite file. A nil *Store is a valid
// degraded mode (no persistent storage available): loads return empty
// maps and saves are no-ops.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the local store at path and ensures
// the kv table exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// Single UI instance per device; one connection avoids writer races.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	const schema = `CREATE TABLE IF NOT EXISTS agenda_kv (
        k TEXT PRIMARY KEY,
        v TEXT NOT NULL
    )`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// LoadStatusMap returns the persisted status map, or an empty map when
// nothing was saved yet or the stored payload does not parse.
func (s *Store) LoadStatusMap() model.StatusMap {
	var m model.StatusMap
	if raw, ok := s.get(statusKey); ok {
		if err := json.Unmarshal([]byte(raw), &m); err == nil && m != nil {
			return m
		}
	}
	return model.StatusMap{}
}

// SaveStatusMap replaces the persisted status map with m.
func (s *Store) SaveStatusMap(m model.StatusMap) error {
	return s.save(statusKey, m)
}

// LoadOverrideMap returns the persisted override map, empty on absence
// or corruption.
func (s *Store) LoadOverrideMap() model.OverrideMap {
	var m model.OverrideMap
	if raw, ok := s.get(overrideKey); ok {
		if err := json.Unmarshal([]byte(raw), &m); err == nil && m != nil {
			return m
		}
	}
	return model.OverrideMap{}
}

// SaveOverrideMap replaces the persisted override map with m.
func (s *Store) SaveOverrideMap(m model.OverrideMap) error {
	return s.save(overrideKey, m)
}

// LoadGoingRoleMap returns the persisted going-role map, empty on
// absence or corruption.
func (s *Store) LoadGoingRoleMap() model.GoingRoleMap {
	var m model.GoingRoleMap
	if raw, ok := s.get(goingRoleKey); ok {
		if err := json.Unmarshal([]byte(raw), &m); err == nil && m != nil {
			return m
		}
	}
	return model.GoingRoleMap{}
}

// SaveGoingRoleMap replaces the persisted going-role map with m.
func (s *Store) SaveGoingRoleMap(m model.GoingRoleMap) error {
	return s.save(goingRoleKey, m)
}

// get reads the raw value under key. Missing storage and missing rows
// both report !ok; parse failures are the caller's concern so a corrupt
// value can be treated exactly like an absent one.
func (s *Store) get(key string) (string, bool) {
	if s == nil || s.db == nil {
		return "", false
	}
	var raw string
	if err := s.db.QueryRow(`SELECT v FROM agenda_kv WHERE k = ?`, key).Scan(&raw); err != nil {
		return "", false
	}
	return raw, true
}

// save serializes v and replaces the whole value under key. The write
// is a single upsert statement, so it is atomic at the granularity of
// the whole document.
func (s *Store) save(key string, v interface{}) error {
	if s == nil || s.db == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO agenda_kv (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
		key, string(raw))
	return err
}
