// Package agenda owns the device-side attendance state and the
// reconciliation engine that merges it with the remote
// user_event_overrides table. The design is local-first: every mutation
// succeeds against the in-memory maps and the local store before any
// remote write is attempted, and remote synchronization is best-effort.
package agenda

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/blocosbh/bloco-agenda/internal/localstore"
	"github.com/blocosbh/bloco-agenda/internal/model"
)

// ErrInvalidStatus is returned when a caller passes a status outside the
// closed EventStatus enumeration.
var ErrInvalidStatus = errors.New("invalid event status")

// RemoteStore is the engine's view of the hosted override table. The
// MySQL repository implements it in production; tests substitute an
// in-memory fake.
type RemoteStore interface {
	// FetchForOwner returns every row owned by ownerID. Transport and
	// query failures propagate; the engine never retries a fetch.
	FetchForOwner(ctx context.Context, ownerID uint64) ([]model.OverrideRow, error)
	// Upsert writes rows keyed by (owner_id, base_event_id), each row
	// fully replacing any prior row under the same key. The engine
	// assumes the call is all-or-nothing.
	Upsert(ctx context.Context, rows []model.OverrideRow) error
}

// Engine holds the in-memory status and override maps for one
// device/session and reconciles them against a RemoteStore. All map
// mutations replace the whole map (copy-on-write) so a concurrent
// reader never observes a torn write.
type Engine struct {
	mu        sync.RWMutex
	status    model.StatusMap
	overrides model.OverrideMap
	roles     model.GoingRoleMap
	ownerID   uint64 // 0 while no identity is present
	syncing   bool

	local  *localstore.Store
	remote RemoteStore
	outbox *Outbox
	now    func() time.Time
}

// Option tunes an Engine at construction time.
type Option func(*Engine)

// WithNow replaces the engine's clock. Tests use it to pin timestamps.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithOutbox attaches the background queue that delivers the per-write
// remote upserts. Without one, writes stay local until the next merge.
func WithOutbox(o *Outbox) Option {
	return func(e *Engine) { e.outbox = o }
}

// NewEngine builds an engine seeded from the local store. local may be
// nil (no persistent storage), in which case state starts empty and
// saves are no-ops.
func NewEngine(local *localstore.Store, remote RemoteStore, opts ...Option) *Engine {
	e := &Engine{
		status:    local.LoadStatusMap(),
		overrides: local.LoadOverrideMap(),
		roles:     local.LoadGoingRoleMap(),
		local:     local,
		remote:    remote,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// setOwner installs or clears the authenticated identity. Called by the
// session state machine, never directly by API consumers.
func (e *Engine) setOwner(ownerID uint64) {
	e.mu.Lock()
	e.ownerID = ownerID
	e.mu.Unlock()
}

// Syncing reports whether a merge is currently in flight.
func (e *Engine) Syncing() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.syncing
}

// GetStatus returns the recorded attendance status for eventID. Pure
// in-memory read; never touches the remote store.
func (e *Engine) GetStatus(eventID string) (model.EventStatus, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, ok := e.status[eventID]
	return rec.Status, ok
}

// GetOverride returns the override record for eventID, if any.
func (e *Engine) GetOverride(eventID string) (model.OverrideRecord, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, ok := e.overrides[eventID]
	return rec, ok
}

// GetGoingRole returns the local-only going-role annotation for eventID.
func (e *Engine) GetGoingRole(eventID string) (model.GoingRoleRecord, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, ok := e.roles[eventID]
	return rec, ok
}

// StatusMap returns a snapshot copy of the status map.
func (e *Engine) StatusMap() model.StatusMap {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneStatus(e.status)
}

// OverrideMap returns a snapshot copy of the override map.
func (e *Engine) OverrideMap() model.OverrideMap {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneOverrides(e.overrides)
}

// SetStatus records an attendance status for eventID. The write lands
// in memory and in the local store before returning; when an identity
// is present the matching remote row is handed to the outbox, whose
// failures never surface here.
func (e *Engine) SetStatus(eventID string, status model.EventStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	stamp := e.now().UTC()

	e.mu.Lock()
	next := cloneStatus(e.status)
	next[eventID] = model.StatusRecord{Status: status, UpdatedAt: stamp}
	e.status = next
	override, hasOverride := e.overrides[eventID]
	owner := e.ownerID
	e.mu.Unlock()

	if err := e.local.SaveStatusMap(next); err != nil {
		return err
	}
	if owner != 0 && e.outbox != nil {
		// The remote row replaces all columns, so carry the current
		// override values alongside the new status.
		row := model.OverrideRow{
			OwnerID:     owner,
			BaseEventID: eventID,
			Status:      &status,
			UpdatedAt:   stamp,
		}
		if hasOverride {
			row.Hidden = override.Hidden
			if override.Notes != "" {
				notes := override.Notes
				row.Notes = &notes
			}
		}
		e.outbox.Enqueue(row)
	}
	return nil
}

// SetOverride records a hidden flag and note for eventID. The remote
// row carries the event's current status when one exists; otherwise the
// status column stays null rather than inventing a value the user never
// chose.
func (e *Engine) SetOverride(eventID string, hidden bool, notes string) error {
	stamp := e.now().UTC()

	e.mu.Lock()
	next := cloneOverrides(e.overrides)
	next[eventID] = model.OverrideRecord{Hidden: hidden, Notes: notes, UpdatedAt: stamp}
	e.overrides = next
	statusRec, hasStatus := e.status[eventID]
	owner := e.ownerID
	e.mu.Unlock()

	if err := e.local.SaveOverrideMap(next); err != nil {
		return err
	}
	if owner != 0 && e.outbox != nil {
		row := model.OverrideRow{
			OwnerID:     owner,
			BaseEventID: eventID,
			Hidden:      hidden,
			UpdatedAt:   stamp,
		}
		if notes != "" {
			n := notes
			row.Notes = &n
		}
		if hasStatus {
			st := statusRec.Status
			row.Status = &st
		}
		e.outbox.Enqueue(row)
	}
	return nil
}

// SetGoingRole records the local-only role annotation. Never synced.
func (e *Engine) SetGoingRole(eventID, role string) error {
	stamp := e.now().UTC()
	e.mu.Lock()
	next := make(model.GoingRoleMap, len(e.roles)+1)
	for k, v := range e.roles {
		next[k] = v
	}
	next[eventID] = model.GoingRoleRecord{Role: role, UpdatedAt: stamp}
	e.roles = next
	e.mu.Unlock()
	return e.local.SaveGoingRoleMap(next)
}

// PendingSync reports whether eventID has a remote write that was
// queued but not yet confirmed delivered.
func (e *Engine) PendingSync(eventID string) bool {
	if e.outbox == nil {
		return false
	}
	return e.outbox.Pending(eventID)
}

// MergeAndSync reconciles local and remote state for the current owner:
// one remote read, a per-event last-writer-wins resolution, at most one
// batched remote write, then an all-or-nothing local commit. Without an
// identity it is a no-op. Any remote failure aborts the merge before
// anything is persisted locally.
func (e *Engine) MergeAndSync(ctx context.Context) error {
	e.mu.Lock()
	owner := e.ownerID
	if owner == 0 {
		e.mu.Unlock()
		return nil
	}
	e.syncing = true
	localStatus := e.status
	localOverrides := e.overrides
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.syncing = false
		e.mu.Unlock()
	}()

	rows, err := e.remote.FetchForOwner(ctx, owner)
	if err != nil {
		return fmt.Errorf("fetch remote overrides: %w", err)
	}

	remoteStatus := model.StatusMap{}
	remoteOverrides := model.OverrideMap{}
	for _, row := range rows {
		stamp := row.UpdatedAt
		if stamp.IsZero() {
			stamp = time.Unix(0, 0).UTC() // null updated_at reads as epoch zero
		}
		if row.Status != nil {
			remoteStatus[row.BaseEventID] = model.StatusRecord{Status: *row.Status, UpdatedAt: stamp}
		}
		rec := model.OverrideRecord{Hidden: row.Hidden, UpdatedAt: stamp}
		if row.Notes != nil {
			rec.Notes = *row.Notes
		}
		remoteOverrides[row.BaseEventID] = rec
	}

	mergedStatus := cloneStatus(localStatus)
	mergedOverrides := cloneOverrides(localOverrides)
	var upserts []model.OverrideRow

	keys := unionKeys(localStatus, localOverrides, remoteStatus, remoteOverrides)
	for _, eventID := range keys {
		ls, lsOK := localStatus[eventID]
		lo, loOK := localOverrides[eventID]
		rs, rsOK := remoteStatus[eventID]
		ro, roOK := remoteOverrides[eventID]

		localAt, localOK := latest(ls.UpdatedAt, lsOK, lo.UpdatedAt, loOK)
		remoteAt, remoteOK := latest(rs.UpdatedAt, rsOK, ro.UpdatedAt, roOK)

		switch {
		case localOK && !remoteOK:
			upserts = append(upserts, buildUpsert(owner, eventID, localAt, ls, lsOK, lo, loOK, rs, rsOK, ro, roOK))
		case !localOK && remoteOK:
			if rsOK {
				mergedStatus[eventID] = rs
			}
			if roOK {
				mergedOverrides[eventID] = ro
			}
		case localOK && remoteOK && localAt.After(remoteAt):
			upserts = append(upserts, buildUpsert(owner, eventID, localAt, ls, lsOK, lo, loOK, rs, rsOK, ro, roOK))
		case localOK && remoteOK && remoteAt.After(localAt):
			if rsOK {
				mergedStatus[eventID] = rs
			}
			if roOK {
				mergedOverrides[eventID] = ro
			}
		case localOK && remoteOK:
			// Equal timestamps: adopt the remote copy and write nothing,
			// so near-simultaneous merges on several devices converge.
			if rsOK {
				mergedStatus[eventID] = rs
			}
			if roOK {
				mergedOverrides[eventID] = ro
			}
		}
		// Neither side has a record: nothing to do.
	}

	if len(upserts) > 0 {
		if err := e.remote.Upsert(ctx, upserts); err != nil {
			return fmt.Errorf("push merged overrides: %w", err)
		}
	}

	if err := e.local.SaveStatusMap(mergedStatus); err != nil {
		return err
	}
	if err := e.local.SaveOverrideMap(mergedOverrides); err != nil {
		return err
	}
	e.mu.Lock()
	e.status = mergedStatus
	e.overrides = mergedOverrides
	e.mu.Unlock()

	// Everything in the union is now durable on both sides; any rows the
	// outbox failed to deliver are covered by this merge.
	if e.outbox != nil {
		e.outbox.markRecovered(keys)
	}
	return nil
}

// buildUpsert assembles the remote row for an event the local side won.
// Field fallbacks mirror the merge rule: local value, then remote value,
// then the column's absent form.
func buildUpsert(owner uint64, eventID string, stamp time.Time,
	ls model.StatusRecord, lsOK bool, lo model.OverrideRecord, loOK bool,
	rs model.StatusRecord, rsOK bool, ro model.OverrideRecord, roOK bool) model.OverrideRow {

	row := model.OverrideRow{
		OwnerID:     owner,
		BaseEventID: eventID,
		UpdatedAt:   stamp,
	}
	switch {
	case lsOK:
		st := ls.Status
		row.Status = &st
	case rsOK:
		st := rs.Status
		row.Status = &st
	}
	switch {
	case loOK:
		row.Hidden = lo.Hidden
		if lo.Notes != "" {
			n := lo.Notes
			row.Notes = &n
		}
	case roOK:
		row.Hidden = ro.Hidden
		if ro.Notes != "" {
			n := ro.Notes
			row.Notes = &n
		}
	}
	return row
}

// latest returns the later of two optional timestamps, mirroring the
// per-side "newest of status and override" rule.
func latest(a time.Time, aok bool, b time.Time, bok bool) (time.Time, bool) {
	switch {
	case !aok && !bok:
		return time.Time{}, false
	case !aok:
		return b, true
	case !bok:
		return a, true
	case b.After(a):
		return b, true
	default:
		return a, true
	}
}

// unionKeys collects every event identifier present in any of the four
// maps, sorted so upsert batches are deterministic.
func unionKeys(a model.StatusMap, b model.OverrideMap, c model.StatusMap, d model.OverrideMap) []string {
	seen := map[string]struct{}{}
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	for k := range c {
		seen[k] = struct{}{}
	}
	for k := range d {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneStatus(m model.StatusMap) model.StatusMap {
	out := make(model.StatusMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneOverrides(m model.OverrideMap) model.OverrideMap {
	out := make(model.OverrideMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
