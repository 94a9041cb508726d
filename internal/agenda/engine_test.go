package agenda

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blocosbh/bloco-agenda/internal/model"
)

// fakeRemote is an in-memory RemoteStore for a single owner, with
// injectable failures and call accounting.
type fakeRemote struct {
	mu         sync.Mutex
	rows       map[string]model.OverrideRow // keyed by event id
	fetchErr   error
	upsertErr  error
	fetchCalls int
	upserts    [][]model.OverrideRow
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{rows: map[string]model.OverrideRow{}}
}

func (f *fakeRemote) FetchForOwner(ctx context.Context, ownerID uint64) ([]model.OverrideRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]model.OverrideRow, 0, len(f.rows))
	for _, row := range f.rows {
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeRemote) Upsert(ctx context.Context, rows []model.OverrideRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	batch := make([]model.OverrideRow, len(rows))
	copy(batch, rows)
	f.upserts = append(f.upserts, batch)
	for _, row := range rows {
		f.rows[row.BaseEventID] = row
	}
	return nil
}

func (f *fakeRemote) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts)
}

var t0 = time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)

// newTestEngine builds an engine with no local file (nil store), a fake
// remote, a pinned clock and an installed owner.
func newTestEngine(remote *fakeRemote) *Engine {
	e := NewEngine(nil, remote, WithNow(func() time.Time { return t0 }))
	e.setOwner(7)
	return e
}

func statusPtr(s model.EventStatus) *model.EventStatus { return &s }

func TestSetStatusThenGetStatus(t *testing.T) {
	e := NewEngine(nil, newFakeRemote(), WithNow(func() time.Time { return t0 }))

	require.NoError(t, e.SetStatus("ev-1", model.StatusSure))
	got, ok := e.GetStatus("ev-1")
	require.True(t, ok)
	assert.Equal(t, model.StatusSure, got)

	_, ok = e.GetStatus("ev-2")
	assert.False(t, ok)
}

func TestSetStatusRejectsUnknownValue(t *testing.T) {
	e := NewEngine(nil, newFakeRemote())
	err := e.SetStatus("ev-1", model.EventStatus("definitely"))
	require.ErrorIs(t, err, ErrInvalidStatus)
	_, ok := e.GetStatus("ev-1")
	assert.False(t, ok)
}

func TestMergeWithoutIdentityIsNoop(t *testing.T) {
	remote := newFakeRemote()
	e := NewEngine(nil, remote)
	require.NoError(t, e.SetStatus("ev-1", model.StatusMaybe))

	require.NoError(t, e.MergeAndSync(context.Background()))

	assert.Equal(t, 0, remote.fetchCalls, "no identity must mean no remote reads")
	got, ok := e.GetStatus("ev-1")
	require.True(t, ok)
	assert.Equal(t, model.StatusMaybe, got)
}

func TestMergeLocalOnlyPushesRemote(t *testing.T) {
	// Scenario: a status chosen before sign-in, remote table empty.
	remote := newFakeRemote()
	e := newTestEngine(remote)
	require.NoError(t, e.SetStatus("ev-x", model.StatusSure))
	before := e.StatusMap()

	require.NoError(t, e.MergeAndSync(context.Background()))

	require.Equal(t, 1, remote.upsertCount())
	batch := remote.upserts[0]
	require.Len(t, batch, 1)
	assert.Equal(t, "ev-x", batch[0].BaseEventID)
	require.NotNil(t, batch[0].Status)
	assert.Equal(t, model.StatusSure, *batch[0].Status)
	assert.True(t, batch[0].UpdatedAt.Equal(t0))
	assert.Equal(t, before, e.StatusMap(), "local map must be unchanged")
}

func TestMergeRemoteOnlyAdoptsLocally(t *testing.T) {
	remote := newFakeRemote()
	remote.rows["ev-y"] = model.OverrideRow{
		OwnerID: 7, BaseEventID: "ev-y",
		Status: statusPtr(model.StatusMaybe), UpdatedAt: t0.Add(-time.Hour),
	}
	e := newTestEngine(remote)

	require.NoError(t, e.MergeAndSync(context.Background()))

	got, ok := e.GetStatus("ev-y")
	require.True(t, ok)
	assert.Equal(t, model.StatusMaybe, got)
	assert.Equal(t, 0, remote.upsertCount(), "adopting remote must not write back")
}

func TestMergeNewerSideWins(t *testing.T) {
	cases := []struct {
		name        string
		localDelta  time.Duration
		remoteDelta time.Duration
		wantStatus  model.EventStatus
		wantUpserts int
	}{
		{"local newer pushes", 0, -time.Hour, model.StatusSure, 1},
		{"remote newer adopted", -time.Hour, 0, model.StatusGoing, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			remote := newFakeRemote()
			remote.rows["ev-z"] = model.OverrideRow{
				OwnerID: 7, BaseEventID: "ev-z",
				Status: statusPtr(model.StatusGoing), UpdatedAt: t0.Add(tc.remoteDelta),
			}
			localAt := t0.Add(tc.localDelta)
			e := NewEngine(nil, remote, WithNow(func() time.Time { return localAt }))
			e.setOwner(7)
			require.NoError(t, e.SetStatus("ev-z", model.StatusSure))

			require.NoError(t, e.MergeAndSync(context.Background()))

			got, ok := e.GetStatus("ev-z")
			require.True(t, ok)
			assert.Equal(t, tc.wantStatus, got)
			assert.Equal(t, tc.wantUpserts, remote.upsertCount())
		})
	}
}

func TestMergeEqualTimestampsPrefersRemoteWithoutWriting(t *testing.T) {
	remote := newFakeRemote()
	remote.rows["ev-t"] = model.OverrideRow{
		OwnerID: 7, BaseEventID: "ev-t",
		Status: statusPtr(model.StatusGoing), UpdatedAt: t0,
	}
	e := newTestEngine(remote)
	require.NoError(t, e.SetStatus("ev-t", model.StatusSure)) // also stamped t0

	require.NoError(t, e.MergeAndSync(context.Background()))

	got, ok := e.GetStatus("ev-t")
	require.True(t, ok)
	assert.Equal(t, model.StatusGoing, got, "exact tie adopts the already-durable remote copy")
	assert.Equal(t, 0, remote.upsertCount())
}

func TestMergeIsIdempotent(t *testing.T) {
	remote := newFakeRemote()
	remote.rows["ev-b"] = model.OverrideRow{
		OwnerID: 7, BaseEventID: "ev-b",
		Status: statusPtr(model.StatusMaybe), UpdatedAt: t0.Add(-2 * time.Hour),
	}
	e := newTestEngine(remote)
	require.NoError(t, e.SetStatus("ev-a", model.StatusSure))
	require.NoError(t, e.SetOverride("ev-c", true, "chegar cedo"))

	require.NoError(t, e.MergeAndSync(context.Background()))
	first := remote.upsertCount()
	require.Greater(t, first, 0)

	require.NoError(t, e.MergeAndSync(context.Background()))
	assert.Equal(t, first, remote.upsertCount(), "second merge must not write again")
}

func TestMergeOverrideOnlyLocalKeepsStatusNull(t *testing.T) {
	remote := newFakeRemote()
	e := newTestEngine(remote)
	require.NoError(t, e.SetOverride("ev-h", true, ""))

	require.NoError(t, e.MergeAndSync(context.Background()))

	require.Equal(t, 1, remote.upsertCount())
	row := remote.upserts[0][0]
	assert.Nil(t, row.Status, "no status was ever chosen; none may be invented")
	assert.True(t, row.Hidden)
}

func TestMergeFetchFailureLeavesStateUntouched(t *testing.T) {
	remote := newFakeRemote()
	remote.fetchErr = errors.New("connection reset")
	e := newTestEngine(remote)
	require.NoError(t, e.SetStatus("ev-d", model.StatusGoing))
	require.NoError(t, e.SetOverride("ev-d", false, "bateria forte"))
	statusBefore := e.StatusMap()
	overridesBefore := e.OverrideMap()

	err := e.MergeAndSync(context.Background())
	require.Error(t, err)

	assert.Equal(t, statusBefore, e.StatusMap())
	assert.Equal(t, overridesBefore, e.OverrideMap())
	assert.False(t, e.Syncing(), "syncing flag must reset on failure")
}

func TestMergeUpsertFailureLeavesStateUntouched(t *testing.T) {
	remote := newFakeRemote()
	remote.rows["ev-r"] = model.OverrideRow{
		OwnerID: 7, BaseEventID: "ev-r",
		Status: statusPtr(model.StatusMaybe), UpdatedAt: t0.Add(time.Hour),
	}
	remote.upsertErr = errors.New("deadlock")
	e := newTestEngine(remote)
	require.NoError(t, e.SetStatus("ev-p", model.StatusSure)) // forces an upsert batch
	statusBefore := e.StatusMap()

	err := e.MergeAndSync(context.Background())
	require.Error(t, err)

	assert.Equal(t, statusBefore, e.StatusMap(), "failed push must not adopt anything")
	_, ok := e.GetStatus("ev-r")
	assert.False(t, ok, "remote adoption must not survive an aborted merge")
}

func TestMergeTreatsNullTimestampAsEpoch(t *testing.T) {
	remote := newFakeRemote()
	// A legacy row with NULL updated_at scans as the zero time.
	remote.rows["ev-n"] = model.OverrideRow{
		OwnerID: 7, BaseEventID: "ev-n",
		Status: statusPtr(model.StatusMaybe),
	}
	e := newTestEngine(remote)
	require.NoError(t, e.SetStatus("ev-n", model.StatusSure))

	require.NoError(t, e.MergeAndSync(context.Background()))

	got, _ := e.GetStatus("ev-n")
	assert.Equal(t, model.StatusSure, got, "any real timestamp beats epoch zero")
	require.Equal(t, 1, remote.upsertCount())
}

func TestSetOverrideCarriesCurrentStatus(t *testing.T) {
	remote := newFakeRemote()
	outbox := NewOutbox(remote, OutboxConfig{
		QueueSize: 8, MaxAttempts: 1, BaseBackoff: time.Millisecond,
		MaxBackoff: time.Millisecond, CallTimeout: time.Second,
	})
	e := NewEngine(nil, remote, WithNow(func() time.Time { return t0 }), WithOutbox(outbox))
	e.setOwner(7)

	require.NoError(t, e.SetStatus("ev-s", model.StatusGoing))
	require.NoError(t, e.SetOverride("ev-s", false, "levar abadá"))
	outbox.Close()

	require.Equal(t, 2, remote.upsertCount())
	last := remote.upserts[1][0]
	require.NotNil(t, last.Status)
	assert.Equal(t, model.StatusGoing, *last.Status, "override row must carry the known status")
	require.NotNil(t, last.Notes)
	assert.Equal(t, "levar abadá", *last.Notes)
}

func TestMergeClearsStalePendingFlags(t *testing.T) {
	remote := newFakeRemote()
	remote.upsertErr = errors.New("gateway timeout")
	outbox := NewOutbox(remote, fastConfig(1))
	e := NewEngine(nil, remote, WithNow(func() time.Time { return t0 }), WithOutbox(outbox))
	e.setOwner(7)

	require.NoError(t, e.SetStatus("ev-f", model.StatusSure))
	outbox.Close() // worker gives up on the queued row
	require.True(t, e.PendingSync("ev-f"))

	remote.mu.Lock()
	remote.upsertErr = nil
	remote.mu.Unlock()

	require.NoError(t, e.MergeAndSync(context.Background()))
	assert.False(t, e.PendingSync("ev-f"), "a successful merge covers what the queue could not deliver")
	require.Equal(t, 1, remote.upsertCount(), "the merge itself pushes the undelivered row")
}

func TestSessionMergesOncePerSignIn(t *testing.T) {
	remote := newFakeRemote()
	e := NewEngine(nil, remote, WithNow(func() time.Time { return t0 }))
	sess := NewSession(e)
	ctx := context.Background()

	require.NoError(t, sess.OnSignIn(ctx, 7))
	require.NoError(t, sess.OnSignIn(ctx, 7)) // already connected: no second merge
	assert.Equal(t, 1, remote.fetchCalls)
	assert.Equal(t, Connected, sess.State())

	sess.OnSignOut()
	assert.Equal(t, Disconnected, sess.State())

	require.NoError(t, sess.OnSignIn(ctx, 7)) // a fresh transition merges again
	assert.Equal(t, 2, remote.fetchCalls)
}

func TestSignOutKeepsLocalState(t *testing.T) {
	remote := newFakeRemote()
	remote.rows["ev-k"] = model.OverrideRow{
		OwnerID: 7, BaseEventID: "ev-k",
		Status: statusPtr(model.StatusGoing), UpdatedAt: t0,
	}
	e := NewEngine(nil, remote, WithNow(func() time.Time { return t0 }))
	sess := NewSession(e)

	require.NoError(t, sess.OnSignIn(context.Background(), 7))
	sess.OnSignOut()

	got, ok := e.GetStatus("ev-k")
	require.True(t, ok, "merged state survives sign-out")
	assert.Equal(t, model.StatusGoing, got)
}
