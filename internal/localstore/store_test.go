package localstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blocosbh/bloco-agenda/internal/model"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "agenda.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadBeforeAnySaveReturnsEmptyMaps(t *testing.T) {
	s := openTemp(t)

	assert.Empty(t, s.LoadStatusMap())
	assert.Empty(t, s.LoadOverrideMap())
	assert.Empty(t, s.LoadGoingRoleMap())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTemp(t)
	at := time.Date(2026, 2, 14, 15, 30, 0, 0, time.UTC)

	status := model.StatusMap{
		"ev-1": {Status: model.StatusSure, UpdatedAt: at},
		"ev-2": {Status: model.StatusMaybe, UpdatedAt: at.Add(time.Minute)},
	}
	overrides := model.OverrideMap{
		"ev-1": {Hidden: true, Notes: "sair às 14h", UpdatedAt: at},
	}
	roles := model.GoingRoleMap{
		"ev-2": {Role: "percussão", UpdatedAt: at},
	}

	require.NoError(t, s.SaveStatusMap(status))
	require.NoError(t, s.SaveOverrideMap(overrides))
	require.NoError(t, s.SaveGoingRoleMap(roles))

	assert.Equal(t, status, s.LoadStatusMap())
	assert.Equal(t, overrides, s.LoadOverrideMap())
	assert.Equal(t, roles, s.LoadGoingRoleMap())
}

func TestSaveReplacesWholeDocument(t *testing.T) {
	s := openTemp(t)
	at := time.Date(2026, 2, 14, 15, 30, 0, 0, time.UTC)

	require.NoError(t, s.SaveStatusMap(model.StatusMap{
		"ev-1": {Status: model.StatusGoing, UpdatedAt: at},
		"ev-2": {Status: model.StatusSure, UpdatedAt: at},
	}))
	require.NoError(t, s.SaveStatusMap(model.StatusMap{
		"ev-3": {Status: model.StatusMaybe, UpdatedAt: at},
	}))

	got := s.LoadStatusMap()
	require.Len(t, got, 1)
	_, ok := got["ev-3"]
	assert.True(t, ok, "old entries must not survive a full replace")
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agenda.db")
	at := time.Date(2026, 2, 14, 15, 30, 0, 0, time.UTC)

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveStatusMap(model.StatusMap{
		"ev-1": {Status: model.StatusSure, UpdatedAt: at},
	}))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got := s2.LoadStatusMap()
	require.Len(t, got, 1)
	assert.Equal(t, model.StatusSure, got["ev-1"].Status)
}

func TestCorruptPayloadLoadsAsEmpty(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.SaveOverrideMap(model.OverrideMap{
		"ev-1": {Hidden: true, UpdatedAt: time.Now().UTC()},
	}))

	_, err := s.db.Exec(`UPDATE agenda_kv SET v = ? WHERE k = ?`, `{"ev-1": {`, overrideKey)
	require.NoError(t, err)

	assert.Empty(t, s.LoadOverrideMap(), "a payload that does not parse behaves like absence")
}

func TestNilStoreIsUsable(t *testing.T) {
	var s *Store

	assert.Empty(t, s.LoadStatusMap())
	assert.NoError(t, s.SaveStatusMap(model.StatusMap{"ev-1": {Status: model.StatusGoing}}))
	assert.NoError(t, s.Close())
}
