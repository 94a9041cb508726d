package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventStatusValid(t *testing.T) {
	assert.True(t, StatusMaybe.Valid())
	assert.True(t, StatusGoing.Valid())
	assert.True(t, StatusSure.Valid())

	assert.False(t, EventStatus("").Valid())
	assert.False(t, EventStatus("interested").Valid())
	assert.False(t, EventStatus("Going").Valid(), "values are case sensitive")
}

func TestStatusRecordJSONShape(t *testing.T) {
	rec := StatusRecord{
		Status:    StatusSure,
		UpdatedAt: time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC),
	}
	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"sure","updatedAt":"2026-02-14T12:00:00Z"}`, string(raw))
}

func TestOverrideRecordOmitsEmptyFields(t *testing.T) {
	rec := OverrideRecord{UpdatedAt: time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)}
	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"updatedAt":"2026-02-14T12:00:00Z"}`, string(raw))
}
