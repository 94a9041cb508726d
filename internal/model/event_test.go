package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBaseEventKeyIsZoneIndependent(t *testing.T) {
	listing := time.FixedZone("-03", -3*60*60)
	fresh := BaseEvent{
		Title:    "Então Brilha",
		StartsAt: time.Date(2026, 2, 14, 17, 30, 0, 0, listing),
		Location: "Rua dos Guajajaras",
	}
	// The same row read back from the database carries a UTC timestamp.
	stored := fresh
	stored.StartsAt = fresh.StartsAt.UTC()

	assert.Equal(t, fresh.Key(), stored.Key(), "the same instant must key identically in any zone")
	assert.Contains(t, fresh.Key(), "2026-02-14T20:30:00Z")
}
