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

// flakyRemote fails the first failFirst upsert attempts, then succeeds.
type flakyRemote struct {
	mu        sync.Mutex
	failFirst int
	attempts  int
	delivered []model.OverrideRow
}

func (f *flakyRemote) FetchForOwner(ctx context.Context, ownerID uint64) ([]model.OverrideRow, error) {
	return nil, nil
}

func (f *flakyRemote) Upsert(ctx context.Context, rows []model.OverrideRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.attempts <= f.failFirst {
		return errors.New("lost connection")
	}
	f.delivered = append(f.delivered, rows...)
	return nil
}

func (f *flakyRemote) deliveredCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered)
}

func fastConfig(maxAttempts int) OutboxConfig {
	return OutboxConfig{
		QueueSize:   4,
		MaxAttempts: maxAttempts,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  4 * time.Millisecond,
		CallTimeout: time.Second,
	}
}

func testRow(eventID string) model.OverrideRow {
	st := model.StatusGoing
	return model.OverrideRow{
		OwnerID:     7,
		BaseEventID: eventID,
		Status:      &st,
		UpdatedAt:   time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC),
	}
}

func TestOutboxDeliversAfterRetries(t *testing.T) {
	remote := &flakyRemote{failFirst: 2}
	o := NewOutbox(remote, fastConfig(5))

	require.True(t, o.Enqueue(testRow("ev-1")))
	o.Close()

	assert.Equal(t, 1, remote.deliveredCount())
	assert.Equal(t, 3, remote.attempts)
	assert.False(t, o.Pending("ev-1"), "confirmed delivery clears the pending flag")
}

func TestOutboxGivesUpAndStaysPending(t *testing.T) {
	remote := &flakyRemote{failFirst: 100}
	o := NewOutbox(remote, fastConfig(2))

	require.True(t, o.Enqueue(testRow("ev-2")))
	o.Close()

	assert.Equal(t, 0, remote.deliveredCount())
	assert.True(t, o.Pending("ev-2"), "an undelivered row must keep reporting pending")
}

func TestOutboxRejectsWhenClosed(t *testing.T) {
	remote := &flakyRemote{}
	o := NewOutbox(remote, fastConfig(1))
	o.Close()

	assert.False(t, o.Enqueue(testRow("ev-3")))
	assert.False(t, o.Pending("ev-3"))
}

func TestOutboxDrainsBacklogOnClose(t *testing.T) {
	remote := &flakyRemote{}
	o := NewOutbox(remote, fastConfig(1))

	for i := 0; i < 4; i++ {
		o.Enqueue(testRow("ev-4"))
	}
	o.Close()

	assert.Equal(t, 4, remote.deliveredCount())
	assert.False(t, o.Pending("ev-4"))
}
