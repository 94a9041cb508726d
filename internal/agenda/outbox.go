package agenda

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/blocosbh/bloco-agenda/internal/model"
)

// OutboxConfig tunes queue depth and retry behavior.
type OutboxConfig struct {
	QueueSize   int           // bounded queue capacity
	MaxAttempts int           // delivery attempts before giving up
	BaseBackoff time.Duration // first retry delay, doubled per attempt
	MaxBackoff  time.Duration // backoff cap
	CallTimeout time.Duration // per-attempt upsert timeout
}

// DefaultOutboxConfig uses the same one-second-to-thirty backoff window
// as the broker consumer, with a small bounded queue.
func DefaultOutboxConfig() OutboxConfig {
	return OutboxConfig{
		QueueSize:   256,
		MaxAttempts: 5,
		BaseBackoff: time.Second,
		MaxBackoff:  30 * time.Second,
		CallTimeout: 10 * time.Second,
	}
}

// Outbox is the bounded work queue behind SetStatus/SetOverride remote
// writes. Each local mutation enqueues one row; a single background
// worker drains the queue, retrying with capped exponential backoff.
// Delivery failures are logged, never surfaced to the mutating caller:
// an undelivered row stays flagged pending and the next MergeAndSync
// covers it.
type Outbox struct {
	remote RemoteStore
	cfg    OutboxConfig
	tasks  chan model.OverrideRow

	mu      sync.Mutex
	pending map[string]int // event id -> queued-but-unconfirmed rows
	closed  bool

	wg sync.WaitGroup
}

// NewOutbox starts the worker and returns the queue. Callers own the
// lifecycle and must Close it to drain outstanding rows.
func NewOutbox(remote RemoteStore, cfg OutboxConfig) *Outbox {
	if cfg.QueueSize <= 0 {
		cfg = DefaultOutboxConfig()
	}
	o := &Outbox{
		remote:  remote,
		cfg:     cfg,
		tasks:   make(chan model.OverrideRow, cfg.QueueSize),
		pending: map[string]int{},
	}
	o.wg.Add(1)
	go o.drain()
	return o
}

// Enqueue queues one remote upsert. Returns false when the queue is
// full or closed; the row is then left to the next merge, which reads
// the local maps directly and needs no queue entry.
func (o *Outbox) Enqueue(row model.OverrideRow) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	select {
	case o.tasks <- row:
		o.pending[row.BaseEventID]++
		o.mu.Unlock()
		return true
	default:
		o.mu.Unlock()
		log.Printf("outbox: queue full, dropping upsert for event %s (next merge will cover it)", row.BaseEventID)
		return false
	}
}

// markRecovered clears the pending flags for events whose state a merge
// has just pushed or adopted. Rows the worker gave up on are covered by
// that merge; rows still queued re-deliver the same already-committed
// data and need no flag either.
func (o *Outbox) markRecovered(eventIDs []string) {
	o.mu.Lock()
	for _, id := range eventIDs {
		delete(o.pending, id)
	}
	o.mu.Unlock()
}

// Pending reports whether eventID still has undelivered rows, including
// rows the worker gave up on.
func (o *Outbox) Pending(eventID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pending[eventID] > 0
}

// Close stops accepting rows, waits for the worker to finish the
// backlog, and returns.
func (o *Outbox) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	close(o.tasks)
	o.mu.Unlock()
	o.wg.Wait()
}

func (o *Outbox) drain() {
	defer o.wg.Done()
	for row := range o.tasks {
		if o.deliver(row) {
			o.mu.Lock()
			if o.pending[row.BaseEventID] > 1 {
				o.pending[row.BaseEventID]--
			} else {
				delete(o.pending, row.BaseEventID)
			}
			o.mu.Unlock()
		}
		// On give-up the pending count stays set so PendingSync keeps
		// reporting the row until a merge reconciles it.
	}
}

// deliver attempts the upsert with capped exponential backoff. Reports
// whether the row was confirmed written.
func (o *Outbox) deliver(row model.OverrideRow) bool {
	backoff := o.cfg.BaseBackoff
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.CallTimeout)
		err := o.remote.Upsert(ctx, []model.OverrideRow{row})
		cancel()
		if err == nil {
			return true
		}
		log.Printf("outbox: upsert event %s attempt %d/%d failed: %v", row.BaseEventID, attempt, o.cfg.MaxAttempts, err)
		if attempt == o.cfg.MaxAttempts {
			break
		}
		time.Sleep(backoff)
		if backoff < o.cfg.MaxBackoff {
			backoff *= 2
		}
	}
	log.Printf("outbox: giving up on event %s, leaving it pending for the next merge", row.BaseEventID)
	return false
}
