package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/khanglvm/search-tracker/internal/collector"
	"github.com/khanglvm/search-tracker/internal/logger"
	"github.com/khanglvm/search-tracker/internal/storage"
)

const (
	// DefaultStorageKey is the key the backlog blob is stored under.
	DefaultStorageKey = "search-tracker-events"

	// DefaultRetention is how long submitted events are kept.
	DefaultRetention = 30 * 24 * time.Hour
)

// Sender submits one event to the collector. *collector.Client implements it.
type Sender interface {
	TrackEvent(ctx context.Context, queryID, eventType string, payload collector.Payload) (json.RawMessage, error)
}

// Options configures a Tracker. Store and Sender are required.
type Options struct {
	// Store persists the backlog.
	Store storage.BlobStore

	// Sender delivers events.
	Sender Sender

	// StorageKey defaults to DefaultStorageKey.
	StorageKey string

	// Logger defaults to a no-op logger.
	Logger logger.Logger

	// Observer defaults to a no-op observer.
	Observer Observer

	// Queries is the correlation state. Trackers may share one; a fresh
	// holder is created when nil.
	Queries *QueryState

	// Retention defaults to DefaultRetention.
	Retention time.Duration

	// MaxInFlight caps concurrent deliveries per flush. Zero means no limit.
	MaxInFlight int

	// Now defaults to time.Now.
	Now func() time.Time

	// ManualStartup skips the background flush and purge New normally
	// starts. The caller is expected to run them itself.
	ManualStartup bool
}

// Tracker owns the event ledger and drives delivery and retention.
//
// Flushes triggered by Add run in the background and may overlap. Two
// overlapping flushes can both send the same pending event, so the collector
// sees each event at least once, not exactly once.
type Tracker struct {
	ledger      *Ledger
	sender      Sender
	queries     *QueryState
	log         logger.Logger
	observer    Observer
	retention   time.Duration
	maxInFlight int
	now         func() time.Time

	// bgCtx is detached from caller cancellation: a running flush is never aborted.
	bgCtx    context.Context
	mu       sync.Mutex
	stopped  bool
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New rehydrates the ledger from the store and starts a background flush
// followed by a purge.
func New(ctx context.Context, opts Options) (*Tracker, error) {
	if opts.Store == nil {
		return nil, errors.New("tracking: store is required")
	}
	if opts.Sender == nil {
		return nil, errors.New("tracking: sender is required")
	}

	t := &Tracker{
		sender:      opts.Sender,
		queries:     opts.Queries,
		log:         opts.Logger,
		observer:    opts.Observer,
		retention:   opts.Retention,
		maxInFlight: opts.MaxInFlight,
		now:         opts.Now,
		bgCtx:       context.WithoutCancel(ctx),
	}
	if t.queries == nil {
		t.queries = NewQueryState()
	}
	if t.log == nil {
		t.log = logger.NewNop()
	}
	if t.observer == nil {
		t.observer = nopObserver{}
	}
	if t.retention <= 0 {
		t.retention = DefaultRetention
	}
	if t.now == nil {
		t.now = time.Now
	}

	key := opts.StorageKey
	if key == "" {
		key = DefaultStorageKey
	}
	t.ledger = NewLedger(opts.Store, key)

	if err := t.ledger.Load(ctx); err != nil {
		t.log.Warn("starting with an empty event backlog", logger.Error(err))
		t.observer.StorageFailed("read", err)
	}

	if !opts.ManualStartup {
		t.background(func(ctx context.Context) {
			t.Flush(ctx)
			t.Purge(ctx)
		})
	}

	return t, nil
}

// Add records an event attributed to queryID, persists the ledger and
// starts a background flush.
func (t *Tracker) Add(ctx context.Context, queryID, eventType, value string, metadata Metadata) Outcome {
	if queryID == "" || eventType == "" || value == "" {
		return t.reject(eventType, value, "query id, event type and value are required")
	}
	if err := metadata.Validate(); err != nil {
		return t.reject(eventType, value, err.Error())
	}

	t.ledger.Append(value, Event{
		QueryID:   queryID,
		Type:      eventType,
		Timestamp: t.now().UnixMilli(),
		Metadata:  metadata,
	})
	t.persist(ctx)
	t.observer.EventRecorded(eventType)

	t.log.Debug("event recorded",
		logger.String("query_id", queryID),
		logger.String("type", eventType),
		logger.String("value", value),
	)

	t.background(func(ctx context.Context) { t.Flush(ctx) })

	return OutcomeRecorded
}

func (t *Tracker) reject(eventType, value, reason string) Outcome {
	t.log.Warn("rejecting event",
		logger.String("type", eventType),
		logger.String("value", value),
		logger.String("reason", reason),
	)
	t.observer.EventSkipped(eventType, "invalid")
	return OutcomeRejected
}

// Events returns a copy of the events recorded for value.
func (t *Tracker) Events(value string) []Event {
	return t.ledger.Events(value)
}

// Values returns every tracked value in sorted order.
func (t *Tracker) Values() []string {
	return t.ledger.Values()
}

// Len returns the number of events in the ledger, submitted or not.
func (t *Tracker) Len() int {
	return t.ledger.Len()
}

// Pending returns the number of unsubmitted events.
func (t *Tracker) Pending() int {
	return len(t.ledger.pending())
}

// Wait blocks until all background flushes have settled.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

// Stop prevents new background flushes and waits for running ones.
// Events added after Stop are still recorded and persisted.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.stopped = true
		t.mu.Unlock()
		t.wg.Wait()
	})
}

func (t *Tracker) background(fn func(ctx context.Context)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		fn(t.bgCtx)
	}()
}

// persist saves the ledger, logging instead of failing. The in-memory
// ledger stays authoritative until the next successful save.
func (t *Tracker) persist(ctx context.Context) bool {
	if err := t.ledger.Save(ctx); err != nil {
		t.log.Warn("failed to persist event backlog", logger.Error(err))
		t.observer.StorageFailed("write", err)
		return false
	}
	return true
}
