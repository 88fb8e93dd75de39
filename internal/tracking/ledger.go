package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/khanglvm/search-tracker/internal/storage"
)

// ErrCorruptBacklog is returned by Load when the stored blob cannot be used.
var ErrCorruptBacklog = errors.New("corrupt event backlog")

// Ledger maps tracked values to their events in insertion order.
//
// A value present in the ledger always has at least one event. Records are
// held by pointer so a delivery that finishes after the value's sequence was
// replaced still marks the same record.
//
// The mutex only makes the map safe for concurrent goroutines in this
// process; it does not coordinate with other processes sharing the store.
type Ledger struct {
	mu      sync.Mutex
	store   storage.BlobStore
	key     string
	entries map[string][]*Event
}

// NewLedger creates an empty ledger persisted under key.
func NewLedger(store storage.BlobStore, key string) *Ledger {
	return &Ledger{
		store:   store,
		key:     key,
		entries: make(map[string][]*Event),
	}
}

// Load replaces the ledger with the persisted blob.
//
// A missing blob yields an empty ledger. A read failure or an unusable blob
// also yields an empty ledger, and the cause is returned for logging.
func (l *Ledger) Load(ctx context.Context) error {
	raw, found, err := l.store.GetItem(ctx, l.key)

	entries := make(map[string][]*Event)
	var loadErr error
	switch {
	case err != nil:
		loadErr = fmt.Errorf("failed to read event backlog: %w", err)
	case found:
		parsed, perr := decodeEntries(raw)
		if perr != nil {
			loadErr = fmt.Errorf("%w: %v", ErrCorruptBacklog, perr)
		} else {
			entries = parsed
		}
	}

	l.mu.Lock()
	l.entries = entries
	l.mu.Unlock()

	return loadErr
}

func decodeEntries(raw string) (map[string][]*Event, error) {
	var decoded map[string][]Event
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, err
	}
	if decoded == nil {
		return nil, errors.New("backlog is not an object")
	}

	entries := make(map[string][]*Event, len(decoded))
	for value, events := range decoded {
		if len(events) == 0 {
			continue
		}
		records := make([]*Event, 0, len(events))
		for i := range events {
			if events[i].Type == "" || events[i].Timestamp <= 0 {
				return nil, fmt.Errorf("value %q: event %d is missing type or timestamp", value, i)
			}
			records = append(records, &events[i])
		}
		entries[value] = records
	}

	return entries, nil
}

// Events returns a copy of the events recorded for value.
func (l *Ledger) Events(value string) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	records := l.entries[value]
	events := make([]Event, 0, len(records))
	for _, r := range records {
		events = append(events, r.clone())
	}
	return events
}

// SetEvents replaces the events for value. An empty slice removes the value.
func (l *Ledger) SetEvents(value string, events []Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(events) == 0 {
		delete(l.entries, value)
		return
	}

	records := make([]*Event, 0, len(events))
	for _, e := range events {
		e := e.clone()
		records = append(records, &e)
	}
	l.entries[value] = records
}

// Append adds one event at the end of value's sequence.
func (l *Ledger) Append(value string, event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := event.clone()
	l.entries[value] = append(l.entries[value], &e)
}

// Values returns the tracked values in sorted order.
func (l *Ledger) Values() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	values := make([]string, 0, len(l.entries))
	for v := range l.entries {
		values = append(values, v)
	}
	slices.Sort(values)
	return values
}

// Len returns the total number of events.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, records := range l.entries {
		n += len(records)
	}
	return n
}

// Save writes the whole ledger to the store.
func (l *Ledger) Save(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(l.entries)
	if err != nil {
		return fmt.Errorf("failed to encode event backlog: %w", err)
	}

	if err := l.store.SetItem(ctx, l.key, string(data)); err != nil {
		return fmt.Errorf("failed to write event backlog: %w", err)
	}
	return nil
}

// pendingEvent is a snapshot of an unsubmitted record.
type pendingEvent struct {
	value  string
	event  Event
	record *Event
}

// pending snapshots every unsubmitted record.
func (l *Ledger) pending() []pendingEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []pendingEvent
	for value, records := range l.entries {
		for _, r := range records {
			if !r.Submitted {
				out = append(out, pendingEvent{value: value, event: r.clone(), record: r})
			}
		}
	}
	return out
}

// markSubmitted flags a record as delivered.
func (l *Ledger) markSubmitted(record *Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	record.Submitted = true
}

// retain drops records for which keep returns false and reports how many
// were removed. Values left without records are deleted.
func (l *Ledger) retain(keep func(Event) bool) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for value, records := range l.entries {
		kept := records[:0:0]
		for _, r := range records {
			if keep(*r) {
				kept = append(kept, r)
			}
		}
		if len(kept) == len(records) {
			continue
		}
		removed += len(records) - len(kept)
		if len(kept) == 0 {
			delete(l.entries, value)
		} else {
			l.entries[value] = kept
		}
	}
	return removed
}
