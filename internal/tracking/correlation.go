package tracking

import (
	"context"
	"sync"

	"github.com/khanglvm/search-tracker/internal/logger"
)

// QueryState holds the id of the query currently shown to the user.
//
// It starts unset and every Set overwrites it (last write wins). It is never
// cleared automatically. The mutex only guards the field for the race
// detector; callers get no ordering guarantee between concurrent Sets.
type QueryState struct {
	mu      sync.RWMutex
	current string
}

// NewQueryState creates an unset holder.
func NewQueryState() *QueryState {
	return &QueryState{}
}

// Set overwrites the current query id.
func (q *QueryState) Set(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.current = id
}

// Current returns the current query id and whether one was set.
func (q *QueryState) Current() (string, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.current, q.current != ""
}

// IsFunnelEntry reports whether eventType marks first contact with a search
// result. Such events always belong to the query currently in view.
func IsFunnelEntry(eventType string) bool {
	switch eventType {
	case TypeClick, TypeRedirect, TypePromotionClick:
		return true
	default:
		return false
	}
}

// UpdateQueryID records the id of a newly executed search.
func (t *Tracker) UpdateQueryID(id string) {
	t.queries.Set(id)
}

// ResolveQueryID picks the query an ad-hoc event should be attributed to.
//
// Funnel-entry events use the current query id. Other events continue the
// funnel of the most recent event recorded for value, falling back to the
// current query id when value has no history. ok is false when neither
// source has an id.
func (t *Tracker) ResolveQueryID(eventType, value string) (queryID string, ok bool) {
	if !IsFunnelEntry(eventType) {
		if events := t.ledger.Events(value); len(events) > 0 {
			return events[len(events)-1].QueryID, true
		}
	}
	return t.queries.Current()
}

// Track records an ad-hoc event, resolving its query id first.
//
// When no query id can be resolved the event is dropped with a warning and
// OutcomeSkipped is returned; the call never fails.
func (t *Tracker) Track(ctx context.Context, eventType string, value string, metadata Metadata) Outcome {
	if eventType == "" || value == "" {
		return t.reject(eventType, value, "event type and value are required")
	}

	queryID, ok := t.ResolveQueryID(eventType, value)
	if !ok {
		t.log.Warn("no query id for event, not tracking it",
			logger.String("type", eventType),
			logger.String("value", value),
		)
		t.observer.EventSkipped(eventType, "no_query_id")
		return OutcomeSkipped
	}

	return t.Add(ctx, queryID, eventType, value, metadata)
}
