/*
Package tracking records search interactions and delivers them to the collector.

Events are kept per tracked value (a SKU or result id) in a ledger that is
persisted as a single JSON blob after every mutation. Unsubmitted events are
delivered by Flush with at-least-once semantics, and Purge drops submitted
events once they fall outside the retention window. Ad-hoc events are
attributed to a search query through the current query id or the most recent
event recorded for the same value.

Nothing in this package returns errors to UI-facing callers: storage and
delivery failures are logged, reported to the Observer, and retried later.
*/
package tracking

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strconv"
	"time"
)

// Well-known event types. Any non-empty type is accepted.
const (
	TypeClick          = "click"
	TypeAddToCart      = "add_to_cart"
	TypePurchase       = "purchase"
	TypeRedirect       = "redirect"
	TypePromotionClick = "promotion_click"
)

// Event is one tracked interaction.
//
// QueryID, Type and Timestamp never change after creation. Submitted only
// moves from false to true.
type Event struct {
	// QueryID is the search query the interaction is attributed to.
	QueryID string `json:"queryId"`

	// Type is the event kind, e.g. "click" or "purchase".
	Type string `json:"type"`

	// Timestamp is the creation time in milliseconds since the epoch.
	Timestamp int64 `json:"timestamp"`

	// Submitted is true once a delivery attempt succeeded.
	Submitted bool `json:"submitted"`

	// Metadata holds optional attributes sent with the event.
	Metadata Metadata `json:"metadata,omitempty"`
}

// Time returns Timestamp as a time.Time.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

func (e Event) clone() Event {
	e.Metadata = maps.Clone(e.Metadata)
	return e
}

// Metadata maps attribute names to bool, number or string values.
type Metadata map[string]any

// Validate rejects values the collector cannot accept.
func (m Metadata) Validate() error {
	for k, v := range m {
		switch val := v.(type) {
		case bool, string, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		case float32:
			if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
				return fmt.Errorf("metadata %q: non-finite number", k)
			}
		case float64:
			if math.IsNaN(val) || math.IsInf(val, 0) {
				return fmt.Errorf("metadata %q: non-finite number", k)
			}
		case json.Number:
			if _, err := val.Float64(); err != nil {
				return fmt.Errorf("metadata %q: %w", k, err)
			}
		default:
			return fmt.Errorf("metadata %q: unsupported value type %T", k, v)
		}
	}
	return nil
}

// FormatValue converts a tracked value to its ledger key. Values are keyed
// as strings in the persisted blob, so 42 and "42" address the same entry.
func FormatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		if f, err := val.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return val.String()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(v)
	}
}

// Outcome reports what happened to a tracking call.
type Outcome int

const (
	// OutcomeRecorded means the event was appended and persisted.
	OutcomeRecorded Outcome = iota
	// OutcomeSkipped means no query id could be resolved for the event.
	OutcomeSkipped
	// OutcomeRejected means the input was invalid.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRecorded:
		return "recorded"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
