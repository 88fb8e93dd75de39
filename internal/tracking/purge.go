package tracking

import (
	"context"

	"github.com/khanglvm/search-tracker/internal/logger"
)

// Purge removes submitted events older than the retention window and
// returns how many were removed. Unsubmitted events are kept regardless of
// age. The ledger is saved once, and only if something was removed.
func (t *Tracker) Purge(ctx context.Context) int {
	expiry := t.now().Add(-t.retention).UnixMilli()

	removed := t.ledger.retain(func(e Event) bool {
		return !e.Submitted || e.Timestamp > expiry
	})
	if removed == 0 {
		return 0
	}

	t.persist(ctx)
	t.observer.EventsPurged(removed)
	t.log.Info("purged expired events", logger.Int("removed", removed))

	return removed
}
