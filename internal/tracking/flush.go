package tracking

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/khanglvm/search-tracker/internal/collector"
	"github.com/khanglvm/search-tracker/internal/logger"
)

// FlushResult summarizes one flush.
type FlushResult struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// Flush attempts delivery of every unsubmitted event.
//
// Deliveries run concurrently. Each success marks its record submitted and
// persists the ledger right away, so a crash mid-flush loses at most the
// in-flight attempts. Failures are logged and left for the next flush. Flush
// returns once every attempt has settled and never fails.
func (t *Tracker) Flush(ctx context.Context) FlushResult {
	pending := t.ledger.pending()
	if len(pending) == 0 {
		return FlushResult{}
	}

	var delivered, failed atomic.Int64

	var g errgroup.Group
	if t.maxInFlight > 0 {
		g.SetLimit(t.maxInFlight)
	}
	for _, p := range pending {
		p := p
		g.Go(func() error {
			if t.deliver(ctx, p) {
				delivered.Add(1)
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := FlushResult{
		Attempted: len(pending),
		Delivered: int(delivered.Load()),
		Failed:    int(failed.Load()),
	}
	t.log.Debug("flush complete",
		logger.Int("attempted", result.Attempted),
		logger.Int("delivered", result.Delivered),
		logger.Int("failed", result.Failed),
	)
	return result
}

func (t *Tracker) deliver(ctx context.Context, p pendingEvent) bool {
	_, err := t.sender.TrackEvent(ctx, p.event.QueryID, p.event.Type, collector.Payload{
		ID:       p.value,
		Metadata: p.event.Metadata,
	})
	if err != nil {
		t.log.Warn("event delivery failed, will retry on next flush",
			logger.String("query_id", p.event.QueryID),
			logger.String("type", p.event.Type),
			logger.String("value", p.value),
			logger.Error(err),
		)
		t.observer.DeliveryFailed(p.event.Type, err)
		return false
	}

	t.ledger.markSubmitted(p.record)
	t.persist(ctx)
	t.observer.DeliverySucceeded(p.event.Type)
	return true
}
