// Package metrics exports tracking outcomes as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/khanglvm/search-tracker/internal/tracking"
)

const (
	// Namespace is the namespace for all search-tracker metrics.
	Namespace = "search_tracker"

	resultSuccess = "success"
	resultFailure = "failure"

	// otherType replaces event types outside the well-known set so the type
	// label stays bounded.
	otherType = "other"
)

// typeLabel maps an event type to its label value.
func typeLabel(eventType string) string {
	switch eventType {
	case tracking.TypeClick, tracking.TypeAddToCart, tracking.TypePurchase,
		tracking.TypeRedirect, tracking.TypePromotionClick:
		return eventType
	default:
		return otherType
	}
}

// Collector implements tracking.Observer with Prometheus counters.
type Collector struct {
	Recorded        *prometheus.CounterVec
	Skipped         *prometheus.CounterVec
	Deliveries      *prometheus.CounterVec
	Purged          prometheus.Counter
	StorageFailures *prometheus.CounterVec
	Requests        *prometheus.CounterVec
}

// NewCollector creates and registers the tracking metrics.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		Recorded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "events_recorded_total",
			Help:      "Total number of events appended to the backlog",
		}, []string{"type"}),
		Skipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "events_skipped_total",
			Help:      "Total number of events that were not recorded",
		}, []string{"type", "reason"}),
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "deliveries_total",
			Help:      "Total number of delivery attempts by result",
		}, []string{"type", "result"}),
		Purged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "events_purged_total",
			Help:      "Total number of expired events removed from the backlog",
		}),
		StorageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "storage_failures_total",
			Help:      "Total number of failed backlog reads and writes",
		}, []string{"op"}),
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "requests_total",
			Help:      "Total number of serve requests by op and result",
		}, []string{"op", "result"}),
	}
}

func (c *Collector) EventRecorded(eventType string) {
	c.Recorded.WithLabelValues(typeLabel(eventType)).Inc()
}

func (c *Collector) EventSkipped(eventType, reason string) {
	c.Skipped.WithLabelValues(typeLabel(eventType), reason).Inc()
}

func (c *Collector) DeliverySucceeded(eventType string) {
	c.Deliveries.WithLabelValues(typeLabel(eventType), resultSuccess).Inc()
}

func (c *Collector) DeliveryFailed(eventType string, _ error) {
	c.Deliveries.WithLabelValues(typeLabel(eventType), resultFailure).Inc()
}

func (c *Collector) EventsPurged(count int) {
	c.Purged.Add(float64(count))
}

func (c *Collector) StorageFailed(op string, _ error) {
	c.StorageFailures.WithLabelValues(op).Inc()
}

// RequestHandled counts one serve request. op must come from a fixed set.
func (c *Collector) RequestHandled(op string, ok bool) {
	result := resultSuccess
	if !ok {
		result = resultFailure
	}
	c.Requests.WithLabelValues(op, result).Inc()
}
