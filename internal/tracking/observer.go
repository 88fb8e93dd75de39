package tracking

// Observer receives tracking outcomes, typically to export metrics.
// Implementations must be safe for concurrent use.
type Observer interface {
	// EventRecorded is called after an event was appended to the ledger.
	EventRecorded(eventType string)

	// EventSkipped is called when an event was not recorded.
	EventSkipped(eventType, reason string)

	// DeliverySucceeded is called after the collector accepted an event.
	DeliverySucceeded(eventType string)

	// DeliveryFailed is called when a delivery attempt failed.
	DeliveryFailed(eventType string, err error)

	// EventsPurged is called with the number of expired events removed.
	EventsPurged(count int)

	// StorageFailed is called when reading or writing the backlog failed.
	// op is "read" or "write".
	StorageFailed(op string, err error)
}

type nopObserver struct{}

func (nopObserver) EventRecorded(string)         {}
func (nopObserver) EventSkipped(string, string)  {}
func (nopObserver) DeliverySucceeded(string)     {}
func (nopObserver) DeliveryFailed(string, error) {}
func (nopObserver) EventsPurged(int)             {}
func (nopObserver) StorageFailed(string, error)  {}
