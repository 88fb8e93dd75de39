package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/khanglvm/search-tracker/internal/collector"
	"github.com/khanglvm/search-tracker/internal/storage"
)

// sentEvent is one call observed by mockSender.
type sentEvent struct {
	QueryID string
	Type    string
	Payload collector.Payload
}

// mockSender records deliveries; fail decides per call whether to fail.
type mockSender struct {
	mu   sync.Mutex
	sent []sentEvent
	fail func(queryID, eventType, value string) error
}

func newMockSender() *mockSender {
	return &mockSender{}
}

func (m *mockSender) TrackEvent(ctx context.Context, queryID, eventType string, payload collector.Payload) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	fail := m.fail
	m.mu.Unlock()

	if fail != nil {
		if err := fail(queryID, eventType, payload.ID); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentEvent{QueryID: queryID, Type: eventType, Payload: payload})
	return json.RawMessage(`{}`), nil
}

func (m *mockSender) setFail(fail func(queryID, eventType, value string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

func (m *mockSender) failAll() {
	m.setFail(func(string, string, string) error {
		return &collector.ConfigurationError{StatusCode: 500, Message: "down", Err: errors.New("down")}
	})
}

func (m *mockSender) calls() []sentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentEvent(nil), m.sent...)
}

// countingStore wraps MemoryStorage, counts writes and can fail them.
type countingStore struct {
	*storage.MemoryStorage
	mu        sync.Mutex
	writes    int
	failWrite bool
	failRead  bool
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStorage: storage.NewMemoryStorage()}
}

func (c *countingStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	failRead := c.failRead
	c.mu.Unlock()
	if failRead {
		return "", false, errors.New("storage unavailable")
	}
	return c.MemoryStorage.GetItem(ctx, key)
}

func (c *countingStore) SetItem(ctx context.Context, key, value string) error {
	c.mu.Lock()
	failWrite := c.failWrite
	if !failWrite {
		c.writes++
	}
	c.mu.Unlock()
	if failWrite {
		return errors.New("quota exceeded")
	}
	return c.MemoryStorage.SetItem(ctx, key, value)
}

func (c *countingStore) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

func (c *countingStore) blob() map[string][]Event {
	raw, found, _ := c.MemoryStorage.GetItem(context.Background(), DefaultStorageKey)
	if !found {
		return nil
	}
	var decoded map[string][]Event
	json.Unmarshal([]byte(raw), &decoded)
	return decoded
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// recordingObserver counts observer callbacks.
type recordingObserver struct {
	mu             sync.Mutex
	recorded       int
	skipped        map[string]int
	delivered      int
	failed         int
	purged         int
	storageFailure map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{skipped: map[string]int{}, storageFailure: map[string]int{}}
}

func (r *recordingObserver) EventRecorded(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded++
}

func (r *recordingObserver) EventSkipped(_, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped[reason]++
}

func (r *recordingObserver) DeliverySucceeded(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered++
}

func (r *recordingObserver) DeliveryFailed(string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
}

func (r *recordingObserver) EventsPurged(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purged += n
}

func (r *recordingObserver) StorageFailed(op string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storageFailure[op]++
}
