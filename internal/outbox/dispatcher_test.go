package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuskit/helpdesk-service/internal/domain"
)

// fakeOutboxStore mirrors the repository claim semantics: a claim leases the
// row for a minute, so a competing poller cannot re-select it until the lease
// expires or the row is marked.
type fakeOutboxStore struct {
	mu         sync.Mutex
	entries    []domain.OutboxEntry
	processed  map[string]bool
	failed     map[string]failure
	leaseUntil map[string]time.Time
}

type failure struct {
	attempts    int
	nextRetryAt time.Time
	cause       string
}

func newFakeOutboxStore(entries ...domain.OutboxEntry) *fakeOutboxStore {
	return &fakeOutboxStore{
		entries:    entries,
		processed:  make(map[string]bool),
		failed:     make(map[string]failure),
		leaseUntil: make(map[string]time.Time),
	}
}

func (s *fakeOutboxStore) ClaimDue(_ context.Context, limit, maxAttempts int, now time.Time) ([]domain.OutboxEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []domain.OutboxEntry
	for _, e := range s.entries {
		if s.processed[e.ID] || e.Attempts >= maxAttempts {
			continue
		}
		if lease, ok := s.leaseUntil[e.ID]; ok && now.Before(lease) {
			continue
		}
		if f, ok := s.failed[e.ID]; ok {
			if f.attempts >= maxAttempts || now.Before(f.nextRetryAt) {
				continue
			}
			e.Attempts = f.attempts
		}
		s.leaseUntil[e.ID] = now.Add(time.Minute)
		due = append(due, e)
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

func (s *fakeOutboxStore) MarkProcessed(_ context.Context, id string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[id] = true
	delete(s.leaseUntil, id)
	return nil
}

func (s *fakeOutboxStore) MarkFailed(_ context.Context, id string, attempts int, nextRetryAt time.Time, cause string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[id] = failure{attempts: attempts, nextRetryAt: nextRetryAt, cause: cause}
	delete(s.leaseUntil, id)
	return nil
}

func newTestDispatcher(store Store, cfg Config) *Dispatcher {
	return NewDispatcher(store, zap.NewNop(), cfg)
}

func TestProcessOnceDeliversAndMarksProcessed(t *testing.T) {
	store := newFakeOutboxStore(
		domain.OutboxEntry{ID: "e1", EventType: EventTicketCreated, Payload: []byte(`{}`)},
		domain.OutboxEntry{ID: "e2", EventType: EventTicketCreated, Payload: []byte(`{}`)},
	)
	d := newTestDispatcher(store, Config{})

	var delivered []string
	d.Register(EventTicketCreated, func(_ context.Context, entry domain.OutboxEntry) error {
		delivered = append(delivered, entry.ID)
		return nil
	})

	n, err := d.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"e1", "e2"}, delivered)
	assert.True(t, store.processed["e1"])
	assert.True(t, store.processed["e2"])
}

func TestUnknownEventTypeSkippedNotRetried(t *testing.T) {
	store := newFakeOutboxStore(
		domain.OutboxEntry{ID: "e1", EventType: "ticket.vanished", Payload: []byte(`{}`)},
	)
	d := newTestDispatcher(store, Config{})

	n, err := d.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, store.processed["e1"], "unknown types are marked processed")
	assert.Empty(t, store.failed, "unknown types never enter the retry path")

	// a second poll claims nothing
	n, err = d.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFailureSchedulesBackoffRetry(t *testing.T) {
	store := newFakeOutboxStore(
		domain.OutboxEntry{ID: "e1", EventType: EventTicketCreated, Payload: []byte(`{}`)},
	)
	d := newTestDispatcher(store, Config{MaxAttempts: 3})
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	d.Register(EventTicketCreated, func(context.Context, domain.OutboxEntry) error {
		return errors.New("smtp unreachable")
	})

	_, err := d.ProcessOnce(context.Background())
	require.NoError(t, err)

	f, ok := store.failed["e1"]
	require.True(t, ok)
	assert.Equal(t, 1, f.attempts)
	assert.Equal(t, now.Add(2*time.Minute), f.nextRetryAt)
	assert.Equal(t, "smtp unreachable", f.cause)
	assert.False(t, store.processed["e1"])
}

func TestDeadLetterAfterMaxAttempts(t *testing.T) {
	store := newFakeOutboxStore(
		domain.OutboxEntry{ID: "e1", EventType: EventTicketCreated, Payload: []byte(`{}`)},
	)
	d := newTestDispatcher(store, Config{MaxAttempts: 3})
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	calls := 0
	d.Register(EventTicketCreated, func(context.Context, domain.OutboxEntry) error {
		calls++
		return errors.New("boom")
	})

	for i := 0; i < 5; i++ {
		now = now.Add(time.Hour)
		_, err := d.ProcessOnce(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, 3, calls, "no deliveries past the attempt ceiling")
	assert.Equal(t, 3, store.failed["e1"].attempts)
	assert.False(t, store.processed["e1"], "dead-lettered rows stay unprocessed")
}

func TestBatchItemsProcessedIndependently(t *testing.T) {
	store := newFakeOutboxStore(
		domain.OutboxEntry{ID: "e1", EventType: EventTicketCreated, Payload: []byte(`{}`)},
		domain.OutboxEntry{ID: "e2", EventType: EventTicketCreated, Payload: []byte(`{}`)},
		domain.OutboxEntry{ID: "e3", EventType: EventTicketCreated, Payload: []byte(`{}`)},
	)
	d := newTestDispatcher(store, Config{})

	d.Register(EventTicketCreated, func(_ context.Context, entry domain.OutboxEntry) error {
		if entry.ID == "e2" {
			return errors.New("boom")
		}
		return nil
	})

	n, err := d.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, store.processed["e1"])
	assert.False(t, store.processed["e2"])
	assert.True(t, store.processed["e3"])
	assert.Equal(t, 1, store.failed["e2"].attempts)
}

func TestHandlerTimeoutCountsAsFailure(t *testing.T) {
	store := newFakeOutboxStore(
		domain.OutboxEntry{ID: "e1", EventType: EventTicketCreated, Payload: []byte(`{}`)},
	)
	d := newTestDispatcher(store, Config{HandlerTimeout: 10 * time.Millisecond})

	d.Register(EventTicketCreated, func(ctx context.Context, _ domain.OutboxEntry) error {
		<-ctx.Done()
		return ctx.Err()
	})

	_, err := d.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, store.failed["e1"].attempts)
}

func TestClaimedEntryInvisibleToCompetingPoller(t *testing.T) {
	store := newFakeOutboxStore(
		domain.OutboxEntry{ID: "e1", EventType: EventTicketCreated, Payload: []byte(`{}`)},
	)
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	d1 := newTestDispatcher(store, Config{HandlerTimeout: time.Minute})
	d1.now = func() time.Time { return base }
	d2 := newTestDispatcher(store, Config{HandlerTimeout: time.Minute})
	d2.now = func() time.Time { return base.Add(time.Second) }

	entered := make(chan struct{})
	release := make(chan struct{})
	d1.Register(EventTicketCreated, func(context.Context, domain.OutboxEntry) error {
		close(entered)
		<-release
		return nil
	})
	stolen := 0
	d2.Register(EventTicketCreated, func(context.Context, domain.OutboxEntry) error {
		stolen++
		return nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := d1.ProcessOnce(context.Background())
		assert.NoError(t, err)
	}()

	// second instance polls while the first is still inside its handler
	<-entered
	n, err := d2.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "leased row must not be claimable again")
	assert.Zero(t, stolen)

	close(release)
	<-done
	assert.True(t, store.processed["e1"])
}

func TestAbandonedClaimResurfacesAfterLease(t *testing.T) {
	store := newFakeOutboxStore(
		domain.OutboxEntry{ID: "e1", EventType: EventTicketCreated, Payload: []byte(`{}`)},
	)
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	// a consumer claims the row and dies before marking it either way
	claimed, err := store.ClaimDue(context.Background(), 10, 3, base)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	now := base.Add(30 * time.Second)
	d := newTestDispatcher(store, Config{})
	d.now = func() time.Time { return now }
	delivered := 0
	d.Register(EventTicketCreated, func(context.Context, domain.OutboxEntry) error {
		delivered++
		return nil
	})

	n, err := d.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "lease still held")

	now = base.Add(2 * time.Minute)
	n, err = d.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, delivered)
	assert.True(t, store.processed["e1"])
	assert.Zero(t, store.failed["e1"].attempts, "an abandoned claim consumes no attempt")
}

func TestBackoffDoubles(t *testing.T) {
	assert.Equal(t, 2*time.Minute, Backoff(1))
	assert.Equal(t, 4*time.Minute, Backoff(2))
	assert.Equal(t, 8*time.Minute, Backoff(3))
	assert.Equal(t, Backoff(16), Backoff(40), "backoff is clamped")
}
