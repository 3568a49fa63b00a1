package abandoned

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/storefront/internal/cart"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore records calls and can fail a configurable number of times.
type fakeStore struct {
	mu        sync.Mutex
	upserts   []Record
	converted []string
	failTimes int
	err       error
}

func (s *fakeStore) Upsert(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTimes > 0 {
		s.failTimes--
		return s.err
	}
	s.upserts = append(s.upserts, *rec)
	return nil
}

func (s *fakeStore) MarkConverted(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.converted = append(s.converted, id)
	return nil
}

func (s *fakeStore) upsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.upserts)
}

func (s *fakeStore) convertedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.converted...)
}

func (s *fakeStore) lastUpsert() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts[len(s.upserts)-1]
}

func snapshot(sessionID string) Snapshot {
	return Snapshot{
		SessionID: sessionID,
		Email:     "taro@example.com",
		Items: []cart.Item{
			{ProductID: "prod-a", UnitPrice: 1000, Quantity: 2},
			{ProductID: "prod-b", UnitPrice: 500, Quantity: 1},
		},
	}
}

func startTracker(t *testing.T, store Store, queueSize, maxAttempts int) *Tracker {
	t.Helper()
	tracker := NewTracker(store, queueSize, maxAttempts)
	tracker.backoff = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	tracker.Start(ctx)
	t.Cleanup(func() {
		tracker.Close()
		cancel()
	})
	return tracker
}

// ============================================
// Track Tests
// ============================================

func TestTracker_Track_UpsertsSnapshot(t *testing.T) {
	store := &fakeStore{}
	tracker := startTracker(t, store, 16, 3)

	tracker.Track(snapshot("session-1"))

	require.Eventually(t, func() bool { return store.upsertCount() == 1 }, time.Second, 5*time.Millisecond)

	rec := store.lastUpsert()
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "session-1", rec.SessionID)
	assert.Equal(t, "taro@example.com", rec.Email)
	assert.Equal(t, 2500, rec.TotalValue)
	assert.Equal(t, 3, rec.ItemCount)
	assert.False(t, rec.Converted)
}

func TestTracker_Track_SkipsEmptyCart(t *testing.T) {
	store := &fakeStore{}
	tracker := startTracker(t, store, 16, 3)

	tracker.Track(Snapshot{SessionID: "session-1"})

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, store.upsertCount())
}

func TestTracker_Track_ReusesRecordID(t *testing.T) {
	store := &fakeStore{}
	tracker := startTracker(t, store, 16, 3)

	tracker.Track(snapshot("session-1"))
	tracker.Track(snapshot("session-1"))

	require.Eventually(t, func() bool { return store.upsertCount() == 2 }, time.Second, 5*time.Millisecond)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, store.upserts[0].ID, store.upserts[1].ID)
}

func TestTracker_Track_RetriesTransientFailure(t *testing.T) {
	store := &fakeStore{failTimes: 2, err: errors.New("throttled")}
	tracker := startTracker(t, store, 16, 3)

	tracker.Track(snapshot("session-1"))

	// Two failures, then the third attempt lands.
	require.Eventually(t, func() bool { return store.upsertCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestTracker_Track_GivesUpAfterMaxAttempts(t *testing.T) {
	store := &fakeStore{failTimes: 10, err: errors.New("throttled")}
	tracker := startTracker(t, store, 16, 2)

	tracker.Track(snapshot("session-1"))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, store.upsertCount())
}

func TestTracker_Track_TableMissingIsSilentlyDropped(t *testing.T) {
	store := &fakeStore{failTimes: 10, err: ErrTableMissing}
	tracker := startTracker(t, store, 16, 3)

	tracker.Track(snapshot("session-1"))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, store.upsertCount())
	// No retries burned on a missing table.
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 9, store.failTimes)
}

func TestTracker_Track_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	store := &fakeStore{}
	// Never started: nothing drains the queue.
	tracker := NewTracker(store, 1, 3)

	done := make(chan struct{})
	go func() {
		tracker.Track(snapshot("session-1"))
		tracker.Track(snapshot("session-2"))
		tracker.Track(snapshot("session-3"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Track blocked on a full queue")
	}
}

// ============================================
// MarkConverted Tests
// ============================================

func TestTracker_MarkConverted(t *testing.T) {
	store := &fakeStore{}
	tracker := startTracker(t, store, 16, 3)

	tracker.Track(snapshot("session-1"))
	require.Eventually(t, func() bool { return store.upsertCount() == 1 }, time.Second, 5*time.Millisecond)
	recordID := store.lastUpsert().ID

	tracker.MarkConverted("session-1")

	require.Eventually(t, func() bool { return len(store.convertedIDs()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{recordID}, store.convertedIDs())
}

func TestTracker_MarkConverted_UntrackedSessionIsNoOp(t *testing.T) {
	store := &fakeStore{}
	tracker := startTracker(t, store, 16, 3)

	tracker.MarkConverted("session-never-seen")

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, store.convertedIDs())
}

func TestTracker_MarkConverted_NewTrackAfterConversionMintsNewRecord(t *testing.T) {
	store := &fakeStore{}
	tracker := startTracker(t, store, 16, 3)

	tracker.Track(snapshot("session-1"))
	require.Eventually(t, func() bool { return store.upsertCount() == 1 }, time.Second, 5*time.Millisecond)
	first := store.lastUpsert().ID

	tracker.MarkConverted("session-1")
	require.Eventually(t, func() bool { return len(store.convertedIDs()) == 1 }, time.Second, 5*time.Millisecond)

	tracker.Track(snapshot("session-1"))
	require.Eventually(t, func() bool { return store.upsertCount() == 2 }, time.Second, 5*time.Millisecond)

	assert.NotEqual(t, first, store.lastUpsert().ID)
}
