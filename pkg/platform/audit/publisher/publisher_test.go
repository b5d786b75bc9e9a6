package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "veil/pkg/platform/audit"
	"veil/pkg/platform/audit/metrics"
	"veil/pkg/platform/audit/store/memory"
)

type failingStore struct {
	err error
}

func (s *failingStore) Append(_ context.Context, _ []audit.Entry) error {
	return s.err
}

// blockingStore holds every Append until release is closed.
type blockingStore struct {
	release chan struct{}
	mu      sync.Mutex
	got     []audit.Entry
}

func (s *blockingStore) Append(_ context.Context, entries []audit.Entry) error {
	<-s.release
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, entries...)
	return nil
}

func entry(field string) audit.Entry {
	return audit.Entry{
		EntityType:    "profile",
		EntityID:      "p-1",
		Field:         field,
		RuleName:      "partner-email",
		RedactionType: "mask",
		ViewerID:      "v-1",
		ViewerRole:    "partner",
	}
}

func TestPublisher_AppendStoresEntries(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)

	err := pub.Append(context.Background(), []audit.Entry{entry("profile.email"), entry("profile.phone")})
	require.NoError(t, err)

	got, err := store.ListByEntity(context.Background(), "profile", "p-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "profile.email", got[0].Field)
	assert.Equal(t, "profile.phone", got[1].Field)
}

func TestPublisher_StampsIDAndTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	pub := NewPublisher(store, WithClock(func() time.Time { return fixed }))

	in := []audit.Entry{entry("profile.email")}
	require.NoError(t, pub.Append(context.Background(), in))

	got := store.All()
	require.Len(t, got, 1)
	assert.NotEqual(t, uuid.Nil, got[0].ID)
	assert.Equal(t, fixed, got[0].Timestamp)
	assert.Equal(t, uuid.Nil, in[0].ID, "caller slice must not be modified")
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)

	custom := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	e := entry("profile.email")
	e.Timestamp = custom
	require.NoError(t, pub.Append(context.Background(), []audit.Entry{e}))

	got := store.All()
	require.Len(t, got, 1)
	assert.Equal(t, custom, got[0].Timestamp)
}

func TestPublisher_SyncAppendReturnsStoreError(t *testing.T) {
	storeErr := errors.New("append failed")
	pub := NewPublisher(&failingStore{err: storeErr})

	err := pub.Append(context.Background(), []audit.Entry{entry("profile.email")})
	require.ErrorIs(t, err, storeErr)
}

func TestPublisher_EmptyBatchIsNoop(t *testing.T) {
	pub := NewPublisher(&failingStore{err: errors.New("unused")})
	assert.NoError(t, pub.Append(context.Background(), nil))
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	m := metrics.NewWith(prometheus.NewRegistry())
	pub := NewPublisher(store, WithAsyncBuffer(8), WithMetrics(m))

	for range 5 {
		require.NoError(t, pub.Append(context.Background(), []audit.Entry{entry("profile.email")}))
	}
	pub.Close()

	assert.Len(t, store.All(), 5)
	assert.Equal(t, float64(5), testutil.ToFloat64(m.EntriesPersisted))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.QueueDepth))
}

func TestPublisher_AsyncFailureIsSwallowed(t *testing.T) {
	m := metrics.NewWith(prometheus.NewRegistry())
	pub := NewPublisher(&failingStore{err: errors.New("db down")}, WithAsyncBuffer(2), WithMetrics(m))

	require.NoError(t, pub.Append(context.Background(), []audit.Entry{entry("profile.email")}))
	pub.Close()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.PersistFailures))
}

func TestPublisher_FullBufferDrops(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	m := metrics.NewWith(prometheus.NewRegistry())
	pub := NewPublisher(store, WithAsyncBuffer(1), WithMetrics(m))

	// The worker takes the first batch and blocks in the store; the second
	// fills the buffer; the third has nowhere to go.
	require.NoError(t, pub.Append(context.Background(), []audit.Entry{entry("a")}))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.QueueDepth) == 0
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, pub.Append(context.Background(), []audit.Entry{entry("b")}))

	err := pub.Append(context.Background(), []audit.Entry{entry("c"), entry("d")})
	require.Error(t, err)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.EntriesDropped))

	close(store.release)
	pub.Close()
	assert.Len(t, store.got, 2)
}

func TestPublisher_AppendAfterCloseFails(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(1))
	pub.Close()
	pub.Close()

	err := pub.Append(context.Background(), []audit.Entry{entry("profile.email")})
	assert.Error(t, err)
}
