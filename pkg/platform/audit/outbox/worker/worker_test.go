package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"veil/internal/platform/kafka/producer"
	"veil/pkg/platform/audit/outbox"
	"veil/pkg/platform/audit/outbox/metrics"
	"veil/pkg/platform/audit/outbox/store/memory"
)

type recordingProducer struct {
	mu   sync.Mutex
	msgs []*producer.Message
	fail map[string]bool // entity ids to reject
}

func (p *recordingProducer) Produce(_ context.Context, msg *producer.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[msg.Headers["entity_id"]] {
		return errors.New("broker unavailable")
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingProducer) sent() []*producer.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*producer.Message(nil), p.msgs...)
}

type WorkerSuite struct {
	suite.Suite
	store    *memory.Store
	producer *recordingProducer
	metrics  *metrics.Metrics
	now      time.Time
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

func (s *WorkerSuite) SetupTest() {
	s.store = memory.New()
	s.producer = &recordingProducer{fail: map[string]bool{}}
	s.metrics = metrics.NewWith(prometheus.NewRegistry())
	s.now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
}

func (s *WorkerSuite) newWorker(opts ...Option) *Worker {
	base := []Option{
		WithTopic("audit-test"),
		WithMetrics(s.metrics),
		WithClock(func() time.Time { return s.now }),
	}
	return New(s.store, s.producer, append(base, opts...)...)
}

func (s *WorkerSuite) appendEntries(ids ...string) {
	var entries []*outbox.Entry
	for _, id := range ids {
		entries = append(entries, outbox.NewEntry("profile", id, "field_redacted", []byte(`{}`), s.now))
	}
	s.Require().NoError(s.store.AppendBatch(context.Background(), entries))
}

func (s *WorkerSuite) TestPollPublishesAndMarks() {
	s.appendEntries("p-1", "p-2")
	w := s.newWorker()

	n := w.PollOnce(context.Background())
	s.Equal(2, n)

	sent := s.producer.sent()
	s.Require().Len(sent, 2)
	s.Equal("audit-test", sent[0].Topic)
	s.Equal("profile:p-1", string(sent[0].Key))
	s.Equal("field_redacted", sent[0].Headers["event_type"])
	s.Equal("profile", sent[0].Headers["entity_type"])
	s.NotEmpty(sent[0].Headers["entry_id"])

	pending, err := s.store.CountPending(context.Background())
	s.Require().NoError(err)
	s.Zero(pending)
	s.Equal(float64(2), testutil.ToFloat64(s.metrics.PublishedTotal))
	s.Equal(float64(0), testutil.ToFloat64(s.metrics.PendingDepth))
}

func (s *WorkerSuite) TestFailedEntryStaysPendingForRetry() {
	s.appendEntries("p-1", "p-bad", "p-3")
	s.producer.fail["p-bad"] = true
	w := s.newWorker()

	s.Equal(2, w.PollOnce(context.Background()))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.PendingDepth))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.PublishFailures))

	delete(s.producer.fail, "p-bad")
	s.Equal(1, w.PollOnce(context.Background()))
	s.Len(s.producer.sent(), 3)
}

func (s *WorkerSuite) TestRetentionPurgesProcessedRows() {
	s.appendEntries("p-1")
	w := s.newWorker(WithRetention(time.Hour))
	s.Equal(1, w.PollOnce(context.Background()))
	s.Len(s.store.All(), 1, "fresh rows survive the sweep")

	s.now = s.now.Add(2 * time.Hour)
	w.PollOnce(context.Background())
	s.Empty(s.store.All())
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.PurgedEntries))
}

func (s *WorkerSuite) TestStopDrainsPending() {
	w := s.newWorker(WithPollInterval(time.Hour))
	w.Start()
	s.appendEntries("p-1", "p-2", "p-3")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Require().NoError(w.Stop(ctx))

	pending, err := s.store.CountPending(context.Background())
	s.Require().NoError(err)
	s.Zero(pending)
	s.Len(s.producer.sent(), 3)
}

func (s *WorkerSuite) TestDrainGivesUpWhenNothingMoves() {
	s.appendEntries("p-bad")
	s.producer.fail["p-bad"] = true
	w := s.newWorker(WithPollInterval(time.Hour))
	w.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Require().NoError(w.Stop(ctx))

	pending, _ := s.store.CountPending(context.Background())
	s.Equal(int64(1), pending)
}

func (s *WorkerSuite) TestNewRequiresDependencies() {
	s.Panics(func() { New(nil, s.producer) })
	s.Panics(func() { New(s.store, nil) })
}
