package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message represents a received Kafka message.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Handler processes consumed messages.
type Handler interface {
	// Handle processes a message. A returned error is retried with backoff;
	// the offset is committed only after Handle succeeds.
	Handle(ctx context.Context, msg *Message) error
}

// Consumer is a franz-go group consumer with manual, at-least-once commits.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger

	maxBackoff time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// Config holds consumer configuration.
type Config struct {
	Brokers         string // comma separated
	GroupID         string
	Topics          []string
	AutoOffsetReset string // "earliest" (default) or "latest"
	MaxBackoff      time.Duration
}

// New creates a new Kafka consumer.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Consumer, error) {
	if strings.TrimSpace(cfg.Brokers) == "" {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka consumer group ID not configured")
	}
	if len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("kafka consumer topics not configured")
	}
	if handler == nil {
		return nil, fmt.Errorf("kafka consumer handler is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	reset := kgo.NewOffset().AtStart()
	if cfg.AutoOffsetReset == "latest" {
		reset = kgo.NewOffset().AtEnd()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(cfg.Brokers, ",")...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.ConsumeResetOffset(reset),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}

	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		client:     client,
		handler:    handler,
		logger:     logger,
		maxBackoff: maxBackoff,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start begins the consumption loop in a background goroutine.
func (c *Consumer) Start() {
	c.wg.Add(1)
	go c.run()
}

func (c *Consumer) run() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			c.poll()
		}
	}
}

// poll handles one fetch. Records are processed in order and committed
// together once every record in the fetch succeeded.
func (c *Consumer) poll() {
	fetches := c.client.PollFetches(c.ctx)
	if fetches.IsClientClosed() || c.ctx.Err() != nil {
		return
	}

	fetches.EachError(func(topic string, partition int32, err error) {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.logger.Error("kafka consumer error",
			"topic", topic,
			"partition", partition,
			"error", err,
		)
	})

	var handled []*kgo.Record
	fetches.EachRecord(func(r *kgo.Record) {
		if c.ctx.Err() != nil {
			return
		}
		if c.handleWithRetry(r) {
			handled = append(handled, r)
		}
	})
	if len(handled) == 0 {
		return
	}

	// Commit even while stopping so finished work is not redelivered.
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), 5*time.Second)
	defer cancel()
	if err := c.client.CommitRecords(commitCtx, handled...); err != nil {
		c.logger.Error("failed to commit offsets",
			"records", len(handled),
			"error", err,
		)
	}
}

// handleWithRetry blocks the partition until the handler succeeds or the
// consumer stops. It reports whether the record may be committed.
func (c *Consumer) handleWithRetry(r *kgo.Record) bool {
	msg := toMessage(r)
	backoff := 100 * time.Millisecond
	for {
		err := c.handler.Handle(c.ctx, msg)
		if err == nil {
			return true
		}
		c.logger.Error("failed to handle message",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"retry_in", backoff,
			"error", err,
		)
		select {
		case <-c.ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.maxBackoff)
	}
}

func toMessage(r *kgo.Record) *Message {
	headers := make(map[string]string, len(r.Headers))
	for _, h := range r.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &Message{
		Topic:     r.Topic,
		Partition: r.Partition,
		Offset:    r.Offset,
		Key:       r.Key,
		Value:     r.Value,
		Headers:   headers,
		Timestamp: r.Timestamp,
	}
}

// Stop gracefully stops the consumer, waiting for the in-flight fetch.
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.client.Close()
		return nil
	case <-ctx.Done():
		c.client.Close()
		return ctx.Err()
	}
}

// Check pings the cluster. It satisfies the health checker contract.
func (c *Consumer) Check(ctx context.Context) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return fmt.Errorf("consumer is closed")
	}
	return c.client.Ping(ctx)
}

func (c *Consumer) Name() string {
	return "kafka"
}
