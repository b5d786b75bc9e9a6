//go:build integration

package producer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"veil/internal/platform/kafka/producer"
	"veil/pkg/testutil/containers"
)

type ProducerIntegrationSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	producer *producer.Producer
}

func TestProducerIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProducerIntegrationSuite))
}

func (s *ProducerIntegrationSuite) SetupSuite() {
	s.kafka = containers.GetManager().GetKafka(s.T())

	cfg := producer.DefaultConfig()
	cfg.Brokers = s.kafka.Brokers
	cfg.DeliveryTimeout = 10 * time.Second
	prod, err := producer.New(cfg, nil)
	s.Require().NoError(err)
	s.producer = prod
}

func (s *ProducerIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		_ = s.producer.Close()
	}
}

func (s *ProducerIntegrationSuite) consume(ctx context.Context, group, topic, key string) *kgo.Record {
	consumer, err := s.kafka.NewConsumer(ctx, group, topic)
	s.Require().NoError(err)
	defer consumer.Close()

	return s.kafka.WaitForMessage(ctx, consumer, 10*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == key
	})
}

// Produce only returns after the broker acknowledged the record.
func (s *ProducerIntegrationSuite) TestProduceDeliversRecord() {
	ctx := context.Background()
	topic := "veil-produce-" + time.Now().Format("20060102150405.000")

	err := s.producer.Produce(ctx, &producer.Message{
		Topic: topic,
		Key:   []byte("service_request:sr-1"),
		Value: []byte(`{"field":"customer_email"}`),
	})
	s.Require().NoError(err)

	record := s.consume(ctx, "veil-produce-group", topic, "service_request:sr-1")
	s.Require().NotNil(record, "record should be consumable")
	s.JSONEq(`{"field":"customer_email"}`, string(record.Value))
}

func (s *ProducerIntegrationSuite) TestProducePreservesHeaders() {
	ctx := context.Background()
	topic := "veil-headers-" + time.Now().Format("20060102150405.000")

	err := s.producer.Produce(ctx, &producer.Message{
		Topic: topic,
		Key:   []byte("profile:p-7"),
		Value: []byte(`{}`),
		Headers: map[string]string{
			"entity_type": "profile",
			"entity_id":   "p-7",
			"event_type":  "field_redacted",
		},
	})
	s.Require().NoError(err)

	record := s.consume(ctx, "veil-headers-group", topic, "profile:p-7")
	s.Require().NotNil(record)

	headers := make(map[string]string, len(record.Headers))
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	s.Equal("profile", headers["entity_type"])
	s.Equal("p-7", headers["entity_id"])
	s.Equal("field_redacted", headers["event_type"])
}

func (s *ProducerIntegrationSuite) TestCheckReachesBroker() {
	s.NoError(s.producer.Check(context.Background()))
	s.Equal("kafka", s.producer.Name())
}

func (s *ProducerIntegrationSuite) TestProduceAfterCloseFails() {
	cfg := producer.DefaultConfig()
	cfg.Brokers = s.kafka.Brokers
	prod, err := producer.New(cfg, nil)
	s.Require().NoError(err)
	s.Require().NoError(prod.Close())
	s.Require().NoError(prod.Close())

	err = prod.Produce(context.Background(), &producer.Message{Topic: "veil-closed", Value: []byte("x")})
	s.Error(err)
	s.Error(prod.Check(context.Background()))
}
