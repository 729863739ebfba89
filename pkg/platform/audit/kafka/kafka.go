// Package kafka forwards audit events to a Kafka topic with franz-go.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "taskboard/pkg/platform/audit"
	"taskboard/pkg/platform/circuit"
)

// Producer is the slice of *kgo.Client used to publish records.
type Producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

// TopicCreator is the slice of *kadm.Client used to bootstrap the topic.
type TopicCreator interface {
	CreateTopics(ctx context.Context, partitions int32, replicationFactor int16, configs map[string]*string, topics ...string) (kadm.CreateTopicResponses, error)
}

// ErrSinkUnavailable is reported by Health while the delivery breaker is open.
var ErrSinkUnavailable = errors.New("kafka audit sink unavailable")

// Store publishes each appended event as one JSON record keyed by user ID.
// Delivery is asynchronous. Produce results drive a circuit breaker; while it
// is open, undelivered events are written to the log in full instead.
type Store struct {
	producer Producer
	topic    string
	logger   *slog.Logger
	breaker  *circuit.Breaker
}

// NewClient builds a franz-go client for the given brokers.
func NewClient(brokers []string, topic string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ClientID("taskboard"),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

// New creates a Store publishing to topic.
func New(producer Producer, topic string, logger *slog.Logger) *Store {
	return &Store{
		producer: producer,
		topic:    topic,
		logger:   logger,
		breaker:  circuit.New("audit-kafka"),
	}
}

// Health fails while recent deliveries keep failing.
func (s *Store) Health(context.Context) error {
	if s.breaker.IsOpen() {
		return ErrSinkUnavailable
	}
	return nil
}

// Append serializes event and enqueues it for delivery.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.UserID.String()),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "category", Value: []byte(event.Category)},
			{Key: "action", Value: []byte(event.Action)},
		},
	}
	// The record outlives the request, so it must not inherit its cancellation.
	s.producer.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err != nil {
			s.deliveryFailed(event, err)
			return
		}
		if _, change := s.breaker.RecordSuccess(); change.Closed && s.logger != nil {
			s.logger.Info("audit sink recovered", "topic", r.Topic)
		}
	})
	return nil
}

func (s *Store) deliveryFailed(event audit.Event, err error) {
	useFallback, change := s.breaker.RecordFailure()
	if s.logger == nil {
		return
	}
	if change.Opened {
		s.logger.Warn("audit sink circuit opened", "topic", s.topic, "error", err)
	}
	if !useFallback {
		s.logger.Error("failed to publish audit event",
			"topic", s.topic,
			"action", event.Action,
			"request_id", event.RequestID,
			"error", err,
		)
		return
	}
	s.logger.Warn("audit event",
		"log_type", "audit_fallback",
		"category", event.Category,
		"action", event.Action,
		"user_id", event.UserID,
		"subject", event.Subject,
		"resource", event.Resource,
		"reason", event.Reason,
		"ip", event.IP,
		"request_id", event.RequestID,
		"timestamp", event.Timestamp,
	)
}

// EnsureTopic creates the audit topic if it does not exist yet.
func EnsureTopic(ctx context.Context, admin TopicCreator, topic string, partitions int32, replicationFactor int16) error {
	resps, err := admin.CreateTopics(ctx, partitions, replicationFactor, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, resp := range resps {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", resp.Topic, resp.Err)
		}
	}
	return nil
}
