// Package kafka forwards audit events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "luwei/pkg/platform/audit"
)

// Sink produces one record per event, keyed by account so an account's events
// stay ordered within a partition.
type Sink struct {
	client *kgo.Client
	topic  string
}

// Config selects the brokers and topic.
type Config struct {
	Brokers           []string
	Topic             string
	Partitions        int32
	ReplicationFactor int16
}

// NewSink connects to the brokers and makes sure the topic exists.
func NewSink(ctx context.Context, cfg Config, opts ...kgo.Opt) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	if cfg.Partitions <= 0 {
		cfg.Partitions = 3
	}
	if cfg.ReplicationFactor <= 0 {
		cfg.ReplicationFactor = 1
	}

	base := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RecordRetries(3),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("kafka: create client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka: ping brokers: %w", err)
	}
	if err := ensureTopic(ctx, kadm.NewClient(client), cfg); err != nil {
		client.Close()
		return nil, err
	}
	return &Sink{client: client, topic: cfg.Topic}, nil
}

func ensureTopic(ctx context.Context, adm *kadm.Client, cfg Config) error {
	resp, err := adm.CreateTopics(ctx, cfg.Partitions, cfg.ReplicationFactor, nil, cfg.Topic)
	if err != nil {
		return fmt.Errorf("kafka: create topic: %w", err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("kafka: create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Append produces the event and waits for the broker acknowledgement.
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: encode event: %w", err)
	}
	key := string(event.Type)
	if !event.AccountID.IsNil() {
		key = event.AccountID.String()
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "category", Value: []byte(event.Category)},
		},
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("kafka: produce: %w", err)
	}
	return nil
}

// Close flushes buffered records and closes the client.
func (s *Sink) Close(ctx context.Context) error {
	err := s.client.Flush(ctx)
	s.client.Close()
	return err
}
