package events

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/segmentio/kafka-go"
)

// Publisher delivers events to downstream consumers (notifications, feeds).
type Publisher interface {
	Publish(ctx context.Context, eventType string, userID uint, payload interface{}) error
	Close() error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, uint, interface{}) error { return nil }

func (NoopPublisher) Close() error { return nil }

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher lazily manages one writer per topic. Messages are keyed by
// user id so a user's events stay ordered within a partition.
type KafkaPublisher struct {
	brokers     []string
	topicPrefix string
	mu          sync.Mutex
	writers     map[string]messageWriter
	newWriter   func(topic string) messageWriter
}

// NewKafkaPublisher creates a KafkaPublisher.
func NewKafkaPublisher(brokers []string, topicPrefix string) *KafkaPublisher {
	p := &KafkaPublisher{
		brokers:     brokers,
		topicPrefix: topicPrefix,
		writers:     make(map[string]messageWriter),
	}
	p.newWriter = p.kafkaWriter
	return p
}

// Topic returns the topic an event type is written to.
func (p *KafkaPublisher) Topic(eventType string) string {
	if p.topicPrefix == "" {
		return eventType
	}
	return p.topicPrefix + "." + eventType
}

// Publish marshals payload and writes it synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, userID uint, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	writer := p.writerForTopic(p.Topic(eventType))
	return writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(userID), 10)),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	})
}

func (p *KafkaPublisher) writerForTopic(topic string) messageWriter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writer, ok := p.writers[topic]; ok {
		return writer
	}
	writer := p.newWriter(topic)
	p.writers[topic] = writer
	return writer
}

func (p *KafkaPublisher) kafkaWriter(topic string) messageWriter {
	return &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// Close releases all writers.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.writers, topic)
	}
	return firstErr
}
