// Package kafka publishes records to one topic per stream.
//
// Each record becomes a message on <topic_prefix><stream>, keyed by the
// stream's primary-key values. Schemas go to <topic_prefix>_schemas keyed by
// stream name, and state documents to <topic_prefix>_state. Records are
// batched and flushed before every state message, so a consumer never sees
// state ahead of the records it covers.
package kafka

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
	jsonpool "github.com/ajitpratap0/tap-leaflink/pkg/json"
	"github.com/ajitpratap0/tap-leaflink/pkg/sink"
	"github.com/ajitpratap0/tap-leaflink/pkg/state"
	"github.com/ajitpratap0/tap-leaflink/pkg/stream"
)

const (
	// DefaultBatchSize is the number of records buffered before a send
	DefaultBatchSize = 100

	contentType = "application/json"
	keySep      = "|"
)

// Config configures the sink.
type Config struct {
	TopicPrefix string
	RunID       string
	BatchSize   int
}

// Sink is the Kafka sink.
type Sink struct {
	producer sarama.SyncProducer
	cfg      Config
	logger   *zap.Logger

	mu       sync.Mutex
	pending  []*sarama.ProducerMessage
	produced map[string]int
}

// New creates a sink sending through producer. The sink owns the producer
// and closes it in Close.
func New(producer sarama.SyncProducer, cfg Config, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Sink{
		producer: producer,
		cfg:      cfg,
		logger:   logger,
		produced: make(map[string]int),
	}
}

// RecordTopic returns the topic for a stream's records.
func (s *Sink) RecordTopic(streamName string) string {
	return s.cfg.TopicPrefix + streamName
}

// SchemaTopic returns the topic schemas are published to.
func (s *Sink) SchemaTopic() string {
	return s.cfg.TopicPrefix + "_schemas"
}

// StateTopic returns the topic state documents are published to.
func (s *Sink) StateTopic() string {
	return s.cfg.TopicPrefix + "_state"
}

// WriteSchema publishes the SCHEMA message for desc.
func (s *Sink) WriteSchema(ctx context.Context, desc stream.Descriptor, schema map[string]interface{}) error {
	value, err := jsonpool.Marshal(sink.NewSchemaMessage(desc, schema))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to encode schema")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.send(s.message(s.SchemaTopic(), desc.Name, []byte(desc.Name), value, time.Now()))
}

// WriteRecord buffers a record message, sending the batch when full.
func (s *Sink) WriteRecord(ctx context.Context, desc stream.Descriptor, rec stream.Record, extractedAt time.Time) error {
	value, err := jsonpool.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to encode record").
			WithDetail("stream", desc.Name)
	}

	msg := s.message(s.RecordTopic(desc.Name), desc.Name, RecordKey(desc, rec), value, extractedAt)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, msg)
	s.produced[desc.Name]++
	if len(s.pending) >= s.cfg.BatchSize {
		return s.flush()
	}
	return nil
}

// WriteState flushes pending records, then publishes the state document.
func (s *Sink) WriteState(ctx context.Context, doc state.Document) error {
	value, err := jsonpool.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to encode state")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flush(); err != nil {
		return err
	}
	return s.send(s.message(s.StateTopic(), "", []byte("state"), value, time.Now()))
}

// Close flushes pending records and closes the producer.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	flushErr := s.flush()
	for name, n := range s.produced {
		s.logger.Info("kafka stream produced",
			zap.String("stream", name),
			zap.String("topic", s.RecordTopic(name)),
			zap.Int("messages", n))
	}
	if err := s.producer.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to close kafka producer")
	}
	return flushErr
}

// RecordKey joins the record's primary-key values. Streams without a
// primary key get a nil key and are spread across partitions.
func RecordKey(desc stream.Descriptor, rec stream.Record) []byte {
	if len(desc.PrimaryKeys) == 0 {
		return nil
	}
	parts := make([]string, len(desc.PrimaryKeys))
	for i, k := range desc.PrimaryKeys {
		if v, ok := rec[k]; ok && v != nil {
			parts[i] = fmt.Sprint(v)
		}
	}
	return []byte(strings.Join(parts, keySep))
}

func (s *Sink) message(topic, streamName string, key, value []byte, at time.Time) *sarama.ProducerMessage {
	headers := []sarama.RecordHeader{
		{Key: []byte("content-type"), Value: []byte(contentType)},
		{Key: []byte("run-id"), Value: []byte(s.cfg.RunID)},
	}
	if streamName != "" {
		headers = append(headers, sarama.RecordHeader{
			Key: []byte("stream"), Value: []byte(streamName),
		})
	}

	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Value:     sarama.ByteEncoder(value),
		Headers:   headers,
		Timestamp: at,
	}
	if key != nil {
		msg.Key = sarama.ByteEncoder(key)
	}
	return msg
}

// flush sends buffered records. Callers hold mu.
func (s *Sink) flush() error {
	if len(s.pending) == 0 {
		return nil
	}
	batch := s.pending
	s.pending = nil

	if err := s.producer.SendMessages(batch); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to produce records").
			WithDetail("messages", len(batch))
	}
	return nil
}

func (s *Sink) send(msg *sarama.ProducerMessage) error {
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to produce message").
			WithDetail("topic", msg.Topic)
	}
	return nil
}
