package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
	jsonpool "github.com/ajitpratap0/tap-leaflink/pkg/json"
	"github.com/ajitpratap0/tap-leaflink/pkg/state"
	"github.com/ajitpratap0/tap-leaflink/pkg/stream"
)

func header(msg *sarama.ProducerMessage, key string) string {
	for _, h := range msg.Headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func newMockProducer(t *testing.T) *mocks.SyncProducer {
	cfg, err := BuildSaramaConfig("none")
	require.NoError(t, err)
	return mocks.NewSyncProducer(t, cfg)
}

func TestKafkaPublishesInOrder(t *testing.T) {
	producer := newMockProducer(t)
	s := New(producer, Config{TopicPrefix: "leaflink.", RunID: "run-1", BatchSize: 10}, nil)
	ctx := context.Background()
	orders, _ := stream.Lookup("orders_received")

	var topics []string
	record := func(msg *sarama.ProducerMessage) error {
		topics = append(topics, msg.Topic)
		key, err := msg.Key.Encode()
		require.NoError(t, err)
		assert.Equal(t, "A-100", string(key))
		assert.Equal(t, "orders_received", header(msg, "stream"))
		assert.Equal(t, "run-1", header(msg, "run-id"))
		return nil
	}
	track := func(msg *sarama.ProducerMessage) error {
		topics = append(topics, msg.Topic)
		return nil
	}

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(track)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(record)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(record)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(track)

	require.NoError(t, s.WriteSchema(ctx, orders, map[string]interface{}{"type": "object"}))
	require.NoError(t, s.WriteRecord(ctx, orders, stream.Record{"number": "A-100"}, time.Now()))
	require.NoError(t, s.WriteRecord(ctx, orders, stream.Record{"number": "A-100"}, time.Now()))
	require.NoError(t, s.WriteState(ctx, state.Document{Bookmarks: map[string]state.Bookmark{}}))
	require.NoError(t, s.Close(ctx))

	assert.Equal(t, []string{
		"leaflink._schemas",
		"leaflink.orders_received",
		"leaflink.orders_received",
		"leaflink._state",
	}, topics)
}

func TestKafkaFlushesFullBatch(t *testing.T) {
	producer := newMockProducer(t)
	s := New(producer, Config{TopicPrefix: "t.", BatchSize: 2}, nil)
	brands, _ := stream.Lookup("brands")
	ctx := context.Background()

	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndSucceed()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.WriteRecord(ctx, brands, stream.Record{"id": jsonpool.Number("1")}, time.Now()))
	}
	// the third record is still pending and goes out on close
	require.NoError(t, s.Close(ctx))
}

func TestKafkaSendFailure(t *testing.T) {
	producer := newMockProducer(t)
	s := New(producer, Config{TopicPrefix: "t."}, nil)
	brands, _ := stream.Lookup("brands")
	ctx := context.Background()

	producer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	require.NoError(t, s.WriteRecord(ctx, brands, stream.Record{"id": jsonpool.Number("1")}, time.Now()))
	err := s.WriteState(ctx, state.Document{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	require.NoError(t, s.Close(ctx))
}

func TestRecordKey(t *testing.T) {
	desc := stream.Descriptor{Name: "x", PrimaryKeys: []string{"a", "b"}}
	assert.Equal(t, "1|two", string(RecordKey(desc, stream.Record{"a": jsonpool.Number("1"), "b": "two"})))
	assert.Equal(t, "1|", string(RecordKey(desc, stream.Record{"a": jsonpool.Number("1")})))
	assert.Nil(t, RecordKey(stream.Descriptor{Name: "y"}, stream.Record{"a": 1}))
}

func TestBuildSaramaConfig(t *testing.T) {
	c, err := BuildSaramaConfig("zstd")
	require.NoError(t, err)
	assert.Equal(t, sarama.CompressionZSTD, c.Producer.Compression)
	assert.Equal(t, sarama.WaitForAll, c.Producer.RequiredAcks)
	assert.True(t, c.Producer.Return.Successes)

	_, err = BuildSaramaConfig("brotli")
	assert.Error(t, err)
}
