package kafka

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/ajitpratap0/tap-leaflink/pkg/config"
	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
	"github.com/ajitpratap0/tap-leaflink/pkg/sink"
)

func init() {
	sink.Register(config.OutputKafka, NewFromConfig)
}

// NewFromConfig connects a sync producer to the configured brokers.
func NewFromConfig(_ context.Context, cfg config.OutputConfig, opts sink.Options) (sink.Sink, error) {
	saramaCfg, err := BuildSaramaConfig(cfg.Compression)
	if err != nil {
		return nil, err
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create kafka producer").
			WithDetail("brokers", cfg.Brokers)
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	return New(producer, Config{TopicPrefix: cfg.TopicPrefix, RunID: runID}, opts.Logger), nil
}

// BuildSaramaConfig returns a producer configuration that waits for all
// in-sync replicas and applies the requested compression codec.
func BuildSaramaConfig(compression string) (*sarama.Config, error) {
	c := sarama.NewConfig()
	c.ClientID = "tap-leaflink"
	c.Producer.RequiredAcks = sarama.WaitForAll
	c.Producer.Return.Successes = true
	c.Producer.Return.Errors = true

	switch compression {
	case "", "none":
		c.Producer.Compression = sarama.CompressionNone
	case "gzip":
		c.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		c.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		c.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		c.Producer.Compression = sarama.CompressionZSTD
		c.Version = sarama.V2_1_0_0
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported kafka compression %q", compression)
	}
	return c, nil
}
