// Package singer writes SCHEMA, RECORD and STATE messages to stdout, one
// JSON document per line, for consumption by a Singer target.
package singer

import (
	"bufio"
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
	jsonpool "github.com/ajitpratap0/tap-leaflink/pkg/json"
	"github.com/ajitpratap0/tap-leaflink/pkg/sink"
	"github.com/ajitpratap0/tap-leaflink/pkg/state"
	"github.com/ajitpratap0/tap-leaflink/pkg/stream"
)

// Sink is the Singer stdout sink.
type Sink struct {
	out    *bufio.Writer
	lines  *jsonpool.LineWriter
	logger *zap.Logger

	mu      sync.Mutex
	records map[string]int
}

// New creates a Singer sink writing to w.
func New(w io.Writer, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	out := bufio.NewWriterSize(w, 64*1024)
	return &Sink{
		out:     out,
		lines:   jsonpool.NewLineWriter(out),
		logger:  logger,
		records: make(map[string]int),
	}
}

// WriteSchema emits the SCHEMA message for desc.
func (s *Sink) WriteSchema(ctx context.Context, desc stream.Descriptor, schema map[string]interface{}) error {
	if err := s.lines.Write(sink.NewSchemaMessage(desc, schema)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to write schema message")
	}
	return nil
}

// WriteRecord emits a RECORD message.
func (s *Sink) WriteRecord(ctx context.Context, desc stream.Descriptor, rec stream.Record, extractedAt time.Time) error {
	if err := s.lines.Write(sink.NewRecordMessage(desc, rec, extractedAt)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to write record message").
			WithDetail("stream", desc.Name)
	}
	s.mu.Lock()
	s.records[desc.Name]++
	s.mu.Unlock()
	return nil
}

// WriteState emits a STATE message and flushes, so the target sees every
// record the state covers before the state itself.
func (s *Sink) WriteState(ctx context.Context, doc state.Document) error {
	if err := s.lines.Write(sink.NewStateMessage(doc)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to write state message")
	}
	return s.flush()
}

// Close flushes buffered output.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	for name, n := range s.records {
		s.logger.Debug("singer stream output", zap.String("stream", name), zap.Int("records", n))
	}
	s.mu.Unlock()
	return s.flush()
}

func (s *Sink) flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.out.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to flush stdout")
	}
	return nil
}
