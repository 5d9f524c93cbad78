// Package jsonl writes each stream's records to a local newline-delimited
// JSON file, optionally compressed, next to its schema and the latest
// state document.
//
// Layout under the configured directory:
//
//	<stream>.jsonl[.gz|.zst|.sz|.lz4]
//	<stream>.schema.json
//	state.json
package jsonl

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-leaflink/pkg/compression"
	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
	jsonpool "github.com/ajitpratap0/tap-leaflink/pkg/json"
	"github.com/ajitpratap0/tap-leaflink/pkg/state"
	"github.com/ajitpratap0/tap-leaflink/pkg/stream"
)

// StateFile is the name of the state document in the output directory.
const StateFile = "state.json"

// Sink is the local JSONL file sink.
type Sink struct {
	dir       string
	algorithm compression.Algorithm
	logger    *zap.Logger

	mu    sync.Mutex
	files map[string]*streamFile
}

type streamFile struct {
	file    *os.File
	buf     *bufio.Writer
	comp    interface{ Close() error }
	lines   *jsonpool.LineWriter
	records int
}

// New creates a sink writing into dir, which is created if missing.
func New(dir string, algorithm compression.Algorithm, logger *zap.Logger) (*Sink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSink, "failed to create output directory").
			WithDetail("path", dir)
	}
	return &Sink{
		dir:       dir,
		algorithm: algorithm,
		logger:    logger,
		files:     make(map[string]*streamFile),
	}, nil
}

// RecordPath returns the data file path for a stream.
func (s *Sink) RecordPath(streamName string) string {
	return filepath.Join(s.dir, streamName+".jsonl"+s.algorithm.Extension())
}

// WriteSchema writes <stream>.schema.json and opens the stream's data file.
func (s *Sink) WriteSchema(ctx context.Context, desc stream.Descriptor, schema map[string]interface{}) error {
	data, err := jsonpool.MarshalIndent(schema, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to encode schema")
	}
	path := filepath.Join(s.dir, desc.Name+".schema.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to write schema").WithDetail("path", path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.open(desc.Name)
	return err
}

// WriteRecord appends the bare record to the stream's file.
func (s *Sink) WriteRecord(ctx context.Context, desc stream.Descriptor, rec stream.Record, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open(desc.Name)
	if err != nil {
		return err
	}
	if err := f.lines.Write(rec); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to write record").
			WithDetail("stream", desc.Name)
	}
	f.records++
	return nil
}

// WriteState replaces state.json atomically.
func (s *Sink) WriteState(ctx context.Context, doc state.Document) error {
	data, err := jsonpool.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to encode state")
	}

	path := filepath.Join(s.dir, StateFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to write state").WithDetail("path", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to replace state").WithDetail("path", path)
	}
	return nil
}

// Close finishes every open file. Errors from individual files are
// combined; all files are attempted.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for name, f := range s.files {
		err = multierr.Append(err, f.close())
		s.logger.Info("jsonl stream file closed",
			zap.String("stream", name),
			zap.String("path", s.RecordPath(name)),
			zap.Int("records", f.records))
	}
	s.files = make(map[string]*streamFile)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to close output files")
	}
	return nil
}

// open returns the stream's file, creating it on first use. Callers hold mu.
func (s *Sink) open(streamName string) (*streamFile, error) {
	if f, ok := s.files[streamName]; ok {
		return f, nil
	}

	path := s.RecordPath(streamName)
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSink, "failed to create output file").
			WithDetail("path", path)
	}
	buf := bufio.NewWriterSize(file, 64*1024)
	comp, err := compression.NewWriter(buf, s.algorithm)
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create compressor")
	}

	f := &streamFile{
		file:  file,
		buf:   buf,
		comp:  comp,
		lines: jsonpool.NewLineWriter(comp),
	}
	s.files[streamName] = f
	return f, nil
}

func (f *streamFile) close() error {
	err := f.comp.Close()
	err = multierr.Append(err, f.buf.Flush())
	return multierr.Append(err, f.file.Close())
}
