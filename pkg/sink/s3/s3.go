// Package s3 streams each stream's records to an S3 object as
// newline-delimited JSON while the sync runs.
//
// Objects are keyed:
//
//	<prefix>/<stream>/<run_id>.jsonl[.gz|.zst|.sz|.lz4]
//	<prefix>/<stream>/schema.json
//	<prefix>/state.json
//
// Record objects are uploaded through a pipe with the multipart upload
// manager, so memory use is bounded by the part size rather than the
// stream size. An object is complete once Close returns.
package s3

import (
	"bytes"
	"context"
	"io"
	"path"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-leaflink/pkg/compression"
	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
	jsonpool "github.com/ajitpratap0/tap-leaflink/pkg/json"
	"github.com/ajitpratap0/tap-leaflink/pkg/state"
	"github.com/ajitpratap0/tap-leaflink/pkg/stream"
)

// ContentType of record objects.
const ContentType = "application/x-ndjson"

// Uploader uploads one object. *manager.Uploader satisfies it.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Config configures the sink.
type Config struct {
	Bucket      string
	Prefix      string
	Compression compression.Algorithm
	RunID       string
}

// Sink is the S3 sink.
type Sink struct {
	uploader Uploader
	cfg      Config
	logger   *zap.Logger

	mu      sync.Mutex
	uploads map[string]*objectUpload
}

type objectUpload struct {
	key     string
	pw      *io.PipeWriter
	comp    io.WriteCloser
	lines   *jsonpool.LineWriter
	records int
	started time.Time
	done    chan error
}

// New creates a sink uploading through uploader.
func New(uploader Uploader, cfg Config, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		uploader: uploader,
		cfg:      cfg,
		logger:   logger,
		uploads:  make(map[string]*objectUpload),
	}
}

// RecordKey returns the object key for a stream's records.
func (s *Sink) RecordKey(streamName string) string {
	return path.Join(s.cfg.Prefix, streamName, s.cfg.RunID+".jsonl"+s.cfg.Compression.Extension())
}

// SchemaKey returns the object key for a stream's schema.
func (s *Sink) SchemaKey(streamName string) string {
	return path.Join(s.cfg.Prefix, streamName, "schema.json")
}

// StateKey returns the object key of the state document.
func (s *Sink) StateKey() string {
	return path.Join(s.cfg.Prefix, "state.json")
}

// WriteSchema uploads the stream's schema and starts its record upload.
func (s *Sink) WriteSchema(ctx context.Context, desc stream.Descriptor, schema map[string]interface{}) error {
	data, err := jsonpool.Marshal(schema)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to encode schema")
	}
	if err := s.put(ctx, s.SchemaKey(desc.Name), data); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.start(ctx, desc.Name)
	return err
}

// WriteRecord writes the bare record into the stream's object.
func (s *Sink) WriteRecord(ctx context.Context, desc stream.Descriptor, rec stream.Record, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.start(ctx, desc.Name)
	if err != nil {
		return err
	}
	if err := u.lines.Write(rec); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to stream record to S3").
			WithDetail("stream", desc.Name).
			WithDetail("key", u.key)
	}
	u.records++
	return nil
}

// WriteState replaces the state object.
func (s *Sink) WriteState(ctx context.Context, doc state.Document) error {
	data, err := jsonpool.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to encode state")
	}
	return s.put(ctx, s.StateKey(), data)
}

// Close completes every record upload and waits for them.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for name, u := range s.uploads {
		uerr := u.finish()
		if uerr != nil {
			err = multierr.Append(err, uerr)
			continue
		}
		s.logger.Info("stream uploaded to S3",
			zap.String("stream", name),
			zap.String("bucket", s.cfg.Bucket),
			zap.String("key", u.key),
			zap.Int("records", u.records),
			zap.Duration("duration", time.Since(u.started)))
	}
	s.uploads = make(map[string]*objectUpload)

	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to complete S3 uploads").
			WithDetail("bucket", s.cfg.Bucket)
	}
	return nil
}

// start returns the stream's running upload, starting it on first use.
// Callers hold mu.
func (s *Sink) start(ctx context.Context, streamName string) (*objectUpload, error) {
	if u, ok := s.uploads[streamName]; ok {
		return u, nil
	}

	pr, pw := io.Pipe()
	comp, err := compression.NewWriter(pw, s.cfg.Compression)
	if err != nil {
		pw.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create compressor")
	}

	u := &objectUpload{
		key:     s.RecordKey(streamName),
		pw:      pw,
		comp:    comp,
		lines:   jsonpool.NewLineWriter(comp),
		started: time.Now(),
		done:    make(chan error, 1),
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(u.key),
		Body:        pr,
		ContentType: aws.String(ContentType),
		Metadata: map[string]string{
			"stream":      streamName,
			"run_id":      s.cfg.RunID,
			"compression": string(s.cfg.Compression),
		},
	}
	if enc := s.cfg.Compression.ContentEncoding(); enc != "" {
		input.ContentEncoding = aws.String(enc)
	}

	go func() {
		_, err := s.uploader.Upload(ctx, input)
		// unblocks pending writes when the upload fails early
		pr.CloseWithError(err)
		u.done <- err
	}()

	s.uploads[streamName] = u
	return u, nil
}

func (u *objectUpload) finish() error {
	err := u.comp.Close()
	err = multierr.Append(err, u.pw.Close())
	if uerr := <-u.done; uerr != nil {
		err = multierr.Append(err, errors.Wrap(uerr, errors.ErrorTypeConnection, "failed to upload to S3").
			WithDetail("key", u.key))
	}
	return err
}

func (s *Sink) put(ctx context.Context, key string, data []byte) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to upload to S3").
			WithDetail("bucket", s.cfg.Bucket).
			WithDetail("key", key)
	}
	return nil
}
