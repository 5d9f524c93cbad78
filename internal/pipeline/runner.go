// Package pipeline runs a sync: it feeds every selected stream through the
// syncer into a sink, committing state after each stream that completes.
//
// # Overview
//
// Streams run one at a time in catalog order. For each stream the runner
//
//	writes the SCHEMA from the schema registry
//	resolves the starting value from state or start_date
//	syncs every page, handing records to the sink
//	advances the bookmark and writes STATE
//
// A failed stream is logged and counted, keeps its previous bookmark, and
// does not stop the run; the failures are returned together at the end.
// Cancellation stops the run before the next stream.
//
// # Basic Usage
//
//	runner := pipeline.NewRunner(syncer, out, schemas, st, pipeline.Config{
//	    StartDate: cfg.StartDate,
//	    StatePath: cfg.StatePath,
//	}, logger)
//	summary, err := runner.Run(ctx, descriptors)
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
	"github.com/ajitpratap0/tap-leaflink/pkg/logger"
	"github.com/ajitpratap0/tap-leaflink/pkg/metrics"
	"github.com/ajitpratap0/tap-leaflink/pkg/observability"
	"github.com/ajitpratap0/tap-leaflink/pkg/schema"
	"github.com/ajitpratap0/tap-leaflink/pkg/sink"
	"github.com/ajitpratap0/tap-leaflink/pkg/state"
	"github.com/ajitpratap0/tap-leaflink/pkg/stream"
)

// Syncer syncs one stream. *stream.Syncer satisfies it.
type Syncer interface {
	Sync(ctx context.Context, desc stream.Descriptor, starting interface{}, emit stream.EmitFunc) (stream.Result, error)
}

// Config controls a run.
type Config struct {
	// StartDate bounds incremental streams without a bookmark
	StartDate string
	// StatePath, when set, receives the state document after each
	// successful stream
	StatePath string
	// RunID identifies the run in logs; generated when empty
	RunID string
}

// StreamSummary reports one stream's outcome.
type StreamSummary struct {
	Stream    string
	Pages     int
	Records   int
	Watermark interface{}
	Duration  time.Duration
	Err       error
}

// Summary reports a whole run.
type Summary struct {
	RunID    string
	Streams  []StreamSummary
	Duration time.Duration
}

// Records returns the total number of records emitted.
func (s *Summary) Records() int {
	n := 0
	for _, st := range s.Streams {
		n += st.Records
	}
	return n
}

// Failed returns the names of streams that did not complete.
func (s *Summary) Failed() []string {
	var failed []string
	for _, st := range s.Streams {
		if st.Err != nil {
			failed = append(failed, st.Stream)
		}
	}
	return failed
}

// Runner drives streams through a syncer into a sink.
type Runner struct {
	syncer  Syncer
	sink    sink.Sink
	schemas *schema.Registry
	state   *state.State
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

// NewRunner creates a runner. A nil schema registry yields permissive
// schemas and a nil state starts every stream fresh.
func NewRunner(syncer Syncer, out sink.Sink, schemas *schema.Registry, st *state.State, cfg Config, logger *zap.Logger) *Runner {
	if schemas == nil {
		schemas = schema.Empty()
	}
	if st == nil {
		st = state.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	return &Runner{
		syncer:  syncer,
		sink:    out,
		schemas: schemas,
		state:   st,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// RunID returns the identifier of this run.
func (r *Runner) RunID() string {
	return r.cfg.RunID
}

// Run syncs descs in order. The returned error combines every stream
// failure; the summary is always returned.
func (r *Runner) Run(ctx context.Context, descs []stream.Descriptor) (*Summary, error) {
	start := r.now()
	ctx = logger.ContextWithRunID(ctx, r.cfg.RunID)
	log := r.logger.With(zap.String("run_id", r.cfg.RunID))

	summary := &Summary{RunID: r.cfg.RunID}
	log.Info("starting sync run", zap.Int("streams", len(descs)))

	var runErr error
	for _, desc := range descs {
		if err := ctx.Err(); err != nil {
			runErr = multierr.Append(runErr, errors.Wrap(err, errors.ErrorTypeConnection, "sync run interrupted"))
			break
		}

		ss := r.runStream(ctx, desc)
		summary.Streams = append(summary.Streams, ss)
		if ss.Err == nil {
			continue
		}

		runErr = multierr.Append(runErr, ss.Err)
		metrics.StreamFailures.WithLabelValues(desc.Name, string(errors.TypeOf(ss.Err))).Inc()
		log.Error("stream sync failed",
			zap.String("stream", desc.Name),
			zap.String("error_type", string(errors.TypeOf(ss.Err))),
			zap.Int("records", ss.Records),
			zap.Error(ss.Err))
	}

	summary.Duration = r.now().Sub(start)
	log.Info("sync run finished",
		zap.Int("streams", len(summary.Streams)),
		zap.Int("records", summary.Records()),
		zap.Strings("failed", summary.Failed()),
		zap.Duration("duration", summary.Duration))

	return summary, runErr
}

func (r *Runner) runStream(ctx context.Context, desc stream.Descriptor) (ss StreamSummary) {
	start := r.now()
	ss.Stream = desc.Name

	ctx, span := observability.StartStreamSpan(ctx, desc.Name, "sync")
	defer func() {
		ss.Duration = r.now().Sub(start)
		observability.EndSpan(span, ss.Err)
	}()

	if err := r.sink.WriteSchema(ctx, desc, r.schemas.Lookup(desc.SchemaKey)); err != nil {
		ss.Err = errors.Wrap(err, errors.ErrorTypeSink, "failed to write schema").WithDetail("stream", desc.Name)
		return ss
	}

	starting := r.state.StartingValue(desc, r.cfg.StartDate)
	emit := func(ctx context.Context, rec stream.Record) error {
		return r.sink.WriteRecord(ctx, desc, rec, r.now())
	}

	result, err := r.syncer.Sync(ctx, desc, starting, emit)
	ss.Pages = result.Pages
	ss.Records = result.Records
	if err != nil {
		ss.Err = err
		return ss
	}

	if err := r.commit(ctx, desc, result.Watermark); err != nil {
		ss.Err = err
		return ss
	}
	ss.Watermark = result.Watermark
	return ss
}

// commit advances the stream's bookmark and publishes the state.
func (r *Runner) commit(ctx context.Context, desc stream.Descriptor, watermark interface{}) error {
	if desc.Incremental() && r.state.Advance(desc.Name, desc.ReplicationKey, watermark) {
		if t, ok := stream.AsTime(watermark); ok {
			metrics.Watermark.WithLabelValues(desc.Name).Set(float64(t.Unix()))
		}
	}

	if err := r.sink.WriteState(ctx, r.state.Snapshot()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeSink, "failed to write state").WithDetail("stream", desc.Name)
	}
	if r.cfg.StatePath != "" {
		if err := r.state.Save(r.cfg.StatePath); err != nil {
			return err
		}
	}
	return nil
}
