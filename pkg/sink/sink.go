// Package sink defines where extracted records, schemas and state go, and a
// registry of sink implementations selected by output.type.
//
// Implementations live in sub-packages and register themselves from
// init(); import pkg/sink/sinks to link all of them.
package sink

import (
	"context"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-leaflink/pkg/config"
	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
	"github.com/ajitpratap0/tap-leaflink/pkg/state"
	"github.com/ajitpratap0/tap-leaflink/pkg/stream"
)

// Sink receives the output of a sync run. Calls for one stream arrive in
// order: WriteSchema, then its records, then WriteState once the stream
// completed. Close is called once at the end of the run.
type Sink interface {
	WriteSchema(ctx context.Context, desc stream.Descriptor, schema map[string]interface{}) error
	WriteRecord(ctx context.Context, desc stream.Descriptor, rec stream.Record, extractedAt time.Time) error
	WriteState(ctx context.Context, doc state.Document) error
	Close(ctx context.Context) error
}

// Options carries process-level collaborators to sink factories.
type Options struct {
	// Stdout receives Singer messages; defaults to os.Stdout
	Stdout io.Writer
	Logger *zap.Logger
	// RunID distinguishes objects written by different runs
	RunID string
}

func (o Options) withDefaults() Options {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Factory creates a sink from the output configuration.
type Factory func(ctx context.Context, cfg config.OutputConfig, opts Options) (Sink, error)

// Registry maps output types to sink factories.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory; registering a name twice is an error.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "sink %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Create builds the sink registered under name.
func (r *Registry) Create(ctx context.Context, name string, cfg config.OutputConfig, opts Options) (Sink, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeConfig, "sink %s not found", name)
	}

	s, err := factory(ctx, cfg, opts.withDefaults())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create sink "+name)
	}
	return s, nil
}

// List returns the registered names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register registers a sink in the global registry. It panics on a
// duplicate name, since registration happens from init().
func Register(name string, factory Factory) {
	if err := globalRegistry.Register(name, factory); err != nil {
		panic(err)
	}
}

// Create creates a sink from the global registry
func Create(ctx context.Context, name string, cfg config.OutputConfig, opts Options) (Sink, error) {
	return globalRegistry.Create(ctx, name, cfg, opts)
}

// List returns the sinks in the global registry
func List() []string {
	return globalRegistry.List()
}
