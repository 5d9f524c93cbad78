package jsonl

import (
	"context"

	"github.com/ajitpratap0/tap-leaflink/pkg/compression"
	"github.com/ajitpratap0/tap-leaflink/pkg/config"
	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
	"github.com/ajitpratap0/tap-leaflink/pkg/sink"
)

func init() {
	sink.Register(config.OutputJSONL, func(_ context.Context, cfg config.OutputConfig, opts sink.Options) (sink.Sink, error) {
		algorithm, err := compression.Parse(cfg.Compression)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid output.compression")
		}
		return New(cfg.Path, algorithm, opts.Logger)
	})
}
