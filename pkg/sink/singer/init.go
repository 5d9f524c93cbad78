package singer

import (
	"context"

	"github.com/ajitpratap0/tap-leaflink/pkg/config"
	"github.com/ajitpratap0/tap-leaflink/pkg/sink"
)

func init() {
	sink.Register(config.OutputSinger, func(_ context.Context, _ config.OutputConfig, opts sink.Options) (sink.Sink, error) {
		return New(opts.Stdout, opts.Logger), nil
	})
}
