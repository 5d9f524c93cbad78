package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-leaflink/internal/pipeline"
	"github.com/ajitpratap0/tap-leaflink/pkg/auth"
	"github.com/ajitpratap0/tap-leaflink/pkg/clients"
	"github.com/ajitpratap0/tap-leaflink/pkg/config"
	"github.com/ajitpratap0/tap-leaflink/pkg/logger"
	"github.com/ajitpratap0/tap-leaflink/pkg/metrics"
	"github.com/ajitpratap0/tap-leaflink/pkg/observability"
	"github.com/ajitpratap0/tap-leaflink/pkg/schema"
	"github.com/ajitpratap0/tap-leaflink/pkg/sink"
	"github.com/ajitpratap0/tap-leaflink/pkg/state"
	"github.com/ajitpratap0/tap-leaflink/pkg/stream"
)

func runSyncCommand(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runSync(ctx, cfg, cmd.OutOrStdout())
}

// runSync performs one sync run with a validated configuration.
func runSync(ctx context.Context, cfg *config.TapConfig, stdout io.Writer) (err error) {
	if err := logger.Init(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: cfg.Observability.LogEncoding,
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	runID := uuid.NewString()
	log := logger.With(zap.String("component", "tap-leaflink"), zap.String("run_id", runID))

	if cfg.Observability.EnableTracing {
		shutdown, err := observability.Setup(observability.TracingConfig{
			ServiceName:    "tap-leaflink",
			ServiceVersion: config.Version,
			SamplingRate:   cfg.Observability.TracingSampleRate,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn("failed to flush traces", zap.Error(err))
			}
		}()
	}

	if cfg.Observability.MetricsAddr != "" {
		srv, errc := metrics.Serve(cfg.Observability.MetricsAddr)
		defer srv.Close()
		go func() {
			if err, ok := <-errc; ok {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
		log.Info("serving metrics", zap.String("addr", cfg.Observability.MetricsAddr))
	}

	if cfg.Timeouts.Run > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeouts.Run)
		defer cancel()
	}

	descs, err := stream.Select(cfg.Streams)
	if err != nil {
		return err
	}

	schemas := schema.Empty()
	if cfg.SchemaPath != "" {
		if schemas, err = schema.Load(cfg.SchemaPath); err != nil {
			return err
		}
		log.Info("loaded schemas", zap.String("path", cfg.SchemaPath), zap.Int("schemas", schemas.Len()))
	}

	st := state.New()
	if cfg.StatePath != "" {
		if st, err = state.Load(cfg.StatePath); err != nil {
			return err
		}
	}

	key, err := auth.NewAppKey(cfg.APIKey)
	if err != nil {
		return err
	}

	httpCfg := clients.DefaultHTTPConfig()
	httpCfg.RequestTimeout = cfg.Timeouts.Request
	httpCfg.DialTimeout = cfg.Timeouts.Connection
	httpCfg.TLSHandshakeTimeout = cfg.Timeouts.TLSHandshake
	httpCfg.IdleConnTimeout = cfg.Timeouts.Idle
	httpCfg.EnableHTTP2 = cfg.Reliability.EnableHTTP2
	httpCfg.RateLimit = cfg.Reliability.RateLimitPerSec
	httpCfg.RateBurst = cfg.Reliability.RateBurst
	httpCfg.UserAgent = cfg.UserAgent
	httpCfg.Auth = key.Transport

	client := clients.NewHTTPClient(httpCfg, log)
	defer client.Close()

	out, err := sink.Create(ctx, cfg.Output.Type, cfg.Output, sink.Options{
		Stdout: stdout,
		Logger: log,
		RunID:  runID,
	})
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, out.Close(context.Background()))
	}()

	log.Info("starting tap",
		zap.String("api_url", cfg.BaseURL()),
		zap.Stringer("auth", key),
		zap.String("output", cfg.Output.Type),
		zap.Int("streams", len(descs)))

	runner := pipeline.NewRunner(
		stream.NewSyncer(client, cfg.BaseURL()),
		out, schemas, st,
		pipeline.Config{StartDate: cfg.StartDate, StatePath: cfg.StatePath, RunID: runID},
		log,
	)

	summary, err := runner.Run(ctx, descs)
	stats := client.GetStats()
	log.Info("tap finished",
		zap.Int("records", summary.Records()),
		zap.Strings("failed", summary.Failed()),
		zap.Int64("requests", stats.TotalRequests),
		zap.Duration("duration", summary.Duration))
	return err
}
