package s3

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/ajitpratap0/tap-leaflink/pkg/compression"
	"github.com/ajitpratap0/tap-leaflink/pkg/config"
	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
	"github.com/ajitpratap0/tap-leaflink/pkg/sink"
)

func init() {
	sink.Register(config.OutputS3, NewFromConfig)
}

// NewFromConfig builds an S3 sink using the default AWS credential chain.
func NewFromConfig(ctx context.Context, cfg config.OutputConfig, opts sink.Options) (sink.Sink, error) {
	algorithm, err := compression.Parse(cfg.Compression)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid output.compression")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS configuration")
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	uploader := manager.NewUploader(s3.NewFromConfig(awsCfg))
	return New(uploader, Config{
		Bucket:      cfg.Bucket,
		Prefix:      cfg.Prefix,
		Compression: algorithm,
		RunID:       runID,
	}, opts.Logger), nil
}
