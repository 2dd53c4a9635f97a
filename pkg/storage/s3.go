package storage

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Meter measures tenant prefixes in an S3 bucket.
type S3Meter struct {
	client s3.ListObjectsV2APIClient
	bucket string
}

// NewS3Meter wraps an existing client; useful with fakes in tests.
func NewS3Meter(client s3.ListObjectsV2APIClient, bucket string) *S3Meter {
	return &S3Meter{client: client, bucket: bucket}
}

// NewS3MeterFromConfig builds an S3 client from cfg. Static credentials are
// used when given, otherwise the default AWS credential chain applies.
func NewS3MeterFromConfig(ctx context.Context, cfg Config) (*S3Meter, error) {
	if cfg.S3Bucket == "" || cfg.S3Region == "" {
		return nil, ErrMissingBucket
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKeyID != "" && cfg.S3SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3ForcePathStyle
	})
	return NewS3Meter(client, cfg.S3Bucket), nil
}

// Usage sums object sizes under the tenant prefix, following pagination.
func (m *S3Meter) Usage(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	p := s3.NewListObjectsV2Paginator(m.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.bucket),
		Prefix: aws.String(TenantPrefix(tenantID)),
	})

	var total int64
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, errors.Join(ErrFailedToMeasure, err)
		}
		for _, obj := range page.Contents {
			total += aws.ToInt64(obj.Size)
		}
	}
	return total, nil
}

// NewMeter returns the meter selected by cfg.Driver.
func NewMeter(ctx context.Context, cfg Config) (Meter, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalMeter(cfg.LocalDir), nil
	case "s3":
		return NewS3MeterFromConfig(ctx, cfg)
	}
	return nil, ErrUnknownDriver
}
