package darwinbuild

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/PureDarwin/darwinbuild/internal/config"
)

// ObjectStore streams objects for s3:// manifest locators.
type ObjectStore interface {
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error)
}

// S3Store wraps the S3 client; any S3-compatible endpoint (R2, MinIO) works.
type S3Store struct {
	Client *s3.Client
}

// NewS3Store builds a client from the DARWINBUILD_S3_* settings, falling
// back to the default AWS credential chain when no static keys are set.
func NewS3Store(ctx context.Context, cfg *config.Config, debug bool) (*S3Store, error) {
	var options []func(*awsconfig.LoadOptions) error

	if ak, sk := cfg.S3AccessKey(), cfg.S3SecretKey(); ak != "" && sk != "" {
		options = append(options, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(ak, sk, "")))
	}
	region := cfg.S3Region()
	if region == "" && cfg.S3Endpoint() != "" {
		region = "auto"
	}
	if region != "" {
		options = append(options, awsconfig.WithRegion(region))
	}
	if debug {
		options = append(options, awsconfig.WithClientLogMode(aws.LogRetries|aws.LogRequest|aws.LogResponse))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	endpoint := cfg.S3Endpoint()
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{Client: client}, nil
}

// Open fetches bucket/key; the caller closes the body.
func (s *S3Store) Open(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error) {
	output, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("s3 get s3://%s/%s failed: %w", bucket, key, err)
	}
	return output.Body, aws.ToInt64(output.ContentLength), nil
}
