package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/ajitpratap0/csvsum/pkg/logger"
	"github.com/ajitpratap0/csvsum/pkg/sumerrors"
)

const s3Scheme = "s3://"

// S3API is the subset of the S3 client used for reading inputs.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Config configures the S3 client.
type S3Config struct {
	Region    string
	Endpoint  string
	PathStyle bool
}

// S3 streams objects from S3 or an S3-compatible store.
type S3 struct {
	client S3API
	logger *zap.Logger
}

// NewS3 builds an S3 opener from the default AWS credential chain.
func NewS3(ctx context.Context, cfg S3Config, log *zap.Logger) (*S3, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return NewS3WithClient(client, log), nil
}

// NewS3WithClient wraps an existing client.
func NewS3WithClient(client S3API, log *zap.Logger) *S3 {
	return &S3{
		client: client,
		logger: logger.OrGlobal(log).With(zap.String("component", "s3-source")),
	}
}

// Open implements Opener.
func (s *S3) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3URL(path)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, sumerrors.Wrap(err, sumerrors.ErrorTypeSourceUnavailable, "failed to get object").
			WithDetail("bucket", bucket).
			WithDetail("key", key)
	}

	s.logger.Debug("opened object",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int64("content_length", aws.ToInt64(out.ContentLength)))

	return decompress(out.Body, key)
}

// Size implements Opener.
func (s *S3) Size(ctx context.Context, path string) (int64, error) {
	bucket, key, err := ParseS3URL(path)
	if err != nil {
		return 0, err
	}

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, sumerrors.Wrap(err, sumerrors.ErrorTypeSourceUnavailable, "failed to head object").
			WithDetail("bucket", bucket).
			WithDetail("key", key)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// ParseS3URL splits s3://bucket/key into its parts.
func ParseS3URL(path string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(path, s3Scheme)
	if !ok {
		return "", "", sumerrors.New(sumerrors.ErrorTypeSourceUnavailable, "not an s3 url").WithDetail("path", path)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", sumerrors.New(sumerrors.ErrorTypeSourceUnavailable, "s3 url must be s3://bucket/key").
			WithDetail("path", path)
	}
	return bucket, key, nil
}
