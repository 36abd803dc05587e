// Package dataset resolves dataset URIs to readable streams for the
// importer. Local paths and s3:// URIs are supported.
package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Source opens a dataset by URI.
type Source interface {
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

// FileSource opens datasets from the local filesystem.
type FileSource struct{}

// Open opens a local file.
func (FileSource) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	f, err := os.Open(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file %q: %w", uri, err)
	}
	return f, nil
}

// S3Source opens datasets stored in S3 or an S3-compatible store.
type S3Source struct {
	client *s3.Client
}

// S3Options configures the S3 client. Zero values fall back to the default
// AWS credential chain and endpoints; Endpoint plus the static key pair
// supports MinIO-style deployments.
type S3Options struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewS3Source creates an S3Source.
func NewS3Source(ctx context.Context, opts S3Options) (*S3Source, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Source{client: client}, nil
}

// Open fetches an s3://bucket/key object.
func (s *S3Source) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := splitS3URI(uri)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %q: %w", uri, err)
	}
	return out.Body, nil
}

// Resolver dispatches between local and S3 sources by URI scheme.
// The S3 client is built lazily so purely local imports never touch the
// AWS credential chain.
type Resolver struct {
	S3 S3Options

	s3 *S3Source
}

// Open opens a dataset URI with the appropriate source.
func (r *Resolver) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if !strings.HasPrefix(uri, "s3://") {
		return FileSource{}.Open(ctx, uri)
	}

	if r.s3 == nil {
		source, err := NewS3Source(ctx, r.S3)
		if err != nil {
			return nil, err
		}
		r.s3 = source
	}
	return r.s3.Open(ctx, uri)
}

func splitS3URI(uri string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(uri, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid S3 URI %q, want s3://bucket/key", uri)
	}
	return parts[0], parts[1], nil
}

var _ Source = (FileSource{})
var _ Source = (*S3Source)(nil)
var _ Source = (*Resolver)(nil)
