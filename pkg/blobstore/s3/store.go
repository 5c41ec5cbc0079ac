// Package s3 implements BlobStore on Amazon S3 or an S3-compatible store,
// grounded on the teacher's S3 content store client-construction pattern
// (static credentials, configurable endpoint for path-style/minio-style
// deployments) generalized to the opaque-key BlobStore contract.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithy "github.com/aws/smithy-go"

	"github.com/agentvfs/core/pkg/blobstore"
	coreerrors "github.com/agentvfs/core/pkg/errors"
)

// Config configures the S3-backed blob store.
type Config struct {
	Bucket         string
	Region         string
	Endpoint       string // non-empty for S3-compatible stores (minio, etc.)
	AccessKey      string
	SecretKey      string
	KeyPrefix      string
	MaxRetries     int
	ForcePathStyle bool
}

// Store is a BlobStore backed by an S3 bucket.
type Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// NewFromConfig builds an S3 client from cfg and verifies bucket access.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Bucket == "" {
		return nil, coreerrors.NewInvalidArgument("s3 blob store requires a bucket")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	if cfg.MaxRetries > 0 {
		loadOpts = append(loadOpts, awsconfig.WithRetryMaxAttempts(cfg.MaxRetries))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, coreerrors.NewUnavailable(cfg.Bucket, fmt.Errorf("head bucket: %w", err))
	}

	return &Store{client: client, bucket: cfg.Bucket, keyPrefix: cfg.KeyPrefix}, nil
}

func (s *Store) fullKey(key string) string {
	if s.keyPrefix == "" {
		return key
	}
	return s.keyPrefix + "/" + key
}

func (s *Store) Read(ctx context.Context, key string, rng *blobstore.Range) (io.ReadCloser, error) {
	input := &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.fullKey(key))}
	if rng != nil {
		rangeHeader := fmt.Sprintf("bytes=%d-", rng.Offset)
		if rng.Length > 0 {
			rangeHeader = fmt.Sprintf("bytes=%d-%d", rng.Offset, rng.Offset+rng.Length-1)
		}
		input.Range = aws.String(rangeHeader)
	}

	out, err := s.client.GetObject(ctx, input)
	if err != nil {
		if isNotFound(err) {
			return nil, coreerrors.NewNotFound("blob", key)
		}
		return nil, coreerrors.NewUnavailable(key, err)
	}
	return out.Body, nil
}

func (s *Store) Write(ctx context.Context, key string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return 0, coreerrors.NewUnavailable(key, err)
	}
	return int64(len(data)), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil && !isNotFound(err) {
		return coreerrors.NewUnavailable(key, err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, coreerrors.NewUnavailable(key, err)
	}
	return true, nil
}

func (s *Store) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket), Prefix: aws.String(s.fullKey(prefix))}
	if limit > 0 {
		input.MaxKeys = aws.Int32(int32(limit))
	}

	var out []string
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, coreerrors.NewUnavailable(prefix, err)
		}
		for _, obj := range page.Contents {
			out = append(out, aws.ToString(obj.Key))
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func (s *Store) Close() error { return nil }

func (s *Store) Capabilities() blobstore.Capabilities {
	return blobstore.Capabilities{RangeRead: true, Seekable: false, Append: false}
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404":
			return true
		}
	}
	return false
}
