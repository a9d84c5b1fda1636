package hub

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3Fetcher.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher downloads artifacts stored under a bucket prefix.
type S3Fetcher struct {
	client S3API
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Fetcher builds a fetcher from the default AWS credential chain.
func NewS3Fetcher(ctx context.Context, bucket, prefix string, logger *slog.Logger) (*S3Fetcher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3FetcherWithClient(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

func NewS3FetcherWithClient(client S3API, bucket, prefix string, logger *slog.Logger) *S3Fetcher {
	return &S3Fetcher{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

// Key returns the object key holding filename.
func (f *S3Fetcher) Key(filename string) string {
	if f.prefix == "" {
		return filename
	}
	return path.Join(f.prefix, filename)
}

func (f *S3Fetcher) Fetch(ctx context.Context, filename string, w io.Writer) error {
	key := f.Key(filename)
	f.logger.Info("fetching artifact from s3", "bucket", f.bucket, "key", key)

	result, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("S3 GetObject %s: %w", key, err)
	}
	defer result.Body.Close()

	if _, err := io.Copy(w, result.Body); err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	return nil
}

// ParseS3Repo splits s3://bucket/prefix. ok is false for other schemes.
func ParseS3Repo(repo string) (bucket, prefix string, ok bool) {
	rest, found := strings.CutPrefix(repo, "s3://")
	if !found {
		return "", "", false
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", false
	}
	return bucket, strings.Trim(prefix, "/"), true
}
