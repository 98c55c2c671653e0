package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ragsync/ragsync/internal/errors"
)

// S3API is the slice of the S3 client used for downloads.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// IsS3URL reports whether the argument is an s3:// URL.
func IsS3URL(s string) bool {
	return strings.HasPrefix(s, "s3://")
}

// ParseS3URL splits s3://bucket/prefix into its parts.
func ParseS3URL(url string) (bucket, prefix string, err error) {
	rest := strings.TrimPrefix(url, "s3://")
	if rest == url || rest == "" {
		return "", "", errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("not an s3 URL: %q", url), nil)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("missing bucket in %q", url), nil)
	}
	return bucket, prefix, nil
}

// NewS3Client builds an S3 client from the ambient AWS configuration.
func NewS3Client(ctx context.Context) (S3API, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCredentialMissing, err)
	}
	return s3.NewFromConfig(cfg), nil
}

// DownloadS3 fetches every object under s3://bucket/prefix into a temp
// directory, preserving key structure below the prefix, and returns the
// result as a prefix-scoped tree named after the last prefix segment (or
// the bucket when the prefix is empty).
func DownloadS3(ctx context.Context, client S3API, url string) (*Acquisition, error) {
	bucket, prefix, err := ParseS3URL(url)
	if err != nil {
		return nil, err
	}

	tempDir, err := os.MkdirTemp("", "ragsync-s3-")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDownloadFailed, err)
	}

	count, err := downloadPrefix(ctx, client, bucket, prefix, tempDir)
	if err != nil {
		_ = os.RemoveAll(tempDir)
		return nil, err
	}
	if count == 0 {
		_ = os.RemoveAll(tempDir)
		return nil, errors.New(errors.ErrCodeDownloadFailed,
			fmt.Sprintf("no objects under %s", url), nil)
	}

	name := bucket
	if trimmed := strings.TrimSuffix(prefix, "/"); trimmed != "" {
		name = filepath.Base(trimmed)
	}
	slog.Info("s3 prefix downloaded",
		slog.String("bucket", bucket),
		slog.String("prefix", prefix),
		slog.Int("objects", count))

	return &Acquisition{
		Trees:   []Tree{{Root: tempDir, Prefix: name + "/"}},
		tempDir: tempDir,
	}, nil
}

func downloadPrefix(ctx context.Context, client S3API, bucket, prefix, dest string) (int, error) {
	keyBase := prefix
	if keyBase != "" && !strings.HasSuffix(keyBase, "/") {
		keyBase += "/"
	}

	count := 0
	var token *string
	for {
		out, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return count, errors.Wrap(errors.ErrCodeDownloadFailed, err).
				WithDetail("bucket", bucket)
		}

		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			rel := strings.TrimPrefix(key, keyBase)
			if rel == "" || rel == key && keyBase != "" {
				// Object at the prefix itself, keep its basename.
				rel = filepath.Base(key)
			}
			target, err := securePath(dest, rel)
			if err != nil {
				return count, err
			}
			if err := downloadObject(ctx, client, bucket, key, target); err != nil {
				return count, err
			}
			count++
		}

		if out.NextContinuationToken == nil {
			return count, nil
		}
		token = out.NextContinuationToken
	}
}

func downloadObject(ctx context.Context, client S3API, bucket, key, target string) error {
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeDownloadFailed, err).
			WithDetail("key", key)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeDownloadFailed, err)
	}
	f, err := os.Create(target)
	if err != nil {
		return errors.Wrap(errors.ErrCodeDownloadFailed, err)
	}
	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		return errors.Wrap(errors.ErrCodeDownloadFailed, err).
			WithDetail("key", key)
	}
	return f.Close()
}
