// Package results retrieves and decodes Athena result objects from S3.
package results

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// ObjectAPIClient is the narrow S3 interface used by the Fetcher.
type ObjectAPIClient interface {
	GetObject(ctx context.Context, params *s3svc.GetObjectInput, optFns ...func(*s3svc.Options)) (*s3svc.GetObjectOutput, error)
}

// Fetcher downloads a result object and splits it into raw text lines.
type Fetcher struct {
	client ObjectAPIClient
	log    *zap.Logger
}

// NewFetcher constructs a Fetcher around the given S3 client.
func NewFetcher(client ObjectAPIClient, log *zap.Logger) *Fetcher {
	return &Fetcher{client: client, log: log}
}

// FetchLines reads the object at (bucket, key), strips the CSV quote
// characters Athena emits, and splits the body into lines, preserving
// order. The first line is the header row; discarding it, and skipping
// blank lines, is the caller's responsibility.
func (f *Fetcher) FetchLines(ctx context.Context, bucket, key string) ([]string, error) {
	f.log.Debug("downloading result object",
		zap.String("bucket", bucket), zap.String("key", key))

	out, err := f.client.GetObject(ctx, &s3svc.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get result object s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read result object s3://%s/%s: %w", bucket, key, err)
	}

	text := strings.ReplaceAll(string(data), `"`, "")
	return strings.Split(text, "\n"), nil
}
