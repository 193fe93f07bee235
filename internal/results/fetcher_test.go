package results

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

type fakeS3 struct {
	body string
	err  error

	gotBucket string
	gotKey    string
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3svc.GetObjectInput, optFns ...func(*s3svc.Options)) (*s3svc.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.gotBucket = *params.Bucket
	f.gotKey = *params.Key
	return &s3svc.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader(f.body)),
	}, nil
}

func TestFetchLines_StripsQuotesAndSplits(t *testing.T) {
	client := &fakeS3{body: "\"eventsource\",\"eventname\"\n\"s3\",\"GetObject\"\n\"ec2\",\"DescribeInstances\"\n"}
	f := NewFetcher(client, zap.NewNop())

	lines, err := f.FetchLines(context.Background(), "results", "sentry/exec-1.csv")
	if err != nil {
		t.Fatalf("FetchLines returned error: %v", err)
	}

	want := []string{"eventsource,eventname", "s3,GetObject", "ec2,DescribeInstances", ""}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines; want %d: %v", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %q; want %q", i, lines[i], want[i])
		}
	}

	if client.gotBucket != "results" || client.gotKey != "sentry/exec-1.csv" {
		t.Errorf("requested s3://%s/%s; want s3://results/sentry/exec-1.csv",
			client.gotBucket, client.gotKey)
	}
}

func TestFetchLines_EmptyObject(t *testing.T) {
	f := NewFetcher(&fakeS3{body: ""}, zap.NewNop())

	lines, err := f.FetchLines(context.Background(), "results", "k")
	if err != nil {
		t.Fatalf("FetchLines returned error: %v", err)
	}
	if len(lines) != 1 || lines[0] != "" {
		t.Errorf("lines = %v; want single empty line", lines)
	}
}

func TestFetchLines_ObjectNotFound(t *testing.T) {
	f := NewFetcher(&fakeS3{err: errors.New("NoSuchKey")}, zap.NewNop())

	if _, err := f.FetchLines(context.Background(), "results", "missing"); err == nil {
		t.Fatal("FetchLines succeeded; want error")
	}
}
