// Package athena submits analytical queries to the Athena engine and polls
// them to completion. The poll loop is a small state machine: a submitted
// execution is observed as queued or running until it lands in a terminal
// state or the poll budget runs out.
package athena

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	athenasvc "github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
	"go.uber.org/zap"
)

// ErrQueryNotReady is the sentinel returned when an execution fails, is
// cancelled, or is still running after the poll budget is exhausted. The
// caller cannot distinguish the three cases; all mean "no usable result
// this cycle" and the unit of work is skipped, not retried.
var ErrQueryNotReady = errors.New("athena: query produced no usable result")

// DefaultMaxPolls bounds the wait for one execution. Combined with the
// default one-second interval this allows queries up to ~20s before the
// runner gives up.
const DefaultMaxPolls = 20

// DefaultPollInterval is the fixed delay between status checks.
const DefaultPollInterval = time.Second

// APIClient is the narrow Athena interface used by the Runner.
type APIClient interface {
	StartQueryExecution(ctx context.Context, params *athenasvc.StartQueryExecutionInput, optFns ...func(*athenasvc.Options)) (*athenasvc.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athenasvc.GetQueryExecutionInput, optFns ...func(*athenasvc.Options)) (*athenasvc.GetQueryExecutionOutput, error)
}

// Runner submits queries and polls them to completion.
type Runner struct {
	client       APIClient
	clock        Clock
	log          *zap.Logger
	maxPolls     int
	pollInterval time.Duration
}

// Option customises a Runner.
type Option func(*Runner)

// WithMaxPolls overrides the poll budget per execution.
func WithMaxPolls(n int) Option {
	return func(r *Runner) { r.maxPolls = n }
}

// WithPollInterval overrides the delay between status checks.
func WithPollInterval(d time.Duration) Option {
	return func(r *Runner) { r.pollInterval = d }
}

// WithClock substitutes the Clock; tests use a manual clock.
func WithClock(c Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// NewRunner constructs a Runner with the default poll budget and interval.
func NewRunner(client APIClient, log *zap.Logger, opts ...Option) *Runner {
	r := &Runner{
		client:       client,
		clock:        RealClock{},
		log:          log,
		maxPolls:     DefaultMaxPolls,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run submits q and polls until it reaches a terminal state or the poll
// budget is exhausted. On success it returns the result object's file name
// (the trailing segment of the reported output location); the caller joins
// it with the configured prefix to fetch the object.
//
// Failure modes:
//   - transport/auth errors talking to the engine are returned as-is;
//   - FAILED and CANCELLED executions, and executions still running after
//     maxPolls checks, return ErrQueryNotReady;
//   - malformed status responses are treated as still running.
//
// A retried Run submits a fresh execution, so retrying is always safe.
func (r *Runner) Run(ctx context.Context, q Query) (string, error) {
	start, err := r.client.StartQueryExecution(ctx, &athenasvc.StartQueryExecutionInput{
		QueryString: aws.String(q.SQL),
		QueryExecutionContext: &athenatypes.QueryExecutionContext{
			Database: aws.String(q.Database),
		},
		ResultConfiguration: &athenatypes.ResultConfiguration{
			OutputLocation: aws.String(q.OutputLocation()),
		},
	})
	if err != nil {
		return "", fmt.Errorf("start query execution: %w", err)
	}

	executionID := aws.ToString(start.QueryExecutionId)
	r.log.Debug("query submitted", zap.String("execution_id", executionID))

	for polls := 0; polls < r.maxPolls; polls++ {
		out, err := r.client.GetQueryExecution(ctx, &athenasvc.GetQueryExecutionInput{
			QueryExecutionId: aws.String(executionID),
		})
		if err != nil {
			return "", fmt.Errorf("get query execution %s: %w", executionID, err)
		}

		switch state(out) {
		case athenatypes.QueryExecutionStateSucceeded:
			return resultFileName(out, executionID)

		case athenatypes.QueryExecutionStateFailed, athenatypes.QueryExecutionStateCancelled:
			r.log.Warn("query reached failed state",
				zap.String("execution_id", executionID),
				zap.String("state", string(state(out))))
			return "", ErrQueryNotReady

		default:
			// Queued, running, or a malformed status payload: keep polling.
		}

		if err := r.clock.Sleep(ctx, r.pollInterval); err != nil {
			return "", err
		}
	}

	r.log.Warn("query poll budget exhausted",
		zap.String("execution_id", executionID),
		zap.Int("max_polls", r.maxPolls))
	return "", ErrQueryNotReady
}

// state extracts the execution state from a status response. Responses
// missing any layer of the structure report an empty state, which the poll
// loop treats as still running.
func state(out *athenasvc.GetQueryExecutionOutput) athenatypes.QueryExecutionState {
	if out == nil || out.QueryExecution == nil || out.QueryExecution.Status == nil {
		return ""
	}
	return out.QueryExecution.Status.State
}

// resultFileName extracts the trailing path segment of the execution's
// reported output location, e.g.
// "s3://bucket/prefix/abc-123.csv" -> "abc-123.csv".
func resultFileName(out *athenasvc.GetQueryExecutionOutput, executionID string) (string, error) {
	if out.QueryExecution == nil || out.QueryExecution.ResultConfiguration == nil ||
		out.QueryExecution.ResultConfiguration.OutputLocation == nil {
		return "", fmt.Errorf("execution %s succeeded but reported no output location", executionID)
	}

	location := aws.ToString(out.QueryExecution.ResultConfiguration.OutputLocation)
	idx := strings.LastIndex(location, "/")
	if idx < 0 || idx == len(location)-1 {
		return "", fmt.Errorf("execution %s reported malformed output location %q", executionID, location)
	}
	return location[idx+1:], nil
}
