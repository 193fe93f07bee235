// Package engine drives the detection pipeline: for every account and
// every role, query recent activity, reconcile it against the ledger, and
// dispatch alerts for novel actions.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/athena"
	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/config"
	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/ledger"
	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/models"
	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/notify"
	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/policy"
)

// AccountEnumerator lists the account IDs to process, in order.
type AccountEnumerator interface {
	ListAccounts(ctx context.Context) ([]string, error)
}

// RoleEnumerator lists the IAM roles of one account, keyed by ARN.
type RoleEnumerator interface {
	ListRoles(ctx context.Context, accountID string) (map[string]models.Role, error)
}

// QueryRunner submits one analytical query and waits for its result
// object's file name.
type QueryRunner interface {
	Run(ctx context.Context, q athena.Query) (string, error)
}

// ResultFetcher retrieves a result object as raw text lines.
type ResultFetcher interface {
	FetchLines(ctx context.Context, bucket, key string) ([]string, error)
}

// ActionReconciler applies one observation to the ledger and classifies it.
type ActionReconciler interface {
	Reconcile(ctx context.Context, role models.Role, action models.Action, expiresAt int64) (ledger.Outcome, error)
}

// RunSummary reports what one detection run processed. Units skipped due
// to query or fetch failures are absent from this run's output; the next
// scheduled run re-queries the same trailing window.
type RunSummary struct {
	Accounts       int `json:"accounts"`
	RolesProcessed int `json:"roles_processed"`
	UnitsSkipped   int `json:"units_skipped"`
	NovelActions   int `json:"novel_actions"`
	AlertsSent     int `json:"alerts_sent"`
}

// Detector is the orchestrator for one detection run. All collaborators
// are injected; Detector itself holds no AWS client.
type Detector struct {
	cfg        *config.Config
	accounts   AccountEnumerator
	roles      RoleEnumerator
	runner     QueryRunner
	fetcher    ResultFetcher
	reconciler ActionReconciler
	policy     policy.AlertPolicy
	notifier   notify.Notifier
	log        *zap.Logger
	now        func() time.Time
}

// NewDetector wires a Detector. The alert policy's clock defaults to the
// detector's clock.
func NewDetector(
	cfg *config.Config,
	accounts AccountEnumerator,
	roles RoleEnumerator,
	runner QueryRunner,
	fetcher ResultFetcher,
	reconciler ActionReconciler,
	notifier notify.Notifier,
	log *zap.Logger,
) *Detector {
	d := &Detector{
		cfg:        cfg,
		accounts:   accounts,
		roles:      roles,
		runner:     runner,
		fetcher:    fetcher,
		reconciler: reconciler,
		notifier:   notifier,
		log:        log,
		now:        time.Now,
	}
	d.policy = policy.AlertPolicy{
		DayThreshold: cfg.RoleAction.DayThreshold,
		Now:          func() time.Time { return d.now() },
	}
	return d
}

// WithClock pins the detector's clock. Test hook.
func (d *Detector) WithClock(now func() time.Time) *Detector {
	d.now = now
	d.policy.Now = now
	return d
}

// Run executes one detection cycle over accountIDs, or over every account
// in the organization when accountIDs is empty. Per-unit failures are
// logged and skipped; only account enumeration failure and context
// cancellation abort the run.
func (d *Detector) Run(ctx context.Context, accountIDs []string) (*RunSummary, error) {
	log := d.log.With(zap.String("run_id", uuid.NewString()))

	if len(accountIDs) == 0 {
		enumerated, err := d.accounts.ListAccounts(ctx)
		if err != nil {
			return nil, fmt.Errorf("enumerate accounts: %w", err)
		}
		accountIDs = enumerated
		log.Info("received accounts from organizations", zap.Int("count", len(accountIDs)))
	} else {
		log.Info("received accounts from command line", zap.Int("count", len(accountIDs)))
	}

	summary := &RunSummary{Accounts: len(accountIDs)}

	for _, accountID := range accountIDs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		roles, err := d.roles.ListRoles(ctx, accountID)
		if err != nil {
			log.Error("skipping account: role enumeration failed",
				zap.String("account", accountID), zap.Error(err))
			summary.UnitsSkipped++
			continue
		}

		// Map order is randomized; process roles in a stable order so
		// repeated runs behave identically.
		arns := make([]string, 0, len(roles))
		for arn := range roles {
			arns = append(arns, arn)
		}
		sort.Strings(arns)

		for _, arn := range arns {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			d.processRole(ctx, log, accountID, roles[arn], summary)
		}
	}

	log.Info("detection run complete",
		zap.Int("accounts", summary.Accounts),
		zap.Int("roles_processed", summary.RolesProcessed),
		zap.Int("units_skipped", summary.UnitsSkipped),
		zap.Int("novel_actions", summary.NovelActions),
		zap.Int("alerts_sent", summary.AlertsSent))
	return summary, nil
}

// processRole runs the query → fetch → reconcile → evaluate → dispatch
// sequence for one role. Failures skip the unit and never propagate.
func (d *Detector) processRole(ctx context.Context, log *zap.Logger, accountID string, role models.Role, summary *RunSummary) {
	log = log.With(zap.String("account", accountID), zap.String("role", role.Name))

	// One expiry instant per role cycle: every action observed in this
	// cycle shares it.
	expiresAt := d.now().AddDate(0, 0, d.cfg.RoleAction.DayThreshold).Unix()

	log.Info("running activity query")
	resultFile, err := d.runner.Run(ctx, athena.Query{
		SQL:          athena.BuildAnomalyQuery(accountID, role.RoleID),
		Database:     d.cfg.AWS.Athena.Database,
		OutputBucket: d.cfg.AWS.Athena.Bucket,
		OutputPrefix: d.cfg.AWS.Athena.Prefix,
	})
	if err != nil {
		if errors.Is(err, athena.ErrQueryNotReady) {
			log.Error("query execution failed or timed out")
		} else {
			log.Error("query submission failed", zap.Error(err))
		}
		summary.UnitsSkipped++
		return
	}

	key := d.cfg.AWS.Athena.Prefix + "/" + resultFile
	lines, err := d.fetcher.FetchLines(ctx, d.cfg.AWS.Athena.Bucket, key)
	if err != nil {
		log.Error("result fetch failed", zap.Error(err))
		summary.UnitsSkipped++
		return
	}

	novel, err := d.reconcileLines(ctx, role, lines, expiresAt)
	if err != nil {
		log.Error("ledger reconciliation failed", zap.Error(err))
		summary.UnitsSkipped++
		return
	}

	summary.RolesProcessed++
	summary.NovelActions += len(novel)

	alert := d.policy.Evaluate(role, novel)
	if alert == nil {
		if len(novel) > 0 {
			log.Debug("alert suppressed by policy", zap.Int("novel_actions", len(novel)))
		}
		return
	}

	log.Info("sending alert for new actions", zap.String("actions", alert.Actions))
	if err := d.notifier.Publish(ctx, d.cfg.AWS.SNSTopicArn, alert); err != nil {
		log.Error("alert publish failed", zap.Error(err))
		return
	}
	summary.AlertsSent++
}

// reconcileLines parses each data row and applies it to the ledger,
// returning the composite keys classified as novel, in row order. The
// first line is the result header and is discarded; blank and malformed
// rows are skipped.
func (d *Detector) reconcileLines(ctx context.Context, role models.Role, lines []string, expiresAt int64) ([]string, error) {
	if len(lines) <= 1 {
		return nil, nil
	}

	var novel []string
	for _, line := range lines[1:] {
		action, ok := models.ParseAction(line)
		if !ok {
			continue
		}

		outcome, err := d.reconciler.Reconcile(ctx, role, action, expiresAt)
		if err != nil {
			return nil, err
		}
		if outcome == ledger.Novel {
			novel = append(novel, action.Key())
		}
	}
	return novel, nil
}
