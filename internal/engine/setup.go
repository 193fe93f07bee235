package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/athena"
	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/config"
)

// SetupSummary reports the outcome of one table-setup run.
type SetupSummary struct {
	Accounts      int `json:"accounts"`
	TablesCreated int `json:"tables_created"`
	Failed        int `json:"failed"`
}

// TableSetup creates the per-account external CloudTrail tables the
// detection queries read from.
type TableSetup struct {
	cfg      *config.Config
	accounts AccountEnumerator
	runner   QueryRunner
	log      *zap.Logger
}

// NewTableSetup wires a TableSetup.
func NewTableSetup(cfg *config.Config, accounts AccountEnumerator, runner QueryRunner, log *zap.Logger) *TableSetup {
	return &TableSetup{cfg: cfg, accounts: accounts, runner: runner, log: log}
}

// Run creates the CloudTrail table for every account in accountIDs, or for
// every organization account when the list is empty. The DDL is idempotent,
// so re-running over existing tables is safe. Per-account failures are
// logged and counted; the run continues.
func (s *TableSetup) Run(ctx context.Context, accountIDs []string) (*SetupSummary, error) {
	if len(accountIDs) == 0 {
		enumerated, err := s.accounts.ListAccounts(ctx)
		if err != nil {
			return nil, fmt.Errorf("enumerate accounts: %w", err)
		}
		accountIDs = enumerated
		s.log.Info("received accounts from organizations", zap.Int("count", len(accountIDs)))
	} else {
		s.log.Info("received accounts from command line", zap.Int("count", len(accountIDs)))
	}

	summary := &SetupSummary{Accounts: len(accountIDs)}

	for _, accountID := range accountIDs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		_, err := s.runner.Run(ctx, athena.Query{
			SQL:          athena.BuildCreateTableQuery(accountID, s.cfg.AWS.Athena.CloudTrailBucket),
			Database:     s.cfg.AWS.Athena.Database,
			OutputBucket: s.cfg.AWS.Athena.Bucket,
			OutputPrefix: s.cfg.AWS.Athena.Prefix,
		})
		if err != nil {
			s.log.Error("table setup failed", zap.String("account", accountID), zap.Error(err))
			summary.Failed++
			continue
		}

		s.log.Info("created CloudTrail table", zap.String("account", accountID))
		summary.TablesCreated++
	}

	return summary, nil
}
