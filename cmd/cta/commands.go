package main

import (
	"context"
	"fmt"

	athenasvc "github.com/aws/aws-sdk-go-v2/service/athena"
	dynamosvc "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	snssvc "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/athena"
	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/config"
	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/engine"
	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/ledger"
	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/notify"
	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/providers/aws/common"
	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/providers/aws/identity"
	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/providers/aws/orgs"
	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/results"
	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/version"
)

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "cta",
		Short:         "CloudTrail Sentry — detect never-before-seen IAM role activity",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to the YAML configuration file")
	root.PersistentFlags().BoolVar(&flags.verbose, "verbose", false, "Enable debug logging")

	root.AddCommand(newDetectCmd(flags))
	root.AddCommand(newSetupCmd(flags))
	root.AddCommand(newDoctorCmd(flags))
	root.AddCommand(newVersionCmd())
	return root
}

func newDetectCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detection commands",
	}
	cmd.AddCommand(newDetectAnomalyCmd(flags))
	return cmd
}

func newDetectAnomalyCmd(flags *rootFlags) *cobra.Command {
	var accounts []string

	cmd := &cobra.Command{
		Use:   "anomaly",
		Short: "Detect anomalous IAM role activity in CloudTrail",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadRuntime(flags)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck // stderr sync failure is harmless

			detector, err := buildDetector(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}

			summary, err := detector.Run(cmd.Context(), accounts)
			if err != nil {
				return fmt.Errorf("detection run failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Accounts: %d  Roles: %d  Skipped: %d  Novel actions: %d  Alerts: %d\n",
				summary.Accounts, summary.RolesProcessed, summary.UnitsSkipped,
				summary.NovelActions, summary.AlertsSent)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&accounts, "accounts", nil, "Comma separated list of AWS account IDs (default: all organization accounts)")
	return cmd
}

func newSetupCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "One-time setup commands",
	}
	cmd.AddCommand(newSetupAthenaCmd(flags))
	return cmd
}

func newSetupAthenaCmd(flags *rootFlags) *cobra.Command {
	var accounts []string

	cmd := &cobra.Command{
		Use:   "athena",
		Short: "Create the per-account CloudTrail Athena tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadRuntime(flags)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			setup, err := buildTableSetup(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}

			summary, err := setup.Run(cmd.Context(), accounts)
			if err != nil {
				return fmt.Errorf("athena setup failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Accounts: %d  Tables created: %d  Failed: %d\n",
				summary.Accounts, summary.TablesCreated, summary.Failed)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&accounts, "accounts", nil, "Comma separated list of AWS account IDs (default: all organization accounts)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.Info())
		},
	}
}

// loadRuntime loads and validates the config file and builds the logger.
// Configuration errors are fatal here, before any AWS call is made.
func loadRuntime(flags *rootFlags) (*config.Config, *zap.Logger, error) {
	if flags.configPath == "" {
		return nil, nil, fmt.Errorf("--config is required")
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, nil, err
	}

	log, err := newLogger(flags.verbose)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, log, nil
}

// newLogger builds the console logger written to stderr, leaving stdout
// for command output.
func newLogger(verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = "console"
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zcfg.Build()
}

// buildDetector constructs the full detection pipeline from the config:
// assumed-role clients for Athena and S3 in the logging account, home
// account clients for DynamoDB and SNS, and enumerators for Organizations
// and per-account IAM.
func buildDetector(ctx context.Context, cfg *config.Config, log *zap.Logger) (*engine.Detector, error) {
	provider := common.NewSTSCredentialProvider(cfg.AWS.Region)

	baseCfg, err := provider.BaseConfig(ctx)
	if err != nil {
		return nil, err
	}
	queryCfg, err := provider.AssumeRole(ctx, cfg.AWS.Athena.AccountID, cfg.AWS.Athena.RoleName)
	if err != nil {
		return nil, fmt.Errorf("assume athena role: %w", err)
	}

	store := ledger.NewDynamoStore(dynamosvc.NewFromConfig(baseCfg), cfg.AWS.DynamoTableName)

	return engine.NewDetector(
		cfg,
		orgs.NewEnumerator(provider, cfg.AWS.Organizations, log),
		identity.NewEnumerator(provider, cfg.AWS.IAM.RoleName, log),
		athena.NewRunner(athenasvc.NewFromConfig(queryCfg), log),
		results.NewFetcher(s3svc.NewFromConfig(queryCfg), log),
		ledger.NewReconciler(store, cfg.NotifyIgnoreSet(), log),
		notify.NewSNSNotifier(snssvc.NewFromConfig(baseCfg), log),
		log,
	), nil
}

// buildTableSetup constructs the table-setup pipeline: only the account
// enumerator and the query runner are needed.
func buildTableSetup(ctx context.Context, cfg *config.Config, log *zap.Logger) (*engine.TableSetup, error) {
	provider := common.NewSTSCredentialProvider(cfg.AWS.Region)

	queryCfg, err := provider.AssumeRole(ctx, cfg.AWS.Athena.AccountID, cfg.AWS.Athena.RoleName)
	if err != nil {
		return nil, fmt.Errorf("assume athena role: %w", err)
	}

	return engine.NewTableSetup(
		cfg,
		orgs.NewEnumerator(provider, cfg.AWS.Organizations, log),
		athena.NewRunner(athenasvc.NewFromConfig(queryCfg), log),
		log,
	), nil
}
