package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	athenasvc "github.com/aws/aws-sdk-go-v2/service/athena"
	dynamosvc "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	snssvc "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/config"
	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/providers/aws/common"
)

// DoctorResult is the structured output of cta doctor. It can be serialised
// to JSON via --format=json or rendered as a human-readable table (default).
type DoctorResult struct {
	Credentials struct {
		OK        bool   `json:"ok"`
		AccountID string `json:"account_id,omitempty"`
		Error     string `json:"error,omitempty"`
	} `json:"credentials"`

	Ledger struct {
		TableOK bool   `json:"table_ok"`
		Error   string `json:"error,omitempty"`
	} `json:"ledger"`

	Notifications struct {
		TopicOK bool   `json:"topic_ok"`
		Error   string `json:"error,omitempty"`
	} `json:"notifications"`

	QueryEngine struct {
		DatabaseOK bool   `json:"database_ok"`
		Error      string `json:"error,omitempty"`
	} `json:"query_engine"`

	OverallHealthy bool `json:"overall_healthy"`
}

// doctorClients bundles the narrow client interfaces the diagnostics need.
// Tests inject fakes; production wiring happens in newDoctorCmd.
type doctorClients struct {
	STS interface {
		GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
	}
	Dynamo interface {
		DescribeTable(ctx context.Context, params *dynamosvc.DescribeTableInput, optFns ...func(*dynamosvc.Options)) (*dynamosvc.DescribeTableOutput, error)
	}
	SNS interface {
		GetTopicAttributes(ctx context.Context, params *snssvc.GetTopicAttributesInput, optFns ...func(*snssvc.Options)) (*snssvc.GetTopicAttributesOutput, error)
	}
	Athena interface {
		GetDatabase(ctx context.Context, params *athenasvc.GetDatabaseInput, optFns ...func(*athenasvc.Options)) (*athenasvc.GetDatabaseOutput, error)
	}
}

func newDoctorCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "doctor",
		Short:         "Run environment diagnostics",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")

			cfg, _, err := loadRuntime(flags)
			if err != nil {
				return err
			}

			clients, err := buildDoctorClients(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			result, err := runDoctor(cmd.Context(), cfg, clients, cmd.OutOrStdout(), format)
			if err != nil {
				// Rendering failure — let Cobra/main handle it.
				return err
			}
			if !result.OverallHealthy {
				// Exit directly so no error text reaches main.go's
				// stderr path.
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().String("format", "table", `Output format: "table" or "json"`)
	return cmd
}

// buildDoctorClients constructs real SDK clients for the diagnostics: the
// base credential chain for STS, DynamoDB, and SNS, and the assumed Athena
// role for the query engine check.
func buildDoctorClients(ctx context.Context, cfg *config.Config) (doctorClients, error) {
	provider := common.NewSTSCredentialProvider(cfg.AWS.Region)

	baseCfg, err := provider.BaseConfig(ctx)
	if err != nil {
		return doctorClients{}, err
	}
	queryCfg, err := provider.AssumeRole(ctx, cfg.AWS.Athena.AccountID, cfg.AWS.Athena.RoleName)
	if err != nil {
		return doctorClients{}, fmt.Errorf("assume athena role: %w", err)
	}

	return doctorClients{
		STS:    sts.NewFromConfig(baseCfg),
		Dynamo: dynamosvc.NewFromConfig(baseCfg),
		SNS:    snssvc.NewFromConfig(baseCfg),
		Athena: athenasvc.NewFromConfig(queryCfg),
	}, nil
}

// runDoctor collects all diagnostic results, renders them to w in the
// requested format, and returns the result. The returned error covers only
// rendering failures; callers must inspect result.OverallHealthy.
func runDoctor(ctx context.Context, cfg *config.Config, clients doctorClients, w io.Writer, format string) (DoctorResult, error) {
	result := collectDoctorResult(ctx, cfg, clients)

	switch format {
	case "json":
		if err := json.NewEncoder(w).Encode(result); err != nil {
			return result, fmt.Errorf("encode doctor result: %w", err)
		}
	default:
		renderDoctorTable(result, w)
	}

	return result, nil
}

// collectDoctorResult runs all environment checks and populates a
// DoctorResult. It performs no rendering.
func collectDoctorResult(ctx context.Context, cfg *config.Config, clients doctorClients) DoctorResult {
	var result DoctorResult

	// Credentials: the default chain must resolve to a caller identity.
	identity, err := clients.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		result.Credentials.Error = err.Error()
	} else {
		result.Credentials.OK = true
		result.Credentials.AccountID = aws.ToString(identity.Account)
	}

	// Ledger: the DynamoDB table must exist.
	_, err = clients.Dynamo.DescribeTable(ctx, &dynamosvc.DescribeTableInput{
		TableName: aws.String(cfg.AWS.DynamoTableName),
	})
	if err != nil {
		result.Ledger.Error = err.Error()
	} else {
		result.Ledger.TableOK = true
	}

	// Notifications: the SNS topic must exist and be readable.
	_, err = clients.SNS.GetTopicAttributes(ctx, &snssvc.GetTopicAttributesInput{
		TopicArn: aws.String(cfg.AWS.SNSTopicArn),
	})
	if err != nil {
		result.Notifications.Error = err.Error()
	} else {
		result.Notifications.TopicOK = true
	}

	// Query engine: the Glue database must be visible from the assumed role.
	_, err = clients.Athena.GetDatabase(ctx, &athenasvc.GetDatabaseInput{
		CatalogName:  aws.String("AwsDataCatalog"),
		DatabaseName: aws.String(cfg.AWS.Athena.Database),
	})
	if err != nil {
		result.QueryEngine.Error = err.Error()
	} else {
		result.QueryEngine.DatabaseOK = true
	}

	result.OverallHealthy = result.Credentials.OK &&
		result.Ledger.TableOK &&
		result.Notifications.TopicOK &&
		result.QueryEngine.DatabaseOK

	return result
}

// renderDoctorTable writes the human-readable diagnostic output to w.
func renderDoctorTable(result DoctorResult, w io.Writer) {
	fmt.Fprintln(w, "Environment Diagnostics")

	fmt.Fprintln(w, "\nAWS:")
	if result.Credentials.OK {
		doctorPrint(w, "Credentials", "OK", "Account: "+result.Credentials.AccountID)
	} else {
		doctorPrint(w, "Credentials", "FAIL", result.Credentials.Error)
	}

	fmt.Fprintln(w, "\nLedger:")
	if result.Ledger.TableOK {
		doctorPrint(w, "DynamoDB table", "OK", "")
	} else {
		doctorPrint(w, "DynamoDB table", "FAIL", result.Ledger.Error)
	}

	fmt.Fprintln(w, "\nNotifications:")
	if result.Notifications.TopicOK {
		doctorPrint(w, "SNS topic", "OK", "")
	} else {
		doctorPrint(w, "SNS topic", "FAIL", result.Notifications.Error)
	}

	fmt.Fprintln(w, "\nQuery engine:")
	if result.QueryEngine.DatabaseOK {
		doctorPrint(w, "Athena database", "OK", "")
	} else {
		doctorPrint(w, "Athena database", "FAIL", result.QueryEngine.Error)
	}
}

// doctorPrint writes a single diagnostic check line to w.
// When detail is non-empty it is appended in parentheses.
func doctorPrint(w io.Writer, label, status, detail string) {
	if detail != "" {
		fmt.Fprintf(w, "  %s: %s (%s)\n", label, status, detail)
	} else {
		fmt.Fprintf(w, "  %s: %s\n", label, status)
	}
}
