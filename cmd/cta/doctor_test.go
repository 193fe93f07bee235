package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	athenasvc "github.com/aws/aws-sdk-go-v2/service/athena"
	dynamosvc "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	snssvc "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/config"
)

type fakeDoctorSTS struct{ err error }

func (f fakeDoctorSTS) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sts.GetCallerIdentityOutput{Account: aws.String("888888888888")}, nil
}

type fakeDoctorDynamo struct{ err error }

func (f fakeDoctorDynamo) DescribeTable(ctx context.Context, params *dynamosvc.DescribeTableInput, optFns ...func(*dynamosvc.Options)) (*dynamosvc.DescribeTableOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dynamosvc.DescribeTableOutput{}, nil
}

type fakeDoctorSNS struct{ err error }

func (f fakeDoctorSNS) GetTopicAttributes(ctx context.Context, params *snssvc.GetTopicAttributesInput, optFns ...func(*snssvc.Options)) (*snssvc.GetTopicAttributesOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &snssvc.GetTopicAttributesOutput{}, nil
}

type fakeDoctorAthena struct{ err error }

func (f fakeDoctorAthena) GetDatabase(ctx context.Context, params *athenasvc.GetDatabaseInput, optFns ...func(*athenasvc.Options)) (*athenasvc.GetDatabaseOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &athenasvc.GetDatabaseOutput{}, nil
}

func healthyClients() doctorClients {
	return doctorClients{
		STS:    fakeDoctorSTS{},
		Dynamo: fakeDoctorDynamo{},
		SNS:    fakeDoctorSNS{},
		Athena: fakeDoctorAthena{},
	}
}

func doctorConfig() *config.Config {
	cfg := &config.Config{}
	cfg.AWS.Region = "us-east-1"
	cfg.AWS.DynamoTableName = "sentry_ledger"
	cfg.AWS.SNSTopicArn = "arn:aws:sns:us-east-1:888888888888:alerts"
	cfg.AWS.Athena.Database = "cloudtrail"
	return cfg
}

func TestRunDoctor_AllHealthy(t *testing.T) {
	var buf bytes.Buffer
	result, err := runDoctor(context.Background(), doctorConfig(), healthyClients(), &buf, "table")
	if err != nil {
		t.Fatalf("runDoctor returned error: %v", err)
	}

	if !result.OverallHealthy {
		t.Errorf("OverallHealthy = false; want true: %+v", result)
	}
	if result.Credentials.AccountID != "888888888888" {
		t.Errorf("AccountID = %q; want 888888888888", result.Credentials.AccountID)
	}

	out := buf.String()
	for _, want := range []string{"Credentials: OK", "DynamoDB table: OK", "SNS topic: OK", "Athena database: OK"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestRunDoctor_FailedChecksAreIndependent(t *testing.T) {
	clients := healthyClients()
	clients.Dynamo = fakeDoctorDynamo{err: errors.New("ResourceNotFoundException")}

	var buf bytes.Buffer
	result, err := runDoctor(context.Background(), doctorConfig(), clients, &buf, "table")
	if err != nil {
		t.Fatalf("runDoctor returned error: %v", err)
	}

	if result.OverallHealthy {
		t.Error("OverallHealthy = true with a missing ledger table")
	}
	if !result.Credentials.OK || !result.Notifications.TopicOK || !result.QueryEngine.DatabaseOK {
		t.Errorf("other checks degraded by ledger failure: %+v", result)
	}
	if !strings.Contains(buf.String(), "DynamoDB table: FAIL") {
		t.Errorf("table output missing failure line:\n%s", buf.String())
	}
}

func TestRunDoctor_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	if _, err := runDoctor(context.Background(), doctorConfig(), healthyClients(), &buf, "json"); err != nil {
		t.Fatalf("runDoctor returned error: %v", err)
	}

	var decoded DoctorResult
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("doctor JSON output does not decode: %v\n%s", err, buf.String())
	}
	if !decoded.OverallHealthy {
		t.Errorf("decoded OverallHealthy = false; want true")
	}
}
