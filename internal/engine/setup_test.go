package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/athena"
)

func TestTableSetup_CreatesTablePerAccount(t *testing.T) {
	cfg := testConfig()
	cfg.AWS.Athena.CloudTrailBucket = "org-cloudtrail"

	runner := &fakeRunner{responses: []runnerResponse{{file: "ddl.csv"}}}
	setup := NewTableSetup(cfg, &fakeAccounts{}, runner, zap.NewNop())

	summary, err := setup.Run(context.Background(), []string{"111111111111", "222222222222"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if summary.TablesCreated != 2 || summary.Failed != 0 {
		t.Errorf("summary = %+v; want 2 created, 0 failed", summary)
	}
	if len(runner.queries) != 2 {
		t.Fatalf("runner saw %d queries; want 2", len(runner.queries))
	}

	// Each account gets its own table DDL, not a copy of the first.
	if !strings.Contains(runner.queries[0].SQL, "cloudtrail_111111111111") {
		t.Error("first DDL does not target account 111111111111")
	}
	if !strings.Contains(runner.queries[1].SQL, "cloudtrail_222222222222") {
		t.Error("second DDL does not target account 222222222222")
	}
	for _, q := range runner.queries {
		if !strings.Contains(q.SQL, "s3://org-cloudtrail/AWSLogs/") {
			t.Errorf("DDL missing CloudTrail bucket location:\n%s", q.SQL)
		}
	}
}

func TestTableSetup_FailureCountedAndRunContinues(t *testing.T) {
	cfg := testConfig()
	cfg.AWS.Athena.CloudTrailBucket = "org-cloudtrail"

	runner := &fakeRunner{responses: []runnerResponse{
		{err: athena.ErrQueryNotReady},
		{file: "ddl.csv"},
	}}
	setup := NewTableSetup(cfg, &fakeAccounts{}, runner, zap.NewNop())

	summary, err := setup.Run(context.Background(), []string{"111111111111", "222222222222"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.TablesCreated != 1 || summary.Failed != 1 {
		t.Errorf("summary = %+v; want 1 created, 1 failed", summary)
	}
}

func TestTableSetup_EnumeratesWhenNoAccountsGiven(t *testing.T) {
	cfg := testConfig()
	accounts := &fakeAccounts{ids: []string{"333333333333"}}
	runner := &fakeRunner{responses: []runnerResponse{{file: "ddl.csv"}}}

	summary, err := NewTableSetup(cfg, accounts, runner, zap.NewNop()).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if accounts.calls != 1 {
		t.Errorf("enumerator calls = %d; want 1", accounts.calls)
	}
	if summary.Accounts != 1 || summary.TablesCreated != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestTableSetup_EnumerationFailureIsFatal(t *testing.T) {
	accounts := &fakeAccounts{err: errors.New("AccessDenied")}
	setup := NewTableSetup(testConfig(), accounts, &fakeRunner{responses: []runnerResponse{{}}}, zap.NewNop())

	if _, err := setup.Run(context.Background(), nil); err == nil {
		t.Fatal("Run succeeded; want error")
	}
}
