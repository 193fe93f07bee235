package identity

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	iamsvc "github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/providers/aws/common"
)

type fakeSTS struct{}

func (fakeSTS) AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	return &sts.AssumeRoleOutput{}, nil
}

// fakeIAMClient serves canned role pages. The marker encodes the next page
// index, mirroring how the real paginator threads it through.
type fakeIAMClient struct {
	pages [][]iamtypes.Role
	err   error
}

func (f *fakeIAMClient) ListRoles(ctx context.Context, params *iamsvc.ListRolesInput, optFns ...func(*iamsvc.Options)) (*iamsvc.ListRolesOutput, error) {
	if f.err != nil {
		return nil, f.err
	}

	page := 0
	if params.Marker != nil {
		page, _ = strconv.Atoi(*params.Marker)
	}

	out := &iamsvc.ListRolesOutput{Roles: f.pages[page]}
	if page+1 < len(f.pages) {
		out.IsTruncated = true
		out.Marker = aws.String(strconv.Itoa(page + 1))
	}
	return out, nil
}

func newTestEnumerator(t *testing.T, client iamsvc.ListRolesAPIClient) *Enumerator {
	t.Helper()
	provider := common.NewSTSCredentialProviderWithFactory("us-east-1",
		func(cfg aws.Config) stscreds.AssumeRoleAPIClient { return fakeSTS{} },
	)
	return NewEnumeratorWithFactory(provider, "SecurityAudit",
		func(cfg aws.Config) iamsvc.ListRolesAPIClient { return client },
		zap.NewNop(),
	)
}

func iamRole(account, name, id string, created time.Time) iamtypes.Role {
	return iamtypes.Role{
		Arn:        aws.String("arn:aws:iam::" + account + ":role/" + name),
		RoleName:   aws.String(name),
		RoleId:     aws.String(id),
		CreateDate: aws.Time(created),
	}
}

func TestListRoles_Paginates(t *testing.T) {
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	client := &fakeIAMClient{pages: [][]iamtypes.Role{
		{iamRole("111111111111", "R1", "AROA1", created)},
		{iamRole("111111111111", "R2", "AROA2", created)},
	}}

	roles, err := newTestEnumerator(t, client).ListRoles(context.Background(), "111111111111")
	if err != nil {
		t.Fatalf("ListRoles returned error: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("got %d roles; want 2", len(roles))
	}

	r1, ok := roles["arn:aws:iam::111111111111:role/R1"]
	if !ok {
		t.Fatal("R1 missing from result map")
	}
	if r1.Name != "R1" || r1.RoleID != "AROA1" || r1.AccountID != "111111111111" {
		t.Errorf("R1 populated incorrectly: %+v", r1)
	}
	if !r1.CreateDate.Equal(created) {
		t.Errorf("R1 CreateDate = %v; want %v", r1.CreateDate, created)
	}
}

func TestListRoles_SkipsIncompleteRoles(t *testing.T) {
	created := time.Now()
	client := &fakeIAMClient{pages: [][]iamtypes.Role{{
		iamRole("111111111111", "Complete", "AROA1", created),
		{Arn: aws.String("arn:aws:iam::111111111111:role/NoID"), RoleName: aws.String("NoID"), CreateDate: aws.Time(created)},
	}}}

	roles, err := newTestEnumerator(t, client).ListRoles(context.Background(), "111111111111")
	if err != nil {
		t.Fatalf("ListRoles returned error: %v", err)
	}
	if len(roles) != 1 {
		t.Errorf("got %d roles; want 1 (incomplete role skipped)", len(roles))
	}
}

func TestListRoles_APIErrorPropagates(t *testing.T) {
	client := &fakeIAMClient{err: errors.New("throttled")}
	if _, err := newTestEnumerator(t, client).ListRoles(context.Background(), "111111111111"); err == nil {
		t.Fatal("ListRoles succeeded; want error")
	}
}
