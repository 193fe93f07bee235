// Package orgs enumerates the member accounts of an AWS Organization.
package orgs

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	orgsvc "github.com/aws/aws-sdk-go-v2/service/organizations"
	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/config"
	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/providers/aws/common"
)

// ClientFactory creates the Organizations client used for account listing.
// Injection point: tests replace this with a function returning a fake.
type ClientFactory func(cfg aws.Config) orgsvc.ListAccountsAPIClient

// Enumerator lists member account IDs through an assumed role in the
// organization management account.
type Enumerator struct {
	provider common.CredentialProvider
	target   config.AssumeRoleTarget
	factory  ClientFactory
	log      *zap.Logger
}

// NewEnumerator constructs an Enumerator backed by the real Organizations
// SDK client.
func NewEnumerator(provider common.CredentialProvider, target config.AssumeRoleTarget, log *zap.Logger) *Enumerator {
	return &Enumerator{
		provider: provider,
		target:   target,
		factory: func(cfg aws.Config) orgsvc.ListAccountsAPIClient {
			return orgsvc.NewFromConfig(cfg)
		},
		log: log,
	}
}

// NewEnumeratorWithFactory constructs an Enumerator that uses f to build
// its client. Pass a fake factory in tests.
func NewEnumeratorWithFactory(provider common.CredentialProvider, target config.AssumeRoleTarget, f ClientFactory, log *zap.Logger) *Enumerator {
	return &Enumerator{provider: provider, target: target, factory: f, log: log}
}

// ListAccounts returns the IDs of every account in the organization, in the
// order the API reports them. The ListAccounts paginator handles
// organizations with more than one page of accounts.
func (e *Enumerator) ListAccounts(ctx context.Context) ([]string, error) {
	if e.target.AccountID == "" || e.target.RoleName == "" {
		return nil, fmt.Errorf("organizations account enumeration not configured; pass --accounts or set aws.organizations in the config")
	}

	cfg, err := e.provider.AssumeRole(ctx, e.target.AccountID, e.target.RoleName)
	if err != nil {
		return nil, fmt.Errorf("assume organizations role: %w", err)
	}

	e.log.Debug("listing organization accounts",
		zap.String("management_account", e.target.AccountID))

	paginator := orgsvc.NewListAccountsPaginator(e.factory(cfg), &orgsvc.ListAccountsInput{})

	var accounts []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list organization accounts: %w", err)
		}
		for _, acct := range page.Accounts {
			if acct.Id != nil {
				accounts = append(accounts, aws.ToString(acct.Id))
			}
		}
	}
	return accounts, nil
}
