// Package identity enumerates IAM roles inside member accounts.
package identity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	iamsvc "github.com/aws/aws-sdk-go-v2/service/iam"
	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/models"
	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/providers/aws/common"
)

// ClientFactory creates the IAM client used for role listing.
// Injection point: tests replace this with a function returning a fake.
type ClientFactory func(cfg aws.Config) iamsvc.ListRolesAPIClient

// Enumerator lists the IAM roles of a member account through an assumed
// audit role in that account.
type Enumerator struct {
	provider common.CredentialProvider
	roleName string
	factory  ClientFactory
	log      *zap.Logger
}

// NewEnumerator constructs an Enumerator backed by the real IAM SDK client.
// roleName is the audit role assumed inside each member account.
func NewEnumerator(provider common.CredentialProvider, roleName string, log *zap.Logger) *Enumerator {
	return &Enumerator{
		provider: provider,
		roleName: roleName,
		factory: func(cfg aws.Config) iamsvc.ListRolesAPIClient {
			return iamsvc.NewFromConfig(cfg)
		},
		log: log,
	}
}

// NewEnumeratorWithFactory constructs an Enumerator that uses f to build
// its client. Pass a fake factory in tests.
func NewEnumeratorWithFactory(provider common.CredentialProvider, roleName string, f ClientFactory, log *zap.Logger) *Enumerator {
	return &Enumerator{provider: provider, roleName: roleName, factory: f, log: log}
}

// ListRoles returns every IAM role in accountID keyed by role ARN. The
// ListRoles paginator handles accounts with many roles transparently.
// Roles missing any identifying attribute are skipped rather than returned
// half-populated.
func (e *Enumerator) ListRoles(ctx context.Context, accountID string) (map[string]models.Role, error) {
	cfg, err := e.provider.AssumeRole(ctx, accountID, e.roleName)
	if err != nil {
		return nil, fmt.Errorf("assume audit role in %s: %w", accountID, err)
	}

	e.log.Info("listing IAM roles", zap.String("account", accountID))

	paginator := iamsvc.NewListRolesPaginator(e.factory(cfg), &iamsvc.ListRolesInput{
		PathPrefix: aws.String("/"),
		MaxItems:   aws.Int32(100),
	})

	roles := make(map[string]models.Role)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list IAM roles in %s: %w", accountID, err)
		}
		for _, r := range page.Roles {
			if r.Arn == nil || r.RoleName == nil || r.RoleId == nil || r.CreateDate == nil {
				continue
			}
			arn := aws.ToString(r.Arn)
			roles[arn] = models.Role{
				Arn:        arn,
				Name:       aws.ToString(r.RoleName),
				RoleID:     aws.ToString(r.RoleId),
				AccountID:  accountID,
				CreateDate: *r.CreateDate,
			}
		}
	}
	return roles, nil
}
