package common

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// SessionName is the STS session name used for every role assumption this
// tool performs. It shows up in CloudTrail for the assumed sessions, so it
// must stay stable across releases.
const SessionName = "cloudtrail-sentry"

// CredentialProvider yields AWS SDK configurations for the accounts and
// roles the detector touches: the local default credential chain for
// home-account services (DynamoDB, SNS), and assumed roles for the member
// accounts and the Athena logging account.
//
// Implementations must use the AWS SDK v2 only. Never shell out to the
// aws CLI.
type CredentialProvider interface {
	// BaseConfig returns the SDK configuration from the default credential
	// chain, with the configured home region set.
	BaseConfig(ctx context.Context) (aws.Config, error)

	// AssumeRole returns an SDK configuration whose credentials come from
	// assuming roleName inside accountID, chained off the base credentials.
	// Credentials are fetched lazily and cached until they expire.
	AssumeRole(ctx context.Context, accountID, roleName string) (aws.Config, error)
}
