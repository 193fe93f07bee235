package common

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// STSClientFactory builds the STS client an assume-role provider chains
// through. Swap this in tests to avoid real STS calls.
type STSClientFactory func(cfg aws.Config) stscreds.AssumeRoleAPIClient

// STSCredentialProvider is the production implementation of
// CredentialProvider. The base configuration is loaded once from the
// standard credential chain (environment, shared config, IMDS) and every
// assumed role chains off it.
type STSCredentialProvider struct {
	region     string
	stsFactory STSClientFactory

	loadOnce sync.Once
	base     aws.Config
	loadErr  error
}

// NewSTSCredentialProvider returns a provider backed by the real AWS SDK,
// homed in region.
func NewSTSCredentialProvider(region string) *STSCredentialProvider {
	return &STSCredentialProvider{
		region: region,
		stsFactory: func(cfg aws.Config) stscreds.AssumeRoleAPIClient {
			return sts.NewFromConfig(cfg)
		},
	}
}

// NewSTSCredentialProviderWithFactory returns a provider that uses f to
// build STS clients. Pass a fake factory in tests.
func NewSTSCredentialProviderWithFactory(region string, f STSClientFactory) *STSCredentialProvider {
	return &STSCredentialProvider{region: region, stsFactory: f}
}

// BaseConfig implements CredentialProvider. The default chain is resolved
// at most once per provider; later calls return the cached configuration.
func (p *STSCredentialProvider) BaseConfig(ctx context.Context) (aws.Config, error) {
	p.loadOnce.Do(func() {
		p.base, p.loadErr = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(p.region),
		)
	})
	if p.loadErr != nil {
		return aws.Config{}, fmt.Errorf("load default AWS config: %w", p.loadErr)
	}
	return p.base, nil
}

// AssumeRole implements CredentialProvider. The returned configuration
// carries a cached assume-role credential source for
// arn:aws:iam::<accountID>:role/<roleName>; no STS call happens until a
// service client first signs a request with it.
func (p *STSCredentialProvider) AssumeRole(ctx context.Context, accountID, roleName string) (aws.Config, error) {
	base, err := p.BaseConfig(ctx)
	if err != nil {
		return aws.Config{}, err
	}

	roleARN := fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, roleName)
	provider := stscreds.NewAssumeRoleProvider(p.stsFactory(base), roleARN,
		func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = SessionName
		},
	)

	cfg := base.Copy()
	cfg.Credentials = aws.NewCredentialsCache(provider)
	return cfg, nil
}
