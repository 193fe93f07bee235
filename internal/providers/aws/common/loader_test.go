package common

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// fakeSTS satisfies stscreds.AssumeRoleAPIClient without touching the
// network. AssumeRole is never invoked in these tests because credential
// resolution is lazy.
type fakeSTS struct{}

func (fakeSTS) AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	return &sts.AssumeRoleOutput{}, nil
}

func newTestProvider(t *testing.T) *STSCredentialProvider {
	t.Helper()
	return NewSTSCredentialProviderWithFactory("eu-west-1",
		func(cfg aws.Config) stscreds.AssumeRoleAPIClient { return fakeSTS{} },
	)
}

func TestBaseConfig_SetsRegion(t *testing.T) {
	p := newTestProvider(t)

	cfg, err := p.BaseConfig(context.Background())
	if err != nil {
		t.Fatalf("BaseConfig returned error: %v", err)
	}
	if cfg.Region != "eu-west-1" {
		t.Errorf("Region = %q; want eu-west-1", cfg.Region)
	}
}

func TestBaseConfig_CachedAcrossCalls(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	first, err := p.BaseConfig(ctx)
	if err != nil {
		t.Fatalf("first BaseConfig: %v", err)
	}
	second, err := p.BaseConfig(ctx)
	if err != nil {
		t.Fatalf("second BaseConfig: %v", err)
	}
	if first.Region != second.Region {
		t.Errorf("regions differ across calls: %q vs %q", first.Region, second.Region)
	}
}

func TestAssumeRole_ReturnsChainedConfig(t *testing.T) {
	p := newTestProvider(t)

	cfg, err := p.AssumeRole(context.Background(), "111111111111", "SecurityAudit")
	if err != nil {
		t.Fatalf("AssumeRole returned error: %v", err)
	}
	if cfg.Region != "eu-west-1" {
		t.Errorf("assumed config region = %q; want eu-west-1", cfg.Region)
	}
	if cfg.Credentials == nil {
		t.Fatal("assumed config has nil Credentials")
	}

	// The base provider must not be mutated by the assume-role copy.
	base, err := p.BaseConfig(context.Background())
	if err != nil {
		t.Fatalf("BaseConfig after AssumeRole: %v", err)
	}
	if &base == &cfg {
		t.Error("AssumeRole returned the base config instead of a copy")
	}
}
