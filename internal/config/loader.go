package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads, parses, defaults, and validates the configuration file at
// path. Any validation failure is fatal: the caller must not start a run
// with a partially valid config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	cfg.applyDefaults()

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config %q: %w", path, joinErrors(errs))
	}
	return &cfg, nil
}

// Validate checks cfg for semantic correctness and returns all problems
// found. An empty slice means the config is valid.
//
// All errors are collected before returning; Validate never stops at the
// first error.
func (c *Config) Validate() []error {
	var errs []error

	if c.AWS.IAM.RoleName == "" {
		errs = append(errs, fmt.Errorf("aws.iam.roleName: required"))
	}
	if c.AWS.Athena.AccountID == "" {
		errs = append(errs, fmt.Errorf("aws.athena.accountId: required"))
	}
	if c.AWS.Athena.RoleName == "" {
		errs = append(errs, fmt.Errorf("aws.athena.roleName: required"))
	}
	if c.AWS.Athena.Bucket == "" {
		errs = append(errs, fmt.Errorf("aws.athena.bucket: required"))
	}
	if c.AWS.SNSTopicArn == "" {
		errs = append(errs, fmt.Errorf("aws.snsTopicArn: required"))
	}
	if c.RoleAction.DayThreshold <= 0 {
		errs = append(errs, fmt.Errorf("roleAction.dayThreshold: must be a positive number of days, got %d", c.RoleAction.DayThreshold))
	}

	// Organizations is only needed when accounts are not supplied explicitly,
	// so a partial block is the only misconfiguration worth rejecting here.
	org := c.AWS.Organizations
	if (org.AccountID == "") != (org.RoleName == "") {
		errs = append(errs, fmt.Errorf("aws.organizations: accountId and roleName must be set together"))
	}

	return errs
}

// NotifyIgnoreSet returns the ignored-action list as a set keyed by
// composite action key for O(1) membership tests.
func (c *Config) NotifyIgnoreSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.RoleAction.IgnoredActionsNotify))
	for _, key := range c.RoleAction.IgnoredActionsNotify {
		set[key] = struct{}{}
	}
	return set
}

// joinErrors flattens a validation error list into one error value,
// one problem per line.
func joinErrors(errs []error) error {
	msg := ""
	for i, e := range errs {
		if i > 0 {
			msg += "\n"
		}
		msg += e.Error()
	}
	return fmt.Errorf("%s", msg)
}
