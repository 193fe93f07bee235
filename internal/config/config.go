// Package config defines the cloudtrail-sentry configuration document and
// its loader. All lookups elsewhere in the codebase go through the typed
// struct below; defaults are applied once at load time and validation runs
// before any AWS call is made.
package config

// Config is the top-level configuration, loaded from the YAML file passed
// via --config. The YAML key names are a fixed contract with existing
// deployment config files.
type Config struct {
	AWS        AWSConfig        `yaml:"aws"`
	RoleAction RoleActionConfig `yaml:"roleAction"`
}

// AWSConfig groups everything needed to reach the AWS estate: the
// organization management account, the per-account IAM audit role, the
// Athena logging account, and the ledger / notification resources.
type AWSConfig struct {
	// Region is the home region for Athena, DynamoDB, and SNS clients.
	Region string `yaml:"region"`

	// Organizations identifies the management account used to enumerate
	// member accounts. Optional when an explicit account list is supplied
	// on the command line.
	Organizations AssumeRoleTarget `yaml:"organizations"`

	// IAM names the role assumed in each member account to list IAM roles.
	// Only the role name is configured; the account ID varies per member.
	IAM RoleNameOnly `yaml:"iam"`

	// Athena identifies the logging account and the query engine layout.
	Athena AthenaConfig `yaml:"athena"`

	// DynamoTableName is the ledger table holding seen (role, action) pairs.
	DynamoTableName string `yaml:"dynamoTableName"`

	// SNSTopicArn is the notification topic alerts are published to.
	SNSTopicArn string `yaml:"snsTopicArn"`
}

// AssumeRoleTarget is an account plus the role assumed within it.
type AssumeRoleTarget struct {
	AccountID string `yaml:"accountId"`
	RoleName  string `yaml:"roleName"`
}

// RoleNameOnly configures a role assumed in a per-member account context.
type RoleNameOnly struct {
	RoleName string `yaml:"roleName"`
}

// AthenaConfig locates the query engine and its result storage.
type AthenaConfig struct {
	// AccountID and RoleName identify the logging account where CloudTrail
	// tables live and queries execute.
	AccountID string `yaml:"accountId"`
	RoleName  string `yaml:"roleName"`

	// Database is the Glue catalog database holding the CloudTrail tables.
	Database string `yaml:"database"`

	// Bucket and Prefix locate query result objects. Athena writes each
	// result set under s3://<Bucket>/<Prefix>/<execution id>.csv.
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`

	// CloudTrailBucket is the bucket CloudTrail delivers logs to; used only
	// by table setup to build the external table LOCATION clause.
	CloudTrailBucket string `yaml:"cloudtrailBucket"`
}

// RoleActionConfig tunes the novelty-detection policy.
type RoleActionConfig struct {
	// DayThreshold is the number of days that (a) a ledger entry stays live
	// after an action was last seen and (b) a newly created role is exempt
	// from alerting.
	DayThreshold int `yaml:"dayThreshold"`

	// IgnoredActionsNotify lists action composite keys (e.g. "s3:GetObject")
	// that are still recorded in the ledger but never included in alerts.
	IgnoredActionsNotify []string `yaml:"ignoredActionsNotify"`
}

// applyDefaults fills in the optional fields that have well-known defaults.
func (c *Config) applyDefaults() {
	if c.AWS.Region == "" {
		c.AWS.Region = "us-east-1"
	}
	if c.AWS.Athena.Database == "" {
		c.AWS.Athena.Database = "default"
	}
	if c.AWS.Athena.Prefix == "" {
		c.AWS.Athena.Prefix = "cloudtrail_sentry"
	}
	if c.AWS.DynamoTableName == "" {
		c.AWS.DynamoTableName = "cloudtrail_sentry"
	}
}
