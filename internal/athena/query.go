package athena

import "fmt"

// Query is one unit of work for the Runner: the SQL text plus where to run
// it and where the engine should write the result object.
type Query struct {
	SQL          string
	Database     string
	OutputBucket string
	OutputPrefix string
}

// OutputLocation returns the S3 URI Athena writes the result set under.
func (q Query) OutputLocation() string {
	return "s3://" + q.OutputBucket + "/" + q.OutputPrefix
}

// BuildAnomalyQuery returns the per-role activity query: the distinct
// (eventsource, eventname) pairs recorded for the role's assumed sessions
// in the trailing hour. The principal ID filter targets the session issuer
// so activity is attributed to the role even across session names.
func BuildAnomalyQuery(accountID, principalID string) string {
	return fmt.Sprintf(
		"SELECT DISTINCT eventsource, eventname FROM cloudtrail_%s "+
			"WHERE useridentity.type = 'AssumedRole' "+
			"AND useridentity.sessioncontext.sessionissuer.principalid = '%s' "+
			"AND eventTime > to_iso8601(current_timestamp - interval '1' hour);",
		accountID, principalID,
	)
}

// BuildCreateTableQuery returns the DDL creating the external CloudTrail
// table for one account over the organization CloudTrail bucket. The
// statement is idempotent (IF NOT EXISTS), so table setup can be re-run.
func BuildCreateTableQuery(accountID, cloudtrailBucket string) string {
	return fmt.Sprintf(`CREATE EXTERNAL TABLE IF NOT EXISTS cloudtrail_%[1]s (
    eventVersion STRING,
    userIdentity STRUCT<
        type: STRING,
        principalId: STRING,
        arn: STRING,
        accountId: STRING,
        invokedBy: STRING,
        accessKeyId: STRING,
        userName: STRING,
        sessionContext: STRUCT<
            attributes: STRUCT<
                mfaAuthenticated: STRING,
                creationDate: STRING>,
            sessionIssuer: STRUCT<
                type: STRING,
                principalId: STRING,
                arn: STRING,
                accountId: STRING,
                userName: STRING>>>,
    eventTime STRING,
    eventSource STRING,
    eventName STRING,
    awsRegion STRING,
    sourceIpAddress STRING,
    userAgent STRING,
    errorCode STRING,
    errorMessage STRING,
    requestParameters STRING,
    responseElements STRING,
    additionalEventData STRING,
    requestId STRING,
    eventId STRING,
    resources ARRAY<STRUCT<
        arn: STRING,
        accountId: STRING,
        type: STRING>>,
    eventType STRING,
    apiVersion STRING,
    readOnly STRING,
    recipientAccountId STRING,
    serviceEventDetails STRING,
    sharedEventID STRING,
    vpcEndpointId STRING
)
COMMENT 'CloudTrail table for %[2]s'
ROW FORMAT SERDE 'com.amazon.emr.hive.serde.CloudTrailSerde'
STORED AS INPUTFORMAT 'com.amazon.emr.cloudtrail.CloudTrailInputFormat'
OUTPUTFORMAT 'org.apache.hadoop.hive.ql.io.HiveIgnoreKeyTextOutputFormat'
LOCATION 's3://%[2]s/AWSLogs/%[1]s/CloudTrail/'
TBLPROPERTIES ('classification'='cloudtrail');`,
		accountID, cloudtrailBucket,
	)
}
