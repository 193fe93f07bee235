package models

// Alert is the payload published to the notification topic when a role
// outside its grace window performs actions never seen before. The JSON
// field names are a fixed contract with downstream alert consumers.
type Alert struct {
	// Actions is the comma-joined list of novel action composite keys,
	// e.g. "s3:GetObject, ec2:DescribeInstances".
	Actions string `json:"actions"`

	// Role is the human-readable role name.
	Role string `json:"role"`

	// Account is the twelve-digit account ID the role belongs to.
	Account string `json:"account"`
}
