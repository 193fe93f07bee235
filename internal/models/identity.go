package models

import (
	"strings"
	"time"
)

// Role is one IAM role as enumerated from a member account. Fields are
// populated once per run by the identity provider and never mutated by the
// detection pipeline.
type Role struct {
	// Arn is the full role ARN, including the path. A path segment of
	// "aws-service-role" marks a service-linked role.
	Arn string

	// Name is the human-readable role name.
	Name string

	// RoleID is the unique principal ID AWS assigns to the role. CloudTrail
	// session-issuer records carry this ID, so it is the join key between
	// query results and the ledger.
	RoleID string

	// AccountID is the twelve-digit ID of the account owning the role.
	AccountID string

	// CreateDate is when the role was created. Roles younger than the
	// configured day threshold are inside their alerting grace window.
	CreateDate time.Time
}

// IsServiceLinked reports whether the role is created and managed by an AWS
// service itself. Service-linked roles carry a reserved path segment in
// their ARN and are never alerted on.
func (r Role) IsServiceLinked() bool {
	for _, segment := range strings.Split(r.Arn, "/") {
		if segment == "aws-service-role" {
			return true
		}
	}
	return false
}

// Action is one observed API call: the service event source paired with the
// event name. Two Actions are equal iff both components are equal.
type Action struct {
	Source string
	Name   string
}

// Key returns the composite string form used as the ledger sort key,
// e.g. "s3:GetObject".
func (a Action) Key() string {
	return a.Source + ":" + a.Name
}

// ParseAction parses one CSV data row from a query result ("source,name")
// into an Action. It returns false for blank rows and rows missing either
// component; callers skip those without treating them as errors.
//
// Rows with more than two fields keep everything after the first comma as
// the event name, joined with colons, matching the composite-key format.
func ParseAction(line string) (Action, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Action{}, false
	}

	fields := strings.Split(trimmed, ",")
	if len(fields) < 2 {
		return Action{}, false
	}

	source := strings.TrimSpace(fields[0])
	name := strings.TrimSpace(strings.Join(fields[1:], ":"))
	if source == "" || name == "" {
		return Action{}, false
	}
	return Action{Source: source, Name: name}, true
}
