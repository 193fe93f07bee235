// Package ledger persists which (role, action) pairs have been observed
// before and classifies newly observed actions as known or novel.
package ledger

import "context"

// Entry is one ledger row: a (role principal ID, action composite key)
// pair with the absolute instant after which the observation is forgotten.
type Entry struct {
	RoleID    string
	ActionKey string

	// ExpiresAt is epoch seconds. DynamoDB's TTL sweeper deletes the row
	// some time after this instant; until the row is physically gone it
	// still counts as seen.
	ExpiresAt int64
}

// Store is the durable (role, action) ledger. Implementations must treat
// the pair (RoleID, ActionKey) as the unique primary key.
//
// Get does not filter logically expired rows: a row that exists but whose
// ExpiresAt has passed is still returned. Store relies on the backing
// table's own expiry sweep for deletion; classification on mere existence
// is a deliberate contract the reconciler depends on.
type Store interface {
	// Get returns the entry for (roleID, actionKey), or nil when no row
	// exists.
	Get(ctx context.Context, roleID, actionKey string) (*Entry, error)

	// Put inserts or replaces the entry.
	Put(ctx context.Context, entry Entry) error

	// RefreshTTL sets the expiry of an existing entry to expiresAt.
	RefreshTTL(ctx context.Context, roleID, actionKey string, expiresAt int64) error
}
