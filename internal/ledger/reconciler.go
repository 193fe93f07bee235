package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/models"
)

// Outcome classifies one reconciled observation.
type Outcome int

const (
	// Known means the ledger already had an entry for the pair; its expiry
	// was refreshed.
	Known Outcome = iota

	// Novel means the pair was recorded for the first time and should be
	// considered for alerting.
	Novel
)

// Reconciler applies one observed (role, action) pair to the ledger and
// classifies it.
//
// Existence of an entry is sufficient for Known, even when its expiry
// instant has already passed: the backing table's TTL sweep is the only
// expiry mechanism, and treating present-but-expired rows as novel would
// change alerting cadence whenever the sweep lags.
type Reconciler struct {
	store        Store
	notifyIgnore map[string]struct{}
	log          *zap.Logger
}

// NewReconciler constructs a Reconciler over store. notifyIgnore holds
// action composite keys that are tracked in the ledger but never surfaced
// as novel; pass nil when nothing is ignored.
func NewReconciler(store Store, notifyIgnore map[string]struct{}, log *zap.Logger) *Reconciler {
	return &Reconciler{store: store, notifyIgnore: notifyIgnore, log: log}
}

// Reconcile looks up (role.RoleID, action) and mutates the ledger on every
// call:
//
//   - entry present: expiry is extended to expiresAt and the outcome is
//     Known. Seeing an action again always resets its clock.
//   - entry absent: a new entry with expiry expiresAt is written. The
//     outcome is Novel unless the action key is on the notify-ignore list,
//     in which case the write still happens but the outcome is Known so
//     the action never reaches alert evaluation.
//
// Reconciling the same pair twice in sequence yields Known the second time
// with the expiry of the last call, so retries are safe.
func (r *Reconciler) Reconcile(ctx context.Context, role models.Role, action models.Action, expiresAt int64) (Outcome, error) {
	key := action.Key()

	entry, err := r.store.Get(ctx, role.RoleID, key)
	if err != nil {
		return Known, fmt.Errorf("reconcile (%s, %s): %w", role.RoleID, key, err)
	}

	if entry != nil {
		if err := r.store.RefreshTTL(ctx, role.RoleID, key, expiresAt); err != nil {
			return Known, fmt.Errorf("reconcile (%s, %s): %w", role.RoleID, key, err)
		}
		return Known, nil
	}

	if err := r.store.Put(ctx, Entry{RoleID: role.RoleID, ActionKey: key, ExpiresAt: expiresAt}); err != nil {
		return Known, fmt.Errorf("reconcile (%s, %s): %w", role.RoleID, key, err)
	}

	if _, ignored := r.notifyIgnore[key]; ignored {
		r.log.Debug("newly seen action suppressed by notify ignore list",
			zap.String("role", role.Name),
			zap.String("action", key))
		return Known, nil
	}

	r.log.Info("newly seen action",
		zap.String("role", role.Name),
		zap.String("account", role.AccountID),
		zap.String("action", key))
	return Novel, nil
}
