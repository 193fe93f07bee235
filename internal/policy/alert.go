// Package policy decides whether a set of novel actions becomes an alert.
// Evaluation is pure: given the same role, actions, and clock it always
// produces the same answer, and it never touches the ledger.
package policy

import (
	"strings"
	"time"

	"github.com/pankaj-dahiya-devops/cloudtrail-sentry/internal/models"
)

// AlertPolicy holds the suppression rules applied after reconciliation.
type AlertPolicy struct {
	// DayThreshold is the grace window in days: roles created more
	// recently than this never alert, because a fresh role is expected to
	// accumulate many first-time actions.
	DayThreshold int

	// Now is the clock used for the grace-window comparison. Defaults to
	// time.Now when nil; tests pin it.
	Now func() time.Time
}

// Evaluate returns the alert for role given its novel actions, or nil when
// the alert is suppressed. Suppression applies when:
//
//   - there are no novel actions;
//   - the role is inside its creation grace window;
//   - the role is service-linked (suppressed on every cycle, not just
//     during the grace window).
//
// The actions are joined in the order given; callers control ordering.
func (p AlertPolicy) Evaluate(role models.Role, novelActions []string) *models.Alert {
	if len(novelActions) == 0 {
		return nil
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	graceCutoff := now().AddDate(0, 0, -p.DayThreshold)
	if role.CreateDate.After(graceCutoff) {
		return nil
	}

	if role.IsServiceLinked() {
		return nil
	}

	return &models.Alert{
		Actions: strings.Join(novelActions, ", "),
		Role:    role.Name,
		Account: role.AccountID,
	}
}
