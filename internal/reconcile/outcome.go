package reconcile

import (
	"github.com/oscroos/bjugstad-utleie-webapp/internal/model"
)

// Decision is the sign-in verdict of the reconciler.
type Decision int

const (
	// DecisionAllow permits sign-in. Outcome.User is the matched user, or
	// nil when correlation data was missing and no lookup was possible.
	DecisionAllow Decision = iota
	// DecisionAllowDegraded permits sign-in after an unexpected internal
	// error. Logged and counted so the tradeoff is visible and alertable.
	DecisionAllowDegraded
	// DecisionAccountNotLinked rejects sign-in: the provider account is
	// bound to a different user, or the asserted email belongs to another
	// user. User-actionable, shown with contact-support guidance.
	DecisionAccountNotLinked
	// DecisionUserNotFound rejects sign-in: no provisioned account matches
	// the asserted identity. Accounts are never provisioned implicitly.
	DecisionUserNotFound
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionAllowDegraded:
		return "allow_degraded"
	case DecisionAccountNotLinked:
		return "account_not_linked"
	case DecisionUserNotFound:
		return "user_not_found"
	default:
		return "unknown"
	}
}

// Outcome is the result of reconciling a provider profile against the user
// database.
type Outcome struct {
	Decision Decision
	User     *model.User // matched user on allow outcomes, nil otherwise
	Email    string      // asserted email, carried on rejections for display
	Reason   string      // degradation reason on allow_degraded
}

// Allowed reports whether sign-in may proceed.
func (o Outcome) Allowed() bool {
	return o.Decision == DecisionAllow || o.Decision == DecisionAllowDegraded
}
