package subscription

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Record is the persisted mirror of one user's subscription state.
type Record struct {
	UserID                              uuid.UUID
	BillingCustomerID                   string
	PlanTier                            PlanTier
	SubscriptionStatus                  SubscriptionStatus
	SubscriptionEndDate                 *time.Time
	IsCancelled                         bool
	CancellationType                    CancellationType
	CancellationDate                    *time.Time
	CancellationEffectiveDate           *time.Time
	CanReactivate                       bool
	ImmediateCancellationAfterPeriodEnd bool
	CreatedAt                           time.Time
	UpdatedAt                           time.Time
}

// NewRecord returns the defaults a record is created with.
func NewRecord(userID uuid.UUID) Record {
	return Record{
		UserID:             userID,
		PlanTier:           TierFree,
		SubscriptionStatus: StatusInactive,
		CanReactivate:      true,
	}
}

// Validate checks the record invariants.
// A provider-side deletion may leave IsCancelled set without a type, so only
// the type ⇒ flag direction is enforced.
func (r Record) Validate() error {
	var errs []error
	if r.UserID == uuid.Nil {
		errs = append(errs, ErrInvalidUserID)
	}
	if !r.PlanTier.Valid() {
		errs = append(errs, errors.New("unknown plan tier "+string(r.PlanTier)))
	}
	if !r.SubscriptionStatus.Valid() {
		errs = append(errs, errors.New("unknown subscription status "+string(r.SubscriptionStatus)))
	}
	if r.SubscriptionStatus == StatusActive && r.PlanTier == TierFree {
		errs = append(errs, errors.New("active subscription on free tier"))
	}
	if r.CancellationType != CancellationNone && !r.IsCancelled {
		errs = append(errs, errors.New("cancellation type set on a non-cancelled record"))
	}
	if r.CancellationType == CancellationImmediate && !sameTime(r.CancellationEffectiveDate, r.CancellationDate) {
		errs = append(errs, errors.New("immediate cancellation must take effect on its cancellation date"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidRecord}, errs...)...)
	}
	return nil
}

// Subscribed reports whether the record grants a paid subscription.
func (r Record) Subscribed() bool {
	return r.SubscriptionStatus == StatusActive
}

// Status renders the record for clients.
func (r Record) Status(usage Usage) *Status {
	return &Status{
		Subscribed:                r.Subscribed(),
		SubscriptionTier:          r.PlanTier,
		SubscriptionEnd:           r.SubscriptionEndDate,
		IsCancelled:               r.IsCancelled,
		CancellationType:          r.CancellationType,
		CancellationDate:          r.CancellationDate,
		CancellationEffectiveDate: r.CancellationEffectiveDate,
		CanReactivate:             r.CanReactivate,
		Usage:                     usage,
	}
}

func (r Record) cancellationResult() *CancellationResult {
	return &CancellationResult{
		CancellationType:          r.CancellationType,
		CancellationEffectiveDate: r.CancellationEffectiveDate,
	}
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func timePtr(t time.Time) *time.Time {
	t = t.UTC()
	return &t
}
