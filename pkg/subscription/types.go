package subscription

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PlanTier is the product plan derived from the subscription price.
type PlanTier string

const (
	TierFree    PlanTier = "free"
	TierPremium PlanTier = "premium"
	TierFamily  PlanTier = "family"
)

func (t PlanTier) Valid() bool {
	switch t {
	case TierFree, TierPremium, TierFamily:
		return true
	}
	return false
}

// SubscriptionStatus is the provider status collapsed to three values.
type SubscriptionStatus string

const (
	StatusInactive  SubscriptionStatus = "inactive"
	StatusActive    SubscriptionStatus = "active"
	StatusCancelled SubscriptionStatus = "cancelled"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case StatusInactive, StatusActive, StatusCancelled:
		return true
	}
	return false
}

// CancellationType is the mode of a user-requested cancellation.
// The zero value means no cancellation and encodes as JSON null.
type CancellationType string

const (
	CancellationNone        CancellationType = ""
	CancellationImmediate   CancellationType = "immediate"
	CancellationEndOfPeriod CancellationType = "end_of_period"
)

// ParseCancellationType accepts only the two request literals.
func ParseCancellationType(s string) (CancellationType, error) {
	switch t := CancellationType(s); t {
	case CancellationImmediate, CancellationEndOfPeriod:
		return t, nil
	}
	return CancellationNone, fmt.Errorf("%w: %q", ErrInvalidCancellationType, s)
}

func (c CancellationType) MarshalJSON() ([]byte, error) {
	if c == CancellationNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(c))
}

func (c *CancellationType) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = CancellationNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = CancellationType(s)
	return nil
}

// Subscriber identifies the user an operation acts on. Email is the billing
// provider lookup key.
type Subscriber struct {
	UserID uuid.UUID
	Email  string
}

// Usage is computed on demand and never stored on the record.
type Usage struct {
	AnalysesThisMonth int64 `json:"analysesThisMonth"`
	TotalPets         int64 `json:"totalPets"`
}

// Status is the normalized subscription state returned to clients.
type Status struct {
	Subscribed                bool             `json:"subscribed"`
	SubscriptionTier          PlanTier         `json:"subscriptionTier"`
	SubscriptionEnd           *time.Time       `json:"subscriptionEnd"`
	IsCancelled               bool             `json:"isCancelled"`
	CancellationType          CancellationType `json:"cancellationType"`
	CancellationDate          *time.Time       `json:"cancellationDate"`
	CancellationEffectiveDate *time.Time       `json:"cancellationEffectiveDate"`
	CanReactivate             bool             `json:"canReactivate"`
	Usage                     Usage            `json:"usage"`
}

// CancellationResult is returned by Cancel.
type CancellationResult struct {
	CancellationType          CancellationType `json:"cancellationType"`
	CancellationEffectiveDate *time.Time       `json:"cancellationEffectiveDate"`
}
