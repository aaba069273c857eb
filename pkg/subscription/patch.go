package subscription

import "time"

// Field names one writable column of a Record.
type Field uint16

const (
	FieldBillingCustomerID Field = 1 << iota
	FieldPlanTier
	FieldSubscriptionStatus
	FieldSubscriptionEndDate
	FieldIsCancelled
	FieldCancellationType
	FieldCancellationDate
	FieldCancellationEffectiveDate
	FieldCanReactivate
	FieldImmediateCancellationAfterPeriodEnd
)

const (
	// BillingFields are derived from the provider and may be written by reconciliation.
	BillingFields = FieldBillingCustomerID | FieldPlanTier | FieldSubscriptionStatus | FieldSubscriptionEndDate

	// CancellationFields are owned locally.
	CancellationFields = FieldIsCancelled | FieldCancellationType | FieldCancellationDate |
		FieldCancellationEffectiveDate | FieldCanReactivate | FieldImmediateCancellationAfterPeriodEnd

	EveryField = BillingFields | CancellationFields
)

// AllFields lists every field in column order.
var AllFields = []Field{
	FieldBillingCustomerID,
	FieldPlanTier,
	FieldSubscriptionStatus,
	FieldSubscriptionEndDate,
	FieldIsCancelled,
	FieldCancellationType,
	FieldCancellationDate,
	FieldCancellationEffectiveDate,
	FieldCanReactivate,
	FieldImmediateCancellationAfterPeriodEnd,
}

func (f Field) Has(other Field) bool { return f&other == other }

// Patch is a field-masked update. Only fields named in Fields are read from
// Values; everything else on the stored record is left as it is.
type Patch struct {
	Fields Field
	Values Record
}

// BillingOnly reports whether the patch touches nothing but billing fields.
func (p Patch) BillingOnly() bool {
	return p.Fields&^BillingFields == 0
}

// Merge returns a patch carrying the fields of both; other wins on overlap.
func (p Patch) Merge(other Patch) Patch {
	out := Patch{Fields: p.Fields | other.Fields, Values: p.Values}
	out.Values = out.Values.Apply(other)
	return out
}

// Apply returns a copy of r with the masked fields of p written over it.
func (r Record) Apply(p Patch) Record {
	v := p.Values
	if p.Fields.Has(FieldBillingCustomerID) {
		r.BillingCustomerID = v.BillingCustomerID
	}
	if p.Fields.Has(FieldPlanTier) {
		r.PlanTier = v.PlanTier
	}
	if p.Fields.Has(FieldSubscriptionStatus) {
		r.SubscriptionStatus = v.SubscriptionStatus
	}
	if p.Fields.Has(FieldSubscriptionEndDate) {
		r.SubscriptionEndDate = v.SubscriptionEndDate
	}
	if p.Fields.Has(FieldIsCancelled) {
		r.IsCancelled = v.IsCancelled
	}
	if p.Fields.Has(FieldCancellationType) {
		r.CancellationType = v.CancellationType
	}
	if p.Fields.Has(FieldCancellationDate) {
		r.CancellationDate = v.CancellationDate
	}
	if p.Fields.Has(FieldCancellationEffectiveDate) {
		r.CancellationEffectiveDate = v.CancellationEffectiveDate
	}
	if p.Fields.Has(FieldCanReactivate) {
		r.CanReactivate = v.CanReactivate
	}
	if p.Fields.Has(FieldImmediateCancellationAfterPeriodEnd) {
		r.ImmediateCancellationAfterPeriodEnd = v.ImmediateCancellationAfterPeriodEnd
	}
	return r
}

// billingPatch builds a reconciliation patch. An empty customerID leaves the
// stored customer id untouched.
func billingPatch(customerID string, tier PlanTier, status SubscriptionStatus, end *time.Time) Patch {
	p := Patch{
		Fields: FieldPlanTier | FieldSubscriptionStatus | FieldSubscriptionEndDate,
		Values: Record{PlanTier: tier, SubscriptionStatus: status, SubscriptionEndDate: end},
	}
	if customerID != "" {
		p.Fields |= FieldBillingCustomerID
		p.Values.BillingCustomerID = customerID
	}
	return p
}
