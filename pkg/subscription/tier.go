package subscription

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TierThresholds maps unit amounts (minor currency units) to plan tiers.
type TierThresholds struct {
	PremiumMaxCents int64 `env:"BILLING_PREMIUM_MAX_CENTS" envDefault:"99"`
	FamilyMinCents  int64 `env:"BILLING_FAMILY_MIN_CENTS" envDefault:"199"`
}

// DefaultTierThresholds is €0.99 for premium and €1.99 for family.
var DefaultTierThresholds = TierThresholds{PremiumMaxCents: 99, FamilyMinCents: 199}

// TierResolver maps a provider subscription to a plan tier.
type TierResolver struct {
	thresholds TierThresholds
	prices     map[string]PlanTier
}

// NewTierResolver creates a resolver. Explicit price mappings from the catalog
// win over amount thresholds. Panics if the thresholds overlap.
func NewTierResolver(th TierThresholds, catalog map[string]PlanTier) *TierResolver {
	if th.PremiumMaxCents >= th.FamilyMinCents {
		panic(fmt.Sprintf("subscription: premium threshold %d must be below family threshold %d", th.PremiumMaxCents, th.FamilyMinCents))
	}
	prices := make(map[string]PlanTier, len(catalog))
	for id, tier := range catalog {
		prices[id] = tier
	}
	return &TierResolver{thresholds: th, prices: prices}
}

// Resolve never fails: amounts between the thresholds fall to whichever side
// of the midpoint they are on.
func (r *TierResolver) Resolve(sub ProviderSubscription) PlanTier {
	if tier, ok := r.prices[sub.PriceID]; ok && sub.PriceID != "" {
		return tier
	}
	return r.ResolveAmount(sub.UnitAmount)
}

func (r *TierResolver) ResolveAmount(amount int64) PlanTier {
	switch {
	case amount <= r.thresholds.PremiumMaxCents:
		return TierPremium
	case amount >= r.thresholds.FamilyMinCents:
		return TierFamily
	}
	mid := r.thresholds.PremiumMaxCents + (r.thresholds.FamilyMinCents-r.thresholds.PremiumMaxCents)/2
	if amount < mid {
		return TierPremium
	}
	return TierFamily
}

type priceCatalogFile struct {
	Prices map[string]PlanTier `yaml:"prices"`
}

// LoadPriceCatalog reads a YAML file of the form:
//
//	prices:
//	  price_1Pq...: premium
//	  price_1Pr...: family
func LoadPriceCatalog(path string) (map[string]PlanTier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidPriceCatalog, err)
	}
	return ParsePriceCatalog(data)
}

func ParsePriceCatalog(data []byte) (map[string]PlanTier, error) {
	var f priceCatalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Join(ErrInvalidPriceCatalog, err)
	}
	for id, tier := range f.Prices {
		if tier != TierPremium && tier != TierFamily {
			return nil, fmt.Errorf("%w: price %s maps to %q", ErrInvalidPriceCatalog, id, tier)
		}
	}
	return f.Prices, nil
}
