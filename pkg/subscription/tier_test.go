package subscription_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petvoice/subscriptions/pkg/subscription"
)

func TestTierResolver_ResolveAmount(t *testing.T) {
	t.Parallel()
	r := subscription.NewTierResolver(subscription.DefaultTierThresholds, nil)

	tests := []struct {
		amount int64
		want   subscription.PlanTier
	}{
		{0, subscription.TierPremium},
		{99, subscription.TierPremium},
		{148, subscription.TierPremium},
		{149, subscription.TierFamily},
		{199, subscription.TierFamily},
		{999, subscription.TierFamily},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.ResolveAmount(tt.amount), "amount %d", tt.amount)
	}
}

func TestTierResolver_CatalogWins(t *testing.T) {
	t.Parallel()
	r := subscription.NewTierResolver(subscription.DefaultTierThresholds, map[string]subscription.PlanTier{
		"price_family_promo": subscription.TierFamily,
	})

	assert.Equal(t, subscription.TierFamily, r.Resolve(subscription.ProviderSubscription{PriceID: "price_family_promo", UnitAmount: 49}))
	assert.Equal(t, subscription.TierPremium, r.Resolve(subscription.ProviderSubscription{PriceID: "price_other", UnitAmount: 99}))
}

func TestNewTierResolver_OverlappingThresholds(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() {
		subscription.NewTierResolver(subscription.TierThresholds{PremiumMaxCents: 200, FamilyMinCents: 199}, nil)
	})
}

func TestParsePriceCatalog(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		prices, err := subscription.ParsePriceCatalog([]byte("prices:\n  price_a: premium\n  price_b: family\n"))
		require.NoError(t, err)
		assert.Equal(t, map[string]subscription.PlanTier{
			"price_a": subscription.TierPremium,
			"price_b": subscription.TierFamily,
		}, prices)
	})

	t.Run("free is not a paid price", func(t *testing.T) {
		t.Parallel()
		_, err := subscription.ParsePriceCatalog([]byte("prices:\n  price_a: free\n"))
		assert.ErrorIs(t, err, subscription.ErrInvalidPriceCatalog)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		t.Parallel()
		_, err := subscription.ParsePriceCatalog([]byte("prices: [unclosed"))
		assert.ErrorIs(t, err, subscription.ErrInvalidPriceCatalog)
	})

	t.Run("from file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "prices.yaml")
		require.NoError(t, os.WriteFile(path, []byte("prices:\n  price_c: family\n"), 0o600))
		prices, err := subscription.LoadPriceCatalog(path)
		require.NoError(t, err)
		assert.Equal(t, subscription.TierFamily, prices["price_c"])

		_, err = subscription.LoadPriceCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, subscription.ErrInvalidPriceCatalog)
	})
}
