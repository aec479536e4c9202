package domain

// Tier identifies a pricing tier. Anonymous callers are never materialized as
// a Principal; the tier exists only so the anonymous daily quota has a home in
// the same table as the metered tiers.
type Tier string

const (
	TierAnonymous Tier = "anonymous"
	TierFree      Tier = "free"
	TierPro       Tier = "pro"
	TierTeam      Tier = "team"
)

// AnonymousDailyLimit is the number of metered invocations an unauthenticated
// caller gets per fingerprint per calendar day (UTC).
const AnonymousDailyLimit = 3

// TierConfig describes the static entitlements of one tier.
type TierConfig struct {
	MonthlyLimit int
	PriceCents   int
	Features     []string
}

// tierConfigs is loaded once and never mutated at runtime, so unsynchronized
// concurrent reads are safe.
var tierConfigs = map[Tier]TierConfig{
	TierAnonymous: {
		MonthlyLimit: 0, // anonymous usage is day-scoped, not month-scoped
		PriceCents:   0,
		Features:     []string{"basic_templates"},
	},
	TierFree: {
		MonthlyLimit: 10,
		PriceCents:   0,
		Features:     []string{"basic_templates", "saved_presets"},
	},
	TierPro: {
		MonthlyLimit: 100,
		PriceCents:   1900,
		Features:     []string{"basic_templates", "saved_presets", "premium_styles", "priority_rendering"},
	},
	TierTeam: {
		MonthlyLimit: 1000,
		PriceCents:   4900,
		Features:     []string{"basic_templates", "saved_presets", "premium_styles", "priority_rendering", "shared_workspaces"},
	},
}

// ConfigFor returns the static configuration for a tier, defaulting to the
// free tier for unknown values.
func ConfigFor(tier Tier) TierConfig {
	if cfg, ok := tierConfigs[tier]; ok {
		return cfg
	}
	return tierConfigs[TierFree]
}

// MonthlyLimit is shorthand for ConfigFor(tier).MonthlyLimit.
func (t Tier) MonthlyLimit() int {
	return ConfigFor(t).MonthlyLimit
}

// NextAbove returns the tier an over-quota principal should be offered.
// Team is the ceiling and suggests itself.
func (t Tier) NextAbove() Tier {
	switch t {
	case TierAnonymous:
		return TierFree
	case TierFree:
		return TierPro
	default:
		return TierTeam
	}
}

// Paid reports whether the tier is backed by an active subscription.
func (t Tier) Paid() bool {
	return t == TierPro || t == TierTeam
}
