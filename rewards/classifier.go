package rewards

import (
	"math"

	"gasly-backend/models"
)

// TierResult is the classification of a completed-order count under a policy.
type TierResult struct {
	Tier         models.Tier
	Rate         int64
	NextTier     *models.Tier
	OrdersToNext int64
	ProgressPct  int
}

// Classify maps a count of delivered orders to a tier and the progress
// towards the next one. It always works from the policy it is given.
func Classify(completedOrders int64, policy *models.RewardsPolicy) TierResult {
	if completedOrders < 0 {
		completedOrders = 0
	}

	tier := resolveTier(completedOrders, policy)
	result := TierResult{
		Tier: tier,
		Rate: RateFor(policy, tier),
	}

	next, ok := nextTier(tier)
	if !ok {
		result.ProgressPct = 100
		return result
	}

	tierMin := TierMinimum(policy, tier)
	nextAt := TierMinimum(policy, next)
	span := nextAt - tierMin
	if span < 1 {
		span = 1
	}

	pct := int(math.Round(float64(completedOrders-tierMin) / float64(span) * 100))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	result.NextTier = &next
	result.ProgressPct = pct
	result.OrdersToNext = nextAt - completedOrders
	if result.OrdersToNext < 0 {
		result.OrdersToNext = 0
	}
	return result
}

func resolveTier(completedOrders int64, policy *models.RewardsPolicy) models.Tier {
	switch {
	case completedOrders >= policy.PlatinumThreshold:
		return models.TierPlatinum
	case completedOrders >= policy.GoldThreshold:
		return models.TierGold
	case completedOrders >= policy.SilverThreshold:
		return models.TierSilver
	default:
		return models.TierBronze
	}
}

func nextTier(tier models.Tier) (models.Tier, bool) {
	for i, t := range models.Tiers {
		if t == tier && i+1 < len(models.Tiers) {
			return models.Tiers[i+1], true
		}
	}
	return "", false
}

// TierMinimum is the completed-order count at which tier starts.
func TierMinimum(policy *models.RewardsPolicy, tier models.Tier) int64 {
	switch tier {
	case models.TierSilver:
		return policy.SilverThreshold
	case models.TierGold:
		return policy.GoldThreshold
	case models.TierPlatinum:
		return policy.PlatinumThreshold
	default:
		return 0
	}
}

// RateFor returns the points earned per cylinder at tier.
func RateFor(policy *models.RewardsPolicy, tier models.Tier) int64 {
	switch tier {
	case models.TierSilver:
		return policy.SilverRate
	case models.TierGold:
		return policy.GoldRate
	case models.TierPlatinum:
		return policy.PlatinumRate
	default:
		return policy.BronzeRate
	}
}
