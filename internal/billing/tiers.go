package billing

import "github.com/blagoySimandov/askgate/internal/models"

// Tier describes a plan as presented to callers. Question limits come from
// configuration at process start, not from this table.
type Tier struct {
	Plan        models.PlanTier `json:"plan"`
	DisplayName string          `json:"displayName"`
}

var Tiers = map[models.PlanTier]*Tier{
	models.PlanFree: {
		Plan:        models.PlanFree,
		DisplayName: "Free",
	},
	models.PlanPremium: {
		Plan:        models.PlanPremium,
		DisplayName: "Premium",
	},
}

// TierOrder defines the display ordering of tiers.
var TierOrder = []models.PlanTier{models.PlanFree, models.PlanPremium}

func GetTier(plan models.PlanTier) *Tier {
	return Tiers[plan]
}
