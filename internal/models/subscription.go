package models

import "time"

type PlanTier string

const (
	PlanFree    PlanTier = "free"
	PlanPremium PlanTier = "premium"
)

type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusPastDue   SubscriptionStatus = "past_due"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusExpired   SubscriptionStatus = "expired"
	StatusTrialing  SubscriptionStatus = "trialing"
)

// GoverningStatuses are the statuses under which a subscription row is
// currently authoritative for a user's plan and limit. At most one row per
// user may hold one of these at any time.
var GoverningStatuses = []SubscriptionStatus{StatusActive, StatusTrialing, StatusPastDue}

func (s SubscriptionStatus) Governing() bool {
	for _, g := range GoverningStatuses {
		if s == g {
			return true
		}
	}
	return false
}

type Subscription struct {
	ID                   string             `json:"id"`
	UserID               string             `json:"user_id"`
	StripeCustomerID     *string            `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string            `json:"stripe_subscription_id,omitempty"`
	Plan                 PlanTier           `json:"plan"`
	Status               SubscriptionStatus `json:"status"`
	PeriodStart          *time.Time         `json:"current_period_start,omitempty"`
	PeriodEnd            *time.Time         `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool               `json:"cancel_at_period_end"`
	TrialStart           *time.Time         `json:"trial_start,omitempty"`
	TrialEnd             *time.Time         `json:"trial_end,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}
