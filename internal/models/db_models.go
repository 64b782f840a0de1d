package models

import (
	"time"

	"github.com/uptrace/bun"
)

type UserDB struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID               string         `bun:"id,pk" json:"id"`
	Email            string         `bun:"email,notnull,unique" json:"email"`
	Name             string         `bun:"name" json:"name"`
	ProviderSubject  *string        `bun:"provider_subject,unique" json:"provider_subject"`
	AvatarURL        string         `bun:"avatar_url" json:"avatar_url"`
	Active           bool           `bun:"active,notnull,default:true" json:"active"`
	Preferences      map[string]any `bun:"preferences,type:jsonb" json:"preferences"`
	StripeCustomerID *string        `bun:"stripe_customer_id" json:"stripe_customer_id"`
	LastAuthAt       *time.Time     `bun:"last_auth_at" json:"last_auth_at"`
	CreatedAt        time.Time      `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt        time.Time      `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

func (u *UserDB) ToUser() *User {
	return &User{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		ProviderSubject:  u.ProviderSubject,
		AvatarURL:        u.AvatarURL,
		Active:           u.Active,
		Preferences:      u.Preferences,
		StripeCustomerID: u.StripeCustomerID,
		LastAuthAt:       u.LastAuthAt,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

func UserFromDomain(u *User) *UserDB {
	return &UserDB{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		ProviderSubject:  u.ProviderSubject,
		AvatarURL:        u.AvatarURL,
		Active:           u.Active,
		Preferences:      u.Preferences,
		StripeCustomerID: u.StripeCustomerID,
		LastAuthAt:       u.LastAuthAt,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

type SubscriptionDB struct {
	bun.BaseModel `bun:"table:subscriptions,alias:s"`

	ID                   string             `bun:"id,pk" json:"id"`
	UserID               string             `bun:"user_id,notnull" json:"user_id"`
	StripeCustomerID     *string            `bun:"stripe_customer_id" json:"stripe_customer_id"`
	StripeSubscriptionID *string            `bun:"stripe_subscription_id,unique" json:"stripe_subscription_id"`
	Plan                 PlanTier           `bun:"plan,notnull,default:'free'" json:"plan"`
	Status               SubscriptionStatus `bun:"status,notnull,default:'active'" json:"status"`
	PeriodStart          *time.Time         `bun:"current_period_start" json:"current_period_start"`
	PeriodEnd            *time.Time         `bun:"current_period_end" json:"current_period_end"`
	CancelAtPeriodEnd    bool               `bun:"cancel_at_period_end,notnull,default:false" json:"cancel_at_period_end"`
	TrialStart           *time.Time         `bun:"trial_start" json:"trial_start"`
	TrialEnd             *time.Time         `bun:"trial_end" json:"trial_end"`
	CreatedAt            time.Time          `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt            time.Time          `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

func (s *SubscriptionDB) ToSubscription() *Subscription {
	return &Subscription{
		ID:                   s.ID,
		UserID:               s.UserID,
		StripeCustomerID:     s.StripeCustomerID,
		StripeSubscriptionID: s.StripeSubscriptionID,
		Plan:                 s.Plan,
		Status:               s.Status,
		PeriodStart:          s.PeriodStart,
		PeriodEnd:            s.PeriodEnd,
		CancelAtPeriodEnd:    s.CancelAtPeriodEnd,
		TrialStart:           s.TrialStart,
		TrialEnd:             s.TrialEnd,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
}

func SubscriptionFromDomain(s *Subscription) *SubscriptionDB {
	return &SubscriptionDB{
		ID:                   s.ID,
		UserID:               s.UserID,
		StripeCustomerID:     s.StripeCustomerID,
		StripeSubscriptionID: s.StripeSubscriptionID,
		Plan:                 s.Plan,
		Status:               s.Status,
		PeriodStart:          s.PeriodStart,
		PeriodEnd:            s.PeriodEnd,
		CancelAtPeriodEnd:    s.CancelAtPeriodEnd,
		TrialStart:           s.TrialStart,
		TrialEnd:             s.TrialEnd,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
}

type UsageRecordDB struct {
	bun.BaseModel `bun:"table:usage_records,alias:ur"`

	UserID         string    `bun:"user_id,pk,unique:user_period" json:"user_id"`
	Period         string    `bun:"period,pk,unique:user_period" json:"period"`
	QuestionsUsed  int       `bun:"questions_used,notnull,default:0" json:"questions_used"`
	QuestionsLimit int       `bun:"questions_limit,notnull" json:"questions_limit"`
	LastResetAt    time.Time `bun:"last_reset_at,notnull,default:current_timestamp" json:"last_reset_at"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

func (u *UsageRecordDB) ToUsageRecord() *UsageRecord {
	return &UsageRecord{
		UserID:         u.UserID,
		Period:         u.Period,
		QuestionsUsed:  u.QuestionsUsed,
		QuestionsLimit: u.QuestionsLimit,
		LastResetAt:    u.LastResetAt,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func UsageRecordFromDomain(u *UsageRecord) *UsageRecordDB {
	return &UsageRecordDB{
		UserID:         u.UserID,
		Period:         u.Period,
		QuestionsUsed:  u.QuestionsUsed,
		QuestionsLimit: u.QuestionsLimit,
		LastResetAt:    u.LastResetAt,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}
