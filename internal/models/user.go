package models

import "time"

type User struct {
	ID              string         `json:"id"`
	Email           string         `json:"email"`
	Name            string         `json:"name"`
	ProviderSubject *string        `json:"provider_subject,omitempty"`
	AvatarURL       string         `json:"avatar_url,omitempty"`
	Active          bool           `json:"active"`
	Preferences     map[string]any `json:"preferences,omitempty"`
	LastAuthAt      *time.Time     `json:"last_auth_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`

	StripeCustomerID *string `json:"stripe_customer_id,omitempty"`
}
