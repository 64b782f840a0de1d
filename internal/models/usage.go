package models

import "time"

// UsageRecord is the per-user, per-calendar-month question counter. The
// limit is snapshotted from the governing subscription's plan when the
// record is created or reset and refreshed in place on tier changes.
type UsageRecord struct {
	UserID         string    `json:"user_id"`
	Period         string    `json:"period"` // YYYY-MM
	QuestionsUsed  int       `json:"questions_used"`
	QuestionsLimit int       `json:"questions_limit"`
	LastResetAt    time.Time `json:"last_reset_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (u *UsageRecord) Remaining() int {
	if r := u.QuestionsLimit - u.QuestionsUsed; r > 0 {
		return r
	}
	return 0
}

func (u *UsageRecord) CanAskMore() bool {
	return u.QuestionsUsed < u.QuestionsLimit
}
