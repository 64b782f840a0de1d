// Package usage implements the per-user monthly metering state machine. The
// admission check is a single conditional update against storage; a request
// is charged when it is admitted, not when the downstream call succeeds.
package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/blagoySimandov/askgate/internal/apperrors"
	"github.com/blagoySimandov/askgate/internal/models"
	"github.com/blagoySimandov/askgate/internal/store"
)

// Limits hold the per-plan monthly question allowances.
type Limits struct {
	Free    int
	Premium int
}

func (l Limits) For(plan models.PlanTier) int {
	if plan == models.PlanPremium {
		return l.Premium
	}
	return l.Free
}

// Status is the caller-facing view of a user's current-period consumption.
type Status struct {
	QuestionsUsed      int                `json:"questionsUsed"`
	QuestionsLimit     int                `json:"questionsLimit"`
	QuestionsRemaining int                `json:"questionsRemaining"`
	CanAskMore         bool               `json:"canAskMore"`
	Plan               models.PlanTier    `json:"planType"`
	NextReset          time.Time          `json:"nextReset"`
	SubscriptionStatus models.SubscriptionStatus `json:"subscriptionStatus,omitempty"`
}

type Service struct {
	usage      store.UsageRepository
	subs       store.SubscriptionRepository
	limits     Limits
	upgradeURL string
	log        *slog.Logger
	now        func() time.Time
}

func NewService(usageRepo store.UsageRepository, subs store.SubscriptionRepository, limits Limits, upgradeURL string, log *slog.Logger) *Service {
	return &Service{
		usage:      usageRepo,
		subs:       subs,
		limits:     limits,
		upgradeURL: upgradeURL,
		log:        log,
		now:        time.Now,
	}
}

// Record admits one question for the user in the current period. It lazily
// creates the period's record and then performs the atomic test-and-increment;
// at the limit it rejects with USAGE_LIMIT_EXCEEDED and does not increment.
func (s *Service) Record(ctx context.Context, userID string) (*Status, error) {
	now := s.now()
	period := PeriodKey(now)

	plan, subStatus, err := s.governingPlan(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.ensureRecord(ctx, userID, period, plan, now); err != nil {
		return nil, err
	}

	admitted, err := s.usage.IncrementIfUnderLimit(ctx, userID, period)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	rec, err := s.usage.Get(ctx, userID, period)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to read usage after admission: %w", err))
	}

	if !admitted {
		return nil, apperrors.UsageLimitExceeded(rec.QuestionsUsed, rec.QuestionsLimit, s.upgradeURL)
	}

	return s.status(rec, plan, subStatus, now), nil
}

// StatusFor reports consumption without mutating anything. A user with no
// record yet in this period reads as zero consumed.
func (s *Service) StatusFor(ctx context.Context, userID string) (*Status, error) {
	now := s.now()
	period := PeriodKey(now)

	plan, subStatus, err := s.governingPlan(ctx, userID)
	if err != nil {
		return nil, err
	}

	rec, err := s.usage.Get(ctx, userID, period)
	if errors.Is(err, store.ErrNotFound) {
		rec = &models.UsageRecord{
			UserID:         userID,
			Period:         period,
			QuestionsLimit: s.limits.For(plan),
		}
	} else if err != nil {
		return nil, apperrors.Internal(err)
	}

	return s.status(rec, plan, subStatus, now), nil
}

// RefreshLimit updates the current period's limit in place. Consumed counts
// are preserved across a tier change within the same period.
func (s *Service) RefreshLimit(ctx context.Context, userID string, plan models.PlanTier) error {
	now := s.now()
	period := PeriodKey(now)
	limit := s.limits.For(plan)

	if err := s.usage.CreateIfAbsent(ctx, &models.UsageRecord{
		UserID:         userID,
		Period:         period,
		QuestionsLimit: limit,
		LastResetAt:    now,
	}); err != nil {
		return err
	}

	return s.usage.UpdateLimit(ctx, userID, period, limit)
}

// ResetAllUsage upserts a fresh record for the given period for every user
// with a governing subscription. Re-running it for an already-processed
// period never touches nonzero consumed counts.
func (s *Service) ResetAllUsage(ctx context.Context, period string) error {
	subs, err := s.subs.ListGoverning(ctx)
	if err != nil {
		return fmt.Errorf("failed to list governing subscriptions: %w", err)
	}

	now := s.now()
	var failed int
	for _, sub := range subs {
		rec := &models.UsageRecord{
			UserID:         sub.UserID,
			Period:         period,
			QuestionsUsed:  0,
			QuestionsLimit: s.limits.For(sub.Plan),
			LastResetAt:    now,
		}
		if err := s.usage.CreateIfAbsent(ctx, rec); err != nil {
			failed++
			s.log.Error("usage reset failed for user", "user_id", sub.UserID, "period", period, "error", err)
		}
	}

	s.log.Info("usage reset completed", "period", period, "subscriptions", len(subs), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("usage reset: %d of %d records failed", failed, len(subs))
	}
	return nil
}

func (s *Service) governingPlan(ctx context.Context, userID string) (models.PlanTier, models.SubscriptionStatus, error) {
	sub, err := s.subs.GetGoverning(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return models.PlanFree, "", nil
	}
	if err != nil {
		return "", "", apperrors.Internal(err)
	}
	return sub.Plan, sub.Status, nil
}

func (s *Service) ensureRecord(ctx context.Context, userID, period string, plan models.PlanTier, now time.Time) error {
	rec := &models.UsageRecord{
		UserID:         userID,
		Period:         period,
		QuestionsUsed:  0,
		QuestionsLimit: s.limits.For(plan),
		LastResetAt:    now,
	}
	if err := s.usage.CreateIfAbsent(ctx, rec); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

func (s *Service) status(rec *models.UsageRecord, plan models.PlanTier, subStatus models.SubscriptionStatus, now time.Time) *Status {
	return &Status{
		QuestionsUsed:      rec.QuestionsUsed,
		QuestionsLimit:     rec.QuestionsLimit,
		QuestionsRemaining: rec.Remaining(),
		CanAskMore:         rec.CanAskMore(),
		Plan:               plan,
		NextReset:          NextReset(now),
		SubscriptionStatus: subStatus,
	}
}
