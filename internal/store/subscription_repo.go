package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/blagoySimandov/askgate/internal/models"
	"github.com/uptrace/bun"
)

type SubscriptionRepository interface {
	GetGoverning(ctx context.Context, userID string) (*models.Subscription, error)
	GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
	Create(ctx context.Context, sub *models.Subscription) error
	Update(ctx context.Context, sub *models.Subscription) error
	ListGoverning(ctx context.Context) ([]*models.Subscription, error)
}

type BunSubscriptionRepository struct {
	db *bun.DB
}

func NewSubscriptionRepository(db *bun.DB) *BunSubscriptionRepository {
	return &BunSubscriptionRepository{db: db}
}

// GetGoverning returns the single subscription row whose status currently
// governs the user's plan and limit.
func (r *BunSubscriptionRepository) GetGoverning(ctx context.Context, userID string) (*models.Subscription, error) {
	subDB := new(models.SubscriptionDB)
	err := r.db.NewSelect().
		Model(subDB).
		Where("user_id = ?", userID).
		Where("status IN (?)", bun.In(models.GoverningStatuses)).
		Order("updated_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return subDB.ToSubscription(), nil
}

func (r *BunSubscriptionRepository) GetByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	subDB := new(models.SubscriptionDB)
	err := r.db.NewSelect().
		Model(subDB).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return subDB.ToSubscription(), nil
}

func (r *BunSubscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	subDB := models.SubscriptionFromDomain(sub)
	subDB.CreatedAt = time.Now()
	subDB.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().Model(subDB).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert subscription for user %s: %w", sub.UserID, err)
	}
	return nil
}

func (r *BunSubscriptionRepository) Update(ctx context.Context, sub *models.Subscription) error {
	subDB := models.SubscriptionFromDomain(sub)
	subDB.UpdatedAt = time.Now()
	res, err := r.db.NewUpdate().
		Model(subDB).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update subscription %s: %w", sub.ID, err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *BunSubscriptionRepository) ListGoverning(ctx context.Context) ([]*models.Subscription, error) {
	var rows []*models.SubscriptionDB
	err := r.db.NewSelect().
		Model(&rows).
		Where("status IN (?)", bun.In(models.GoverningStatuses)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	subs := make([]*models.Subscription, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.ToSubscription())
	}
	return subs, nil
}
