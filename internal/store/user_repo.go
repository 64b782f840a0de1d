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

type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByProviderSubject(ctx context.Context, subject string) (*models.User, error)
	GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	SetActive(ctx context.Context, userID string, active bool) error
	UpdateStripeCustomerID(ctx context.Context, userID, stripeCustomerID string) error
}

type BunUserRepository struct {
	db *bun.DB
}

func NewUserRepository(db *bun.DB) *BunUserRepository {
	return &BunUserRepository{db: db}
}

func (r *BunUserRepository) getWhere(ctx context.Context, column string, value any) (*models.User, error) {
	userDB := new(models.UserDB)
	err := r.db.NewSelect().
		Model(userDB).
		Where(column+" = ?", value).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return userDB.ToUser(), nil
}

func (r *BunUserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	return r.getWhere(ctx, "id", userID)
}

func (r *BunUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getWhere(ctx, "email", email)
}

func (r *BunUserRepository) GetByProviderSubject(ctx context.Context, subject string) (*models.User, error) {
	return r.getWhere(ctx, "provider_subject", subject)
}

func (r *BunUserRepository) GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*models.User, error) {
	return r.getWhere(ctx, "stripe_customer_id", stripeCustomerID)
}

func (r *BunUserRepository) Update(ctx context.Context, user *models.User) error {
	userDB := models.UserFromDomain(user)
	userDB.UpdatedAt = time.Now()
	res, err := r.db.NewUpdate().
		Model(userDB).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", user.ID, err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *BunUserRepository) SetActive(ctx context.Context, userID string, active bool) error {
	_, err := r.db.NewUpdate().
		Model((*models.UserDB)(nil)).
		Set("active = ?", active).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", userID).
		Exec(ctx)
	return err
}

func (r *BunUserRepository) UpdateStripeCustomerID(ctx context.Context, userID, stripeCustomerID string) error {
	_, err := r.db.NewUpdate().
		Model((*models.UserDB)(nil)).
		Set("stripe_customer_id = ?", stripeCustomerID).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", userID).
		Exec(ctx)
	return err
}
