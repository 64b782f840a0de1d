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

type UsageRepository interface {
	Get(ctx context.Context, userID, period string) (*models.UsageRecord, error)
	// CreateIfAbsent inserts the record unless one already exists for the
	// same (user, period); an existing row is left untouched.
	CreateIfAbsent(ctx context.Context, rec *models.UsageRecord) error
	// IncrementIfUnderLimit atomically adds one consumed question when the
	// record is still under its limit. Returns false without mutating
	// anything when the limit is already reached.
	IncrementIfUnderLimit(ctx context.Context, userID, period string) (bool, error)
	UpdateLimit(ctx context.Context, userID, period string, limit int) error
}

type BunUsageRepository struct {
	db *bun.DB
}

func NewUsageRepository(db *bun.DB) *BunUsageRepository {
	return &BunUsageRepository{db: db}
}

func (r *BunUsageRepository) Get(ctx context.Context, userID, period string) (*models.UsageRecord, error) {
	recDB := new(models.UsageRecordDB)
	err := r.db.NewSelect().
		Model(recDB).
		Where("user_id = ?", userID).
		Where("period = ?", period).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return recDB.ToUsageRecord(), nil
}

func (r *BunUsageRepository) CreateIfAbsent(ctx context.Context, rec *models.UsageRecord) error {
	recDB := models.UsageRecordFromDomain(rec)
	now := time.Now()
	recDB.CreatedAt = now
	recDB.UpdatedAt = now
	_, err := r.db.NewInsert().
		Model(recDB).
		On("CONFLICT (user_id, period) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert usage record for user %s period %s: %w", rec.UserID, rec.Period, err)
	}
	return nil
}

// The guard lives in the WHERE clause so two concurrent increments can never
// both pass a stale read of questions_used.
func (r *BunUsageRepository) IncrementIfUnderLimit(ctx context.Context, userID, period string) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*models.UsageRecordDB)(nil)).
		Set("questions_used = questions_used + 1").
		Set("updated_at = ?", time.Now()).
		Where("user_id = ?", userID).
		Where("period = ?", period).
		Where("questions_used < questions_limit").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to increment usage for user %s: %w", userID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *BunUsageRepository) UpdateLimit(ctx context.Context, userID, period string, limit int) error {
	_, err := r.db.NewUpdate().
		Model((*models.UsageRecordDB)(nil)).
		Set("questions_limit = ?", limit).
		Set("updated_at = ?", time.Now()).
		Where("user_id = ?", userID).
		Where("period = ?", period).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update usage limit for user %s: %w", userID, err)
	}
	return nil
}
