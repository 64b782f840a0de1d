// Package store holds the bun-backed repositories for users, subscriptions
// and usage records, plus schema initialization.
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

var ErrNotFound = errors.New("not found")

// Store owns the transactional boundary that spans more than one aggregate.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// CreateUserWithDefaults inserts the user together with its default free
// subscription and the current period's usage record as one transaction, so
// a user row is never observable without its billing and usage rows.
func (s *Store) CreateUserWithDefaults(ctx context.Context, user *models.User, sub *models.Subscription, usage *models.UsageRecord) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()

		userDB := models.UserFromDomain(user)
		userDB.CreatedAt = now
		userDB.UpdatedAt = now
		if _, err := tx.NewInsert().Model(userDB).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}

		subDB := models.SubscriptionFromDomain(sub)
		subDB.CreatedAt = now
		subDB.UpdatedAt = now
		if _, err := tx.NewInsert().Model(subDB).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert subscription: %w", err)
		}

		usageDB := models.UsageRecordFromDomain(usage)
		usageDB.CreatedAt = now
		usageDB.UpdatedAt = now
		if _, err := tx.NewInsert().Model(usageDB).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert usage record: %w", err)
		}

		return nil
	})
}
