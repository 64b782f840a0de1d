package store

import (
	"context"
	"fmt"

	"github.com/blagoySimandov/askgate/internal/models"
	"github.com/uptrace/bun"
)

func InitializeDatabase(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*models.UserDB)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	_, err = db.NewCreateTable().
		Model((*models.SubscriptionDB)(nil)).
		IfNotExists().
		ForeignKey(`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create subscriptions table: %w", err)
	}

	_, err = db.NewCreateTable().
		Model((*models.UsageRecordDB)(nil)).
		IfNotExists().
		ForeignKey(`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create usage_records table: %w", err)
	}

	_, err = db.NewCreateIndex().
		Model((*models.UserDB)(nil)).
		Index("idx_users_email").
		Column("email").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create email index: %w", err)
	}

	_, err = db.NewCreateIndex().
		Model((*models.UserDB)(nil)).
		Index("idx_users_provider_subject").
		Column("provider_subject").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create provider_subject index: %w", err)
	}

	_, err = db.NewCreateIndex().
		Model((*models.UserDB)(nil)).
		Index("idx_users_stripe_customer_id").
		Column("stripe_customer_id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create stripe_customer_id index: %w", err)
	}

	_, err = db.NewCreateIndex().
		Model((*models.SubscriptionDB)(nil)).
		Index("idx_subscriptions_user_id").
		Column("user_id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create subscription user_id index: %w", err)
	}

	_, err = db.NewCreateIndex().
		Model((*models.SubscriptionDB)(nil)).
		Index("idx_subscriptions_status").
		Column("user_id", "status").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create subscription status index: %w", err)
	}

	return nil
}
