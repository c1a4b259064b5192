package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"doulitsa/internal/models"
)

type SubscriptionRepository struct {
	DB *sql.DB
}

const subscriptionColumns = `id, user_id, plan, status, current_period_end, created_at, updated_at`

func scanSubscription(s scanner) (models.Subscription, error) {
	var (
		sub       models.Subscription
		periodEnd sql.NullTime
		updated   sql.NullTime
	)
	err := s.Scan(&sub.ID, &sub.UserID, &sub.Plan, &sub.Status, &periodEnd, &sub.CreatedAt, &updated)
	if err != nil {
		return models.Subscription{}, err
	}
	sub.CurrentPeriodEnd = nullTimePtr(periodEnd)
	sub.UpdatedAt = nullTimePtr(updated)
	return sub, nil
}

func (r *SubscriptionRepository) GetByUser(ctx context.Context, userID int64) (models.Subscription, error) {
	sub, err := scanSubscription(r.DB.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Subscription{}, models.ErrNoRecord
	}
	return sub, err
}

// Activate starts or renews the user's subscription on plan until periodEnd.
func (r *SubscriptionRepository) Activate(ctx context.Context, userID int64, plan string, periodEnd time.Time) (models.Subscription, error) {
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO subscriptions (user_id, plan, status, current_period_end, created_at)
        VALUES (?, ?, ?, ?, UTC_TIMESTAMP())
        ON DUPLICATE KEY UPDATE plan = VALUES(plan), status = VALUES(status),
            current_period_end = VALUES(current_period_end), updated_at = UTC_TIMESTAMP()`,
		userID, plan, models.SubscriptionActive, periodEnd.UTC())
	if err != nil {
		if isForeignKeyConstraintError(err) {
			return models.Subscription{}, models.ErrUserNotFound
		}
		return models.Subscription{}, err
	}
	return r.GetByUser(ctx, userID)
}

func (r *SubscriptionRepository) SetStatus(ctx context.Context, id int64, status string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE subscriptions SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNoRecord
	}
	return nil
}

// ListDue returns active or canceled subscriptions whose period ended by now.
func (r *SubscriptionRepository) ListDue(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
        WHERE status IN (?, ?) AND current_period_end <= ?`,
		models.SubscriptionActive, models.SubscriptionCanceled, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (r *SubscriptionRepository) CountByPlan(ctx context.Context) (map[string]int, error) {
	return countGrouped(ctx, r.DB, `SELECT plan, COUNT(*) FROM subscriptions WHERE status <> ? GROUP BY plan`, models.SubscriptionExpired)
}
