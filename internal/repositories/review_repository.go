package repositories

import (
	"context"
	"database/sql"
	"errors"

	"doulitsa/internal/models"
)

type ReviewRepository struct {
	DB *sql.DB
}

const reviewSelect = `
    SELECT r.id, r.service_id, r.profile_id, r.user_id, r.rating, r.comment, r.verified,
           u.display_name, u.username, s.title, r.created_at, r.updated_at
    FROM reviews r
    JOIN users u ON u.id = r.user_id
    JOIN services s ON s.id = r.service_id`

func scanReview(s scanner) (models.Review, error) {
	var (
		rv      models.Review
		updated sql.NullTime
	)
	err := s.Scan(&rv.ID, &rv.ServiceID, &rv.ProfileID, &rv.UserID, &rv.Rating, &rv.Comment, &rv.Verified,
		&rv.AuthorName, &rv.AuthorUsername, &rv.ServiceTitle, &rv.CreatedAt, &updated)
	if err != nil {
		return models.Review{}, err
	}
	rv.UpdatedAt = nullTimePtr(updated)
	return rv, nil
}

func (r *ReviewRepository) CreateReview(ctx context.Context, rv models.Review) (models.Review, error) {
	res, err := r.DB.ExecContext(ctx, `
        INSERT INTO reviews (service_id, profile_id, user_id, rating, comment, verified, created_at)
        VALUES (?, ?, ?, ?, ?, ?, UTC_TIMESTAMP())`,
		rv.ServiceID, rv.ProfileID, rv.UserID, rv.Rating, rv.Comment, rv.Verified)
	if err != nil {
		if isDuplicateKey(err, "uq_reviews_user_service") {
			return models.Review{}, models.ErrAlreadyReviewed
		}
		return models.Review{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Review{}, err
	}
	return r.GetReviewByID(ctx, id)
}

func (r *ReviewRepository) GetReviewByID(ctx context.Context, id int64) (models.Review, error) {
	rv, err := scanReview(r.DB.QueryRowContext(ctx, reviewSelect+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Review{}, models.ErrReviewNotFound
	}
	return rv, err
}

func (r *ReviewRepository) UpdateReview(ctx context.Context, id int64, rating int, comment string) (models.Review, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE reviews SET rating = ?, comment = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`, rating, comment, id)
	if err != nil {
		return models.Review{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return models.Review{}, err
	} else if n == 0 {
		return models.Review{}, models.ErrReviewNotFound
	}
	return r.GetReviewByID(ctx, id)
}

func (r *ReviewRepository) DeleteReview(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrReviewNotFound
	}
	return nil
}

func (r *ReviewRepository) list(ctx context.Context, column string, id int64, page, limit int) ([]models.Review, int, error) {
	page, limit = models.NormalizePage(page, limit)

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews r WHERE r.`+column+` = ?`, id).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.QueryContext(ctx, reviewSelect+` WHERE r.`+column+` = ? ORDER BY r.created_at DESC, r.id DESC LIMIT ? OFFSET ?`,
		id, limit, models.Offset(page, limit))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rv)
	}
	return out, total, rows.Err()
}

func (r *ReviewRepository) ListByService(ctx context.Context, serviceID int64, page, limit int) ([]models.Review, int, error) {
	return r.list(ctx, "service_id", serviceID, page, limit)
}

func (r *ReviewRepository) ListByProfile(ctx context.Context, profileID int64, page, limit int) ([]models.Review, int, error) {
	return r.list(ctx, "profile_id", profileID, page, limit)
}

// TargetsByAuthor lists the distinct services and profiles the user reviewed.
func (r *ReviewRepository) TargetsByAuthor(ctx context.Context, userID int64) ([]models.ReviewTarget, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT DISTINCT service_id, profile_id FROM reviews WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ReviewTarget
	for rows.Next() {
		var t models.ReviewTarget
		if err := rows.Scan(&t.ServiceID, &t.ProfileID); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *ReviewRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM reviews WHERE id = ?)`, id).Scan(&exists)
	return exists, err
}

func (r *ReviewRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews`).Scan(&n)
	return n, err
}
