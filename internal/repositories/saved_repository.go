package repositories

import (
	"context"
	"database/sql"

	"doulitsa/internal/models"
)

type SavedRepository struct {
	DB *sql.DB
}

// Save is idempotent.
func (r *SavedRepository) Save(ctx context.Context, userID int64, kind string, targetID int64) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT IGNORE INTO saved_items (user_id, kind, target_id, created_at) VALUES (?, ?, ?, UTC_TIMESTAMP())`,
		userID, kind, targetID)
	return err
}

func (r *SavedRepository) Remove(ctx context.Context, userID int64, kind string, targetID int64) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM saved_items WHERE user_id = ? AND kind = ? AND target_id = ?`,
		userID, kind, targetID)
	return err
}

func (r *SavedRepository) IsSaved(ctx context.Context, userID int64, kind string, targetID int64) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM saved_items WHERE user_id = ? AND kind = ? AND target_id = ?)`,
		userID, kind, targetID).Scan(&exists)
	return exists, err
}

func (r *SavedRepository) IDs(ctx context.Context, userID int64) (models.SavedIDs, error) {
	ids := models.SavedIDs{Services: []int64{}, Profiles: []int64{}}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT kind, target_id FROM saved_items WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return ids, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind string
			id   int64
		)
		if err := rows.Scan(&kind, &id); err != nil {
			return ids, err
		}
		switch kind {
		case models.SavedKindService:
			ids.Services = append(ids.Services, id)
		case models.SavedKindProfile:
			ids.Profiles = append(ids.Profiles, id)
		}
	}
	return ids, rows.Err()
}
