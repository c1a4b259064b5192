package repositories

import (
	"context"
	"database/sql"

	"doulitsa/internal/models"
)

type DeviceRepository struct {
	DB *sql.DB
}

// Register binds token to the user, moving it over if another account held it.
func (r *DeviceRepository) Register(ctx context.Context, d models.DeviceToken) error {
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO device_tokens (user_id, token, platform, created_at) VALUES (?, ?, ?, UTC_TIMESTAMP())
        ON DUPLICATE KEY UPDATE user_id = VALUES(user_id), platform = VALUES(platform)`,
		d.UserID, d.Token, d.Platform)
	return err
}

func (r *DeviceRepository) Unregister(ctx context.Context, userID int64, token string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM device_tokens WHERE user_id = ? AND token = ?`, userID, token)
	return err
}

func (r *DeviceRepository) DeleteToken(ctx context.Context, token string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM device_tokens WHERE token = ?`, token)
	return err
}

func (r *DeviceRepository) TokensByUser(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT token FROM device_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
