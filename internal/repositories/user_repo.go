package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"doulitsa/internal/models"
)

type UserRepository struct {
	DB *sql.DB
}

const userColumns = `id, email, username, display_name, phone, password_hash, role, confirmed, blocked, google_sub, last_login_at, created_at, updated_at`

func scanUser(s scanner) (models.User, error) {
	var (
		u         models.User
		googleSub sql.NullString
		lastLogin sql.NullTime
		updated   sql.NullTime
	)
	err := s.Scan(&u.ID, &u.Email, &u.Username, &u.DisplayName, &u.Phone, &u.PasswordHash,
		&u.Role, &u.Confirmed, &u.Blocked, &googleSub, &lastLogin, &u.CreatedAt, &updated)
	if err != nil {
		return models.User{}, err
	}
	u.GoogleSub = nullStringPtr(googleSub)
	u.LastLoginAt = nullTimePtr(lastLogin)
	u.UpdatedAt = nullTimePtr(updated)
	return u, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	query := `
        INSERT INTO users (email, username, display_name, phone, password_hash, role, confirmed, google_sub, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	user.CreatedAt = time.Now().UTC()
	result, err := r.DB.ExecContext(ctx, query,
		user.Email, user.Username, user.DisplayName, user.Phone, user.PasswordHash,
		user.Role, user.Confirmed, user.GoogleSub, user.CreatedAt,
	)
	if err != nil {
		switch {
		case isDuplicateKey(err, "uq_users_email"):
			return models.User{}, models.ErrDuplicateEmail
		case isDuplicateKey(err, "uq_users_username"):
			return models.User{}, models.ErrDuplicateUsername
		}
		return models.User{}, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return models.User{}, err
	}
	user.ID = id
	return user, nil
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (models.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, models.ErrUserNotFound
	}
	return user, err
}

func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return r.getOne(ctx, "email = ?", email)
}

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return r.getOne(ctx, "username = ?", username)
}

func (r *UserRepository) GetUserByGoogleSub(ctx context.Context, sub string) (models.User, error) {
	return r.getOne(ctx, "google_sub = ?", sub)
}

// GetUsersByIDs returns the users found, keyed by id.
func (r *UserRepository) GetUsersByIDs(ctx context.Context, ids []int64) (map[int64]models.User, error) {
	out := make(map[int64]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders(len(ids))+`)`, int64Args(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, username).Scan(&exists)
	return exists, err
}

func (r *UserRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) SetConfirmed(ctx context.Context, id int64) error {
	return r.exec(ctx, `UPDATE users SET confirmed = TRUE, updated_at = UTC_TIMESTAMP() WHERE id = ?`, id)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return r.exec(ctx, `UPDATE users SET password_hash = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`, hash, id)
}

func (r *UserRepository) UpdateAccount(ctx context.Context, id int64, displayName, phone string) error {
	return r.exec(ctx, `UPDATE users SET display_name = ?, phone = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`, displayName, phone, id)
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	return r.exec(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, at.UTC(), id)
}

func (r *UserRepository) LinkGoogle(ctx context.Context, id int64, sub string) error {
	return r.exec(ctx, `UPDATE users SET google_sub = ?, confirmed = TRUE, updated_at = UTC_TIMESTAMP() WHERE id = ?`, sub, id)
}

func (r *UserRepository) SetRole(ctx context.Context, id int64, role string) error {
	return r.exec(ctx, `UPDATE users SET role = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`, role, id)
}

func (r *UserRepository) SetBlocked(ctx context.Context, id int64, blocked bool) error {
	return r.exec(ctx, `UPDATE users SET blocked = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`, blocked, id)
}

// DeleteUser removes the account; sessions, profile, services, reviews and
// saved items go with it through foreign keys.
func (r *UserRepository) DeleteUser(ctx context.Context, id int64) error {
	return r.exec(ctx, `DELETE FROM users WHERE id = ?`, id)
}

func (r *UserRepository) ListUsers(ctx context.Context, f models.UserFilter) ([]models.User, int, error) {
	page, limit := models.NormalizePage(f.Page, f.Limit)

	var w where
	if f.Search != "" {
		p := likePattern(f.Search)
		w.add("(email LIKE ? OR username LIKE ? OR display_name LIKE ?)", p, p, p)
	}
	if f.Role != "" {
		w.add("role = ?", f.Role)
	}
	if f.Blocked != nil {
		w.add("blocked = ?", *f.Blocked)
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args := append(append([]any{}, w.args...), limit, models.Offset(page, limit))
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users`+w.String()+` ORDER BY id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (r *UserRepository) CreateSession(ctx context.Context, s models.Session) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO sessions (user_id, refresh_token, expires_at, created_at) VALUES (?, ?, ?, UTC_TIMESTAMP())`,
		s.UserID, s.RefreshToken, s.ExpiresAt.UTC())
	return err
}

// GetSessionByToken returns the session with the owner's current role.
func (r *UserRepository) GetSessionByToken(ctx context.Context, token string) (models.Session, error) {
	var s models.Session
	err := r.DB.QueryRowContext(ctx, `
        SELECT s.user_id, u.role, s.refresh_token, s.expires_at
        FROM sessions s
        JOIN users u ON u.id = s.user_id
        WHERE s.refresh_token = ? AND u.blocked = FALSE`, token).
		Scan(&s.UserID, &s.Role, &s.RefreshToken, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, models.ErrSessionNotFound
	}
	return s, err
}

func (r *UserRepository) DeleteSession(ctx context.Context, token string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE refresh_token = ?`, token)
	return err
}

func (r *UserRepository) DeleteUserSessions(ctx context.Context, userID int64) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	return err
}

func (r *UserRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CreateCode stores a verification code and retires earlier unused codes of
// the same purpose.
func (r *UserRepository) CreateCode(ctx context.Context, c models.VerificationCode) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE verification_codes SET used_at = UTC_TIMESTAMP() WHERE user_id = ? AND purpose = ? AND used_at IS NULL`,
			c.UserID, c.Purpose); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO verification_codes (user_id, purpose, code, expires_at) VALUES (?, ?, ?, ?)`,
			c.UserID, c.Purpose, c.Code, c.ExpiresAt.UTC())
		return err
	})
}

// GetActiveCode returns the unused, unexpired code matching code.
func (r *UserRepository) GetActiveCode(ctx context.Context, userID int64, purpose, code string, now time.Time) (models.VerificationCode, error) {
	var c models.VerificationCode
	err := r.DB.QueryRowContext(ctx, `
        SELECT id, user_id, purpose, code, expires_at
        FROM verification_codes
        WHERE user_id = ? AND purpose = ? AND code = ? AND used_at IS NULL AND expires_at > ?
        ORDER BY id DESC LIMIT 1`, userID, purpose, code, now.UTC()).
		Scan(&c.ID, &c.UserID, &c.Purpose, &c.Code, &c.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.VerificationCode{}, models.ErrCodeNotFound
	}
	return c, err
}

func (r *UserRepository) MarkCodeUsed(ctx context.Context, id int64) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE verification_codes SET used_at = UTC_TIMESTAMP() WHERE id = ?`, id)
	return err
}

func (r *UserRepository) DeleteExpiredCodes(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM verification_codes WHERE expires_at <= ? OR used_at IS NOT NULL`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountUsers returns the total and blocked user counts.
func (r *UserRepository) CountUsers(ctx context.Context) (total, blocked int, err error) {
	err = r.DB.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(blocked), 0) FROM users`).Scan(&total, &blocked)
	return total, blocked, err
}
