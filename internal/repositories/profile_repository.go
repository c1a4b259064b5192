package repositories

import (
	"context"
	"database/sql"
	"errors"

	"doulitsa/internal/models"
)

type ProfileRepository struct {
	DB *sql.DB
}

const profileSelect = `
    SELECT p.id, p.user_id, u.username, p.type, p.display_name, p.tagline, p.bio, p.rate,
           p.category_id, c.slug, p.subcategory_id, sc.slug, p.skills, p.online, p.county_id,
           p.area_ids, p.phone, p.website, p.experience_years, p.avatar_url, p.cover_url,
           p.rating, p.reviews_count, p.verified, p.featured, p.published, p.created_at, p.updated_at
    FROM profiles p
    JOIN users u ON u.id = p.user_id
    JOIN categories c ON c.id = p.category_id
    JOIN subcategories sc ON sc.id = p.subcategory_id`

func scanProfile(s scanner) (models.Profile, error) {
	var (
		p       models.Profile
		rate    sql.NullFloat64
		county  sql.NullInt64
		skills  []byte
		areas   []byte
		avatar  sql.NullString
		cover   sql.NullString
		updated sql.NullTime
	)
	err := s.Scan(&p.ID, &p.UserID, &p.Username, &p.Type, &p.DisplayName, &p.Tagline, &p.Bio, &rate,
		&p.CategoryID, &p.CategorySlug, &p.SubcategoryID, &p.SubcategorySlug, &skills, &p.Online, &county,
		&areas, &p.Phone, &p.Website, &p.ExperienceYears, &avatar, &cover,
		&p.Rating, &p.ReviewsCount, &p.Verified, &p.Featured, &p.Published, &p.CreatedAt, &updated)
	if err != nil {
		return models.Profile{}, err
	}
	if rate.Valid {
		v := rate.Float64
		p.Rate = &v
	}
	if county.Valid {
		v := county.Int64
		p.CountyID = &v
	}
	if p.Skills, err = fromJSON[string](skills); err != nil {
		return models.Profile{}, err
	}
	if p.AreaIDs, err = fromJSON[int64](areas); err != nil {
		return models.Profile{}, err
	}
	p.AvatarURL = nullStringPtr(avatar)
	p.CoverURL = nullStringPtr(cover)
	p.UpdatedAt = nullTimePtr(updated)
	return p, nil
}

func (r *ProfileRepository) getOne(ctx context.Context, cond string, arg any) (models.Profile, error) {
	p, err := scanProfile(r.DB.QueryRowContext(ctx, profileSelect+` WHERE `+cond, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, models.ErrProfileNotFound
	}
	return p, err
}

func (r *ProfileRepository) GetByID(ctx context.Context, id int64) (models.Profile, error) {
	return r.getOne(ctx, "p.id = ?", id)
}

func (r *ProfileRepository) GetByUserID(ctx context.Context, userID int64) (models.Profile, error) {
	return r.getOne(ctx, "p.user_id = ?", userID)
}

// GetByUsername returns the profile of the named user when it is published
// and the user is not blocked.
func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (models.Profile, error) {
	return r.getOne(ctx, "u.username = ? AND p.published = TRUE AND u.blocked = FALSE", username)
}

// Upsert creates or replaces the profile owned by p.UserID.
func (r *ProfileRepository) Upsert(ctx context.Context, p models.Profile) (models.Profile, error) {
	skills, err := toJSON(p.Skills)
	if err != nil {
		return models.Profile{}, err
	}
	areas, err := toJSON(p.AreaIDs)
	if err != nil {
		return models.Profile{}, err
	}

	_, err = r.DB.ExecContext(ctx, `
        INSERT INTO profiles (user_id, type, display_name, tagline, bio, rate, category_id, subcategory_id,
                              skills, online, county_id, area_ids, phone, website, experience_years, published, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, UTC_TIMESTAMP())
        ON DUPLICATE KEY UPDATE
            type = VALUES(type), display_name = VALUES(display_name), tagline = VALUES(tagline),
            bio = VALUES(bio), rate = VALUES(rate), category_id = VALUES(category_id),
            subcategory_id = VALUES(subcategory_id), skills = VALUES(skills), online = VALUES(online),
            county_id = VALUES(county_id), area_ids = VALUES(area_ids), phone = VALUES(phone),
            website = VALUES(website), experience_years = VALUES(experience_years),
            published = VALUES(published), updated_at = UTC_TIMESTAMP()`,
		p.UserID, p.Type, p.DisplayName, p.Tagline, p.Bio, p.Rate, p.CategoryID, p.SubcategoryID,
		skills, p.Online, p.CountyID, areas, p.Phone, p.Website, p.ExperienceYears, p.Published,
	)
	if err != nil {
		if isForeignKeyConstraintError(err) {
			return models.Profile{}, models.ErrCategoryNotFound
		}
		return models.Profile{}, err
	}
	return r.GetByUserID(ctx, p.UserID)
}

func (r *ProfileRepository) List(ctx context.Context, f models.ProfileFilter, publicOnly bool) ([]models.Profile, int, error) {
	page, limit := models.NormalizePage(f.Page, f.Limit)

	var w where
	if publicOnly {
		w.add("p.published = TRUE AND u.blocked = FALSE")
	}
	if f.Category != "" {
		w.add("c.slug = ?", f.Category)
	}
	if f.Subcategory != "" {
		w.add("sc.slug = ?", f.Subcategory)
	}
	if f.CountyID > 0 {
		w.add("(p.county_id = ? OR p.online = TRUE)", f.CountyID)
	}
	if f.Type != "" {
		w.add("p.type = ?", f.Type)
	}
	if f.Online != nil {
		w.add("p.online = ?", *f.Online)
	}
	if f.Verified != nil {
		w.add("p.verified = ?", *f.Verified)
	}
	if f.Search != "" {
		pat := likePattern(f.Search)
		w.add("(p.display_name LIKE ? OR p.tagline LIKE ?)", pat, pat)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM profiles p JOIN users u ON u.id = p.user_id
        JOIN categories c ON c.id = p.category_id JOIN subcategories sc ON sc.id = p.subcategory_id` + w.String()
	if err := r.DB.QueryRowContext(ctx, countQuery, w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args := append(append([]any{}, w.args...), limit, models.Offset(page, limit))
	rows, err := r.DB.QueryContext(ctx, profileSelect+w.String()+` ORDER BY p.featured DESC, `+profileOrder(f.Sort)+` LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func profileOrder(sort string) string {
	switch sort {
	case "rating":
		return "p.rating DESC, p.reviews_count DESC, p.id DESC"
	case "reviews":
		return "p.reviews_count DESC, p.rating DESC, p.id DESC"
	case "rate_asc":
		return "p.rate IS NULL, p.rate ASC, p.id DESC"
	case "rate_desc":
		return "p.rate DESC, p.id DESC"
	}
	return "p.created_at DESC, p.id DESC"
}

func (r *ProfileRepository) ListByIDs(ctx context.Context, ids []int64) ([]models.Profile, error) {
	if len(ids) == 0 {
		return []models.Profile{}, nil
	}
	rows, err := r.DB.QueryContext(ctx, profileSelect+` WHERE p.id IN (`+placeholders(len(ids))+`) AND p.published = TRUE AND u.blocked = FALSE ORDER BY p.id DESC`, int64Args(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProfileRepository) update(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrProfileNotFound
	}
	return nil
}

func (r *ProfileRepository) SetAvatar(ctx context.Context, id int64, url string) error {
	return r.update(ctx, `UPDATE profiles SET avatar_url = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`, url, id)
}

func (r *ProfileRepository) SetCover(ctx context.Context, id int64, url string) error {
	return r.update(ctx, `UPDATE profiles SET cover_url = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`, url, id)
}

func (r *ProfileRepository) SetVerified(ctx context.Context, id int64, verified bool) error {
	return r.update(ctx, `UPDATE profiles SET verified = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`, verified, id)
}

func (r *ProfileRepository) SetFeatured(ctx context.Context, id int64, featured bool) error {
	return r.update(ctx, `UPDATE profiles SET featured = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`, featured, id)
}

// UnfeatureUser clears the featured flag of the user's profile, if any.
func (r *ProfileRepository) UnfeatureUser(ctx context.Context, userID int64) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE profiles SET featured = FALSE WHERE user_id = ? AND featured = TRUE`, userID)
	return err
}

// RefreshRating recomputes the denormalised rating from the reviews table.
func (r *ProfileRepository) RefreshRating(ctx context.Context, id int64) (models.RatingSummary, error) {
	var sum models.RatingSummary
	err := r.DB.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(rating), 0), COUNT(*) FROM reviews WHERE profile_id = ?`, id).
		Scan(&sum.Average, &sum.Count)
	if err != nil {
		return sum, err
	}
	_, err = r.DB.ExecContext(ctx, `UPDATE profiles SET rating = ?, reviews_count = ? WHERE id = ?`, sum.Average, sum.Count, id)
	return sum, err
}

func (r *ProfileRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&n)
	return n, err
}


func (r *ProfileRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM profiles WHERE id = ?)`, id).Scan(&exists)
	return exists, err
}
