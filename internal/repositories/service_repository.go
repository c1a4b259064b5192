package repositories

import (
	"context"
	"database/sql"
	"errors"

	"doulitsa/internal/fsm"
	"doulitsa/internal/models"
)

type ServiceRepository struct {
	DB *sql.DB
}

const serviceSelect = `
    SELECT s.id, s.profile_id, s.user_id, s.title, s.slug, s.description, s.price, s.fixed_price,
           s.duration_days, s.online, s.category_id, s.subcategory_id, s.subdivision_id,
           c.slug, sc.slug, sd.slug, s.tags, s.addons, s.faq, s.images, s.status, s.rejection_reason,
           s.rating, s.reviews_count, s.created_at, s.updated_at, s.published_at,
           p.id, u.username, p.display_name, p.avatar_url, p.rating, p.reviews_count, p.verified
    FROM services s
    JOIN profiles p ON p.id = s.profile_id
    JOIN users u ON u.id = s.user_id
    JOIN categories c ON c.id = s.category_id
    JOIN subcategories sc ON sc.id = s.subcategory_id
    JOIN subdivisions sd ON sd.id = s.subdivision_id`

const serviceFrom = `
    FROM services s
    JOIN profiles p ON p.id = s.profile_id
    JOIN users u ON u.id = s.user_id
    JOIN categories c ON c.id = s.category_id
    JOIN subcategories sc ON sc.id = s.subcategory_id
    JOIN subdivisions sd ON sd.id = s.subdivision_id`

func scanService(sc scanner) (models.Service, error) {
	var (
		s                        models.Service
		brief                    models.ProfileBrief
		duration                 sql.NullInt64
		tags, addons, faq, image []byte
		reason, avatar           sql.NullString
		updated, published       sql.NullTime
	)
	err := sc.Scan(&s.ID, &s.ProfileID, &s.UserID, &s.Title, &s.Slug, &s.Description, &s.Price, &s.FixedPrice,
		&duration, &s.Online, &s.CategoryID, &s.SubcategoryID, &s.SubdivisionID,
		&s.CategorySlug, &s.SubcategorySlug, &s.SubdivisionSlug, &tags, &addons, &faq, &image, &s.Status, &reason,
		&s.Rating, &s.ReviewsCount, &s.CreatedAt, &updated, &published,
		&brief.ID, &brief.Username, &brief.DisplayName, &avatar, &brief.Rating, &brief.ReviewsCount, &brief.Verified)
	if err != nil {
		return models.Service{}, err
	}
	if duration.Valid {
		d := int(duration.Int64)
		s.DurationDays = &d
	}
	if s.Tags, err = fromJSON[string](tags); err != nil {
		return models.Service{}, err
	}
	if s.Addons, err = fromJSON[models.ServiceAddon](addons); err != nil {
		return models.Service{}, err
	}
	if s.FAQ, err = fromJSON[models.ServiceFAQ](faq); err != nil {
		return models.Service{}, err
	}
	if s.Images, err = fromJSON[models.Image](image); err != nil {
		return models.Service{}, err
	}
	s.RejectionReason = nullStringPtr(reason)
	s.UpdatedAt = nullTimePtr(updated)
	s.PublishedAt = nullTimePtr(published)
	brief.AvatarURL = nullStringPtr(avatar)
	s.Profile = &brief
	return s, nil
}

func scanServices(rows *sql.Rows) ([]models.Service, error) {
	defer rows.Close()
	var out []models.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type serviceColumns struct {
	tags, addons, faq, images string
}

func encodeServiceColumns(s models.Service) (serviceColumns, error) {
	var (
		c   serviceColumns
		err error
	)
	if c.tags, err = toJSON(s.Tags); err != nil {
		return c, err
	}
	if c.addons, err = toJSON(s.Addons); err != nil {
		return c, err
	}
	if c.faq, err = toJSON(s.FAQ); err != nil {
		return c, err
	}
	if c.images, err = toJSON(s.Images); err != nil {
		return c, err
	}
	return c, nil
}

func (r *ServiceRepository) CreateService(ctx context.Context, s models.Service) (models.Service, error) {
	cols, err := encodeServiceColumns(s)
	if err != nil {
		return models.Service{}, err
	}
	res, err := r.DB.ExecContext(ctx, `
        INSERT INTO services (profile_id, user_id, title, slug, description, price, fixed_price, duration_days,
                              online, category_id, subcategory_id, subdivision_id, tags, addons, faq, images,
                              status, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, UTC_TIMESTAMP())`,
		s.ProfileID, s.UserID, s.Title, s.Slug, s.Description, s.Price, s.FixedPrice, s.DurationDays,
		s.Online, s.CategoryID, s.SubcategoryID, s.SubdivisionID, cols.tags, cols.addons, cols.faq, cols.images,
		s.Status,
	)
	if err != nil {
		switch {
		case isDuplicateKey(err, "uq_services_slug"):
			return models.Service{}, models.ErrDuplicateSlug
		case isForeignKeyConstraintError(err):
			return models.Service{}, models.ErrCategoryNotFound
		}
		return models.Service{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Service{}, err
	}
	return r.GetServiceByID(ctx, id)
}

// UpdateService writes the editable fields and moves the service from
// fromStatus to s.Status in one transaction.
func (r *ServiceRepository) UpdateService(ctx context.Context, s models.Service, fromStatus string) (models.Service, error) {
	cols, err := encodeServiceColumns(s)
	if err != nil {
		return models.Service{}, err
	}
	err = withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if err := fsm.Services.Apply(ctx, tx, s.ID, fromStatus, s.Status); err != nil {
			return err
		}
		// The status guard covers edits that keep the status, where Apply
		// writes nothing. ClientFoundRows makes matched rows count.
		res, err := tx.ExecContext(ctx, `
            UPDATE services
            SET title = ?, description = ?, price = ?, fixed_price = ?, duration_days = ?, online = ?,
                category_id = ?, subcategory_id = ?, subdivision_id = ?, tags = ?, addons = ?, faq = ?,
                images = ?, rejection_reason = NULL, updated_at = UTC_TIMESTAMP()
            WHERE id = ? AND status = ?`,
			s.Title, s.Description, s.Price, s.FixedPrice, s.DurationDays, s.Online,
			s.CategoryID, s.SubcategoryID, s.SubdivisionID, cols.tags, cols.addons, cols.faq,
			cols.images, s.ID, s.Status)
		if isForeignKeyConstraintError(err) {
			return models.ErrCategoryNotFound
		}
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return models.ErrStatusChanged
		}
		return nil
	})
	if err != nil {
		return models.Service{}, err
	}
	return r.GetServiceByID(ctx, s.ID)
}

// TransitionStatus moves a service between statuses. Publishing stamps
// published_at; rejecting stores the reason.
func (r *ServiceRepository) TransitionStatus(ctx context.Context, id int64, from, to string, reason *string) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if err := fsm.Services.Apply(ctx, tx, id, from, to); err != nil {
			return err
		}
		switch to {
		case models.ServiceStatusPublished:
			_, err := tx.ExecContext(ctx,
				`UPDATE services SET published_at = COALESCE(published_at, UTC_TIMESTAMP()), rejection_reason = NULL WHERE id = ?`, id)
			return err
		case models.ServiceStatusRejected:
			_, err := tx.ExecContext(ctx, `UPDATE services SET rejection_reason = ? WHERE id = ?`, reason, id)
			return err
		}
		return nil
	})
}

func (r *ServiceRepository) getOne(ctx context.Context, cond string, arg any) (models.Service, error) {
	s, err := scanService(r.DB.QueryRowContext(ctx, serviceSelect+` WHERE `+cond, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Service{}, models.ErrServiceNotFound
	}
	return s, err
}

func (r *ServiceRepository) GetServiceByID(ctx context.Context, id int64) (models.Service, error) {
	return r.getOne(ctx, "s.id = ?", id)
}

func (r *ServiceRepository) GetServiceBySlug(ctx context.Context, slug string) (models.Service, error) {
	return r.getOne(ctx, "s.slug = ?", slug)
}

func (r *ServiceRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM services WHERE slug = ?)`, slug).Scan(&exists)
	return exists, err
}

// ListServices pages through services. Public listings only show published
// services of users that are not blocked.
func (r *ServiceRepository) ListServices(ctx context.Context, f models.ServiceFilter, publicOnly bool) ([]models.Service, int, error) {
	page, limit := models.NormalizePage(f.Page, f.Limit)

	var w where
	if publicOnly {
		w.add("s.status = ? AND u.blocked = FALSE", models.ServiceStatusPublished)
	} else if f.Status != "" {
		w.add("s.status = ?", f.Status)
	}
	if f.Category != "" {
		w.add("c.slug = ?", f.Category)
	}
	if f.Subcategory != "" {
		w.add("sc.slug = ?", f.Subcategory)
	}
	if f.Subdivision != "" {
		w.add("sd.slug = ?", f.Subdivision)
	}
	if f.ProfileID > 0 {
		w.add("s.profile_id = ?", f.ProfileID)
	}
	if f.PriceMin > 0 {
		w.add("s.price >= ?", f.PriceMin)
	}
	if f.PriceMax > 0 {
		w.add("s.price <= ?", f.PriceMax)
	}
	if f.Online != nil {
		w.add("s.online = ?", *f.Online)
	}
	if f.Search != "" {
		pat := likePattern(f.Search)
		w.add("(s.title LIKE ? OR s.description LIKE ? OR JSON_SEARCH(s.tags, 'one', ?) IS NOT NULL)", pat, pat, f.Search)
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*)`+serviceFrom+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args := append(append([]any{}, w.args...), limit, models.Offset(page, limit))
	rows, err := r.DB.QueryContext(ctx, serviceSelect+w.String()+` ORDER BY `+serviceOrder(f.Sort)+` LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := scanServices(rows)
	return items, total, err
}

func serviceOrder(sort string) string {
	switch sort {
	case "price_asc":
		return "s.price ASC, s.id DESC"
	case "price_desc":
		return "s.price DESC, s.id DESC"
	case "rating":
		return "s.rating DESC, s.reviews_count DESC, s.id DESC"
	case "reviews":
		return "s.reviews_count DESC, s.rating DESC, s.id DESC"
	}
	return "COALESCE(s.published_at, s.created_at) DESC, s.id DESC"
}

func (r *ServiceRepository) ListServicesByUser(ctx context.Context, userID int64) ([]models.Service, error) {
	rows, err := r.DB.QueryContext(ctx, serviceSelect+` WHERE s.user_id = ? ORDER BY s.created_at DESC, s.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	return scanServices(rows)
}

// ListServicesByIDs returns the published services among ids.
func (r *ServiceRepository) ListServicesByIDs(ctx context.Context, ids []int64) ([]models.Service, error) {
	if len(ids) == 0 {
		return []models.Service{}, nil
	}
	args := append(int64Args(ids), models.ServiceStatusPublished)
	rows, err := r.DB.QueryContext(ctx, serviceSelect+` WHERE s.id IN (`+placeholders(len(ids))+`) AND s.status = ? ORDER BY s.id DESC`, args...)
	if err != nil {
		return nil, err
	}
	return scanServices(rows)
}

// CountActiveListings counts services that hold a plan slot.
func (r *ServiceRepository) CountActiveListings(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM services WHERE user_id = ? AND status IN (?, ?, ?)`,
		userID, models.ServiceStatusPending, models.ServiceStatusPublished, models.ServiceStatusInactive).Scan(&n)
	return n, err
}

// PublishedIDsByUser returns the user's published services, newest first.
func (r *ServiceRepository) PublishedIDsByUser(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id FROM services WHERE user_id = ? AND status = ? ORDER BY COALESCE(published_at, created_at) DESC, id DESC`,
		userID, models.ServiceStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RefreshRating recomputes the denormalised rating from the reviews table.
func (r *ServiceRepository) RefreshRating(ctx context.Context, id int64) (models.RatingSummary, error) {
	var sum models.RatingSummary
	err := r.DB.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(rating), 0), COUNT(*) FROM reviews WHERE service_id = ?`, id).
		Scan(&sum.Average, &sum.Count)
	if err != nil {
		return sum, err
	}
	_, err = r.DB.ExecContext(ctx, `UPDATE services SET rating = ?, reviews_count = ? WHERE id = ?`, sum.Average, sum.Count, id)
	return sum, err
}

func (r *ServiceRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	return countGrouped(ctx, r.DB, `SELECT status, COUNT(*) FROM services GROUP BY status`)
}

func countGrouped(ctx context.Context, db *sql.DB, query string, args ...any) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		out[key] = n
	}
	return out, rows.Err()
}

// Exists is used by reports to check their target.
func (r *ServiceRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM services WHERE id = ?)`, id).Scan(&exists)
	return exists, err
}

