package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"doulitsa/internal/models"
)

// Taxonomy levels accepted by the generic node operations.
const (
	LevelCategory    = "categories"
	LevelSubcategory = "subcategories"
	LevelSubdivision = "subdivisions"
)

var parentColumn = map[string]string{
	LevelCategory:    "",
	LevelSubcategory: "category_id",
	LevelSubdivision: "subcategory_id",
}

type TaxonomyRepository struct {
	DB *sql.DB
}

func (r *TaxonomyRepository) Tree(ctx context.Context) (models.Taxonomy, error) {
	var tax models.Taxonomy

	cats, err := r.listCategories(ctx)
	if err != nil {
		return tax, err
	}
	subs, err := r.listSubcategories(ctx)
	if err != nil {
		return tax, err
	}
	divs, err := r.listSubdivisions(ctx)
	if err != nil {
		return tax, err
	}

	divsBySub := make(map[int64][]models.Subdivision)
	for _, d := range divs {
		divsBySub[d.SubcategoryID] = append(divsBySub[d.SubcategoryID], d)
	}
	subsByCat := make(map[int64][]models.Subcategory)
	for _, s := range subs {
		s.Subdivisions = divsBySub[s.ID]
		subsByCat[s.CategoryID] = append(subsByCat[s.CategoryID], s)
	}
	for i := range cats {
		cats[i].Subcategories = subsByCat[cats[i].ID]
	}
	tax.Categories = cats

	counties, err := r.listCounties(ctx)
	if err != nil {
		return tax, err
	}
	tax.Counties = counties
	return tax, nil
}

func (r *TaxonomyRepository) listCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, name, slug, description, icon, position FROM categories ORDER BY position, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.Icon, &c.Position); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *TaxonomyRepository) listSubcategories(ctx context.Context) ([]models.Subcategory, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, category_id, name, slug, position FROM subcategories ORDER BY position, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Subcategory
	for rows.Next() {
		var s models.Subcategory
		if err := rows.Scan(&s.ID, &s.CategoryID, &s.Name, &s.Slug, &s.Position); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *TaxonomyRepository) listSubdivisions(ctx context.Context) ([]models.Subdivision, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, subcategory_id, name, slug, position FROM subdivisions ORDER BY position, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Subdivision
	for rows.Next() {
		var d models.Subdivision
		if err := rows.Scan(&d.ID, &d.SubcategoryID, &d.Name, &d.Slug, &d.Position); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *TaxonomyRepository) listCounties(ctx context.Context) ([]models.County, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT c.id, c.name, c.slug, a.id, a.name, a.slug
        FROM counties c
        LEFT JOIN areas a ON a.county_id = c.id
        ORDER BY c.name, a.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.County{}
	index := make(map[int64]int)
	for rows.Next() {
		var (
			c                  models.County
			areaID             sql.NullInt64
			areaName, areaSlug sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &areaID, &areaName, &areaSlug); err != nil {
			return nil, err
		}
		i, ok := index[c.ID]
		if !ok {
			out = append(out, c)
			i = len(out) - 1
			index[c.ID] = i
		}
		if areaID.Valid {
			out[i].Areas = append(out[i].Areas, models.Area{
				ID: areaID.Int64, CountyID: c.ID, Name: areaName.String, Slug: areaSlug.String,
			})
		}
	}
	return out, rows.Err()
}

// Parent returns the parent id of a subcategory or subdivision node. It
// returns models.ErrCategoryNotFound when the node does not exist.
func (r *TaxonomyRepository) Parent(ctx context.Context, level string, id int64) (int64, error) {
	col, ok := parentColumn[level]
	if !ok || col == "" {
		return 0, fmt.Errorf("taxonomy level %q has no parent", level)
	}
	var parent int64
	err := r.DB.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, col, level), id).Scan(&parent)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, models.ErrCategoryNotFound
	}
	return parent, err
}

func (r *TaxonomyRepository) Exists(ctx context.Context, level string, id int64) (bool, error) {
	if _, ok := parentColumn[level]; !ok {
		return false, fmt.Errorf("unknown taxonomy level %q", level)
	}
	var exists bool
	err := r.DB.QueryRowContext(ctx, fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id = ?)`, level), id).Scan(&exists)
	return exists, err
}

// SlugExists checks uniqueness of slug among siblings under parentID.
func (r *TaxonomyRepository) SlugExists(ctx context.Context, level string, parentID int64, slug string, excludeID int64) (bool, error) {
	col, ok := parentColumn[level]
	if !ok {
		return false, fmt.Errorf("unknown taxonomy level %q", level)
	}
	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE slug = ? AND id <> ?`, level)
	args := []any{slug, excludeID}
	if col != "" {
		query += fmt.Sprintf(` AND %s = ?`, col)
		args = append(args, parentID)
	}
	query += `)`

	var exists bool
	err := r.DB.QueryRowContext(ctx, query, args...).Scan(&exists)
	return exists, err
}

// CreateNode inserts a category, subcategory or subdivision and returns its id.
func (r *TaxonomyRepository) CreateNode(ctx context.Context, level string, req models.TaxonomyRequest) (int64, error) {
	var (
		res sql.Result
		err error
	)
	switch level {
	case LevelCategory:
		res, err = r.DB.ExecContext(ctx,
			`INSERT INTO categories (name, slug, description, icon, position) VALUES (?, ?, ?, ?, ?)`,
			req.Name, req.Slug, req.Description, req.Icon, req.Position)
	case LevelSubcategory, LevelSubdivision:
		res, err = r.DB.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (%s, name, slug, position) VALUES (?, ?, ?, ?)`, level, parentColumn[level]),
			req.ParentID, req.Name, req.Slug, req.Position)
	default:
		return 0, fmt.Errorf("unknown taxonomy level %q", level)
	}
	if err != nil {
		switch {
		case isDuplicateKey(err, ""):
			return 0, models.ErrDuplicateSlug
		case isForeignKeyConstraintError(err):
			return 0, models.ErrCategoryNotFound
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (r *TaxonomyRepository) UpdateNode(ctx context.Context, level string, id int64, req models.TaxonomyRequest) error {
	var (
		res sql.Result
		err error
	)
	switch level {
	case LevelCategory:
		res, err = r.DB.ExecContext(ctx,
			`UPDATE categories SET name = ?, slug = ?, description = ?, icon = ?, position = ? WHERE id = ?`,
			req.Name, req.Slug, req.Description, req.Icon, req.Position, id)
	case LevelSubcategory, LevelSubdivision:
		res, err = r.DB.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET name = ?, slug = ?, position = ? WHERE id = ?`, level),
			req.Name, req.Slug, req.Position, id)
	default:
		return fmt.Errorf("unknown taxonomy level %q", level)
	}
	if err != nil {
		if isDuplicateKey(err, "") {
			return models.ErrDuplicateSlug
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrCategoryNotFound
	}
	return nil
}

// DeleteNode removes a node and its children. Nodes still referenced by
// profiles or services cannot be removed.
func (r *TaxonomyRepository) DeleteNode(ctx context.Context, level string, id int64) error {
	if _, ok := parentColumn[level]; !ok {
		return fmt.Errorf("unknown taxonomy level %q", level)
	}
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, level), id)
	if err != nil {
		if isReferencedRowError(err) {
			return models.ErrCategoryInUse
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrCategoryNotFound
	}
	return nil
}
