package services

import (
	"context"
	"errors"
	"fmt"

	"doulitsa/internal/apperr"
	"doulitsa/internal/cache"
	"doulitsa/internal/locale"
	"doulitsa/internal/models"
	"doulitsa/internal/repositories"
)

const (
	MsgCategoryNotFound = "Η κατηγορία δεν βρέθηκε"
	MsgCategoryInUse    = "Η κατηγορία χρησιμοποιείται από υπηρεσίες ή προφίλ"
	MsgSlugTaken        = "Το slug χρησιμοποιείται ήδη"
	MsgParentRequired   = "Επιλέξτε γονική κατηγορία"
	MsgCategorySaved    = "Η κατηγορία αποθηκεύτηκε"
	MsgCategoryDeleted  = "Η κατηγορία διαγράφηκε"
)

const maxSlugAttempts = 20

type TaxonomyStore interface {
	Tree(ctx context.Context) (models.Taxonomy, error)
	Parent(ctx context.Context, level string, id int64) (int64, error)
	Exists(ctx context.Context, level string, id int64) (bool, error)
	SlugExists(ctx context.Context, level string, parentID int64, slug string, excludeID int64) (bool, error)
	CreateNode(ctx context.Context, level string, req models.TaxonomyRequest) (int64, error)
	UpdateNode(ctx context.Context, level string, id int64, req models.TaxonomyRequest) error
	DeleteNode(ctx context.Context, level string, id int64) error
}

type CategoryService struct {
	TaxonomyRepo TaxonomyStore
	Cache        cache.Store
}

var parentLevel = map[string]string{
	repositories.LevelCategory:    "",
	repositories.LevelSubcategory: repositories.LevelCategory,
	repositories.LevelSubdivision: repositories.LevelSubcategory,
}

// ValidLevel reports whether level names a taxonomy table.
func ValidLevel(level string) bool {
	_, ok := parentLevel[level]
	return ok
}

// Tree returns categories with their subcategories and subdivisions, plus
// counties and areas.
func (s *CategoryService) Tree(ctx context.Context) (models.Taxonomy, error) {
	tags := []string{cache.TagTaxonomies, cache.TagCategories}
	tax, err := cache.Remember(ctx, s.Cache, "taxonomy", cache.TTLStatic, tags, s.TaxonomyRepo.Tree)
	if err != nil {
		return models.Taxonomy{}, apperr.Internal(err)
	}
	return tax, nil
}

func (s *CategoryService) Create(ctx context.Context, level string, req *models.TaxonomyRequest) (int64, error) {
	if !ValidLevel(level) {
		return 0, apperr.NotFound(MsgCategoryNotFound)
	}
	if err := validateForm(req); err != nil {
		return 0, err
	}
	if err := s.checkParent(ctx, level, req.ParentID); err != nil {
		return 0, err
	}
	if err := s.assignSlug(ctx, level, req, 0); err != nil {
		return 0, err
	}

	id, err := s.TaxonomyRepo.CreateNode(ctx, level, *req)
	if err != nil {
		return 0, taxonomyError(err)
	}
	s.revalidate(ctx)
	return id, nil
}

func (s *CategoryService) Update(ctx context.Context, level string, id int64, req *models.TaxonomyRequest) error {
	if !ValidLevel(level) {
		return apperr.NotFound(MsgCategoryNotFound)
	}
	if err := validateForm(req); err != nil {
		return err
	}
	if parentLevel[level] != "" {
		parent, err := s.TaxonomyRepo.Parent(ctx, level, id)
		if err != nil {
			return taxonomyError(err)
		}
		req.ParentID = parent
	}
	if err := s.assignSlug(ctx, level, req, id); err != nil {
		return err
	}
	if err := s.TaxonomyRepo.UpdateNode(ctx, level, id, *req); err != nil {
		return taxonomyError(err)
	}
	s.revalidate(ctx)
	return nil
}

func (s *CategoryService) Delete(ctx context.Context, level string, id int64) error {
	if !ValidLevel(level) {
		return apperr.NotFound(MsgCategoryNotFound)
	}
	if err := s.TaxonomyRepo.DeleteNode(ctx, level, id); err != nil {
		return taxonomyError(err)
	}
	s.revalidate(ctx)
	return nil
}

func (s *CategoryService) checkParent(ctx context.Context, level string, parentID int64) error {
	pl := parentLevel[level]
	if pl == "" {
		return nil
	}
	if parentID <= 0 {
		return apperr.Validation(map[string]string{"parent_id": MsgParentRequired})
	}
	ok, err := s.TaxonomyRepo.Exists(ctx, pl, parentID)
	if err != nil {
		return apperr.Internal(err)
	}
	if !ok {
		return apperr.Validation(map[string]string{"parent_id": MsgCategoryNotFound})
	}
	return nil
}

// assignSlug keeps an explicit slug when it is free among siblings. A
// missing slug is generated from the name and suffixed -2, -3... until free.
func (s *CategoryService) assignSlug(ctx context.Context, level string, req *models.TaxonomyRequest, excludeID int64) error {
	if req.Slug != "" {
		taken, err := s.TaxonomyRepo.SlugExists(ctx, level, req.ParentID, req.Slug, excludeID)
		if err != nil {
			return apperr.Internal(err)
		}
		if taken {
			return apperr.Validation(map[string]string{"slug": MsgSlugTaken})
		}
		return nil
	}

	base := locale.Slugify(req.Name)
	if base == "" {
		return apperr.Validation(map[string]string{"name": "Μη έγκυρη τιμή"})
	}
	slug, err := uniqueSlug(base, func(candidate string) (bool, error) {
		return s.TaxonomyRepo.SlugExists(ctx, level, req.ParentID, candidate, excludeID)
	})
	if err != nil {
		return err
	}
	req.Slug = slug
	return nil
}

// uniqueSlug returns base, or base-2, base-3... whichever taken reports free.
func uniqueSlug(base string, taken func(string) (bool, error)) (string, error) {
	candidate := base
	for i := 2; i < maxSlugAttempts+2; i++ {
		exists, err := taken(candidate)
		if err != nil {
			return "", apperr.Internal(err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", apperr.Conflict(MsgSlugTaken)
}

func (s *CategoryService) revalidate(ctx context.Context) {
	cache.Revalidate(ctx, s.Cache, cache.TagTaxonomies, cache.TagCategories, cache.TagServices, cache.TagProfiles)
}

func taxonomyError(err error) error {
	switch {
	case errors.Is(err, models.ErrCategoryNotFound):
		return apperr.NotFound(MsgCategoryNotFound)
	case errors.Is(err, models.ErrCategoryInUse):
		return apperr.Conflict(MsgCategoryInUse)
	case errors.Is(err, models.ErrDuplicateSlug):
		return apperr.Validation(map[string]string{"slug": MsgSlugTaken})
	}
	return apperr.Internal(err)
}
