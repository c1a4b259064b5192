package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"doulitsa/internal/apperr"
	"doulitsa/internal/cache"
	"doulitsa/internal/models"
	"doulitsa/internal/repositories"
	"doulitsa/utils"
)

const (
	MsgProfileSaved      = "Το προφίλ αποθηκεύτηκε"
	MsgProfileNotFound   = "Το προφίλ δεν βρέθηκε"
	MsgNoProfile         = "Δημιουργήστε πρώτα το επαγγελματικό σας προφίλ"
	MsgInvalidSubcat     = "Η υποκατηγορία δεν ανήκει στην κατηγορία"
	MsgImageUploaded     = "Η εικόνα ανέβηκε"
	MsgFeatureNeedsPlan  = "Η προβολή απαιτεί ενεργή συνδρομή"
	MsgProfileVerified   = "Το προφίλ επαληθεύτηκε"
	MsgProfileUnverified = "Η επαλήθευση αφαιρέθηκε"
)

type ProfileStore interface {
	GetByID(ctx context.Context, id int64) (models.Profile, error)
	GetByUserID(ctx context.Context, userID int64) (models.Profile, error)
	GetByUsername(ctx context.Context, username string) (models.Profile, error)
	Upsert(ctx context.Context, p models.Profile) (models.Profile, error)
	List(ctx context.Context, f models.ProfileFilter, publicOnly bool) ([]models.Profile, int, error)
	SetAvatar(ctx context.Context, id int64, url string) error
	SetCover(ctx context.Context, id int64, url string) error
	SetVerified(ctx context.Context, id int64, verified bool) error
	SetFeatured(ctx context.Context, id int64, featured bool) error
}

type RoleStore interface {
	SetRole(ctx context.Context, id int64, role string) error
}

type TaxonomyLookup interface {
	Parent(ctx context.Context, level string, id int64) (int64, error)
}

type SubscriptionLookup interface {
	GetByUser(ctx context.Context, userID int64) (models.Subscription, error)
}

type ProfileService struct {
	ProfileRepo      ProfileStore
	UserRepo         RoleStore
	TaxonomyRepo     TaxonomyLookup
	SubscriptionRepo SubscriptionLookup
	Uploader         Uploader
	Cache            cache.Store
	Now              func() time.Time
}

func profileError(err error) error {
	if errors.Is(err, models.ErrProfileNotFound) {
		return apperr.NotFound(MsgProfileNotFound)
	}
	return apperr.Internal(err)
}

// checkSubcategory makes sure subcategoryID sits under categoryID.
func checkSubcategory(ctx context.Context, tax TaxonomyLookup, categoryID, subcategoryID int64) error {
	parent, err := tax.Parent(ctx, repositories.LevelSubcategory, subcategoryID)
	if errors.Is(err, models.ErrCategoryNotFound) || (err == nil && parent != categoryID) {
		return apperr.Validation(map[string]string{"subcategory_id": MsgInvalidSubcat})
	}
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// Upsert creates or replaces the caller's profile and gives the account the
// matching professional role. Admins keep their role.
func (s *ProfileService) Upsert(ctx context.Context, user models.User, req *models.ProfileRequest) (models.Profile, error) {
	if err := validateForm(req); err != nil {
		return models.Profile{}, err
	}
	if err := checkSubcategory(ctx, s.TaxonomyRepo, req.CategoryID, req.SubcategoryID); err != nil {
		return models.Profile{}, err
	}
	if req.Online {
		req.CountyID, req.AreaIDs = nil, nil
	}

	old, err := s.ProfileRepo.GetByUserID(ctx, user.ID)
	if err != nil && !errors.Is(err, models.ErrProfileNotFound) {
		return models.Profile{}, apperr.Internal(err)
	}

	p, err := s.ProfileRepo.Upsert(ctx, models.Profile{
		UserID:          user.ID,
		Type:            req.Type,
		DisplayName:     req.DisplayName,
		Tagline:         req.Tagline,
		Bio:             req.Bio,
		Rate:            req.Rate,
		CategoryID:      req.CategoryID,
		SubcategoryID:   req.SubcategoryID,
		Skills:          req.Skills,
		Online:          req.Online,
		CountyID:        req.CountyID,
		AreaIDs:         req.AreaIDs,
		Phone:           req.Phone,
		Website:         req.Website,
		ExperienceYears: req.ExperienceYears,
		Published:       req.Published,
	})
	if errors.Is(err, models.ErrCategoryNotFound) {
		return models.Profile{}, apperr.Validation(map[string]string{"category_id": "Η κατηγορία δεν βρέθηκε"})
	}
	if err != nil {
		return models.Profile{}, apperr.Internal(err)
	}

	if user.Role != models.RoleAdmin && user.Role != req.Type {
		if err := s.UserRepo.SetRole(ctx, user.ID, req.Type); err != nil {
			return models.Profile{}, apperr.Internal(err)
		}
	}

	tags := cache.ProfileTags(p)
	if old.ID != 0 {
		tags = append(tags, cache.ProfileTags(old)...)
	}
	cache.Revalidate(ctx, s.Cache, tags...)
	return p, nil
}

func (s *ProfileService) GetMine(ctx context.Context, userID int64) (models.Profile, error) {
	p, err := s.ProfileRepo.GetByUserID(ctx, userID)
	if errors.Is(err, models.ErrProfileNotFound) {
		return models.Profile{}, apperr.NotFound(MsgNoProfile)
	}
	if err != nil {
		return models.Profile{}, apperr.Internal(err)
	}
	return p, nil
}

// GetByUsername returns a published profile of an active user.
func (s *ProfileService) GetByUsername(ctx context.Context, username string) (models.Profile, error) {
	key := cache.BuildCacheKey("profile", map[string]any{"username": username})
	tags := []string{cache.TagProfiles, cache.ProfileUsernameTag(username)}
	p, err := cache.Remember(ctx, s.Cache, key, cache.TTLLong, tags, func(ctx context.Context) (models.Profile, error) {
		return s.ProfileRepo.GetByUsername(ctx, username)
	})
	if err != nil {
		return models.Profile{}, profileError(err)
	}
	return p, nil
}

func (s *ProfileService) List(ctx context.Context, f models.ProfileFilter) (models.Page[models.Profile], error) {
	f.Page, f.Limit = models.NormalizePage(f.Page, f.Limit)
	key := cache.BuildCacheKey("profiles", f.Params())
	tags := []string{cache.TagProfiles}
	if f.Category != "" {
		tags = append(tags, cache.ProfilesByCategoryTag(f.Category))
	}
	ttl := cache.TTLMedium
	if f.Search != "" {
		ttl = cache.TTLShort
	}
	page, err := cache.Remember(ctx, s.Cache, key, ttl, tags, func(ctx context.Context) (models.Page[models.Profile], error) {
		items, total, err := s.ProfileRepo.List(ctx, f, true)
		if err != nil {
			return models.Page[models.Profile]{}, err
		}
		return models.NewPage(items, f.Page, f.Limit, total), nil
	})
	if err != nil {
		return models.Page[models.Profile]{}, apperr.Internal(err)
	}
	return page, nil
}

// ListAll is the admin listing, including unpublished profiles.
func (s *ProfileService) ListAll(ctx context.Context, f models.ProfileFilter) (models.Page[models.Profile], error) {
	f.Page, f.Limit = models.NormalizePage(f.Page, f.Limit)
	items, total, err := s.ProfileRepo.List(ctx, f, false)
	if err != nil {
		return models.Page[models.Profile]{}, apperr.Internal(err)
	}
	return models.NewPage(items, f.Page, f.Limit, total), nil
}

// UploadImage stores an avatar or cover image for the caller's profile.
func (s *ProfileService) UploadImage(ctx context.Context, userID int64, kind string, up Upload) (models.Profile, error) {
	p, err := s.GetMine(ctx, userID)
	if err != nil {
		return models.Profile{}, err
	}
	if s.Uploader == nil {
		return models.Profile{}, apperr.Unavailable(MsgUploadFailed)
	}

	_, url, err := s.Uploader.UploadImage(ctx, up.Data, fmt.Sprintf("profiles/%d", p.ID))
	if err != nil {
		return models.Profile{}, uploadError(err)
	}
	if kind == "cover" {
		err = s.ProfileRepo.SetCover(ctx, p.ID, url)
		p.CoverURL = &url
	} else {
		err = s.ProfileRepo.SetAvatar(ctx, p.ID, url)
		p.AvatarURL = &url
	}
	if err != nil {
		return models.Profile{}, profileError(err)
	}
	cache.Revalidate(ctx, s.Cache, cache.ProfileTags(p)...)
	return p, nil
}

func uploadError(err error) error {
	if errors.Is(err, utils.ErrImageTooLarge) || errors.Is(err, utils.ErrUnsupportedType) {
		return apperr.Validation(map[string]string{"image": MsgInvalidImage})
	}
	return apperr.Wrap(err, apperr.ErrUnavailable, MsgUploadFailed)
}

func (s *ProfileService) SetVerified(ctx context.Context, profileID int64, verified bool) (models.Profile, error) {
	p, err := s.ProfileRepo.GetByID(ctx, profileID)
	if err != nil {
		return models.Profile{}, profileError(err)
	}
	if err := s.ProfileRepo.SetVerified(ctx, profileID, verified); err != nil {
		return models.Profile{}, profileError(err)
	}
	p.Verified = verified
	cache.Revalidate(ctx, s.Cache, cache.ProfileTags(p)...)
	return p, nil
}

// SetFeatured promotes a profile. Featuring needs a usable paid plan.
func (s *ProfileService) SetFeatured(ctx context.Context, profileID int64, featured bool) (models.Profile, error) {
	p, err := s.ProfileRepo.GetByID(ctx, profileID)
	if err != nil {
		return models.Profile{}, profileError(err)
	}
	if featured {
		sub, err := s.SubscriptionRepo.GetByUser(ctx, p.UserID)
		if err != nil && !errors.Is(err, models.ErrNoRecord) {
			return models.Profile{}, apperr.Internal(err)
		}
		if !sub.Usable(clock(s.Now)) {
			return models.Profile{}, apperr.Conflict(MsgFeatureNeedsPlan)
		}
	}
	if err := s.ProfileRepo.SetFeatured(ctx, profileID, featured); err != nil {
		return models.Profile{}, profileError(err)
	}
	p.Featured = featured
	cache.Revalidate(ctx, s.Cache, cache.ProfileTags(p)...)
	return p, nil
}
