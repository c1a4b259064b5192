package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"doulitsa/internal/apperr"
	"doulitsa/internal/cache"
	"doulitsa/internal/locale"
	"doulitsa/internal/mail"
	"doulitsa/internal/models"
	"doulitsa/internal/repositories"
)

const (
	MsgServiceCreated     = "Η υπηρεσία υποβλήθηκε για έγκριση"
	MsgServiceUpdated     = "Η υπηρεσία ενημερώθηκε και υποβλήθηκε ξανά για έγκριση"
	MsgServiceCanceled    = "Η υπηρεσία ακυρώθηκε"
	MsgServiceDeactivated = "Η υπηρεσία απενεργοποιήθηκε"
	MsgServiceActivated   = "Η υπηρεσία ενεργοποιήθηκε"
	MsgServiceApproved    = "Η υπηρεσία εγκρίθηκε"
	MsgServiceRejected    = "Η υπηρεσία απορρίφθηκε"

	MsgServiceNotFound    = "Η υπηρεσία δεν βρέθηκε"
	MsgAlreadyCanceled    = "Η υπηρεσία έχει ήδη ακυρωθεί"
	MsgCanceledNoEdit     = "Η υπηρεσία έχει ακυρωθεί και δεν μπορεί να αλλάξει"
	MsgListingLimit       = "Έχετε φτάσει το όριο υπηρεσιών του πακέτου σας"
	MsgTooManyImages      = "Μπορείτε να ανεβάσετε έως 10 εικόνες"
	MsgInvalidSubdivision = "Η υποδιαίρεση δεν ανήκει στην υποκατηγορία"
	MsgNotPending         = "Η υπηρεσία δεν περιμένει έγκριση"
)

const maxServiceImages = 10

type ServiceStore interface {
	CreateService(ctx context.Context, s models.Service) (models.Service, error)
	UpdateService(ctx context.Context, s models.Service, fromStatus string) (models.Service, error)
	TransitionStatus(ctx context.Context, id int64, from, to string, reason *string) error
	GetServiceByID(ctx context.Context, id int64) (models.Service, error)
	GetServiceBySlug(ctx context.Context, slug string) (models.Service, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	ListServices(ctx context.Context, f models.ServiceFilter, publicOnly bool) ([]models.Service, int, error)
	ListServicesByUser(ctx context.Context, userID int64) ([]models.Service, error)
	CountActiveListings(ctx context.Context, userID int64) (int, error)
	PublishedIDsByUser(ctx context.Context, userID int64) ([]int64, error)
}

type ProfileLookup interface {
	GetByUserID(ctx context.Context, userID int64) (models.Profile, error)
}

type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (models.User, error)
}

type ServiceService struct {
	ServiceRepo      ServiceStore
	ProfileRepo      ProfileLookup
	TaxonomyRepo     TaxonomyLookup
	SubscriptionRepo SubscriptionLookup
	UserRepo         UserLookup
	Uploader         Uploader
	Mail             Mailer
	Cache            cache.Store
	PublicURL        string
	Now              func() time.Time
}

func serviceError(err error) error {
	if errors.Is(err, models.ErrServiceNotFound) {
		return apperr.NotFound(MsgServiceNotFound)
	}
	if errors.Is(err, models.ErrCategoryNotFound) {
		return apperr.Validation(map[string]string{"category_id": MsgCategoryNotFound})
	}
	return statusError(err)
}

func withPrice(s models.Service) models.Service {
	s.FormattedPrice = locale.FormatPrice(s.Price)
	return s
}

func withPrices(items []models.Service) []models.Service {
	for i := range items {
		items[i] = withPrice(items[i])
	}
	return items
}

// effectivePlan returns the plan whose listing limit applies to the user now.
func effectivePlan(ctx context.Context, subs SubscriptionLookup, userID int64, now time.Time) (string, error) {
	sub, err := subs.GetByUser(ctx, userID)
	if errors.Is(err, models.ErrNoRecord) {
		return models.PlanFree, nil
	}
	if err != nil {
		return "", err
	}
	return sub.EffectivePlan(now), nil
}

func (s *ServiceService) checkTaxonomy(ctx context.Context, req *models.ServiceRequest) error {
	if err := checkSubcategory(ctx, s.TaxonomyRepo, req.CategoryID, req.SubcategoryID); err != nil {
		return err
	}
	parent, err := s.TaxonomyRepo.Parent(ctx, repositories.LevelSubdivision, req.SubdivisionID)
	if errors.Is(err, models.ErrCategoryNotFound) || (err == nil && parent != req.SubcategoryID) {
		return apperr.Validation(map[string]string{"subdivision_id": MsgInvalidSubdivision})
	}
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (s *ServiceService) uploadImages(ctx context.Context, folder string, uploads []Upload) ([]models.Image, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	if s.Uploader == nil {
		return nil, apperr.Unavailable(MsgUploadFailed)
	}
	images := make([]models.Image, 0, len(uploads))
	for _, up := range uploads {
		key, url, err := s.Uploader.UploadImage(ctx, up.Data, folder)
		if err != nil {
			s.deleteImages(ctx, images)
			return nil, uploadError(err)
		}
		images = append(images, models.Image{Name: key, URL: url, Type: "upload"})
	}
	return images, nil
}

func (s *ServiceService) deleteImages(ctx context.Context, images []models.Image) {
	if s.Uploader == nil {
		return
	}
	for _, img := range images {
		_ = s.Uploader.Delete(ctx, img.Name)
	}
}

func fromRequest(req *models.ServiceRequest) models.Service {
	return models.Service{
		Title:         req.Title,
		Description:   req.Description,
		Price:         req.Price,
		FixedPrice:    req.FixedPrice,
		DurationDays:  req.DurationDays,
		Online:        req.Online,
		CategoryID:    req.CategoryID,
		SubcategoryID: req.SubcategoryID,
		SubdivisionID: req.SubdivisionID,
		Tags:          req.Tags,
		Addons:        req.Addons,
		FAQ:           req.FAQ,
	}
}

// CreateService submits a new listing for moderation.
func (s *ServiceService) CreateService(ctx context.Context, user models.User, req *models.ServiceRequest, uploads []Upload) (models.Service, error) {
	if err := validateForm(req); err != nil {
		return models.Service{}, err
	}
	if len(uploads) > maxServiceImages {
		return models.Service{}, apperr.Validation(map[string]string{"images": MsgTooManyImages})
	}

	profile, err := s.ProfileRepo.GetByUserID(ctx, user.ID)
	if errors.Is(err, models.ErrProfileNotFound) {
		return models.Service{}, apperr.Forbidden(MsgNoProfile)
	}
	if err != nil {
		return models.Service{}, apperr.Internal(err)
	}
	if err := s.checkTaxonomy(ctx, req); err != nil {
		return models.Service{}, err
	}

	plan, err := effectivePlan(ctx, s.SubscriptionRepo, user.ID, clock(s.Now))
	if err != nil {
		return models.Service{}, apperr.Internal(err)
	}
	if limit := models.PlanListingLimits[plan]; limit > 0 {
		n, err := s.ServiceRepo.CountActiveListings(ctx, user.ID)
		if err != nil {
			return models.Service{}, apperr.Internal(err)
		}
		if n >= limit {
			return models.Service{}, apperr.Forbidden(MsgListingLimit)
		}
	}

	base := locale.Slugify(req.Title)
	if base == "" {
		base = "service"
	}
	slug, err := uniqueSlug(base, func(c string) (bool, error) { return s.ServiceRepo.SlugExists(ctx, c) })
	if err != nil {
		return models.Service{}, err
	}

	images, err := s.uploadImages(ctx, fmt.Sprintf("services/%d", profile.ID), uploads)
	if err != nil {
		return models.Service{}, err
	}

	svc := fromRequest(req)
	svc.ProfileID = profile.ID
	svc.UserID = user.ID
	svc.Slug = slug
	svc.Images = images
	svc.Status = models.ServiceStatusPending

	created, err := s.ServiceRepo.CreateService(ctx, svc)
	if err != nil {
		s.deleteImages(ctx, images)
		if errors.Is(err, models.ErrDuplicateSlug) {
			return models.Service{}, apperr.Conflict(MsgSlugTaken)
		}
		return models.Service{}, serviceError(err)
	}
	cache.Revalidate(ctx, s.Cache, cache.ServiceTags(created)...)
	return withPrice(created), nil
}

// owned loads a service and checks that user owns it.
func (s *ServiceService) owned(ctx context.Context, user models.User, id int64) (models.Service, error) {
	svc, err := s.ServiceRepo.GetServiceByID(ctx, id)
	if err != nil {
		return models.Service{}, serviceError(err)
	}
	if svc.UserID != user.ID {
		return models.Service{}, apperr.Forbidden(MsgNoPermission)
	}
	return svc, nil
}

// EditService replaces the listing content. Any edit sends the service back
// to moderation.
func (s *ServiceService) EditService(ctx context.Context, user models.User, id int64, req *models.ServiceRequest, uploads []Upload) (models.Service, error) {
	if err := validateForm(req); err != nil {
		return models.Service{}, err
	}
	existing, err := s.owned(ctx, user, id)
	if err != nil {
		return models.Service{}, err
	}
	if existing.Status == models.ServiceStatusCanceled {
		return models.Service{}, apperr.Conflict(MsgCanceledNoEdit)
	}
	if err := s.checkTaxonomy(ctx, req); err != nil {
		return models.Service{}, err
	}

	keep := make(map[string]bool, len(req.KeepImages))
	for _, name := range req.KeepImages {
		keep[name] = true
	}
	var kept, removed []models.Image
	for _, img := range existing.Images {
		if keep[img.Name] {
			kept = append(kept, img)
		} else {
			removed = append(removed, img)
		}
	}
	if len(kept)+len(uploads) > maxServiceImages {
		return models.Service{}, apperr.Validation(map[string]string{"images": MsgTooManyImages})
	}
	added, err := s.uploadImages(ctx, fmt.Sprintf("services/%d", existing.ProfileID), uploads)
	if err != nil {
		return models.Service{}, err
	}

	svc := fromRequest(req)
	svc.ID = existing.ID
	svc.Images = append(kept, added...)
	svc.Status = models.ServiceStatusPending

	updated, err := s.ServiceRepo.UpdateService(ctx, svc, existing.Status)
	if err != nil {
		s.deleteImages(ctx, added)
		return models.Service{}, serviceError(err)
	}
	s.deleteImages(ctx, removed)

	cache.Revalidate(ctx, s.Cache, append(cache.ServiceTags(existing), cache.ServiceTags(updated)...)...)
	return withPrice(updated), nil
}

func (s *ServiceService) transition(ctx context.Context, svc models.Service, to string, reason *string) (models.Service, error) {
	if err := s.ServiceRepo.TransitionStatus(ctx, svc.ID, svc.Status, to, reason); err != nil {
		return models.Service{}, serviceError(err)
	}
	cache.Revalidate(ctx, s.Cache, cache.ServiceTags(svc)...)
	svc.Status = to
	svc.RejectionReason = reason
	return withPrice(svc), nil
}

func (s *ServiceService) CancelService(ctx context.Context, user models.User, id int64) (models.Service, error) {
	svc, err := s.owned(ctx, user, id)
	if err != nil {
		return models.Service{}, err
	}
	if svc.Status == models.ServiceStatusCanceled {
		return models.Service{}, apperr.Conflict(MsgAlreadyCanceled)
	}
	return s.transition(ctx, svc, models.ServiceStatusCanceled, nil)
}

func (s *ServiceService) Deactivate(ctx context.Context, user models.User, id int64) (models.Service, error) {
	svc, err := s.owned(ctx, user, id)
	if err != nil {
		return models.Service{}, err
	}
	if svc.Status != models.ServiceStatusPublished {
		return models.Service{}, apperr.Conflict(MsgInvalidStatus)
	}
	return s.transition(ctx, svc, models.ServiceStatusInactive, nil)
}

// Activate republishes an inactive service when the plan has room for another
// published listing.
func (s *ServiceService) Activate(ctx context.Context, user models.User, id int64) (models.Service, error) {
	svc, err := s.owned(ctx, user, id)
	if err != nil {
		return models.Service{}, err
	}
	if svc.Status != models.ServiceStatusInactive {
		return models.Service{}, apperr.Conflict(MsgInvalidStatus)
	}

	plan, err := effectivePlan(ctx, s.SubscriptionRepo, user.ID, clock(s.Now))
	if err != nil {
		return models.Service{}, apperr.Internal(err)
	}
	if limit := models.PlanListingLimits[plan]; limit > 0 {
		ids, err := s.ServiceRepo.PublishedIDsByUser(ctx, user.ID)
		if err != nil {
			return models.Service{}, apperr.Internal(err)
		}
		if len(ids) >= limit {
			return models.Service{}, apperr.Forbidden(MsgListingLimit)
		}
	}
	return s.transition(ctx, svc, models.ServiceStatusPublished, nil)
}

// GetBySlug returns a published service. Owners and admins also see their
// services in any other status.
func (s *ServiceService) GetBySlug(ctx context.Context, slug string, viewer *models.User) (models.Service, error) {
	key := cache.BuildCacheKey("service", map[string]any{"slug": slug})
	tags := []string{cache.TagServices, cache.ServiceSlugTag(slug)}
	svc, err := cache.Remember(ctx, s.Cache, key, cache.TTLLong, tags, func(ctx context.Context) (models.Service, error) {
		return s.ServiceRepo.GetServiceBySlug(ctx, slug)
	})
	if err != nil {
		return models.Service{}, serviceError(err)
	}
	if svc.Status != models.ServiceStatusPublished {
		if viewer == nil || (viewer.ID != svc.UserID && viewer.Role != models.RoleAdmin) {
			return models.Service{}, apperr.NotFound(MsgServiceNotFound)
		}
	}
	return withPrice(svc), nil
}

func (s *ServiceService) GetByID(ctx context.Context, id int64) (models.Service, error) {
	svc, err := s.ServiceRepo.GetServiceByID(ctx, id)
	if err != nil {
		return models.Service{}, serviceError(err)
	}
	return withPrice(svc), nil
}

// List returns published services matching f.
func (s *ServiceService) List(ctx context.Context, f models.ServiceFilter) (models.Page[models.Service], error) {
	f.Page, f.Limit = models.NormalizePage(f.Page, f.Limit)
	f.Status = ""
	key := cache.BuildCacheKey("services", f.Params())
	tags := []string{cache.TagServices}
	if f.Category != "" {
		tags = append(tags, cache.ServicesByCategoryTag(f.Category))
	}
	if f.Subcategory != "" {
		tags = append(tags, cache.ServicesBySubcategoryTag(f.Subcategory))
	}
	ttl := cache.TTLMedium
	if f.Search != "" {
		ttl = cache.TTLShort
	}
	page, err := cache.Remember(ctx, s.Cache, key, ttl, tags, func(ctx context.Context) (models.Page[models.Service], error) {
		items, total, err := s.ServiceRepo.ListServices(ctx, f, true)
		if err != nil {
			return models.Page[models.Service]{}, err
		}
		return models.NewPage(withPrices(items), f.Page, f.Limit, total), nil
	})
	if err != nil {
		return models.Page[models.Service]{}, apperr.Internal(err)
	}
	return page, nil
}

// ListMine returns every service of the user in any status.
func (s *ServiceService) ListMine(ctx context.Context, userID int64) ([]models.Service, error) {
	items, err := s.ServiceRepo.ListServicesByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if items == nil {
		items = []models.Service{}
	}
	return withPrices(items), nil
}

// ListForModeration is the admin listing filtered by status (pending when
// empty).
func (s *ServiceService) ListForModeration(ctx context.Context, f models.ServiceFilter) (models.Page[models.Service], error) {
	f.Page, f.Limit = models.NormalizePage(f.Page, f.Limit)
	if f.Status == "" {
		f.Status = models.ServiceStatusPending
	}
	items, total, err := s.ServiceRepo.ListServices(ctx, f, false)
	if err != nil {
		return models.Page[models.Service]{}, apperr.Internal(err)
	}
	return models.NewPage(withPrices(items), f.Page, f.Limit, total), nil
}

// Moderate publishes or rejects a pending service. Rejections are emailed to
// the owner with the reason.
func (s *ServiceService) Moderate(ctx context.Context, id int64, req *models.ModerationRequest) (models.Service, error) {
	if err := validateForm(req); err != nil {
		return models.Service{}, err
	}
	svc, err := s.ServiceRepo.GetServiceByID(ctx, id)
	if err != nil {
		return models.Service{}, serviceError(err)
	}
	if svc.Status != models.ServiceStatusPending {
		return models.Service{}, apperr.Conflict(MsgNotPending)
	}

	if req.Approve {
		return s.transition(ctx, svc, models.ServiceStatusPublished, nil)
	}

	reason := req.Reason
	out, err := s.transition(ctx, svc, models.ServiceStatusRejected, &reason)
	if err != nil {
		return models.Service{}, err
	}
	if owner, err := s.UserRepo.GetUserByID(ctx, svc.UserID); err == nil {
		s.Mail.Deliver(mail.TemplateServiceRejected, owner.Email, mail.RejectionData{ServiceTitle: svc.Title, Reason: reason})
	}
	return out, nil
}
