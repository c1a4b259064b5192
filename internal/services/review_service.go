package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"doulitsa/internal/apperr"
	"doulitsa/internal/cache"
	"doulitsa/internal/locale"
	"doulitsa/internal/mail"
	"doulitsa/internal/models"
)

const (
	MsgReviewCreated    = "Η αξιολόγηση καταχωρήθηκε"
	MsgReviewUpdated    = "Η αξιολόγηση ενημερώθηκε"
	MsgReviewDeleted    = "Η αξιολόγηση διαγράφηκε"
	MsgReviewNotFound   = "Η αξιολόγηση δεν βρέθηκε"
	MsgAlreadyReviewed  = "Έχετε ήδη αξιολογήσει αυτή την υπηρεσία"
	MsgOwnService       = "Δεν μπορείτε να αξιολογήσετε τη δική σας υπηρεσία"
	MsgServiceNotPublic = "Η υπηρεσία δεν είναι διαθέσιμη"
)

type ReviewStore interface {
	CreateReview(ctx context.Context, rv models.Review) (models.Review, error)
	GetReviewByID(ctx context.Context, id int64) (models.Review, error)
	UpdateReview(ctx context.Context, id int64, rating int, comment string) (models.Review, error)
	DeleteReview(ctx context.Context, id int64) error
	ListByService(ctx context.Context, serviceID int64, page, limit int) ([]models.Review, int, error)
	ListByProfile(ctx context.Context, profileID int64, page, limit int) ([]models.Review, int, error)
	TargetsByAuthor(ctx context.Context, userID int64) ([]models.ReviewTarget, error)
}

type RatingStore interface {
	RefreshRating(ctx context.Context, id int64) (models.RatingSummary, error)
}

type ServiceReader interface {
	GetServiceByID(ctx context.Context, id int64) (models.Service, error)
}

type BookingHistory interface {
	HasCompleted(ctx context.Context, serviceID, clientID int64) (bool, error)
}

type ReviewService struct {
	ReviewRepo  ReviewStore
	ServiceRepo interface {
		ServiceReader
		RatingStore
	}
	ProfileRepo interface {
		GetByUsername(ctx context.Context, username string) (models.Profile, error)
		RatingStore
	}
	BookingRepo BookingHistory
	UserRepo    UserLookup
	Mail        Mailer
	Cache       cache.Store
	PublicURL   string
	Now         func() time.Time
}

func reviewError(err error) error {
	switch {
	case errors.Is(err, models.ErrReviewNotFound):
		return apperr.NotFound(MsgReviewNotFound)
	case errors.Is(err, models.ErrServiceNotFound):
		return apperr.NotFound(MsgServiceNotFound)
	case errors.Is(err, models.ErrProfileNotFound):
		return apperr.NotFound(MsgProfileNotFound)
	case errors.Is(err, models.ErrAlreadyReviewed):
		return apperr.Conflict(MsgAlreadyReviewed)
	}
	return apperr.Internal(err)
}

// refresh recomputes the denormalised ratings after a review changes.
func (s *ReviewService) refresh(ctx context.Context, serviceID, profileID int64) error {
	if _, err := s.ServiceRepo.RefreshRating(ctx, serviceID); err != nil {
		return err
	}
	if _, err := s.ProfileRepo.RefreshRating(ctx, profileID); err != nil {
		return err
	}
	cache.Revalidate(ctx, s.Cache, cache.ReviewTags(serviceID, profileID)...)
	return nil
}

// AuthorTargets lists what the user's reviews rate. Account deletion removes
// those reviews by cascade, so callers read this first.
func (s *ReviewService) AuthorTargets(ctx context.Context, userID int64) ([]models.ReviewTarget, error) {
	return s.ReviewRepo.TargetsByAuthor(ctx, userID)
}

// RefreshTargets recomputes ratings after reviews were removed in bulk.
func (s *ReviewService) RefreshTargets(ctx context.Context, targets []models.ReviewTarget) error {
	seen := make(map[int64]bool, len(targets))
	for _, t := range targets {
		if _, err := s.ServiceRepo.RefreshRating(ctx, t.ServiceID); err != nil {
			return err
		}
		if !seen[t.ProfileID] {
			seen[t.ProfileID] = true
			if _, err := s.ProfileRepo.RefreshRating(ctx, t.ProfileID); err != nil {
				return err
			}
		}
		cache.Revalidate(ctx, s.Cache, cache.ReviewTags(t.ServiceID, t.ProfileID)...)
	}
	return nil
}

// ReviewTargets keeps ratings current when an account and its reviews are
// deleted.
type ReviewTargets interface {
	AuthorTargets(ctx context.Context, userID int64) ([]models.ReviewTarget, error)
	RefreshTargets(ctx context.Context, targets []models.ReviewTarget) error
}

// deleteWithReviews deletes the user and recomputes the ratings their
// reviews contributed to.
func deleteWithReviews(ctx context.Context, reviews ReviewTargets, log logrus.FieldLogger, userID int64, del func(context.Context, int64) error) error {
	var targets []models.ReviewTarget
	if reviews != nil {
		var err error
		if targets, err = reviews.AuthorTargets(ctx, userID); err != nil {
			return err
		}
	}
	if err := del(ctx, userID); err != nil {
		return err
	}
	if len(targets) == 0 {
		return nil
	}
	if err := reviews.RefreshTargets(ctx, targets); err != nil {
		if log == nil {
			log = logrus.StandardLogger()
		}
		log.WithError(err).WithField("user_id", userID).Error("refresh ratings after account deletion")
	}
	return nil
}

// Create stores the caller's review of a published service.
func (s *ReviewService) Create(ctx context.Context, user models.User, serviceID int64, req *models.ReviewRequest) (models.Review, error) {
	if err := validateForm(req); err != nil {
		return models.Review{}, err
	}
	svc, err := s.ServiceRepo.GetServiceByID(ctx, serviceID)
	if err != nil {
		return models.Review{}, reviewError(err)
	}
	if svc.Status != models.ServiceStatusPublished {
		return models.Review{}, apperr.NotFound(MsgServiceNotPublic)
	}
	if svc.UserID == user.ID {
		return models.Review{}, apperr.Forbidden(MsgOwnService)
	}

	verified, err := s.BookingRepo.HasCompleted(ctx, serviceID, user.ID)
	if err != nil {
		return models.Review{}, apperr.Internal(err)
	}

	rv, err := s.ReviewRepo.CreateReview(ctx, models.Review{
		ServiceID: svc.ID,
		ProfileID: svc.ProfileID,
		UserID:    user.ID,
		Rating:    req.Rating,
		Comment:   req.Comment,
		Verified:  verified,
	})
	if err != nil {
		return models.Review{}, reviewError(err)
	}
	if err := s.refresh(ctx, svc.ID, svc.ProfileID); err != nil {
		return models.Review{}, apperr.Internal(err)
	}

	if owner, err := s.UserRepo.GetUserByID(ctx, svc.UserID); err == nil {
		s.Mail.Deliver(mail.TemplateNewReview, owner.Email, mail.ReviewData{
			Author:       user.Username,
			ServiceTitle: svc.Title,
			Rating:       rv.Rating,
			Comment:      rv.Comment,
			URL:          fmt.Sprintf("%s/s/%s", s.PublicURL, svc.Slug),
		})
	}
	return s.decorate(rv), nil
}

func (s *ReviewService) authored(ctx context.Context, user models.User, id int64, allowAdmin bool) (models.Review, error) {
	rv, err := s.ReviewRepo.GetReviewByID(ctx, id)
	if err != nil {
		return models.Review{}, reviewError(err)
	}
	if rv.UserID != user.ID && !(allowAdmin && user.Role == models.RoleAdmin) {
		return models.Review{}, apperr.Forbidden(MsgNoPermission)
	}
	return rv, nil
}

func (s *ReviewService) Update(ctx context.Context, user models.User, id int64, req *models.ReviewRequest) (models.Review, error) {
	if err := validateForm(req); err != nil {
		return models.Review{}, err
	}
	rv, err := s.authored(ctx, user, id, false)
	if err != nil {
		return models.Review{}, err
	}
	updated, err := s.ReviewRepo.UpdateReview(ctx, rv.ID, req.Rating, req.Comment)
	if err != nil {
		return models.Review{}, reviewError(err)
	}
	if err := s.refresh(ctx, rv.ServiceID, rv.ProfileID); err != nil {
		return models.Review{}, apperr.Internal(err)
	}
	return s.decorate(updated), nil
}

// Delete removes a review. Admins may delete any review.
func (s *ReviewService) Delete(ctx context.Context, user models.User, id int64) error {
	rv, err := s.authored(ctx, user, id, true)
	if err != nil {
		return err
	}
	if err := s.ReviewRepo.DeleteReview(ctx, rv.ID); err != nil {
		return reviewError(err)
	}
	if err := s.refresh(ctx, rv.ServiceID, rv.ProfileID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (s *ReviewService) decorate(rv models.Review) models.Review {
	rv.RelativeTime = locale.RelativeTime(rv.CreatedAt, clock(s.Now))
	return rv
}

func (s *ReviewService) page(items []models.Review, page, limit, total int) models.Page[models.Review] {
	for i := range items {
		items[i] = s.decorate(items[i])
	}
	return models.NewPage(items, page, limit, total)
}

func (s *ReviewService) ListByService(ctx context.Context, serviceID int64, page, limit int) (models.Page[models.Review], error) {
	page, limit = models.NormalizePage(page, limit)
	key := cache.BuildCacheKey("reviews:service", map[string]any{"id": serviceID, "page": page, "limit": limit})
	items, err := cache.Remember(ctx, s.Cache, key, cache.TTLMedium, []string{cache.ServiceReviewsTag(serviceID)},
		func(ctx context.Context) (reviewPage, error) {
			items, total, err := s.ReviewRepo.ListByService(ctx, serviceID, page, limit)
			return reviewPage{Items: items, Total: total}, err
		})
	if err != nil {
		return models.Page[models.Review]{}, apperr.Internal(err)
	}
	return s.page(items.Items, page, limit, items.Total), nil
}

func (s *ReviewService) ListByProfile(ctx context.Context, username string, page, limit int) (models.Page[models.Review], error) {
	profile, err := s.ProfileRepo.GetByUsername(ctx, username)
	if err != nil {
		return models.Page[models.Review]{}, reviewError(err)
	}
	page, limit = models.NormalizePage(page, limit)
	key := cache.BuildCacheKey("reviews:profile", map[string]any{"id": profile.ID, "page": page, "limit": limit})
	items, err := cache.Remember(ctx, s.Cache, key, cache.TTLMedium, []string{cache.ProfileReviewsTag(profile.ID)},
		func(ctx context.Context) (reviewPage, error) {
			items, total, err := s.ReviewRepo.ListByProfile(ctx, profile.ID, page, limit)
			return reviewPage{Items: items, Total: total}, err
		})
	if err != nil {
		return models.Page[models.Review]{}, apperr.Internal(err)
	}
	return s.page(items.Items, page, limit, items.Total), nil
}

// reviewPage is the cached form of a review listing. Relative times are
// rendered on every read.
type reviewPage struct {
	Items []models.Review `json:"items"`
	Total int             `json:"total"`
}
