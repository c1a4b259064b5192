package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"doulitsa/internal/apperr"
	"doulitsa/internal/cache"
	"doulitsa/internal/models"
)

const (
	MsgSubscriptionActivated = "Η συνδρομή ενεργοποιήθηκε"
	MsgSubscriptionCanceled  = "Η συνδρομή ακυρώθηκε. Ισχύει έως το τέλος της περιόδου"
	MsgNoSubscription        = "Δεν έχετε ενεργή συνδρομή"
)

type SubscriptionStore interface {
	GetByUser(ctx context.Context, userID int64) (models.Subscription, error)
	Activate(ctx context.Context, userID int64, plan string, periodEnd time.Time) (models.Subscription, error)
	SetStatus(ctx context.Context, id int64, status string) error
	ListDue(ctx context.Context, now time.Time) ([]models.Subscription, error)
}

type SubscriptionService struct {
	SubscriptionRepo SubscriptionStore
	ServiceRepo      interface {
		CountActiveListings(ctx context.Context, userID int64) (int, error)
		PublishedIDsByUser(ctx context.Context, userID int64) ([]int64, error)
		TransitionStatus(ctx context.Context, id int64, from, to string, reason *string) error
	}
	ProfileRepo interface {
		UnfeatureUser(ctx context.Context, userID int64) error
	}
	Cache cache.Store
	Log   logrus.FieldLogger
	Now   func() time.Time
}

// GetMine summarises the user's plan. Users without a subscription are on
// the free plan.
func (s *SubscriptionService) GetMine(ctx context.Context, userID int64) (models.SubscriptionSummary, error) {
	now := clock(s.Now)
	sub, err := s.SubscriptionRepo.GetByUser(ctx, userID)
	if errors.Is(err, models.ErrNoRecord) {
		sub = models.Subscription{UserID: userID, Plan: models.PlanFree, Status: models.SubscriptionActive}
	} else if err != nil {
		return models.SubscriptionSummary{}, apperr.Internal(err)
	}
	active, err := s.ServiceRepo.CountActiveListings(ctx, userID)
	if err != nil {
		return models.SubscriptionSummary{}, apperr.Internal(err)
	}
	plan := sub.EffectivePlan(now)
	return models.SubscriptionSummary{
		Subscription:   sub,
		EffectivePlan:  plan,
		ListingLimit:   models.PlanListingLimits[plan],
		ActiveListings: active,
	}, nil
}

// Activate starts or extends a paid plan. Renewing the same plan while it is
// still usable extends the current period.
func (s *SubscriptionService) Activate(ctx context.Context, req *models.ActivateSubscriptionRequest) (models.Subscription, error) {
	if err := validateForm(req); err != nil {
		return models.Subscription{}, err
	}
	now := clock(s.Now)
	start := now
	current, err := s.SubscriptionRepo.GetByUser(ctx, req.UserID)
	switch {
	case err == nil:
		if current.Plan == req.Plan && current.Usable(now) {
			start = *current.CurrentPeriodEnd
		}
	case !errors.Is(err, models.ErrNoRecord):
		return models.Subscription{}, apperr.Internal(err)
	}

	sub, err := s.SubscriptionRepo.Activate(ctx, req.UserID, req.Plan, start.AddDate(0, req.Months, 0))
	if errors.Is(err, models.ErrUserNotFound) {
		return models.Subscription{}, apperr.NotFound(MsgUserNotFound)
	}
	if err != nil {
		return models.Subscription{}, apperr.Internal(err)
	}
	cache.Revalidate(ctx, s.Cache, cache.UserTag(req.UserID), cache.TagAdminStats)
	return sub, nil
}

// Cancel stops renewal. The plan stays usable until the period ends.
func (s *SubscriptionService) Cancel(ctx context.Context, userID int64) (models.Subscription, error) {
	sub, err := s.SubscriptionRepo.GetByUser(ctx, userID)
	if errors.Is(err, models.ErrNoRecord) {
		return models.Subscription{}, apperr.Conflict(MsgNoSubscription)
	}
	if err != nil {
		return models.Subscription{}, apperr.Internal(err)
	}
	if sub.Status != models.SubscriptionActive || sub.Plan == models.PlanFree {
		return models.Subscription{}, apperr.Conflict(MsgNoSubscription)
	}
	if err := s.SubscriptionRepo.SetStatus(ctx, sub.ID, models.SubscriptionCanceled); err != nil {
		return models.Subscription{}, apperr.Internal(err)
	}
	cache.Revalidate(ctx, s.Cache, cache.UserTag(userID), cache.TagAdminStats)
	sub.Status = models.SubscriptionCanceled
	return sub, nil
}

// ExpireDue expires every subscription whose period ended by now, drops the
// profile from the featured list and deactivates published services above
// the free limit, keeping the newest ones. It returns the number of expired
// subscriptions.
func (s *SubscriptionService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.SubscriptionRepo.ListDue(ctx, now)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, sub := range due {
		if err := s.expire(ctx, sub); err != nil {
			s.logger().WithError(err).WithField("user_id", sub.UserID).Error("subscription expiry failed")
			continue
		}
		expired++
	}
	return expired, nil
}

// expire writes the expired status last so a failed step leaves the
// subscription due for the next run.
func (s *SubscriptionService) expire(ctx context.Context, sub models.Subscription) error {
	if err := s.ProfileRepo.UnfeatureUser(ctx, sub.UserID); err != nil {
		return err
	}

	ids, err := s.ServiceRepo.PublishedIDsByUser(ctx, sub.UserID)
	if err != nil {
		return err
	}
	tags := []string{cache.UserTag(sub.UserID), cache.TagServices, cache.TagProfiles, cache.TagAdminStats}
	defer func() { cache.Revalidate(ctx, s.Cache, tags...) }()
	if limit := models.PlanListingLimits[models.PlanFree]; len(ids) > limit {
		for _, id := range ids[limit:] {
			err := s.ServiceRepo.TransitionStatus(ctx, id, models.ServiceStatusPublished, models.ServiceStatusInactive, nil)
			if err != nil && !errors.Is(err, models.ErrStatusChanged) {
				return err
			}
			tags = append(tags, cache.ServiceTag(id))
		}
	}
	return s.SubscriptionRepo.SetStatus(ctx, sub.ID, models.SubscriptionExpired)
}

func (s *SubscriptionService) logger() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}
