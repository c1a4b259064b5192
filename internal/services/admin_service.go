package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"doulitsa/internal/apperr"
	"doulitsa/internal/cache"
	"doulitsa/internal/models"
)

const (
	MsgUserBlocked   = "Ο χρήστης αποκλείστηκε"
	MsgUserUnblocked = "Ο αποκλεισμός αφαιρέθηκε"
	MsgRoleChanged   = "Ο ρόλος άλλαξε"
	MsgUserDeleted   = "Ο χρήστης διαγράφηκε"
	MsgRevalidated   = "Η cache ανανεώθηκε"
	MsgSelfAction    = "Δεν μπορείτε να εφαρμόσετε αυτή την ενέργεια στον εαυτό σας"
)

type AdminUserStore interface {
	ListUsers(ctx context.Context, f models.UserFilter) ([]models.User, int, error)
	GetUserByID(ctx context.Context, id int64) (models.User, error)
	SetBlocked(ctx context.Context, id int64, blocked bool) error
	SetRole(ctx context.Context, id int64, role string) error
	DeleteUser(ctx context.Context, id int64) error
	DeleteUserSessions(ctx context.Context, userID int64) error
	CountUsers(ctx context.Context) (total, blocked int, err error)
}

// StatsSource gathers the dashboard counters from each table.
type StatsSource struct {
	Profiles interface {
		Count(ctx context.Context) (int, error)
	}
	Services interface {
		CountByStatus(ctx context.Context) (map[string]int, error)
	}
	Reviews interface {
		Count(ctx context.Context) (int, error)
	}
	Reports interface {
		CountOpen(ctx context.Context) (int, error)
	}
	Bookings interface {
		CountByStatus(ctx context.Context) (map[string]int, error)
	}
	Subscriptions interface {
		CountByPlan(ctx context.Context) (map[string]int, error)
	}
}

type AdminService struct {
	UserRepo AdminUserStore
	Stats    StatsSource
	Cache    cache.Store
	Reviews  ReviewTargets
	Log      logrus.FieldLogger
}

func (s *AdminService) ListUsers(ctx context.Context, f models.UserFilter) (models.Page[models.User], error) {
	f.Page, f.Limit = models.NormalizePage(f.Page, f.Limit)
	items, total, err := s.UserRepo.ListUsers(ctx, f)
	if err != nil {
		return models.Page[models.User]{}, apperr.Internal(err)
	}
	return models.NewPage(items, f.Page, f.Limit, total), nil
}

func (s *AdminService) target(ctx context.Context, admin models.User, id int64) (models.User, error) {
	if admin.ID == id {
		return models.User{}, apperr.BadRequest(MsgSelfAction)
	}
	u, err := s.UserRepo.GetUserByID(ctx, id)
	if errors.Is(err, models.ErrUserNotFound) {
		return models.User{}, apperr.NotFound(MsgUserNotFound)
	}
	if err != nil {
		return models.User{}, apperr.Internal(err)
	}
	return u, nil
}

// SetBlocked blocks or unblocks a user. Blocking signs the user out
// everywhere.
func (s *AdminService) SetBlocked(ctx context.Context, admin models.User, id int64, blocked bool) (models.User, error) {
	u, err := s.target(ctx, admin, id)
	if err != nil {
		return models.User{}, err
	}
	if err := s.UserRepo.SetBlocked(ctx, id, blocked); err != nil {
		return models.User{}, apperr.Internal(err)
	}
	if blocked {
		if err := s.UserRepo.DeleteUserSessions(ctx, id); err != nil {
			return models.User{}, apperr.Internal(err)
		}
	}
	cache.Revalidate(ctx, s.Cache, cache.UserTag(id), cache.TagAdminStats, cache.TagProfiles, cache.TagServices)
	u.Blocked = blocked
	return u, nil
}

func (s *AdminService) SetRole(ctx context.Context, admin models.User, id int64, req *models.RoleRequest) (models.User, error) {
	if err := validateForm(req); err != nil {
		return models.User{}, err
	}
	u, err := s.target(ctx, admin, id)
	if err != nil {
		return models.User{}, err
	}
	if err := s.UserRepo.SetRole(ctx, id, req.Role); err != nil {
		return models.User{}, apperr.Internal(err)
	}
	cache.Revalidate(ctx, s.Cache, cache.UserTag(id))
	u.Role = req.Role
	return u, nil
}

func (s *AdminService) DeleteUser(ctx context.Context, admin models.User, id int64) error {
	if _, err := s.target(ctx, admin, id); err != nil {
		return err
	}
	if err := deleteWithReviews(ctx, s.Reviews, s.Log, id, s.UserRepo.DeleteUser); err != nil {
		return apperr.Internal(err)
	}
	cache.Revalidate(ctx, s.Cache, cache.UserTag(id), cache.TagAdminStats, cache.TagProfiles, cache.TagServices)
	return nil
}

// Dashboard returns the admin counters, cached briefly.
func (s *AdminService) Dashboard(ctx context.Context) (models.AdminStats, error) {
	key := cache.BuildCacheKey("admin:stats", nil)
	stats, err := cache.Remember(ctx, s.Cache, key, cache.TTLShort, []string{cache.TagAdminStats}, s.collect)
	if err != nil {
		return models.AdminStats{}, apperr.Internal(err)
	}
	return stats, nil
}

func (s *AdminService) collect(ctx context.Context) (models.AdminStats, error) {
	var st models.AdminStats
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st.Users, st.BlockedUsers, err = s.UserRepo.CountUsers(ctx)
		return err
	})
	g.Go(func() (err error) {
		st.Profiles, err = s.Stats.Profiles.Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		st.ServicesByStatus, err = s.Stats.Services.CountByStatus(ctx)
		return err
	})
	g.Go(func() (err error) {
		st.Reviews, err = s.Stats.Reviews.Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		st.OpenReports, err = s.Stats.Reports.CountOpen(ctx)
		return err
	})
	g.Go(func() (err error) {
		st.BookingsByStatus, err = s.Stats.Bookings.CountByStatus(ctx)
		return err
	})
	g.Go(func() (err error) {
		st.Subscriptions, err = s.Stats.Subscriptions.CountByPlan(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.AdminStats{}, err
	}
	return st, nil
}

// Revalidate drops every cache entry carrying one of the tags.
func (s *AdminService) Revalidate(ctx context.Context, req *models.RevalidateRequest) error {
	if err := validateForm(req); err != nil {
		return err
	}
	if s.Cache == nil {
		return nil
	}
	if err := s.Cache.Revalidate(ctx, req.Tags...); err != nil {
		return apperr.Internal(err)
	}
	return nil
}
