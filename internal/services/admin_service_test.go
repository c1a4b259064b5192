package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doulitsa/internal/apperr"
	"doulitsa/internal/cache"
	"doulitsa/internal/models"
)

type staticCounts struct {
	n      int
	groups map[string]int
}

func (s staticCounts) Count(context.Context) (int, error) { return s.n, nil }
func (s staticCounts) CountOpen(context.Context) (int, error) { return s.n, nil }
func (s staticCounts) CountByStatus(context.Context) (map[string]int, error) { return s.groups, nil }
func (s staticCounts) CountByPlan(context.Context) (map[string]int, error) { return s.groups, nil }

func newAdminService(users *fakeUsers, store cache.Store) *AdminService {
	counts := staticCounts{n: 2, groups: map[string]int{"published": 4}}
	return &AdminService{
		UserRepo: users,
		Stats: StatsSource{
			Profiles:      counts,
			Services:      counts,
			Reviews:       counts,
			Reports:       counts,
			Bookings:      counts,
			Subscriptions: counts,
		},
		Cache: store,
	}
}

func TestBlockUserDropsSessions(t *testing.T) {
	users := newFakeUsers(admin, stranger)
	users.sessions["r1"] = models.Session{UserID: stranger.ID, RefreshToken: "r1"}
	svc := newAdminService(users, nil)
	ctx := context.Background()

	u, err := svc.SetBlocked(ctx, admin, stranger.ID, true)
	require.NoError(t, err)
	assert.True(t, u.Blocked)
	assert.Empty(t, users.sessions)

	_, err = svc.SetBlocked(ctx, admin, admin.ID, true)
	assert.True(t, errors.Is(err, apperr.ErrBadRequest))

	_, err = svc.SetBlocked(ctx, admin, 404, true)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestSetRoleAndDelete(t *testing.T) {
	users := newFakeUsers(admin, stranger)
	svc := newAdminService(users, nil)
	ctx := context.Background()

	u, err := svc.SetRole(ctx, admin, stranger.ID, &models.RoleRequest{Role: models.RoleCompany})
	require.NoError(t, err)
	assert.Equal(t, models.RoleCompany, u.Role)

	_, err = svc.SetRole(ctx, admin, stranger.ID, &models.RoleRequest{Role: "root"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	require.NoError(t, svc.DeleteUser(ctx, admin, stranger.ID))
	page, err := svc.ListUsers(ctx, models.UserFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestDashboardIsCachedUntilRevalidated(t *testing.T) {
	users := newFakeUsers(admin, stranger)
	store := cache.NewMemoryStore()
	svc := newAdminService(users, store)
	ctx := context.Background()

	st, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Users)
	assert.Equal(t, 2, st.Profiles)
	assert.Equal(t, 4, st.ServicesByStatus["published"])

	users.users[50] = models.User{ID: 50}
	st, err = svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Users, "served from cache")

	require.NoError(t, svc.Revalidate(ctx, &models.RevalidateRequest{Tags: []string{cache.TagAdminStats}}))
	st, err = svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Users)

	err = svc.Revalidate(ctx, &models.RevalidateRequest{})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}
