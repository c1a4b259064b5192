package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doulitsa/internal/apperr"
	"doulitsa/internal/cache"
	"doulitsa/internal/mail"
	"doulitsa/internal/models"
)

type reviewFixture struct {
	svc      *ReviewService
	reviews  *fakeReviews
	services *fakeServices
	bookings *fakeBookings
	mail     *fakeMailer
}

func newReviewFixture() reviewFixture {
	f := reviewFixture{
		reviews: newFakeReviews(),
		services: newFakeServices(
			models.Service{ID: 5, UserID: owner.ID, ProfileID: 3, Title: "Tiling", Slug: "tiling", Status: models.ServiceStatusPublished},
			models.Service{ID: 6, UserID: owner.ID, ProfileID: 3, Status: models.ServiceStatusPending},
		),
		bookings: newFakeBookings(),
		mail:     &fakeMailer{},
	}
	f.svc = &ReviewService{
		ReviewRepo:  f.reviews,
		ServiceRepo: f.services,
		ProfileRepo: newFakeProfiles(models.Profile{ID: 3, UserID: owner.ID, Username: "maria"}),
		BookingRepo: f.bookings,
		UserRepo:    newFakeUsers(owner, stranger, admin),
		Mail:        f.mail,
		PublicURL:   "https://doulitsa.test",
		Now:         fixedNow,
	}
	return f
}

var goodReview = &models.ReviewRequest{Rating: 5, Comment: "Εξαιρετική δουλειά, πολύ καθαρό αποτέλεσμα"}

func TestCreateReview(t *testing.T) {
	f := newReviewFixture()
	f.bookings.completed[[2]int64{5, stranger.ID}] = true

	rv, err := f.svc.Create(context.Background(), stranger, 5, goodReview)
	require.NoError(t, err)
	assert.True(t, rv.Verified)
	assert.Equal(t, int64(3), rv.ProfileID)
	assert.Equal(t, "πριν από 2 ώρες", rv.RelativeTime)
	assert.Equal(t, []int64{5}, f.services.refreshed)

	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, mail.TemplateNewReview, f.mail.sent[0].Template)
	assert.Equal(t, owner.Email, f.mail.sent[0].To)
	data := f.mail.sent[0].Data.(mail.ReviewData)
	assert.Equal(t, "https://doulitsa.test/s/tiling", data.URL)
}

func TestCreateReviewRules(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, owner, 5, goodReview)
	assert.True(t, errors.Is(err, apperr.ErrForbidden), "owner review")

	_, err = f.svc.Create(ctx, stranger, 6, goodReview)
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "unpublished service")

	rv, err := f.svc.Create(ctx, stranger, 5, goodReview)
	require.NoError(t, err)
	assert.False(t, rv.Verified)

	_, err = f.svc.Create(ctx, stranger, 5, goodReview)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Equal(t, MsgAlreadyReviewed, apperr.Message(err))

	_, err = f.svc.Create(ctx, admin, 5, &models.ReviewRequest{Rating: 6, Comment: "short"})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, e.Fields, "rating")
	assert.Contains(t, e.Fields, "comment")
}

func TestUpdateAndDeleteReview(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()
	rv, err := f.svc.Create(ctx, stranger, 5, goodReview)
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, admin, rv.ID, goodReview)
	assert.True(t, errors.Is(err, apperr.ErrForbidden), "admins cannot edit")

	updated, err := f.svc.Update(ctx, stranger, rv.ID, &models.ReviewRequest{Rating: 3, Comment: "Καλή δουλειά αλλά άργησε"})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Rating)

	require.NoError(t, f.svc.Delete(ctx, admin, rv.ID))
	assert.True(t, errors.Is(f.svc.Delete(ctx, stranger, rv.ID), apperr.ErrNotFound))
}

func TestListReviewsByProfile(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()
	_, err := f.svc.Create(ctx, stranger, 5, goodReview)
	require.NoError(t, err)

	page, err := f.svc.ListByProfile(ctx, "maria", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.NotEmpty(t, page.Items[0].RelativeTime)

	_, err = f.svc.ListByProfile(ctx, "nobody", 1, 10)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func newRatingFixture(t *testing.T) (*ReviewService, *fakeReviews, *fakeServices, *fakeProfiles, cache.Store) {
	t.Helper()
	reviews := newFakeReviews()
	services := newFakeServices(
		models.Service{ID: 10, ProfileID: 3, UserID: owner.ID, Status: models.ServiceStatusPublished},
		models.Service{ID: 11, ProfileID: 3, UserID: owner.ID, Status: models.ServiceStatusPublished},
	)
	profiles := newFakeProfiles(models.Profile{ID: 3, UserID: owner.ID, Username: "maria"})
	store := cache.NewMemoryStore()
	for _, rv := range []models.Review{
		{ServiceID: 10, ProfileID: 3, UserID: stranger.ID, Rating: 1},
		{ServiceID: 11, ProfileID: 3, UserID: stranger.ID, Rating: 2},
		{ServiceID: 10, ProfileID: 3, UserID: admin.ID, Rating: 5},
	} {
		_, err := reviews.CreateReview(context.Background(), rv)
		require.NoError(t, err)
	}
	svc := &ReviewService{ReviewRepo: reviews, ServiceRepo: services, ProfileRepo: profiles, Cache: store, Now: fixedNow}
	return svc, reviews, services, profiles, store
}

func cached(t *testing.T, store cache.Store, key string) bool {
	t.Helper()
	_, ok, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func TestDeleteAccountRefreshesReviewedRatings(t *testing.T) {
	reviewSvc, reviews, services, profiles, store := newRatingFixture(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "reviews-10", []byte("[]"), time.Minute, cache.ServiceReviewsTag(10)))
	require.NoError(t, store.Set(ctx, "reviews-p3", []byte("[]"), time.Minute, cache.ProfileReviewsTag(3)))

	users := newFakeUsers(owner, stranger, admin)
	users.onDelete = reviews.deleteByAuthor
	svc, _ := newUserService(t, users)
	svc.Reviews = reviewSvc

	require.NoError(t, svc.DeleteAccount(ctx, stranger.ID, &models.DeleteAccountRequest{}))

	assert.Len(t, reviews.reviews, 1)
	assert.ElementsMatch(t, []int64{10, 11}, services.refreshed)
	assert.Equal(t, []int64{3}, profiles.refreshed)
	assert.False(t, cached(t, store, "reviews-10"))
	assert.False(t, cached(t, store, "reviews-p3"))
}

func TestAdminDeleteUserRefreshesReviewedRatings(t *testing.T) {
	reviewSvc, reviews, services, profiles, _ := newRatingFixture(t)
	users := newFakeUsers(owner, stranger, admin)
	users.onDelete = reviews.deleteByAuthor
	svc := newAdminService(users, nil)
	svc.Reviews = reviewSvc

	require.NoError(t, svc.DeleteUser(context.Background(), admin, stranger.ID))
	assert.ElementsMatch(t, []int64{10, 11}, services.refreshed)
	assert.Equal(t, []int64{3}, profiles.refreshed)

	// No reviews, nothing to refresh.
	services.refreshed, profiles.refreshed = nil, nil
	require.NoError(t, svc.DeleteUser(context.Background(), admin, owner.ID))
	assert.Empty(t, services.refreshed)
	assert.Empty(t, profiles.refreshed)
}
