package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doulitsa/internal/apperr"
	"doulitsa/internal/mail"
	"doulitsa/internal/models"
)

type bookingFixture struct {
	svc      *BookingService
	bookings *fakeBookings
	mail     *fakeMailer
	push     *fakePusher
}

func newBookingFixture() bookingFixture {
	f := bookingFixture{bookings: newFakeBookings(), mail: &fakeMailer{}, push: &fakePusher{}}
	f.svc = &BookingService{
		BookingRepo: f.bookings,
		ServiceRepo: newFakeServices(
			models.Service{ID: 5, UserID: owner.ID, Title: "Tiling", Status: models.ServiceStatusPublished},
			models.Service{ID: 6, UserID: owner.ID, Status: models.ServiceStatusInactive},
		),
		UserRepo:  newFakeUsers(owner, stranger),
		Mail:      f.mail,
		Push:      f.push,
		PublicURL: "https://doulitsa.test",
		Now:       fixedNow,
	}
	return f
}

func bookingForm(serviceID int64, date string) *models.BookingRequest {
	return &models.BookingRequest{ServiceID: serviceID, Message: "Θα ήθελα να κλείσω ραντεβού", PreferredDate: date}
}

func TestRequestBookingNotifiesProvider(t *testing.T) {
	f := newBookingFixture()

	b, err := f.svc.Request(context.Background(), stranger, bookingForm(5, "2026-03-10"))
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusRequested, b.Status)
	assert.Equal(t, owner.ID, b.ProviderID)
	require.NotNil(t, b.PreferredDate)

	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, mail.TemplateBookingUpdate, f.mail.sent[0].Template)
	assert.Equal(t, owner.Email, f.mail.sent[0].To)
	require.Len(t, f.push.calls, 1)
	assert.Equal(t, owner.ID, f.push.calls[0].UserID)
	assert.Equal(t, "requested", f.push.calls[0].Data["status"])
}

func TestRequestBookingRules(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()

	_, err := f.svc.Request(ctx, stranger, bookingForm(5, "2026-03-09"))
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, MsgBookingPastDate, e.Fields["preferred_date"])

	_, err = f.svc.Request(ctx, owner, bookingForm(5, ""))
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = f.svc.Request(ctx, stranger, bookingForm(6, ""))
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = f.svc.Request(ctx, stranger, bookingForm(5, ""))
	require.NoError(t, err)
	_, err = f.svc.Request(ctx, stranger, bookingForm(5, ""))
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Equal(t, MsgBookingOpen, apperr.Message(err))
}

func TestDecideBookingRoles(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	b, err := f.svc.Request(ctx, stranger, bookingForm(5, ""))
	require.NoError(t, err)

	_, err = f.svc.Decide(ctx, stranger, b.ID, &models.BookingDecision{Status: models.BookingStatusAccepted})
	assert.True(t, errors.Is(err, apperr.ErrForbidden), "client cannot accept")

	_, err = f.svc.Decide(ctx, owner, b.ID, &models.BookingDecision{Status: models.BookingStatusCompleted})
	assert.True(t, errors.Is(err, apperr.ErrConflict), "requested cannot complete")

	out, err := f.svc.Decide(ctx, owner, b.ID, &models.BookingDecision{Status: models.BookingStatusAccepted})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusAccepted, out.Status)
	last := f.push.calls[len(f.push.calls)-1]
	assert.Equal(t, stranger.ID, last.UserID)

	pushes, mails := len(f.push.calls), len(f.mail.sent)
	out, err = f.svc.Decide(ctx, owner, b.ID, &models.BookingDecision{Status: models.BookingStatusAccepted})
	require.NoError(t, err, "accepting twice is a no-op")
	assert.Equal(t, models.BookingStatusAccepted, out.Status)
	assert.Len(t, f.push.calls, pushes, "no second push")
	assert.Len(t, f.mail.sent, mails, "no second email")

	_, err = f.svc.Decide(ctx, owner, b.ID, &models.BookingDecision{Status: models.BookingStatusCanceled})
	assert.True(t, errors.Is(err, apperr.ErrForbidden), "provider cannot cancel")

	out, err = f.svc.Decide(ctx, owner, b.ID, &models.BookingDecision{Status: models.BookingStatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCompleted, out.Status)

	_, err = f.svc.Request(ctx, stranger, bookingForm(5, ""))
	assert.NoError(t, err, "completed bookings do not block new requests")
}

func TestClientCancelsBooking(t *testing.T) {
	f := newBookingFixture()
	ctx := context.Background()
	b, err := f.svc.Request(ctx, stranger, bookingForm(5, ""))
	require.NoError(t, err)

	out, err := f.svc.Decide(ctx, stranger, b.ID, &models.BookingDecision{Status: models.BookingStatusCanceled})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCanceled, out.Status)

	_, err = f.svc.Decide(ctx, stranger, b.ID, &models.BookingDecision{Status: models.BookingStatusCanceled})
	assert.NoError(t, err, "same status is a no-op")

	page, err := f.svc.List(ctx, owner.ID, true, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	_, err = f.svc.Get(ctx, admin, b.ID)
	assert.NoError(t, err)
	_, err = f.svc.Get(ctx, models.User{ID: 99}, b.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestParseDateUsesAthensDay(t *testing.T) {
	// 23:30 UTC on the 9th is already the 10th in Athens.
	now := time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC)
	_, err := parseDate("2026-03-09", now)
	assert.Error(t, err)
	d, err := parseDate("2026-03-10", now)
	require.NoError(t, err)
	assert.Equal(t, 10, d.Day())
}
