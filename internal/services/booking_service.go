package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"doulitsa/internal/apperr"
	"doulitsa/internal/cache"
	"doulitsa/internal/locale"
	"doulitsa/internal/mail"
	"doulitsa/internal/models"
)

const (
	MsgBookingRequested = "Το αίτημα κράτησης στάλθηκε"
	MsgBookingUpdated   = "Η κράτηση ενημερώθηκε"
	MsgBookingNotFound  = "Η κράτηση δεν βρέθηκε"
	MsgBookingOwn       = "Δεν μπορείτε να κλείσετε τη δική σας υπηρεσία"
	MsgBookingOpen      = "Έχετε ήδη ενεργό αίτημα για αυτή την υπηρεσία"
	MsgBookingPastDate  = "Η ημερομηνία δεν μπορεί να είναι στο παρελθόν"
)

// bookingLabels are the status names shown in notifications.
var bookingLabels = map[string]string{
	models.BookingStatusRequested: "Νέο αίτημα",
	models.BookingStatusAccepted:  "Αποδεκτή",
	models.BookingStatusDeclined:  "Απορρίφθηκε",
	models.BookingStatusCanceled:  "Ακυρώθηκε",
	models.BookingStatusCompleted: "Ολοκληρώθηκε",
}

type BookingStore interface {
	CreateBooking(ctx context.Context, b models.Booking) (models.Booking, error)
	GetBookingByID(ctx context.Context, id int64) (models.Booking, error)
	ListByClient(ctx context.Context, clientID int64, page, limit int) ([]models.Booking, int, error)
	ListByProvider(ctx context.Context, providerID int64, page, limit int) ([]models.Booking, int, error)
	HasOpen(ctx context.Context, serviceID, clientID int64) (bool, error)
	TransitionStatus(ctx context.Context, id int64, from, to string) error
}

type BookingService struct {
	BookingRepo BookingStore
	ServiceRepo ServiceReader
	UserRepo    UserLookup
	Mail        Mailer
	Push        Pusher
	Cache       cache.Store
	PublicURL   string
	Now         func() time.Time
}

func bookingError(err error) error {
	switch {
	case errors.Is(err, models.ErrBookingNotFound):
		return apperr.NotFound(MsgBookingNotFound)
	case errors.Is(err, models.ErrServiceNotFound):
		return apperr.NotFound(MsgServiceNotFound)
	}
	return statusError(err)
}

// parseDate reads a preferred date and rejects days before today in Athens.
func parseDate(value string, now time.Time) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	loc := locale.Location()
	d, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return nil, apperr.Validation(map[string]string{"preferred_date": "Μη έγκυρη ημερομηνία"})
	}
	y, m, day := now.In(loc).Date()
	if d.Before(time.Date(y, m, day, 0, 0, 0, 0, loc)) {
		return nil, apperr.Validation(map[string]string{"preferred_date": MsgBookingPastDate})
	}
	return &d, nil
}

// Request books a published service for the client.
func (s *BookingService) Request(ctx context.Context, client models.User, req *models.BookingRequest) (models.Booking, error) {
	if err := validateForm(req); err != nil {
		return models.Booking{}, err
	}
	preferred, err := parseDate(req.PreferredDate, clock(s.Now))
	if err != nil {
		return models.Booking{}, err
	}

	svc, err := s.ServiceRepo.GetServiceByID(ctx, req.ServiceID)
	if err != nil {
		return models.Booking{}, bookingError(err)
	}
	if svc.Status != models.ServiceStatusPublished {
		return models.Booking{}, apperr.NotFound(MsgServiceNotPublic)
	}
	if svc.UserID == client.ID {
		return models.Booking{}, apperr.Forbidden(MsgBookingOwn)
	}
	open, err := s.BookingRepo.HasOpen(ctx, svc.ID, client.ID)
	if err != nil {
		return models.Booking{}, apperr.Internal(err)
	}
	if open {
		return models.Booking{}, apperr.Conflict(MsgBookingOpen)
	}

	b, err := s.BookingRepo.CreateBooking(ctx, models.Booking{
		ServiceID:     svc.ID,
		ClientID:      client.ID,
		ProviderID:    svc.UserID,
		Message:       req.Message,
		PreferredDate: preferred,
	})
	if err != nil {
		return models.Booking{}, apperr.Internal(err)
	}
	s.revalidate(ctx, b)
	s.notify(ctx, b, b.ProviderID)
	return b, nil
}

// Decide moves a booking to the requested status. Providers accept, decline
// and complete; clients cancel.
func (s *BookingService) Decide(ctx context.Context, user models.User, id int64, req *models.BookingDecision) (models.Booking, error) {
	if err := validateForm(req); err != nil {
		return models.Booking{}, err
	}
	b, err := s.BookingRepo.GetBookingByID(ctx, id)
	if err != nil {
		return models.Booking{}, bookingError(err)
	}

	var other int64
	switch req.Status {
	case models.BookingStatusCanceled:
		if user.ID != b.ClientID {
			return models.Booking{}, apperr.Forbidden(MsgNoPermission)
		}
		other = b.ProviderID
	default:
		if user.ID != b.ProviderID {
			return models.Booking{}, apperr.Forbidden(MsgNoPermission)
		}
		other = b.ClientID
	}
	if req.Status == b.Status {
		return b, nil
	}

	if err := s.BookingRepo.TransitionStatus(ctx, b.ID, b.Status, req.Status); err != nil {
		return models.Booking{}, bookingError(err)
	}
	b.Status = req.Status
	now := clock(s.Now)
	b.UpdatedAt = &now

	s.revalidate(ctx, b)
	s.notify(ctx, b, other)
	return b, nil
}

func (s *BookingService) revalidate(ctx context.Context, b models.Booking) {
	cache.Revalidate(ctx, s.Cache, cache.BookingsTag(b.ClientID), cache.BookingsTag(b.ProviderID), cache.TagAdminStats)
}

// notify tells the other party about the booking by email and push.
func (s *BookingService) notify(ctx context.Context, b models.Booking, userID int64) {
	label := bookingLabels[b.Status]
	url := fmt.Sprintf("%s/bookings/%d", s.PublicURL, b.ID)
	if u, err := s.UserRepo.GetUserByID(ctx, userID); err == nil {
		s.Mail.Deliver(mail.TemplateBookingUpdate, u.Email, mail.BookingData{
			ServiceTitle:  b.ServiceTitle,
			StatusLabel:   label,
			Message:       b.Message,
			PreferredDate: b.PreferredDate,
			URL:           url,
		})
	}
	if s.Push != nil {
		s.Push.NotifyUser(ctx, userID, b.ServiceTitle, label, map[string]string{
			"type":       "booking",
			"booking_id": strconv.FormatInt(b.ID, 10),
			"status":     b.Status,
		})
	}
}

func (s *BookingService) Get(ctx context.Context, user models.User, id int64) (models.Booking, error) {
	b, err := s.BookingRepo.GetBookingByID(ctx, id)
	if err != nil {
		return models.Booking{}, bookingError(err)
	}
	if user.ID != b.ClientID && user.ID != b.ProviderID && user.Role != models.RoleAdmin {
		return models.Booking{}, apperr.NotFound(MsgBookingNotFound)
	}
	return b, nil
}

type bookingPage struct {
	Items []models.Booking `json:"items"`
	Total int              `json:"total"`
}

// List returns the user's bookings as client, or as provider when
// asProvider is set.
func (s *BookingService) List(ctx context.Context, userID int64, asProvider bool, page, limit int) (models.Page[models.Booking], error) {
	page, limit = models.NormalizePage(page, limit)
	key := cache.BuildCacheKey("bookings", map[string]any{"user": userID, "provider": asProvider, "page": page, "limit": limit})
	res, err := cache.Remember(ctx, s.Cache, key, cache.TTLShort, []string{cache.BookingsTag(userID)}, func(ctx context.Context) (bookingPage, error) {
		list := s.BookingRepo.ListByClient
		if asProvider {
			list = s.BookingRepo.ListByProvider
		}
		items, total, err := list(ctx, userID, page, limit)
		return bookingPage{Items: items, Total: total}, err
	})
	if err != nil {
		return models.Page[models.Booking]{}, apperr.Internal(err)
	}
	return models.NewPage(res.Items, page, limit, res.Total), nil
}
