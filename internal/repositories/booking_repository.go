package repositories

import (
	"context"
	"database/sql"
	"errors"

	"doulitsa/internal/fsm"
	"doulitsa/internal/models"
)

type BookingRepository struct {
	DB *sql.DB
}

const bookingSelect = `
    SELECT b.id, b.service_id, b.client_id, b.provider_id, b.status, b.message, b.preferred_date,
           s.title, cu.display_name, pu.display_name, b.created_at, b.updated_at
    FROM bookings b
    JOIN services s ON s.id = b.service_id
    JOIN users cu ON cu.id = b.client_id
    JOIN users pu ON pu.id = b.provider_id`

func scanBooking(s scanner) (models.Booking, error) {
	var (
		b         models.Booking
		preferred sql.NullTime
		updated   sql.NullTime
	)
	err := s.Scan(&b.ID, &b.ServiceID, &b.ClientID, &b.ProviderID, &b.Status, &b.Message, &preferred,
		&b.ServiceTitle, &b.ClientName, &b.ProviderName, &b.CreatedAt, &updated)
	if err != nil {
		return models.Booking{}, err
	}
	b.PreferredDate = nullTimePtr(preferred)
	b.UpdatedAt = nullTimePtr(updated)
	return b, nil
}

func (r *BookingRepository) CreateBooking(ctx context.Context, b models.Booking) (models.Booking, error) {
	res, err := r.DB.ExecContext(ctx, `
        INSERT INTO bookings (service_id, client_id, provider_id, status, message, preferred_date, created_at)
        VALUES (?, ?, ?, ?, ?, ?, UTC_TIMESTAMP())`,
		b.ServiceID, b.ClientID, b.ProviderID, models.BookingStatusRequested, b.Message, b.PreferredDate)
	if err != nil {
		return models.Booking{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Booking{}, err
	}
	return r.GetBookingByID(ctx, id)
}

func (r *BookingRepository) GetBookingByID(ctx context.Context, id int64) (models.Booking, error) {
	b, err := scanBooking(r.DB.QueryRowContext(ctx, bookingSelect+` WHERE b.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Booking{}, models.ErrBookingNotFound
	}
	return b, err
}

func (r *BookingRepository) list(ctx context.Context, column string, userID int64, page, limit int) ([]models.Booking, int, error) {
	page, limit = models.NormalizePage(page, limit)

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings b WHERE b.`+column+` = ?`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx, bookingSelect+` WHERE b.`+column+` = ? ORDER BY b.created_at DESC, b.id DESC LIMIT ? OFFSET ?`,
		userID, limit, models.Offset(page, limit))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}

func (r *BookingRepository) ListByClient(ctx context.Context, clientID int64, page, limit int) ([]models.Booking, int, error) {
	return r.list(ctx, "client_id", clientID, page, limit)
}

func (r *BookingRepository) ListByProvider(ctx context.Context, providerID int64, page, limit int) ([]models.Booking, int, error) {
	return r.list(ctx, "provider_id", providerID, page, limit)
}

// HasOpen reports whether the client already has a requested or accepted
// booking for the service.
func (r *BookingRepository) HasOpen(ctx context.Context, serviceID, clientID int64) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM bookings WHERE service_id = ? AND client_id = ? AND status IN (?, ?))`,
		serviceID, clientID, models.BookingStatusRequested, models.BookingStatusAccepted).Scan(&exists)
	return exists, err
}

func (r *BookingRepository) HasCompleted(ctx context.Context, serviceID, clientID int64) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM bookings WHERE service_id = ? AND client_id = ? AND status = ?)`,
		serviceID, clientID, models.BookingStatusCompleted).Scan(&exists)
	return exists, err
}

func (r *BookingRepository) TransitionStatus(ctx context.Context, id int64, from, to string) error {
	return fsm.Bookings.Apply(ctx, r.DB, id, from, to)
}

func (r *BookingRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	return countGrouped(ctx, r.DB, `SELECT status, COUNT(*) FROM bookings GROUP BY status`)
}
