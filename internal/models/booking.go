package models

import "time"

const (
	BookingStatusRequested = "requested"
	BookingStatusAccepted  = "accepted"
	BookingStatusDeclined  = "declined"
	BookingStatusCanceled  = "canceled"
	BookingStatusCompleted = "completed"
)

type Booking struct {
	ID            int64      `json:"id"`
	ServiceID     int64      `json:"service_id"`
	ClientID      int64      `json:"client_id"`
	ProviderID    int64      `json:"provider_id"`
	Status        string     `json:"status"`
	Message       string     `json:"message"`
	PreferredDate *time.Time `json:"preferred_date,omitempty"`
	ServiceTitle  string     `json:"service_title,omitempty"`
	ClientName    string     `json:"client_name,omitempty"`
	ProviderName  string     `json:"provider_name,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// Open reports whether the booking still blocks a new request.
func (b Booking) Open() bool {
	return b.Status == BookingStatusRequested || b.Status == BookingStatusAccepted
}

type BookingRequest struct {
	ServiceID     int64  `json:"service_id" validate:"required,gt=0"`
	Message       string `json:"message" validate:"required,min=10,max=1000"`
	PreferredDate string `json:"preferred_date" validate:"omitempty,datetime=2006-01-02"`
}

type BookingDecision struct {
	Status string `json:"status" validate:"required,oneof=accepted declined canceled completed"`
}
