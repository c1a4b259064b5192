package models

import (
	"time"
)

type Review struct {
	ID             int64      `json:"id"`
	ServiceID      int64      `json:"service_id"`
	ProfileID      int64      `json:"profile_id"`
	UserID         int64      `json:"user_id"`
	Rating         int        `json:"rating"`
	Comment        string     `json:"comment"`
	Verified       bool       `json:"verified"`
	AuthorName     string     `json:"author_name,omitempty"`
	AuthorUsername string     `json:"author_username,omitempty"`
	ServiceTitle   string     `json:"service_title,omitempty"`
	RelativeTime   string     `json:"relative_time,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required,min=10,max=1000"`
}

// ReviewTarget is what one review rates.
type ReviewTarget struct {
	ServiceID int64
	ProfileID int64
}

// RatingSummary is the aggregate stored on services and profiles.
type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}
