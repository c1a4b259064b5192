package models

import (
	"errors"
)

var (
	ErrNoRecord           = errors.New("models: no matching record found")
	ErrInvalidCredentials = errors.New("models: invalid credentials")
	ErrDuplicateEmail     = errors.New("models: duplicate email")
	ErrDuplicateUsername  = errors.New("models: duplicate username")
	ErrDuplicateSlug      = errors.New("models: duplicate slug")
	ErrUserNotFound       = errors.New("models: user not found")
	ErrProfileNotFound    = errors.New("models: profile not found")
	ErrServiceNotFound    = errors.New("models: service not found")
	ErrCategoryNotFound   = errors.New("models: category not found")
	ErrCategoryInUse      = errors.New("models: category still referenced")
	ErrReviewNotFound     = errors.New("models: review not found")
	ErrAlreadyReviewed    = errors.New("models: user already reviewed this service")
	ErrReportNotFound     = errors.New("models: report not found")
	ErrBookingNotFound    = errors.New("models: booking not found")
	ErrChatNotFound       = errors.New("models: chat not found")
	ErrMessageNotFound    = errors.New("models: message not found")
	ErrSessionNotFound    = errors.New("models: session not found")
	ErrCodeNotFound       = errors.New("models: verification code not found")
	ErrStatusChanged      = errors.New("models: status changed concurrently")
)
