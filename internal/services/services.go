// Package services holds the business rules behind every action. Services
// validate forms, enforce ownership and status rules, and translate storage
// errors into apperr values with Greek messages.
package services

import (
	"context"
	"errors"
	"time"

	"doulitsa/internal/apperr"
	"doulitsa/internal/fsm"
	"doulitsa/internal/models"
	"doulitsa/internal/validation"
)

// Mailer queues templated email. Delivery failures never reach the caller.
type Mailer interface {
	Deliver(template, to string, data any)
	DeliverAdmin(template, replyTo string, data any)
}

type Pusher interface {
	NotifyUser(ctx context.Context, userID int64, title, body string, data map[string]string) int
}

type Uploader interface {
	UploadImage(ctx context.Context, data []byte, folder string) (key, url string, err error)
	Delete(ctx context.Context, key string) error
}

// Upload is one file received with a form.
type Upload struct {
	Name string
	Data []byte
}

const (
	MsgSaved          = "Οι αλλαγές αποθηκεύτηκαν"
	MsgNoPermission   = "Δεν έχετε δικαίωμα επεξεργασίας"
	MsgStatusChanged  = "Η κατάσταση άλλαξε στο μεταξύ. Ανανεώστε τη σελίδα"
	MsgInvalidStatus  = "Η αλλαγή κατάστασης δεν επιτρέπεται"
	MsgInvalidImage   = "Επιτρέπονται μόνο εικόνες JPG, PNG ή WEBP έως 5 MB"
	MsgUploadFailed   = "Η μεταφόρτωση της εικόνας απέτυχε"
	MsgUserNotFound   = "Ο χρήστης δεν βρέθηκε"
	MsgAccountBlocked = "Ο λογαριασμός σας έχει αποκλειστεί"
)

// validateForm trims the form's strings in place and runs its schema.
func validateForm(form any) error {
	validation.TrimStrings(form)
	if fields := validation.Struct(form); fields != nil {
		return apperr.Validation(fields)
	}
	return nil
}

func clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}

// statusError maps failed status writes. Anything else is internal.
func statusError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fsm.ErrInvalidTransition):
		return apperr.Wrap(err, apperr.ErrConflict, MsgInvalidStatus)
	case errors.Is(err, models.ErrStatusChanged):
		return apperr.Wrap(err, apperr.ErrConflict, MsgStatusChanged)
	}
	return apperr.Internal(err)
}
