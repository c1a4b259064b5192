// Package apperr defines the status-aware errors returned by services and the
// action result envelope written by handlers.
package apperr

import (
	"errors"
	"net/http"
)

// Error represents a typed, status-aware application error.
type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message,omitempty"`
	Status  int               `json:"-"`
	Fields  map[string]string `json:"fields,omitempty"`
	Err     error             `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return "error"
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is an *Error with the same code, so that
// errors.Is(err, apperr.ErrNotFound) works for copies made by the
// constructors below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

const (
	MsgBadRequest      = "Μη έγκυρο αίτημα"
	MsgValidation      = "Παρακαλώ διορθώστε τα σφάλματα της φόρμας"
	MsgUnauthorized    = "Πρέπει να συνδεθείτε για να συνεχίσετε"
	MsgForbidden       = "Δεν έχετε δικαίωμα για αυτή την ενέργεια"
	MsgNotFound        = "Δεν βρέθηκε"
	MsgConflict        = "Η ενέργεια έρχεται σε σύγκρουση με υπάρχοντα δεδομένα"
	MsgTooManyRequests = "Πάρα πολλά αιτήματα. Δοκιμάστε ξανά σε λίγο"
	MsgInternal        = "Κάτι πήγε στραβά. Δοκιμάστε ξανά αργότερα"
	MsgUnavailable     = "Η υπηρεσία δεν είναι διαθέσιμη αυτή τη στιγμή"
)

var (
	ErrBadRequest      = New("bad_request", http.StatusBadRequest, MsgBadRequest)
	ErrValidation      = New("validation_error", http.StatusBadRequest, MsgValidation)
	ErrUnauthorized    = New("unauthorized", http.StatusUnauthorized, MsgUnauthorized)
	ErrForbidden       = New("forbidden", http.StatusForbidden, MsgForbidden)
	ErrNotFound        = New("not_found", http.StatusNotFound, MsgNotFound)
	ErrConflict        = New("conflict", http.StatusConflict, MsgConflict)
	ErrTooManyRequests = New("too_many_requests", http.StatusTooManyRequests, MsgTooManyRequests)
	ErrInternal        = New("internal_error", http.StatusInternalServerError, MsgInternal)
	ErrUnavailable     = New("service_unavailable", http.StatusServiceUnavailable, MsgUnavailable)
)

func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches err as the cause of a copy of base. An empty message keeps the
// base message.
func Wrap(err error, base *Error, message string) *Error {
	if err == nil {
		return nil
	}
	if base == nil {
		base = ErrInternal
	}
	cp := *base
	if message != "" {
		cp.Message = message
	}
	cp.Err = err
	return &cp
}

func WithFields(base *Error, fields map[string]string) *Error {
	if base == nil {
		return nil
	}
	cp := *base
	cp.Fields = fields
	return &cp
}

func with(base *Error, message string) *Error {
	cp := *base
	if message != "" {
		cp.Message = message
	}
	return &cp
}

func BadRequest(message string) *Error      { return with(ErrBadRequest, message) }
func Unauthorized(message string) *Error    { return with(ErrUnauthorized, message) }
func Forbidden(message string) *Error       { return with(ErrForbidden, message) }
func NotFound(message string) *Error        { return with(ErrNotFound, message) }
func Conflict(message string) *Error        { return with(ErrConflict, message) }
func TooManyRequests(message string) *Error { return with(ErrTooManyRequests, message) }
func Unavailable(message string) *Error     { return with(ErrUnavailable, message) }

// Validation returns a validation error carrying per-field messages.
func Validation(fields map[string]string) *Error {
	return WithFields(ErrValidation, fields)
}

// Internal hides err behind the generic message.
func Internal(err error) *Error {
	if err == nil {
		err = errors.New("internal error")
	}
	return Wrap(err, ErrInternal, "")
}

func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e, true
	}
	return nil, false
}

func Status(err error) int {
	if e, ok := As(err); ok && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

func Code(err error) string {
	if e, ok := As(err); ok && e.Code != "" {
		return e.Code
	}
	return ErrInternal.Code
}

// Message returns the user-facing message. Errors that are not *Error never
// leak their text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		if e.Message != "" {
			return e.Message
		}
		return MsgInternal
	}
	return MsgInternal
}
