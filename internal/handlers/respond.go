// Package handlers exposes the services over HTTP. Handlers decode the
// request, call one service method and write either plain JSON or an action
// result envelope.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"doulitsa/internal/apperr"
	"doulitsa/internal/models"
)

const maxJSONBody = 1 << 20

type ctxKey int

const (
	userKey ctxKey = iota
	logKey
)

// WithUser stores the authenticated user on the context.
func WithUser(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// CurrentUser returns the user stored by the auth middleware.
func CurrentUser(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(userKey).(models.User)
	return u, ok && u.ID > 0
}

// WithLogger stores a request scoped logger.
func WithLogger(ctx context.Context, l logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, logKey, l)
}

func logger(r *http.Request) logrus.FieldLogger {
	if l, ok := r.Context().Value(logKey).(logrus.FieldLogger); ok {
		return l
	}
	return logrus.StandardLogger()
}

// mustUser is used behind the auth middleware; a missing user is a routing
// mistake and is reported as unauthorized.
func mustUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		writeError(w, r, apperr.ErrUnauthorized)
	}
	return u, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeResult writes a successful action result.
func writeResult(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, apperr.OK(message, data))
}

// writeError writes a failed action result with the status of err. Internal
// causes are logged and never sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		logger(r).WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"uri":    r.URL.RequestURI(),
		}).Error("request failed")
	}
	writeJSON(w, status, apperr.Result(err))
}

// WriteError is writeError for middleware outside the package.
func WriteError(w http.ResponseWriter, r *http.Request, err error) { writeError(w, r, err) }

// ServerError is used by the recover middleware.
func ServerError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, apperr.Internal(err))
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, apperr.Wrap(err, apperr.ErrBadRequest, apperr.MsgBadRequest))
		return false
	}
	return true
}
