package main

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"doulitsa/internal/apperr"
	"doulitsa/internal/handlers"
	"doulitsa/internal/models"
	"doulitsa/internal/ratelimit"
)

func secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

func makeResponseJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder remembers the status written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// Hijack is needed by the websocket upgrade on /ws.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (app *application) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		entry := app.log.WithFields(logrus.Fields{
			"remote": r.RemoteAddr,
			"method": r.Method,
			"uri":    r.URL.RequestURI(),
		})
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(handlers.WithLogger(r.Context(), entry)))

		entry.WithFields(logrus.Fields{
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				handlers.ServerError(w, r, fmt.Errorf("panic: %v", err))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (app *application) JWTMiddlewareWithRole(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return app.JWTMiddleware(next, requiredRole, true)
	}
}

// optionalAuth resolves the user when a valid token is present and lets
// anonymous requests through otherwise.
func (app *application) optionalAuth(next http.Handler) http.Handler {
	return app.JWTMiddleware(next, "", false)
}

// JWTMiddleware authenticates the bearer token. An invalid access token is
// renewed from the Refresh-Token header and the new token is returned in the
// Authorization response header. The role check uses the stored user so that
// blocks and role changes apply before the token expires.
func (app *application) JWTMiddleware(next http.Handler, requiredRole string, required bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		refreshToken := r.Header.Get("Refresh-Token")
		if !strings.HasPrefix(authHeader, "Bearer ") && refreshToken == "" {
			if required {
				handlers.WriteError(w, r, apperr.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		claims, err := app.userService.ParseAccessToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			if refreshToken == "" {
				app.authFailed(w, r, next, err, required)
				return
			}
			var access string
			access, claims, err = app.userService.RefreshAccess(r.Context(), refreshToken)
			if err != nil {
				app.authFailed(w, r, next, err, required)
				return
			}
			w.Header().Set("Authorization", "Bearer "+access)
		}

		user, err := app.userService.ActiveUser(r.Context(), claims.UserID)
		if err != nil {
			app.authFailed(w, r, next, err, required)
			return
		}

		if !hasRole(user.Role, requiredRole) {
			handlers.WriteError(w, r, apperr.ErrForbidden)
			return
		}

		next.ServeHTTP(w, r.WithContext(handlers.WithUser(r.Context(), user)))
	})
}

func (app *application) authFailed(w http.ResponseWriter, r *http.Request, next http.Handler, err error, required bool) {
	if required {
		handlers.WriteError(w, r, err)
		return
	}
	next.ServeHTTP(w, r)
}

// rolePro gates routes for accounts that publish services.
const rolePro = "pro"

func hasRole(role, required string) bool {
	switch required {
	case "":
		return true
	case models.RoleAdmin:
		return role == models.RoleAdmin
	case rolePro:
		return role == models.RoleFreelancer || role == models.RoleCompany || role == models.RoleAdmin
	default:
		return role == required || role == models.RoleAdmin
	}
}

// rateLimit keys the limiter by client address and route name.
func (app *application) rateLimit(l *ratelimit.Limiter, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retry := l.Allow(route + ":" + clientIP(r))
			if !ok {
				secs := int(math.Ceil(retry.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				handlers.WriteError(w, r, apperr.TooManyRequests(apperr.MsgTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
