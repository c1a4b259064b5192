package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"doulitsa/internal/apperr"
	"doulitsa/internal/cache"
	"doulitsa/internal/locale"
	"doulitsa/internal/mail"
	"doulitsa/internal/models"
	"doulitsa/utils"
)

const (
	MsgSignedUp        = "Ο λογαριασμός δημιουργήθηκε. Ελέγξτε το email σας"
	MsgEmailConfirmed  = "Το email επιβεβαιώθηκε. Μπορείτε να συνδεθείτε"
	MsgSignedIn        = "Συνδεθήκατε με επιτυχία"
	MsgSignedOut       = "Αποσυνδεθήκατε"
	MsgResetRequested  = "Αν υπάρχει λογαριασμός με αυτό το email, θα λάβετε οδηγίες επαναφοράς"
	MsgPasswordChanged = "Ο κωδικός άλλαξε"
	MsgAccountDeleted  = "Ο λογαριασμός διαγράφηκε"

	MsgEmailTaken     = "Το email χρησιμοποιείται ήδη"
	MsgUsernameTaken  = "Το όνομα χρήστη χρησιμοποιείται ήδη"
	MsgBadCredentials = "Λάθος στοιχεία σύνδεσης"
	MsgConfirmFirst   = "Επιβεβαιώστε πρώτα το email σας"
	MsgInvalidCode    = "Ο κωδικός δεν είναι έγκυρος ή έχει λήξει"
	MsgSessionExpired = "Η συνεδρία έληξε. Συνδεθείτε ξανά"
	MsgWrongPassword  = "Ο τρέχων κωδικός δεν είναι σωστός"
	MsgNoPassword     = "Ο λογαριασμός συνδέεται μόνο μέσω Google"
	MsgGoogleFailed   = "Η σύνδεση με Google απέτυχε"
	MsgGoogleDisabled = "Η σύνδεση με Google δεν είναι διαθέσιμη"
)

const (
	confirmCodeTTL = 24 * time.Hour
	resetCodeTTL   = time.Hour
	oauthStateTTL  = 10 * time.Minute
)

type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUserByID(ctx context.Context, id int64) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserByGoogleSub(ctx context.Context, sub string) (models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	SetConfirmed(ctx context.Context, id int64) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	UpdateAccount(ctx context.Context, id int64, displayName, phone string) error
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	LinkGoogle(ctx context.Context, id int64, sub string) error
	DeleteUser(ctx context.Context, id int64) error
	CreateSession(ctx context.Context, s models.Session) error
	GetSessionByToken(ctx context.Context, token string) (models.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteUserSessions(ctx context.Context, userID int64) error
	CreateCode(ctx context.Context, c models.VerificationCode) error
	GetActiveCode(ctx context.Context, userID int64, purpose, code string, now time.Time) (models.VerificationCode, error)
	MarkCodeUsed(ctx context.Context, id int64) error
}

// GoogleProvider runs the OAuth code flow against Google.
type GoogleProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (models.GoogleUser, error)
}

type UserService struct {
	UserRepo     UserStore
	TokenManager *utils.Manager
	Mail         Mailer
	Google       GoogleProvider
	Cache        cache.Store
	Log          logrus.FieldLogger
	Reviews      ReviewTargets

	JWTSecret   string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	RealtimeTTL time.Duration
	Now         func() time.Time
}

func (s *UserService) now() time.Time { return clock(s.Now) }

func hashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func (s *UserService) SignUp(ctx context.Context, req *models.SignUpRequest) (models.User, error) {
	if err := validateForm(req); err != nil {
		return models.User{}, err
	}
	email := strings.ToLower(req.Email)
	username := strings.ToLower(req.Username)

	if _, err := s.UserRepo.GetUserByEmail(ctx, email); err == nil {
		return models.User{}, apperr.WithFields(apperr.Conflict(MsgEmailTaken), map[string]string{"email": MsgEmailTaken})
	} else if !errors.Is(err, models.ErrUserNotFound) {
		return models.User{}, apperr.Internal(err)
	}
	exists, err := s.UserRepo.UsernameExists(ctx, username)
	if err != nil {
		return models.User{}, apperr.Internal(err)
	}
	if exists {
		return models.User{}, apperr.WithFields(apperr.Conflict(MsgUsernameTaken), map[string]string{"username": MsgUsernameTaken})
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return models.User{}, apperr.Internal(err)
	}
	user, err := s.UserRepo.CreateUser(ctx, models.User{
		Email:        email,
		Username:     username,
		DisplayName:  req.DisplayName,
		PasswordHash: hash,
		Role:         models.RoleUser,
	})
	switch {
	case errors.Is(err, models.ErrDuplicateEmail):
		return models.User{}, apperr.Conflict(MsgEmailTaken)
	case errors.Is(err, models.ErrDuplicateUsername):
		return models.User{}, apperr.Conflict(MsgUsernameTaken)
	case err != nil:
		return models.User{}, apperr.Internal(err)
	}

	if err := s.sendCode(ctx, user, models.CodePurposeConfirm); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *UserService) sendCode(ctx context.Context, user models.User, purpose string) error {
	ttl, tpl := confirmCodeTTL, mail.TemplateConfirmEmail
	if purpose == models.CodePurposeReset {
		ttl, tpl = resetCodeTTL, mail.TemplatePasswordReset
	}
	code := models.VerificationCode{
		UserID:    user.ID,
		Purpose:   purpose,
		Code:      utils.NewCode(6),
		ExpiresAt: s.now().Add(ttl),
	}
	if err := s.UserRepo.CreateCode(ctx, code); err != nil {
		return apperr.Internal(err)
	}
	s.Mail.Deliver(tpl, user.Email, mail.CodeData{Name: user.DisplayName, Code: code.Code, ExpiresAt: code.ExpiresAt})
	return nil
}

// useCode checks and consumes a verification code for the account behind email.
func (s *UserService) useCode(ctx context.Context, email, purpose, code string) (models.User, error) {
	user, err := s.UserRepo.GetUserByEmail(ctx, strings.ToLower(email))
	if errors.Is(err, models.ErrUserNotFound) {
		return models.User{}, apperr.BadRequest(MsgInvalidCode)
	}
	if err != nil {
		return models.User{}, apperr.Internal(err)
	}
	c, err := s.UserRepo.GetActiveCode(ctx, user.ID, purpose, code, s.now())
	if errors.Is(err, models.ErrCodeNotFound) {
		return models.User{}, apperr.WithFields(apperr.BadRequest(MsgInvalidCode), map[string]string{"code": MsgInvalidCode})
	}
	if err != nil {
		return models.User{}, apperr.Internal(err)
	}
	if err := s.UserRepo.MarkCodeUsed(ctx, c.ID); err != nil {
		return models.User{}, apperr.Internal(err)
	}
	return user, nil
}

func (s *UserService) ConfirmEmail(ctx context.Context, req *models.ConfirmEmailRequest) error {
	if err := validateForm(req); err != nil {
		return err
	}
	user, err := s.useCode(ctx, req.Email, models.CodePurposeConfirm, req.Code)
	if err != nil {
		return err
	}
	if err := s.UserRepo.SetConfirmed(ctx, user.ID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// SignIn accepts an email or a username as identifier.
func (s *UserService) SignIn(ctx context.Context, req *models.SignInRequest) (models.Tokens, models.User, error) {
	if err := validateForm(req); err != nil {
		return models.Tokens{}, models.User{}, err
	}

	ident := strings.ToLower(req.Identifier)
	var (
		user models.User
		err  error
	)
	if strings.Contains(ident, "@") {
		user, err = s.UserRepo.GetUserByEmail(ctx, ident)
	} else {
		user, err = s.UserRepo.GetUserByUsername(ctx, ident)
	}
	if errors.Is(err, models.ErrUserNotFound) {
		return models.Tokens{}, models.User{}, apperr.Unauthorized(MsgBadCredentials)
	}
	if err != nil {
		return models.Tokens{}, models.User{}, apperr.Internal(err)
	}
	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return models.Tokens{}, models.User{}, apperr.Unauthorized(MsgBadCredentials)
	}
	if user.Blocked {
		return models.Tokens{}, models.User{}, apperr.Forbidden(MsgAccountBlocked)
	}
	if !user.Confirmed {
		return models.Tokens{}, models.User{}, apperr.Forbidden(MsgConfirmFirst)
	}

	tokens, err := s.login(ctx, user)
	return tokens, user, err
}

func (s *UserService) login(ctx context.Context, user models.User) (models.Tokens, error) {
	tokens, err := s.CreateSession(ctx, user.ID, user.Role)
	if err != nil {
		return models.Tokens{}, err
	}
	if err := s.UserRepo.UpdateLastLogin(ctx, user.ID, s.now()); err != nil && s.Log != nil {
		s.Log.WithError(err).WithField("user_id", user.ID).Warn("update last login")
	}
	return tokens, nil
}

// CreateSession issues an access token and stores a new refresh token.
func (s *UserService) CreateSession(ctx context.Context, userID int64, role string) (models.Tokens, error) {
	access, exp, err := s.GenerateAccessToken(userID, role)
	if err != nil {
		return models.Tokens{}, apperr.Internal(err)
	}
	refresh, err := s.TokenManager.NewRefreshToken()
	if err != nil {
		return models.Tokens{}, apperr.Internal(err)
	}
	err = s.UserRepo.CreateSession(ctx, models.Session{
		UserID:       userID,
		RefreshToken: refresh,
		ExpiresAt:    s.now().Add(s.RefreshTTL),
	})
	if err != nil {
		return models.Tokens{}, apperr.Internal(err)
	}
	return models.Tokens{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp}, nil
}

func (s *UserService) GenerateAccessToken(userID int64, role string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.AccessTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.Claims{
		UserID: userID,
		Role:   role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: exp.Unix(),
			IssuedAt:  now.Unix(),
		},
	})
	signed, err := token.SignedString([]byte(s.JWTSecret))
	return signed, time.Unix(exp.Unix(), 0), err
}

// ParseAccessToken verifies an access token and returns its claims.
func (s *UserService) ParseAccessToken(tokenStr string) (models.Claims, error) {
	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.JWTSecret), nil
	})
	if err != nil || !token.Valid || claims.UserID <= 0 {
		return models.Claims{}, apperr.Unauthorized(MsgSessionExpired)
	}
	return *claims, nil
}

func (s *UserService) validSession(ctx context.Context, refreshToken string) (models.Session, error) {
	if refreshToken == "" {
		return models.Session{}, apperr.Unauthorized(MsgSessionExpired)
	}
	sess, err := s.UserRepo.GetSessionByToken(ctx, refreshToken)
	if errors.Is(err, models.ErrSessionNotFound) {
		return models.Session{}, apperr.Unauthorized(MsgSessionExpired)
	}
	if err != nil {
		return models.Session{}, apperr.Internal(err)
	}
	if !sess.ExpiresAt.After(s.now()) {
		_ = s.UserRepo.DeleteSession(ctx, refreshToken)
		return models.Session{}, apperr.Unauthorized(MsgSessionExpired)
	}
	return sess, nil
}

// Refresh rotates the refresh token and issues a new access token.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (models.Tokens, error) {
	sess, err := s.validSession(ctx, refreshToken)
	if err != nil {
		return models.Tokens{}, err
	}
	if err := s.UserRepo.DeleteSession(ctx, refreshToken); err != nil {
		return models.Tokens{}, apperr.Internal(err)
	}
	return s.CreateSession(ctx, sess.UserID, sess.Role)
}

// RefreshAccess issues a new access token for a valid refresh token without
// rotating it. The auth middleware uses it when the access token expired.
func (s *UserService) RefreshAccess(ctx context.Context, refreshToken string) (string, models.Claims, error) {
	sess, err := s.validSession(ctx, refreshToken)
	if err != nil {
		return "", models.Claims{}, err
	}
	access, _, err := s.GenerateAccessToken(sess.UserID, sess.Role)
	if err != nil {
		return "", models.Claims{}, apperr.Internal(err)
	}
	return access, models.Claims{UserID: sess.UserID, Role: sess.Role}, nil
}

func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.UserRepo.DeleteSession(ctx, refreshToken); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// ForgotPassword answers the same way whether or not the account exists.
func (s *UserService) ForgotPassword(ctx context.Context, req *models.ForgotPasswordRequest) error {
	if err := validateForm(req); err != nil {
		return err
	}
	user, err := s.UserRepo.GetUserByEmail(ctx, strings.ToLower(req.Email))
	if errors.Is(err, models.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Internal(err)
	}
	if user.Blocked {
		return nil
	}
	return s.sendCode(ctx, user, models.CodePurposeReset)
}

func (s *UserService) ResetPassword(ctx context.Context, req *models.ResetPasswordRequest) error {
	if err := validateForm(req); err != nil {
		return err
	}
	user, err := s.useCode(ctx, req.Email, models.CodePurposeReset, req.Code)
	if err != nil {
		return err
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.UserRepo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return apperr.Internal(err)
	}
	if !user.Confirmed {
		if err := s.UserRepo.SetConfirmed(ctx, user.ID); err != nil {
			return apperr.Internal(err)
		}
	}
	if err := s.UserRepo.DeleteUserSessions(ctx, user.ID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (s *UserService) getUser(ctx context.Context, userID int64) (models.User, error) {
	user, err := s.UserRepo.GetUserByID(ctx, userID)
	if errors.Is(err, models.ErrUserNotFound) {
		return models.User{}, apperr.NotFound(MsgUserNotFound)
	}
	if err != nil {
		return models.User{}, apperr.Internal(err)
	}
	return user, nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID int64, req *models.ChangePasswordRequest) error {
	if err := validateForm(req); err != nil {
		return err
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.PasswordHash == "" {
		return apperr.BadRequest(MsgNoPassword)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)) != nil {
		return apperr.WithFields(apperr.BadRequest(MsgWrongPassword), map[string]string{"old_password": MsgWrongPassword})
	}
	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.UserRepo.UpdatePassword(ctx, userID, hash); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// ActiveUser returns the user when the account exists and is not blocked. The
// lookup is cached per user and dropped whenever the account changes.
func (s *UserService) ActiveUser(ctx context.Context, userID int64) (models.User, error) {
	key := cache.BuildCacheKey("user", map[string]any{"id": userID})
	user, err := cache.Remember(ctx, s.Cache, key, cache.TTLShort, []string{cache.UserTag(userID)}, func(ctx context.Context) (models.User, error) {
		return s.UserRepo.GetUserByID(ctx, userID)
	})
	if errors.Is(err, models.ErrUserNotFound) {
		return models.User{}, apperr.Unauthorized(MsgSessionExpired)
	}
	if err != nil {
		return models.User{}, apperr.Internal(err)
	}
	if user.Blocked {
		return models.User{}, apperr.Forbidden(MsgAccountBlocked)
	}
	return user, nil
}

func (s *UserService) GetAccount(ctx context.Context, userID int64) (models.User, error) {
	return s.getUser(ctx, userID)
}

func (s *UserService) UpdateAccount(ctx context.Context, userID int64, req *models.UpdateAccountRequest) (models.User, error) {
	if err := validateForm(req); err != nil {
		return models.User{}, err
	}
	if err := s.UserRepo.UpdateAccount(ctx, userID, req.DisplayName, req.Phone); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return models.User{}, apperr.NotFound(MsgUserNotFound)
		}
		return models.User{}, apperr.Internal(err)
	}
	cache.Revalidate(ctx, s.Cache, cache.UserTag(userID))
	return s.getUser(ctx, userID)
}

// DeleteAccount removes the user and everything that references it. Accounts
// with a password must confirm it.
func (s *UserService) DeleteAccount(ctx context.Context, userID int64, req *models.DeleteAccountRequest) error {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.PasswordHash != "" && bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return apperr.WithFields(apperr.BadRequest(MsgWrongPassword), map[string]string{"password": MsgWrongPassword})
	}
	if err := deleteWithReviews(ctx, s.Reviews, s.Log, userID, s.UserRepo.DeleteUser); err != nil {
		return apperr.Internal(err)
	}
	cache.Revalidate(ctx, s.Cache, cache.UserTag(userID), cache.TagServices, cache.TagProfiles)
	return nil
}

// GoogleAuthURL returns the consent page address with a signed state.
func (s *UserService) GoogleAuthURL() (string, error) {
	if s.Google == nil {
		return "", apperr.Unavailable(MsgGoogleDisabled)
	}
	state, err := s.TokenManager.NewState(oauthStateTTL)
	if err != nil {
		return "", apperr.Internal(err)
	}
	return s.Google.AuthCodeURL(state), nil
}

// GoogleCallback finishes the code flow. Users are matched by Google subject,
// then by verified email (linking the account), and created otherwise.
func (s *UserService) GoogleCallback(ctx context.Context, code, state string) (models.Tokens, models.User, error) {
	if s.Google == nil {
		return models.Tokens{}, models.User{}, apperr.Unavailable(MsgGoogleDisabled)
	}
	if code == "" || s.TokenManager.VerifyState(state) != nil {
		return models.Tokens{}, models.User{}, apperr.BadRequest(MsgGoogleFailed)
	}
	gu, err := s.Google.Exchange(ctx, code)
	if err != nil {
		return models.Tokens{}, models.User{}, apperr.Wrap(err, apperr.ErrUnauthorized, MsgGoogleFailed)
	}
	if gu.Sub == "" || gu.Email == "" || !gu.EmailVerified {
		return models.Tokens{}, models.User{}, apperr.Unauthorized(MsgGoogleFailed)
	}

	user, err := s.findGoogleUser(ctx, gu)
	if err != nil {
		return models.Tokens{}, models.User{}, err
	}
	if user.Blocked {
		return models.Tokens{}, models.User{}, apperr.Forbidden(MsgAccountBlocked)
	}
	tokens, err := s.login(ctx, user)
	return tokens, user, err
}

func (s *UserService) findGoogleUser(ctx context.Context, gu models.GoogleUser) (models.User, error) {
	user, err := s.UserRepo.GetUserByGoogleSub(ctx, gu.Sub)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return models.User{}, apperr.Internal(err)
	}

	email := strings.ToLower(gu.Email)
	user, err = s.UserRepo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if err := s.UserRepo.LinkGoogle(ctx, user.ID, gu.Sub); err != nil {
			return models.User{}, apperr.Internal(err)
		}
		if !user.Confirmed {
			if err := s.UserRepo.SetConfirmed(ctx, user.ID); err != nil {
				return models.User{}, apperr.Internal(err)
			}
			user.Confirmed = true
		}
		cache.Revalidate(ctx, s.Cache, cache.UserTag(user.ID))
		return user, nil
	case !errors.Is(err, models.ErrUserNotFound):
		return models.User{}, apperr.Internal(err)
	}

	username, err := s.uniqueUsername(ctx, gu)
	if err != nil {
		return models.User{}, err
	}
	name := gu.Name
	if name == "" {
		name = username
	}
	sub := gu.Sub
	user, err = s.UserRepo.CreateUser(ctx, models.User{
		Email:       email,
		Username:    username,
		DisplayName: name,
		Role:        models.RoleUser,
		Confirmed:   true,
		GoogleSub:   &sub,
	})
	if err != nil {
		return models.User{}, apperr.Internal(err)
	}
	return user, nil
}

const maxUsernameAttempts = 5

// uniqueUsername derives a handle from the Google name or email and appends
// random digits until it is free.
func (s *UserService) uniqueUsername(ctx context.Context, gu models.GoogleUser) (string, error) {
	base := locale.Slugify(gu.Name)
	if len(base) < 4 {
		local, _, _ := strings.Cut(gu.Email, "@")
		base = locale.Slugify(local)
	}
	if len(base) > 20 {
		base = strings.Trim(base[:20], "-")
	}
	for len(base) < 4 {
		base += "user"
	}
	base = base[:min(len(base), 20)]

	candidate := base
	for i := 0; i < maxUsernameAttempts; i++ {
		exists, err := s.UserRepo.UsernameExists(ctx, candidate)
		if err != nil {
			return "", apperr.Internal(err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = base + utils.NewCode(4)
	}
	return "", apperr.Conflict(MsgUsernameTaken)
}

// RealtimeToken issues the short-lived token the websocket and change
// subscriptions accept.
func (s *UserService) RealtimeToken(ctx context.Context, userID int64, role string) (models.RealtimeToken, error) {
	if _, err := s.ActiveUser(ctx, userID); err != nil {
		return models.RealtimeToken{}, err
	}
	token, exp, err := s.TokenManager.NewJWT(userID, role, s.RealtimeTTL)
	if err != nil {
		return models.RealtimeToken{}, apperr.Internal(err)
	}
	return models.RealtimeToken{Token: token, ExpiresAt: exp}, nil
}
