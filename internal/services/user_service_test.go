package services

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doulitsa/internal/apperr"
	"doulitsa/internal/cache"
	"doulitsa/internal/mail"
	"doulitsa/internal/models"
	"doulitsa/utils"
)

type fakeGoogle struct {
	user models.GoogleUser
	err  error
}

func (g *fakeGoogle) AuthCodeURL(state string) string {
	return "https://accounts.google.test/o/oauth2/auth?state=" + url.QueryEscape(state)
}

func (g *fakeGoogle) Exchange(_ context.Context, code string) (models.GoogleUser, error) {
	return g.user, g.err
}

func newUserService(t *testing.T, users *fakeUsers) (*UserService, *fakeMailer) {
	t.Helper()
	tm, err := utils.NewManager("realtime-secret")
	require.NoError(t, err)
	m := &fakeMailer{}
	return &UserService{
		UserRepo:     users,
		TokenManager: tm,
		Mail:         m,
		JWTSecret:    "access-secret",
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   30 * 24 * time.Hour,
		RealtimeTTL:  time.Hour,
	}, m
}

func signUp(t *testing.T, svc *UserService, users *fakeUsers) models.User {
	t.Helper()
	ctx := context.Background()
	u, err := svc.SignUp(ctx, &models.SignUpRequest{
		Email: "Eleni@Example.gr", Username: "Eleni_K", DisplayName: "Ελένη", Password: "s3cret-pass",
	})
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmEmail(ctx, &models.ConfirmEmailRequest{
		Email: "eleni@example.gr", Code: users.lastCode(models.CodePurposeConfirm),
	}))
	return u
}

func TestSignUpSendsConfirmation(t *testing.T) {
	users := newFakeUsers()
	svc, m := newUserService(t, users)
	ctx := context.Background()

	u, err := svc.SignUp(ctx, &models.SignUpRequest{
		Email: "Eleni@Example.gr", Username: "Eleni_K", DisplayName: "Ελένη", Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.Equal(t, "eleni@example.gr", u.Email)
	assert.Equal(t, "eleni_k", u.Username)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.NotEqual(t, "s3cret-pass", u.PasswordHash)

	require.Len(t, m.sent, 1)
	assert.Equal(t, mail.TemplateConfirmEmail, m.sent[0].Template)
	code := users.lastCode(models.CodePurposeConfirm)
	assert.Len(t, code, 6)
	assert.Equal(t, code, m.sent[0].Data.(mail.CodeData).Code)

	_, err = svc.SignUp(ctx, &models.SignUpRequest{
		Email: "eleni@example.gr", Username: "other", DisplayName: "Ελένη", Password: "s3cret-pass",
	})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, MsgEmailTaken, e.Fields["email"])

	_, _, err = svc.SignIn(ctx, &models.SignInRequest{Identifier: "eleni_k", Password: "s3cret-pass"})
	assert.Equal(t, MsgConfirmFirst, apperr.Message(err))
}

func TestSignInAndRefresh(t *testing.T) {
	users := newFakeUsers()
	svc, _ := newUserService(t, users)
	ctx := context.Background()
	signUp(t, svc, users)

	_, _, err := svc.SignIn(ctx, &models.SignInRequest{Identifier: "eleni@example.gr", Password: "wrong-pass"})
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))

	tokens, user, err := svc.SignIn(ctx, &models.SignInRequest{Identifier: "ELENI@example.gr", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.NotNil(t, users.users[user.ID].LastLoginAt)

	claims, err := svc.ParseAccessToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleUser, claims.Role)

	_, err = svc.ParseAccessToken(tokens.AccessToken + "x")
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))

	rotated, err := svc.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)
	_, err = svc.Refresh(ctx, tokens.RefreshToken)
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized), "old refresh token is gone")

	promoted := users.users[user.ID]
	promoted.Role = models.RoleFreelancer
	users.users[user.ID] = promoted
	access, claims, err := svc.RefreshAccess(ctx, rotated.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.Equal(t, models.RoleFreelancer, claims.Role, "role is read from the account")

	require.NoError(t, svc.Logout(ctx, rotated.RefreshToken))
	_, _, err = svc.RefreshAccess(ctx, rotated.RefreshToken)
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
}

func TestPasswordReset(t *testing.T) {
	users := newFakeUsers()
	svc, m := newUserService(t, users)
	ctx := context.Background()
	u := signUp(t, svc, users)
	tokens, _, err := svc.SignIn(ctx, &models.SignInRequest{Identifier: "eleni_k", Password: "s3cret-pass"})
	require.NoError(t, err)

	require.NoError(t, svc.ForgotPassword(ctx, &models.ForgotPasswordRequest{Email: "nobody@example.gr"}))
	sent := len(m.sent)
	require.NoError(t, svc.ForgotPassword(ctx, &models.ForgotPasswordRequest{Email: "eleni@example.gr"}))
	require.Len(t, m.sent, sent+1)
	assert.Equal(t, mail.TemplatePasswordReset, m.sent[sent].Template)

	err = svc.ResetPassword(ctx, &models.ResetPasswordRequest{Email: "eleni@example.gr", Code: "000000", Password: "brand-new-pass"})
	assert.Equal(t, MsgInvalidCode, apperr.Message(err))

	code := users.lastCode(models.CodePurposeReset)
	require.NoError(t, svc.ResetPassword(ctx, &models.ResetPasswordRequest{Email: "eleni@example.gr", Code: code, Password: "brand-new-pass"}))
	err = svc.ResetPassword(ctx, &models.ResetPasswordRequest{Email: "eleni@example.gr", Code: code, Password: "brand-new-pass"})
	assert.Equal(t, MsgInvalidCode, apperr.Message(err), "codes are single use")

	_, err = svc.Refresh(ctx, tokens.RefreshToken)
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized), "reset signs out everywhere")

	_, _, err = svc.SignIn(ctx, &models.SignInRequest{Identifier: "eleni_k", Password: "brand-new-pass"})
	assert.NoError(t, err)

	err = svc.ChangePassword(ctx, u.ID, &models.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "another-pass"})
	assert.Equal(t, MsgWrongPassword, apperr.Message(err))
	require.NoError(t, svc.ChangePassword(ctx, u.ID, &models.ChangePasswordRequest{OldPassword: "brand-new-pass", NewPassword: "another-pass"}))
}

func TestActiveUserCachesAndBlocks(t *testing.T) {
	users := newFakeUsers(stranger)
	svc, _ := newUserService(t, users)
	svc.Cache = cache.NewMemoryStore()
	ctx := context.Background()

	u, err := svc.ActiveUser(ctx, stranger.ID)
	require.NoError(t, err)
	assert.Equal(t, stranger.Username, u.Username)

	users.users[stranger.ID] = models.User{ID: stranger.ID, Blocked: true}
	_, err = svc.ActiveUser(ctx, stranger.ID)
	assert.NoError(t, err, "still cached")

	cache.Revalidate(ctx, svc.Cache, cache.UserTag(stranger.ID))
	_, err = svc.ActiveUser(ctx, stranger.ID)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = svc.ActiveUser(ctx, 404)
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
}

func TestGoogleCallback(t *testing.T) {
	existing := models.User{ID: 4, Email: "eleni@example.gr", Username: "eleni", DisplayName: "Ελένη", Role: models.RoleUser}
	users := newFakeUsers(existing)
	svc, _ := newUserService(t, users)
	g := &fakeGoogle{user: models.GoogleUser{Sub: "g-1", Email: "Eleni@example.gr", EmailVerified: true, Name: "Eleni K"}}
	svc.Google = g
	ctx := context.Background()

	authURL, err := svc.GoogleAuthURL()
	require.NoError(t, err)
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")

	_, _, err = svc.GoogleCallback(ctx, "code", "forged")
	assert.True(t, errors.Is(err, apperr.ErrBadRequest))

	_, user, err := svc.GoogleCallback(ctx, "code", state)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, user.ID, "linked by verified email")
	require.NotNil(t, users.users[existing.ID].GoogleSub)
	assert.True(t, users.users[existing.ID].Confirmed)

	g.user = models.GoogleUser{Sub: "g-2", Email: "new@example.gr", EmailVerified: true, Name: "Νέος Χρήστης"}
	_, created, err := svc.GoogleCallback(ctx, "code", state)
	require.NoError(t, err)
	assert.NotEqual(t, existing.ID, created.ID)
	assert.Equal(t, "neos-christis", created.Username)
	assert.True(t, created.Confirmed)

	g.user.EmailVerified = false
	_, _, err = svc.GoogleCallback(ctx, "code", state)
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))

	svc.Google = nil
	_, err = svc.GoogleAuthURL()
	assert.True(t, errors.Is(err, apperr.ErrUnavailable))
}

func TestRealtimeToken(t *testing.T) {
	users := newFakeUsers(stranger)
	svc, _ := newUserService(t, users)

	tok, err := svc.RealtimeToken(context.Background(), stranger.ID, stranger.Role)
	require.NoError(t, err)
	id, role, err := svc.TokenManager.Parse(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, stranger.ID, id)
	assert.Equal(t, stranger.Role, role)
}
