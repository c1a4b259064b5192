package models

import (
	"time"

	"github.com/dgrijalva/jwt-go"
)

const (
	RoleUser       = "user"
	RoleFreelancer = "freelancer"
	RoleCompany    = "company"
	RoleAdmin      = "admin"
)

type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	DisplayName  string     `json:"display_name"`
	Phone        string     `json:"phone,omitempty"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	Confirmed    bool       `json:"confirmed"`
	Blocked      bool       `json:"blocked"`
	GoogleSub    *string    `json:"-"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// IsPro reports whether the user publishes services.
func (u User) IsPro() bool {
	return u.Role == RoleFreelancer || u.Role == RoleCompany || u.Role == RoleAdmin
}

type Claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.StandardClaims
}

type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type Session struct {
	UserID       int64     `json:"user_id"`
	Role         string    `json:"role"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

const (
	CodePurposeConfirm = "confirm"
	CodePurposeReset   = "reset"
)

type VerificationCode struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Purpose   string     `json:"purpose"`
	Code      string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

type SignUpRequest struct {
	Email       string `json:"email" validate:"required,email,max=120"`
	Username    string `json:"username" validate:"required,username"`
	DisplayName string `json:"display_name" validate:"required,min=2,max=50"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
}

type SignInRequest struct {
	Identifier string `json:"identifier" validate:"required,max=120"`
	Password   string `json:"password" validate:"required"`
}

type ConfirmEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72,nefield=OldPassword"`
}

type UpdateAccountRequest struct {
	DisplayName string `json:"display_name" validate:"required,min=2,max=50"`
	Phone       string `json:"phone" validate:"omitempty,greekphone"`
}

type DeleteAccountRequest struct {
	Password string `json:"password"`
}

// GoogleUser is the subset of the Google userinfo payload used for login.
type GoogleUser struct {
	Sub           string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

type RealtimeToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type UserFilter struct {
	Search  string `json:"search"`
	Role    string `json:"role"`
	Blocked *bool  `json:"blocked"`
	Page    int    `json:"page"`
	Limit   int    `json:"limit"`
}
