package utils

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"golang.org/x/exp/rand"
)

var ErrInvalidToken = errors.New("invalid token")

// Manager signs the short-lived realtime tokens and the OAuth state values.
// Access tokens are issued by the HTTP layer.
type Manager struct {
	signingKey string
	now        func() time.Time
}

type realtimeClaims struct {
	Role string `json:"role"`
	jwt.StandardClaims
}

type stateClaims struct {
	Nonce string `json:"nonce"`
	jwt.StandardClaims
}

func NewManager(signingKey string) (*Manager, error) {
	if signingKey == "" {
		return nil, errors.New("empty signing key")
	}

	return &Manager{signingKey: signingKey, now: time.Now}, nil
}

// NewJWT issues a realtime token for the user.
func (m *Manager) NewJWT(userID int64, role string, ttl time.Duration) (string, time.Time, error) {
	exp := m.now().Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, realtimeClaims{
		Role: role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: exp.Unix(),
			IssuedAt:  m.now().Unix(),
			Subject:   strconv.FormatInt(userID, 10),
		},
	})

	signed, err := token.SignedString([]byte(m.signingKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, time.Unix(exp.Unix(), 0), nil
}

// Parse verifies a realtime token and returns the user id and role.
func (m *Manager) Parse(token string) (int64, string, error) {
	var claims realtimeClaims
	if err := m.parse(token, &claims); err != nil {
		return 0, "", err
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, "", ErrInvalidToken
	}
	return userID, claims.Role, nil
}

// NewState returns a signed OAuth state valid for ttl.
func (m *Manager) NewState(ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, stateClaims{
		Nonce: uuid.NewString(),
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: m.now().Add(ttl).Unix(),
		},
	})
	return token.SignedString([]byte(m.signingKey))
}

// VerifyState checks a value produced by NewState.
func (m *Manager) VerifyState(state string) error {
	var claims stateClaims
	if err := m.parse(state, &claims); err != nil {
		return err
	}
	if claims.Nonce == "" {
		return ErrInvalidToken
	}
	return nil
}

func (m *Manager) parse(token string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(m.signingKey), nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}

func (m *Manager) NewRefreshToken() (string, error) {
	b := make([]byte, 32)

	if _, err := crand.Read(b); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", b), nil
}

var (
	codeMu  sync.Mutex
	codeRnd = rand.New(rand.NewSource(cryptoSeed()))
)

func cryptoSeed() uint64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// NewCode returns a numeric verification code of n digits.
func NewCode(n int) string {
	codeMu.Lock()
	defer codeMu.Unlock()
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('0' + codeRnd.Intn(10))
	}
	return string(b)
}
