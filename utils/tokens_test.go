package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerRoundTrip(t *testing.T) {
	m, err := NewManager("secret")
	require.NoError(t, err)

	tok, exp, err := m.NewJWT(42, "freelancer", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 2*time.Second)

	id, role, err := m.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "freelancer", role)

	other, _ := NewManager("other")
	_, _, err = other.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManagerRejectsExpired(t *testing.T) {
	m, _ := NewManager("secret")
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, _, err := m.NewJWT(1, "user", time.Hour)
	require.NoError(t, err)

	m.now = time.Now
	_, _, err = m.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestState(t *testing.T) {
	m, _ := NewManager("secret")
	state, err := m.NewState(10 * time.Minute)
	require.NoError(t, err)
	assert.NoError(t, m.VerifyState(state))
	assert.Error(t, m.VerifyState(state+"x"))

	// a realtime token has no nonce
	tok, _, _ := m.NewJWT(1, "user", time.Hour)
	assert.ErrorIs(t, m.VerifyState(tok), ErrInvalidToken)
}

func TestNewCodeAndRefreshToken(t *testing.T) {
	code := NewCode(6)
	assert.Regexp(t, `^\d{6}$`, code)

	m, _ := NewManager("secret")
	a, err := m.NewRefreshToken()
	require.NoError(t, err)
	b, _ := m.NewRefreshToken()
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestNewManagerRequiresKey(t *testing.T) {
	_, err := NewManager("")
	assert.Error(t, err)
}
