package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "notification-system/pkg/errors"
)

func newTestJWTService() JWTService {
	return NewJWTService("test-secret-key", time.Hour, 24*time.Hour)
}

func TestGenerateAndValidateTokens(t *testing.T) {
	svc := newTestJWTService()

	access, refresh, err := svc.GenerateTokens(42, "manager")
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	claims, err := svc.ValidateToken(access)
	require.NoError(t, err)
	assert.EqualValues(t, 42, claims.UserID)
	assert.Equal(t, "manager", claims.UserType)
	assert.False(t, claims.IsRefreshToken)

	refreshClaims, err := svc.ValidateToken(refresh)
	require.NoError(t, err)
	assert.True(t, refreshClaims.IsRefreshToken)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	access, _, err := newTestJWTService().GenerateTokens(1, "customer")
	require.NoError(t, err)

	other := NewJWTService("другой-секрет", time.Hour, time.Hour)
	_, err = other.ValidateToken(access)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	svc := NewJWTService("test-secret-key", -time.Minute, time.Hour)

	access, _, err := svc.GenerateTokens(1, "manager")
	require.NoError(t, err)

	_, err = svc.ValidateToken(access)
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	svc := newTestJWTService()

	_, err := svc.ValidateToken("не.токен.вовсе")
	assert.Error(t, err)

	_, err = svc.ValidateToken("")
	assert.Error(t, err)
}

func TestValidateToken_InvalidSigningMethodRejected(t *testing.T) {
	// Токен с alg=none, сформированный вручную.
	noneToken := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJ1c2VySWQiOjF9."
	_, err := newTestJWTService().ValidateToken(noneToken)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestTTLGetters(t *testing.T) {
	svc := NewJWTService("k", time.Hour, 48*time.Hour)
	assert.Equal(t, time.Hour, svc.GetAccessTokenTTL())
	assert.Equal(t, 48*time.Hour, svc.GetRefreshTokenTTL())
}
