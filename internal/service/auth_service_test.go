package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/estimate-export-api/internal/models"
	appErrors "github.com/noah-isme/estimate-export-api/pkg/errors"
)

func newTestAuthService() *AuthService {
	return NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "estimate-export-api"})
}

func TestIssueAndValidateToken(t *testing.T) {
	svc := newTestAuthService()

	token, expiresAt, err := svc.IssueToken("user-1", "user@example.com")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc := newTestAuthService()
	other := NewAuthService(nil, AuthConfig{AccessTokenSecret: "other", Issuer: "estimate-export-api"})

	token, _, err := other.IssueToken("user-1", "")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
	assert.Equal(t, "Unauthorized", appErrors.FromError(err).Message)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := newTestAuthService()
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := svc.IssueToken("user-1", "")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestValidateTokenRejectsOtherIssuer(t *testing.T) {
	svc := newTestAuthService()
	foreign := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "someone-else"})
	token, _, err := foreign.IssueToken("user-1", "")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestValidateTokenFallsBackToSubject(t *testing.T) {
	svc := newTestAuthService()
	claims := &models.JWTClaims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "estimate-export-api",
		Subject:   "user-9",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	parsed, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-9", parsed.UserID)
}

func TestValidateTokenRejectsMissingIdentity(t *testing.T) {
	svc := newTestAuthService()
	claims := &models.JWTClaims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "estimate-export-api",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestIssueTokenRequiresUser(t *testing.T) {
	_, _, err := newTestAuthService().IssueToken(" ", "")
	assert.Error(t, err)
}
