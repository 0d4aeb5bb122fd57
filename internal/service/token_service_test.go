package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/auth-session-api/internal/models"
)

func newTestTokenService() *TokenService {
	return NewTokenService(TokenConfig{Secret: "test-secret", Issuer: "auth-test", AccessExpiry: time.Hour, RefreshExpiry: 24 * time.Hour})
}

func testAccount() *models.Account {
	return &models.Account{ID: "acc-1", Email: "a@x.com", Role: models.RoleUser, IsEmailVerified: true}
}

func TestTokenIssueAndVerify(t *testing.T) {
	svc := newTestTokenService()

	access, err := svc.IssueAccess(testAccount())
	require.NoError(t, err)
	refresh, err := svc.IssueRefresh(testAccount())
	require.NoError(t, err)
	assert.NotEqual(t, access.ID, refresh.ID)

	claims, err := svc.Verify(access.Value, models.TokenKindAccess)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID())
	assert.Equal(t, access.ID, claims.ID)
	assert.Equal(t, models.TokenKindAccess, claims.Kind)

	claims, err = svc.Verify(refresh.Value, models.TokenKindRefresh)
	require.NoError(t, err)
	assert.Equal(t, refresh.ID, claims.ID)
}

func TestTokenIDsUnique(t *testing.T) {
	svc := newTestTokenService()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tok, err := svc.IssueRefresh(testAccount())
		require.NoError(t, err)
		require.False(t, seen[tok.ID])
		seen[tok.ID] = true
	}
}

func TestTokenKindMismatch(t *testing.T) {
	svc := newTestTokenService()

	access, err := svc.IssueAccess(testAccount())
	require.NoError(t, err)
	_, err = svc.Verify(access.Value, models.TokenKindRefresh)
	assert.True(t, errors.Is(err, ErrTokenKindMismatch))

	refresh, err := svc.IssueRefresh(testAccount())
	require.NoError(t, err)
	_, err = svc.Verify(refresh.Value, models.TokenKindAccess)
	assert.True(t, errors.Is(err, ErrTokenKindMismatch))
}

func TestTokenExpired(t *testing.T) {
	svc := newTestTokenService()
	access, err := svc.IssueAccess(testAccount())
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Verify(access.Value, models.TokenKindAccess)
	assert.True(t, errors.Is(err, ErrTokenExpired))
}

func TestTokenTamperedSignature(t *testing.T) {
	svc := newTestTokenService()
	access, err := svc.IssueAccess(testAccount())
	require.NoError(t, err)

	parts := strings.Split(access.Value, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = svc.Verify(tampered, models.TokenKindAccess)
	assert.True(t, errors.Is(err, ErrTokenMalformed))

	other := NewTokenService(TokenConfig{Secret: "other-secret", Issuer: "auth-test"})
	_, err = other.Verify(access.Value, models.TokenKindAccess)
	assert.True(t, errors.Is(err, ErrTokenMalformed))
}

func TestTokenRejectsNoneAlgorithm(t *testing.T) {
	svc := newTestTokenService()
	now := time.Now()
	claims := &models.TokenClaims{
		Email: "a@x.com",
		Kind:  models.TokenKindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "forged",
			Issuer:    "auth-test",
			Subject:   "acc-1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Verify(forged, models.TokenKindAccess)
	assert.True(t, errors.Is(err, ErrTokenMalformed))
}

func TestTokenRequiresExpiry(t *testing.T) {
	svc := newTestTokenService()
	claims := &models.TokenClaims{
		Kind:             models.TokenKindAccess,
		RegisteredClaims: jwt.RegisteredClaims{ID: "x", Issuer: "auth-test", Subject: "acc-1"},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.Verify(signed, models.TokenKindAccess)
	assert.True(t, errors.Is(err, ErrTokenMalformed))
	_, err = svc.Verify("", models.TokenKindAccess)
	assert.True(t, errors.Is(err, ErrTokenMalformed))
}

func TestTokenDefaultLifetimes(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "s"})
	assert.Equal(t, 6*time.Hour, svc.AccessExpiry())
	assert.Equal(t, 7*24*time.Hour, svc.RefreshExpiry())
}
