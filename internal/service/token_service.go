package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"github.com/noah-isme/auth-session-api/internal/models"
)

// Token verification failures. They never mutate state.
var (
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenKindMismatch = errors.New("token kind mismatch")
)

// TokenConfig holds the signing secret and lifetimes.
type TokenConfig struct {
	Secret        string
	Issuer        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// TokenService mints and verifies HS256 signed tokens carrying a unique id and a kind discriminator.
type TokenService struct {
	config TokenConfig
	secret []byte
	parser *jwt.Parser
	now    func() time.Time
}

// NewTokenService constructs a TokenService.
func NewTokenService(config TokenConfig) *TokenService {
	if config.AccessExpiry <= 0 {
		config.AccessExpiry = 6 * time.Hour
	}
	if config.RefreshExpiry <= 0 {
		config.RefreshExpiry = 7 * 24 * time.Hour
	}
	s := &TokenService{config: config, secret: []byte(config.Secret), now: time.Now}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	s.parser = jwt.NewParser(opts...)
	return s
}

// AccessExpiry returns the access token lifetime.
func (s *TokenService) AccessExpiry() time.Duration {
	return s.config.AccessExpiry
}

// RefreshExpiry returns the refresh token lifetime.
func (s *TokenService) RefreshExpiry() time.Duration {
	return s.config.RefreshExpiry
}

// IssueAccess mints a short-lived access token for account.
func (s *TokenService) IssueAccess(account *models.Account) (models.IssuedToken, error) {
	return s.issue(account, models.TokenKindAccess, s.config.AccessExpiry)
}

// IssueRefresh mints a long-lived refresh token for account.
func (s *TokenService) IssueRefresh(account *models.Account) (models.IssuedToken, error) {
	return s.issue(account, models.TokenKindRefresh, s.config.RefreshExpiry)
}

func (s *TokenService) issue(account *models.Account, kind models.TokenKind, ttl time.Duration) (models.IssuedToken, error) {
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(ttl)
	id := ulid.Make().String()

	claims := &models.TokenClaims{
		Email: account.Email,
		Role:  account.Role,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    s.config.Issuer,
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return models.IssuedToken{Value: signed, ID: id, Kind: kind, ExpiresAt: expiresAt}, nil
}

// Verify checks the signature, expiry and kind of token and returns its claims.
func (s *TokenService) Verify(token string, expected models.TokenKind) (*models.TokenClaims, error) {
	if token == "" {
		return nil, ErrTokenMalformed
	}
	claims := &models.TokenClaims{}
	_, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, ErrTokenMalformed
	}
	if claims.Kind != expected {
		return nil, ErrTokenKindMismatch
	}
	return claims, nil
}
