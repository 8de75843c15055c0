package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/vidtube/vidtube/pkg/errors"
)

const issuer = "vidtube"

// AccessClaims represents the JWT claims for an access token.
type AccessClaims struct {
	AccountID string `json:"_id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FullName  string `json:"fullName"`
	jwt.RegisteredClaims
}

// RefreshClaims represents the JWT claims for a refresh token.
type RefreshClaims struct {
	AccountID string `json:"_id"`
	jwt.RegisteredClaims
}

// Identity is the subset of an account embedded in an access token.
type Identity struct {
	AccountID string
	Email     string
	Username  string
	FullName  string
}

// TokenIssuer signs and verifies access and refresh tokens. The two kinds
// use independent secrets, so neither verifies as the other.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	now           func() time.Time
}

// NewTokenIssuer creates a token issuer with the given secrets and lifetimes.
func NewTokenIssuer(accessSecret, refreshSecret string, accessExpiry, refreshExpiry time.Duration) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		now:           time.Now,
	}
}

// AccessExpiry returns the lifetime of access tokens.
func (i *TokenIssuer) AccessExpiry() time.Duration { return i.accessExpiry }

// RefreshExpiry returns the lifetime of refresh tokens.
func (i *TokenIssuer) RefreshExpiry() time.Duration { return i.refreshExpiry }

func (i *TokenIssuer) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := i.now().UTC()
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

// IssueAccess creates a signed access token for the identity.
func (i *TokenIssuer) IssueAccess(id Identity) (string, error) {
	claims := &AccessClaims{
		AccountID:        id.AccountID,
		Email:            id.Email,
		Username:         id.Username,
		FullName:         id.FullName,
		RegisteredClaims: i.registered(id.AccountID, i.accessExpiry),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// IssueRefresh creates a signed refresh token carrying only the account id.
// Every token gets a random jti, so two tokens minted in the same second
// still differ.
func (i *TokenIssuer) IssueRefresh(accountID string) (string, error) {
	claims := &RefreshClaims{
		AccountID:        accountID,
		RegisteredClaims: i.registered(accountID, i.refreshExpiry),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

// VerifyAccess validates an access token and returns its claims.
func (i *TokenIssuer) VerifyAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := i.parse(token, claims, i.accessSecret); err != nil {
		return nil, err
	}
	if claims.AccountID == "" {
		return nil, fmt.Errorf("access token has no account id: %w", apperrors.ErrTokenInvalid)
	}
	return claims, nil
}

// VerifyRefresh validates a refresh token and returns its claims.
func (i *TokenIssuer) VerifyRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := i.parse(token, claims, i.refreshSecret); err != nil {
		return nil, err
	}
	if claims.AccountID == "" {
		return nil, fmt.Errorf("refresh token has no account id: %w", apperrors.ErrTokenInvalid)
	}
	return claims, nil
}

func (i *TokenIssuer) parse(token string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return mapJWTError(err)
	}
	if !parsed.Valid {
		return apperrors.ErrTokenInvalid
	}
	return nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", apperrors.ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", apperrors.ErrTokenMalformed, err)
	default:
		return fmt.Errorf("%w: %v", apperrors.ErrTokenInvalid, err)
	}
}
