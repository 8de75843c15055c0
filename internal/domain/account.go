package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/vidtube/vidtube/pkg/errors"
)

// PasswordHasher turns plaintext passwords into one-way digests and checks
// them. auth.PasswordHasher is the production implementation.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// Account is a registered user. The password is only ever held as a digest
// and is set through SetPassword.
type Account struct {
	ID            string
	Username      string
	Email         string
	FullName      string
	AvatarURL     string
	CoverImageURL string
	RefreshToken  *string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	passwordHash string
}

// AccountView is the public shape of an account. It never carries the
// password digest or the refresh token.
type AccountView struct {
	ID            string    `json:"_id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatar"`
	CoverImageURL string    `json:"coverImage"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NewAccountParams holds the fields needed to create an account.
type NewAccountParams struct {
	Username      string
	Email         string
	FullName      string
	Password      string
	AvatarURL     string
	CoverImageURL string
}

// NewAccount validates and normalises params and returns an account with a
// fresh id and a hashed password. FullName defaults to the username.
func NewAccount(params NewAccountParams, hasher PasswordHasher) (*Account, error) {
	username := NormalizeUsername(params.Username)
	email := NormalizeEmail(params.Email)
	fullName := strings.TrimSpace(params.FullName)

	switch {
	case username == "":
		return nil, apperrors.InvalidInput("username is required")
	case email == "":
		return nil, apperrors.InvalidInput("email is required")
	case strings.TrimSpace(params.Password) == "":
		return nil, apperrors.InvalidInput("password is required")
	case strings.TrimSpace(params.AvatarURL) == "":
		return nil, apperrors.InvalidInput("avatar file is required")
	}
	if fullName == "" {
		fullName = username
	}

	now := time.Now().UTC()
	a := &Account{
		ID:            uuid.NewString(),
		Username:      username,
		Email:         email,
		FullName:      fullName,
		AvatarURL:     strings.TrimSpace(params.AvatarURL),
		CoverImageURL: strings.TrimSpace(params.CoverImageURL),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := a.SetPassword(params.Password, hasher); err != nil {
		return nil, err
	}
	return a, nil
}

// SetPassword hashes plaintext and stores only the digest.
func (a *Account) SetPassword(plaintext string, hasher PasswordHasher) error {
	if strings.TrimSpace(plaintext) == "" {
		return apperrors.InvalidInput("password is required")
	}
	digest, err := hasher.Hash(plaintext)
	if err != nil {
		return err
	}
	a.passwordHash = digest
	return nil
}

// CheckPassword reports whether plaintext matches the stored digest.
func (a *Account) CheckPassword(plaintext string, hasher PasswordHasher) bool {
	if a.passwordHash == "" {
		return false
	}
	return hasher.Verify(plaintext, a.passwordHash)
}

// PasswordHash returns the stored digest for persistence.
func (a *Account) PasswordHash() string { return a.passwordHash }

// RestorePasswordHash loads a digest read back from storage.
func (a *Account) RestorePasswordHash(digest string) { a.passwordHash = digest }

// HasRefreshToken reports whether the account has an active session.
func (a *Account) HasRefreshToken() bool {
	return a.RefreshToken != nil && *a.RefreshToken != ""
}

// Sanitized returns the public view of the account.
func (a *Account) Sanitized() AccountView {
	return AccountView{
		ID:            a.ID,
		Username:      a.Username,
		Email:         a.Email,
		FullName:      a.FullName,
		AvatarURL:     a.AvatarURL,
		CoverImageURL: a.CoverImageURL,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// NormalizeUsername trims and lower-cases a username.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ProfileUpdate holds the editable profile fields of an account.
type ProfileUpdate struct {
	FullName string
	Email    string
}

// TokenPair holds an access and refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
