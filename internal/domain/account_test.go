package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/vidtube/internal/auth"
	apperrors "github.com/vidtube/vidtube/pkg/errors"
)

func testHasher() PasswordHasher {
	return auth.NewPasswordHasher(bcrypt.MinCost)
}

func validParams() NewAccountParams {
	return NewAccountParams{
		Username:  "  Neo ",
		Email:     " N@X.com",
		FullName:  " Thomas Anderson ",
		Password:  "p@ss",
		AvatarURL: "https://cdn.example.com/a.png",
	}
}

// ============================================================================
// NewAccount
// ============================================================================

func TestNewAccount_Normalises(t *testing.T) {
	a, err := NewAccount(validParams(), testHasher())
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "neo", a.Username)
	assert.Equal(t, "n@x.com", a.Email)
	assert.Equal(t, "Thomas Anderson", a.FullName)
	assert.False(t, a.HasRefreshToken())
	assert.False(t, a.CreatedAt.IsZero())
}

func TestNewAccount_FullNameDefaultsToUsername(t *testing.T) {
	p := validParams()
	p.FullName = "   "

	a, err := NewAccount(p, testHasher())
	require.NoError(t, err)
	assert.Equal(t, "neo", a.FullName)
}

func TestNewAccount_StoresOnlyDigest(t *testing.T) {
	a, err := NewAccount(validParams(), testHasher())
	require.NoError(t, err)

	assert.NotEqual(t, "p@ss", a.PasswordHash())
	assert.True(t, a.CheckPassword("p@ss", testHasher()))
	assert.False(t, a.CheckPassword("wrong", testHasher()))
}

func TestNewAccount_RequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*NewAccountParams)
		msg    string
	}{
		{"username", func(p *NewAccountParams) { p.Username = " " }, "username is required"},
		{"email", func(p *NewAccountParams) { p.Email = "" }, "email is required"},
		{"password", func(p *NewAccountParams) { p.Password = "  " }, "password is required"},
		{"avatar", func(p *NewAccountParams) { p.AvatarURL = "" }, "avatar file is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)

			a, err := NewAccount(p, testHasher())

			assert.Nil(t, a)
			require.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

// ============================================================================
// Passwords
// ============================================================================

func TestSetPassword_ReplacesDigest(t *testing.T) {
	h := testHasher()
	a, err := NewAccount(validParams(), h)
	require.NoError(t, err)
	before := a.PasswordHash()

	require.NoError(t, a.SetPassword("n3w", h))

	assert.NotEqual(t, before, a.PasswordHash())
	assert.True(t, a.CheckPassword("n3w", h))
	assert.False(t, a.CheckPassword("p@ss", h))
}

func TestSetPassword_BlankKeepsDigest(t *testing.T) {
	h := testHasher()
	a, err := NewAccount(validParams(), h)
	require.NoError(t, err)
	before := a.PasswordHash()

	err = a.SetPassword(" ", h)

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, before, a.PasswordHash())
}

func TestCheckPassword_NoDigestFailsClosed(t *testing.T) {
	a := &Account{}
	assert.False(t, a.CheckPassword("", testHasher()))
}

// ============================================================================
// Views
// ============================================================================

func TestSanitized_OmitsSecrets(t *testing.T) {
	a, err := NewAccount(validParams(), testHasher())
	require.NoError(t, err)
	token := "refresh-token-value"
	a.RefreshToken = &token

	raw, err := json.Marshal(a.Sanitized())
	require.NoError(t, err)

	body := string(raw)
	assert.NotContains(t, body, a.PasswordHash())
	assert.NotContains(t, body, token)
	assert.Contains(t, body, `"username":"neo"`)
	assert.Contains(t, body, `"_id":"`+a.ID+`"`)
}

func TestChannelProfile_FromAccount(t *testing.T) {
	a := &Account{ID: "c1", Username: "chan", FullName: "Chan"}

	p := NewChannelProfile(a, 7, 2, true)

	assert.Equal(t, "c1", p.ID)
	assert.Equal(t, int64(7), p.SubscribersCount)
	assert.Equal(t, int64(2), p.ChannelsSubscribedToCount)
	assert.True(t, p.IsSubscribed)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "neo", NormalizeUsername(" NEO\t"))
	assert.Equal(t, "n@x.com", NormalizeEmail("N@X.COM "))
}
