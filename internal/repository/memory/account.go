package memory

import (
	"context"

	"github.com/vidtube/vidtube/internal/domain"
	apperrors "github.com/vidtube/vidtube/pkg/errors"
)

// AccountRepository implements repository.AccountRepository over a Store.
type AccountRepository struct {
	s *Store
}

// NewAccountRepository creates an account repository backed by s.
func NewAccountRepository(s *Store) *AccountRepository {
	return &AccountRepository{s: s}
}

// Create inserts a new account.
func (r *AccountRepository) Create(_ context.Context, a *domain.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.accounts {
		if existing.Username == a.Username || existing.Email == a.Email {
			return apperrors.Conflict("username or email already exists")
		}
	}
	r.s.accounts[a.ID] = cloneAccount(a)
	return nil
}

// GetByID retrieves an account by its ID.
func (r *AccountRepository) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.accounts[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cloneAccount(a), nil
}

// GetByUsername retrieves an account by its username.
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	if username == "" {
		return nil, apperrors.ErrNotFound
	}
	return r.FindByUsernameOrEmail(ctx, username, "")
}

// FindByUsernameOrEmail retrieves the account matching either identifier.
func (r *AccountRepository) FindByUsernameOrEmail(_ context.Context, username, email string) (*domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var found *domain.Account
	for _, a := range r.s.accounts {
		if (username != "" && a.Username == username) || (email != "" && a.Email == email) {
			if found == nil || a.CreatedAt.Before(found.CreatedAt) {
				found = a
			}
		}
	}
	if found == nil {
		return nil, apperrors.ErrNotFound
	}
	return cloneAccount(found), nil
}

// UpdateProfile sets the full name and email of an account.
func (r *AccountRepository) UpdateProfile(_ context.Context, id string, update domain.ProfileUpdate) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.accounts[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	for otherID, other := range r.s.accounts {
		if otherID != id && other.Email == update.Email {
			return nil, apperrors.Conflict("username or email already exists")
		}
	}
	a.FullName = update.FullName
	a.Email = update.Email
	a.UpdatedAt = r.s.now()
	return cloneAccount(a), nil
}

// UpdateAvatar replaces the avatar URL of an account.
func (r *AccountRepository) UpdateAvatar(_ context.Context, id, url string) (*domain.Account, error) {
	return r.mutate(id, func(a *domain.Account) { a.AvatarURL = url })
}

// UpdateCoverImage replaces the cover image URL of an account.
func (r *AccountRepository) UpdateCoverImage(_ context.Context, id, url string) (*domain.Account, error) {
	return r.mutate(id, func(a *domain.Account) { a.CoverImageURL = url })
}

// UpdatePasswordHash stores a new password digest.
func (r *AccountRepository) UpdatePasswordHash(_ context.Context, id, digest string) error {
	_, err := r.mutate(id, func(a *domain.Account) { a.RestorePasswordHash(digest) })
	return err
}

// SetRefreshToken overwrites the stored refresh token.
func (r *AccountRepository) SetRefreshToken(_ context.Context, id, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.accounts[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	a.RefreshToken = &token
	return nil
}

// CompareAndSwapRefreshToken stores next only if the current token equals
// expected.
func (r *AccountRepository) CompareAndSwapRefreshToken(_ context.Context, id, expected, next string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.accounts[id]
	if !ok || a.RefreshToken == nil || *a.RefreshToken != expected {
		return false, nil
	}
	a.RefreshToken = &next
	return true, nil
}

// ClearRefreshToken removes the stored refresh token.
func (r *AccountRepository) ClearRefreshToken(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if a, ok := r.s.accounts[id]; ok {
		a.RefreshToken = nil
	}
	return nil
}

func (r *AccountRepository) mutate(id string, fn func(*domain.Account)) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.accounts[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	fn(a)
	a.UpdatedAt = r.s.now()
	return cloneAccount(a), nil
}
