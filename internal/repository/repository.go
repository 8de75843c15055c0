package repository

import (
	"context"

	"github.com/vidtube/vidtube/internal/domain"
)

// AccountRepository defines the interface for account persistence
// operations. Implementations enforce unique usernames and emails.
type AccountRepository interface {
	// Create inserts a new account. A duplicate username or email yields
	// an error wrapping ErrAlreadyExists.
	Create(ctx context.Context, account *domain.Account) error

	// GetByID retrieves an account by its identifier.
	GetByID(ctx context.Context, id string) (*domain.Account, error)

	// GetByUsername retrieves an account by its normalised username.
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)

	// FindByUsernameOrEmail returns the first account whose username or
	// email matches. Empty arguments never match.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.Account, error)

	// UpdateProfile sets the full name and email and returns the result.
	UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.Account, error)

	// UpdateAvatar replaces the avatar URL and returns the result.
	UpdateAvatar(ctx context.Context, id, url string) (*domain.Account, error)

	// UpdateCoverImage replaces the cover image URL and returns the result.
	UpdateCoverImage(ctx context.Context, id, url string) (*domain.Account, error)

	// UpdatePasswordHash stores a new password digest.
	UpdatePasswordHash(ctx context.Context, id, digest string) error

	// SetRefreshToken overwrites the stored refresh token unconditionally.
	SetRefreshToken(ctx context.Context, id, token string) error

	// CompareAndSwapRefreshToken stores next only if the stored token still
	// equals expected. It reports whether the write happened.
	CompareAndSwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error)

	// ClearRefreshToken removes the stored refresh token. Clearing an
	// already empty token is not an error.
	ClearRefreshToken(ctx context.Context, id string) error
}

// ChannelRepository defines the interface for subscription persistence.
type ChannelRepository interface {
	// CountSubscribers returns how many accounts subscribe to channelID.
	CountSubscribers(ctx context.Context, channelID string) (int64, error)

	// CountSubscriptions returns how many channels subscriberID follows.
	CountSubscriptions(ctx context.Context, subscriberID string) (int64, error)

	// IsSubscribed reports whether subscriberID follows channelID.
	IsSubscribed(ctx context.Context, subscriberID, channelID string) (bool, error)

	// Subscribe records a subscription (idempotent).
	Subscribe(ctx context.Context, subscriberID, channelID string) error

	// Unsubscribe removes a subscription (idempotent).
	Unsubscribe(ctx context.Context, subscriberID, channelID string) error
}

// HistoryRepository defines the interface for watch history persistence.
type HistoryRepository interface {
	// RecordView appends a view of videoID to the account's history and
	// bumps the video's view counter. Unknown videos yield ErrNotFound.
	RecordView(ctx context.Context, accountID, videoID string) error

	// ListWatchHistory returns one page of history, newest first, and the
	// total number of entries.
	ListWatchHistory(ctx context.Context, accountID string, limit, offset int) ([]domain.WatchHistoryEntry, int, error)
}
