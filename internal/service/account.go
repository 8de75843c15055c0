package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vidtube/vidtube/internal/domain"
	"github.com/vidtube/vidtube/internal/repository"
	"github.com/vidtube/vidtube/internal/storage"
	apperrors "github.com/vidtube/vidtube/pkg/errors"
	"github.com/vidtube/vidtube/pkg/pagination"
)

// AccountService implements profile, channel and watch history operations
// for authenticated accounts.
type AccountService struct {
	accounts repository.AccountRepository
	channels repository.ChannelRepository
	history  repository.HistoryRepository
	media    *MediaUploader
	events   EventPublisher
	logger   *slog.Logger
}

// NewAccountService creates a new account service.
func NewAccountService(
	accounts repository.AccountRepository,
	channels repository.ChannelRepository,
	history repository.HistoryRepository,
	media *MediaUploader,
	events EventPublisher,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		accounts: accounts,
		channels: channels,
		history:  history,
		media:    media,
		events:   events,
		logger:   logger,
	}
}

// --- Profile ---

// CurrentAccount returns the public view of the account.
func (s *AccountService) CurrentAccount(ctx context.Context, accountID string) (*domain.AccountView, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", accountID, err)
	}
	view := account.Sanitized()
	return &view, nil
}

// UpdateAccountDetails replaces the full name and email.
func (s *AccountService) UpdateAccountDetails(ctx context.Context, accountID, fullName, email string) (*domain.AccountView, error) {
	update := domain.ProfileUpdate{
		FullName: strings.TrimSpace(fullName),
		Email:    domain.NormalizeEmail(email),
	}
	if update.FullName == "" || update.Email == "" {
		return nil, apperrors.InvalidInput("fullName and email are required")
	}

	account, err := s.accounts.UpdateProfile(ctx, accountID, update)
	if err != nil {
		return nil, fmt.Errorf("update account %s: %w", accountID, err)
	}

	s.logger.InfoContext(ctx, "account details updated", slog.String("account_id", accountID))
	s.publishUpdated(ctx, account)

	view := account.Sanitized()
	return &view, nil
}

// UpdateAvatar uploads a new avatar and removes the previous one.
func (s *AccountService) UpdateAvatar(ctx context.Context, accountID string, upload *MediaUpload) (*domain.AccountView, error) {
	return s.replaceImage(ctx, accountID, storage.KindAvatar, upload,
		func(a *domain.Account) string { return a.AvatarURL },
		s.accounts.UpdateAvatar,
	)
}

// UpdateCoverImage uploads a new cover image and removes the previous one.
func (s *AccountService) UpdateCoverImage(ctx context.Context, accountID string, upload *MediaUpload) (*domain.AccountView, error) {
	return s.replaceImage(ctx, accountID, storage.KindCover, upload,
		func(a *domain.Account) string { return a.CoverImageURL },
		s.accounts.UpdateCoverImage,
	)
}

func (s *AccountService) replaceImage(
	ctx context.Context,
	accountID string,
	kind storage.Kind,
	upload *MediaUpload,
	current func(*domain.Account) string,
	save func(ctx context.Context, id, url string) (*domain.Account, error),
) (*domain.AccountView, error) {
	before, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", accountID, err)
	}

	url, err := s.media.Upload(ctx, kind, upload)
	if err != nil {
		return nil, err
	}

	account, err := save(ctx, accountID, url)
	if err != nil {
		s.media.Discard(ctx, url)
		return nil, fmt.Errorf("update %s of account %s: %w", kind, accountID, err)
	}

	if old := current(before); old != "" && old != url {
		s.media.Discard(ctx, old)
	}

	s.logger.InfoContext(ctx, "account image updated",
		slog.String("account_id", accountID),
		slog.String("kind", string(kind)),
	)
	s.publishUpdated(ctx, account)

	view := account.Sanitized()
	return &view, nil
}

func (s *AccountService) publishUpdated(ctx context.Context, account *domain.Account) {
	if err := s.events.PublishAccountUpdated(ctx, account); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account.updated event",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}
}

// --- Channels ---

// GetChannelProfile returns the channel page of username as seen by
// viewerID.
func (s *AccountService) GetChannelProfile(ctx context.Context, username, viewerID string) (*domain.ChannelProfile, error) {
	username = domain.NormalizeUsername(username)
	if username == "" {
		return nil, apperrors.InvalidInput("username is missing")
	}

	channel, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get channel %s: %w", username, err)
	}

	var (
		subscribers  int64
		subscribedTo int64
		isSubscribed bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.channels.CountSubscribers(gctx, channel.ID)
		subscribers = n
		return err
	})
	g.Go(func() error {
		n, err := s.channels.CountSubscriptions(gctx, channel.ID)
		subscribedTo = n
		return err
	})
	g.Go(func() error {
		if viewerID == "" {
			return nil
		}
		ok, err := s.channels.IsSubscribed(gctx, viewerID, channel.ID)
		isSubscribed = ok
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load channel %s: %w", username, err)
	}

	profile := domain.NewChannelProfile(channel, subscribers, subscribedTo, isSubscribed)
	return &profile, nil
}

// Subscribe makes subscriberID follow channelID. Subscribing twice is a
// no-op.
func (s *AccountService) Subscribe(ctx context.Context, subscriberID, channelID string) error {
	if subscriberID == channelID {
		return apperrors.InvalidInput("cannot subscribe to your own channel")
	}
	if err := s.channels.Subscribe(ctx, subscriberID, channelID); err != nil {
		return fmt.Errorf("subscribe to %s: %w", channelID, err)
	}
	s.logger.InfoContext(ctx, "subscribed to channel",
		slog.String("account_id", subscriberID),
		slog.String("channel_id", channelID),
	)
	return nil
}

// Unsubscribe removes a subscription if there is one.
func (s *AccountService) Unsubscribe(ctx context.Context, subscriberID, channelID string) error {
	if err := s.channels.Unsubscribe(ctx, subscriberID, channelID); err != nil {
		return fmt.Errorf("unsubscribe from %s: %w", channelID, err)
	}
	return nil
}

// --- Watch history ---

// RecordView adds videoID to the account's watch history.
func (s *AccountService) RecordView(ctx context.Context, accountID, videoID string) error {
	if err := s.history.RecordView(ctx, accountID, videoID); err != nil {
		return fmt.Errorf("record view of %s: %w", videoID, err)
	}
	return nil
}

// WatchHistory returns one page of the account's watch history, newest
// first.
func (s *AccountService) WatchHistory(ctx context.Context, accountID string, params pagination.Params) (*pagination.Result[domain.WatchHistoryEntry], error) {
	entries, total, err := s.history.ListWatchHistory(ctx, accountID, params.Limit, params.Offset)
	if err != nil {
		return nil, fmt.Errorf("list watch history: %w", err)
	}
	result := pagination.NewResult(entries, total, params)
	return &result, nil
}
