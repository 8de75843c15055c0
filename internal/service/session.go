package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vidtube/vidtube/internal/auth"
	"github.com/vidtube/vidtube/internal/domain"
	"github.com/vidtube/vidtube/internal/repository"
	"github.com/vidtube/vidtube/internal/storage"
	apperrors "github.com/vidtube/vidtube/pkg/errors"
)

// SessionService owns registration, login and the refresh token lifecycle.
// The stored refresh token is the single source of truth for an account's
// session: a presented refresh token is honoured only while it equals the
// stored one.
type SessionService struct {
	accounts repository.AccountRepository
	hasher   domain.PasswordHasher
	tokens   *auth.TokenIssuer
	media    *MediaUploader
	limiter  LoginLimiter
	events   EventPublisher
	metrics  *Metrics
	logger   *slog.Logger
}

// NewSessionService creates a new session service. limiter may be nil, in
// which case logins are not throttled.
func NewSessionService(
	accounts repository.AccountRepository,
	hasher domain.PasswordHasher,
	tokens *auth.TokenIssuer,
	media *MediaUploader,
	limiter LoginLimiter,
	events EventPublisher,
	metrics *Metrics,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		media:    media,
		limiter:  limiter,
		events:   events,
		metrics:  metrics,
		logger:   logger,
	}
}

// --- Input/Output types ---

// RegisterInput holds the parameters for registering a new account. The
// avatar is either uploaded or referenced by URL; the cover image is optional.
type RegisterInput struct {
	FullName      string
	Username      string
	Email         string
	Password      string
	Avatar        *MediaUpload
	CoverImage    *MediaUpload
	AvatarRef     string
	CoverImageRef string
}

// LoginInput holds the parameters for a login. Either Username or Email
// identifies the account.
type LoginInput struct {
	Username string
	Email    string
	Password string
	ClientIP string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Account domain.AccountView
	Tokens  domain.TokenPair
}

// --- Registration ---

// Register creates a new account. It does not log the account in.
func (s *SessionService) Register(ctx context.Context, input RegisterInput) (*domain.AccountView, error) {
	username := domain.NormalizeUsername(input.Username)
	email := domain.NormalizeEmail(input.Email)

	switch {
	case username == "":
		return nil, apperrors.InvalidInput("username is required")
	case email == "":
		return nil, apperrors.InvalidInput("email is required")
	case strings.TrimSpace(input.Password) == "":
		return nil, apperrors.InvalidInput("password is required")
	case input.Avatar == nil && strings.TrimSpace(input.AvatarRef) == "":
		return nil, apperrors.InvalidInput("avatar file is required")
	}

	_, err := s.accounts.FindByUsernameOrEmail(ctx, username, email)
	switch {
	case err == nil:
		return nil, apperrors.Conflict("username or email already exists")
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("check existing account: %w", err)
	}

	avatarURL, err := s.media.Resolve(ctx, storage.KindAvatar, input.Avatar, input.AvatarRef)
	if err != nil {
		return nil, err
	}
	coverURL, err := s.media.Resolve(ctx, storage.KindCover, input.CoverImage, input.CoverImageRef)
	if err != nil {
		s.media.Discard(ctx, avatarURL)
		return nil, err
	}

	account, err := domain.NewAccount(domain.NewAccountParams{
		Username:      username,
		Email:         email,
		FullName:      input.FullName,
		Password:      input.Password,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
	}, s.hasher)
	if err == nil {
		err = s.accounts.Create(ctx, account)
	}
	if err != nil {
		s.media.Discard(ctx, avatarURL)
		s.media.Discard(ctx, coverURL)
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.logger.InfoContext(ctx, "account registered",
		slog.String("account_id", account.ID),
		slog.String("username", account.Username),
	)

	if err := s.events.PublishAccountRegistered(ctx, account); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account.registered event",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	view := account.Sanitized()
	return &view, nil
}

// --- Sessions ---

// Authenticate checks the credentials and starts a new session, replacing
// any previous one.
func (s *SessionService) Authenticate(ctx context.Context, input LoginInput) (*LoginResult, error) {
	username := domain.NormalizeUsername(input.Username)
	email := domain.NormalizeEmail(input.Email)
	if username == "" && email == "" {
		return nil, apperrors.InvalidInput("username or email is required")
	}
	if input.Password == "" {
		return nil, apperrors.InvalidInput("password is required")
	}

	identifier := username
	if identifier == "" {
		identifier = email
	}
	key := identifier + "|" + input.ClientIP
	if err := s.checkLoginRate(ctx, key); err != nil {
		s.metrics.login(resultRateLimited)
		return nil, err
	}

	account, err := s.accounts.FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.metrics.login(resultNotFound)
			return nil, apperrors.NotFound("account", identifier)
		}
		s.metrics.login(resultError)
		return nil, fmt.Errorf("find account: %w", err)
	}

	if !account.CheckPassword(input.Password, s.hasher) {
		s.metrics.login(resultInvalidCredentials)
		s.logger.InfoContext(ctx, "login rejected",
			slog.String("account_id", account.ID),
			slog.String("reason", "invalid credentials"),
		)
		return nil, apperrors.InvalidCredentials()
	}

	tokens, err := s.IssuePair(ctx, account)
	if err != nil {
		s.metrics.login(resultError)
		return nil, err
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "failed to reset login limiter", slog.String("error", err.Error()))
		}
	}

	s.metrics.login(resultSuccess)
	s.logger.InfoContext(ctx, "account logged in", slog.String("account_id", account.ID))

	return &LoginResult{Account: account.Sanitized(), Tokens: *tokens}, nil
}

// checkLoginRate fails open: an unavailable limiter never blocks a login.
func (s *SessionService) checkLoginRate(ctx context.Context, key string) error {
	if s.limiter == nil {
		return nil
	}
	allowed, retryAfter, err := s.limiter.Allow(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "login limiter unavailable", slog.String("error", err.Error()))
		return nil
	}
	if !allowed {
		return apperrors.RateLimited(fmt.Sprintf("too many login attempts, retry in %s", retryAfter.Round(time.Second)))
	}
	return nil
}

// IssuePair mints a new token pair and stores the refresh token,
// overwriting any previous one. Nothing is returned if the store fails.
func (s *SessionService) IssuePair(ctx context.Context, account *domain.Account) (*domain.TokenPair, error) {
	pair, err := s.mint(account)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.SetRefreshToken(ctx, account.ID, pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return pair, nil
}

// Logout ends the account's session. Logging out twice is not an error.
func (s *SessionService) Logout(ctx context.Context, accountID string) error {
	if err := s.accounts.ClearRefreshToken(ctx, accountID); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	s.logger.InfoContext(ctx, "account logged out", slog.String("account_id", accountID))
	return nil
}

// RotateRefresh exchanges a refresh token for a new pair. Presenting a
// token that is no longer the stored one is treated as reuse; the stored
// token is left alone so the legitimate holder keeps their session.
func (s *SessionService) RotateRefresh(ctx context.Context, presented string) (*domain.TokenPair, error) {
	if presented == "" {
		s.metrics.refresh(resultUnauthorized)
		return nil, apperrors.Unauthorized("unauthorized request")
	}

	claims, err := s.tokens.VerifyRefresh(presented)
	if err != nil {
		s.metrics.refresh(resultInvalidToken)
		return nil, err
	}

	account, err := s.accounts.GetByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.metrics.refresh(resultUnauthorized)
			return nil, apperrors.Unauthorized("invalid refresh token")
		}
		s.metrics.refresh(resultError)
		return nil, fmt.Errorf("get account %s: %w", claims.AccountID, err)
	}

	if !account.HasRefreshToken() {
		s.metrics.refresh(resultUnauthorized)
		return nil, apperrors.Unauthorized("refresh token is expired or used")
	}
	if *account.RefreshToken != presented {
		return nil, s.reuseDetected(ctx, account.ID)
	}

	pair, err := s.mint(account)
	if err != nil {
		s.metrics.refresh(resultError)
		return nil, err
	}

	swapped, err := s.accounts.CompareAndSwapRefreshToken(ctx, account.ID, presented, pair.RefreshToken)
	if err != nil {
		s.metrics.refresh(resultError)
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !swapped {
		return nil, s.reuseDetected(ctx, account.ID)
	}

	s.metrics.refresh(resultSuccess)
	return pair, nil
}

func (s *SessionService) reuseDetected(ctx context.Context, accountID string) error {
	s.metrics.refresh(resultReuseDetected)
	s.logger.WarnContext(ctx, "refresh token reuse detected", slog.String("account_id", accountID))

	if err := s.events.PublishRefreshReuseDetected(ctx, accountID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account.refresh_reuse_detected event",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()),
		)
	}
	return apperrors.ErrRefreshReuseDetected
}

func (s *SessionService) mint(account *domain.Account) (*domain.TokenPair, error) {
	access, err := s.tokens.IssueAccess(auth.Identity{
		AccountID: account.ID,
		Email:     account.Email,
		Username:  account.Username,
		FullName:  account.FullName,
	})
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefresh(account.ID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// --- Password ---

// ChangePassword replaces the password after checking the old one. The
// current session stays valid.
func (s *SessionService) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("get account %s: %w", accountID, err)
	}

	if !account.CheckPassword(oldPassword, s.hasher) {
		return apperrors.InvalidCredentials()
	}
	if err := account.SetPassword(newPassword, s.hasher); err != nil {
		return err
	}

	if err := s.accounts.UpdatePasswordHash(ctx, account.ID, account.PasswordHash()); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.logger.InfoContext(ctx, "password changed", slog.String("account_id", account.ID))

	if err := s.events.PublishPasswordChanged(ctx, account.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account.password_changed event",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
