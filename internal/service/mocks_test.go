package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/vidtube/internal/auth"
	"github.com/vidtube/vidtube/internal/domain"
	"github.com/vidtube/vidtube/internal/repository/memory"
	memstorage "github.com/vidtube/vidtube/internal/storage/memory"
)

// --- Mock Account Repository ---

type mockAccountRepository struct {
	mock.Mock
}

func (m *mockAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.Account, error) {
	args := m.Called(ctx, username, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepository) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.Account, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepository) UpdateAvatar(ctx context.Context, id, url string) (*domain.Account, error) {
	args := m.Called(ctx, id, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepository) UpdateCoverImage(ctx context.Context, id, url string) (*domain.Account, error) {
	args := m.Called(ctx, id, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *mockAccountRepository) UpdatePasswordHash(ctx context.Context, id, digest string) error {
	args := m.Called(ctx, id, digest)
	return args.Error(0)
}

func (m *mockAccountRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	args := m.Called(ctx, id, token)
	return args.Error(0)
}

func (m *mockAccountRepository) CompareAndSwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error) {
	args := m.Called(ctx, id, expected, next)
	return args.Bool(0), args.Error(1)
}

func (m *mockAccountRepository) ClearRefreshToken(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock Event Publisher ---

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) PublishAccountRegistered(ctx context.Context, account *domain.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *mockEvents) PublishAccountUpdated(ctx context.Context, account *domain.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *mockEvents) PublishPasswordChanged(ctx context.Context, accountID string) error {
	return m.Called(ctx, accountID).Error(0)
}

func (m *mockEvents) PublishRefreshReuseDetected(ctx context.Context, accountID string) error {
	return m.Called(ctx, accountID).Error(0)
}

// allowEvents accepts every event without asserting on it.
func allowEvents() *mockEvents {
	e := &mockEvents{}
	e.On("PublishAccountRegistered", mock.Anything, mock.Anything).Return(nil).Maybe()
	e.On("PublishAccountUpdated", mock.Anything, mock.Anything).Return(nil).Maybe()
	e.On("PublishPasswordChanged", mock.Anything, mock.Anything).Return(nil).Maybe()
	e.On("PublishRefreshReuseDetected", mock.Anything, mock.Anything).Return(nil).Maybe()
	return e
}

// --- Mock Login Limiter ---

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Get(1).(time.Duration), args.Error(2)
}

func (m *mockLimiter) Reset(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// --- Test Helpers ---

const testMaxUpload = 1 << 20

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestIssuer() *auth.TokenIssuer {
	return auth.NewTokenIssuer("test-access-secret", "test-refresh-secret", 15*time.Minute, 240*time.Hour)
}

func newTestHasher() *auth.PasswordHasher {
	return auth.NewPasswordHasher(bcrypt.MinCost)
}

func pngUpload(body string) *MediaUpload {
	return &MediaUpload{
		Filename:    "a.png",
		ContentType: "image/png",
		Size:        int64(len(body)),
		Data:        strings.NewReader(body),
	}
}

// fixture wires both services over the in-memory store and media storage.
type fixture struct {
	store    *memory.Store
	accounts *memory.AccountRepository
	media    *memstorage.Storage
	events   *mockEvents
	metrics  *Metrics
	sessions *SessionService
	account  *AccountService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil, allowEvents())
}

func newFixtureWith(t *testing.T, limiter LoginLimiter, events *mockEvents) *fixture {
	t.Helper()
	store := memory.NewStore()
	accounts := memory.NewAccountRepository(store)
	media := memstorage.New("http://media.local")
	uploader := NewMediaUploader(media, testMaxUpload, newTestLogger())
	metrics, err := NewMetrics(nil)
	if err != nil {
		t.Fatal(err)
	}

	return &fixture{
		store:    store,
		accounts: accounts,
		media:    media,
		events:   events,
		metrics:  metrics,
		sessions: NewSessionService(accounts, newTestHasher(), newTestIssuer(), uploader, limiter, events, metrics, newTestLogger()),
		account: NewAccountService(accounts, memory.NewChannelRepository(store), memory.NewHistoryRepository(store),
			uploader, events, newTestLogger()),
	}
}

// register creates an account with password "secret-pw".
func (f *fixture) register(t *testing.T, username string) *domain.AccountView {
	t.Helper()
	view, err := f.sessions.Register(context.Background(), RegisterInput{
		FullName: strings.ToUpper(username),
		Username: username,
		Email:    username + "@vidtube.dev",
		Password: "secret-pw",
		Avatar:   pngUpload("avatar-" + username),
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return view
}

func (f *fixture) storedRefresh(t *testing.T, id string) *string {
	t.Helper()
	a, err := f.accounts.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return a.RefreshToken
}
