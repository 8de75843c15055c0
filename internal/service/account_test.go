package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vidtube/vidtube/internal/domain"
	"github.com/vidtube/vidtube/internal/storage"
	apperrors "github.com/vidtube/vidtube/pkg/errors"
	"github.com/vidtube/vidtube/pkg/pagination"
)

// --- Profile ---

func TestCurrentAccount(t *testing.T) {
	f := newFixture(t)
	view := f.register(t, "neo")

	got, err := f.account.CurrentAccount(context.Background(), view.ID)
	require.NoError(t, err)
	assert.Equal(t, *view, *got)

	_, err = f.account.CurrentAccount(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateAccountDetails(t *testing.T) {
	f := newFixture(t)
	neo := f.register(t, "neo")
	f.register(t, "trinity")
	ctx := context.Background()

	got, err := f.account.UpdateAccountDetails(ctx, neo.ID, " The One ", "ONE@matrix.io")
	require.NoError(t, err)
	assert.Equal(t, "The One", got.FullName)
	assert.Equal(t, "one@matrix.io", got.Email)
	f.events.AssertCalled(t, "PublishAccountUpdated", mock.Anything, mock.Anything)

	_, err = f.account.UpdateAccountDetails(ctx, neo.ID, "Neo", "trinity@vidtube.dev")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	_, err = f.account.UpdateAccountDetails(ctx, neo.ID, "", "x@y.z")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestUpdateAvatar_ReplacesAndDeletesPrevious(t *testing.T) {
	f := newFixture(t)
	view := f.register(t, "neo")
	oldKey, ok := storage.KeyFromURL(f.media.BaseURL(), view.AvatarURL)
	require.True(t, ok)

	got, err := f.account.UpdateAvatar(context.Background(), view.ID, pngUpload("new-avatar"))
	require.NoError(t, err)

	newKey, ok := storage.KeyFromURL(f.media.BaseURL(), got.AvatarURL)
	require.True(t, ok)
	assert.NotEqual(t, oldKey, newKey)
	assert.True(t, f.media.Has(newKey))
	assert.False(t, f.media.Has(oldKey))
}

func TestUpdateCoverImage_KeepsForeignURL(t *testing.T) {
	f := newFixture(t)
	view, err := f.sessions.Register(context.Background(), RegisterInput{
		Username: "neo", Email: "neo@matrix.io", Password: "pw",
		AvatarRef: "https://cdn.example.com/a.png", CoverImageRef: "https://cdn.example.com/c.png",
	})
	require.NoError(t, err)

	got, err := f.account.UpdateCoverImage(context.Background(), view.ID, pngUpload("cover"))
	require.NoError(t, err)
	assert.NotEqual(t, "https://cdn.example.com/c.png", got.CoverImageURL)
	assert.Equal(t, 1, f.media.Len())
}

func TestUpdateAvatar_MissingFile(t *testing.T) {
	f := newFixture(t)
	view := f.register(t, "neo")

	_, err := f.account.UpdateAvatar(context.Background(), view.ID, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestUpdateAvatar_SaveFailureDiscardsUpload(t *testing.T) {
	f := newFixture(t)
	repo := &mockAccountRepository{}
	repo.On("GetByID", mock.Anything, "acc-1").Return(&domain.Account{ID: "acc-1"}, nil)
	repo.On("UpdateAvatar", mock.Anything, "acc-1", mock.AnythingOfType("string")).Return(nil, errors.New("db down"))
	f.account.accounts = repo

	_, err := f.account.UpdateAvatar(context.Background(), "acc-1", pngUpload("a"))
	require.Error(t, err)
	assert.Zero(t, f.media.Len())
}

// --- Channels ---

func TestGetChannelProfile(t *testing.T) {
	f := newFixture(t)
	neo := f.register(t, "neo")
	trinity := f.register(t, "trinity")
	morpheus := f.register(t, "morpheus")
	ctx := context.Background()

	require.NoError(t, f.account.Subscribe(ctx, trinity.ID, neo.ID))
	require.NoError(t, f.account.Subscribe(ctx, trinity.ID, neo.ID))
	require.NoError(t, f.account.Subscribe(ctx, morpheus.ID, neo.ID))
	require.NoError(t, f.account.Subscribe(ctx, neo.ID, morpheus.ID))

	profile, err := f.account.GetChannelProfile(ctx, " NEO ", trinity.ID)
	require.NoError(t, err)
	assert.Equal(t, neo.ID, profile.ID)
	assert.Equal(t, int64(2), profile.SubscribersCount)
	assert.Equal(t, int64(1), profile.ChannelsSubscribedToCount)
	assert.True(t, profile.IsSubscribed)

	require.NoError(t, f.account.Unsubscribe(ctx, trinity.ID, neo.ID))
	profile, err = f.account.GetChannelProfile(ctx, "neo", trinity.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), profile.SubscribersCount)
	assert.False(t, profile.IsSubscribed)
}

func TestGetChannelProfile_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.account.GetChannelProfile(context.Background(), "  ", "viewer")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.account.GetChannelProfile(context.Background(), "ghost", "viewer")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSubscribe_Rules(t *testing.T) {
	f := newFixture(t)
	neo := f.register(t, "neo")

	assert.ErrorIs(t, f.account.Subscribe(context.Background(), neo.ID, neo.ID), apperrors.ErrInvalidInput)
	assert.ErrorIs(t, f.account.Subscribe(context.Background(), neo.ID, "ghost"), apperrors.ErrNotFound)
}

// --- Watch history ---

func TestWatchHistory_Paginated(t *testing.T) {
	f := newFixture(t)
	neo := f.register(t, "neo")
	owner := f.register(t, "morpheus")
	f.store.AddVideo(domain.Video{ID: "v1", OwnerID: owner.ID, Title: "Red pill"})
	f.store.AddVideo(domain.Video{ID: "v2", OwnerID: owner.ID, Title: "Blue pill"})
	ctx := context.Background()

	require.NoError(t, f.account.RecordView(ctx, neo.ID, "v1"))
	require.NoError(t, f.account.RecordView(ctx, neo.ID, "v2"))
	require.NoError(t, f.account.RecordView(ctx, neo.ID, "v1"))
	assert.ErrorIs(t, f.account.RecordView(ctx, neo.ID, "ghost"), apperrors.ErrNotFound)

	page, err := f.account.WatchHistory(ctx, neo.ID, pagination.Params{Page: 1, Limit: 2, Offset: 0})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 2, page.TotalPages)
	assert.True(t, page.HasNext)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "v1", page.Items[0].ID)
	assert.Equal(t, "morpheus", page.Items[0].Owner.Username)

	empty, err := f.account.WatchHistory(ctx, owner.ID, pagination.DefaultParams())
	require.NoError(t, err)
	assert.NotNil(t, empty.Items)
	assert.Zero(t, empty.TotalCount)
}
