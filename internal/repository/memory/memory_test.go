package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidtube/vidtube/internal/domain"
	apperrors "github.com/vidtube/vidtube/pkg/errors"
)

func seedAccount(t *testing.T, repo *AccountRepository, username string) *domain.Account {
	t.Helper()
	a := &domain.Account{
		ID:        "id-" + username,
		Username:  username,
		Email:     username + "@x.com",
		FullName:  username,
		AvatarURL: "https://cdn/" + username + ".png",
		CreatedAt: time.Now().UTC(),
	}
	a.RestorePasswordHash("digest-" + username)
	require.NoError(t, repo.Create(context.Background(), a))
	return a
}

func TestAccountRepository_CreateRejectsDuplicates(t *testing.T) {
	repo := NewAccountRepository(NewStore())
	seedAccount(t, repo, "neo")

	dupName := &domain.Account{ID: "other", Username: "neo", Email: "other@x.com"}
	assert.ErrorIs(t, repo.Create(context.Background(), dupName), apperrors.ErrAlreadyExists)

	dupEmail := &domain.Account{ID: "other", Username: "other", Email: "neo@x.com"}
	assert.ErrorIs(t, repo.Create(context.Background(), dupEmail), apperrors.ErrAlreadyExists)
}

func TestAccountRepository_ReturnsCopies(t *testing.T) {
	repo := NewAccountRepository(NewStore())
	a := seedAccount(t, repo, "neo")

	got, err := repo.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	got.Username = "mutated"
	assert.Equal(t, "digest-neo", got.PasswordHash())

	again, err := repo.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "neo", again.Username)
}

func TestAccountRepository_Lookups(t *testing.T) {
	repo := NewAccountRepository(NewStore())
	a := seedAccount(t, repo, "neo")
	ctx := context.Background()

	byEmail, err := repo.FindByUsernameOrEmail(ctx, "", "neo@x.com")
	require.NoError(t, err)
	assert.Equal(t, a.ID, byEmail.ID)

	byName, err := repo.GetByUsername(ctx, "neo")
	require.NoError(t, err)
	assert.Equal(t, a.ID, byName.ID)

	_, err = repo.FindByUsernameOrEmail(ctx, "", "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAccountRepository_UpdateProfileEmailConflict(t *testing.T) {
	repo := NewAccountRepository(NewStore())
	neo := seedAccount(t, repo, "neo")
	seedAccount(t, repo, "trinity")

	_, err := repo.UpdateProfile(context.Background(), neo.ID, domain.ProfileUpdate{FullName: "Neo", Email: "trinity@x.com"})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	got, err := repo.UpdateProfile(context.Background(), neo.ID, domain.ProfileUpdate{FullName: "Neo", Email: "neo@zion.io"})
	require.NoError(t, err)
	assert.Equal(t, "neo@zion.io", got.Email)
}

func TestAccountRepository_RefreshTokenLifecycle(t *testing.T) {
	repo := NewAccountRepository(NewStore())
	a := seedAccount(t, repo, "neo")
	ctx := context.Background()

	require.NoError(t, repo.SetRefreshToken(ctx, a.ID, "t1"))

	swapped, err := repo.CompareAndSwapRefreshToken(ctx, a.ID, "stale", "t2")
	require.NoError(t, err)
	assert.False(t, swapped)

	swapped, err = repo.CompareAndSwapRefreshToken(ctx, a.ID, "t1", "t2")
	require.NoError(t, err)
	assert.True(t, swapped)

	got, _ := repo.GetByID(ctx, a.ID)
	assert.Equal(t, "t2", *got.RefreshToken)

	require.NoError(t, repo.ClearRefreshToken(ctx, a.ID))
	require.NoError(t, repo.ClearRefreshToken(ctx, a.ID))
	got, _ = repo.GetByID(ctx, a.ID)
	assert.False(t, got.HasRefreshToken())

	swapped, err = repo.CompareAndSwapRefreshToken(ctx, a.ID, "t2", "t3")
	require.NoError(t, err)
	assert.False(t, swapped)
}

func TestAccountRepository_ConcurrentSwapHasOneWinner(t *testing.T) {
	repo := NewAccountRepository(NewStore())
	a := seedAccount(t, repo, "neo")
	ctx := context.Background()
	require.NoError(t, repo.SetRefreshToken(ctx, a.ID, "current"))

	const workers = 32
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := repo.CompareAndSwapRefreshToken(ctx, a.ID, "current", fmt.Sprintf("next-%d", i))
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestChannelRepository_SubscribeLifecycle(t *testing.T) {
	store := NewStore()
	accounts := NewAccountRepository(store)
	channels := NewChannelRepository(store)
	viewer := seedAccount(t, accounts, "neo")
	channel := seedAccount(t, accounts, "morpheus")
	ctx := context.Background()

	require.NoError(t, channels.Subscribe(ctx, viewer.ID, channel.ID))
	require.NoError(t, channels.Subscribe(ctx, viewer.ID, channel.ID))

	n, _ := channels.CountSubscribers(ctx, channel.ID)
	assert.Equal(t, int64(1), n)
	n, _ = channels.CountSubscriptions(ctx, viewer.ID)
	assert.Equal(t, int64(1), n)
	ok, _ := channels.IsSubscribed(ctx, viewer.ID, channel.ID)
	assert.True(t, ok)

	require.NoError(t, channels.Unsubscribe(ctx, viewer.ID, channel.ID))
	require.NoError(t, channels.Unsubscribe(ctx, viewer.ID, channel.ID))
	ok, _ = channels.IsSubscribed(ctx, viewer.ID, channel.ID)
	assert.False(t, ok)

	assert.ErrorIs(t, channels.Subscribe(ctx, viewer.ID, "ghost"), apperrors.ErrNotFound)
}

func TestHistoryRepository_NewestFirstWithOwner(t *testing.T) {
	store := NewStore()
	accounts := NewAccountRepository(store)
	history := NewHistoryRepository(store)
	viewer := seedAccount(t, accounts, "neo")
	owner := seedAccount(t, accounts, "morpheus")
	store.AddVideo(domain.Video{ID: "v1", OwnerID: owner.ID, Title: "Red pill"})
	store.AddVideo(domain.Video{ID: "v2", OwnerID: owner.ID, Title: "Blue pill"})
	ctx := context.Background()

	require.NoError(t, history.RecordView(ctx, viewer.ID, "v1"))
	require.NoError(t, history.RecordView(ctx, viewer.ID, "v2"))
	require.NoError(t, history.RecordView(ctx, viewer.ID, "v1"))
	assert.ErrorIs(t, history.RecordView(ctx, viewer.ID, "ghost"), apperrors.ErrNotFound)

	entries, total, err := history.ListWatchHistory(ctx, viewer.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, entries, 2)
	assert.Equal(t, "v1", entries[0].ID)
	assert.Equal(t, "v2", entries[1].ID)
	assert.Equal(t, "morpheus", entries[0].Owner.Username)
	assert.Equal(t, int64(2), entries[0].Views)

	entries, _, err = history.ListWatchHistory(ctx, viewer.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "v1", entries[0].ID)

	entries, _, err = history.ListWatchHistory(ctx, viewer.ID, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
