package memory

import (
	"context"
	"sort"

	"github.com/vidtube/vidtube/internal/domain"
	apperrors "github.com/vidtube/vidtube/pkg/errors"
)

// HistoryRepository implements repository.HistoryRepository over a Store.
type HistoryRepository struct {
	s *Store
}

// NewHistoryRepository creates a history repository backed by s.
func NewHistoryRepository(s *Store) *HistoryRepository {
	return &HistoryRepository{s: s}
}

// RecordView appends a history entry and bumps the video's view count.
func (r *HistoryRepository) RecordView(_ context.Context, accountID, videoID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.accounts[accountID]; !ok {
		return apperrors.NotFound("account", accountID)
	}
	v, ok := r.s.videos[videoID]
	if !ok {
		return apperrors.NotFound("video", videoID)
	}
	v.Views++
	r.s.seq++
	r.s.history = append(r.s.history, historyRow{
		seq:      r.s.seq,
		account:  accountID,
		video:    videoID,
		viewedAt: r.s.now(),
	})
	return nil
}

// ListWatchHistory returns one page of history, newest first.
func (r *HistoryRepository) ListWatchHistory(_ context.Context, accountID string, limit, offset int) ([]domain.WatchHistoryEntry, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var rows []historyRow
	for _, h := range r.s.history {
		if h.account == accountID {
			rows = append(rows, h)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })

	total := len(rows)
	entries := []domain.WatchHistoryEntry{}
	if offset >= total {
		return entries, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	for _, h := range rows[offset:end] {
		v, ok := r.s.videos[h.video]
		if !ok {
			continue
		}
		e := domain.WatchHistoryEntry{Video: *v, ViewedAt: h.viewedAt}
		if owner, ok := r.s.accounts[v.OwnerID]; ok {
			e.Owner = domain.VideoOwner{
				Username:  owner.Username,
				FullName:  owner.FullName,
				AvatarURL: owner.AvatarURL,
			}
		}
		entries = append(entries, e)
	}
	return entries, total, nil
}
