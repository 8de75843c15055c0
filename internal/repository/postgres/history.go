package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vidtube/vidtube/internal/domain"
	"github.com/vidtube/vidtube/pkg/database"
	apperrors "github.com/vidtube/vidtube/pkg/errors"
)

// HistoryRepository implements repository.HistoryRepository using PostgreSQL.
type HistoryRepository struct {
	db database.DBTX
}

// NewHistoryRepository creates a new PostgreSQL-backed history repository.
func NewHistoryRepository(db database.DBTX) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// RecordView appends a history entry and increments the video's view
// counter in one statement.
func (r *HistoryRepository) RecordView(ctx context.Context, accountID, videoID string) (err error) {
	query := `
		WITH v AS (
			UPDATE videos SET views = views + 1 WHERE id = $2 RETURNING id
		)
		INSERT INTO watch_history (account_id, video_id, viewed_at)
		SELECT $1, v.id, $3 FROM v`

	ctx, end := database.TraceQuery(ctx, "RecordView", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, accountID, videoID, time.Now().UTC())
	if err != nil {
		if database.ErrCode(err) == database.ForeignKeyViolation {
			return apperrors.NotFound("account", accountID)
		}
		return fmt.Errorf("record view: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("video", videoID)
	}
	return nil
}

// ListWatchHistory returns one page of the account's history, newest first,
// with each video's owner joined in.
func (r *HistoryRepository) ListWatchHistory(ctx context.Context, accountID string, limit, offset int) (_ []domain.WatchHistoryEntry, total int, err error) {
	countQuery := `SELECT COUNT(*) FROM watch_history WHERE account_id = $1`

	ctx, end := database.TraceQuery(ctx, "ListWatchHistory", countQuery)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, countQuery, accountID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count watch history: %w", err)
	}

	query := `
		SELECT v.id, v.owner_id, v.title, v.description, v.video_url, v.thumbnail_url,
		       v.duration, v.views, v.is_published, v.created_at,
		       o.username, o.full_name, o.avatar_url,
		       h.viewed_at
		FROM watch_history h
		JOIN videos v ON v.id = h.video_id
		JOIN accounts o ON o.id = v.owner_id
		WHERE h.account_id = $1
		ORDER BY h.viewed_at DESC, h.id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list watch history: %w", err)
	}
	defer rows.Close()

	entries := []domain.WatchHistoryEntry{}
	for rows.Next() {
		var e domain.WatchHistoryEntry
		if err = rows.Scan(
			&e.ID, &e.OwnerID, &e.Title, &e.Description, &e.VideoURL, &e.ThumbnailURL,
			&e.Duration, &e.Views, &e.IsPublished, &e.CreatedAt,
			&e.Owner.Username, &e.Owner.FullName, &e.Owner.AvatarURL,
			&e.ViewedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan watch history: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate watch history rows: %w", err)
	}

	return entries, total, nil
}
