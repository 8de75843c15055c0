package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vidtube/vidtube/pkg/database"
	apperrors "github.com/vidtube/vidtube/pkg/errors"
)

// ChannelRepository implements repository.ChannelRepository using PostgreSQL.
type ChannelRepository struct {
	db database.DBTX
}

// NewChannelRepository creates a new PostgreSQL-backed channel repository.
func NewChannelRepository(db database.DBTX) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// CountSubscribers returns the number of subscribers of a channel.
func (r *ChannelRepository) CountSubscribers(ctx context.Context, channelID string) (int64, error) {
	query := `SELECT COUNT(*) FROM subscriptions WHERE channel_id = $1`
	return r.count(ctx, "CountSubscribers", query, channelID)
}

// CountSubscriptions returns the number of channels an account follows.
func (r *ChannelRepository) CountSubscriptions(ctx context.Context, subscriberID string) (int64, error) {
	query := `SELECT COUNT(*) FROM subscriptions WHERE subscriber_id = $1`
	return r.count(ctx, "CountSubscriptions", query, subscriberID)
}

// IsSubscribed reports whether subscriberID follows channelID.
func (r *ChannelRepository) IsSubscribed(ctx context.Context, subscriberID, channelID string) (ok bool, err error) {
	query := `SELECT EXISTS(SELECT 1 FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2)`

	ctx, end := database.TraceQuery(ctx, "IsSubscribed", query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query, subscriberID, channelID).Scan(&ok); err != nil {
		return false, fmt.Errorf("check subscription: %w", err)
	}
	return ok, nil
}

// Subscribe records a subscription. Subscribing twice is a no-op.
func (r *ChannelRepository) Subscribe(ctx context.Context, subscriberID, channelID string) (err error) {
	query := `
		INSERT INTO subscriptions (subscriber_id, channel_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (subscriber_id, channel_id) DO NOTHING`

	ctx, end := database.TraceQuery(ctx, "Subscribe", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, subscriberID, channelID, time.Now().UTC()); err != nil {
		if database.ErrCode(err) == database.ForeignKeyViolation {
			return apperrors.NotFound("channel", channelID)
		}
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// Unsubscribe removes a subscription. Removing a missing one is a no-op.
func (r *ChannelRepository) Unsubscribe(ctx context.Context, subscriberID, channelID string) (err error) {
	query := `DELETE FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2`

	ctx, end := database.TraceQuery(ctx, "Unsubscribe", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, subscriberID, channelID); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

func (r *ChannelRepository) count(ctx context.Context, op, query string, id string) (n int64, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
