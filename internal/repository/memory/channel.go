package memory

import (
	"context"

	apperrors "github.com/vidtube/vidtube/pkg/errors"
)

// ChannelRepository implements repository.ChannelRepository over a Store.
type ChannelRepository struct {
	s *Store
}

// NewChannelRepository creates a channel repository backed by s.
func NewChannelRepository(s *Store) *ChannelRepository {
	return &ChannelRepository{s: s}
}

// CountSubscribers returns the number of subscribers of a channel.
func (r *ChannelRepository) CountSubscribers(_ context.Context, channelID string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var n int64
	for k := range r.s.subscriptions {
		if k.channel == channelID {
			n++
		}
	}
	return n, nil
}

// CountSubscriptions returns the number of channels an account follows.
func (r *ChannelRepository) CountSubscriptions(_ context.Context, subscriberID string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var n int64
	for k := range r.s.subscriptions {
		if k.subscriber == subscriberID {
			n++
		}
	}
	return n, nil
}

// IsSubscribed reports whether subscriberID follows channelID.
func (r *ChannelRepository) IsSubscribed(_ context.Context, subscriberID, channelID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.subscriptions[subscriptionKey{subscriber: subscriberID, channel: channelID}]
	return ok, nil
}

// Subscribe records a subscription.
func (r *ChannelRepository) Subscribe(_ context.Context, subscriberID, channelID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.accounts[channelID]; !ok {
		return apperrors.NotFound("channel", channelID)
	}
	key := subscriptionKey{subscriber: subscriberID, channel: channelID}
	if _, ok := r.s.subscriptions[key]; !ok {
		r.s.subscriptions[key] = r.s.now()
	}
	return nil
}

// Unsubscribe removes a subscription.
func (r *ChannelRepository) Unsubscribe(_ context.Context, subscriberID, channelID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.subscriptions, subscriptionKey{subscriber: subscriberID, channel: channelID})
	return nil
}
