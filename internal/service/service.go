package service

import (
	"context"
	"time"

	"github.com/vidtube/vidtube/internal/domain"
)

// EventPublisher publishes account domain events. Publishing is best effort:
// callers log failures and carry on.
type EventPublisher interface {
	PublishAccountRegistered(ctx context.Context, account *domain.Account) error
	PublishAccountUpdated(ctx context.Context, account *domain.Account) error
	PublishPasswordChanged(ctx context.Context, accountID string) error
	PublishRefreshReuseDetected(ctx context.Context, accountID string) error
}

// LoginLimiter throttles login attempts per key.
type LoginLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
	Reset(ctx context.Context, key string) error
}
