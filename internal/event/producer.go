package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vidtube/vidtube/internal/domain"
	pkgkafka "github.com/vidtube/vidtube/pkg/kafka"
	"github.com/vidtube/vidtube/pkg/logger"
)

// Kafka topic constants for account domain events.
const (
	TopicAccountRegistered    = "vidtube.account.registered"
	TopicAccountUpdated       = "vidtube.account.updated"
	TopicPasswordChanged      = "vidtube.account.password_changed"
	TopicRefreshReuseDetected = "vidtube.account.refresh_reuse_detected"
)

// Aggregate type constant.
const AggregateTypeAccount = "account"

// Source identifier for events originating from this service.
const SourceAccountService = "vidtube"

// AccountRegisteredData is the payload for an account.registered event.
type AccountRegisteredData struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// AccountUpdatedData is the payload for an account.updated event.
type AccountUpdatedData struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	Avatar     string `json:"avatar"`
	CoverImage string `json:"cover_image,omitempty"`
}

// PasswordChangedData is the payload for an account.password_changed event.
type PasswordChangedData struct {
	AccountID string    `json:"account_id"`
	ChangedAt time.Time `json:"changed_at"`
}

// RefreshReuseDetectedData is the payload for an
// account.refresh_reuse_detected event.
type RefreshReuseDetectedData struct {
	AccountID  string    `json:"account_id"`
	DetectedAt time.Time `json:"detected_at"`
}

// Publisher is the part of pkg/kafka.Producer the event producer needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes account domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewProducer creates a new event producer for account events.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// PublishAccountRegistered publishes an account.registered event.
func (p *Producer) PublishAccountRegistered(ctx context.Context, account *domain.Account) error {
	return p.publish(ctx, TopicAccountRegistered, account.ID, AccountRegisteredData{
		ID:       account.ID,
		Username: account.Username,
		Email:    account.Email,
		FullName: account.FullName,
	})
}

// PublishAccountUpdated publishes an account.updated event.
func (p *Producer) PublishAccountUpdated(ctx context.Context, account *domain.Account) error {
	return p.publish(ctx, TopicAccountUpdated, account.ID, AccountUpdatedData{
		ID:         account.ID,
		Email:      account.Email,
		FullName:   account.FullName,
		Avatar:     account.AvatarURL,
		CoverImage: account.CoverImageURL,
	})
}

// PublishPasswordChanged publishes an account.password_changed event.
func (p *Producer) PublishPasswordChanged(ctx context.Context, accountID string) error {
	return p.publish(ctx, TopicPasswordChanged, accountID, PasswordChangedData{
		AccountID: accountID,
		ChangedAt: p.now(),
	})
}

// PublishRefreshReuseDetected publishes an account.refresh_reuse_detected
// event.
func (p *Producer) PublishRefreshReuseDetected(ctx context.Context, accountID string) error {
	return p.publish(ctx, TopicRefreshReuseDetected, accountID, RefreshReuseDetectedData{
		AccountID:  accountID,
		DetectedAt: p.now(),
	})
}

func (p *Producer) publish(ctx context.Context, topic, accountID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, pkgkafka.Aggregate{
		Type:   AggregateTypeAccount,
		ID:     accountID,
		Source: SourceAccountService,
	}, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published account event",
		slog.String("topic", topic),
		slog.String("account_id", accountID),
	)
	return nil
}

// Discard drops every event. It stands in for Kafka when no brokers are
// configured.
type Discard struct{}

func (Discard) PublishAccountRegistered(context.Context, *domain.Account) error { return nil }

func (Discard) PublishAccountUpdated(context.Context, *domain.Account) error { return nil }

func (Discard) PublishPasswordChanged(context.Context, string) error { return nil }

func (Discard) PublishRefreshReuseDetected(context.Context, string) error { return nil }
