package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var waits []time.Duration
	orig := sleepFunc
	sleepFunc = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleepFunc = orig })
	return &waits
}

func TestRetryBackoff_WithinJitterBounds(t *testing.T) {
	for attempt := 0; attempt < 3; attempt++ {
		base := defaultRetryBaseWait << attempt
		lo := time.Duration(float64(base) * (1 - retryJitterFraction))
		hi := time.Duration(float64(base) * (1 + retryJitterFraction))

		for i := 0; i < 20; i++ {
			d := retryBackoff(attempt)
			assert.GreaterOrEqual(t, d, lo)
			assert.LessOrEqual(t, d, hi)
		}
	}
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	waits := noSleep(t)
	calls := 0

	err := withRetry(context.Background(), nil, "op", func(error) bool { return true }, func() error {
		calls++
		if calls < 3 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, *waits, 2)
}

func TestWithRetry_StopsOnNonRetryable(t *testing.T) {
	noSleep(t)
	calls := 0
	boom := errors.New("syntax error at or near")

	err := withRetry(context.Background(), nil, "op", isConnectionError, func() error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	noSleep(t)
	calls := 0

	err := withRetry(context.Background(), nil, "op", func(error) bool { return true }, func() error {
		calls++
		return errors.New("EOF")
	})

	assert.Error(t, err)
	assert.Equal(t, defaultRetryAttempts, calls)
}

func TestWithRetry_ContextCanceled(t *testing.T) {
	noSleep(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := withRetry(ctx, nil, "op", func(error) bool { return true }, func() error {
		return errors.New("EOF")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, isConnectionError(nil))
	assert.True(t, isConnectionError(errors.New("dial tcp 127.0.0.1:5432: connection refused")))
	assert.True(t, isConnectionError(errors.New("connection reset by peer")))
	assert.True(t, isConnectionError(errors.New("could not connect to server")))
	assert.False(t, isConnectionError(errors.New("duplicate key value violates unique constraint")))
	assert.False(t, isConnectionError(errors.New("relation does not exist")))
}

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: 5432, User: "vidtube", Password: "pw", DBName: "vidtube", SSLMode: "disable"}
	assert.Equal(t, "postgres://vidtube:pw@db:5432/vidtube?sslmode=disable", cfg.DSN())
}
