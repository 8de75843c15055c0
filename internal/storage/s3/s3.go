package s3

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/vidtube/vidtube/internal/storage"
)

// ErrCircuitOpen is returned while the breaker rejects calls to S3.
var ErrCircuitOpen = gobreaker.ErrOpenState

// Config holds S3 connection and breaker configuration.
type Config struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	UsePathStyle  bool

	// Breaker settings. Zero values use the defaults below.
	BreakerTimeout      time.Duration
	BreakerInterval     time.Duration
	BreakerFailureRatio float64
	BreakerMinRequests  uint32
}

func (c *Config) applyDefaults() {
	if c.BreakerTimeout == 0 {
		c.BreakerTimeout = 30 * time.Second
	}
	if c.BreakerInterval == 0 {
		c.BreakerInterval = 60 * time.Second
	}
	if c.BreakerFailureRatio == 0 {
		c.BreakerFailureRatio = 0.5
	}
	if c.BreakerMinRequests == 0 {
		c.BreakerMinRequests = 5
	}
}

// BaseURL returns the prefix of every object URL.
func (c *Config) BaseURL() string {
	switch {
	case c.PublicBaseURL != "":
		return strings.TrimRight(c.PublicBaseURL, "/")
	case c.Endpoint != "":
		return strings.TrimRight(c.Endpoint, "/") + "/" + c.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.Bucket, c.Region)
	}
}

// objectAPI is the part of the S3 client the storage needs.
type objectAPI interface {
	PutObject(ctx context.Context, in *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
}

// Storage implements storage.Storage on S3 or an S3-compatible server such
// as MinIO. Every call runs through a circuit breaker so a failing bucket
// does not stall registrations.
type Storage struct {
	api     objectAPI
	bucket  string
	baseURL string
	breaker *gobreaker.CircuitBreaker[struct{}]
	state   prometheus.Gauge
	logger  *slog.Logger
}

// New builds an S3 client from cfg and wraps it in a circuit breaker. The
// breaker state gauge is registered on reg when it is non-nil.
func New(ctx context.Context, cfg Config, logger *slog.Logger, reg prometheus.Registerer) (*Storage, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newStorage(client, cfg, logger, reg)
}

func newStorage(api objectAPI, cfg Config, logger *slog.Logger, reg prometheus.Registerer) (*Storage, error) {
	cfg.applyDefaults()

	state := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
	if reg != nil {
		if err := reg.Register(state); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, fmt.Errorf("register breaker metric: %w", err)
			}
			state = are.ExistingCollector.(*prometheus.GaugeVec)
		}
	}

	name := "s3:" + cfg.Bucket
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.BreakerFailureRatio
		},
		// A caller giving up is not a sign that S3 is unhealthy.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			state.WithLabelValues(name).Set(stateToFloat(to))
		},
	}
	state.WithLabelValues(name).Set(0)

	return &Storage{
		api:     api,
		bucket:  cfg.Bucket,
		baseURL: cfg.BaseURL(),
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
		state:   state.WithLabelValues(name),
		logger:  logger,
	}, nil
}

// BaseURL returns the prefix of every URL this storage issues.
func (s *Storage) BaseURL() string { return s.baseURL }

// State returns the current breaker state.
func (s *Storage) State() gobreaker.State { return s.breaker.State() }

// Upload puts an object into the bucket.
func (s *Storage) Upload(ctx context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	_, err := s.breaker.Execute(func() (struct{}, error) {
		in := &awss3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(input.Key),
			Body:        input.Data,
			ContentType: aws.String(input.ContentType),
		}
		if input.Size > 0 {
			in.ContentLength = aws.Int64(input.Size)
		}
		_, err := s.api.PutObject(ctx, in)
		return struct{}{}, err
	})
	if err != nil {
		return nil, fmt.Errorf("s3 put %s: %w", input.Key, err)
	}

	return &storage.UploadResult{
		Key: input.Key,
		URL: s.baseURL + "/" + input.Key,
	}, nil
}

// Delete removes an object. S3 treats deleting a missing key as success.
func (s *Storage) Delete(ctx context.Context, key string) error {
	_, err := s.breaker.Execute(func() (struct{}, error) {
		_, err := s.api.DeleteObject(ctx, &awss3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		return struct{}{}, err
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
