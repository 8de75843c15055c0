package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/vidtube/vidtube/internal/auth"
	"github.com/vidtube/vidtube/internal/config"
	"github.com/vidtube/vidtube/internal/event"
	handler "github.com/vidtube/vidtube/internal/handler/http"
	"github.com/vidtube/vidtube/internal/repository"
	"github.com/vidtube/vidtube/internal/repository/memory"
	"github.com/vidtube/vidtube/internal/repository/postgres"
	redisrepo "github.com/vidtube/vidtube/internal/repository/redis"
	"github.com/vidtube/vidtube/internal/service"
	memstorage "github.com/vidtube/vidtube/internal/storage/memory"
	"github.com/vidtube/vidtube/internal/storage/s3"
	"github.com/vidtube/vidtube/migrations"
	"github.com/vidtube/vidtube/pkg/database"
	"github.com/vidtube/vidtube/pkg/health"
	pkgkafka "github.com/vidtube/vidtube/pkg/kafka"
	"github.com/vidtube/vidtube/pkg/middleware"
	"github.com/vidtube/vidtube/pkg/tracing"
)

// App wires together all dependencies and runs the vidtube API.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

type repositories struct {
	accounts repository.AccountRepository
	channels repository.ChannelRepository
	history  repository.HistoryRepository
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	healthHandler := health.NewHandler()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    handler.ServiceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		Insecure:       cfg.IsDevelopment(),
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	repos, err := a.initRepositories(ctx, registry, healthHandler)
	if err != nil {
		a.closeAll()
		return nil, err
	}

	limiter := a.initLimiter(ctx, healthHandler)

	var events service.EventPublisher = event.Discard{}
	if cfg.KafkaEnabled {
		if err := pkgkafka.RegisterMetrics(registry); err != nil {
			a.closeAll()
			return nil, fmt.Errorf("register kafka metrics: %w", err)
		}
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		events = event.NewProducer(a.producer, logger)
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	media, err := a.initMedia(ctx, registry, healthHandler)
	if err != nil {
		a.closeAll()
		return nil, err
	}

	metrics, err := service.NewMetrics(registry)
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("register auth metrics: %w", err)
	}

	tokens := auth.NewTokenIssuer(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessExpiry(), cfg.RefreshExpiry())
	uploader := service.NewMediaUploader(media, cfg.MediaMaxUploadBytes, logger)
	sessions := service.NewSessionService(
		repos.accounts,
		auth.NewPasswordHasher(cfg.BcryptCost),
		tokens,
		uploader,
		limiter,
		events,
		metrics,
		logger,
	)
	accounts := service.NewAccountService(repos.accounts, repos.channels, repos.history, uploader, events, logger)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins

	router := handler.NewRouter(handler.RouterDeps{
		Sessions: sessions,
		Accounts: accounts,
		Tokens:   tokens,
		Health:   healthHandler,
		Cookies: handler.CookieConfig{
			Secure:     cfg.CookieSecure,
			Domain:     cfg.CookieDomain,
			AccessTTL:  cfg.AccessExpiry(),
			RefreshTTL: cfg.RefreshExpiry(),
		},
		CORS:           cors,
		MaxUploadBytes: cfg.MediaMaxUploadBytes,
		Registry:       registry,
		AuthRateLimit: handler.RateLimitConfig{
			RPS:   cfg.AuthRateLimitRPS,
			Burst: cfg.AuthRateLimitBurst,
		},
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// initRepositories connects to PostgreSQL and applies migrations, or builds
// the in-memory store when STORAGE_BACKEND=memory.
func (a *App) initRepositories(ctx context.Context, reg prometheus.Registerer, h *health.Handler) (*repositories, error) {
	cfg := a.cfg
	if cfg.StorageBackend == "memory" {
		a.logger.Warn("using in-memory account storage, data is lost on restart")
		store := memory.NewStore()
		return &repositories{
			accounts: memory.NewAccountRepository(store),
			channels: memory.NewChannelRepository(store),
			history:  memory.NewHistoryRepository(store),
		}, nil
	}

	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RegisterPoolMetrics(reg, pool, handler.ServiceName); err != nil {
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, a.logger)
	}

	h.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})

	return &repositories{
		accounts: postgres.NewAccountRepository(pool),
		channels: postgres.NewChannelRepository(pool),
		history:  postgres.NewHistoryRepository(pool),
	}, nil
}

// initLimiter connects to Redis for login throttling. Logins stay available
// without Redis, so a connection failure only disables the limiter.
func (a *App) initLimiter(ctx context.Context, h *health.Handler) service.LoginLimiter {
	cfg := a.cfg
	client, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: cfg.RedisPoolSize,
		Timeout:  cfg.RedisTimeout,
	})
	if err != nil {
		a.logger.Warn("redis unavailable, login rate limiting disabled", slog.String("error", err.Error()))
		return nil
	}
	a.redis = client
	h.RegisterNonCritical("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	a.logger.Info("connected to Redis", slog.String("addr", client.Options().Addr))

	return redisrepo.NewLoginLimiter(client, cfg.LoginMaxAttempts, cfg.LoginWindow)
}

func (a *App) initMedia(ctx context.Context, reg prometheus.Registerer, h *health.Handler) (service.MediaStorage, error) {
	cfg := a.cfg
	if cfg.MediaDriver == "memory" {
		a.logger.Warn("using in-memory media storage, uploads are lost on restart")
		return memstorage.New(fmt.Sprintf("http://localhost:%d/media", cfg.HTTPPort)), nil
	}

	store, err := s3.New(ctx, s3.Config{
		Endpoint:      cfg.S3Endpoint,
		Region:        cfg.S3Region,
		Bucket:        cfg.S3Bucket,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		PublicBaseURL: cfg.S3PublicBaseURL,
		UsePathStyle:  cfg.S3UsePathStyle,
	}, a.logger, reg)
	if err != nil {
		return nil, fmt.Errorf("init s3 media storage: %w", err)
	}
	h.RegisterNonCritical("media", func(context.Context) error {
		if store.State() == gobreaker.StateOpen {
			return s3.ErrCircuitOpen
		}
		return nil
	})
	a.logger.Info("s3 media storage initialized",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("base_url", store.BaseURL()),
	)
	return store, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.closeAll()
		return err
	}

	return a.Shutdown()
}

// Shutdown stops components in reverse start order: the HTTP server drains
// first, then spans are flushed, then Kafka, Redis and PostgreSQL close.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.closeAll(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeAll releases everything but the HTTP server. It is safe on a
// partially initialized App.
func (a *App) closeAll() error {
	var errs []error

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.tracerShutdown = nil
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.producer = nil
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.redis = nil
	}

	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}

	return errors.Join(errs...)
}
