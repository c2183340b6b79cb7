package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/marketplace/internal/auth"
	"github.com/utafrali/marketplace/internal/config"
	"github.com/utafrali/marketplace/internal/event"
	handler "github.com/utafrali/marketplace/internal/handler/http"
	"github.com/utafrali/marketplace/internal/media"
	"github.com/utafrali/marketplace/internal/notify"
	"github.com/utafrali/marketplace/internal/payment"
	"github.com/utafrali/marketplace/internal/search"
	"github.com/utafrali/marketplace/internal/service"
	"github.com/utafrali/marketplace/pkg/breaker"
	"github.com/utafrali/marketplace/pkg/database"
	"github.com/utafrali/marketplace/pkg/health"
	"github.com/utafrali/marketplace/pkg/httpclient"
	pkgkafka "github.com/utafrali/marketplace/pkg/kafka"
	"github.com/utafrali/marketplace/pkg/middleware"
	"github.com/utafrali/marketplace/pkg/tracing"
)

const serviceName = "marketplace"

// processedEventTTL bounds how long consumed event ids are remembered for
// duplicate suppression.
const processedEventTTL = 24 * time.Hour

// App wires together all dependencies and runs the marketplace server.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	store          *Store
	redis          *redis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumer       *pkgkafka.Consumer
	authLimiter    *middleware.IPRateLimiter
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.closeResources()
		}
	}()

	tracerShutdown, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.store = store
	if cfg.RunMigrationsOnStart {
		applied, err := store.Migrate(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info("store migrations completed",
			slog.String("driver", store.Driver),
			slog.Int("applied", len(applied)),
		)
	}

	healthHandler := health.NewHandler(2 * time.Second)
	healthHandler.RegisterCritical(store.Driver, store.Ping)

	// Login throttle.
	var throttle auth.LoginThrottle = auth.NoopThrottle{}
	if cfg.RedisEnabled {
		client, err := database.NewRedisClient(ctx, database.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		throttle = auth.NewRedisThrottle(client, auth.ThrottleConfig{
			MaxAttempts: cfg.LoginMaxAttempts,
			Window:      cfg.LoginAttemptWindow,
			Cooldown:    cfg.LoginCooldown,
		})
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		logger.Info("login throttle backed by redis", slog.String("addr", cfg.RedisAddr))
	}

	// Notifications.
	sender, err := newSender(cfg, logger, healthHandler)
	if err != nil {
		return nil, err
	}
	worker := notify.NewWorker(sender, store.Users, logger)

	// Events: Kafka when enabled, otherwise delivered in-process.
	var publisher event.Publisher
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.ProducerConfig{Brokers: cfg.KafkaBrokers}, logger)
		a.dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
		a.consumer = pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaConsumerGroup,
			Topics:  worker.Topics(),
		}, pkgkafka.IdempotentHandler(pkgkafka.NewMemoryIdempotencyStore(processedEventTTL), worker.Handle, logger), a.dlq, logger)
		publisher = a.producer
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		local := event.NewLocalPublisher(logger)
		worker.Subscribe(local)
		publisher = local
	}
	events := event.NewEmitter(publisher, logger)

	transport := httpclient.NewTransport(httpclient.DefaultConfig())

	// Search index.
	var index search.Index = search.NoopIndex{}
	if cfg.SearchEnabled {
		es, err := search.NewElasticsearchIndex(ctx, cfg.ElasticsearchURL, cfg.ElasticsearchIndex, transport, logger)
		if err != nil {
			return nil, fmt.Errorf("init search index: %w", err)
		}
		index = es
		healthHandler.RegisterNonCritical("elasticsearch", es.Ping)
	}

	// Media storage.
	var storage media.Storage = media.NewMemoryStorage(cfg.MediaPublicURL)
	if cfg.MediaBackend == config.MediaMinIO {
		minio, err := media.NewMinIOStorage(ctx, media.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
			PublicURL: cfg.MediaPublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("init media storage: %w", err)
		}
		storage = minio
		healthHandler.RegisterNonCritical("minio", minio.Ping)
	}

	// Payments.
	var (
		provider payment.Provider
		webhooks payment.WebhookVerifier
	)
	if cfg.PaymentProvider == config.PaymentStripe {
		stripe := payment.NewStripeProvider(payment.StripeConfig{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
		}, httpclient.New(httpclient.DefaultConfig()))
		provider, webhooks = stripe, stripe
	} else {
		mock := &payment.MockProvider{}
		provider, webhooks = mock, mock
	}

	// Build the dependency graph.
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	svc := handler.Services{
		Auth: service.NewAuthService(store.Users, auth.NewBcryptHasher(cfg.BcryptCost), jwtManager, events, logger, service.AuthOptions{
			Throttle:               throttle,
			AllowAdminRegistration: cfg.AllowAdminRegistration,
		}),
		Catalog:    service.NewCatalogService(store.Products, store.Categories, store.Reviews, index, events, logger),
		Categories: service.NewCategoryService(store.Categories, store.Products, logger),
		Orders:     service.NewOrderService(store.Orders, store.Products, store.Users, events, logger, cfg.OrderVerifyTotal),
		Reviews:    service.NewReviewService(store.Reviews, store.Products, store.Orders, store.Users, events, logger),
		Admin:      service.NewAdminService(store.Users, store.Products, store.Orders, index, events, logger),
		Payments:   payment.NewService(provider, breaker.DefaultConfig("payment"), logger),
		Webhooks:   webhooks,
		Media:      media.NewService(storage, cfg.MediaMaxUploadBytes, logger),
	}

	a.authLimiter = middleware.NewIPRateLimiter(cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst, 10*time.Minute)

	router := handler.NewRouter(svc, handler.RouterConfig{
		ServiceName: serviceName,
		Tokens:      jwtManager.Validator(),
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Environment:    cfg.Environment,
		},
		AuthLimiter: a.authLimiter,
		CacheMaxAge: 60,
	}, healthHandler, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ok = true
	return a, nil
}

func newSender(cfg *config.Config, logger *slog.Logger, healthHandler *health.Handler) (notify.Sender, error) {
	if !cfg.SMTPEnabled {
		return notify.NewLogSender(logger), nil
	}
	smtp, err := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	if err != nil {
		return nil, fmt.Errorf("init smtp sender: %w", err)
	}
	healthHandler.RegisterNonCritical("smtp", smtp.Ping)
	return smtp, nil
}

// Run starts the HTTP server and background workers, then blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go a.authLimiter.Run(ctx)

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Run(ctx); err != nil {
				a.logger.Error("kafka consumer error", slog.String("error", err.Error()))
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: the HTTP server drains
// in-flight requests, the tracer flushes their spans, then Kafka and the
// store are closed.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.tracerShutdown = nil
	}

	errs = append(errs, a.closeResources()...)

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeResources releases everything opened by NewApp. It is also used
// when NewApp fails halfway.
func (a *App) closeResources() []error {
	var errs []error
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("kafka dlq close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.store != nil {
		a.store.Close()
	}
	return errs
}
