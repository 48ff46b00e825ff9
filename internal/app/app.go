// Package app собирает витрину: хранилища, сервисы, HTTP API, воркеры и probes.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/storefront/internal/auth"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/httpapi"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// App: собранное приложение.
type App struct {
	cfg      Config
	logger   *log.Entry
	registry *prometheus.Registry
	deps     *runtimeDependencies
	producer *kafka.Producer

	api     *httpapi.Server
	health  *health.Handler
	outbox  *outbox.Worker
	cleanup *idempotency.CleanupWorker
}

// New инициализирует хранилища и сервисы, но не открывает listeners.
func New(ctx context.Context, cfg Config, logger *log.Entry) (*App, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.JWTSecret == DefaultJWTSecret {
		logger.Warn("using default jwt secret, set STOREFRONT_JWT_SECRET outside local development")
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		deps:     deps,
		health:   health.NewHandler(version.Current().Version),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for name, checker := range deps.checkers {
		a.health.RegisterChecker(name, checker)
	}

	if err := a.seed(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	if err := a.initServices(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	if err := a.initWorkers(); err != nil {
		_ = a.Close()
		return nil, err
	}

	return a, nil
}

func (a *App) seed(ctx context.Context) error {
	if a.cfg.SeedUsers {
		if err := seedUsers(ctx, a.deps.users); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) initServices(ctx context.Context) error {
	checkoutMetrics := metrics.NewCheckoutMetricsWithRegisterer(a.registry)

	catalogSvc := catalog.NewService(a.deps.products, a.logger.WithField("component", "catalog"))
	if a.cfg.SeedCatalog {
		seeded, err := catalogSvc.SeedIfEmpty(ctx)
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		if seeded > 0 {
			a.logger.WithField("products", seeded).Info("catalog seeded")
		}
	}

	cartSvc := cart.NewService(a.deps.carts, a.deps.products, a.logger.WithField("component", "cart"),
		cart.WithMetrics(checkoutMetrics),
	)
	checkoutSvc := checkout.NewService(checkout.Dependencies{
		Carts:    a.deps.carts,
		Products: a.deps.products,
		Orders:   a.deps.orders,
		Users:    a.deps.users,
		Timeline: a.deps.timeline,
		Outbox:   a.deps.outbox,
		Placer:   a.deps.placer,
	}, a.logger.WithField("component", "checkout"),
		checkout.WithMetrics(checkoutMetrics),
		checkout.WithEnforcedTransitions(a.cfg.EnforceTransitions),
	)

	authenticator, err := auth.NewAuthenticator(a.cfg.JWTSecret, a.deps.users)
	if err != nil {
		return err
	}

	a.api = httpapi.NewServer(httpapi.Dependencies{
		Catalog:     catalogSvc,
		Carts:       cartSvc,
		Checkout:    checkoutSvc,
		Auth:        authenticator,
		Idempotency: a.deps.idempotency,
	}, a.logger.WithField("component", "http-api"),
		httpapi.WithMetrics(metrics.NewHTTPMetrics(a.registry)),
		httpapi.WithVersion(version.Current().Version),
	)
	return nil
}

func (a *App) initWorkers() error {
	publisher, dlqPublisher, err := a.initPublishers()
	if err != nil {
		return err
	}

	a.outbox = outbox.NewWorker(a.deps.outbox, publisher,
		outbox.WithLogger(a.logger.WithField("component", "outbox-worker")),
		outbox.WithMetrics(metrics.NewOutboxMetrics(a.registry)),
		outbox.WithDLQPublisher(dlqPublisher),
		outbox.WithPollInterval(a.cfg.OutboxPollInterval),
		outbox.WithBatchSize(a.cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(a.cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(a.cfg.OutboxRetryDelay),
	)
	a.cleanup = idempotency.NewCleanupWorker(a.deps.idempotency,
		idempotency.WithLogger(a.logger.WithField("component", "idempotency-cleanup-worker")),
		idempotency.WithMetrics(metrics.NewCleanupMetrics(a.registry)),
		idempotency.WithInterval(a.cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(a.cfg.IdempotencyCleanupBatchSize),
	)
	return nil
}

// initPublishers выбирает Kafka, если заданы брокеры, иначе события пишутся в лог.
func (a *App) initPublishers() (domain.OutboxPublisher, domain.OutboxPublisher, error) {
	if len(a.cfg.KafkaBrokers) == 0 {
		a.logger.Info("kafka brokers are not configured, outbox events go to the log")
		return outbox.NewLogPublisher(a.logger.WithField("component", "outbox-log-publisher")), nil, nil
	}

	producer, err := kafka.NewProducer(a.cfg.KafkaBrokers, a.cfg.KafkaClientID)
	if err != nil {
		return nil, nil, err
	}
	a.producer = producer
	a.logger.WithField("brokers", a.cfg.KafkaBrokers).Info("kafka producer initialized")

	dlqTopic := a.cfg.KafkaDLQTopic
	if dlqTopic == "" {
		dlqTopic = kafka.TopicDeadLetterQueue
	}
	return kafka.NewOutboxPublisher(producer, a.cfg.KafkaTopic), kafka.NewOutboxPublisher(producer, dlqTopic), nil
}

// Handler возвращает HTTP API.
func (a *App) Handler() http.Handler {
	return a.api.Handler()
}

// OpsHandler возвращает обработчик /metrics и probes.
func (a *App) OpsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
	mux.Handle("/healthz", a.health)
	mux.HandleFunc("/livez", health.LivenessHandler)
	mux.HandleFunc("/readyz", a.health.ReadinessHandler)
	return mux
}

// Close закрывает producer и подключения к хранилищам.
func (a *App) Close() error {
	var errs []error
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, err)
		}
		a.producer = nil
	}
	if a.deps != nil {
		if err := a.deps.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run запускает приложение и блокируется до отмены ctx или ошибки listener.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	a, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.WithError(err).Warn("close app resources")
		}
	}()

	return a.Serve(ctx)
}

// Serve поднимает listeners и воркеры.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		a.outbox.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		a.cleanup.Run(groupCtx)
		return nil
	})

	apiSrv := &http.Server{Addr: a.cfg.HTTPAddr, Handler: a.Handler(), ReadHeaderTimeout: 10 * time.Second}
	group.Go(func() error {
		return a.serveHTTP(groupCtx, apiSrv, "api")
	})

	if a.cfg.MetricsAddr != "" {
		opsSrv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: a.OpsHandler(), ReadHeaderTimeout: 10 * time.Second}
		group.Go(func() error {
			return a.serveHTTP(groupCtx, opsSrv, "metrics")
		})
	}

	if a.cfg.GRPCAddr != "" {
		group.Go(func() error {
			return a.serveGRPCHealth(groupCtx)
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (a *App) serveHTTP(ctx context.Context, srv *http.Server, name string) error {
	logger := a.logger.WithFields(log.Fields{"server": name, "addr": srv.Addr})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("http shutdown with error")
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s server: %w", name, err)
	}
}

// serveGRPCHealth отдаёт grpc.health.v1 для оркестраторов, которые пробуют gRPC.
func (a *App) serveGRPCHealth(ctx context.Context) error {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := a.registry.Register(grpcMetrics); err != nil {
		return fmt.Errorf("register grpc metrics: %w", err)
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)
	healthServer := grpchealth.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	reflection.Register(server)
	grpcMetrics.InitializeMetrics(server)

	lis, err := net.Listen("tcp", a.cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", a.cfg.GRPCAddr, err)
	}

	go a.syncGRPCHealth(ctx, healthServer)

	errCh := make(chan error, 1)
	go func() {
		a.logger.WithField("addr", a.cfg.GRPCAddr).Info("grpc health server listening")
		errCh <- server.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		healthServer.Shutdown()
		stopped := make(chan struct{})
		go func() {
			server.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(a.cfg.ShutdownTimeout):
			a.logger.Warn("grpc graceful stop timed out, forcing stop")
			server.Stop()
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("grpc server: %w", err)
	}
}

// syncGRPCHealth переносит результат health-проверок в статус gRPC health.
func (a *App) syncGRPCHealth(ctx context.Context, server *grpchealth.Server) {
	update := func() {
		status := healthpb.HealthCheckResponse_SERVING
		if a.health.Evaluate(ctx).Status == health.StatusUnhealthy {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		server.SetServingStatus("", status)
	}

	update()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}
