package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/gorm"

	cacheadapter "github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/adapters/cache"
	eventadapter "github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/adapters/events"
	grpcadapter "github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/adapters/grpc"
	httpadapter "github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/adapters/http"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/adapters/memory"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/adapters/postgres"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/adapters/security"
	stripeadapter "github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/adapters/stripe"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	service    *application.Service
	httpServer *http.Server
	grpcServer *grpc.Server
	outbox     *eventadapter.OutboxRelay
	cleanupFn  func(context.Context)
}

// stores is the Ledger Store selected for this process.
type stores struct {
	invoices       ports.InvoiceRepository
	paymentIntents ports.PaymentIntentRepository
	clients        ports.ClientRepository
	services       ports.ServiceRepository
	outbox         ports.OutboxRepository
	eventDedup     ports.EventDedupRepository

	sqlDB *sql.DB
	redis *redis.Client
}

func (s stores) ready(ctx context.Context) error {
	if s.sqlDB != nil {
		if err := s.sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (s stores) close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.sqlDB != nil {
		_ = s.sqlDB.Close()
	}
}

// NewLogger builds the JSON logger every entrypoint installs as the default.
func NewLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	return logger
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := NewLogger().With("service", cfg.ServiceID)
	logger.Info("bootstrapping m46 invoice reconciliation service", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	publisher, closePublisher, err := newPublisher(cfg, logger)
	if err != nil {
		st.close()
		return nil, err
	}

	if cfg.StripeSecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY not set; payment intent creation will report a configuration error")
	}
	if cfg.StripeWebhookSecret == "" {
		logger.Warn("STRIPE_WEBHOOK_SECRET not set; webhooks will report a configuration error")
	}
	gateway := stripeadapter.NewGateway(stripeadapter.GatewayConfig{
		SecretKey: cfg.StripeSecretKey,
		APIURL:    cfg.StripeAPIURL,
	})

	var tokens ports.TokenVerifier
	if cfg.JWTSecret != "" {
		verifier, err := security.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
		if err != nil {
			closePublisher()
			st.close()
			return nil, fmt.Errorf("init jwt verifier: %w", err)
		}
		tokens = verifier
	} else {
		logger.Warn("JWT_SECRET not set; /v1 routes will report a configuration error")
	}

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:                cfg.ServiceID,
			DefaultCurrency:            cfg.DefaultCurrency,
			WebhookTimeout:             cfg.WebhookTimeout,
			PaymentMethodLookupTimeout: cfg.PaymentMethodLookupTTL,
			EventDedupTTL:              cfg.EventDedupTTL,
		},
		Invoices:       st.invoices,
		PaymentIntents: st.paymentIntents,
		Clients:        st.clients,
		Catalog:        st.services,
		Outbox:         st.outbox,
		EventDedup:     st.eventDedup,
		Gateway:        gateway,
		Webhooks:       stripeadapter.NewWebhookVerifier(cfg.StripeWebhookSecret, cfg.WebhookTolerance),
	})

	handler := httpadapter.NewHandler(svc, tokens, st.ready)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           httpadapter.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewInvoicingInternalServer(svc))

	outbox := eventadapter.NewOutboxRelay(logger, st.outbox, publisher, eventadapter.RelayConfig{
		Interval:   cfg.OutboxPollInterval,
		BatchSize:  cfg.OutboxBatchSize,
		ClaimTTL:   cfg.OutboxClaimTTL,
		MaxRetries: cfg.OutboxMaxRetries,
	})

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		service:    svc,
		httpServer: httpServer,
		grpcServer: grpcServer,
		outbox:     outbox,
		cleanupFn: func(context.Context) {
			closePublisher()
			st.close()
		},
	}, nil
}

// Service exposes the wired application service to operator tooling.
func (r *Runtime) Service() *application.Service {
	return r.service
}

// Close releases store and broker connections for callers that never run a loop.
func (r *Runtime) Close(ctx context.Context) {
	r.cleanupFn(ctx)
}

func openStores(ctx context.Context, cfg Config, logger *slog.Logger) (stores, error) {
	var st stores
	if cfg.DatabaseURL == "" {
		logger.Warn("DB_URL not set; using the in-memory ledger store")
		repos := memory.NewRepositories()
		st = stores{
			invoices:       repos.Invoices,
			paymentIntents: repos.PaymentIntents,
			clients:        repos.Clients,
			services:       repos.Services,
			outbox:         repos.Outbox,
			eventDedup:     repos.EventDedup,
		}
	} else {
		db, sqlDB, err := connectLedger(ctx, cfg)
		if err != nil {
			return stores{}, err
		}
		if err := postgres.RunMigrations(ctx, db); err != nil {
			_ = sqlDB.Close()
			return stores{}, fmt.Errorf("run migrations: %w", err)
		}
		repos := postgres.NewRepositories(db)
		st = stores{
			invoices:       repos.Invoices,
			paymentIntents: repos.PaymentIntents,
			clients:        repos.Clients,
			services:       repos.Services,
			outbox:         repos.Outbox,
			eventDedup:     repos.EventDedup,
			sqlDB:          sqlDB,
		}
	}

	if cfg.RedisURL != "" {
		client, err := cacheadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			st.close()
			return stores{}, fmt.Errorf("connect redis: %w", err)
		}
		st.redis = client
		st.eventDedup = cacheadapter.NewRedisEventDedupStore(client)
	}
	return st, nil
}

func connectLedger(ctx context.Context, cfg Config) (*gorm.DB, *sql.DB, error) {
	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("gorm sql db: %w", err)
	}
	return db, sqlDB, nil
}

func newPublisher(cfg Config, logger *slog.Logger) (ports.EventPublisher, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("KAFKA_BROKERS not set; outbox events are only logged")
		return eventadapter.NewLoggingPublisher(logger), func() {}, nil
	}
	publisher, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicPrefix, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("init kafka publisher: %w", err)
	}
	return publisher, func() { _ = publisher.Close() }, nil
}

// Migrate applies the embedded schema without starting any server.
func Migrate(ctx context.Context, configPath string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("missing DB_URL/POSTGRES_URL")
	}
	db, sqlDB, err := connectLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	if err := postgres.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		r.cleanupFn(ctx)
		return fmt.Errorf("listen gRPC: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", lis.Addr().String())
		if err := r.grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	if r.cfg.DatabaseURL == "" {
		// The in-memory outbox is only visible to this process.
		go func() {
			r.logger.Info("in-process outbox relay started")
			_ = r.outbox.Run(ctx)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		r.logger.Error("server failure", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return runErr
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("outbox relay started")
	err := r.outbox.Run(ctx)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
