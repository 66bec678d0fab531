// Server runs the OTP JSON API and the gRPC health service.
// Without DATABASE_URL it serves from in-memory stores seeded with demo accounts (development only).
package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	accountdomain "otp-verification-service/internal/account/domain"
	accountrepo "otp-verification-service/internal/account/repository"
	authhandler "otp-verification-service/internal/auth/handler"
	authservice "otp-verification-service/internal/auth/service"
	"otp-verification-service/internal/config"
	"otp-verification-service/internal/db"
	"otp-verification-service/internal/health"
	"otp-verification-service/internal/logging"
	"otp-verification-service/internal/notify"
	otprepo "otp-verification-service/internal/otp/repository"
	otpservice "otp-verification-service/internal/otp/service"
	"otp-verification-service/internal/policy/engine"
	"otp-verification-service/internal/security"
	"otp-verification-service/internal/server"
	"otp-verification-service/internal/telemetry"
	otelsetup "otp-verification-service/internal/telemetry/otel"
	"otp-verification-service/internal/telemetry/producer"
)

const shutdownTimeout = 15 * time.Second

// demoAccounts back the in-memory account directory.
var demoAccounts = []accountdomain.Account{
	{ID: "demo-001", Username: "demo", Email: "demo@example.com", StatusCode: accountdomain.StatusActive, StatusName: "Active"},
	{ID: "demo-002", Username: "suspended", Email: "suspended@example.com", StatusCode: "SUS", StatusName: "Suspended"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.NewLogger(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, ServiceName: cfg.OTelServiceName})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, cfg.OTelServiceName, cfg.OTLPInsecure)
	if err != nil {
		return err
	}
	providers.SetGlobal()

	var (
		challenges otprepo.Repository
		accounts   authservice.AccountDirectory
		pinger     health.Pinger
	)
	if cfg.DatabaseURL != "" {
		openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		conn, err := db.Open(openCtx, cfg.DatabaseURL, db.PoolConfig{MaxOpenConns: cfg.DBMaxOpenConns, MaxIdleConns: cfg.DBMaxIdleConns})
		cancel()
		if err != nil {
			return err
		}
		defer conn.Close()
		challenges = otprepo.NewPostgresRepository(conn, cfg.StoreOpTimeout())
		accounts = accountrepo.NewPostgresRepository(conn, cfg.StoreOpTimeout())
		pinger = conn
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory stores")
		challenges = otprepo.NewMemoryRepository()
		accounts = accountrepo.NewMemoryRepository(demoAccounts...)
	}

	admission, err := engine.NewOPAAdmission(ctx, "")
	if err != nil {
		return err
	}

	metrics, err := otpservice.NewMetrics(providers.MeterProvider.Meter("otp-verification-service"))
	if err != nil {
		return err
	}
	policy := cfg.OTPPolicy()
	issuer := otpservice.NewIssuer(challenges, policy, metrics, logger)
	verifier := otpservice.NewVerifier(challenges, policy, metrics, logger)
	reaper := otpservice.NewReaper(challenges, policy, metrics, logger)
	if err := reaper.Start(); err != nil {
		return err
	}
	defer reaper.Stop()

	var (
		notifier notify.Notifier
		devCodes authhandler.DevCodes
	)
	if cfg.OTPReturnToClient {
		logger.Warn("dev OTP mode enabled; codes are served at /dev/otp/{processId} and not emailed")
		store := notify.NewDevStore()
		notifier, devCodes = store, store
	} else {
		if cfg.SMTPHost == "" {
			logger.Warn("SMTP_HOST not set; every otp delivery will fail")
		}
		notifier = notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom, logger)
	}

	var grants authservice.GrantMinter
	if cfg.JWTPrivateKey != "" && cfg.JWTPublicKey != "" {
		priv, pub, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
		if err != nil {
			return err
		}
		grants = security.NewGrantIssuer(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.GrantTTL())
	} else {
		logger.Warn("JWT keys not set; reset verifications will not mint grants")
	}

	kafkaProducer := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	var events telemetry.EventEmitter = otelsetup.NewEventEmitter(providers.LoggerProvider)
	if kafkaProducer != nil {
		events = telemetry.Multi(events, kafkaProducer)
		logger.Info("telemetry events published to kafka", zap.String("topic", cfg.TelemetryKafkaTopic))
	}

	svc := authservice.NewOTPAuthService(accounts, admission, issuer, verifier, notifier, grants, events, policy.TTL, logger)
	checker := health.NewChecker(pinger, admission)

	proxies, err := authhandler.ParseTrustedProxies(cfg.TrustedProxyList())
	if err != nil {
		return err
	}
	limiter := authhandler.NewRateLimiter(cfg.AuthRateLimitMaxRequests, cfg.AuthRateLimitWindow())
	if limiter == nil {
		logger.Warn("auth rate limiter disabled")
	}
	handler := authhandler.NewHandler(svc, devCodes, checker, logger,
		authhandler.WithTrustedProxies(proxies),
		authhandler.WithRateLimiter(limiter),
	)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}
	grpcSrv := server.NewGRPCServer(server.Deps{Readiness: checker, Logger: logger, Reflection: cfg.Env != "production"})

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("grpc server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	var serveErr error
	select {
	case <-quit:
	case serveErr = <-errCh:
		logger.Error("server failed", zap.Error(serveErr))
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	grpcSrv.GracefulStop()

	// Let in-flight async telemetry emits finish before the exporters close.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			logger.Warn("kafka producer close", zap.Error(err))
		}
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("otel shutdown", zap.Error(err))
	}
	logger.Info("stopped")
	return serveErr
}
