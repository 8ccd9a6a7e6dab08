package main

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/labstack/echo/v4"

	adaptermiddleware "github.com/E-ugine/kyc-verification-backend/internal/adapters/http/middleware"
	adapterlogger "github.com/E-ugine/kyc-verification-backend/internal/adapters/logger"
	"github.com/E-ugine/kyc-verification-backend/internal/adapters/metrics"
	"github.com/E-ugine/kyc-verification-backend/internal/application"
	"github.com/E-ugine/kyc-verification-backend/internal/config"
	"github.com/E-ugine/kyc-verification-backend/internal/infrastructure"
	"github.com/E-ugine/kyc-verification-backend/internal/infrastructure/auth"
	"github.com/E-ugine/kyc-verification-backend/internal/infrastructure/documents"
	httpiface "github.com/E-ugine/kyc-verification-backend/internal/interfaces/http"
	"github.com/E-ugine/kyc-verification-backend/internal/platform/lambda"
)

const serviceName = "kyc-verification-backend"

func main() {
	cfg, err := config.Load()
	if err != nil {
		adapterlogger.New("info", serviceName).Error(context.Background(), "configuration error", "error", err)
		os.Exit(1)
	}
	logger := adapterlogger.New(cfg.LogLevel, serviceName)
	xray.Configure(xray.Config{LogLevel: "error"})

	if err := run(cfg, logger); err != nil {
		logger.Error(context.Background(), "service exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *adapterlogger.SlogLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, err := infrastructure.OpenStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.StorageBackend, err)
	}
	defer func() {
		if err := storage.Close(); err != nil {
			logger.Warn(context.Background(), "failed to close storage", "error", err)
		}
	}()

	docs, err := documents.NewFileStore(cfg.MediaRoot, cfg.MaxUploadBytes)
	if err != nil {
		return fmt.Errorf("document store: %w", err)
	}
	creds, err := auth.NewAdminCredentials(cfg.AdminUsername, cfg.AdminPasswordHash, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("admin credentials: %w", err)
	}
	issuer, err := auth.NewJWTIssuer(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return fmt.Errorf("jwt issuer: %w", err)
	}

	prom := metrics.New()
	opts := []application.Option{application.WithMetrics(prom)}
	if storage.Cache != nil {
		opts = append(opts, application.WithStatusCache(storage.Cache))
	}
	kycSvc := application.NewKYCService(storage.Repository, docs, logger, opts...)
	authSvc := application.NewAuthService(creds, issuer, cfg.AccessTokenTTL, logger, prom)

	e := httpiface.NewRouter(httpiface.Handlers{
		KYC:    httpiface.NewKYCHandler(kycSvc, logger),
		Admin:  httpiface.NewAdminHandler(kycSvc, authSvc, logger),
		Media:  httpiface.NewMediaHandler(docs),
		System: httpiface.NewSystemHandler(kycSvc, logger),
	}, httpiface.Middleware{
		XRay:          adaptermiddleware.XRayMiddleware("kyc-http"),
		RequestLogger: adaptermiddleware.RequestLogger(logger),
		Metrics:       prom.Middleware(),
		RequireAdmin:  adaptermiddleware.RequireAdmin(authSvc),
		LoginLimit:    adaptermiddleware.NewPerMinuteLimiter(cfg.LoginRatePerMinute, logger).Middleware(),
	}, httpiface.Options{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		MetricsHandler:     prom.Handler(),
	})

	if cfg.RunMode == config.RunModeLambda {
		logger.Info(ctx, "starting lambda handler", "backend", cfg.StorageBackend)
		lambda.Start(e)
		return nil
	}
	return serve(ctx, e, cfg.Port, logger)
}

func serve(ctx context.Context, e *echo.Echo, port string, logger *adapterlogger.SlogLogger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "starting http server", "port", port)
		errCh <- e.Start(":" + port)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
