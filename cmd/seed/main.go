package main

import (
	"context"
	"flag"
	"os"

	adapterlogger "github.com/E-ugine/kyc-verification-backend/internal/adapters/logger"
	"github.com/E-ugine/kyc-verification-backend/internal/application"
	"github.com/E-ugine/kyc-verification-backend/internal/config"
	"github.com/E-ugine/kyc-verification-backend/internal/infrastructure"
	"github.com/E-ugine/kyc-verification-backend/internal/infrastructure/documents"
)

func main() {
	count := flag.Int("count", 50, "number of fake applications to create")
	flag.Parse()

	logger := adapterlogger.New("info", "kyc-seed")
	cfg, err := config.Load()
	if err != nil {
		logger.Error(context.Background(), "configuration error", "error", err)
		os.Exit(1)
	}
	ctx := context.Background()

	storage, err := infrastructure.OpenStorage(ctx, cfg)
	if err != nil {
		logger.Error(ctx, "failed to open storage", "error", err)
		os.Exit(1)
	}
	docs, err := documents.NewFileStore(cfg.MediaRoot, cfg.MaxUploadBytes)
	if err != nil {
		storage.Close()
		logger.Error(ctx, "failed to initialize document store", "error", err)
		os.Exit(1)
	}
	svc := application.NewKYCService(storage.Repository, docs, logger)

	created, err := newSeeder(svc, nil).Seed(ctx, *count)
	closeErr := storage.Close()
	if err != nil {
		logger.Error(ctx, "seeding stopped", "created", created, "error", err)
		os.Exit(1)
	}
	if closeErr != nil {
		logger.Warn(ctx, "failed to close storage", "error", closeErr)
	}
	logger.Info(ctx, "created fake kyc applications", "count", created)
}
