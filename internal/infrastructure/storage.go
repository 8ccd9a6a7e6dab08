package infrastructure

import (
	"context"
	"errors"
	"fmt"

	"github.com/E-ugine/kyc-verification-backend/internal/config"
	"github.com/E-ugine/kyc-verification-backend/internal/infrastructure/dynamodb"
	"github.com/E-ugine/kyc-verification-backend/internal/infrastructure/memory"
	"github.com/E-ugine/kyc-verification-backend/internal/infrastructure/postgres"
	"github.com/E-ugine/kyc-verification-backend/internal/infrastructure/redis"
	"github.com/E-ugine/kyc-verification-backend/internal/ports"
)

// Storage bundles the repository and optional status cache selected by
// configuration, plus the handles to release on shutdown.
type Storage struct {
	Repository ports.ApplicationRepository
	Cache      ports.StatusCache
	closers    []func() error
}

func (s *Storage) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

func OpenStorage(ctx context.Context, cfg config.Config) (*Storage, error) {
	s := &Storage{}
	switch cfg.StorageBackend {
	case config.BackendDynamoDB:
		client, err := dynamodb.NewClient(ctx, cfg.Region, cfg.TableName, cfg.DynamoDBEndpoint)
		if err != nil {
			return nil, fmt.Errorf("dynamodb client: %w", err)
		}
		s.Repository = dynamodb.NewApplicationRepository(client)
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		repo := postgres.NewApplicationRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		s.Repository = repo
	case config.BackendMemory:
		s.Repository = memory.NewApplicationRepository()
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	client, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		s.Close()
		return nil, err
	}
	if client != nil {
		s.closers = append(s.closers, client.Close)
		s.Cache = redis.NewStatusCache(client.Client, cfg.StatusCacheTTL)
	}
	return s, nil
}
