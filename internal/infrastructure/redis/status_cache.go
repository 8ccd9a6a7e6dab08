package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/E-ugine/kyc-verification-backend/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	statusKeyPrefix = "kyc:status:"
	DefaultTTL      = 5 * time.Minute
)

// StatusCache keeps status views of decided applications keyed by id number
// so public status polling does not hit the repository on every request.
type StatusCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewStatusCache(client redis.Cmdable, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &StatusCache{client: client, ttl: ttl}
}

func statusKey(idNumber string) string { return statusKeyPrefix + idNumber }

func (c *StatusCache) Get(ctx context.Context, idNumber string) (domain.StatusView, bool, error) {
	raw, err := c.client.Get(ctx, statusKey(idNumber)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.StatusView{}, false, nil
	}
	if err != nil {
		return domain.StatusView{}, false, err
	}
	var view domain.StatusView
	if err := json.Unmarshal(raw, &view); err != nil || view.IDNumber != idNumber {
		// A stale or foreign payload is treated as a miss and dropped.
		_ = c.client.Del(ctx, statusKey(idNumber)).Err()
		return domain.StatusView{}, false, nil
	}
	return view, true, nil
}

func (c *StatusCache) Set(ctx context.Context, view domain.StatusView) error {
	raw, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, statusKey(view.IDNumber), raw, c.ttl).Err()
}

func (c *StatusCache) Invalidate(ctx context.Context, idNumber string) error {
	return c.client.Del(ctx, statusKey(idNumber)).Err()
}
