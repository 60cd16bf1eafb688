package repositories

import (
	"context"
	"time"
)

type CacheRepositoryInterface interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, key ...string) error

	// Операции над ограниченным списком последних уведомлений:
	// новое значение кладётся в голову, хвост обрезается до limit.
	RecentPush(ctx context.Context, key string, value interface{}, limit int) error
	RecentRange(ctx context.Context, key string, n int) ([]string, error)
}
