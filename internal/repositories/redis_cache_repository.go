package repositories

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCacheRepository - реализация кеша на Redis.
type RedisCacheRepository struct {
	client *redis.Client
}

func NewRedisCacheRepository(client *redis.Client) CacheRepositoryInterface {
	return &RedisCacheRepository{client: client}
}

func (r *RedisCacheRepository) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

func (r *RedisCacheRepository) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

func (r *RedisCacheRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

// RecentPush кладёт значение в голову списка и обрезает его до limit.
func (r *RedisCacheRepository) RecentPush(ctx context.Context, key string, value interface{}, limit int) error {
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, value)
	pipe.LTrim(ctx, key, 0, int64(limit-1))
	_, err := pipe.Exec(ctx)
	return err
}

// RecentRange возвращает до n значений с головы списка (новые первыми).
func (r *RedisCacheRepository) RecentRange(ctx context.Context, key string, n int) ([]string, error) {
	return r.client.LRange(ctx, key, 0, int64(n-1)).Result()
}
