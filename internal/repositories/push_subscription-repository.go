package repositories

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"notification-system/internal/entities"
	apperrors "notification-system/pkg/errors"
)

const (
	pushSubscriptionTable  = "push_subscriptions"
	pushSubscriptionFields = "id, user_id, endpoint, p256dh, auth, user_agent, created_at, revoked_at"
)

type PushSubscriptionRepositoryInterface interface {
	Upsert(ctx context.Context, s entities.PushSubscription) error
	Revoke(ctx context.Context, userID uint64, endpoint string) error
	FindActiveByUser(ctx context.Context, userID uint64) ([]*entities.PushSubscription, error)
}

type pushSubscriptionRepository struct {
	storage querier
	logger  *zap.Logger
}

func NewPushSubscriptionRepository(storage *pgxpool.Pool, logger *zap.Logger) PushSubscriptionRepositoryInterface {
	return &pushSubscriptionRepository{storage: storage, logger: logger}
}

// Upsert регистрирует подписку. Браузер может ротировать подписку для
// того же endpoint — тогда ключи обновляются, а отзыв снимается.
func (r *pushSubscriptionRepository) Upsert(ctx context.Context, s entities.PushSubscription) error {
	query, args, err := psql.Insert(pushSubscriptionTable).
		Columns("user_id", "endpoint", "p256dh", "auth", "user_agent", "created_at").
		Values(s.UserID, s.Endpoint, s.P256dh, s.Auth, s.UserAgent, s.CreatedAt).
		Suffix("ON CONFLICT (user_id, endpoint) DO UPDATE SET p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth, revoked_at = NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка построения запроса: %w", err)
	}

	if _, err = r.storage.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("ошибка вставки в push_subscriptions: %w", err)
	}
	return nil
}

func (r *pushSubscriptionRepository) Revoke(ctx context.Context, userID uint64, endpoint string) error {
	query, args, err := psql.Update(pushSubscriptionTable).
		Set("revoked_at", time.Now().UTC()).
		Where(sq.Eq{"user_id": userID, "endpoint": endpoint}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка построения запроса: %w", err)
	}

	tag, err := r.storage.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка отзыва подписки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *pushSubscriptionRepository) FindActiveByUser(ctx context.Context, userID uint64) ([]*entities.PushSubscription, error) {
	query, args, err := psql.Select(pushSubscriptionFields).
		From(pushSubscriptionTable).
		Where(sq.Eq{"user_id": userID}).
		Where("revoked_at IS NULL").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка построения запроса: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки из push_subscriptions: %w", err)
	}
	defer rows.Close()

	var result []*entities.PushSubscription
	for rows.Next() {
		var s entities.PushSubscription
		err := rows.Scan(
			&s.ID, &s.UserID, &s.Endpoint, &s.P256dh, &s.Auth,
			&s.UserAgent, &s.CreatedAt, &s.RevokedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования push_subscriptions: %w", err)
		}
		result = append(result, &s)
	}
	return result, rows.Err()
}
