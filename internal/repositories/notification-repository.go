package repositories

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"notification-system/internal/entities"
	apperrors "notification-system/pkg/errors"
)

const (
	notificationTable  = "notifications"
	notificationFields = `id, user_id, "type", title, message, priority, data, read, created_at`
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type NotificationRepositoryInterface interface {
	Create(ctx context.Context, n entities.Notification) error
	FindByID(ctx context.Context, userID uint64, id string) (*entities.Notification, error)
	GetRecentByUser(ctx context.Context, userID uint64, limit int) ([]*entities.Notification, error)
	GetAllByUser(ctx context.Context, userID uint64) ([]*entities.Notification, error)
	MarkRead(ctx context.Context, userID uint64, id string) error
}

type notificationRepository struct {
	storage querier
	logger  *zap.Logger
}

func NewNotificationRepository(storage *pgxpool.Pool, logger *zap.Logger) NotificationRepositoryInterface {
	return &notificationRepository{storage: storage, logger: logger}
}

func (r *notificationRepository) scanRow(row pgx.Row) (*entities.Notification, error) {
	var n entities.Notification
	err := row.Scan(
		&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message,
		&n.Priority, &n.Data, &n.Read, &n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка сканирования notifications: %w", err)
	}
	return &n, nil
}

func (r *notificationRepository) Create(ctx context.Context, n entities.Notification) error {
	query, args, err := psql.Insert(notificationTable).
		Columns("id", "user_id", `"type"`, "title", "message", "priority", "data", "read", "created_at").
		Values(n.ID, n.UserID, n.Type, n.Title, n.Message, n.Priority, n.Data, n.Read, n.CreatedAt).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка построения запроса: %w", err)
	}

	if _, err = r.storage.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("ошибка вставки в notifications: %w", err)
	}
	return nil
}

func (r *notificationRepository) FindByID(ctx context.Context, userID uint64, id string) (*entities.Notification, error) {
	query, args, err := psql.Select(notificationFields).
		From(notificationTable).
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка построения запроса: %w", err)
	}
	return r.scanRow(r.storage.QueryRow(ctx, query, args...))
}

func (r *notificationRepository) GetRecentByUser(ctx context.Context, userID uint64, limit int) ([]*entities.Notification, error) {
	query, args, err := psql.Select(notificationFields).
		From(notificationTable).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка построения запроса: %w", err)
	}
	return r.queryMany(ctx, query, args)
}

func (r *notificationRepository) GetAllByUser(ctx context.Context, userID uint64) ([]*entities.Notification, error) {
	query, args, err := psql.Select(notificationFields).
		From(notificationTable).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка построения запроса: %w", err)
	}
	return r.queryMany(ctx, query, args)
}

func (r *notificationRepository) queryMany(ctx context.Context, query string, args []interface{}) ([]*entities.Notification, error) {
	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки из notifications: %w", err)
	}
	defer rows.Close()

	var result []*entities.Notification
	for rows.Next() {
		n, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID uint64, id string) error {
	query, args, err := psql.Update(notificationTable).
		Set("read", true).
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка построения запроса: %w", err)
	}

	tag, err := r.storage.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка обновления notifications: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
