package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"notification-system/internal/dto"
	"notification-system/internal/entities"
	"notification-system/internal/repositories"
	"notification-system/pkg/config"
	"notification-system/pkg/telegram"
	appwebsocket "notification-system/pkg/websocket"
)

// HubSender — рассылка в живой канал. Интерфейс подменяется в тестах.
type HubSender interface {
	SendToUser(userID uint64, payload interface{}, messageType string) error
}

// NotificationServiceInterface — сервис доставки и хранения уведомлений.
type NotificationServiceInterface interface {
	// Dispatch — полная доставка: хранилище, кеш, живой канал, Web Push,
	// telegram для urgent.
	Dispatch(ctx context.Context, userID uint64, in dto.CreateNotificationDTO) (*dto.NotificationDTO, error)
	// Record — только запись (write-through от клиентского конвейера,
	// уведомление уже показано).
	Record(ctx context.Context, userID uint64, in dto.CreateNotificationDTO) (*dto.NotificationDTO, error)
	Recent(ctx context.Context, userID uint64, limit int) ([]dto.NotificationDTO, error)
	MarkRead(ctx context.Context, userID uint64, id string) error
}

type notificationService struct {
	notificationRepo repositories.NotificationRepositoryInterface
	pushRepo         repositories.PushSubscriptionRepositoryInterface
	cache            repositories.CacheRepositoryInterface
	hub              HubSender
	pushSender       PushSenderInterface
	telegramService  telegram.ServiceInterface
	telegramCfg      config.TelegramConfig
	recentLimit      int
	logger           *zap.Logger
}

func NewNotificationService(
	notificationRepo repositories.NotificationRepositoryInterface,
	pushRepo repositories.PushSubscriptionRepositoryInterface,
	cache repositories.CacheRepositoryInterface,
	hub HubSender,
	pushSender PushSenderInterface,
	telegramService telegram.ServiceInterface,
	telegramCfg config.TelegramConfig,
	recentLimit int,
	logger *zap.Logger,
) NotificationServiceInterface {
	if recentLimit <= 0 {
		recentLimit = 10
	}
	return &notificationService{
		notificationRepo: notificationRepo,
		pushRepo:         pushRepo,
		cache:            cache,
		hub:              hub,
		pushSender:       pushSender,
		telegramService:  telegramService,
		telegramCfg:      telegramCfg,
		recentLimit:      recentLimit,
		logger:           logger,
	}
}

func recentCacheKey(userID uint64) string {
	return fmt.Sprintf("recent_notifications:%d", userID)
}

func (s *notificationService) toEntity(userID uint64, in dto.CreateNotificationDTO) (entities.Notification, error) {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := in.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var data json.RawMessage
	if in.Data != nil {
		raw, err := json.Marshal(in.Data)
		if err != nil {
			return entities.Notification{}, fmt.Errorf("ошибка сериализации data: %w", err)
		}
		data = raw
	}

	return entities.Notification{
		ID:        id,
		UserID:    userID,
		Type:      in.Type,
		Title:     in.Title,
		Message:   in.Message,
		Priority:  in.Priority,
		Data:      data,
		CreatedAt: createdAt,
	}, nil
}

func entityToDTO(n *entities.Notification) dto.NotificationDTO {
	return dto.NotificationDTO{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Priority:  n.Priority,
		Timestamp: n.CreatedAt,
		Data:      n.Data,
		Read:      n.Read,
	}
}

// persist пишет уведомление в хранилище и в кеш последних.
// Сбой кеша не фатален: хранилище остаётся источником истины.
func (s *notificationService) persist(ctx context.Context, n entities.Notification) (*dto.NotificationDTO, error) {
	if err := s.notificationRepo.Create(ctx, n); err != nil {
		return nil, err
	}

	out := entityToDTO(&n)
	if encoded, err := json.Marshal(out); err == nil {
		if err := s.cache.RecentPush(ctx, recentCacheKey(n.UserID), encoded, s.recentLimit); err != nil {
			s.logger.Warn("notification: кеш последних не обновлён", zap.Error(err))
		}
	}
	return &out, nil
}

func (s *notificationService) Record(ctx context.Context, userID uint64, in dto.CreateNotificationDTO) (*dto.NotificationDTO, error) {
	n, err := s.toEntity(userID, in)
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, n)
}

func (s *notificationService) Dispatch(ctx context.Context, userID uint64, in dto.CreateNotificationDTO) (*dto.NotificationDTO, error) {
	n, err := s.toEntity(userID, in)
	if err != nil {
		return nil, err
	}

	out, err := s.persist(ctx, n)
	if err != nil {
		return nil, err
	}

	if err := s.hub.SendToUser(userID, out, appwebsocket.MessageTypeNotification); err != nil {
		s.logger.Warn("notification: рассылка в канал не прошла",
			zap.Uint64("userID", userID),
			zap.Error(err),
		)
	}

	s.sendWebPush(ctx, userID, out)

	if n.Priority == "urgent" && s.telegramService != nil && s.telegramCfg.ChatID != 0 {
		text := fmt.Sprintf("<b>%s</b>\n%s", n.Title, n.Message)
		if err := s.telegramService.SendMessage(ctx, s.telegramCfg.ChatID, text); err != nil {
			s.logger.Warn("notification: telegram-канал не доставил", zap.Error(err))
		}
	}

	return out, nil
}

// sendWebPush доставляет уведомление на все активные подписки
// пользователя. Протухшие подписки отзываются.
func (s *notificationService) sendWebPush(ctx context.Context, userID uint64, out *dto.NotificationDTO) {
	if s.pushSender == nil {
		return
	}

	subs, err := s.pushRepo.FindActiveByUser(ctx, userID)
	if err != nil {
		s.logger.Warn("notification: подписки не прочитаны", zap.Error(err))
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(out)
	if err != nil {
		s.logger.Warn("notification: payload для push не сериализован", zap.Error(err))
		return
	}

	for _, sub := range subs {
		if !sub.Active() {
			continue
		}
		if err := s.pushSender.Send(ctx, sub, payload); err != nil {
			s.logger.Warn("notification: web push не доставлен",
				zap.String("endpoint", sub.Endpoint),
				zap.Error(err),
			)
			if revokeErr := s.pushRepo.Revoke(ctx, userID, sub.Endpoint); revokeErr == nil {
				s.logger.Info("notification: протухшая подписка отозвана",
					zap.String("endpoint", sub.Endpoint),
				)
			}
		}
	}
}

// Recent отдаёт последние уведомления: сперва из кеша, при промахе — из
// хранилища.
func (s *notificationService) Recent(ctx context.Context, userID uint64, limit int) ([]dto.NotificationDTO, error) {
	if limit <= 0 || limit > s.recentLimit {
		limit = s.recentLimit
	}

	if cached, err := s.cache.RecentRange(ctx, recentCacheKey(userID), limit); err == nil && len(cached) > 0 {
		result := make([]dto.NotificationDTO, 0, len(cached))
		for _, item := range cached {
			var n dto.NotificationDTO
			if err := json.Unmarshal([]byte(item), &n); err != nil {
				s.logger.Warn("notification: нечитаемая запись в кеше", zap.Error(err))
				continue
			}
			result = append(result, n)
		}
		if len(result) > 0 {
			return result, nil
		}
	}

	stored, err := s.notificationRepo.GetRecentByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	result := make([]dto.NotificationDTO, 0, len(stored))
	for _, n := range stored {
		result = append(result, entityToDTO(n))
	}
	return result, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID uint64, id string) error {
	if err := s.notificationRepo.MarkRead(ctx, userID, id); err != nil {
		return err
	}
	// Кеш проще сбросить, чем точечно редактировать.
	if err := s.cache.Del(ctx, recentCacheKey(userID)); err != nil {
		s.logger.Warn("notification: кеш последних не сброшен", zap.Error(err))
	}
	return nil
}
