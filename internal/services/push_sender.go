package services

import (
	"context"
	"fmt"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"notification-system/internal/entities"
	"notification-system/pkg/config"
)

// PushSenderInterface доставляет payload на endpoint подписки по
// протоколу Web Push.
type PushSenderInterface interface {
	Send(ctx context.Context, sub *entities.PushSubscription, payload []byte) error
}

type webPushSender struct {
	cfg    config.PushConfig
	logger *zap.Logger
}

func NewWebPushSender(cfg config.PushConfig, logger *zap.Logger) PushSenderInterface {
	return &webPushSender{cfg: cfg, logger: logger}
}

func (s *webPushSender) Send(ctx context.Context, sub *entities.PushSubscription, payload []byte) error {
	if s.cfg.VAPIDPrivateKey == "" || s.cfg.VAPIDPublicKey == "" {
		return fmt.Errorf("push: ключи VAPID не настроены")
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      s.cfg.Subscriber,
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		TTL:             60,
	})
	if err != nil {
		return fmt.Errorf("push: доставка не прошла: %w", err)
	}
	defer resp.Body.Close()

	// 404/410 означают, что push-сервис ротировал или удалил подписку.
	if resp.StatusCode == 404 || resp.StatusCode == 410 {
		return fmt.Errorf("push: подписка протухла, статус %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push: сервис вернул статус %d", resp.StatusCode)
	}
	return nil
}
